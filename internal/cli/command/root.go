package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/glanceboard/storekit/internal/cli/output"
	"github.com/glanceboard/storekit/internal/config"
	"github.com/glanceboard/storekit/internal/infra/buildinfo"
	"github.com/glanceboard/storekit/internal/infra/confloader"
	"github.com/glanceboard/storekit/internal/storage"
	"github.com/glanceboard/storekit/internal/telemetry/logger"
	"github.com/glanceboard/storekit/pkg/aead"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "storekit-cli",
		Usage:   "Maintenance tool for the dashboard storage layer",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			StatsCommand(),
			NamespacesCommand(),
			KeysCommand(),
			GetCommand(),
			DeleteCommand(),
			ClearCommand(),
			ResetCommand(),
			SweepCommand(),
			BackupCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			EnvVars: []string{"STOREKIT_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "root",
			Aliases: []string{"r"},
			Usage:   "Storage root directory (overrides configuration)",
			EnvVars: []string{"STOREKIT_ROOT"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable debug logging",
		},
	}
}

// loadConfig merges defaults, the optional config file, environment and
// global flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()

	var opts []confloader.Option
	if path := c.String("config"); path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if root := c.String("root"); root != "" {
		cfg.Storage.RootDir = root
	}
	if c.Bool("verbose") {
		cfg.Log.Level = "debug"
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openManager builds a manager over the configured storage root.
func openManager(c *cli.Context) (*storage.Manager, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	opts := []storage.ManagerOption{
		storage.WithLogger(log),
		storage.WithDefaultTTL(cfg.Cache.DefaultTTL),
		storage.WithMaxCacheEntries(cfg.Cache.MaxEntries),
		storage.WithBackupRetention(cfg.Storage.BackupKeep),
	}
	if key := cfg.Security.DecodeKey(); key != nil {
		cipher, err := aead.New(key)
		if err != nil {
			return nil, fmt.Errorf("encryption key: %w", err)
		}
		opts = append(opts, storage.WithCipher(cipher))
	}
	if d := cfg.Storage.Debounce; d.Window > 0 {
		opts = append(opts, storage.WithWriteDebounceAll(d.PerSecond, d.Burst, d.Window))
	}

	return storage.NewManager(cfg.Storage.RootDir, opts...)
}

func formatter(c *cli.Context) output.Formatter {
	return output.NewFormatter(output.Format(c.String("output")))
}

// findNamespace resolves a discovered namespace by name.
func findNamespace(m *storage.Manager, name string) (storage.DiscoveredNamespace, error) {
	found, err := m.DiscoverNamespaces()
	if err != nil {
		return storage.DiscoveredNamespace{}, err
	}
	for _, ns := range found {
		if ns.Name == name {
			return ns, nil
		}
	}
	return storage.DiscoveredNamespace{}, fmt.Errorf("namespace %q not found under %s", name, m.Root())
}
