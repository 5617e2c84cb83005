package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/glanceboard/storekit/internal/cli/output"
)

// SweepCommand evicts expired cache entries from every namespace.
func SweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Evict expired cache entries from every namespace",
		Action: func(c *cli.Context) error {
			m, err := openManager(c)
			if err != nil {
				return err
			}
			defer m.Close()

			found, err := m.DiscoverNamespaces()
			if err != nil {
				return err
			}
			for _, ns := range found {
				if _, err := m.GetBackend(ns.Name, ns.Kind); err != nil {
					return err
				}
				// Wrapping registers the namespace for the sweep; the
				// envelopes carry their own expiry.
				if _, err := m.GetCachedStorage(ns.Name, m.DefaultTTL()); err != nil {
					return err
				}
			}

			evicted, err := m.CleanupExpiredCaches()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "evicted %d expired entries across %d namespaces\n",
				evicted, len(found))
			return nil
		},
	}
}

// BackupCommand writes or lists backups of the file-backed namespaces.
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Write a backup of all namespace files",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "list",
				Usage: "List existing backups instead of writing one",
			},
		},
		Action: func(c *cli.Context) error {
			m, err := openManager(c)
			if err != nil {
				return err
			}
			defer m.Close()

			if c.Bool("list") {
				names, err := m.ListBackups()
				if err != nil {
					return err
				}
				t := &output.Table{Headers: []string{"BACKUP"}}
				for _, name := range names {
					t.AddRow(name)
				}
				return formatter(c).Format(c.App.Writer, t)
			}

			if _, err := m.OpenExisting(); err != nil {
				return err
			}
			dir, err := m.Backup()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "backup written to %s\n", dir)
			return nil
		},
	}
}
