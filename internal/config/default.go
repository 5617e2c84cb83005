// Package config defines the storekit configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultRootDir    = "/var/lib/storekit"
	DefaultBackupKeep = 5

	DefaultCacheTTL        = time.Hour
	DefaultMaxCacheEntries = 1000
	DefaultSweepInterval   = 5 * time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Storage: StorageSection{
			RootDir:    DefaultRootDir,
			BackupKeep: DefaultBackupKeep,
		},
		Cache: CacheSection{
			DefaultTTL:    DefaultCacheTTL,
			MaxEntries:    DefaultMaxCacheEntries,
			SweepInterval: DefaultSweepInterval,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
