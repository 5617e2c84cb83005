// Package config defines the storekit configuration structure.
package config

import "time"

// Config is the root configuration for the storage subsystem.
type Config struct {
	Storage  StorageSection  `koanf:"storage"`
	Cache    CacheSection    `koanf:"cache"`
	Security SecuritySection `koanf:"security"`
	Log      LogSection      `koanf:"log"`
}

// StorageSection configures where and how namespaces persist.
type StorageSection struct {
	// RootDir holds every namespace file, the shared Badger database and
	// backups. The embedding application decides this path.
	RootDir string `koanf:"root_dir"`

	// BackupKeep is how many backups survive a retention prune.
	BackupKeep int `koanf:"backup_keep"`

	// Debounce batches file rewrites under sustained write pressure.
	Debounce DebounceConfig `koanf:"debounce"`
}

// DebounceConfig bounds full-file rewrites per namespace. Disabled when
// Window is zero.
type DebounceConfig struct {
	PerSecond float64       `koanf:"per_second"`
	Burst     int           `koanf:"burst"`
	Window    time.Duration `koanf:"window"`
}

// CacheSection configures TTL cache behavior.
type CacheSection struct {
	// DefaultTTL is handed to module caches that do not choose their own.
	DefaultTTL time.Duration `koanf:"default_ttl"`

	// MaxEntries bounds each cache wrapper's in-memory index.
	MaxEntries int `koanf:"max_entries"`

	// SweepInterval is how often expired entries are evicted in bulk.
	// Zero disables the background sweeper.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// SecuritySection configures encryption at rest.
type SecuritySection struct {
	// EncryptionKey is a hex-encoded 32-byte key. Empty disables
	// encryption.
	EncryptionKey string `koanf:"encryption_key"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
