// Package config defines the storekit configuration structure.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyCache(&cfg.Cache); err != nil {
		return err
	}
	return verifySecurity(&cfg.Security)
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.RootDir == "" {
		return errors.New("storage.root_dir is required")
	}
	if err := os.MkdirAll(cfg.RootDir, 0750); err != nil {
		return fmt.Errorf("cannot create storage root: %w", err)
	}

	if cfg.BackupKeep < 1 {
		return errors.New("storage.backup_keep must be at least 1")
	}

	d := cfg.Debounce
	if d.Window > 0 && (d.PerSecond <= 0 || d.Burst < 1) {
		return errors.New("storage.debounce needs positive per_second and burst")
	}
	return nil
}

func verifyCache(cfg *CacheSection) error {
	if cfg.MaxEntries < 0 {
		return errors.New("cache.max_entries must not be negative")
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	if cfg.EncryptionKey == "" {
		return nil
	}
	key, err := hex.DecodeString(cfg.EncryptionKey)
	if err != nil {
		return errors.New("security.encryption_key must be hex-encoded")
	}
	if len(key) != 32 {
		return fmt.Errorf("security.encryption_key must be 32 bytes, got %d", len(key))
	}
	return nil
}

// DecodeKey returns the raw encryption key, or nil when encryption is
// disabled. Call Verify first.
func (s *SecuritySection) DecodeKey() []byte {
	if s.EncryptionKey == "" {
		return nil
	}
	key, err := hex.DecodeString(s.EncryptionKey)
	if err != nil {
		return nil
	}
	return key
}
