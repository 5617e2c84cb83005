package config

import (
	"bytes"
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Storage.RootDir != DefaultRootDir {
		t.Fatalf("RootDir = %q", cfg.Storage.RootDir)
	}
	if cfg.Cache.DefaultTTL != time.Hour {
		t.Fatalf("DefaultTTL = %v", cfg.Cache.DefaultTTL)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Fatalf("log defaults = %+v", cfg.Log)
	}
}

func TestVerify_Valid(t *testing.T) {
	cfg := Default()
	cfg.Storage.RootDir = filepath.Join(t.TempDir(), "data")

	if err := Verify(cfg); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerify_MissingRootDir(t *testing.T) {
	cfg := Default()
	cfg.Storage.RootDir = ""

	err := Verify(cfg)
	if err == nil || !strings.Contains(err.Error(), "root_dir") {
		t.Fatalf("Verify = %v", err)
	}
}

func TestVerify_BackupKeep(t *testing.T) {
	cfg := Default()
	cfg.Storage.RootDir = t.TempDir()
	cfg.Storage.BackupKeep = 0

	if err := Verify(cfg); err == nil {
		t.Fatal("expected error for backup_keep = 0")
	}
}

func TestVerify_DebounceNeedsRate(t *testing.T) {
	cfg := Default()
	cfg.Storage.RootDir = t.TempDir()
	cfg.Storage.Debounce = DebounceConfig{Window: time.Second}

	if err := Verify(cfg); err == nil {
		t.Fatal("expected error for debounce without rate")
	}
}

func TestVerify_EncryptionKey(t *testing.T) {
	cfg := Default()
	cfg.Storage.RootDir = t.TempDir()

	cfg.Security.EncryptionKey = "not hex"
	if err := Verify(cfg); err == nil {
		t.Fatal("expected error for non-hex key")
	}

	cfg.Security.EncryptionKey = "abcd"
	if err := Verify(cfg); err == nil {
		t.Fatal("expected error for short key")
	}

	raw := bytes.Repeat([]byte{0x11}, 32)
	cfg.Security.EncryptionKey = hex.EncodeToString(raw)
	if err := Verify(cfg); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got := cfg.Security.DecodeKey(); !bytes.Equal(got, raw) {
		t.Fatalf("DecodeKey = %x", got)
	}
}

func TestDecodeKey_Disabled(t *testing.T) {
	s := SecuritySection{}
	if s.DecodeKey() != nil {
		t.Fatal("DecodeKey without key should be nil")
	}
}
