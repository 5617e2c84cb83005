package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestManager(t *testing.T, opts ...ManagerOption) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManager_MemoizesBackends(t *testing.T) {
	m := newTestManager(t)

	a, err := m.GetBackend("settings", KindJSONFile)
	if err != nil {
		t.Fatalf("GetBackend: %v", err)
	}
	b, err := m.GetBackend("settings", KindJSONFile)
	if err != nil {
		t.Fatalf("GetBackend: %v", err)
	}
	if a != b {
		t.Fatal("same namespace returned distinct instances")
	}

	if err := a.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok := b.Get("k"); !ok || v != "v" {
		t.Fatal("write through one handle not visible through the other")
	}
}

func TestManager_KindConflictPanics(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.GetBackend("ns", KindMemory); err != nil {
		t.Fatalf("GetBackend: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on kind conflict")
		}
	}()
	m.GetBackend("ns", KindJSONFile)
}

func TestManager_UnknownKind(t *testing.T) {
	m := newTestManager(t)

	_, err := m.GetBackend("ns", Kind("tape"))
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("error = %v, want ErrUnknownKind", err)
	}
}

func TestManager_NamespaceFileNaming(t *testing.T) {
	m := newTestManager(t)

	b, err := m.GetBackend("module:rss/feed", KindJSONFile)
	if err != nil {
		t.Fatalf("GetBackend: %v", err)
	}
	fb := b.(*FileBackend)
	if got := filepath.Base(fb.Path()); got != "module_rss_feed.json" {
		t.Fatalf("file name = %q", got)
	}

	if err := fb.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := os.Stat(fb.Path()); err != nil {
		t.Fatalf("namespace file not under root: %v", err)
	}
}

func TestManager_CacheWrappersKeyedByNameAndTTL(t *testing.T) {
	m := newTestManager(t)

	short, err := m.GetCachedStorage("api", time.Minute)
	if err != nil {
		t.Fatalf("GetCachedStorage: %v", err)
	}
	shortAgain, err := m.GetCachedStorage("api", time.Minute)
	if err != nil {
		t.Fatalf("GetCachedStorage: %v", err)
	}
	long, err := m.GetCachedStorage("api", time.Hour)
	if err != nil {
		t.Fatalf("GetCachedStorage: %v", err)
	}

	if short != shortAgain {
		t.Fatal("same (name, ttl) returned distinct wrappers")
	}
	if short == long {
		t.Fatal("different TTLs returned the same wrapper")
	}
	if short.Backend() != long.Backend() {
		t.Fatal("wrappers over one namespace must share the backend")
	}
}

func TestManager_CacheOverExistingMemoryBackend(t *testing.T) {
	m := newTestManager(t)

	b, err := m.GetBackend("volatile", KindMemory)
	if err != nil {
		t.Fatalf("GetBackend: %v", err)
	}
	cache, err := m.GetCachedStorage("volatile", time.Minute)
	if err != nil {
		t.Fatalf("GetCachedStorage: %v", err)
	}
	if cache.Backend() != b {
		t.Fatal("cache did not reuse the live backend")
	}
}

func TestManager_ModuleAccessors(t *testing.T) {
	m := newTestManager(t)

	b, err := m.GetModuleStorage("weather")
	if err != nil {
		t.Fatalf("GetModuleStorage: %v", err)
	}
	if b.Namespace() != "module:weather" {
		t.Fatalf("Namespace = %q", b.Namespace())
	}

	cache, err := m.GetModuleCache("weather", time.Minute)
	if err != nil {
		t.Fatalf("GetModuleCache: %v", err)
	}
	if cache.Backend() != b {
		t.Fatal("module cache did not reuse the module backend")
	}
}

func TestManager_CleanupExpiredCaches(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, WithManagerClock(clock))

	cache, err := m.GetCachedStorage("jobs", time.Minute)
	if err != nil {
		t.Fatalf("GetCachedStorage: %v", err)
	}
	for _, key := range []string{"a", "b", "c"} {
		if err := cache.Set(key, key); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	clock.Advance(2 * time.Minute)

	evicted, err := m.CleanupExpiredCaches()
	if err != nil {
		t.Fatalf("CleanupExpiredCaches: %v", err)
	}
	if evicted != 3 {
		t.Fatalf("evicted = %d, want 3", evicted)
	}
}

func TestManager_ClearAll(t *testing.T) {
	m := newTestManager(t)

	b, err := m.GetBackend("plain", KindMemory)
	if err != nil {
		t.Fatalf("GetBackend: %v", err)
	}
	if err := b.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	cache, err := m.GetCachedStorage("cached", time.Hour)
	if err != nil {
		t.Fatalf("GetCachedStorage: %v", err)
	}
	if err := cache.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := m.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if b.Len() != 0 {
		t.Fatal("backend not cleared")
	}
	if cache.Exists("k") {
		t.Fatal("cache not cleared")
	}
	// Idempotent.
	if err := m.ClearAll(); err != nil {
		t.Fatalf("second ClearAll: %v", err)
	}
}

func TestManager_GetStats(t *testing.T) {
	m := newTestManager(t)

	a, _ := m.GetBackend("alpha", KindMemory)
	a.Set("k1", 1)
	a.Set("k2", 2)
	b, _ := m.GetBackend("beta", KindMemory)
	b.Set("k", 1)
	if _, err := m.GetCachedStorage("alpha", time.Minute); err != nil {
		t.Fatalf("GetCachedStorage: %v", err)
	}

	s := m.GetStats()
	if s.Backends != 2 || s.Caches != 1 {
		t.Fatalf("stats = %+v", s)
	}
	if s.TotalKeys != 3 {
		t.Fatalf("TotalKeys = %d", s.TotalKeys)
	}
	if len(s.Namespaces) != 2 || s.Namespaces[0] != "alpha" || s.Namespaces[1] != "beta" {
		t.Fatalf("Namespaces = %v", s.Namespaces)
	}
}

func TestManager_ClosedRejectsUse(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if _, err := m.GetBackend("ns", KindMemory); !errors.Is(err, ErrClosed) {
		t.Fatalf("GetBackend after Close = %v, want ErrClosed", err)
	}
	if _, err := m.GetCachedStorage("ns", time.Minute); !errors.Is(err, ErrClosed) {
		t.Fatalf("GetCachedStorage after Close = %v, want ErrClosed", err)
	}
}

func TestManager_BackupAndRetention(t *testing.T) {
	m := newTestManager(t, WithBackupRetention(2))

	b, err := m.GetBackend("settings", KindJSONFile)
	if err != nil {
		t.Fatalf("GetBackend: %v", err)
	}
	if err := b.Set("theme", "dark"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var last string
	for i := 0; i < 3; i++ {
		last, err = m.Backup()
		if err != nil {
			t.Fatalf("Backup: %v", err)
		}
	}

	copied := filepath.Join(last, "settings.json")
	if _, err := os.Stat(copied); err != nil {
		t.Fatalf("backup missing namespace file: %v", err)
	}

	names, err := m.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("retained %d backups, want 2", len(names))
	}
	if names[len(names)-1] != filepath.Base(last) {
		t.Fatalf("newest backup = %q, want %q", names[len(names)-1], filepath.Base(last))
	}
}
