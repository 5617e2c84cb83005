package command

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/glanceboard/storekit/internal/storage"
)

// seedRoot creates a storage root with one plain namespace and one cache
// entry that is already expired.
func seedRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	m, err := storage.NewManager(root)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	b, err := m.GetBackend("settings", storage.KindJSONFile)
	if err != nil {
		t.Fatalf("GetBackend: %v", err)
	}
	if err := b.Set("theme", "dark"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := b.Set("lang", "en"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	cache, err := m.GetCachedStorage("api", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("GetCachedStorage: %v", err)
	}
	if err := cache.Set("stale", "old"); err != nil {
		t.Fatalf("cache Set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return root
}

func runApp(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	app := App()
	app.Writer = &buf

	argv := append([]string{"storekit-cli"}, args...)
	if err := app.Run(argv); err != nil {
		t.Fatalf("Run %v: %v", args, err)
	}
	return buf.String()
}

func TestNamespacesCommand(t *testing.T) {
	root := seedRoot(t)

	out := runApp(t, "--root", root, "namespaces")
	if !strings.Contains(out, "settings") || !strings.Contains(out, "api") {
		t.Fatalf("output = %q", out)
	}
	if !strings.Contains(out, "json") {
		t.Fatalf("output missing kind: %q", out)
	}
}

func TestStatsCommand(t *testing.T) {
	root := seedRoot(t)

	out := runApp(t, "--root", root, "stats")
	if !strings.Contains(out, "namespaces") || !strings.Contains(out, "total_keys") {
		t.Fatalf("output = %q", out)
	}
}

func TestKeysAndGetCommands(t *testing.T) {
	root := seedRoot(t)

	out := runApp(t, "--root", root, "keys", "settings")
	if !strings.Contains(out, "theme") || !strings.Contains(out, "lang") {
		t.Fatalf("keys output = %q", out)
	}

	out = runApp(t, "--root", root, "get", "settings", "theme")
	if !strings.Contains(out, "dark") {
		t.Fatalf("get output = %q", out)
	}
}

func TestGetCommand_MissingKey(t *testing.T) {
	root := seedRoot(t)

	app := App()
	app.Writer = new(bytes.Buffer)
	err := app.Run([]string{"storekit-cli", "--root", root, "get", "settings", "nope"})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestDeleteAndClearCommands(t *testing.T) {
	root := seedRoot(t)

	out := runApp(t, "--root", root, "delete", "settings", "theme")
	if !strings.Contains(out, "deleted") {
		t.Fatalf("delete output = %q", out)
	}

	out = runApp(t, "--root", root, "clear", "settings")
	if !strings.Contains(out, "cleared 1 keys") {
		t.Fatalf("clear output = %q", out)
	}

	out = runApp(t, "--root", root, "keys", "settings")
	if strings.Contains(out, "lang") {
		t.Fatalf("keys after clear = %q", out)
	}
}

func TestResetCommand_RequiresConfirmation(t *testing.T) {
	root := seedRoot(t)

	app := App()
	app.Writer = new(bytes.Buffer)
	err := app.Run([]string{"storekit-cli", "--root", root, "reset"})
	if err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("err = %v", err)
	}

	out := runApp(t, "--root", root, "reset", "--yes")
	if !strings.Contains(out, "cleared 2 namespaces") {
		t.Fatalf("reset output = %q", out)
	}
}

func TestSweepCommand_EvictsExpired(t *testing.T) {
	root := seedRoot(t)

	out := runApp(t, "--root", root, "sweep")
	if !strings.Contains(out, "evicted 1 expired entries") {
		t.Fatalf("sweep output = %q", out)
	}
}

func TestBackupCommand_WriteAndList(t *testing.T) {
	root := seedRoot(t)

	out := runApp(t, "--root", root, "backup")
	if !strings.Contains(out, "backup written to") {
		t.Fatalf("backup output = %q", out)
	}

	out = runApp(t, "--root", root, "backup", "--list")
	if !strings.Contains(out, "BACKUP") || len(strings.Split(strings.TrimSpace(out), "\n")) < 2 {
		t.Fatalf("backup list output = %q", out)
	}
}
