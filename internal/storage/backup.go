package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/oklog/ulid/v2"
)

// backupDirName is the subdirectory of the storage root that holds backups.
const backupDirName = "backups"

// Backup flushes all file backends and copies their namespace files into a
// new ULID-named directory under <root>/backups. ULIDs sort by creation
// time, so directory order is backup order. Older backups beyond the
// retention limit are pruned.
//
// Badger namespaces are not copied; Badger maintains its own durability and
// has native backup tooling.
func (m *Manager) Backup() (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrClosed
	}
	files := make([]*FileBackend, 0, len(m.backends))
	for _, b := range m.backends {
		if fb, ok := b.(*FileBackend); ok {
			files = append(files, fb)
		}
	}
	m.mu.Unlock()

	for _, fb := range files {
		if err := fb.Flush(); err != nil {
			return "", fmt.Errorf("storage: backup flush: %w", err)
		}
	}

	dest := filepath.Join(m.root, backupDirName, ulid.Make().String())
	if err := os.MkdirAll(dest, dirMode); err != nil {
		return "", fmt.Errorf("storage: backup: %w", err)
	}

	copied := 0
	for _, fb := range files {
		if err := copyFile(fb.Path(), filepath.Join(dest, filepath.Base(fb.Path()))); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Namespace never wrote anything, nothing to keep.
				continue
			}
			return "", fmt.Errorf("storage: backup %s: %w", fb.Namespace(), err)
		}
		copied++
	}

	if err := m.pruneBackups(); err != nil {
		m.log.Warn("backup retention prune failed", "error", err)
	}

	m.log.Info("backup written", "dir", dest, "files", copied)
	return dest, nil
}

// ListBackups returns backup directory names, oldest first.
func (m *Manager) ListBackups() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(m.root, backupDirName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: list backups: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// pruneBackups removes the oldest backups beyond the retention limit.
func (m *Manager) pruneBackups() error {
	if m.backupKeep <= 0 {
		return nil
	}

	names, err := m.ListBackups()
	if err != nil {
		return err
	}
	if len(names) <= m.backupKeep {
		return nil
	}

	var errs []error
	for _, name := range names[:len(names)-m.backupKeep] {
		if err := os.RemoveAll(filepath.Join(m.root, backupDirName, name)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
