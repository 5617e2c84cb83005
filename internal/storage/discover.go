package storage

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// DiscoverNamespaces scans the root directory for namespace files and
// returns their names with the kind implied by the file extension, sorted
// by name. Only file-backed namespaces are discoverable this way; memory
// namespaces live in-process and Badger namespaces live inside the shared
// database.
//
// Names are the sanitized file stems, so a namespace created as
// "module:weather" is discovered as "module_weather". Both map to the
// same file.
func (m *Manager) DiscoverNamespaces() ([]DiscoveredNamespace, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("storage: discover: %w", err)
	}

	var found []DiscoveredNamespace
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".json"):
			found = append(found, DiscoveredNamespace{
				Name: strings.TrimSuffix(name, ".json"),
				Kind: KindJSONFile,
			})
		case strings.HasSuffix(name, ".bin"):
			found = append(found, DiscoveredNamespace{
				Name: strings.TrimSuffix(name, ".bin"),
				Kind: KindGobFile,
			})
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return found, nil
}

// DiscoveredNamespace is a namespace found on disk.
type DiscoveredNamespace struct {
	Name string
	Kind Kind
}

// OpenExisting discovers and opens every file-backed namespace under the
// root. Used by management tooling that starts with no live instances.
func (m *Manager) OpenExisting() ([]Backend, error) {
	found, err := m.DiscoverNamespaces()
	if err != nil {
		return nil, err
	}

	backends := make([]Backend, 0, len(found))
	for _, ns := range found {
		b, err := m.GetBackend(ns.Name, ns.Kind)
		if err != nil {
			return backends, err
		}
		backends = append(backends, b)
	}
	return backends, nil
}
