package command

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/glanceboard/storekit/internal/cli/output"
)

// StatsCommand reports aggregate storage statistics.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show aggregate storage statistics",
		Action: func(c *cli.Context) error {
			m, err := openManager(c)
			if err != nil {
				return err
			}
			defer m.Close()

			if _, err := m.OpenExisting(); err != nil {
				return err
			}
			s := m.GetStats()

			t := &output.Table{Headers: []string{"FIELD", "VALUE"}}
			t.AddRow("root", m.Root())
			t.AddRow("namespaces", strconv.Itoa(s.Backends))
			t.AddRow("total_keys", strconv.Itoa(s.TotalKeys))
			return formatter(c).Format(c.App.Writer, t)
		},
	}
}

// NamespacesCommand lists every discoverable namespace.
func NamespacesCommand() *cli.Command {
	return &cli.Command{
		Name:    "namespaces",
		Aliases: []string{"ns"},
		Usage:   "List namespaces with kind and key count",
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

			t := &output.Table{Headers: []string{"NAMESPACE", "KIND", "KEYS"}}
			for _, ns := range found {
				b, err := m.GetBackend(ns.Name, ns.Kind)
				if err != nil {
					return err
				}
				t.AddRow(ns.Name, string(ns.Kind), strconv.Itoa(b.Len()))
			}
			return formatter(c).Format(c.App.Writer, t)
		},
	}
}

// KeysCommand lists the keys of one namespace.
func KeysCommand() *cli.Command {
	return &cli.Command{
		Name:      "keys",
		Usage:     "List keys in a namespace",
		ArgsUsage: "<namespace>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("usage: keys <namespace>")
			}

			m, err := openManager(c)
			if err != nil {
				return err
			}
			defer m.Close()

			ns, err := findNamespace(m, c.Args().Get(0))
			if err != nil {
				return err
			}
			b, err := m.GetBackend(ns.Name, ns.Kind)
			if err != nil {
				return err
			}

			keys := b.Keys()
			sort.Strings(keys)

			t := &output.Table{Headers: []string{"KEY"}}
			for _, k := range keys {
				t.AddRow(k)
			}
			return formatter(c).Format(c.App.Writer, t)
		},
	}
}

// GetCommand prints one stored value.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print a stored value",
		ArgsUsage: "<namespace> <key>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("usage: get <namespace> <key>")
			}

			m, err := openManager(c)
			if err != nil {
				return err
			}
			defer m.Close()

			ns, err := findNamespace(m, c.Args().Get(0))
			if err != nil {
				return err
			}
			b, err := m.GetBackend(ns.Name, ns.Kind)
			if err != nil {
				return err
			}

			key := c.Args().Get(1)
			v, ok := b.Get(key)
			if !ok {
				return fmt.Errorf("key %q not found in namespace %q", key, ns.Name)
			}
			return (&output.JSONFormatter{}).Format(c.App.Writer, v)
		},
	}
}
