package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// DeleteCommand removes one key.
func DeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a key from a namespace",
		ArgsUsage: "<namespace> <key>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("usage: delete <namespace> <key>")
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
			existed, err := b.Delete(key)
			if err != nil {
				return err
			}
			if !existed {
				fmt.Fprintf(c.App.Writer, "key %q was not present\n", key)
				return nil
			}
			fmt.Fprintf(c.App.Writer, "deleted %q from %q\n", key, ns.Name)
			return nil
		},
	}
}

// ClearCommand empties one namespace.
func ClearCommand() *cli.Command {
	return &cli.Command{
		Name:      "clear",
		Usage:     "Remove every key from a namespace",
		ArgsUsage: "<namespace>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("usage: clear <namespace>")
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

			n := b.Len()
			if err := b.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "cleared %d keys from %q\n", n, ns.Name)
			return nil
		},
	}
}

// ResetCommand clears every namespace under the root.
func ResetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Clear every namespace under the storage root",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Confirm the reset",
			},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return fmt.Errorf("reset clears all namespaces; re-run with --yes to confirm")
			}

			m, err := openManager(c)
			if err != nil {
				return err
			}
			defer m.Close()

			backends, err := m.OpenExisting()
			if err != nil {
				return err
			}
			if err := m.ClearAll(); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "cleared %d namespaces\n", len(backends))
			return nil
		},
	}
}
