// Package main provides the entry point for storekit-cli.
//
// storekit-cli is the offline maintenance tool for the dashboard storage
// layer: it inspects, sweeps, clears and backs up the namespace files
// under a storage root.
package main

import (
	"fmt"
	"os"

	"github.com/glanceboard/storekit/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
