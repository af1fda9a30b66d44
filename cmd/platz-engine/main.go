// Command platz-engine is the headless daemon that runs the Task
// Engine, the Resource Sync Worker and the Event Bus relay against a
// single Platz database (spec.md §4.5, §4.7, §4.2). The REST API, OIDC
// auth and registry-scanning workers it serves alongside are out of
// scope (spec.md §2) and live in their own process.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is overwritten at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "platz-engine",
		Short:        "Runs the Platz task engine and resource sync worker",
		SilenceUsage: true,
	}
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
