package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "procsim",
		Short: "Process-oriented discrete-event simulation of a bank branch",
		Long: `procsim runs replications of a bank branch model built on a ` +
			`process-oriented discrete-event simulation kernel. Results can ` +
			`be recorded to SQLite or ClickHouse and the run can be watched ` +
			`from a browser.`,
		SilenceUsage: true,
	}

	root.AddCommand(newRunCmd(), newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of procsim",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("procsim %s\n", version)
		},
	}
}
