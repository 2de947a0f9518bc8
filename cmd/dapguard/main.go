// Command dapguard is a consent-gated MCP gateway in front of Debug Adapter
// Protocol debuggers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dapguard/dapguard/internal/version"
)

var (
	flagConfig    string
	flagWorkspace []string
	flagAuditLog  string
)

func main() {
	root := &cobra.Command{
		Use:           "dapguard",
		Short:         "Secure debug gateway for MCP agents",
		Long:          "dapguard exposes debug sessions, breakpoints and execution controls\nto MCP agents, with input validation, consent gating and audit logging\nbetween the agent and the debugger.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to configuration file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newApprovalsCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the dapguard version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dapguard version %s\n", version.Version)
		},
	}
}
