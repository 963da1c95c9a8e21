// Package main is the entry point for the MCP tool gateway.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const serverName = "mcp-tool-gateway"

// Set by ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           serverName,
		Short:         "Authenticated, policy-enforcing MCP tool gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), policyCmd(), versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit: %s)\n", serverName, version, commit)
		},
	}
}
