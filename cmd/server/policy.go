package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesprial/mcp-tool-gateway/internal/policy"
)

func policyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Authorization policy management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <file>",
		Short: "Validate a policy file without starting the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := policy.Load(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Policy OK (%d rules, namespace argument %q)\n", len(p.Rules), p.NamespaceArgument)
			if p.Anonymous.Enabled {
				fmt.Fprintf(out, "  anonymous callers act as role %q\n", p.Anonymous.Role)
			}
			for _, r := range p.Rules {
				fmt.Fprintf(out, "  %s -> %s", r.RoleOrUser, r.ToolPattern)
				if len(r.AllowedNamespaces) > 0 {
					fmt.Fprintf(out, " in %v", r.AllowedNamespaces)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	})
	return cmd
}
