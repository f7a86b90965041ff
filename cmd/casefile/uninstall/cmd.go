// Package uninstallcmd implements the `casefile uninstall` command group.
package uninstallcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/casefile/cmd/casefile/shared"
	setupcmd "github.com/go-ports/casefile/cmd/casefile/setup"
	"github.com/go-ports/casefile/internal/agents"
)

// Command implements `casefile uninstall`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the uninstall command group with one subcommand per agent.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the casefile MCP server from a coding agent",
		RunE:  func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	for _, a := range agents.All {
		c.cmd.AddCommand(newAgent(a))
	}
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func newAgent(agent agents.Agent) *cobra.Command {
	var (
		dir     string
		project bool
	)
	cmd := &cobra.Command{
		Use:   string(agent),
		Short: fmt.Sprintf("Remove the casefile MCP server from %s", agent),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := setupcmd.ConfigPath(agent, dir, project)
			if err != nil {
				return err
			}
			removed, err := agents.Uninstall(agent, path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !removed {
				fmt.Fprintln(out, "Nothing to remove")
				return nil
			}
			fmt.Fprintf(out, "Removed: casefile MCP server from %s\n", path)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&dir, "dir", "", "Base directory holding the agent config (default: home, or the current directory with --project)")
	f.BoolVar(&project, "project", false, "Remove from the current project instead of globally")
	return cmd
}
