// Package setupcmd implements the `casefile setup` command group.
package setupcmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-ports/casefile/cmd/casefile/shared"
	"github.com/go-ports/casefile/internal/agents"
)

// Command implements `casefile setup`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the setup command group with one subcommand per agent.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "setup",
		Short: "Register the casefile MCP server with a coding agent",
		RunE:  func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	for _, a := range agents.All {
		c.cmd.AddCommand(newAgent(ctx, a))
	}
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func newAgent(ctx *shared.Context, agent agents.Agent) *cobra.Command {
	var (
		dir     string
		project bool
		command string
		pinHome bool
	)
	cmd := &cobra.Command{
		Use:   string(agent),
		Short: fmt.Sprintf("Register the casefile MCP server with %s", agent),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := ConfigPath(agent, dir, project)
			if err != nil {
				return err
			}
			srv := agents.Server{Command: command}
			if pinHome {
				srv.Home = ctx.HomeDir()
			}
			added, err := agents.Install(agent, path, srv)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !added {
				fmt.Fprintf(out, "Already installed in %s\n", path)
				return nil
			}
			fmt.Fprintf(out, "Installed: casefile MCP server in %s\n", path)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&dir, "dir", "", "Base directory holding the agent config (default: home, or the current directory with --project)")
	f.BoolVar(&project, "project", false, "Install in the current project instead of globally")
	f.StringVar(&command, "command", "", "casefile executable the agent launches (default: casefile on PATH)")
	f.BoolVar(&pinHome, "pin-home", false, "Pin the current casefile home in the server's environment")
	return cmd
}

// ConfigPath resolves the agent config file from the --dir and --project
// flags shared by setup and uninstall.
//
//revive:disable:flag-parameter
func ConfigPath(agent agents.Agent, dir string, project bool) (string, error) {
	base := dir
	if base == "" {
		var err error
		if project {
			base, err = os.Getwd()
		} else {
			base, err = os.UserHomeDir()
		}
		if err != nil {
			return "", err
		}
	}
	return agents.ConfigPath(agent, base, project)
}

//revive:enable:flag-parameter
