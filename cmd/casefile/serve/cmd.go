// Package servecmd implements the `casefile serve` command.
package servecmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/go-ports/casefile/cmd/casefile/shared"
	"github.com/go-ports/casefile/internal/httpapi"
)

// Command implements `casefile serve`.
type Command struct {
	ctx  *shared.Context
	cmd  *cobra.Command
	addr string
}

// New creates the serve command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the intake HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}
	c.cmd.Flags().StringVar(&c.addr, "addr", "", "Listen address (default from config.yaml)")
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	svc, err := c.ctx.Service()
	if err != nil {
		return err
	}
	defer svc.Close()

	cfg := svc.Config.Server
	if c.addr != "" {
		cfg.Addr = c.addr
	}
	slog.Info("serving intake API", "addr", cfg.Addr, "home", svc.Home)
	return httpapi.New(svc, cfg).ListenAndServe(cmd.Context(), cfg.Addr)
}
