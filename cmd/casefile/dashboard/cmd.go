// Package dashboardcmd implements the `casefile dashboard` command.
package dashboardcmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/go-ports/casefile/cmd/casefile/shared"
	"github.com/go-ports/casefile/internal/models"
)

// Command implements `casefile dashboard`.
type Command struct {
	ctx  *shared.Context
	cmd  *cobra.Command
	json bool
}

// New creates the dashboard command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "dashboard",
		Short: "Summarise the caseload",
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}
	c.cmd.Flags().BoolVar(&c.json, "json", false, "Print the dashboard as JSON")
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

	dash, err := svc.Dashboard(cmd.Context())
	if err != nil {
		return err
	}
	if c.json {
		return shared.PrintJSON(cmd.OutOrStdout(), dash)
	}
	render(cmd.OutOrStdout(), dash)
	return nil
}

func render(w io.Writer, dash *models.Dashboard) {
	fmt.Fprintf(w, "Clients: %d\n\n", dash.TotalClients)
	fmt.Fprintln(w, "By housing status:")
	for _, status := range models.ValidHousingStatuses {
		fmt.Fprintf(w, "  %-22s %d\n", status, dash.ByHousingStatus[status])
	}
	if n := dash.ByHousingStatus[""]; n > 0 {
		fmt.Fprintf(w, "  %-22s %d\n", "(none)", n)
	}

	fmt.Fprintln(w)
	if len(dash.UpcomingCheckIns) == 0 {
		fmt.Fprintln(w, "No upcoming check-ins.")
		return
	}
	fmt.Fprintln(w, "Upcoming check-ins:")
	for _, ci := range dash.UpcomingCheckIns {
		fmt.Fprintf(w, "  %s  %s\n", ci.ScheduledAt.Local().Format("2006-01-02 15:04"), ci.ClientID)
	}
}
