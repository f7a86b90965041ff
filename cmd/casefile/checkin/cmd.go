// Package checkincmd implements the `casefile checkin` command group.
package checkincmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-ports/casefile/cmd/casefile/shared"
)

// Command implements `casefile checkin`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the checkin command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "checkin",
		Short: "Schedule and list client check-ins",
		RunE:  func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	c.cmd.AddCommand(newSchedule(ctx), newList(ctx))
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.DateOnly,
}

// parseWhen reads --at in one of timeLayouts, in local time unless a zone is
// given, or adds --in to now.
func parseWhen(at string, in time.Duration, now time.Time) (time.Time, error) {
	switch {
	case at != "" && in != 0:
		return time.Time{}, errors.New("use either --at or --in, not both")
	case in > 0:
		return now.Add(in), nil
	case in < 0:
		return time.Time{}, errors.New("--in must be positive")
	case at == "":
		return time.Time{}, errors.New("--at or --in is required")
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, at, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("--at %q: want YYYY-MM-DD[ HH:MM] or RFC 3339", at)
}

func newSchedule(ctx *shared.Context) *cobra.Command {
	var (
		at   string
		in   time.Duration
		note string
	)
	cmd := &cobra.Command{
		Use:   "schedule <client>",
		Short: "Schedule a check-in with a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := parseWhen(at, in, time.Now())
			if err != nil {
				return err
			}
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			ci, err := svc.ScheduleCheckIn(cmd.Context(), args[0], when, note)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Check-in %s scheduled for %s\n",
				ci.ID, ci.ScheduledAt.Local().Format("2006-01-02 15:04"))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&at, "at", "", "When: YYYY-MM-DD, YYYY-MM-DD HH:MM or RFC 3339")
	f.DurationVar(&in, "in", 0, "When, relative to now (e.g. 48h)")
	f.StringVar(&note, "note", "", "Note for the check-in")
	return cmd
}

func newList(ctx *shared.Context) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list [client]",
		Short: "List upcoming check-ins, for one client or all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ref string
			if len(args) == 1 {
				ref = args[0]
			}
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			list, err := svc.ListCheckIns(cmd.Context(), ref, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No upcoming check-ins.")
				return nil
			}
			for _, ci := range list {
				line := fmt.Sprintf("%s  %s  %s", ci.ScheduledAt.Local().Format("2006-01-02 15:04"), ci.ClientID, ci.Status)
				if ci.Note != "" {
					line += "  " + ci.Note
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of check-ins")
	return cmd
}
