// Package clientcmd implements the `casefile client` command group.
package clientcmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-ports/casefile/cmd/casefile/shared"
	"github.com/go-ports/casefile/internal/models"
)

// Command implements `casefile client`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the client command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "client",
		Short: "Look up clients and record housing changes",
		RunE:  func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	c.cmd.AddCommand(
		newShow(ctx),
		newSearch(ctx),
		newHousing(ctx),
		newHistory(ctx),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func newShow(ctx *shared.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "show <client>",
		Short: "Print a client record (id or client code)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			client, err := svc.GetClient(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return shared.PrintJSON(cmd.OutOrStdout(), client)
		},
	}
}

func newSearch(ctx *shared.Context) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Find clients by name or client code prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var query string
			if len(args) == 1 {
				query = args[0]
			}
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			clients, err := svc.SearchClients(cmd.Context(), query, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(clients) == 0 {
				fmt.Fprintln(out, "No clients found.")
				return nil
			}
			fmt.Fprintf(out, "\n Clients (%d found) \n\n", len(clients))
			for i := range clients {
				fmt.Fprintln(out, " "+clientLine(&clients[i]))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")
	return cmd
}

func clientLine(c *models.Client) string {
	parts := []string{c.Code, c.FullName()}
	if c.DateOfBirth != "" {
		parts = append(parts, "born "+c.DateOfBirth)
	}
	if c.HousingStatus != "" {
		parts = append(parts, c.HousingStatus)
	}
	return strings.Join(parts, " | ")
}

func newHousing(ctx *shared.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "housing <client> <status>",
		Short: "Record a new housing status (" + strings.Join(models.ValidHousingStatuses, ", ") + ")",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			client, err := svc.UpdateHousingStatus(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", client.Code, client.HousingStatus)
			return nil
		},
	}
}

func newHistory(ctx *shared.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "history <client>",
		Short: "Print a client's housing history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			history, err := svc.HousingHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(history) == 0 {
				fmt.Fprintln(out, "No housing history.")
				return nil
			}
			for _, h := range history {
				fmt.Fprintf(out, "%s  %s\n", h.RecordedAt.Format("2006-01-02 15:04"), h.Status)
			}
			return nil
		},
	}
}
