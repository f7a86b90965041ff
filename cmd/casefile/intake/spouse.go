package intakecmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/casefile/cmd/casefile/shared"
)

func newLinkSpouse(ctx *shared.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "link-spouse <client>",
		Short: "Link the spouse to an existing client (id or client code)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.LinkSpouse(cmd.Context(), ctx.Session, args[0])
			if err != nil {
				return err
			}
			return shared.PrintJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newUnlinkSpouse(ctx *shared.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink-spouse",
		Short: "Remove the spouse link from the session's intake form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.UnlinkSpouse(cmd.Context(), ctx.Session)
			if err != nil {
				return err
			}
			return shared.PrintJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newSpouse(ctx *shared.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "spouse",
		Short: "Show the linked spouse's client record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			s, err := svc.SpouseSummary(cmd.Context(), ctx.Session)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", s.Name, s.Code)
			if s.DateOfBirth != "" {
				fmt.Fprintf(out, "  Date of birth: %s\n", s.DateOfBirth)
			}
			if s.Gender != "" {
				fmt.Fprintf(out, "  Gender: %s\n", s.Gender)
			}
			if s.Income != "" {
				fmt.Fprintf(out, "  Income: %s\n", s.Income)
			}
			return nil
		},
	}
}
