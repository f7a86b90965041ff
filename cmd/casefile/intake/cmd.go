// Package intakecmd implements the `casefile intake` command group.
package intakecmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/go-ports/casefile/cmd/casefile/shared"
	"github.com/go-ports/casefile/internal/models"
	"github.com/go-ports/casefile/internal/schema"
	"github.com/go-ports/casefile/internal/service"
)

// Command implements `casefile intake`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the intake command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "intake",
		Short: "Fill in, check and submit an intake form",
		RunE:  func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	c.cmd.AddCommand(
		newUpdate(ctx),
		newShow(ctx),
		newValidate(ctx),
		newDerive(ctx),
		newClear(ctx),
		newSessions(ctx),
		newSubmit(ctx),
		newLinkSpouse(ctx),
		newUnlinkSpouse(ctx),
		newSpouse(ctx),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

// ---------------------------------------------------------------------------
// intake update
// ---------------------------------------------------------------------------

func newUpdate(ctx *shared.Context) *cobra.Command {
	var (
		sets  []string
		patch string
		file  string
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Merge changes into the session's intake form",
		Long: `Merge changes into the session's intake form and print the re-derived form.

Changes come from a JSON merge patch (--patch or --file) and/or --set key=value
pairs, applied in that order. Nested keys use dots (spouse.spouseFirstName=Ana);
an empty value clears the field.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := buildPatch(cmd, patch, file, sets)
			if err != nil {
				return err
			}
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.UpdateIntake(cmd.Context(), ctx.Session, body)
			if err != nil {
				return err
			}
			return shared.PrintJSON(cmd.OutOrStdout(), res)
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&sets, "set", nil, "Set a field: key=value (repeatable)")
	f.StringVar(&patch, "patch", "", "JSON merge patch")
	f.StringVar(&file, "file", "", "Read a JSON merge patch from a file (- for stdin)")
	return cmd
}

// buildPatch combines the patch sources of `intake update` into one JSON
// object.
func buildPatch(cmd *cobra.Command, patch, file string, sets []string) ([]byte, error) {
	doc := make(map[string]any)

	if file != "" {
		data, err := readInput(cmd, file)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("--file: %w", err)
		}
	}
	if patch != "" {
		var p map[string]any
		if err := json.Unmarshal([]byte(patch), &p); err != nil {
			return nil, fmt.Errorf("--patch: %w", err)
		}
		for k, v := range p {
			doc[k] = v
		}
	}
	if err := applySets(doc, sets); err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		return nil, errors.New("nothing to update: use --set, --patch or --file")
	}
	return json.Marshal(doc)
}

// applySets writes each key=value pair into doc. Dotted keys address nested
// objects and an empty value becomes null.
func applySets(doc map[string]any, sets []string) error {
	for _, kv := range sets {
		key, val, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("--set %q: want key=value", kv)
		}
		keys := strings.Split(key, ".")
		m := doc
		for _, k := range keys[:len(keys)-1] {
			next, ok := m[k].(map[string]any)
			if !ok {
				next = make(map[string]any)
				m[k] = next
			}
			m = next
		}
		last := keys[len(keys)-1]
		if val == "" {
			m[last] = nil
		} else {
			m[last] = val
		}
	}
	return nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

// ---------------------------------------------------------------------------
// intake show / validate / derive / clear
// ---------------------------------------------------------------------------

func newShow(ctx *shared.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the session's intake form and its warnings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.ShowIntake(cmd.Context(), ctx.Session)
			if err != nil {
				return err
			}
			return shared.PrintJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newValidate(ctx *shared.Context) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the session's intake form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			m := schema.ParseMode(mode)
			res, err := svc.ValidateIntake(cmd.Context(), ctx.Session, m)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.OK {
				fmt.Fprintf(out, "Form is valid (%s).\n", m)
				return nil
			}
			printFieldErrors(out, res.Errors)
			return fmt.Errorf("form is not valid (%s): %d field(s)", m, len(res.Errors))
		},
	}
	cmd.Flags().StringVar(&mode, "mode", schema.Partial.String(), "Validation mode: partial or full")
	return cmd
}

func newDerive(ctx *shared.Context) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive the computed fields of a form read from a file or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			var form models.IntakeForm
			if err := json.Unmarshal(data, &form); err != nil {
				return fmt.Errorf("derive: %w", err)
			}
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			return shared.PrintJSON(cmd.OutOrStdout(), svc.DeriveFields(&form))
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "Form JSON file (- for stdin)")
	return cmd
}

func newClear(ctx *shared.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Discard the session's intake form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.ClearIntake(cmd.Context(), ctx.Session); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared intake session %q.\n", ctx.Session)
			return nil
		},
	}
}

func newSessions(ctx *shared.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List intake sessions with a saved draft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			ids, err := svc.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "No saved drafts.")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// intake submit
// ---------------------------------------------------------------------------

func newSubmit(ctx *shared.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Create a client record from the session's intake form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			out := cmd.OutOrStdout()
			res, err := svc.SubmitIntake(cmd.Context(), ctx.Session)
			var verr *service.ValidationError
			if errors.As(err, &verr) {
				printFieldErrors(out, verr.Result.Errors)
				return err
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Created client %s (%s)\n", res.Code, res.ID)
			if res.FilePath != "" {
				fmt.Fprintf(out, "Case file: %s\n", res.FilePath)
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(out, "Warning: %s: %s\n", w.Field, w.Message)
			}
			return nil
		},
	}
}

func printFieldErrors(w io.Writer, errs map[string]string) {
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(w, "  %s: %s\n", f, errs[f])
	}
}
