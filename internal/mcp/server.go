// Package mcp provides the stdio MCP server exposing intake tools to agents.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/go-ports/casefile/internal/buildinfo"
	"github.com/go-ports/casefile/internal/models"
	"github.com/go-ports/casefile/internal/schema"
	"github.com/go-ports/casefile/internal/service"
)

const updateDescription = `Merge a partial update into the intake form of a session and return the re-derived form with its warnings.

The patch is a JSON merge patch over the form: keys you send replace the stored values, keys set to null are cleared, and arrays such as "dependent" and "pets" are replaced whole. Derived fields (ages, dependent totalIncome, familyMembersServiced) are recomputed on every update; do not set them.

Warnings are advisory. They never block an update or a submission.`

const submitDescription = `Submit the intake form of a session. The form is validated in full mode first; on failure the field errors are returned and nothing is saved. On success a client record with a new client code is created and the session's draft is cleared.`

const linkDescription = `Link the session's spouse to an existing client. Only allowed when maritalStatus is "Married" and spouseClientStatus is "Yes". Use client_search to find the client first.`

// NewServer creates and registers all intake tools on a new MCP server.
// It is separate from Serve so that tests and other callers can obtain a
// fully configured server without committing to the stdio transport.
func NewServer(svc *service.Service) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("casefile", buildinfo.Version)
	registerTools(s, svc)
	return s
}

// Serve starts the stdio MCP server for home, blocking until stdin closes.
func Serve(_ context.Context, home string) error {
	svc, err := service.New(home)
	if err != nil {
		return fmt.Errorf("mcp: init service: %w", err)
	}
	defer svc.Close()

	return mcpserver.ServeStdio(NewServer(svc))
}

func sessionOption() mcp.ToolOption {
	return mcp.WithString("session",
		mcp.Description("Intake session id (default \""+service.DefaultSession+"\")."),
	)
}

// registerTools wires every MCP tool into the server.
func registerTools(s *mcpserver.MCPServer, svc *service.Service) {
	s.AddTool(mcp.NewTool("intake_update",
		mcp.WithDescription(updateDescription),
		sessionOption(),
		mcp.WithObject("patch",
			mcp.Description("Partial intake form, e.g. {\"firstName\":\"Ana\",\"dateOfBirth\":\"1990-04-01\"}."),
			mcp.Required(),
		),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleUpdate(ctx, svc, req)
	})

	s.AddTool(mcp.NewTool("intake_show",
		mcp.WithDescription("Show the session's current intake form and its warnings."),
		sessionOption(),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := svc.ShowIntake(ctx, sessionArg(req))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(res)
	})

	s.AddTool(mcp.NewTool("intake_validate",
		mcp.WithDescription("Validate the session's intake form. partial checks the values present; full also checks the fields required to submit."),
		sessionOption(),
		mcp.WithString("mode",
			mcp.Description("Validation mode (default partial)."),
			mcp.Enum(schema.Partial.String(), schema.Full.String()),
		),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		mode := schema.ParseMode(req.GetString("mode", ""))
		res, err := svc.ValidateIntake(ctx, sessionArg(req), mode)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(res)
	})

	s.AddTool(mcp.NewTool("intake_derive",
		mcp.WithDescription("Derive the computed fields of a form snapshot without saving anything."),
		mcp.WithObject("form",
			mcp.Description("A complete intake form."),
			mcp.Required(),
		),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := objectArg(req, "form")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var form models.IntakeForm
		if err := json.Unmarshal(raw, &form); err != nil {
			return mcp.NewToolResultError("form: " + err.Error()), nil
		}
		return jsonResult(svc.DeriveFields(&form))
	})

	s.AddTool(mcp.NewTool("intake_clear",
		mcp.WithDescription("Discard the session's intake form and its saved draft."),
		sessionOption(),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		session := sessionArg(req)
		if err := svc.ClearIntake(ctx, session); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"session": session, "cleared": true})
	})

	s.AddTool(mcp.NewTool("intake_submit",
		mcp.WithDescription(submitDescription),
		sessionOption(),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSubmit(ctx, svc, req)
	})

	s.AddTool(mcp.NewTool("client_search",
		mcp.WithDescription("Find clients whose first name, last name or client code starts with every term of the query."),
		mcp.WithString("query",
			mcp.Description("Search terms. Empty lists the newest clients."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default 10)"),
		),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSearch(ctx, svc, req)
	})

	s.AddTool(mcp.NewTool("spouse_link",
		mcp.WithDescription(linkDescription),
		sessionOption(),
		mcp.WithString("client",
			mcp.Description("Client id or client code of the spouse."),
			mcp.Required(),
		),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := svc.LinkSpouse(ctx, sessionArg(req), req.GetString("client", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(res)
	})

	s.AddTool(mcp.NewTool("spouse_unlink",
		mcp.WithDescription("Remove the session's spouse link."),
		sessionOption(),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := svc.UnlinkSpouse(ctx, sessionArg(req))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(res)
	})

	s.AddTool(mcp.NewTool("spouse_summary",
		mcp.WithDescription("Show the read-only record of the spouse linked on the session's form."),
		sessionOption(),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		summary, err := svc.SpouseSummary(ctx, sessionArg(req))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(summary)
	})
}

// ---------------------------------------------------------------------------
// Tool handlers
// ---------------------------------------------------------------------------

func handleUpdate(ctx context.Context, svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	patch, err := objectArg(req, "patch")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := svc.UpdateIntake(ctx, sessionArg(req), patch)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func handleSubmit(ctx context.Context, svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := svc.SubmitIntake(ctx, sessionArg(req))
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		b, _ := json.Marshal(map[string]any{
			"message": service.ErrInvalidForm.Error(),
			"errors":  verr.Result.Errors,
		})
		return mcp.NewToolResultError(string(b)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func handleSearch(ctx context.Context, svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}
	clients, err := svc.SearchClients(ctx, req.GetString("query", ""), limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out := make([]map[string]any, 0, len(clients))
	for i := range clients {
		c := &clients[i]
		out = append(out, map[string]any{
			"id":            c.ID,
			"clientCode":    c.Code,
			"name":          truncate(c.FullName(), 80),
			"dateOfBirth":   c.DateOfBirth,
			"housingStatus": c.HousingStatus,
			"created":       formatDate(c.CreatedAt),
		})
	}
	return jsonResult(out)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func sessionArg(req mcp.CallToolRequest) string {
	if s := req.GetString("session", ""); s != "" {
		return s
	}
	return service.DefaultSession
}

// objectArg returns the JSON encoding of the object argument name.
func objectArg(req mcp.CallToolRequest, name string) ([]byte, error) {
	v, ok := req.GetArguments()[name]
	if !ok || v == nil {
		return nil, fmt.Errorf("%s is required", name)
	}
	if _, ok := v.(map[string]any); !ok {
		return nil, fmt.Errorf("%s must be an object", name)
	}
	return json.Marshal(v)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return s
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 02 2006")
}
