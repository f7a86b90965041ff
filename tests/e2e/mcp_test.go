// Package e2e_test: MCP server end-to-end tests.
//
// Each test wires the real MCP server in-process via the mcp-go
// InProcessTransport, backed by a fresh service.Service rooted at a
// temporary directory. The full stack (service, db, derive engine, mcp
// handler, mcp-go server, in-process client) runs in the test process.
package e2e_test

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	json "github.com/goccy/go-json"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/go-ports/casefile/internal/checkers"
	internalmcp "github.com/go-ports/casefile/internal/mcp"
	"github.com/go-ports/casefile/internal/service"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// newMCPClient creates an initialized in-process MCP client backed by a
// fresh service rooted at c.TB.TempDir().
func newMCPClient(c *qt.C) *mcpclient.Client {
	c.TB.Helper()

	svc, err := service.New(c.TB.TempDir())
	c.Assert(err, qt.IsNil)
	c.TB.Cleanup(func() { _ = svc.Close() })

	cl, err := mcpclient.NewInProcessClient(internalmcp.NewServer(svc))
	c.Assert(err, qt.IsNil)
	c.TB.Cleanup(func() { _ = cl.Close() })

	c.Assert(cl.Start(context.Background()), qt.IsNil)

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "e2e-test", Version: "0.0.1"}
	_, err = cl.Initialize(context.Background(), initReq)
	c.Assert(err, qt.IsNil)

	return cl
}

// callTool invokes the named tool and returns the text of its single content
// item along with the result's error flag.
func callTool(c *qt.C, cl *mcpclient.Client, name string, args map[string]any) (string, bool) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := cl.CallTool(context.Background(), req)
	c.Assert(err, qt.IsNil)
	c.Assert(result.Content, qt.HasLen, 1)

	tc, ok := mcp.AsTextContent(result.Content[0])
	c.Assert(ok, qt.IsTrue)

	return tc.Text, result.IsError
}

func mustCall(c *qt.C, cl *mcpclient.Client, name string, args map[string]any) string {
	text, isErr := callTool(c, cl, name, args)
	c.Assert(isErr, qt.IsFalse, qt.Commentf("%s: %s", name, text))
	return text
}

func completeForm() map[string]any {
	return map[string]any{
		"firstName":       "Maria",
		"lastName":        "Lopez",
		"dateOfBirth":     "1990-06-16",
		"gender":          "Female",
		"housingStatus":   "Unhoused",
		"maritalStatus":   "Single",
		"headOfHousehold": "No",
	}
}

// ---------------------------------------------------------------------------
// ListTools
// ---------------------------------------------------------------------------

func TestMCPListTools_HappyPath(t *testing.T) {
	c := qt.New(t)
	cl := newMCPClient(c)

	result, err := cl.ListTools(context.Background(), mcp.ListToolsRequest{})
	c.Assert(err, qt.IsNil)
	c.Assert(result.Tools, qt.HasLen, 10)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	for _, want := range []string{
		"intake_update", "intake_show", "intake_validate", "intake_derive", "intake_clear",
		"intake_submit", "client_search", "spouse_link", "spouse_unlink", "spouse_summary",
	} {
		c.Assert(names, qt.Contains, want)
	}
}

// ---------------------------------------------------------------------------
// Intake tools
// ---------------------------------------------------------------------------

func TestMCPIntakeUpdate_HappyPath(t *testing.T) {
	c := qt.New(t)
	cl := newMCPClient(c)

	text := mustCall(c, cl, "intake_update", map[string]any{
		"session": "desk1",
		"patch": map[string]any{
			"headOfHousehold": "Yes",
			"familySize":      "4",
			"income":          "12a",
		},
	})
	c.Assert(text, checkers.JSONPathEquals("$.form.familyMembersServiced"), "4")
	c.Assert(text, checkers.JSONPathEquals("$.warnings[0].field"), "income")

	text = mustCall(c, cl, "intake_show", map[string]any{"session": "desk1"})
	c.Assert(text, checkers.JSONPathEquals("$.form.familySize"), "4")

	text = mustCall(c, cl, "intake_show", map[string]any{})
	c.Assert(text, qt.Not(qt.Contains), "familySize")
}

func TestMCPIntakeUpdate_FailurePath(t *testing.T) {
	c := qt.New(t)
	cl := newMCPClient(c)

	text, isErr := callTool(c, cl, "intake_update", map[string]any{"patch": "firstName=Ana"})
	c.Assert(isErr, qt.IsTrue)
	c.Assert(text, qt.Equals, "patch must be an object")

	text, isErr = callTool(c, cl, "intake_update", map[string]any{})
	c.Assert(isErr, qt.IsTrue)
	c.Assert(text, qt.Equals, "patch is required")
}

func TestMCPIntakeValidateAndDerive(t *testing.T) {
	c := qt.New(t)
	cl := newMCPClient(c)

	mustCall(c, cl, "intake_update", map[string]any{"patch": map[string]any{"firstName": "Ana"}})

	text := mustCall(c, cl, "intake_validate", map[string]any{})
	c.Assert(text, checkers.JSONPathEquals("$.ok"), true)

	text = mustCall(c, cl, "intake_validate", map[string]any{"mode": "full"})
	c.Assert(text, checkers.JSONPathEquals("$.ok"), false)
	c.Assert(text, checkers.JSONPathEquals("$.errors.lastName"), "This field is required")

	text = mustCall(c, cl, "intake_derive", map[string]any{"form": map[string]any{
		"headOfHousehold":    "Yes",
		"familySize":         "3",
		"spouseClientStatus": "Yes",
	}})
	c.Assert(text, checkers.JSONPathEquals("$.form.familyMembersServiced"), "2")

	text = mustCall(c, cl, "intake_clear", map[string]any{})
	c.Assert(text, checkers.JSONPathEquals("$.cleared"), true)

	text = mustCall(c, cl, "intake_show", map[string]any{})
	c.Assert(text, qt.Not(qt.Contains), "Ana")
}

func TestMCPIntakeSubmit(t *testing.T) {
	c := qt.New(t)
	cl := newMCPClient(c)

	text, isErr := callTool(c, cl, "intake_submit", map[string]any{})
	c.Assert(isErr, qt.IsTrue)
	var failure map[string]any
	c.Assert(json.Unmarshal([]byte(text), &failure), qt.IsNil)
	c.Assert(failure["message"], qt.Equals, service.ErrInvalidForm.Error())
	c.Assert(text, checkers.JSONPathEquals("$.errors.firstName"), "This field is required")

	mustCall(c, cl, "intake_update", map[string]any{"patch": completeForm()})
	text = mustCall(c, cl, "intake_submit", map[string]any{})
	c.Assert(text, checkers.JSONPathEquals("$.clientCode"), "CF-00001")

	text = mustCall(c, cl, "client_search", map[string]any{"query": "mar lop"})
	c.Assert(text, checkers.JSONPathEquals("$[0].clientCode"), "CF-00001")
	c.Assert(text, checkers.JSONPathEquals("$[0].name"), "Maria Lopez")

	text = mustCall(c, cl, "client_search", map[string]any{"query": "nobody"})
	c.Assert(text, qt.Equals, "[]")
}

// ---------------------------------------------------------------------------
// Spouse tools
// ---------------------------------------------------------------------------

func TestMCPSpouseLink(t *testing.T) {
	c := qt.New(t)
	cl := newMCPClient(c)

	mustCall(c, cl, "intake_update", map[string]any{"session": "a", "patch": completeForm()})
	mustCall(c, cl, "intake_submit", map[string]any{"session": "a"})

	_, isErr := callTool(c, cl, "spouse_link", map[string]any{"session": "b", "client": "CF-00001"})
	c.Assert(isErr, qt.IsTrue)

	mustCall(c, cl, "intake_update", map[string]any{"session": "b", "patch": map[string]any{
		"maritalStatus":      "Married",
		"spouseClientStatus": "Yes",
	}})
	text := mustCall(c, cl, "spouse_link", map[string]any{"session": "b", "client": "CF-00001"})
	c.Assert(text, qt.Contains, "associatedSpouseID")

	text = mustCall(c, cl, "spouse_summary", map[string]any{"session": "b"})
	c.Assert(text, checkers.JSONPathEquals("$.name"), "Maria Lopez")

	text = mustCall(c, cl, "spouse_unlink", map[string]any{"session": "b"})
	c.Assert(text, qt.Not(qt.Contains), "associatedSpouseID")

	_, isErr = callTool(c, cl, "spouse_summary", map[string]any{"session": "b"})
	c.Assert(isErr, qt.IsTrue)
}
