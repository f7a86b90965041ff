package mcp

// White-box testing required: sessionArg, objectArg, truncate and formatDate
// are unexported helpers that shape tool arguments and responses. They are
// not reachable through the public NewServer API, so direct access is needed
// to cover their edge cases.

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/mark3labs/mcp-go/mcp"
)

func request(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = "test"
	req.Params.Arguments = args
	return req
}

// ---------------------------------------------------------------------------
// sessionArg
// ---------------------------------------------------------------------------

func TestSessionArg(t *testing.T) {
	c := qt.New(t)

	c.Assert(sessionArg(request(nil)), qt.Equals, "default")
	c.Assert(sessionArg(request(map[string]any{"session": ""})), qt.Equals, "default")
	c.Assert(sessionArg(request(map[string]any{"session": "desk-2"})), qt.Equals, "desk-2")
}

// ---------------------------------------------------------------------------
// objectArg
// ---------------------------------------------------------------------------

func TestObjectArg(t *testing.T) {
	c := qt.New(t)

	c.Run("object is re-encoded", func(c *qt.C) {
		got, err := objectArg(request(map[string]any{
			"patch": map[string]any{"firstName": "Ana"},
		}), "patch")
		c.Assert(err, qt.IsNil)
		c.Assert(string(got), qt.Equals, `{"firstName":"Ana"}`)
	})

	c.Run("missing", func(c *qt.C) {
		_, err := objectArg(request(map[string]any{}), "patch")
		c.Assert(err, qt.ErrorMatches, "patch is required")
	})

	c.Run("null", func(c *qt.C) {
		_, err := objectArg(request(map[string]any{"patch": nil}), "patch")
		c.Assert(err, qt.ErrorMatches, "patch is required")
	})

	c.Run("not an object", func(c *qt.C) {
		_, err := objectArg(request(map[string]any{"form": "x"}), "form")
		c.Assert(err, qt.ErrorMatches, "form must be an object")
	})
}

// ---------------------------------------------------------------------------
// truncate
// ---------------------------------------------------------------------------

func TestTruncate_HappyPath(t *testing.T) {
	c := qt.New(t)

	cases := []struct {
		name   string
		s      string
		maxLen int
		want   string
	}{
		{"shorter than limit", "hello", 10, "hello"},
		{"exactly limit", "hello", 5, "hello"},
		{"longer than limit", "hello world", 5, "hello"},
		{"unicode runes truncated correctly", "Muñoz", 3, "Muñ"},
		{"empty string", "", 10, ""},
	}

	for _, tc := range cases {
		c.Run(tc.name, func(c *qt.C) {
			c.Assert(truncate(tc.s, tc.maxLen), qt.Equals, tc.want)
		})
	}
}

// ---------------------------------------------------------------------------
// formatDate
// ---------------------------------------------------------------------------

func TestFormatDate(t *testing.T) {
	c := qt.New(t)

	c.Assert(formatDate(time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC)), qt.Equals, "Mar 07 2024")
	c.Assert(formatDate(time.Time{}), qt.Equals, "")
}
