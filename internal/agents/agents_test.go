package agents_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/casefile/internal/agents"
	"github.com/go-ports/casefile/internal/checkers"
)

// ---------------------------------------------------------------------------
// Parse / ConfigPath
// ---------------------------------------------------------------------------

func TestParse(t *testing.T) {
	c := qt.New(t)

	a, err := agents.Parse("cursor")
	c.Assert(err, qt.IsNil)
	c.Assert(a, qt.Equals, agents.Cursor)

	_, err = agents.Parse("vim")
	c.Assert(errors.Is(err, agents.ErrUnknownAgent), qt.IsTrue)
}

func TestConfigPath(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		agent   agents.Agent
		project bool
		want    string
	}{
		{agents.ClaudeCode, false, "/u/.claude.json"},
		{agents.ClaudeCode, true, "/u/.mcp.json"},
		{agents.Cursor, false, "/u/.cursor/mcp.json"},
		{agents.Codex, false, "/u/.codex/config.toml"},
		{agents.OpenCode, false, "/u/.config/opencode/opencode.json"},
		{agents.OpenCode, true, "/u/opencode.json"},
	}
	for _, tt := range tests {
		got, err := agents.ConfigPath(tt.agent, "/u", tt.project)
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Equals, filepath.FromSlash(tt.want))
	}

	_, err := agents.ConfigPath("vim", "/u", false)
	c.Assert(err, qt.ErrorIs, agents.ErrUnknownAgent)
}

// ---------------------------------------------------------------------------
// JSON agents
// ---------------------------------------------------------------------------

func TestInstall_JSON(t *testing.T) {
	c := qt.New(t)

	c.Run("first install writes a stdio entry", func(c *qt.C) {
		path := filepath.Join(c.TB.TempDir(), ".mcp.json")

		added, err := agents.Install(agents.ClaudeCode, path, agents.Server{Home: "/data/cases"})
		c.Assert(err, qt.IsNil)
		c.Assert(added, qt.IsTrue)

		data, err := os.ReadFile(path)
		c.Assert(err, qt.IsNil)
		c.Assert(data, checkers.JSONPathEquals("$.mcpServers.casefile.command"), "casefile")
		c.Assert(data, checkers.JSONPathEquals("$.mcpServers.casefile.type"), "stdio")
		c.Assert(data, checkers.JSONPathEquals("$.mcpServers.casefile.env.CASEFILE_HOME"), "/data/cases")
	})

	c.Run("second install is a no-op and other servers survive", func(c *qt.C) {
		path := filepath.Join(c.TB.TempDir(), "mcp.json")
		c.Assert(os.WriteFile(path, []byte(`{"mcpServers":{"other":{"command":"x"}}}`), 0o600), qt.IsNil)

		added, err := agents.Install(agents.Cursor, path, agents.Server{})
		c.Assert(err, qt.IsNil)
		c.Assert(added, qt.IsTrue)
		added, err = agents.Install(agents.Cursor, path, agents.Server{})
		c.Assert(err, qt.IsNil)
		c.Assert(added, qt.IsFalse)

		data, err := os.ReadFile(path)
		c.Assert(err, qt.IsNil)
		c.Assert(data, checkers.JSONPathEquals("$.mcpServers.other.command"), "x")
	})

	c.Run("opencode uses its own shape", func(c *qt.C) {
		path := filepath.Join(c.TB.TempDir(), "opencode.json")

		_, err := agents.Install(agents.OpenCode, path, agents.Server{Command: "/bin/casefile"})
		c.Assert(err, qt.IsNil)

		data, err := os.ReadFile(path)
		c.Assert(err, qt.IsNil)
		c.Assert(data, checkers.JSONPathEquals("$.mcp.casefile.type"), "local")
		c.Assert(data, checkers.JSONPathEquals("$.mcp.casefile.command"), []any{"/bin/casefile", "mcp"})
	})

	c.Run("a malformed file is left alone", func(c *qt.C) {
		path := filepath.Join(c.TB.TempDir(), "mcp.json")
		c.Assert(os.WriteFile(path, []byte(`{not json`), 0o600), qt.IsNil)

		_, err := agents.Install(agents.Cursor, path, agents.Server{})
		c.Assert(err, qt.IsNotNil)
		data, err := os.ReadFile(path)
		c.Assert(err, qt.IsNil)
		c.Assert(string(data), qt.Equals, `{not json`)
	})
}

func TestUninstall_JSON(t *testing.T) {
	c := qt.New(t)

	c.Run("file holding only the casefile entry is removed", func(c *qt.C) {
		path := filepath.Join(c.TB.TempDir(), ".mcp.json")
		_, err := agents.Install(agents.ClaudeCode, path, agents.Server{})
		c.Assert(err, qt.IsNil)

		removed, err := agents.Uninstall(agents.ClaudeCode, path)
		c.Assert(err, qt.IsNil)
		c.Assert(removed, qt.IsTrue)
		_, err = os.Stat(path)
		c.Assert(os.IsNotExist(err), qt.IsTrue)
	})

	c.Run("other keys are kept", func(c *qt.C) {
		path := filepath.Join(c.TB.TempDir(), ".claude.json")
		c.Assert(os.WriteFile(path, []byte(`{"theme":"dark"}`), 0o600), qt.IsNil)
		_, err := agents.Install(agents.ClaudeCode, path, agents.Server{})
		c.Assert(err, qt.IsNil)

		removed, err := agents.Uninstall(agents.ClaudeCode, path)
		c.Assert(err, qt.IsNil)
		c.Assert(removed, qt.IsTrue)
		data, err := os.ReadFile(path)
		c.Assert(err, qt.IsNil)
		c.Assert(data, checkers.JSONPathEquals("$.theme"), "dark")
		c.Assert(string(data), qt.Not(qt.Contains), "casefile")
	})

	c.Run("missing file reports nothing removed", func(c *qt.C) {
		removed, err := agents.Uninstall(agents.Cursor, filepath.Join(c.TB.TempDir(), "none.json"))
		c.Assert(err, qt.IsNil)
		c.Assert(removed, qt.IsFalse)
	})
}

// ---------------------------------------------------------------------------
// Codex TOML
// ---------------------------------------------------------------------------

func TestCodexTOML(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(t.TempDir(), ".codex", "config.toml")
	c.Assert(os.MkdirAll(filepath.Dir(path), 0o755), qt.IsNil)
	existing := "# my settings\nmodel = \"o4\"\n\n[mcp_servers.other]\ncommand = \"x\"\n"
	c.Assert(os.WriteFile(path, []byte(existing), 0o600), qt.IsNil)

	added, err := agents.Install(agents.Codex, path, agents.Server{Home: "/data/cases"})
	c.Assert(err, qt.IsNil)
	c.Assert(added, qt.IsTrue)

	data, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	content := string(data)
	c.Assert(content, qt.Contains, "[mcp_servers.casefile]\ncommand = \"casefile\"\nargs = [\"mcp\"]\n")
	c.Assert(content, qt.Contains, `env = { CASEFILE_HOME = "/data/cases" }`)

	added, err = agents.Install(agents.Codex, path, agents.Server{})
	c.Assert(err, qt.IsNil)
	c.Assert(added, qt.IsFalse)

	removed, err := agents.Uninstall(agents.Codex, path)
	c.Assert(err, qt.IsNil)
	c.Assert(removed, qt.IsTrue)

	data, err = os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, strings.TrimRight(existing, "\n")+"\n")

	removed, err = agents.Uninstall(agents.Codex, path)
	c.Assert(err, qt.IsNil)
	c.Assert(removed, qt.IsFalse)
}
