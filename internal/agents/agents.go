// Package agents registers the casefile MCP server with coding agents
// (Claude Code, Cursor, Codex, OpenCode) and removes it again.
package agents

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/go-ports/casefile/internal/config"
)

// Agent names a supported coding agent.
type Agent string

// Supported agents.
const (
	ClaudeCode Agent = "claude-code"
	Cursor     Agent = "cursor"
	Codex      Agent = "codex"
	OpenCode   Agent = "opencode"
)

// All lists the supported agents in display order.
var All = []Agent{ClaudeCode, Cursor, Codex, OpenCode}

// ErrUnknownAgent is returned for an agent name outside All.
var ErrUnknownAgent = errors.New("unknown agent")

// serverName is the key of the casefile entry in agent configs.
const serverName = "casefile"

// Server describes how an agent launches the MCP server.
type Server struct {
	// Command is the casefile executable; empty means "casefile" on PATH.
	Command string
	// Home pins CASEFILE_HOME for the server when set.
	Home string
}

func (s Server) command() string {
	if s.Command == "" {
		return "casefile"
	}
	return s.Command
}

// Parse returns the Agent named by s.
func Parse(s string) (Agent, error) {
	for _, a := range All {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownAgent, s)
}

// ConfigPath returns the file agent reads MCP servers from. base is the
// user's home directory, or the project directory when project is set.
//
//revive:disable:flag-parameter
func ConfigPath(agent Agent, base string, project bool) (string, error) {
	switch agent {
	case ClaudeCode:
		if project {
			return filepath.Join(base, ".mcp.json"), nil
		}
		return filepath.Join(base, ".claude.json"), nil
	case Cursor:
		return filepath.Join(base, ".cursor", "mcp.json"), nil
	case Codex:
		return filepath.Join(base, ".codex", "config.toml"), nil
	case OpenCode:
		if project {
			return filepath.Join(base, "opencode.json"), nil
		}
		return filepath.Join(base, ".config", "opencode", "opencode.json"), nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownAgent, agent)
}

//revive:enable:flag-parameter

// Install adds the casefile server to the agent config at path. It reports
// false when an entry already exists.
func Install(agent Agent, path string, srv Server) (bool, error) {
	switch agent {
	case ClaudeCode, Cursor:
		return installJSON(path, "mcpServers", stdioEntry(srv))
	case OpenCode:
		return installJSON(path, "mcp", opencodeEntry(srv))
	case Codex:
		return installTOML(path, srv)
	}
	return false, fmt.Errorf("%w %q", ErrUnknownAgent, agent)
}

// Uninstall removes the casefile server from the agent config at path. It
// reports false when there was nothing to remove.
func Uninstall(agent Agent, path string) (bool, error) {
	switch agent {
	case ClaudeCode, Cursor:
		return uninstallJSON(path, "mcpServers")
	case OpenCode:
		return uninstallJSON(path, "mcp")
	case Codex:
		return uninstallTOML(path)
	}
	return false, fmt.Errorf("%w %q", ErrUnknownAgent, agent)
}

// ---------------------------------------------------------------------------
// Entries
// ---------------------------------------------------------------------------

func stdioEntry(srv Server) map[string]any {
	e := map[string]any{
		"type":    "stdio",
		"command": srv.command(),
		"args":    []any{"mcp"},
	}
	if srv.Home != "" {
		e["env"] = map[string]any{config.EnvHome: srv.Home}
	}
	return e
}

func opencodeEntry(srv Server) map[string]any {
	e := map[string]any{
		"type":    "local",
		"command": []any{srv.command(), "mcp"},
	}
	if srv.Home != "" {
		e["environment"] = map[string]any{config.EnvHome: srv.Home}
	}
	return e
}

// ---------------------------------------------------------------------------
// JSON configs
// ---------------------------------------------------------------------------

// readJSON returns the object stored at path, or an empty one when the file
// is missing. A file that is not a JSON object is an error so that Install
// never overwrites it.
func readJSON(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return make(map[string]any), nil
	}
	if err != nil {
		return nil, err
	}
	m := make(map[string]any)
	if len(strings.TrimSpace(string(data))) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func writeJSON(path string, data map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644) // #nosec G306 -- agent MCP config holds no secrets
}

func installJSON(path, key string, entry map[string]any) (bool, error) {
	data, err := readJSON(path)
	if err != nil {
		return false, err
	}
	servers, _ := data[key].(map[string]any)
	if servers == nil {
		servers = make(map[string]any)
		data[key] = servers
	}
	if _, exists := servers[serverName]; exists {
		return false, nil
	}
	servers[serverName] = entry
	return true, writeJSON(path, data)
}

func uninstallJSON(path, key string) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	data, err := readJSON(path)
	if err != nil {
		return false, err
	}
	servers, _ := data[key].(map[string]any)
	if _, exists := servers[serverName]; !exists {
		return false, nil
	}
	delete(servers, serverName)
	if len(servers) == 0 {
		delete(data, key)
	}
	if len(data) == 0 {
		return true, os.Remove(path)
	}
	return true, writeJSON(path, data)
}

// ---------------------------------------------------------------------------
// TOML config (Codex). Edited as text so the user's comments survive.
// ---------------------------------------------------------------------------

const tomlHeader = "[mcp_servers." + serverName + "]"

func tomlSection(srv Server) string {
	var b strings.Builder
	b.WriteString("\n" + tomlHeader + "\n")
	b.WriteString("command = " + strconv.Quote(srv.command()) + "\n")
	b.WriteString("args = [\"mcp\"]\n")
	if srv.Home != "" {
		fmt.Fprintf(&b, "env = { %s = %s }\n", config.EnvHome, strconv.Quote(srv.Home))
	}
	return b.String()
}

func hasTOMLSection(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == tomlHeader {
			return true
		}
	}
	return false
}

func installTOML(path string, srv Server) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	if hasTOMLSection(string(data)) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G302 -- agent config holds no secrets
	if err != nil {
		return false, err
	}
	defer f.Close()
	if _, err := f.WriteString(tomlSection(srv)); err != nil {
		return false, err
	}
	return true, nil
}

// uninstallTOML drops the casefile table header and its keys up to the next
// table header.
func uninstallTOML(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	content := string(data)
	if !hasTOMLSection(content) {
		return false, nil
	}
	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	inSection := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == tomlHeader {
			inSection = true
			continue
		}
		if inSection && strings.HasPrefix(trimmed, "[") {
			inSection = false
		}
		if !inSection {
			kept = append(kept, line)
		}
	}
	cleaned := strings.TrimRight(strings.Join(kept, "\n"), "\n")
	if strings.TrimSpace(cleaned) == "" {
		return true, os.Remove(path)
	}
	return true, os.WriteFile(path, []byte(cleaned+"\n"), 0o644) // #nosec G306 -- agent config holds no secrets
}
