// Package shared holds the context passed to all CLI commands.
package shared

import (
	"io"

	json "github.com/goccy/go-json"

	"github.com/go-ports/casefile/internal/config"
	"github.com/go-ports/casefile/internal/service"
)

// Context carries global CLI state (flags set on the root command).
type Context struct {
	// Home overrides the casefile home directory.
	// When empty, resolution falls through to CASEFILE_HOME env → persisted config → ~/.casefile.
	Home string
	// LogLevel overrides log.level from config.yaml.
	LogLevel string
	// Session names the intake session the intake commands work on.
	Session string
}

// HomeDir returns the effective casefile home.
func (c *Context) HomeDir() string {
	if c.Home != "" {
		return c.Home
	}
	return config.GetHome()
}

// Service opens the service for the effective home. The caller closes it.
func (c *Context) Service() (*service.Service, error) {
	return service.New(c.HomeDir())
}

// PrintJSON writes v to w as indented JSON followed by a newline.
func PrintJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}
