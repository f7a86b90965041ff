// Package config handles configuration loading and casefile home resolution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Config types
// ---------------------------------------------------------------------------

// IntakeConfig holds settings for intake processing.
type IntakeConfig struct {
	ClientCodePrefix string        `yaml:"client_code_prefix"`
	CheckInTimeout   time.Duration `yaml:"checkin_timeout"`
	MaxDerivePasses  int           `yaml:"max_derive_passes"`
}

// MarshalYAML writes the timeout as a duration string so Load reads it back.
func (c IntakeConfig) MarshalYAML() (any, error) {
	return struct {
		ClientCodePrefix string `yaml:"client_code_prefix"`
		CheckInTimeout   string `yaml:"checkin_timeout"`
		MaxDerivePasses  int    `yaml:"max_derive_passes"`
	}{c.ClientCodePrefix, c.CheckInTimeout.String(), c.MaxDerivePasses}, nil
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr      string  `yaml:"addr"`
	RateLimit float64 `yaml:"rate_limit"` // requests per second per remote address; 0 disables
	Burst     int     `yaml:"burst"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `yaml:"format"` // "text" | "json"
}

// Config is the root per-home configuration.
type Config struct {
	Intake IntakeConfig `yaml:"intake"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Intake: IntakeConfig{
			ClientCodePrefix: "CF-",
			CheckInTimeout:   10 * time.Second,
			MaxDerivePasses:  8,
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8787",
			RateLimit: 20,
			Burst:     40,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads a config.yaml from path.
// If the file does not exist it returns Default() with no error.
// Missing keys retain their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	// Unmarshal into a plain map so we can apply only the keys that are present.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	if in, ok := raw["intake"].(map[string]any); ok {
		if v, ok := in["client_code_prefix"].(string); ok {
			cfg.Intake.ClientCodePrefix = v
		}
		if v, ok := in["checkin_timeout"]; ok {
			d, err := toDuration(v)
			if err != nil {
				return nil, fmt.Errorf("intake.checkin_timeout: %w", err)
			}
			cfg.Intake.CheckInTimeout = d
		}
		if v, ok := in["max_derive_passes"].(int); ok && v > 0 {
			cfg.Intake.MaxDerivePasses = v
		}
	}

	if srv, ok := raw["server"].(map[string]any); ok {
		if v, ok := srv["addr"].(string); ok && v != "" {
			cfg.Server.Addr = v
		}
		switch v := srv["rate_limit"].(type) {
		case int:
			cfg.Server.RateLimit = float64(v)
		case float64:
			cfg.Server.RateLimit = v
		}
		if v, ok := srv["burst"].(int); ok && v > 0 {
			cfg.Server.Burst = v
		}
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		if v, ok := lg["level"].(string); ok && v != "" {
			cfg.Log.Level = v
		}
		if v, ok := lg["format"].(string); ok && v != "" {
			cfg.Log.Format = v
		}
	}

	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// toDuration accepts "30s"-style strings or a bare number of seconds.
func toDuration(v any) (time.Duration, error) {
	switch t := v.(type) {
	case string:
		return time.ParseDuration(t)
	case int:
		return time.Duration(t) * time.Second, nil
	case float64:
		return time.Duration(t * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("unsupported duration %v", v)
	}
}

// ---------------------------------------------------------------------------
// Casefile home resolution
// ---------------------------------------------------------------------------

// EnvHome is the environment variable that overrides the casefile home.
const EnvHome = "CASEFILE_HOME"

// globalConfigPath returns the path to the global casefile config file.
// This file stores only casefile_home (and future global settings).
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "casefile", "config.yaml"), nil
}

// normalizePath expands ~ and makes the path absolute.
func normalizePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(os.ExpandEnv(path))
}

// ResolveHome returns the casefile home path and the source of the resolution.
// Priority: CASEFILE_HOME env → persisted global config → ~/.casefile
// source is one of "env", "config", or "default".
func ResolveHome() (path, source string) {
	if env := os.Getenv(EnvHome); env != "" {
		p, err := normalizePath(env)
		if err == nil {
			return p, "env"
		}
	}

	if persisted, ok, _ := GetPersistedHome(); ok {
		return persisted, "config"
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".casefile"), "default"
}

// GetHome returns the resolved casefile home path.
func GetHome() string {
	path, _ := ResolveHome()
	return path
}

// GetPersistedHome reads casefile_home from the global config.
// Returns ("", false, nil) if not set.
func GetPersistedHome() (string, bool, error) {
	raw, err := readGlobal()
	if err != nil || raw == nil {
		return "", false, err
	}

	val, _ := raw["casefile_home"].(string)
	val = strings.TrimSpace(val)
	if val == "" {
		return "", false, nil
	}

	p, err := normalizePath(val)
	if err != nil {
		return "", false, err
	}
	return p, true, nil
}

// SetPersistedHome normalizes path and persists it in the global config.
// Returns the normalized path.
func SetPersistedHome(path string) (string, error) {
	normalized, err := normalizePath(path)
	if err != nil {
		return "", err
	}

	// Preserve any other keys.
	raw, _ := readGlobal()
	if raw == nil {
		raw = make(map[string]any)
	}
	raw["casefile_home"] = normalized
	if err := writeGlobal(raw); err != nil {
		return "", err
	}
	return normalized, nil
}

// ClearPersistedHome removes casefile_home from the global config.
// Returns true if the key was present and removed.
// If the file becomes empty after removal it is deleted.
func ClearPersistedHome() (bool, error) {
	raw, err := readGlobal()
	if err != nil || raw == nil {
		return false, err
	}
	if _, ok := raw["casefile_home"]; !ok {
		return false, nil
	}
	delete(raw, "casefile_home")
	return true, writeGlobal(raw)
}

// readGlobal returns the global config as a map, or nil when the file is
// missing or unreadable as YAML.
func readGlobal() (map[string]any, error) {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil
	}
	return raw, nil
}

// writeGlobal writes raw to the global config, deleting the file when raw is
// empty.
func writeGlobal(raw map[string]any) error {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		_ = os.Remove(cfgPath)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return err
	}
	out, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(cfgPath, out, 0o600)
}
