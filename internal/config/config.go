// Package config provides configuration management for the dapguard gateway.
//
// Configuration controls:
//   - Workspace folder roots the gateway is allowed to see
//   - Consent behavior: whether launch configurations require approval
//   - Persistent state location (approved-configuration store)
//   - Audit log destination
//   - Debug adapter settings: paths for each supported debugger kind
//   - Safety limits: maximum concurrent sessions
//
// Configuration can be loaded from a JSON file or use sensible defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the gateway configuration.
type Config struct {
	// WorkspaceFolders are the roots the gateway operates in. The first
	// entry is the primary root used to resolve relative paths.
	WorkspaceFolders []string `json:"workspaceFolders"`

	// ConsentRequired gates launch configurations behind approval. The
	// persisted store value overrides this initial default.
	ConsentRequired bool `json:"consentRequired"`

	// StateDir holds the approval store. Defaults under the user config dir.
	StateDir string `json:"stateDir"`

	// AuditLogPath is the append-only audit sink. Empty means stderr.
	AuditLogPath string `json:"auditLogPath"`

	// Adapters configures each supported debugger kind.
	Adapters AdapterConfigs `json:"adapters"`

	// MaxSessions caps concurrent debug sessions.
	MaxSessions int `json:"maxSessions"`
}

// AdapterConfigs holds configuration for each debugger kind.
type AdapterConfigs struct {
	Go     DelveConfig   `json:"go"`
	Python DebugpyConfig `json:"python"`
}

// DelveConfig holds Delve-specific configuration.
type DelveConfig struct {
	Path       string `json:"path"`
	BuildFlags string `json:"buildFlags"`
}

// DebugpyConfig holds debugpy-specific configuration.
type DebugpyConfig struct {
	PythonPath string `json:"pythonPath"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	stateDir := ""
	if dir, err := os.UserConfigDir(); err == nil {
		stateDir = filepath.Join(dir, "dapguard")
	}

	return &Config{
		ConsentRequired: true,
		StateDir:        stateDir,
		MaxSessions:     10,
		Adapters: AdapterConfigs{
			Go:     DelveConfig{Path: "dlv"},
			Python: DebugpyConfig{PythonPath: "python3"},
		},
	}
}

// LoadConfig loads configuration from a JSON file, layered over defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if len(c.WorkspaceFolders) == 0 {
		return fmt.Errorf("at least one workspace folder is required")
	}
	for _, folder := range c.WorkspaceFolders {
		if !filepath.IsAbs(folder) {
			return fmt.Errorf("workspace folder must be absolute: %s", folder)
		}
	}
	if c.MaxSessions < 1 {
		return fmt.Errorf("maxSessions must be at least 1")
	}
	return nil
}

// StorePath returns the path of the persisted approval store.
func (c *Config) StorePath() string {
	return filepath.Join(c.StateDir, "approvals.json")
}

// PrimaryWorkspace returns the primary workspace root, or empty.
func (c *Config) PrimaryWorkspace() string {
	if len(c.WorkspaceFolders) == 0 {
		return ""
	}
	return c.WorkspaceFolders[0]
}
