package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.ConsentRequired)
	assert.Equal(t, 10, cfg.MaxSessions)
	assert.Equal(t, "dlv", cfg.Adapters.Go.Path)
	assert.Equal(t, "python3", cfg.Adapters.Python.PythonPath)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
  "workspaceFolders": ["/ws"],
  "consentRequired": false,
  "maxSessions": 3,
  "adapters": {"go": {"path": "/opt/dlv"}}
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/ws"}, cfg.WorkspaceFolders)
	assert.False(t, cfg.ConsentRequired)
	assert.Equal(t, 3, cfg.MaxSessions)
	assert.Equal(t, "/opt/dlv", cfg.Adapters.Go.Path)
	// Untouched fields keep their defaults.
	assert.Equal(t, "python3", cfg.Adapters.Python.PythonPath)
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, cfg.Validate(), "requires a workspace folder")

	cfg.WorkspaceFolders = []string{"relative/path"}
	require.Error(t, cfg.Validate(), "workspace folders must be absolute")

	cfg.WorkspaceFolders = []string{"/ws"}
	require.NoError(t, cfg.Validate())

	cfg.MaxSessions = 0
	require.Error(t, cfg.Validate())
}

func TestConfig_StorePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StateDir = "/state"
	assert.Equal(t, filepath.Join("/state", "approvals.json"), cfg.StorePath())
}
