// Package launchcfg reads VS Code style launch.json files as a read-only
// projection. The gateway never owns or mutates launch configurations; it
// only lists them and resolves names for session starts.
package launchcfg

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/dapguard/dapguard/pkg/types"
)

const (
	// LaunchJSONFileName is the standard launch configuration file name.
	LaunchJSONFileName = "launch.json"
	// VSCodeDirName is the configuration directory inside each workspace
	// folder.
	VSCodeDirName = ".vscode"
)

// launchJSON is the on-disk shape of a launch.json file. Only the fields the
// gateway projects are decoded; everything else stays in Raw for the backend.
type launchJSON struct {
	Version        string            `json:"version"`
	Configurations []json.RawMessage `json:"configurations"`
}

// configuration is one decoded launch.json entry.
type configuration struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Request string `json:"request"`
}

// Configuration pairs the projection with the raw launch parameters passed
// through to the backend on start.
type Configuration struct {
	Info types.LaunchConfigurationInfo
	Raw  map[string]any
}

// Loader reads launch configurations across a fixed set of workspace
// folders.
type Loader struct {
	roots []string
}

// NewLoader creates a Loader over the given workspace folder roots.
func NewLoader(roots []string) *Loader {
	return &Loader{roots: roots}
}

// Roots returns the workspace folder roots.
func (l *Loader) Roots() []string { return l.roots }

// PrimaryRoot returns the first workspace folder, or empty.
func (l *Loader) PrimaryRoot() string {
	if len(l.roots) == 0 {
		return ""
	}
	return l.roots[0]
}

// HasRoot reports whether folder is one of the configured workspace roots.
func (l *Loader) HasRoot(folder string) bool {
	folder = filepath.Clean(folder)
	for _, root := range l.roots {
		if filepath.Clean(root) == folder {
			return true
		}
	}
	return false
}

// List returns a flattened projection across all workspace folders. A folder
// with no readable launch.json contributes nothing; absence is not an error.
func (l *Loader) List() []types.LaunchConfigurationInfo {
	infos := make([]types.LaunchConfigurationInfo, 0)
	for _, root := range l.roots {
		for _, cfg := range l.loadFolder(root) {
			infos = append(infos, cfg.Info)
		}
	}
	return infos
}

// Find resolves a configuration by name. When folder is non-empty only that
// workspace folder is searched; otherwise the first match across folders
// wins.
func (l *Loader) Find(name, folder string) (*Configuration, bool) {
	roots := l.roots
	if folder != "" {
		roots = []string{folder}
	}
	for _, root := range roots {
		for _, cfg := range l.loadFolder(root) {
			if cfg.Info.Name == name {
				return &cfg, true
			}
		}
	}
	return nil, false
}

// loadFolder reads <root>/.vscode/launch.json best effort.
func (l *Loader) loadFolder(root string) []Configuration {
	path := filepath.Join(root, VSCodeDirName, LaunchJSONFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var lj launchJSON
	if err := json.Unmarshal(data, &lj); err != nil {
		return nil
	}

	configs := make([]Configuration, 0, len(lj.Configurations))
	for _, raw := range lj.Configurations {
		var c configuration
		if err := json.Unmarshal(raw, &c); err != nil {
			continue
		}
		if c.Name == "" || c.Type == "" {
			continue
		}
		var rawMap map[string]any
		if err := json.Unmarshal(raw, &rawMap); err != nil {
			continue
		}
		rawMap = resolveValue(rawMap, root).(map[string]any)
		configs = append(configs, Configuration{
			Info: types.LaunchConfigurationInfo{
				Name:            c.Name,
				Type:            c.Type,
				Request:         c.Request,
				WorkspaceFolder: filepath.ToSlash(root),
			},
			Raw: rawMap,
		})
	}
	return configs
}
