package launchcfg

import (
	"os"
	"path/filepath"
	"regexp"
)

// variablePattern matches ${...} expressions inside launch.json values.
var variablePattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// resolveVariables substitutes workspace-scoped variables in s. The gateway
// resolves only variables derivable from the workspace folder; expressions
// that would pull in editor or host state (${env:...}, ${command:...},
// ${input:...}, ${file}) are left verbatim for the adapter to reject.
func resolveVariables(s, workspaceFolder string) string {
	return variablePattern.ReplaceAllStringFunc(s, func(match string) string {
		expr := match[2 : len(match)-1]
		switch expr {
		case "workspaceFolder":
			return workspaceFolder
		case "workspaceFolderBasename":
			return filepath.Base(workspaceFolder)
		case "pathSeparator":
			return string(os.PathSeparator)
		}
		return match
	})
}

// resolveValue walks a decoded launch.json value and substitutes variables
// inside every string, recursing through objects and arrays.
func resolveValue(v any, workspaceFolder string) any {
	switch t := v.(type) {
	case string:
		return resolveVariables(t, workspaceFolder)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = resolveValue(val, workspaceFolder)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = resolveValue(val, workspaceFolder)
		}
		return out
	default:
		return v
	}
}
