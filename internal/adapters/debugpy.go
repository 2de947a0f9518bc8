package adapters

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dapguard/dapguard/internal/config"
)

// DebugpyAdapter implements the Adapter interface for Python/debugpy
type DebugpyAdapter struct {
	pythonPath string
}

// NewDebugpyAdapter creates a new debugpy adapter
func NewDebugpyAdapter(cfg config.DebugpyConfig) *DebugpyAdapter {
	pythonPath := cfg.PythonPath
	if pythonPath == "" {
		pythonPath = "python3"
	}

	return &DebugpyAdapter{
		pythonPath: pythonPath,
	}
}

// getPythonPath returns the Python interpreter path, checking the
// configuration first for venv support. Supports both VS Code's "python"
// attribute and debugpy's "pythonPath" attribute.
func (d *DebugpyAdapter) getPythonPath(configuration map[string]any) string {
	if p, ok := configuration["python"].(string); ok && p != "" {
		return p
	}
	if p, ok := configuration["pythonPath"].(string); ok && p != "" {
		return p
	}
	return d.pythonPath
}

// detectVenvRoot checks if pythonPath is inside a venv and returns the root
// directory. Returns empty string if no venv is detected.
func (d *DebugpyAdapter) detectVenvRoot(pythonPath string) string {
	// Python path is typically /path/to/venv/bin/python
	binDir := filepath.Dir(pythonPath)
	venvRoot := filepath.Dir(binDir)

	// pyvenv.cfg is the standard venv marker created by python -m venv
	if _, err := os.Stat(filepath.Join(venvRoot, "pyvenv.cfg")); err == nil {
		return venvRoot
	}
	return ""
}

// Spawn starts a debugpy debug adapter process
func (d *DebugpyAdapter) Spawn(ctx context.Context, configuration map[string]any) (string, *exec.Cmd, error) {
	port, err := findAvailablePort()
	if err != nil {
		return "", nil, fmt.Errorf("failed to find available port: %w", err)
	}

	address := fmt.Sprintf("127.0.0.1:%d", port)

	pythonPath := d.getPythonPath(configuration)

	cmdArgs := []string{
		"-m", "debugpy.adapter",
		"--host", "127.0.0.1",
		"--port", fmt.Sprintf("%d", port),
	}

	cmd := exec.CommandContext(ctx, pythonPath, cmdArgs...)
	cmd.Env = os.Environ()
	// Disconnect stdin to prevent TTY issues when run as an MCP server.
	cmd.Stdin = nil
	setProcAttr(cmd)

	// Auto-detect venv and set VIRTUAL_ENV so subprocess calls resolve the
	// venv's interpreter.
	if venvRoot := d.detectVenvRoot(pythonPath); venvRoot != "" {
		cmd.Env = append(cmd.Env, "VIRTUAL_ENV="+venvRoot)
		binDir := filepath.Dir(pythonPath)
		for i, env := range cmd.Env {
			if strings.HasPrefix(env, "PATH=") {
				cmd.Env[i] = "PATH=" + binDir + string(os.PathListSeparator) + env[5:]
				break
			}
		}
	}

	if env, ok := configuration["env"].(map[string]any); ok {
		for k, v := range env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, fmt.Sprint(v)))
		}
	}

	if cwd, ok := configuration["cwd"].(string); ok && cwd != "" {
		cmd.Dir = cwd
	}

	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return "", nil, fmt.Errorf("failed to start debugpy: %w", err)
	}

	// debugpy can take a moment to initialize
	time.Sleep(1 * time.Second)

	if cmd.Process == nil {
		return "", nil, fmt.Errorf("debugpy process failed to start")
	}

	return address, cmd, nil
}

// BuildLaunchArgs builds the launch arguments for debugpy
func (d *DebugpyAdapter) BuildLaunchArgs(configuration map[string]any) map[string]any {
	launchArgs := map[string]any{
		"type":    "python",
		"request": "launch",
	}

	if program, ok := configuration["program"].(string); ok {
		launchArgs["program"] = program
	}

	if module, ok := configuration["module"].(string); ok && module != "" {
		launchArgs["module"] = module
		delete(launchArgs, "program")
	}

	if programArgs, ok := configuration["args"].([]any); ok {
		strArgs := make([]string, len(programArgs))
		for i, a := range programArgs {
			strArgs[i] = fmt.Sprint(a)
		}
		launchArgs["args"] = strArgs
	}

	if cwd, ok := configuration["cwd"].(string); ok {
		launchArgs["cwd"] = cwd
	}

	if env, ok := configuration["env"].(map[string]any); ok {
		envMap := make(map[string]string)
		for k, v := range env {
			envMap[k] = fmt.Sprint(v)
		}
		launchArgs["env"] = envMap
	}

	if stopOnEntry, ok := configuration["stopOnEntry"].(bool); ok {
		launchArgs["stopOnEntry"] = stopOnEntry
	}

	if justMyCode, ok := configuration["justMyCode"].(bool); ok {
		launchArgs["justMyCode"] = justMyCode
	}

	launchArgs["console"] = "internalConsole"

	return launchArgs
}
