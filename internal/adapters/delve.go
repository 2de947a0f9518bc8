package adapters

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/dapguard/dapguard/internal/config"
)

// DelveAdapter implements the Adapter interface for Go/Delve
type DelveAdapter struct {
	dlvPath    string
	buildFlags string
}

// NewDelveAdapter creates a new Delve adapter
func NewDelveAdapter(cfg config.DelveConfig) *DelveAdapter {
	dlvPath := cfg.Path
	if dlvPath == "" {
		dlvPath = "dlv"
	}

	return &DelveAdapter{
		dlvPath:    dlvPath,
		buildFlags: cfg.BuildFlags,
	}
}

// Spawn starts a Delve debug adapter process in DAP mode
func (d *DelveAdapter) Spawn(ctx context.Context, configuration map[string]any) (string, *exec.Cmd, error) {
	port, err := findAvailablePort()
	if err != nil {
		return "", nil, fmt.Errorf("failed to find available port: %w", err)
	}

	address := fmt.Sprintf("127.0.0.1:%d", port)

	dlvArgs := []string{
		"dap",
		"--listen", address,
	}

	if d.buildFlags != "" {
		dlvArgs = append(dlvArgs, "--build-flags", d.buildFlags)
	}

	cmd := exec.CommandContext(ctx, d.dlvPath, dlvArgs...)
	cmd.Env = os.Environ()
	// Disconnect stdin to prevent TTY issues when run as an MCP server.
	cmd.Stdin = nil
	cmd.Stderr = os.Stderr
	setProcAttr(cmd)

	if cwd, ok := configuration["cwd"].(string); ok && cwd != "" {
		cmd.Dir = cwd
	}

	if err := cmd.Start(); err != nil {
		return "", nil, fmt.Errorf("failed to start dlv: %w", err)
	}

	// Give the server a moment to start listening
	time.Sleep(500 * time.Millisecond)

	return address, cmd, nil
}

// BuildLaunchArgs builds the launch arguments for Delve
func (d *DelveAdapter) BuildLaunchArgs(configuration map[string]any) map[string]any {
	launchArgs := map[string]any{
		"mode": "debug",
	}

	if mode, ok := configuration["mode"].(string); ok && mode != "" {
		launchArgs["mode"] = mode
	}

	if program, ok := configuration["program"].(string); ok {
		launchArgs["program"] = program
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

	if buildFlags, ok := configuration["buildFlags"].(string); ok {
		launchArgs["buildFlags"] = buildFlags
	}

	return launchArgs
}
