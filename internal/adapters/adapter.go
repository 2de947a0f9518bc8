// Package adapters spawns and connects language-specific debug adapter
// processes.
//
// Adapters are looked up by the "type" field of a launch configuration,
// so a Go config ("go") resolves to Delve and a Python config ("python"
// or "debugpy") resolves to debugpy. Each adapter knows how to spawn its
// process and translate a launch configuration into the adapter's launch
// arguments.
package adapters

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"time"

	"github.com/dapguard/dapguard/internal/config"
	"github.com/dapguard/dapguard/internal/dap"
)

// Adapter defines the interface for language-specific debug adapters
type Adapter interface {
	// Spawn starts a debug adapter process and returns the TCP address to
	// connect to
	Spawn(ctx context.Context, configuration map[string]any) (address string, cmd *exec.Cmd, err error)

	// BuildLaunchArgs translates a launch configuration into the launch
	// request arguments for this adapter
	BuildLaunchArgs(configuration map[string]any) map[string]any
}

// Registry holds all registered adapters keyed by configuration type
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates a registry with all supported adapters
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter),
	}

	r.adapters["go"] = NewDelveAdapter(cfg.Adapters.Go)

	debugpy := NewDebugpyAdapter(cfg.Adapters.Python)
	r.adapters["python"] = debugpy
	r.adapters["debugpy"] = debugpy

	return r
}

// Get returns the adapter for a configuration type
func (r *Registry) Get(configType string) (Adapter, error) {
	adapter, ok := r.adapters[configType]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for configuration type: %s", configType)
	}
	return adapter, nil
}

// Register registers an adapter for a configuration type, overriding any
// existing adapter
func (r *Registry) Register(configType string, adapter Adapter) {
	r.adapters[configType] = adapter
}

// Launch resolves the adapter for a configuration type, spawns its process
// and returns a connected client plus the launch request arguments.
// Satisfies dap.Launcher.
func (r *Registry) Launch(ctx context.Context, configType string, configuration map[string]any) (*dap.Client, *exec.Cmd, map[string]any, error) {
	adapter, err := r.Get(configType)
	if err != nil {
		return nil, nil, nil, err
	}

	client, cmd, err := SpawnAndConnect(ctx, adapter, configuration)
	if err != nil {
		return nil, nil, nil, err
	}

	return client, cmd, adapter.BuildLaunchArgs(configuration), nil
}

// Connect creates a DAP client connected to the given address via TCP
func Connect(address string, maxRetries int) (*dap.Client, error) {
	var transport *dap.Transport
	var err error

	for i := 0; i < maxRetries; i++ {
		transport, err = dap.NewTCPTransport(address)
		if err == nil {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to debug adapter at %s: %w", address, err)
	}

	return dap.NewClient(transport), nil
}

// SpawnAndConnect spawns an adapter process and returns a connected client.
func SpawnAndConnect(ctx context.Context, adapter Adapter, configuration map[string]any) (*dap.Client, *exec.Cmd, error) {
	address, cmd, err := adapter.Spawn(ctx, configuration)
	if err != nil {
		return nil, nil, err
	}

	// 20 retries * 200ms = 4 seconds max wait
	client, err := Connect(address, 20)
	if err != nil {
		// Kill the spawned process if we can't connect
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return nil, nil, err
	}

	return client, cmd, nil
}

// findAvailablePort finds an available TCP port
func findAvailablePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)
	return addr.Port, nil
}
