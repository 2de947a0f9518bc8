package dap

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapguard/dapguard/pkg/types"
)

// fakeLauncher spins up a fresh in-process adapter per launch.
type fakeLauncher struct {
	t *testing.T
}

func (l *fakeLauncher) Launch(ctx context.Context, configType string, configuration map[string]any) (*Client, *exec.Cmd, map[string]any, error) {
	fa := newFakeAdapter(l.t)
	transport, err := NewTCPTransport(fa.addr())
	if err != nil {
		return nil, nil, nil, err
	}
	return NewClient(transport), nil, map[string]any{"mode": "debug"}, nil
}

func waitForEvent(t *testing.T, backend *Backend, kind types.EventKind) types.DebugEvent {
	t.Helper()
	select {
	case ev := <-backend.Events():
		require.Equal(t, kind, ev.Kind)
		return ev
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s event", kind)
		return types.DebugEvent{}
	}
}

func TestBackend_StartStop(t *testing.T) {
	backend := NewBackend(&fakeLauncher{t: t}, 2, nil)
	defer backend.Close()

	session, err := backend.Start(context.Background(), "Launch Server", "go", "/ws", map[string]any{"program": "./cmd/server"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "Launch Server", session.Name)
	assert.Equal(t, "go", session.Type)
	assert.Equal(t, "/ws", session.WorkspaceFolder)

	ev := waitForEvent(t, backend, types.EventSessionStarted)
	assert.Equal(t, session.ID, ev.Session.ID)

	require.NoError(t, backend.Stop(context.Background(), session.ID))
	ev = waitForEvent(t, backend, types.EventSessionTerminated)
	assert.Equal(t, session.ID, ev.Session.ID)
}

func TestBackend_MaxSessions(t *testing.T) {
	backend := NewBackend(&fakeLauncher{t: t}, 1, nil)
	defer backend.Close()

	_, err := backend.Start(context.Background(), "first", "go", "/ws", nil)
	require.NoError(t, err)

	_, err = backend.Start(context.Background(), "second", "go", "/ws", nil)
	require.Error(t, err)
}

// gateLauncher parks Launch until released so a start can be held in flight.
type gateLauncher struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gateLauncher) Launch(ctx context.Context, configType string, configuration map[string]any) (*Client, *exec.Cmd, map[string]any, error) {
	g.entered <- struct{}{}
	<-g.release
	return nil, nil, nil, errors.New("launch aborted")
}

// TestBackend_MaxSessionsHeldDuringLaunch verifies the session cap counts
// launches still in flight, not only registered sessions.
func TestBackend_MaxSessionsHeldDuringLaunch(t *testing.T) {
	gate := &gateLauncher{entered: make(chan struct{}), release: make(chan struct{})}
	backend := NewBackend(gate, 1, nil)
	defer backend.Close()

	firstDone := make(chan error, 1)
	go func() {
		_, err := backend.Start(context.Background(), "first", "go", "/ws", nil)
		firstDone <- err
	}()

	select {
	case <-gate.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for launch to start")
	}

	_, err := backend.Start(context.Background(), "second", "go", "/ws", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum number of sessions")

	close(gate.release)
	require.Error(t, <-firstDone)
}

func TestBackend_StopUnknownSession(t *testing.T) {
	backend := NewBackend(&fakeLauncher{t: t}, 1, nil)
	defer backend.Close()

	require.Error(t, backend.Stop(context.Background(), "nope"))
}

// TestBackend_BreakpointTableOutlivesSessions verifies breakpoints can be
// set with no session and survive session churn.
func TestBackend_BreakpointTableOutlivesSessions(t *testing.T) {
	backend := NewBackend(&fakeLauncher{t: t}, 2, nil)
	defer backend.Close()

	bp := types.SourceBreakpoint{File: "/ws/main.go", Line: 9, Enabled: true}
	require.NoError(t, backend.SetFileBreakpoints(context.Background(), "/ws/main.go", []types.SourceBreakpoint{bp}))

	listed := backend.ListBreakpoints()
	require.Len(t, listed, 1)
	assert.Equal(t, 9, listed[0].Line)

	session, err := backend.Start(context.Background(), "s", "go", "/ws", nil)
	require.NoError(t, err)
	waitForEvent(t, backend, types.EventSessionStarted)

	require.NoError(t, backend.Stop(context.Background(), session.ID))
	waitForEvent(t, backend, types.EventSessionTerminated)

	assert.Len(t, backend.ListBreakpoints(), 1, "table survives session teardown")
}

func TestBackend_SetFileBreakpoints_EmptyClearsFile(t *testing.T) {
	backend := NewBackend(&fakeLauncher{t: t}, 1, nil)
	defer backend.Close()

	bp := types.SourceBreakpoint{File: "/ws/main.go", Line: 9, Enabled: true}
	require.NoError(t, backend.SetFileBreakpoints(context.Background(), "/ws/main.go", []types.SourceBreakpoint{bp}))
	require.NoError(t, backend.SetFileBreakpoints(context.Background(), "/ws/main.go", nil))

	assert.Empty(t, backend.ListBreakpoints())
}
