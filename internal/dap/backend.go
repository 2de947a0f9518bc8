package dap

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"sync"
	"time"

	godap "github.com/google/go-dap"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dapguard/dapguard/pkg/types"
)

const (
	launchTimeout      = 30 * time.Second
	initializedTimeout = 10 * time.Second
)

// Launcher spawns a debug adapter process for a configuration type and
// returns a connected client plus the launch request arguments for it.
// Implemented by the adapters registry.
type Launcher interface {
	Launch(ctx context.Context, configType string, configuration map[string]any) (client *Client, cmd *exec.Cmd, launchArgs map[string]any, err error)
}

// backendSession is an in-flight adapter connection.
type backendSession struct {
	info      types.DebugSession
	client    *Client
	cmd       *exec.Cmd
	pid       int
	createdAt time.Time
}

// Backend owns the debug adapter connections and the authoritative
// breakpoint table. Coordinates on this side of the boundary are 0-based;
// the registry converts at the edge.
//
// Breakpoints outlive sessions, like an editor's breakpoint list: the table
// persists across session start and stop, and every live session receives
// the current table for a file whenever it changes.
type Backend struct {
	launcher    Launcher
	maxSessions int
	log         *zap.Logger

	mu          sync.RWMutex
	sessions    map[string]*backendSession
	starting    int
	breakpoints map[string][]types.SourceBreakpoint

	events chan types.DebugEvent
}

// NewBackend creates a backend with no sessions and an empty breakpoint
// table.
func NewBackend(launcher Launcher, maxSessions int, log *zap.Logger) *Backend {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{
		launcher:    launcher,
		maxSessions: maxSessions,
		log:         log,
		sessions:    make(map[string]*backendSession),
		breakpoints: make(map[string][]types.SourceBreakpoint),
		events:      make(chan types.DebugEvent, 64),
	}
}

// Events returns the channel of lifecycle events. Events are emitted in the
// order the backend observes them.
func (b *Backend) Events() <-chan types.DebugEvent {
	return b.events
}

func (b *Backend) emit(ev types.DebugEvent) {
	select {
	case b.events <- ev:
	default:
		// The consumer owns the pace. Dropping here would desync the live
		// map, so log loudly; the buffer is generous enough that this only
		// happens if the consumer is gone.
		b.log.Warn("dropping backend event, consumer not keeping up",
			zap.String("kind", string(ev.Kind)),
			zap.String("sessionId", ev.Session.ID))
	}
}

// Start launches a new debug session for the given configuration. The
// session ID is assigned here and reported back through the session-started
// event before Start returns.
func (b *Backend) Start(ctx context.Context, name, configType, workspaceFolder string, configuration map[string]any) (types.DebugSession, error) {
	// Reserve a slot before launching so concurrent starts cannot exceed
	// the cap while a launch is in flight.
	b.mu.Lock()
	if len(b.sessions)+b.starting >= b.maxSessions {
		b.mu.Unlock()
		return types.DebugSession{}, fmt.Errorf("maximum number of sessions (%d) reached", b.maxSessions)
	}
	b.starting++
	b.mu.Unlock()

	release := func() {
		b.mu.Lock()
		b.starting--
		b.mu.Unlock()
	}

	client, cmd, launchArgs, err := b.launcher.Launch(ctx, configType, configuration)
	if err != nil {
		release()
		return types.DebugSession{}, fmt.Errorf("failed to launch adapter: %w", err)
	}

	session := &backendSession{
		info: types.DebugSession{
			ID:              uuid.New().String(),
			Name:            name,
			Type:            configType,
			Configuration:   configuration,
			WorkspaceFolder: workspaceFolder,
		},
		client:    client,
		cmd:       cmd,
		createdAt: time.Now(),
	}
	if cmd != nil && cmd.Process != nil {
		session.pid = cmd.Process.Pid
	}

	sessionID := session.info.ID
	client.SetEventHandler(func(msg godap.Message) {
		b.handleEvent(sessionID, msg)
	})

	if err := b.configureAndLaunch(ctx, session, launchArgs); err != nil {
		_ = client.Close()
		_ = killProcessGroup(session.pid, cmd)
		release()
		return types.DebugSession{}, err
	}

	b.mu.Lock()
	b.sessions[sessionID] = session
	b.starting--
	b.mu.Unlock()

	b.emit(types.DebugEvent{Kind: types.EventSessionStarted, Session: session.info})
	return session.info, nil
}

// configureAndLaunch runs the DAP startup handshake: initialize, launch,
// wait for the initialized event, install the breakpoint table, then
// configurationDone and the launch response.
func (b *Backend) configureAndLaunch(ctx context.Context, session *backendSession, launchArgs map[string]any) error {
	client := session.client

	if _, err := client.Initialize(ctx, "dapguard", "dapguard"); err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}

	launchRespCh, err := client.LaunchAsync(launchArgs)
	if err != nil {
		return fmt.Errorf("launch request failed: %w", err)
	}

	if err := client.WaitInitialized(initializedTimeout); err != nil {
		return err
	}

	b.mu.RLock()
	table := make(map[string][]types.SourceBreakpoint, len(b.breakpoints))
	for file, bps := range b.breakpoints {
		table[file] = append([]types.SourceBreakpoint(nil), bps...)
	}
	b.mu.RUnlock()

	for file, bps := range table {
		if err := pushBreakpoints(ctx, client, file, bps); err != nil {
			b.log.Warn("failed to install breakpoints during launch",
				zap.String("file", file), zap.Error(err))
		}
	}

	if err := client.ConfigurationDone(ctx); err != nil {
		return fmt.Errorf("configurationDone failed: %w", err)
	}

	if err := client.WaitForLaunchResponse(launchRespCh, launchTimeout); err != nil {
		return err
	}

	return nil
}

// handleEvent runs on the client's read loop goroutine.
func (b *Backend) handleEvent(sessionID string, msg godap.Message) {
	switch msg.(type) {
	case *godap.TerminatedEvent, *godap.ExitedEvent:
		b.reap(sessionID)
	case *godap.BreakpointEvent:
		b.mu.RLock()
		session, ok := b.sessions[sessionID]
		b.mu.RUnlock()
		if ok {
			b.emit(types.DebugEvent{Kind: types.EventBreakpointsChanged, Session: session.info})
		}
	}
}

// reap tears down a session after the debuggee terminated on its own.
func (b *Backend) reap(sessionID string) {
	b.mu.Lock()
	session, ok := b.sessions[sessionID]
	if ok {
		delete(b.sessions, sessionID)
	}
	b.mu.Unlock()

	if !ok {
		return
	}

	_ = session.client.Close()
	if err := killProcessGroup(session.pid, session.cmd); err != nil {
		b.log.Warn("failed to kill adapter process", zap.String("sessionId", sessionID), zap.Error(err))
	}

	b.emit(types.DebugEvent{Kind: types.EventSessionTerminated, Session: session.info})
}

// Stop terminates a session and its adapter process.
func (b *Backend) Stop(ctx context.Context, sessionID string) error {
	b.mu.Lock()
	session, ok := b.sessions[sessionID]
	if ok {
		delete(b.sessions, sessionID)
	}
	b.mu.Unlock()

	if !ok {
		return fmt.Errorf("no such session: %s", sessionID)
	}

	if err := session.client.Disconnect(ctx, true); err != nil {
		b.log.Warn("disconnect failed, killing adapter", zap.String("sessionId", sessionID), zap.Error(err))
	}
	_ = session.client.Close()
	if err := killProcessGroup(session.pid, session.cmd); err != nil {
		b.log.Warn("failed to kill adapter process", zap.String("sessionId", sessionID), zap.Error(err))
	}

	b.emit(types.DebugEvent{Kind: types.EventSessionTerminated, Session: session.info})
	return nil
}

// Close stops every live session.
func (b *Backend) Close() {
	b.mu.Lock()
	ids := make([]string, 0, len(b.sessions))
	for id := range b.sessions {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, id := range ids {
		_ = b.Stop(ctx, id)
	}
}

// SetFileBreakpoints replaces the breakpoint table entry for a file and
// pushes the new set to every live session. An empty set clears the file's
// entry.
func (b *Backend) SetFileBreakpoints(ctx context.Context, file string, bps []types.SourceBreakpoint) error {
	b.mu.Lock()
	if len(bps) == 0 {
		delete(b.breakpoints, file)
	} else {
		b.breakpoints[file] = append([]types.SourceBreakpoint(nil), bps...)
	}
	clients := make([]*Client, 0, len(b.sessions))
	for _, s := range b.sessions {
		clients = append(clients, s.client)
	}
	b.mu.Unlock()

	var firstErr error
	for _, client := range clients {
		if err := pushBreakpoints(ctx, client, file, bps); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ListBreakpoints returns a copy of the breakpoint table. Coordinates are
// 0-based.
func (b *Backend) ListBreakpoints() []types.SourceBreakpoint {
	b.mu.RLock()
	defer b.mu.RUnlock()

	files := make([]string, 0, len(b.breakpoints))
	for file := range b.breakpoints {
		files = append(files, file)
	}
	sort.Strings(files)

	var out []types.SourceBreakpoint
	for _, file := range files {
		out = append(out, b.breakpoints[file]...)
	}
	return out
}

func pushBreakpoints(ctx context.Context, client *Client, file string, bps []types.SourceBreakpoint) error {
	source := godap.Source{Path: file}
	wire := make([]godap.SourceBreakpoint, 0, len(bps))
	for _, bp := range bps {
		if !bp.Enabled {
			continue
		}
		wire = append(wire, godap.SourceBreakpoint{
			Line:         bp.Line,
			Column:       bp.Column,
			Condition:    bp.Condition,
			HitCondition: bp.HitCondition,
			LogMessage:   bp.LogMessage,
		})
	}
	_, err := client.SetBreakpoints(ctx, source, wire)
	return err
}

func (b *Backend) session(sessionID string) (*backendSession, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	session, ok := b.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("no such session: %s", sessionID)
	}
	return session, nil
}

// defaultThread picks the first reported thread. Single-threaded debuggees
// report exactly one.
func defaultThread(ctx context.Context, client *Client) (int, error) {
	threads, err := client.Threads(ctx)
	if err != nil {
		return 0, err
	}
	if len(threads) == 0 {
		return 0, fmt.Errorf("debuggee reported no threads")
	}
	return threads[0].Id, nil
}

// StackTrace returns the stack of the default thread. Coordinates are
// 0-based.
func (b *Backend) StackTrace(ctx context.Context, sessionID string) ([]types.StackFrame, error) {
	session, err := b.session(sessionID)
	if err != nil {
		return nil, err
	}

	threadID, err := defaultThread(ctx, session.client)
	if err != nil {
		return nil, err
	}

	frames, err := session.client.StackTrace(ctx, threadID, 20)
	if err != nil {
		return nil, err
	}

	out := make([]types.StackFrame, 0, len(frames))
	for _, f := range frames {
		frame := types.StackFrame{
			ID:     f.Id,
			Name:   f.Name,
			Line:   f.Line,
			Column: f.Column,
		}
		if f.Source != nil {
			frame.File = f.Source.Path
		}
		out = append(out, frame)
	}
	return out, nil
}

// FrameVariables returns the variables of all scopes of one frame of the
// default thread, identified by its index from the top of the stack.
func (b *Backend) FrameVariables(ctx context.Context, sessionID string, frameIndex int) ([]types.Variable, error) {
	session, err := b.session(sessionID)
	if err != nil {
		return nil, err
	}

	threadID, err := defaultThread(ctx, session.client)
	if err != nil {
		return nil, err
	}

	frames, err := session.client.StackTrace(ctx, threadID, frameIndex+1)
	if err != nil {
		return nil, err
	}
	if frameIndex < 0 || frameIndex >= len(frames) {
		return nil, fmt.Errorf("frame index %d out of range", frameIndex)
	}

	scopes, err := session.client.Scopes(ctx, frames[frameIndex].Id)
	if err != nil {
		return nil, err
	}

	var out []types.Variable
	for _, scope := range scopes {
		// Expensive scopes (e.g. globals flagged by the adapter) are skipped.
		if scope.Expensive {
			continue
		}
		vars, err := session.client.Variables(ctx, scope.VariablesReference)
		if err != nil {
			return nil, err
		}
		for _, v := range vars {
			out = append(out, types.Variable{
				Name:               v.Name,
				Value:              v.Value,
				Type:               v.Type,
				VariablesReference: v.VariablesReference,
			})
		}
	}
	return out, nil
}

// Continue resumes the default thread.
func (b *Backend) Continue(ctx context.Context, sessionID string) error {
	session, err := b.session(sessionID)
	if err != nil {
		return err
	}
	threadID, err := defaultThread(ctx, session.client)
	if err != nil {
		return err
	}
	return session.client.Continue(ctx, threadID)
}

// Step performs one step operation on the default thread.
func (b *Backend) Step(ctx context.Context, sessionID string, kind types.StepKind) error {
	session, err := b.session(sessionID)
	if err != nil {
		return err
	}
	threadID, err := defaultThread(ctx, session.client)
	if err != nil {
		return err
	}

	switch kind {
	case types.StepInto:
		return session.client.StepIn(ctx, threadID)
	case types.StepOut:
		return session.client.StepOut(ctx, threadID)
	default:
		return session.client.Next(ctx, threadID)
	}
}
