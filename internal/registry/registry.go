// Package registry mirrors live debug state and mediates every operation a
// remote caller may perform on it.
//
// The registry never generates debug state of its own: sessions are mirrored
// from backend lifecycle events, and the breakpoint table is owned by the
// backend. A single goroutine applies events to the live map in the order
// the backend emitted them. External coordinates are 1-based; the backend
// side is 0-based and the conversion happens here and nowhere else.
package registry

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/dapguard/dapguard/internal/audit"
	"github.com/dapguard/dapguard/internal/consent"
	gerrors "github.com/dapguard/dapguard/internal/errors"
	"github.com/dapguard/dapguard/internal/launchcfg"
	"github.com/dapguard/dapguard/internal/validate"
	"github.com/dapguard/dapguard/pkg/types"
)

// Backend is the debugger side of the registry. All coordinates crossing
// this interface are 0-based.
type Backend interface {
	Events() <-chan types.DebugEvent
	Start(ctx context.Context, name, configType, workspaceFolder string, configuration map[string]any) (types.DebugSession, error)
	Stop(ctx context.Context, sessionID string) error
	SetFileBreakpoints(ctx context.Context, file string, bps []types.SourceBreakpoint) error
	ListBreakpoints() []types.SourceBreakpoint
	StackTrace(ctx context.Context, sessionID string) ([]types.StackFrame, error)
	FrameVariables(ctx context.Context, sessionID string, frameIndex int) ([]types.Variable, error)
	Continue(ctx context.Context, sessionID string) error
	Step(ctx context.Context, sessionID string, kind types.StepKind) error
}

// osFilesystem stats the real filesystem.
type osFilesystem struct{}

func (osFilesystem) IsRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Registry is the gateway's session registry.
type Registry struct {
	backend Backend
	consent *consent.Authority
	configs *launchcfg.Loader
	fs      validate.Filesystem
	log     *audit.Logger

	// The event loop is the only writer of the fields below.
	mu       sync.RWMutex
	sessions map[string]types.DebugSession
	order    []string
	activeID string

	done chan struct{}
	wg   sync.WaitGroup
}

// Option configures a Registry.
type Option func(*Registry)

// WithFilesystem injects the filesystem used for breakpoint existence
// checks. Tests use a fake.
func WithFilesystem(fs validate.Filesystem) Option {
	return func(r *Registry) { r.fs = fs }
}

// New creates a registry over the given backend and starts its event loop.
func New(backend Backend, authority *consent.Authority, configs *launchcfg.Loader, log *audit.Logger, opts ...Option) *Registry {
	if log == nil {
		log = audit.Nop()
	}
	r := &Registry{
		backend:  backend,
		consent:  authority,
		configs:  configs,
		fs:       osFilesystem{},
		log:      log,
		sessions: make(map[string]types.DebugSession),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(1)
	go r.run()

	return r
}

// Close stops the event loop. Backend sessions are not touched.
func (r *Registry) Close() {
	close(r.done)
	r.wg.Wait()
}

// run applies backend events to the live map, strictly in arrival order.
func (r *Registry) run() {
	defer r.wg.Done()

	events := r.backend.Events()
	for {
		select {
		case <-r.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.apply(ev)
		}
	}
}

func (r *Registry) apply(ev types.DebugEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case types.EventSessionStarted:
		if _, exists := r.sessions[ev.Session.ID]; !exists {
			r.order = append(r.order, ev.Session.ID)
		}
		r.sessions[ev.Session.ID] = ev.Session
		// The most recently started session becomes the active one.
		r.activeID = ev.Session.ID

	case types.EventSessionTerminated:
		delete(r.sessions, ev.Session.ID)
		for i, id := range r.order {
			if id == ev.Session.ID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
		if r.activeID == ev.Session.ID {
			r.activeID = ""
			if len(r.order) > 0 {
				r.activeID = r.order[len(r.order)-1]
			}
		}

	case types.EventBreakpointsChanged:
		// Breakpoint state lives in the backend; nothing to mirror.
	}
}

// ListActiveSessions returns the live sessions in start order.
func (r *Registry) ListActiveSessions() []types.DebugSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.DebugSession, 0, len(r.order))
	for _, id := range r.order {
		if s, ok := r.sessions[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// ActiveSession returns the active session, if any.
func (r *Registry) ActiveSession() (types.DebugSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.activeID == "" {
		return types.DebugSession{}, false
	}
	s, ok := r.sessions[r.activeID]
	return s, ok
}

func (r *Registry) activeSessionID() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.activeID == "" {
		return "", gerrors.NoActiveSession("session lookup")
	}
	return r.activeID, nil
}

// breakpointID derives the stable identity of a breakpoint from its
// normalized 0-based location. Equal locations always hash equal.
func breakpointID(file string, line, column int) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d:%d", file, line, column)
	return fmt.Sprintf("%016x", h.Sum64())
}

// externalBreakpoint converts a backend breakpoint to the 1-based external
// form and assigns its derived ID.
func externalBreakpoint(bp types.SourceBreakpoint) types.Breakpoint {
	out := types.Breakpoint{
		ID:           breakpointID(bp.File, bp.Line, bp.Column),
		File:         bp.File,
		Line:         bp.Line + 1,
		Enabled:      bp.Enabled,
		Condition:    bp.Condition,
		HitCondition: bp.HitCondition,
		LogMessage:   bp.LogMessage,
	}
	if bp.Column > 0 {
		out.Column = bp.Column + 1
	}
	return out
}

// ListBreakpoints returns all breakpoints across all files, 1-based.
func (r *Registry) ListBreakpoints() []types.Breakpoint {
	raw := r.backend.ListBreakpoints()
	out := make([]types.Breakpoint, 0, len(raw))
	for _, bp := range raw {
		out = append(out, externalBreakpoint(bp))
	}
	return out
}

// SetBreakpointRequest carries the caller-supplied fields of a set-breakpoint
// call. Line and Column are 1-based; Column zero means unset.
type SetBreakpointRequest struct {
	File         string
	Line         int
	Column       int
	Condition    string
	HitCondition string
	LogMessage   string
}

// SetBreakpoint validates, normalizes and stores a breakpoint, replacing any
// existing breakpoint at the same location. Validation failures abort the
// call before the backend is touched.
func (r *Registry) SetBreakpoint(ctx context.Context, req SetBreakpointRequest) (types.Breakpoint, error) {
	file, err := validate.FilePath(req.File, r.configs.PrimaryRoot())
	if err != nil {
		r.log.ValidationRejected("set-breakpoint", gerrors.DetailOf(err))
		return types.Breakpoint{}, err
	}
	if err := validate.LineNumber(req.Line); err != nil {
		r.log.ValidationRejected("set-breakpoint", gerrors.DetailOf(err))
		return types.Breakpoint{}, err
	}
	if req.Column != 0 {
		if err := validate.ColumnNumber(req.Column); err != nil {
			r.log.ValidationRejected("set-breakpoint", gerrors.DetailOf(err))
			return types.Breakpoint{}, err
		}
	}
	condition, err := validate.BreakpointCondition(req.Condition)
	if err != nil {
		r.log.ValidationRejected("set-breakpoint", gerrors.DetailOf(err))
		return types.Breakpoint{}, err
	}
	hitCondition, err := validate.BreakpointCondition(req.HitCondition)
	if err != nil {
		r.log.ValidationRejected("set-breakpoint", gerrors.DetailOf(err))
		return types.Breakpoint{}, err
	}
	logMessage, err := validate.LogMessage(req.LogMessage)
	if err != nil {
		r.log.ValidationRejected("set-breakpoint", gerrors.DetailOf(err))
		return types.Breakpoint{}, err
	}

	if !validate.FileExistsInWorkspace(r.fs, file, r.configs.Roots()) {
		verr := gerrors.Validation("file path", "not an existing file inside the workspace")
		r.log.ValidationRejected("set-breakpoint", verr.Detail)
		return types.Breakpoint{}, verr
	}

	line0 := req.Line - 1
	column0 := 0
	if req.Column != 0 {
		column0 = req.Column - 1
	}

	next := types.SourceBreakpoint{
		File:         file,
		Line:         line0,
		Column:       column0,
		Enabled:      true,
		Condition:    condition,
		HitCondition: hitCondition,
		LogMessage:   logMessage,
	}

	fileBps := r.fileBreakpoints(file)
	replaced := false
	for i, bp := range fileBps {
		if bp.Line == line0 && bp.Column == column0 {
			fileBps[i] = next
			replaced = true
			break
		}
	}
	if !replaced {
		fileBps = append(fileBps, next)
	}

	// The table update is authoritative. A push failure to a live session
	// leaves the breakpoint set but uninstalled there, so it only warrants
	// a diagnostic.
	if err := r.backend.SetFileBreakpoints(ctx, file, fileBps); err != nil {
		r.log.Diag("set-breakpoint", err, zap.String("file", file))
	}

	r.log.BreakpointMutation("set", file, req.Line, req.Column)
	return externalBreakpoint(next), nil
}

// RemoveBreakpoint removes every breakpoint matching file and line, and
// column when one is supplied. It reports whether anything was removed;
// removing from an empty table is a no-op, not an error.
func (r *Registry) RemoveBreakpoint(ctx context.Context, reqFile string, reqLine, reqColumn int) (bool, error) {
	file, err := validate.FilePath(reqFile, r.configs.PrimaryRoot())
	if err != nil {
		r.log.ValidationRejected("remove-breakpoint", gerrors.DetailOf(err))
		return false, err
	}
	if err := validate.LineNumber(reqLine); err != nil {
		r.log.ValidationRejected("remove-breakpoint", gerrors.DetailOf(err))
		return false, err
	}
	if reqColumn != 0 {
		if err := validate.ColumnNumber(reqColumn); err != nil {
			r.log.ValidationRejected("remove-breakpoint", gerrors.DetailOf(err))
			return false, err
		}
	}

	line0 := reqLine - 1
	fileBps := r.fileBreakpoints(file)
	kept := fileBps[:0]
	removed := false
	for _, bp := range fileBps {
		match := bp.Line == line0
		if match && reqColumn != 0 {
			match = bp.Column == reqColumn-1
		}
		if match {
			removed = true
			continue
		}
		kept = append(kept, bp)
	}

	if !removed {
		return false, nil
	}

	if err := r.backend.SetFileBreakpoints(ctx, file, kept); err != nil {
		r.log.Diag("remove-breakpoint", err, zap.String("file", file))
	}

	r.log.BreakpointMutation("remove", file, reqLine, reqColumn)
	return true, nil
}

func (r *Registry) fileBreakpoints(file string) []types.SourceBreakpoint {
	var out []types.SourceBreakpoint
	for _, bp := range r.backend.ListBreakpoints() {
		if bp.File == file {
			out = append(out, bp)
		}
	}
	return out
}

// GetVariables returns the variables of one frame of the active session's
// stopped thread. No active session or a backend failure yields an empty
// result, never an error the caller can mine for detail.
func (r *Registry) GetVariables(ctx context.Context, frameIndex int) []types.Variable {
	sessionID, err := r.activeSessionID()
	if err != nil {
		return []types.Variable{}
	}
	if frameIndex < 0 {
		frameIndex = 0
	}

	vars, err := r.backend.FrameVariables(ctx, sessionID, frameIndex)
	if err != nil {
		r.log.Diag("inspect-variables", err, zap.String("sessionId", sessionID))
		return []types.Variable{}
	}
	if vars == nil {
		vars = []types.Variable{}
	}
	return vars
}

// GetCallStack returns the active session's call stack with 1-based
// coordinates. No active session or a backend failure yields an empty stack.
func (r *Registry) GetCallStack(ctx context.Context) []types.StackFrame {
	sessionID, err := r.activeSessionID()
	if err != nil {
		return []types.StackFrame{}
	}

	frames, err := r.backend.StackTrace(ctx, sessionID)
	if err != nil {
		r.log.Diag("get-call-stack", err, zap.String("sessionId", sessionID))
		return []types.StackFrame{}
	}

	out := make([]types.StackFrame, 0, len(frames))
	for _, f := range frames {
		f.Line++
		if f.Column > 0 {
			f.Column++
		}
		out = append(out, f)
	}
	return out
}

// Step performs a step operation on the active session and reports success.
func (r *Registry) Step(ctx context.Context, kind types.StepKind) bool {
	sessionID, err := r.activeSessionID()
	if err != nil {
		return false
	}

	if err := r.backend.Step(ctx, sessionID, kind); err != nil {
		r.log.Diag("step", err, zap.String("sessionId", sessionID), zap.String("kind", string(kind)))
		r.log.ExecutionControl("step", false)
		return false
	}
	r.log.ExecutionControl("step", true)
	return true
}

// Continue resumes the active session and reports success.
func (r *Registry) Continue(ctx context.Context) bool {
	sessionID, err := r.activeSessionID()
	if err != nil {
		return false
	}

	if err := r.backend.Continue(ctx, sessionID); err != nil {
		r.log.Diag("continue", err, zap.String("sessionId", sessionID))
		r.log.ExecutionControl("continue", false)
		return false
	}
	r.log.ExecutionControl("continue", true)
	return true
}

// GetLaunchConfigurations returns the read-only configuration list.
func (r *Registry) GetLaunchConfigurations() []types.LaunchConfigurationInfo {
	return r.configs.List()
}

// StartDebugging launches the named configuration after consent. The
// returned bool is the caller's entire view: a consent denial, an unknown
// configuration and a backend failure all surface as false.
func (r *Registry) StartDebugging(ctx context.Context, name, folder string) (bool, error) {
	if err := validate.ConfigurationName(name); err != nil {
		r.log.ValidationRejected("start-debugging", gerrors.DetailOf(err))
		return false, err
	}

	if !r.consent.CanUse(ctx, name) {
		r.log.ExecutionControl("start", false)
		return false, nil
	}

	// An explicit folder must be one of the configured workspace roots.
	// Launch configurations are never read from arbitrary paths, otherwise
	// a planted launch.json could reuse an already approved name.
	if folder != "" {
		normalized, err := validate.FilePath(folder, r.configs.PrimaryRoot())
		if err != nil {
			r.log.ValidationRejected("start-debugging", gerrors.DetailOf(err))
			return false, err
		}
		if !r.configs.HasRoot(normalized) {
			verr := gerrors.Validation("folder", "not a configured workspace folder: "+normalized)
			r.log.ValidationRejected("start-debugging", gerrors.DetailOf(verr))
			return false, verr
		}
		folder = normalized
	}

	cfg, ok := r.configs.Find(name, folder)
	if !ok {
		r.log.Diag("start-debugging", fmt.Errorf("unknown configuration: %s", name))
		r.log.ExecutionControl("start", false)
		return false, nil
	}

	if _, err := r.backend.Start(ctx, cfg.Info.Name, cfg.Info.Type, cfg.Info.WorkspaceFolder, cfg.Raw); err != nil {
		r.log.Diag("start-debugging", err, zap.String("configuration", name))
		r.log.ExecutionControl("start", false)
		return false, nil
	}

	r.log.ExecutionControl("start", true)
	return true, nil
}

// StopDebugging stops the active session and reports success. With no
// active session it returns false.
func (r *Registry) StopDebugging(ctx context.Context) bool {
	sessionID, err := r.activeSessionID()
	if err != nil {
		return false
	}

	if err := r.backend.Stop(ctx, sessionID); err != nil {
		r.log.Diag("stop-debugging", err, zap.String("sessionId", sessionID))
		r.log.ExecutionControl("stop", false)
		return false
	}
	r.log.ExecutionControl("stop", true)
	return true
}
