package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	gerrors "github.com/dapguard/dapguard/internal/errors"
	"github.com/dapguard/dapguard/internal/registry"
	"github.com/dapguard/dapguard/pkg/types"
)

// Result shapes. Structs rather than maps so field order in the JSON output
// is stable across calls.

type listSessionsResult struct {
	Sessions []types.DebugSession `json:"sessions"`
	Count    int                  `json:"count"`
}

type activeSessionResult struct {
	Active  bool                `json:"active"`
	Session *types.DebugSession `json:"session,omitempty"`
}

type listBreakpointsResult struct {
	Breakpoints []types.Breakpoint `json:"breakpoints"`
	Count       int                `json:"count"`
}

type setBreakpointResult struct {
	Breakpoint types.Breakpoint `json:"breakpoint"`
}

type removeBreakpointResult struct {
	Removed bool `json:"removed"`
}

type callStackResult struct {
	Frames []types.StackFrame `json:"frames"`
}

type variablesResult struct {
	Variables []types.Variable `json:"variables"`
}

type configurationsResult struct {
	Configurations []types.LaunchConfigurationInfo `json:"configurations"`
	Count          int                             `json:"count"`
}

type okResult struct {
	OK bool `json:"ok"`
}

type startResult struct {
	Started bool `json:"started"`
}

type stopResult struct {
	Stopped bool `json:"stopped"`
}

func jsonResult(data any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// Read-only state handlers

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqID := s.log.Request("list-sessions")

	sessions := s.registry.ListActiveSessions()
	s.log.Result(reqID, "list-sessions", true, zap.Int("count", len(sessions)))

	return jsonResult(listSessionsResult{Sessions: sessions, Count: len(sessions)})
}

func (s *Server) handleActiveSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqID := s.log.Request("get-active-session")

	session, ok := s.registry.ActiveSession()
	s.log.Result(reqID, "get-active-session", true, zap.Bool("active", ok))

	result := activeSessionResult{Active: ok}
	if ok {
		result.Session = &session
	}
	return jsonResult(result)
}

func (s *Server) handleListBreakpoints(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqID := s.log.Request("list-breakpoints")

	bps := s.registry.ListBreakpoints()
	s.log.Result(reqID, "list-breakpoints", true, zap.Int("count", len(bps)))

	return jsonResult(listBreakpointsResult{Breakpoints: bps, Count: len(bps)})
}

func (s *Server) handleCallStack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqID := s.log.Request("get-call-stack")

	frames := s.registry.GetCallStack(ctx)
	s.log.Result(reqID, "get-call-stack", true, zap.Int("frames", len(frames)))

	return jsonResult(callStackResult{Frames: frames})
}

func (s *Server) handleVariables(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	frameIndex := request.GetInt("frameIndex", 0)

	reqID := s.log.Request("inspect-variables", zap.Int("frameIndex", frameIndex))

	vars := s.registry.GetVariables(ctx, frameIndex)
	s.log.Result(reqID, "inspect-variables", true, zap.Int("count", len(vars)))

	return jsonResult(variablesResult{Variables: vars})
}

func (s *Server) handleListConfigurations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqID := s.log.Request("list-launch-configurations")

	configs := s.registry.GetLaunchConfigurations()
	s.log.Result(reqID, "list-launch-configurations", true, zap.Int("count", len(configs)))

	return jsonResult(configurationsResult{Configurations: configs, Count: len(configs)})
}

// Mutation handlers

func (s *Server) handleSetBreakpoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := request.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(gerrors.InvalidParameter("set-breakpoint", "missing file").Error()), nil
	}
	line, err := request.RequireInt("line")
	if err != nil {
		return mcp.NewToolResultError(gerrors.InvalidParameter("set-breakpoint", "missing line").Error()), nil
	}

	req := registry.SetBreakpointRequest{
		File:         file,
		Line:         line,
		Column:       request.GetInt("column", 0),
		Condition:    request.GetString("condition", ""),
		HitCondition: request.GetString("hitCondition", ""),
		LogMessage:   request.GetString("logMessage", ""),
	}

	reqID := s.log.Request("set-breakpoint", zap.Int("line", line))

	bp, err := s.registry.SetBreakpoint(ctx, req)
	if err != nil {
		s.log.Result(reqID, "set-breakpoint", false)
		return mcp.NewToolResultError(gerrors.SafeMessage("set-breakpoint", err)), nil
	}

	s.log.Result(reqID, "set-breakpoint", true, zap.String("breakpointId", bp.ID))
	return jsonResult(setBreakpointResult{Breakpoint: bp})
}

func (s *Server) handleRemoveBreakpoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := request.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(gerrors.InvalidParameter("remove-breakpoint", "missing file").Error()), nil
	}
	line, err := request.RequireInt("line")
	if err != nil {
		return mcp.NewToolResultError(gerrors.InvalidParameter("remove-breakpoint", "missing line").Error()), nil
	}
	column := request.GetInt("column", 0)

	reqID := s.log.Request("remove-breakpoint", zap.Int("line", line))

	removed, err := s.registry.RemoveBreakpoint(ctx, file, line, column)
	if err != nil {
		s.log.Result(reqID, "remove-breakpoint", false)
		return mcp.NewToolResultError(gerrors.SafeMessage("remove-breakpoint", err)), nil
	}

	s.log.Result(reqID, "remove-breakpoint", true, zap.Bool("removed", removed))
	return jsonResult(removeBreakpointResult{Removed: removed})
}

func (s *Server) handleStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := types.StepKind(request.GetString("kind", string(types.StepOver)))
	switch kind {
	case types.StepOver, types.StepInto, types.StepOut:
	default:
		return mcp.NewToolResultError(gerrors.InvalidParameter("step", "unknown step kind").Error()), nil
	}

	reqID := s.log.Request("step", zap.String("kind", string(kind)))

	ok := s.registry.Step(ctx, kind)
	s.log.Result(reqID, "step", ok)

	return jsonResult(okResult{OK: ok})
}

func (s *Server) handleContinue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqID := s.log.Request("continue")

	ok := s.registry.Continue(ctx)
	s.log.Result(reqID, "continue", ok)

	return jsonResult(okResult{OK: ok})
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(gerrors.InvalidParameter("start-debugging", "missing name").Error()), nil
	}
	folder := request.GetString("workspaceFolder", "")

	reqID := s.log.Request("start-debugging", zap.String("configuration", name))

	started, err := s.registry.StartDebugging(ctx, name, folder)
	if err != nil {
		s.log.Result(reqID, "start-debugging", false)
		return mcp.NewToolResultError(gerrors.SafeMessage("start-debugging", err)), nil
	}

	s.log.Result(reqID, "start-debugging", started)
	return jsonResult(startResult{Started: started})
}

func (s *Server) handleStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqID := s.log.Request("stop-debugging")

	stopped := s.registry.StopDebugging(ctx)
	s.log.Result(reqID, "stop-debugging", stopped)

	return jsonResult(stopResult{Stopped: stopped})
}
