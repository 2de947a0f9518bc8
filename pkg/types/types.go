// Package types defines shared data types used across the dapguard gateway.
//
// This package provides type definitions for:
//   - DebugSession: a live debug session mirrored from the backend
//   - Breakpoint / SourceBreakpoint: external (1-based) and backend (0-based)
//     breakpoint records
//   - LaunchConfigurationInfo: read-only projection of a launch.json entry
//   - StackFrame, Variable: inspection results
//   - DebugEvent: backend lifecycle events consumed by the session registry
//
// These types are used throughout the codebase to maintain type safety
// and provide clear contracts between components.
package types

// DebugSession mirrors a live session reported by the debugger backend.
// The backend assigns the ID; the registry never generates session identity.
type DebugSession struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Type            string         `json:"type"`
	Configuration   map[string]any `json:"configuration,omitempty"`
	WorkspaceFolder string         `json:"workspaceFolder,omitempty"`
}

// Breakpoint is the external-facing breakpoint record. Line and Column are
// 1-based. ID is derived deterministically from the normalized location, so
// two reads of the same breakpoint always agree.
type Breakpoint struct {
	ID           string `json:"id"`
	File         string `json:"file"`
	Line         int    `json:"line"`
	Column       int    `json:"column,omitempty"`
	Enabled      bool   `json:"enabled"`
	Condition    string `json:"condition,omitempty"`
	HitCondition string `json:"hitCondition,omitempty"`
	LogMessage   string `json:"logMessage,omitempty"`
}

// SourceBreakpoint is the backend-native breakpoint record. Line and Column
// are 0-based, matching the backend's coordinate system.
type SourceBreakpoint struct {
	File         string `json:"file"`
	Line         int    `json:"line"`
	Column       int    `json:"column"`
	Enabled      bool   `json:"enabled"`
	Condition    string `json:"condition,omitempty"`
	HitCondition string `json:"hitCondition,omitempty"`
	LogMessage   string `json:"logMessage,omitempty"`
}

// LaunchConfigurationInfo is a read-only projection of one launch.json
// configuration. The gateway never mutates launch configurations.
type LaunchConfigurationInfo struct {
	Name            string `json:"name"`
	Type            string `json:"type"`
	Request         string `json:"request"`
	WorkspaceFolder string `json:"workspaceFolder,omitempty"`
}

// StackFrame represents a stack frame with 1-based external coordinates.
type StackFrame struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	File   string `json:"file,omitempty"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

// Variable represents a variable in a scope.
type Variable struct {
	Name               string `json:"name"`
	Value              string `json:"value"`
	Type               string `json:"type,omitempty"`
	VariablesReference int    `json:"variablesReference"`
}

// StepKind selects the step operation to perform.
type StepKind string

const (
	StepOver StepKind = "over"
	StepInto StepKind = "into"
	StepOut  StepKind = "out"
)

// EventKind identifies a backend lifecycle event.
type EventKind string

const (
	EventSessionStarted     EventKind = "sessionStarted"
	EventSessionTerminated  EventKind = "sessionTerminated"
	EventBreakpointsChanged EventKind = "breakpointsChanged"
)

// DebugEvent is a backend lifecycle event. Events are applied to the
// registry's live map strictly in emission order.
type DebugEvent struct {
	Kind    EventKind
	Session DebugSession
}
