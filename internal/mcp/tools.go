package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools registers the 12-tool debug gateway API
func (s *Server) registerTools() {
	// Read-only state
	s.registerListSessions()
	s.registerActiveSession()
	s.registerListBreakpoints()
	s.registerCallStack()
	s.registerVariables()
	s.registerListConfigurations()

	// Mutations
	s.registerSetBreakpoint()
	s.registerRemoveBreakpoint()
	s.registerStep()
	s.registerContinue()
	s.registerStart()
	s.registerStop()
}

func (s *Server) registerListSessions() {
	tool := mcp.NewTool("debug_list_sessions",
		mcp.WithDescription("List all active debug sessions with their name, type, configuration and workspace folder."),
	)
	s.mcpServer.AddTool(tool, s.handleListSessions)
}

func (s *Server) registerActiveSession() {
	tool := mcp.NewTool("debug_active_session",
		mcp.WithDescription("Get the currently active debug session, or an empty result when no session is active."),
	)
	s.mcpServer.AddTool(tool, s.handleActiveSession)
}

func (s *Server) registerListBreakpoints() {
	tool := mcp.NewTool("debug_list_breakpoints",
		mcp.WithDescription("List all breakpoints across all files. Lines and columns are 1-based."),
	)
	s.mcpServer.AddTool(tool, s.handleListBreakpoints)
}

func (s *Server) registerCallStack() {
	tool := mcp.NewTool("debug_call_stack",
		mcp.WithDescription("Get the call stack of the active session's stopped thread. Returns an empty stack when no session is active or the debuggee is running."),
	)
	s.mcpServer.AddTool(tool, s.handleCallStack)
}

func (s *Server) registerVariables() {
	tool := mcp.NewTool("debug_variables",
		mcp.WithDescription("Inspect the variables of one stack frame of the active session. Returns an empty list when no session is active or the debuggee is running."),
		mcp.WithNumber("frameIndex",
			mcp.Description("Frame index from the top of the stack (default: 0, the innermost frame)"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleVariables)
}

func (s *Server) registerListConfigurations() {
	tool := mcp.NewTool("debug_list_configurations",
		mcp.WithDescription("List the launch configurations available for debugging. Names, types and request kinds only; configuration bodies are not exposed."),
	)
	s.mcpServer.AddTool(tool, s.handleListConfigurations)
}

func (s *Server) registerSetBreakpoint() {
	tool := mcp.NewTool("debug_set_breakpoint",
		mcp.WithDescription("Set a breakpoint at a file and line. The file must exist inside the workspace. Setting a breakpoint where one exists replaces it."),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("Path to the source file, absolute or relative to the workspace root"),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("1-based line number"),
		),
		mcp.WithNumber("column",
			mcp.Description("1-based column number (optional)"),
		),
		mcp.WithString("condition",
			mcp.Description("Conditional expression; the breakpoint only triggers when it evaluates true"),
		),
		mcp.WithString("hitCondition",
			mcp.Description("Hit count condition, e.g. '>= 5'"),
		),
		mcp.WithString("logMessage",
			mcp.Description("Log message to emit instead of stopping (creates a logpoint)"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleSetBreakpoint)
}

func (s *Server) registerRemoveBreakpoint() {
	tool := mcp.NewTool("debug_remove_breakpoint",
		mcp.WithDescription("Remove the breakpoint(s) at a file and line. When a column is given only breakpoints at that column are removed. Returns removed=false when nothing matched."),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("Path to the source file, absolute or relative to the workspace root"),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("1-based line number"),
		),
		mcp.WithNumber("column",
			mcp.Description("1-based column number (optional)"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleRemoveBreakpoint)
}

func (s *Server) registerStep() {
	tool := mcp.NewTool("debug_step",
		mcp.WithDescription("Step the active session's stopped thread. Returns ok=false when no session is active or the thread is not stopped."),
		mcp.WithString("kind",
			mcp.Description("Step kind: 'over' (default), 'into' or 'out'"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleStep)
}

func (s *Server) registerContinue() {
	tool := mcp.NewTool("debug_continue",
		mcp.WithDescription("Resume execution of the active session's stopped thread. Returns ok=false when no session is active or the thread is not stopped."),
	)
	s.mcpServer.AddTool(tool, s.handleContinue)
}

func (s *Server) registerStart() {
	tool := mcp.NewTool("debug_start",
		mcp.WithDescription("Start debugging a named launch configuration. Launching may require interactive user consent; a denial returns started=false."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the launch configuration to start"),
		),
		mcp.WithString("workspaceFolder",
			mcp.Description("Workspace folder containing the configuration (optional, disambiguates duplicate names)"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleStart)
}

func (s *Server) registerStop() {
	tool := mcp.NewTool("debug_stop",
		mcp.WithDescription("Stop the active debug session. Returns stopped=false when no session is active."),
	)
	s.mcpServer.AddTool(tool, s.handleStop)
}
