// Package audit writes the gateway's append-only audit trail and its
// diagnostic/security log.
//
// Every security-relevant decision (validation rejection, consent grant or
// deny, breakpoint mutation, execution-control action) is recorded with
// enough context to reconstruct it. Field values reaching this package must
// already have passed through the validator; unsanitized caller content is
// never logged.
package audit

import (
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes audit entries as JSON lines via zap. The audit sink and the
// diagnostic sink may be the same writer or different files.
type Logger struct {
	audit *zap.Logger
	diag  *zap.Logger
}

// New creates a Logger writing audit entries to auditPath and diagnostics to
// stderr. An empty auditPath sends audit entries to stderr as well.
func New(auditPath string) (*Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)

	diagCore := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), zap.InfoLevel)
	diag := zap.New(diagCore)

	auditSink := zapcore.Lock(os.Stderr)
	if auditPath != "" {
		f, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, err
		}
		auditSink = zapcore.Lock(f)
	}
	auditCore := zapcore.NewCore(enc, auditSink, zap.InfoLevel)

	return &Logger{
		audit: zap.New(auditCore).Named("audit"),
		diag:  diag.Named("diag"),
	}, nil
}

// NewWithLoggers builds a Logger from preconstructed zap loggers. Tests use
// this with zaptest or observer cores.
func NewWithLoggers(auditLogger, diagLogger *zap.Logger) *Logger {
	return &Logger{audit: auditLogger, diag: diagLogger}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{audit: zap.NewNop(), diag: zap.NewNop()}
}

// Request records an inbound tool invocation and returns its request id for
// correlation with the matching Result entry.
func (l *Logger) Request(operation string, fields ...zap.Field) string {
	id := uuid.New().String()
	all := append([]zap.Field{zap.String("requestId", id), zap.String("operation", operation)}, fields...)
	l.audit.Info("agent requested operation", all...)
	return id
}

// Result records the outcome of a tool invocation, success or failure.
func (l *Logger) Result(requestID, operation string, ok bool, fields ...zap.Field) {
	all := append([]zap.Field{
		zap.String("requestId", requestID),
		zap.String("operation", operation),
		zap.Bool("ok", ok),
	}, fields...)
	l.audit.Info("operation result", all...)
}

// ValidationRejected records a validator rejection. The detail stays in the
// log; the caller sees only the generic safe message.
func (l *Logger) ValidationRejected(operation, detail string) {
	l.audit.Warn("validation rejected",
		zap.String("operation", operation),
		zap.String("detail", detail))
}

// Consent records a consent decision for a configuration name.
func (l *Logger) Consent(configuration, decision string) {
	l.audit.Info("consent decision",
		zap.String("configuration", configuration),
		zap.String("decision", decision))
}

// BreakpointMutation records a set or remove of a breakpoint.
func (l *Logger) BreakpointMutation(action, file string, line, column int) {
	l.audit.Info("breakpoint mutation",
		zap.String("action", action),
		zap.String("file", file),
		zap.Int("line", line),
		zap.Int("column", column))
}

// ExecutionControl records a step/continue/stop/start action and its outcome.
func (l *Logger) ExecutionControl(action string, ok bool) {
	l.audit.Info("execution control",
		zap.String("action", action),
		zap.Bool("ok", ok))
}

// Diag records an internal failure with detail that must not reach callers.
func (l *Logger) Diag(operation string, err error, fields ...zap.Field) {
	all := append([]zap.Field{zap.String("operation", operation), zap.Error(err)}, fields...)
	l.diag.Warn("internal failure", all...)
}

// DiagLogger exposes the diagnostic zap logger for components that log
// structured detail directly rather than through the helpers above.
func (l *Logger) DiagLogger() *zap.Logger { return l.diag }

// Sync flushes both sinks.
func (l *Logger) Sync() {
	_ = l.audit.Sync()
	_ = l.diag.Sync()
}
