// Package validate rejects or normalizes every externally supplied value
// before it reaches the debugger backend or is persisted or logged.
//
// All functions are pure except FileExistsInWorkspace, which performs a
// read-only existence check. Rejections return *errors.GatewayError values
// whose caller-visible text never includes the offending value; the detail
// belongs in the security log.
package validate

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	gerrors "github.com/dapguard/dapguard/internal/errors"
)

const (
	// MaxPathLength bounds any file path accepted from a caller.
	MaxPathLength = 4096
	// MaxLineNumber bounds 1-based line numbers.
	MaxLineNumber = 1_000_000
	// MaxColumnNumber bounds 1-based column numbers.
	MaxColumnNumber = 1_000
	// MaxConditionLength bounds breakpoint condition expressions.
	MaxConditionLength = 1000
	// MaxLogMessageLength bounds breakpoint log messages.
	MaxLogMessageLength = 500
	// MaxConfigNameLength bounds launch configuration names.
	MaxConfigNameLength = 100
)

// FilePath validates and normalizes an untrusted file path. Relative paths
// are resolved against workspaceRoot. The normalized form must be absolute,
// within the length bound, and free of parent-directory segments,
// home-directory shorthand, and control bytes that enable log or header
// injection.
func FilePath(path, workspaceRoot string) (string, error) {
	if path == "" {
		return "", gerrors.Validation("file path", "empty path")
	}
	if len(path) > MaxPathLength {
		return "", gerrors.Validation("file path", fmt.Sprintf("path length %d exceeds %d", len(path), MaxPathLength))
	}
	if strings.ContainsAny(path, "\x00\r\n") {
		return "", gerrors.Validation("file path", "path contains control characters")
	}
	if strings.Contains(path, "~") {
		return "", gerrors.Validation("file path", "path contains home-directory shorthand")
	}
	// Checked before Clean, which would silently resolve traversal away.
	if strings.Contains(path, "..") {
		return "", gerrors.Validation("file path", "path contains parent-directory segments")
	}

	normalized := path
	if !filepath.IsAbs(normalized) {
		if workspaceRoot == "" {
			return "", gerrors.Validation("file path", "relative path with no workspace root")
		}
		normalized = filepath.Join(workspaceRoot, normalized)
	}
	return filepath.Clean(normalized), nil
}

// LineNumber validates a 1-based line number.
func LineNumber(n int) error {
	if n < 1 || n > MaxLineNumber {
		return gerrors.Validation("line number", fmt.Sprintf("line %d out of range [1, %d]", n, MaxLineNumber))
	}
	return nil
}

// ColumnNumber validates a 1-based column number.
func ColumnNumber(n int) error {
	if n < 1 || n > MaxColumnNumber {
		return gerrors.Validation("column number", fmt.Sprintf("column %d out of range [1, %d]", n, MaxColumnNumber))
	}
	return nil
}

// sanitize strips CR, LF and angle brackets, then trims whitespace.
// Applying it twice yields the same string.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\r', '\n', '<', '>':
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimFunc(b.String(), unicode.IsSpace)
}

// BreakpointCondition validates and sanitizes a breakpoint condition
// expression. Empty input is valid and stays empty.
func BreakpointCondition(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if len(s) > MaxConditionLength {
		return "", gerrors.Validation("breakpoint condition", fmt.Sprintf("condition length %d exceeds %d", len(s), MaxConditionLength))
	}
	return sanitize(s), nil
}

// LogMessage validates and sanitizes a breakpoint log message. Empty input
// is valid and stays empty.
func LogMessage(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if len(s) > MaxLogMessageLength {
		return "", gerrors.Validation("log message", fmt.Sprintf("log message length %d exceeds %d", len(s), MaxLogMessageLength))
	}
	return sanitize(s), nil
}

// ConfigurationName validates a launch configuration name.
func ConfigurationName(s string) error {
	if s == "" {
		return gerrors.Validation("configuration name", "empty name")
	}
	if len(s) > MaxConfigNameLength {
		return gerrors.Validation("configuration name", fmt.Sprintf("name length %d exceeds %d", len(s), MaxConfigNameLength))
	}
	if strings.ContainsAny(s, "\x00\r\n<>") {
		return gerrors.Validation("configuration name", "name contains forbidden characters")
	}
	return nil
}

// Filesystem is the read-only view validate needs for existence checks.
// The production implementation stats the real filesystem; tests inject
// a fake.
type Filesystem interface {
	IsRegularFile(path string) bool
}

// FileExistsInWorkspace reports whether path resolves inside one of the
// known workspace roots and names an existing regular file. It is a
// pre-condition for breakpoint creation only; removal may target a
// now-deleted file without error.
func FileExistsInWorkspace(fs Filesystem, path string, roots []string) bool {
	for _, root := range roots {
		if root == "" {
			continue
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return fs.IsRegularFile(path)
	}
	return false
}
