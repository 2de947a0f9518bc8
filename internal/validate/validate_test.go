package validate

import (
	"path/filepath"
	"strings"
	"testing"
)

// TestFilePath_Traversal verifies that any path carrying a parent-directory
// segment or home shorthand is rejected, in any position.
func TestFilePath_Traversal(t *testing.T) {
	cases := []string{
		"../etc/passwd",
		"/workspace/../etc/passwd",
		"src/../../secret.go",
		"..",
		"~/notes.txt",
		"/home/~user/file.go",
	}

	for _, path := range cases {
		if _, err := FilePath(path, "/workspace"); err == nil {
			t.Errorf("expected rejection for %q", path)
		}
	}
}

// TestFilePath_ControlCharacters verifies control bytes are rejected.
func TestFilePath_ControlCharacters(t *testing.T) {
	cases := []string{
		"/workspace/a\x00b.go",
		"/workspace/a\nb.go",
		"/workspace/a\rb.go",
	}

	for _, path := range cases {
		if _, err := FilePath(path, "/workspace"); err == nil {
			t.Errorf("expected rejection for %q", path)
		}
	}
}

func TestFilePath_Empty(t *testing.T) {
	if _, err := FilePath("", "/workspace"); err == nil {
		t.Error("expected rejection for empty path")
	}
}

func TestFilePath_TooLong(t *testing.T) {
	path := "/" + strings.Repeat("a", MaxPathLength)
	if _, err := FilePath(path, "/workspace"); err == nil {
		t.Error("expected rejection for overlong path")
	}
}

// TestFilePath_RelativeResolved verifies relative paths resolve against the
// workspace root.
func TestFilePath_RelativeResolved(t *testing.T) {
	got, err := FilePath("src/main.go", "/workspace")
	if err != nil {
		t.Fatalf("FilePath failed: %v", err)
	}
	want := filepath.Join("/workspace", "src", "main.go")
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestFilePath_RelativeWithoutRoot(t *testing.T) {
	if _, err := FilePath("src/main.go", ""); err == nil {
		t.Error("expected rejection for relative path without workspace root")
	}
}

// TestFilePath_AbsoluteNormalized verifies absolute paths are cleaned but
// otherwise preserved.
func TestFilePath_AbsoluteNormalized(t *testing.T) {
	got, err := FilePath("/workspace//src/./main.go", "/other")
	if err != nil {
		t.Fatalf("FilePath failed: %v", err)
	}
	if got != "/workspace/src/main.go" {
		t.Errorf("unexpected normalized path: %q", got)
	}
}

func TestLineNumber_Range(t *testing.T) {
	for _, n := range []int{1, 500, MaxLineNumber} {
		if err := LineNumber(n); err != nil {
			t.Errorf("expected line %d to be valid: %v", n, err)
		}
	}
	for _, n := range []int{0, -1, MaxLineNumber + 1} {
		if err := LineNumber(n); err == nil {
			t.Errorf("expected line %d to be rejected", n)
		}
	}
}

func TestColumnNumber_Range(t *testing.T) {
	for _, n := range []int{1, MaxColumnNumber} {
		if err := ColumnNumber(n); err != nil {
			t.Errorf("expected column %d to be valid: %v", n, err)
		}
	}
	for _, n := range []int{0, -5, MaxColumnNumber + 1} {
		if err := ColumnNumber(n); err == nil {
			t.Errorf("expected column %d to be rejected", n)
		}
	}
}

// TestBreakpointCondition_Sanitize verifies forbidden characters are
// stripped and that sanitization is idempotent.
func TestBreakpointCondition_Sanitize(t *testing.T) {
	got, err := BreakpointCondition("  x > 5 && y <\r\n 10  ")
	if err != nil {
		t.Fatalf("BreakpointCondition failed: %v", err)
	}
	if strings.ContainsAny(got, "<>\r\n") {
		t.Errorf("sanitized condition still contains forbidden characters: %q", got)
	}

	again, err := BreakpointCondition(got)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if again != got {
		t.Errorf("sanitize not idempotent: %q vs %q", got, again)
	}
}

func TestBreakpointCondition_Empty(t *testing.T) {
	got, err := BreakpointCondition("")
	if err != nil || got != "" {
		t.Errorf("empty condition should stay empty and valid, got %q, %v", got, err)
	}
}

func TestBreakpointCondition_TooLong(t *testing.T) {
	if _, err := BreakpointCondition(strings.Repeat("x", MaxConditionLength+1)); err == nil {
		t.Error("expected rejection for overlong condition")
	}
}

func TestLogMessage_TooLong(t *testing.T) {
	if _, err := LogMessage(strings.Repeat("x", MaxLogMessageLength+1)); err == nil {
		t.Error("expected rejection for overlong log message")
	}
}

func TestConfigurationName(t *testing.T) {
	if err := ConfigurationName("Launch Server"); err != nil {
		t.Errorf("expected valid name: %v", err)
	}
	for _, name := range []string{"", strings.Repeat("n", MaxConfigNameLength+1), "bad\nname", "bad<name>"} {
		if err := ConfigurationName(name); err == nil {
			t.Errorf("expected rejection for %q", name)
		}
	}
}

type fakeFS map[string]bool

func (f fakeFS) IsRegularFile(path string) bool { return f[path] }

func TestFileExistsInWorkspace(t *testing.T) {
	fs := fakeFS{
		"/workspace/src/main.go": true,
		"/elsewhere/main.go":     true,
	}
	roots := []string{"/workspace"}

	if !FileExistsInWorkspace(fs, "/workspace/src/main.go", roots) {
		t.Error("expected file inside workspace to pass")
	}
	if FileExistsInWorkspace(fs, "/elsewhere/main.go", roots) {
		t.Error("expected file outside workspace to fail")
	}
	if FileExistsInWorkspace(fs, "/workspace/missing.go", roots) {
		t.Error("expected missing file to fail")
	}
	// A sibling directory sharing the root's prefix is outside.
	if FileExistsInWorkspace(fakeFS{"/workspace2/x.go": true}, "/workspace2/x.go", roots) {
		t.Error("expected prefix-sibling path to fail")
	}
}
