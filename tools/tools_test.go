package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/corewright/pilot/tasktracker"
	"github.com/corewright/pilot/workspace"
)

func setupExecutionContext(t *testing.T) (*ExecutionContext, string) {
	t.Helper()
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "hello.go"), []byte("package main\n\nfunc main() {}\n"), 0644)
	os.WriteFile(filepath.Join(dir, "hello_test.go"), []byte("package main\n\nfunc TestMain() {}\n"), 0644)
	os.MkdirAll(filepath.Join(dir, "sub"), 0755)
	os.WriteFile(filepath.Join(dir, "sub", "nested.go"), []byte("package sub\n\nvar x = 42\n"), 0644)
	os.WriteFile(filepath.Join(dir, "readme.md"), []byte("# Hello\nWorld\n"), 0644)

	guard, err := workspace.New(dir)
	if err != nil {
		t.Fatalf("workspace.New: %v", err)
	}
	return &ExecutionContext{Workspace: guard, Tasks: tasktracker.New()}, dir
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestGlobTool(t *testing.T) {
	ec, _ := setupExecutionContext(t)
	r := NewBaseRegistry()

	tests := []struct {
		name    string
		pattern string
		want    []string
		noMatch bool
	}{
		{"all go files", "**/*.go", []string{"hello.go", "hello_test.go", "sub/nested.go"}, false},
		{"test files only", "**/*_test.go", []string{"hello_test.go"}, false},
		{"top-level go files", "*.go", []string{"hello.go", "hello_test.go"}, false},
		{"nested only", "sub/*.go", []string{"sub/nested.go"}, false},
		{"no match", "**/*.rs", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := r.Dispatch(context.Background(), ec, ToolGlob, mustJSON(t, globInput{Pattern: tt.pattern}))
			if tt.noMatch {
				if !strings.Contains(result, "No files matched") {
					t.Errorf("expected no match message, got: %s", result)
				}
				return
			}
			for _, want := range tt.want {
				if !strings.Contains(result, want) {
					t.Errorf("expected %q in result, got: %s", want, result)
				}
			}
		})
	}
}

func TestGrepTool(t *testing.T) {
	ec, _ := setupExecutionContext(t)
	r := NewBaseRegistry()

	tests := []struct {
		name    string
		pattern string
		glob    string
		want    string
		noMatch bool
	}{
		{"find func", "func main", "", "hello.go:3", false},
		{"find var", "var x", "", "sub/nested.go:3", false},
		{"with glob filter", "package", "*.md", "", true},
		{"no match", "nonexistent_string_xyz", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := r.Dispatch(context.Background(), ec, ToolGrep, mustJSON(t, grepInput{Pattern: tt.pattern, Glob: tt.glob}))
			if tt.noMatch {
				if !strings.Contains(result, "No matches") {
					t.Errorf("expected no match, got: %s", result)
				}
				return
			}
			if !strings.Contains(result, tt.want) {
				t.Errorf("expected %q in result, got: %s", tt.want, result)
			}
		})
	}
}

func TestGrepOffsetHeadLimit(t *testing.T) {
	dir := t.TempDir()
	var lines strings.Builder
	for i := 0; i < 10; i++ {
		lines.WriteString("match\n")
	}
	os.WriteFile(filepath.Join(dir, "many.txt"), []byte(lines.String()), 0644)
	guard, _ := workspace.New(dir)
	ec := &ExecutionContext{Workspace: guard, Tasks: tasktracker.New()}
	r := NewBaseRegistry()

	full := r.Dispatch(context.Background(), ec, ToolGrep, mustJSON(t, grepInput{Pattern: "match"}))
	fullLines := strings.Split(full, "\n")
	if len(fullLines) != 10 {
		t.Fatalf("expected 10 lines, got %d", len(fullLines))
	}

	windowed := r.Dispatch(context.Background(), ec, ToolGrep, mustJSON(t, grepInput{Pattern: "match", Offset: 2, HeadLimit: 3}))
	windowLines := strings.Split(windowed, "\n")
	if len(windowLines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %v", len(windowLines), windowLines)
	}
	for i, l := range windowLines {
		if l != fullLines[2+i] {
			t.Errorf("line %d mismatch: got %q want %q", i, l, fullLines[2+i])
		}
	}
}

func TestReadTool(t *testing.T) {
	ec, _ := setupExecutionContext(t)
	r := NewBaseRegistry()

	result := r.Dispatch(context.Background(), ec, ToolRead, mustJSON(t, readInput{Path: "hello.go"}))
	if !strings.Contains(result, "func main()") {
		t.Errorf("expected whole file, got: %s", result)
	}

	result = r.Dispatch(context.Background(), ec, ToolRead, mustJSON(t, readInput{Path: "nonexistent.txt"}))
	if !strings.HasPrefix(result, "Error") {
		t.Errorf("expected error for missing file, got: %s", result)
	}
}

func TestReadToolLimitBoundary(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "f.txt"), []byte("a\nb\nc\n"), 0644)
	guard, _ := workspace.New(dir)
	ec := &ExecutionContext{Workspace: guard, Tasks: tasktracker.New()}
	r := NewBaseRegistry()

	// total_lines == 3; limit == 3 must not show the marker.
	result := r.Dispatch(context.Background(), ec, ToolRead, mustJSON(t, readInput{Path: "f.txt", Limit: 3}))
	if strings.Contains(result, "more lines") {
		t.Errorf("did not expect marker at limit == total_lines, got: %s", result)
	}

	// limit == total_lines - 1 must show the marker.
	result = r.Dispatch(context.Background(), ec, ToolRead, mustJSON(t, readInput{Path: "f.txt", Limit: 2}))
	if !strings.Contains(result, "(1 more lines)") {
		t.Errorf("expected marker at limit == total_lines - 1, got: %s", result)
	}
}

func TestWorkspaceEscapeRefused(t *testing.T) {
	ec, _ := setupExecutionContext(t)
	r := NewBaseRegistry()

	result := r.Dispatch(context.Background(), ec, ToolRead, mustJSON(t, readInput{Path: "../etc/passwd"}))
	if !strings.HasPrefix(result, "Error") || !strings.Contains(result, "Path escapes workspace") {
		t.Errorf("expected workspace escape error, got: %s", result)
	}
}

func TestWriteTool(t *testing.T) {
	ec, dir := setupExecutionContext(t)
	r := NewBaseRegistry()

	result := r.Dispatch(context.Background(), ec, ToolWrite, mustJSON(t, writeInput{Path: "newfile.txt", Content: "hello world"}))
	if !strings.Contains(result, "Wrote 11 bytes to newfile.txt") {
		t.Errorf("unexpected result: %s", result)
	}

	data, err := os.ReadFile(filepath.Join(dir, "newfile.txt"))
	if err != nil {
		t.Fatalf("file not created: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("unexpected content: %s", string(data))
	}
}

func TestEditToolFirstOccurrenceOnly(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "f.txt"), []byte("hello hello hello"), 0644)
	guard, _ := workspace.New(dir)
	ec := &ExecutionContext{Workspace: guard, Tasks: tasktracker.New()}
	r := NewBaseRegistry()

	result := r.Dispatch(context.Background(), ec, ToolEdit, mustJSON(t, editInput{Path: "f.txt", OldText: "hello", NewText: "bye"}))
	if result != "Edited f.txt" {
		t.Errorf("unexpected result: %s", result)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "f.txt"))
	if string(data) != "bye hello hello" {
		t.Errorf("unexpected content: %s", string(data))
	}
}

func TestEditToolNoMatch(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "test.txt"), []byte("hello world"), 0644)
	guard, _ := workspace.New(dir)
	ec := &ExecutionContext{Workspace: guard, Tasks: tasktracker.New()}
	r := NewBaseRegistry()

	result := r.Dispatch(context.Background(), ec, ToolEdit, mustJSON(t, editInput{Path: "test.txt", OldText: "nonexistent", NewText: "replacement"}))
	if !strings.Contains(result, "Text not found in test.txt") {
		t.Errorf("unexpected result: %s", result)
	}
}

func TestEditToolNoOpWhenReplacingWithSelf(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "test.txt"), []byte("hello world"), 0644)
	guard, _ := workspace.New(dir)
	ec := &ExecutionContext{Workspace: guard, Tasks: tasktracker.New()}
	r := NewBaseRegistry()

	r.Dispatch(context.Background(), ec, ToolEdit, mustJSON(t, editInput{Path: "test.txt", OldText: "hello", NewText: "hello"}))

	data, _ := os.ReadFile(filepath.Join(dir, "test.txt"))
	if string(data) != "hello world" {
		t.Errorf("expected byte-identical no-op, got: %s", string(data))
	}
}

func TestBashTool(t *testing.T) {
	ec, _ := setupExecutionContext(t)
	r := NewBaseRegistry()

	result := r.Dispatch(context.Background(), ec, ToolBash, mustJSON(t, bashInput{Command: "echo hello"}))
	if !strings.Contains(result, "hello") {
		t.Errorf("expected hello in output, got: %s", result)
	}
}

func TestBashToolDangerousCommandRefused(t *testing.T) {
	ec, _ := setupExecutionContext(t)
	r := NewBaseRegistry()

	result := r.Dispatch(context.Background(), ec, ToolBash, mustJSON(t, bashInput{Command: "sudo rm file"}))
	if !strings.Contains(result, "Refusing to run dangerous command") {
		t.Errorf("expected refusal, got: %s", result)
	}
}

func TestBashToolTimeout(t *testing.T) {
	ec, _ := setupExecutionContext(t)
	r := NewBaseRegistry()

	result := r.Dispatch(context.Background(), ec, ToolBash, mustJSON(t, bashInput{Command: "sleep 2", Timeout: 1}))
	if !strings.Contains(result, "Command timed out") {
		t.Errorf("expected timeout error, got: %s", result)
	}
}

func TestIsReadOnly(t *testing.T) {
	r := NewBaseRegistry()

	readOnlyTools := []string{ToolGlob, ToolGrep, ToolRead, ToolWebSearch, ToolWebReader}
	for _, name := range readOnlyTools {
		if !r.IsReadOnly(name) {
			t.Errorf("expected %s to be read-only", name)
		}
	}

	writeTools := []string{ToolWrite, ToolEdit, ToolBash}
	for _, name := range writeTools {
		if r.IsReadOnly(name) {
			t.Errorf("expected %s to NOT be read-only", name)
		}
	}
}

func TestUnknownToolDispatch(t *testing.T) {
	ec, _ := setupExecutionContext(t)
	r := NewBaseRegistry()

	result := r.Dispatch(context.Background(), ec, "NoSuchTool", json.RawMessage(`{}`))
	if result != "Error: Unknown tool: NoSuchTool" {
		t.Errorf("unexpected result: %s", result)
	}
}

func TestSchemaValidationRejectsMissingRequiredField(t *testing.T) {
	ec, _ := setupExecutionContext(t)
	r := NewBaseRegistry()

	result := r.Dispatch(context.Background(), ec, ToolRead, json.RawMessage(`{}`))
	if !strings.HasPrefix(result, "Error: input validation failed") {
		t.Errorf("expected validation error, got: %s", result)
	}
}

func TestExploreAndCodeRegistriesExcludeTask(t *testing.T) {
	explore := NewExploreRegistry()
	if explore.Has(ToolTask) {
		t.Error("Explore registry must not have Task tool")
	}
	if !explore.Has(ToolBash) || !explore.Has(ToolRead) {
		t.Error("Explore registry must have Bash and Read")
	}
	if explore.Has(ToolWrite) {
		t.Error("Explore registry must not have write-capable tools")
	}

	code := NewCodeRegistry()
	if code.Has(ToolTask) {
		t.Error("Code registry must not have Task tool")
	}
	if !code.Has(ToolWrite) || !code.Has(ToolEdit) {
		t.Error("Code registry must have the full base tool set minus Task")
	}
}
