package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/corewright/pilot/agenterr"
	"github.com/corewright/pilot/workspace"
)

const readSchema = `{
	"type": "object",
	"properties": {
		"path": {"type": "string", "description": "File path, relative to the workspace root or absolute"},
		"limit": {"type": "integer", "description": "Maximum number of lines to return"}
	},
	"required": ["path"]
}`

const writeSchema = `{
	"type": "object",
	"properties": {
		"path": {"type": "string", "description": "File path to write, relative to the workspace root or absolute"},
		"content": {"type": "string", "description": "Full file content to write"}
	},
	"required": ["path", "content"]
}`

const editSchema = `{
	"type": "object",
	"properties": {
		"path": {"type": "string", "description": "File path to edit, relative to the workspace root or absolute"},
		"old_text": {"type": "string", "description": "Exact text to find; must be unambiguous enough for your intent"},
		"new_text": {"type": "string", "description": "Replacement text"}
	},
	"required": ["path", "old_text", "new_text"]
}`

type readInput struct {
	Path  string `json:"path"`
	Limit int    `json:"limit"`
}

type writeInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type editInput struct {
	Path    string `json:"path"`
	OldText string `json:"old_text"`
	NewText string `json:"new_text"`
}

func registerFilesystemTools(r *Registry) {
	registerReadTool(r)
	r.register(ToolWrite, "Write a file, overwriting it if it already exists.", writeSchema, false, writeTool)
	r.register(ToolEdit, "Replace the first occurrence of old_text with new_text in a file.", editSchema, false, editTool)
	registerGlobGrep(r)
}

func registerReadTool(r *Registry) {
	r.register(ToolRead, "Read a UTF-8 text file, optionally limited to the first N lines.", readSchema, true, readTool)
}

func readTool(_ context.Context, ec *ExecutionContext, input json.RawMessage) string {
	params, err := parseInput[readInput](input)
	if err != nil {
		return agenterr.Validation(err.Error()).Error()
	}

	path, err := ec.Workspace.ResolvePath(params.Path)
	if err != nil {
		return err.Error()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return agenterr.NotFound(fmt.Sprintf("could not read %s: %v", params.Path, err)).Error()
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	if params.Limit <= 0 {
		return content
	}

	lines := splitLinesKeepTrailing(content)
	if params.Limit >= len(lines) {
		return content
	}

	shown := strings.Join(lines[:params.Limit], "\n")
	remaining := len(lines) - params.Limit
	return fmt.Sprintf("%s\n... (%d more lines)", shown, remaining)
}

// splitLinesKeepTrailing splits on "\n" the way a line-counter would: a
// trailing newline does not create a phantom empty final line.
func splitLinesKeepTrailing(content string) []string {
	if content == "" {
		return nil
	}
	trimmed := strings.TrimSuffix(content, "\n")
	return strings.Split(trimmed, "\n")
}

func writeTool(_ context.Context, ec *ExecutionContext, input json.RawMessage) string {
	params, err := parseInput[writeInput](input)
	if err != nil {
		return agenterr.Validation(err.Error()).Error()
	}

	path, err := ec.Workspace.ResolvePath(params.Path)
	if err != nil {
		return err.Error()
	}

	if err := workspace.EnsureParentDir(path); err != nil {
		return agenterr.NotFound(fmt.Sprintf("could not create parent directory for %s: %v", params.Path, err)).Error()
	}
	if err := os.WriteFile(path, []byte(params.Content), 0o644); err != nil {
		return agenterr.NotFound(fmt.Sprintf("could not write %s: %v", params.Path, err)).Error()
	}

	return fmt.Sprintf("Wrote %d bytes to %s", len(params.Content), params.Path)
}

func editTool(_ context.Context, ec *ExecutionContext, input json.RawMessage) string {
	params, err := parseInput[editInput](input)
	if err != nil {
		return agenterr.Validation(err.Error()).Error()
	}

	path, err := ec.Workspace.ResolvePath(params.Path)
	if err != nil {
		return err.Error()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return agenterr.NotFound(fmt.Sprintf("could not read %s: %v", params.Path, err)).Error()
	}
	content := string(data)

	if !strings.Contains(content, params.OldText) {
		return agenterr.NotFound(fmt.Sprintf("Text not found in %s", params.Path)).Error()
	}

	updated := strings.Replace(content, params.OldText, params.NewText, 1)

	info, err := os.Stat(path)
	mode := os.FileMode(0o644)
	if err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(path, []byte(updated), mode); err != nil {
		return agenterr.NotFound(fmt.Sprintf("could not write %s: %v", params.Path, err)).Error()
	}

	return fmt.Sprintf("Edited %s", params.Path)
}
