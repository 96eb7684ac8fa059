// Package agenterr defines the typed error taxonomy tool handlers and the
// agent core use internally. Every error value here still collapses to a
// plain "Error: ..." string at the tool-dispatch boundary — the model never
// sees a Go error, only its rendered message.
package agenterr

import "fmt"

// Kind identifies which row of the error taxonomy an error belongs to.
type Kind string

const (
	KindWorkspaceEscape  Kind = "workspace_escape"
	KindDangerousCommand Kind = "dangerous_command"
	KindToolTimeout      Kind = "tool_timeout"
	KindInvalidRegex     Kind = "invalid_regex"
	KindValidation       Kind = "validation_error"
	KindUnknownTool      Kind = "unknown_tool"
	KindUnknownSkill     Kind = "unknown_skill"
	KindUnknownAgentType Kind = "unknown_agent_type"
	KindNotFound         Kind = "not_found"
	KindTransportFailure Kind = "transport_failure"
	KindUserInterrupt    Kind = "user_interrupt"
	KindConfiguration    Kind = "configuration_error"
)

// Error is a typed error carrying enough context to log structurally while
// still rendering a model-facing "Error: ..." message via Error().
type Error struct {
	Kind    Kind
	Message string
	Path    string // optional: file or URL path involved
	Tool    string // optional: tool name involved
	Cause   error  // optional: wrapped underlying error
}

func (e *Error) Error() string {
	return "Error: " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// WorkspaceEscape builds the error for a path that resolves outside the workspace root.
func WorkspaceEscape(path string) *Error {
	e := newErr(KindWorkspaceEscape, fmt.Sprintf("Path escapes workspace: %s", path))
	e.Path = path
	return e
}

// DangerousCommand builds the error for a shell command matching a refused substring.
func DangerousCommand(command string) *Error {
	return newErr(KindDangerousCommand, fmt.Sprintf("Refusing to run dangerous command: %s", command))
}

// ToolTimeout builds the error for a tool that exceeded its allotted timeout.
func ToolTimeout(seconds float64) *Error {
	return newErr(KindToolTimeout, fmt.Sprintf("Command timed out (%gs)", seconds))
}

// InvalidRegex builds the error for a pattern that failed to compile.
func InvalidRegex(pattern string) *Error {
	return newErr(KindInvalidRegex, fmt.Sprintf("Invalid regex pattern: %s", pattern))
}

// Validation builds a generic validation failure, used by TaskUpdate and schema checks.
func Validation(msg string) *Error {
	return newErr(KindValidation, msg)
}

// UnknownTool builds the error for a dispatch against an unregistered tool name.
func UnknownTool(name string) *Error {
	e := newErr(KindUnknownTool, fmt.Sprintf("Unknown tool: %s", name))
	e.Tool = name
	return e
}

// UnknownSkill builds the error for a Skill-tool request naming a skill not in the index.
func UnknownSkill(name string) *Error {
	return newErr(KindUnknownSkill, fmt.Sprintf("Unknown skill: %s", name))
}

// UnknownAgentType builds the error for a Task-tool request naming an unregistered agent type.
func UnknownAgentType(agentType string) *Error {
	return newErr(KindUnknownAgentType, fmt.Sprintf("Unknown agent type: %s", agentType))
}

// NotFound builds a not-found error for missing files or edit targets.
func NotFound(msg string) *Error {
	return newErr(KindNotFound, msg)
}

// TransportFailure wraps a model-transport failure that bubbles out of the loop.
func TransportFailure(cause error) *Error {
	e := newErr(KindTransportFailure, fmt.Sprintf("model request failed: %v", cause))
	e.Cause = cause
	return e
}

// Configuration builds a reported-once configuration parse error.
func Configuration(msg string, cause error) *Error {
	e := newErr(KindConfiguration, msg)
	e.Cause = cause
	return e
}
