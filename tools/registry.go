// Package tools implements the Tool Registry & Dispatch component: a static
// table of every built-in tool (name, description, JSON-schema input
// descriptor, handler), schema-validated dispatch, and the concrete
// filesystem/shell/web/task/skill/subagent tool implementations.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/corewright/pilot/agenterr"
	"github.com/corewright/pilot/model"
	"github.com/corewright/pilot/skills"
	"github.com/corewright/pilot/tasktracker"
	"github.com/corewright/pilot/ui"
	"github.com/corewright/pilot/workspace"
)

// Tool names, exactly as named in the component design.
const (
	ToolBash       = "Bash"
	ToolRead       = "Read"
	ToolWrite      = "Write"
	ToolEdit       = "Edit"
	ToolGlob       = "Glob"
	ToolGrep       = "Grep"
	ToolWebSearch  = "WebSearch"
	ToolWebReader  = "WebReader"
	ToolTaskUpdate = "TaskUpdate"
	ToolTask       = "Task"
	ToolSkill      = "Skill"
)

// SpawnSubagentFunc constructs and runs a bounded subagent, returning its
// projected text result. A nil SpawnSubagentFunc in an ExecutionContext is
// how subagents are prevented from spawning further subagents.
type SpawnSubagentFunc func(ctx context.Context, agentType, prompt string) (string, error)

// ExecutionContext is everything a tool handler needs beyond its own input:
// the workspace root, the owning agent's task tracker, the shared skill
// index, an optional subagent-spawning callback, and the UI sink.
type ExecutionContext struct {
	Workspace     *workspace.Guard
	Tasks         *tasktracker.Tracker
	Skills        *skills.Index
	SpawnSubagent SpawnSubagentFunc
	Sink          ui.Sink
	Searcher      SearchProvider
}

// Handler is the signature every tool implementation satisfies. Handlers
// return no Go error: every fault is rendered in-band, prefixed "Error: ",
// as the returned string.
type Handler func(ctx context.Context, ec *ExecutionContext, input json.RawMessage) string

type registeredTool struct {
	def      model.ToolDef
	handler  Handler
	schema   *jsonschema.Schema
	readOnly bool
}

// Registry is a static, name-keyed table of tools, built once and looked up
// by the agent core on every tool-use block.
type Registry struct {
	tools map[string]*registeredTool
	order []string
}

func newRegistry() *Registry {
	return &Registry{tools: make(map[string]*registeredTool)}
}

func (r *Registry) register(name, description string, schemaJSON string, readOnly bool, h Handler) {
	var schemaDoc any
	if err := json.Unmarshal([]byte(schemaJSON), &schemaDoc); err != nil {
		panic(fmt.Sprintf("tools: invalid schema literal for %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	resourceName := "schema-" + name + ".json"
	if err := compiler.AddResource(resourceName, schemaDoc); err != nil {
		panic(fmt.Sprintf("tools: add schema resource for %s: %v", name, err))
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		panic(fmt.Sprintf("tools: compile schema for %s: %v", name, err))
	}

	r.tools[name] = &registeredTool{
		def: model.ToolDef{
			Name:        name,
			Description: description,
			InputSchema: json.RawMessage(schemaJSON),
		},
		handler:  h,
		schema:   schema,
		readOnly: readOnly,
	}
	r.order = append(r.order, name)
}

// Definitions returns tool descriptors in registration order, for the
// model-visible tool list sent with every request.
func (r *Registry) Definitions() []model.ToolDef {
	defs := make([]model.ToolDef, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].def)
	}
	return defs
}

// Has reports whether name is present in this registry.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// IsReadOnly reports whether name never modifies workspace state.
func (r *Registry) IsReadOnly(name string) bool {
	t, ok := r.tools[name]
	return ok && t.readOnly
}

// Dispatch validates input against the tool's declared schema and, on
// success, invokes its handler. Unknown tool names and schema violations are
// rendered as ordinary "Error: "-prefixed result strings — dispatch never
// propagates a Go error for these cases, matching §4.2/§7's governing
// principle that the model recovers from tool faults, not the loop.
func (r *Registry) Dispatch(ctx context.Context, ec *ExecutionContext, name string, input json.RawMessage) string {
	t, ok := r.tools[name]
	if !ok {
		return agenterr.UnknownTool(name).Error()
	}

	var doc any
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	if err := json.Unmarshal(input, &doc); err != nil {
		return agenterr.Validation(fmt.Sprintf("invalid JSON input: %v", err)).Error()
	}
	if err := t.schema.Validate(doc); err != nil {
		return agenterr.Validation(fmt.Sprintf("input validation failed for %s: %v", name, err)).Error()
	}

	result := t.handler(ctx, ec, input)
	return workspace.Truncate(result)
}

// NewBaseRegistry builds the full top-level tool set: every required tool.
func NewBaseRegistry() *Registry {
	r := newRegistry()
	registerFilesystemTools(r)
	registerShellTool(r)
	registerWebTools(r)
	registerTaskUpdateTool(r)
	registerSkillTool(r)
	registerTaskSpawnTool(r)
	return r
}

// NewExploreRegistry builds the read-only tool set given to Explore/Plan
// subagents: {Bash, Read} per §4.9.
func NewExploreRegistry() *Registry {
	r := newRegistry()
	registerShellTool(r)
	registerReadTool(r)
	return r
}

// NewCodeRegistry builds the tool set given to Code subagents: the full base
// set minus Task, enforcing the single-level recursion bound.
func NewCodeRegistry() *Registry {
	r := newRegistry()
	registerFilesystemTools(r)
	registerShellTool(r)
	registerWebTools(r)
	registerTaskUpdateTool(r)
	registerSkillTool(r)
	return r
}

func parseInput[T any](input json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(input, &v)
	return v, err
}
