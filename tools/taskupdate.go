package tools

import (
	"context"
	"encoding/json"

	"github.com/corewright/pilot/agenterr"
	"github.com/corewright/pilot/tasktracker"
)

const taskUpdateSchema = `{
	"type": "object",
	"properties": {
		"tasks": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"content": {"type": "string"},
					"status": {"type": "string", "enum": ["pending", "in_progress", "completed"]},
					"active_form": {"type": "string"}
				},
				"required": ["content", "status", "active_form"]
			}
		}
	},
	"required": ["tasks"]
}`

type taskUpdateInput struct {
	Tasks []tasktracker.Task `json:"tasks"`
}

func registerTaskUpdateTool(r *Registry) {
	r.register(ToolTaskUpdate, "Replace the full to-do list with a validated one.", taskUpdateSchema, false, taskUpdateTool)
}

func taskUpdateTool(_ context.Context, ec *ExecutionContext, input json.RawMessage) string {
	params, err := parseInput[taskUpdateInput](input)
	if err != nil {
		return agenterr.Validation(err.Error()).Error()
	}
	if ec.Tasks == nil {
		return agenterr.Validation("no task tracker configured for this agent").Error()
	}

	rendered, err := ec.Tasks.Update(params.Tasks)
	if err != nil {
		return err.Error()
	}
	return rendered
}
