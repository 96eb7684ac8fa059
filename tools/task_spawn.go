package tools

import (
	"context"
	"encoding/json"

	"github.com/corewright/pilot/agenterr"
)

const taskSchema = `{
	"type": "object",
	"properties": {
		"agent_type": {"type": "string", "enum": ["Explore", "Plan", "Code"]},
		"prompt": {"type": "string", "description": "The task for the subagent to carry out, in full detail"}
	},
	"required": ["agent_type", "prompt"]
}`

type taskInput struct {
	AgentType string `json:"agent_type"`
	Prompt    string `json:"prompt"`
}

func registerTaskSpawnTool(r *Registry) {
	r.register(ToolTask, "Spawn an isolated subagent (Explore, Plan, or Code) to carry out a bounded task.", taskSchema, false, taskSpawnTool)
}

func taskSpawnTool(ctx context.Context, ec *ExecutionContext, input json.RawMessage) string {
	params, err := parseInput[taskInput](input)
	if err != nil {
		return agenterr.Validation(err.Error()).Error()
	}
	if params.Prompt == "" {
		return agenterr.Validation("prompt is required").Error()
	}
	switch params.AgentType {
	case "Explore", "Plan", "Code":
	default:
		return agenterr.UnknownAgentType(params.AgentType).Error()
	}

	if ec.SpawnSubagent == nil {
		// Unreachable in practice: subagent registries never register the Task
		// tool, so a subagent can never dispatch here. Guard anyway so a future
		// registry change fails loudly instead of recursing.
		return agenterr.Validation("Task tool is not available to subagents").Error()
	}

	result, err := ec.SpawnSubagent(ctx, params.AgentType, params.Prompt)
	if err != nil {
		return agenterr.TransportFailure(err).Error()
	}
	return result
}
