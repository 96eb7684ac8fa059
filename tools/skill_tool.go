package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/corewright/pilot/agenterr"
)

const skillSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string", "description": "Name of the skill to load"}
	},
	"required": ["name"]
}`

type skillInput struct {
	Name string `json:"name"`
}

func registerSkillTool(r *Registry) {
	r.register(ToolSkill, "Load a named skill's full instructions into the conversation.", skillSchema, true, skillTool)
}

func skillTool(_ context.Context, ec *ExecutionContext, input json.RawMessage) string {
	params, err := parseInput[skillInput](input)
	if err != nil {
		return agenterr.Validation(err.Error()).Error()
	}
	if params.Name == "" {
		return agenterr.Validation("name is required").Error()
	}
	if ec.Skills == nil {
		return agenterr.UnknownSkill(params.Name).Error()
	}

	body, ok := ec.Skills.GetSkill(params.Name)
	if !ok {
		return agenterr.UnknownSkill(params.Name).Error()
	}

	return fmt.Sprintf("<skill-loaded name=%q>\n%s\n</skill-loaded>", params.Name, body)
}
