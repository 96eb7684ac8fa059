package agent

import (
	"context"
	"fmt"

	"github.com/corewright/pilot/model"
	"github.com/corewright/pilot/skills"
	"github.com/corewright/pilot/tools"
	"github.com/corewright/pilot/ui"
	"github.com/corewright/pilot/workspace"
)

// subagent is a bounded, isolated conversation spawned by the Task tool. It
// never sees the parent's conversation and is never given the Task tool
// itself, enforcing a maximum recursion depth of 1.
type subagent struct {
	agentType string
	prompt    string

	client         model.Client
	modelID        string
	maxTokens      int
	thinkingBudget int
	guard          *workspace.Guard
	skillIdx       *skills.Index
	sink           ui.Sink
	searcher       tools.SearchProvider

	interrupt *InterruptFlag
	toolCalls int
}

func newSubagent(agentType, prompt string, client model.Client, modelID string, maxTokens, thinkingBudget int, guard *workspace.Guard, skillIdx *skills.Index, sink ui.Sink, searcher tools.SearchProvider) *subagent {
	return &subagent{
		agentType:      agentType,
		prompt:         prompt,
		client:         client,
		modelID:        modelID,
		maxTokens:      maxTokens,
		thinkingBudget: thinkingBudget,
		guard:          guard,
		skillIdx:       skillIdx,
		sink:           sink,
		searcher:       searcher,
		interrupt:      NewInterruptFlag(),
	}
}

func (s *subagent) registry() *tools.Registry {
	switch s.agentType {
	case "Explore", "Plan":
		return tools.NewExploreRegistry()
	default: // "Code"
		return tools.NewCodeRegistry()
	}
}

// Run drives the isolated conversation to completion and projects its result
// per §4.9: the first text block of the final assistant message, or a fixed
// sentinel if none was produced or the subagent was interrupted.
func (s *subagent) Run(ctx context.Context) (string, error) {
	ec := &tools.ExecutionContext{
		Workspace: s.guard,
		// Tasks is intentionally nil: subagents never interact with a task
		// tracker and never run onTurnEnd bookkeeping.
		Skills: s.skillIdx,
		// SpawnSubagent is intentionally nil: subagents cannot spawn further
		// subagents.
		Sink:     s.sink,
		Searcher: s.searcher,
	}

	cfg := turnLoopConfig{
		client:         s.client,
		registry:       s.registry(),
		ec:             ec,
		modelID:        s.modelID,
		systemPrompt:   s.systemPrompt(),
		maxTokens:      s.maxTokens,
		thinkingBudget: s.thinkingBudget,
		sink:           s.sink,
		interrupt:      s.interrupt,
		toolCalls:      &s.toolCalls,
	}

	conversation := []model.Message{model.UserText(s.prompt)}
	conversation, err := runTurnLoop(ctx, cfg, conversation)
	if err != nil {
		return "", err
	}

	if len(conversation) > 0 {
		last := conversation[len(conversation)-1]
		if last.Role == model.RoleUser && last.TextContent() == interruptNotice {
			return fmt.Sprintf("(subagent interrupted by user after %d tool calls)", s.toolCalls), nil
		}
	}

	for i := len(conversation) - 1; i >= 0; i-- {
		if conversation[i].Role != model.RoleAssistant {
			continue
		}
		for _, b := range conversation[i].Blocks {
			if b.Type == model.BlockText && b.Text != "" {
				return b.Text, nil
			}
		}
		break
	}
	return "(subagent returned no text)", nil
}

func (s *subagent) systemPrompt() string {
	root := ""
	if s.guard != nil {
		root = s.guard.Root()
	}
	switch s.agentType {
	case "Explore":
		return fmt.Sprintf(`You are an exploration subagent. Your job is to thoroughly research the codebase to answer the given question.

Working directory: %s

This is a READ-ONLY task: you only have access to Bash and Read.

Guidelines:
- Use Bash (e.g. with find, grep -r) for broad searches and directory listing.
- Use Read when you know the specific file path.
- Call independent tools in parallel — when you find several files to read, read them all in one response instead of one at a time.
- Start broad, then narrow down to specific reads.

When you have gathered enough information, provide a clear, structured summary of your findings. Do not ask follow-up questions — just research and report.`, root)
	case "Plan":
		return fmt.Sprintf(`You are a planning subagent. Your job is to turn the given task into a concrete, ordered plan.

Working directory: %s

This is a READ-ONLY task: you only have access to Bash and Read. Investigate as much as the plan requires, then write the plan, not the code.

Produce a numbered list of concrete steps, naming the files each step touches. Do not ask follow-up questions — just plan and report.`, root)
	default: // "Code"
		return fmt.Sprintf(`You are a coding subagent. Carry out the given task directly using the tools available to you.

Working directory: %s

Make the necessary changes, verify them where you reasonably can, and report back what you did. Do not ask follow-up questions — just do the work and report.`, root)
	}
}
