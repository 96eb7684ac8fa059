package agent

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/corewright/pilot/agenterr"
	"github.com/corewright/pilot/model"
	"github.com/corewright/pilot/tools"
	"github.com/corewright/pilot/ui"
)

// toolResultPreviewChars bounds how much of a tool result the sink is asked
// to render inline; the full (workspace-truncated) result still goes into
// the conversation regardless of this cap.
const toolResultPreviewChars = 2000

// interruptNotice is the synthesized content of the user message appended
// when a turn is cancelled mid-flight.
const interruptNotice = `<system_notification type="task_interrupted">The user interrupted this task. Acknowledge the interruption and briefly summarize what was completed before stopping.</system_notification>`

// turnLoopConfig wires everything the shared loop needs, beyond the
// conversation it is handed. onTurnEnd, when set, is invoked once per
// completed tool-use round with the names of tools that were invoked and may
// return extra blocks to prepend to the next user message (the task-tracker
// nag reminder); it is nil for subagents, which have no tracker.
type turnLoopConfig struct {
	client         model.Client
	registry       *tools.Registry
	ec             *tools.ExecutionContext
	modelID        string
	systemPrompt   string
	maxTokens      int
	thinkingBudget int
	sink           ui.Sink
	interrupt      *InterruptFlag
	onTurnEnd      func(invokedTools []string) []model.Block
	toolCalls      *int // if non-nil, incremented once per tool dispatched

	// beforeDispatch, when set, is called just before each tool dispatch —
	// the top-level Agent uses it to snapshot a file's pre-modification
	// content for checkpoint/rewind before Write or Edit runs.
	beforeDispatch func(name string, input json.RawMessage)
}

// runTurnLoop drives SPEC_FULL.md's §4.8 steps 2–8 (step 1's pre-loop
// interrupt check is folded into the loop's own first iteration) against
// conversation, returning the conversation as it stood when the loop ended
// either normally (stop reason other than tool_use) or via interruption.
func runTurnLoop(ctx context.Context, cfg turnLoopConfig, conversation []model.Message) ([]model.Message, error) {
	for {
		if cfg.interrupt.IsSet() {
			return finalizeInterrupt(conversation, cfg.sink), nil
		}

		req := model.Request{
			Model:          cfg.modelID,
			System:         cfg.systemPrompt,
			Messages:       conversation,
			Tools:          cfg.registry.Definitions(),
			MaxTokens:      cfg.maxTokens,
			ThinkingBudget: cfg.thinkingBudget,
		}
		start := time.Now()
		resp, err := cfg.client.Send(ctx, req)
		if err != nil {
			return conversation, agenterr.TransportFailure(err)
		}
		elapsed := time.Since(start).Seconds()

		if cfg.interrupt.IsSet() {
			return finalizeInterrupt(conversation, cfg.sink), nil
		}

		var toolUses []model.Block
		for _, b := range resp.Blocks {
			switch b.Type {
			case model.BlockThinking:
				cfg.sink.Thinking(b.Text, elapsed)
			case model.BlockText:
				if b.Text != "" {
					cfg.sink.Response(b.Text)
				}
			case model.BlockToolUse:
				toolUses = append(toolUses, b)
			}
		}

		if resp.StopReason != model.StopReasonToolUse {
			conversation = append(conversation, resp.Message())
			return conversation, nil
		}

		var results []model.Block
		var invoked []string
		interrupted := false
		for _, tu := range toolUses {
			if cfg.interrupt.IsSet() {
				interrupted = true
				break
			}
			cfg.sink.ToolCall(tu.Name, string(tu.Input))
			if cfg.beforeDispatch != nil {
				cfg.beforeDispatch(tu.Name, tu.Input)
			}
			output := cfg.registry.Dispatch(ctx, cfg.ec, tu.Name, tu.Input)
			cfg.sink.ToolResult(output, toolResultPreviewChars)
			results = append(results, model.ToolResult(tu.ID, output, strings.HasPrefix(output, "Error: ")))
			invoked = append(invoked, tu.Name)
			if cfg.toolCalls != nil {
				*cfg.toolCalls++
			}
		}
		if interrupted {
			return finalizeInterrupt(conversation, cfg.sink), nil
		}

		conversation = append(conversation, resp.Message())
		if cfg.onTurnEnd != nil {
			if extra := cfg.onTurnEnd(invoked); len(extra) > 0 {
				results = append(extra, results...)
			}
		}
		conversation = append(conversation, model.Message{Role: model.RoleUser, Blocks: results})
	}
}

func finalizeInterrupt(conversation []model.Message, sink ui.Sink) []model.Message {
	sink.Interrupted()
	return append(conversation, model.UserText(interruptNotice))
}
