package model

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
)

func TestBuildParamsRequiresMessages(t *testing.T) {
	_, err := buildParams(Request{MaxTokens: 100})
	if err == nil {
		t.Fatal("expected an error for an empty message list")
	}
}

func TestBuildParamsRequiresPositiveMaxTokens(t *testing.T) {
	_, err := buildParams(Request{Messages: []Message{UserText("hi")}})
	if err == nil {
		t.Fatal("expected an error for a non-positive MaxTokens")
	}
}

func TestBuildParamsBasic(t *testing.T) {
	req := Request{
		Model:     "claude-sonnet-4-5-20250929",
		System:    "be helpful",
		MaxTokens: 1024,
		Messages: []Message{
			UserText("hello"),
			{Role: RoleAssistant, Blocks: []Block{Text("hi there")}},
		},
	}
	params, err := buildParams(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if len(params.System) != 1 || params.System[0].Text != "be helpful" {
		t.Errorf("expected system prompt to carry through, got %+v", params.System)
	}
	if params.MaxTokens != 1024 {
		t.Errorf("expected MaxTokens 1024, got %d", params.MaxTokens)
	}
}

func TestBuildParamsClampsThinkingBudget(t *testing.T) {
	req := Request{
		Messages:       []Message{UserText("hi")},
		MaxTokens:      1024,
		ThinkingBudget: 10,
	}
	params, err := buildParams(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Thinking.OfEnabled == nil {
		t.Fatal("expected thinking to be enabled")
	}
	if got := params.Thinking.OfEnabled.BudgetTokens; got != MinThinkingBudget {
		t.Errorf("expected budget clamped to %d, got %d", MinThinkingBudget, got)
	}
}

func TestBuildParamsRejectsUnsupportedRole(t *testing.T) {
	req := Request{
		Messages:  []Message{{Role: "system", Blocks: []Block{Text("x")}}},
		MaxTokens: 100,
	}
	if _, err := buildParams(req); err == nil {
		t.Fatal("expected an error for an unsupported role")
	}
}

func TestEncodeToolsCarriesSchema(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)
	out := encodeTools([]ToolDef{{Name: "read_file", Description: "reads a file", InputSchema: schema}})
	if len(out) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(out))
	}
	tool := out[0].OfTool
	if tool == nil || tool.Name != "read_file" {
		t.Fatalf("expected tool named read_file, got %+v", out[0])
	}
	if len(tool.InputSchema.Required) != 1 || tool.InputSchema.Required[0] != "path" {
		t.Errorf("expected required=[path], got %+v", tool.InputSchema.Required)
	}
}

func TestTranslateResponseBlocksAndUsage(t *testing.T) {
	msg := &sdk.Message{
		StopReason: "tool_use",
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "thinking about it"},
			{Type: "thinking", Thinking: "internal reasoning", Signature: "sig_abc"},
			{Type: "tool_use", ID: "tool_1", Name: "list_files", Input: map[string]any{"path": "."}},
		},
	}
	msg.Usage.InputTokens = 10
	msg.Usage.OutputTokens = 20

	resp := translateResponse(msg)
	if resp.StopReason != "tool_use" {
		t.Errorf("unexpected stop reason: %s", resp.StopReason)
	}
	if len(resp.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(resp.Blocks))
	}
	if resp.Blocks[0].Type != BlockText || resp.Blocks[0].Text != "thinking about it" {
		t.Errorf("unexpected text block: %+v", resp.Blocks[0])
	}
	if resp.Blocks[1].Type != BlockThinking || resp.Blocks[1].Text != "internal reasoning" || resp.Blocks[1].Signature != "sig_abc" {
		t.Errorf("unexpected thinking block: %+v", resp.Blocks[1])
	}
	if resp.Blocks[2].Type != BlockToolUse || resp.Blocks[2].Name != "list_files" {
		t.Errorf("unexpected tool_use block: %+v", resp.Blocks[2])
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 20 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
}

func TestSendWithRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	result, err := sendWithRetry(context.Background(), nil, func() (*string, error) {
		calls++
		s := "ok"
		return &s, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *result != "ok" {
		t.Errorf("unexpected result: %q", *result)
	}
	if calls != 1 {
		t.Errorf("expected exactly one call, got %d", calls)
	}
}

func TestSendWithRetrySucceedsAfterOneRetry(t *testing.T) {
	calls := 0
	result, err := sendWithRetry(context.Background(), nil, func() (*string, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient network error")
		}
		s := "ok"
		return &s, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *result != "ok" {
		t.Errorf("unexpected result: %q", *result)
	}
	if calls != 2 {
		t.Errorf("expected exactly two calls, got %d", calls)
	}
}

func TestSendWithRetryStopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(2 * time.Millisecond) // ensure the context has already expired

	calls := 0
	_, err := sendWithRetry(ctx, nil, func() (*string, error) {
		calls++
		return nil, errors.New("always fails")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly one call before the cancellation was observed, got %d", calls)
	}
}
