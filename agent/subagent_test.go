package agent

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/corewright/pilot/model"
	"github.com/corewright/pilot/tools"
	"github.com/corewright/pilot/workspace"
)

func newTestGuard(t *testing.T) (*workspace.Guard, string) {
	t.Helper()
	dir := t.TempDir()
	guard, err := workspace.New(dir)
	if err != nil {
		t.Fatalf("workspace.New: %v", err)
	}
	return guard, dir
}

func TestSubagentRegistrySelectionByType(t *testing.T) {
	guard, _ := newTestGuard(t)
	cases := map[string]bool{ // agent type -> should have Task tool? (always false) and Write tool
		"Explore": false,
		"Plan":    false,
		"Code":    true,
	}
	for agentType, wantWrite := range cases {
		s := newSubagent(agentType, "do it", &fakeClient{}, "m", 1024, 0, guard, nil, &fakeSink{}, nil)
		r := s.registry()
		if r.Has(tools.ToolTask) {
			t.Errorf("%s subagent registry must not include Task", agentType)
		}
		if got := r.Has(tools.ToolWrite); got != wantWrite {
			t.Errorf("%s subagent registry Has(Write) = %v, want %v", agentType, got, wantWrite)
		}
		if !r.Has(tools.ToolBash) || !r.Has(tools.ToolRead) {
			t.Errorf("%s subagent registry must include Bash and Read", agentType)
		}
	}
}

func TestSubagentProjectsFirstTextBlockOfFinalMessage(t *testing.T) {
	guard, _ := newTestGuard(t)
	client := &fakeClient{responses: []*model.Response{
		{Blocks: []model.Block{model.Text("the answer"), model.Text("ignored")}, StopReason: model.StopReasonEndTurn},
	}}
	s := newSubagent("Explore", "find the answer", client, "m", 1024, 0, guard, nil, &fakeSink{}, nil)

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result != "the answer" {
		t.Errorf("result = %q, want %q", result, "the answer")
	}
}

func TestSubagentNoTextBlockReturnsSentinel(t *testing.T) {
	guard, _ := newTestGuard(t)
	client := &fakeClient{responses: []*model.Response{
		{Blocks: nil, StopReason: model.StopReasonEndTurn},
	}}
	s := newSubagent("Plan", "plan it", client, "m", 1024, 0, guard, nil, &fakeSink{}, nil)

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result != "(subagent returned no text)" {
		t.Errorf("result = %q, want sentinel", result)
	}
}

func TestSubagentInterruptedReturnsCountSentinel(t *testing.T) {
	guard, dir := newTestGuard(t)
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	readInput, _ := json.Marshal(map[string]string{"path": "f.txt"})

	client := &fakeClient{responses: []*model.Response{
		{Blocks: []model.Block{model.ToolUse("t1", tools.ToolRead, readInput)}, StopReason: model.StopReasonToolUse},
	}}
	s := newSubagent("Code", "read it", client, "m", 1024, 0, guard, nil, &fakeSink{}, nil)
	s.interrupt.Request()

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result != "(subagent interrupted by user after 0 tool calls)" {
		t.Errorf("result = %q, want interrupted sentinel with 0 tool calls", result)
	}
}
