package agent

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/corewright/pilot/model"
	"github.com/corewright/pilot/tasktracker"
	"github.com/corewright/pilot/tools"
	"github.com/corewright/pilot/workspace"
)

// fakeSink records every call for assertions without rendering anything.
type fakeSink struct {
	responses    []string
	toolCalls    []string
	toolResults  []string
	interrupted  int
	thinkingSeen int
}

func (f *fakeSink) Write(string)              {}
func (f *fakeSink) WritePrimary(string)       {}
func (f *fakeSink) WriteAccent(string)        {}
func (f *fakeSink) WriteError(string)         {}
func (f *fakeSink) WriteDebug(string)         {}
func (f *fakeSink) Newline()                  {}
func (f *fakeSink) Clear()                    {}
func (f *fakeSink) Thinking(string, float64)  { f.thinkingSeen++ }
func (f *fakeSink) Response(md string)        { f.responses = append(f.responses, md) }
func (f *fakeSink) ToolCall(name, input string) {
	f.toolCalls = append(f.toolCalls, name)
}
func (f *fakeSink) ToolResult(output string, _ int) {
	f.toolResults = append(f.toolResults, output)
}
func (f *fakeSink) Interrupted()        { f.interrupted++ }
func (f *fakeSink) Status(string, bool) {}

// fakeClient returns a fixed queue of responses, one per Send call.
type fakeClient struct {
	responses []*model.Response
	calls     int
}

func (f *fakeClient) Send(ctx context.Context, req model.Request) (*model.Response, error) {
	if f.calls >= len(f.responses) {
		panic("fakeClient: ran out of queued responses")
	}
	r := f.responses[f.calls]
	f.calls++
	return r, nil
}

func newTestAgent(t *testing.T, client model.Client) (*Agent, string) {
	t.Helper()
	dir := t.TempDir()
	guard, err := workspace.New(dir)
	if err != nil {
		t.Fatalf("workspace.New: %v", err)
	}
	a := New(Config{
		Client:    client,
		Model:     "test-model",
		MaxTokens: 1024,
		Workspace: guard,
		Skills:    nil,
		Sink:      &fakeSink{},
	})
	return a, dir
}

func TestBuildMessageFirstTurnInjectsClaudeMDAndReminder(t *testing.T) {
	a, dir := newTestAgent(t, &fakeClient{})
	if err := os.WriteFile(filepath.Join(dir, "CLAUDE.md"), []byte("project notes"), 0o644); err != nil {
		t.Fatal(err)
	}

	msg := a.buildMessage("hello")
	if len(msg.Blocks) != 3 {
		t.Fatalf("expected 3 blocks (claude.md + reminder + user text), got %d", len(msg.Blocks))
	}
	if want := "project notes"; !strings.Contains(msg.Blocks[0].Text, want) {
		t.Errorf("block 0 missing CLAUDE.md content: %q", msg.Blocks[0].Text)
	}
	if msg.Blocks[1].Text != "<reminder>Use TaskUpdate for multi-step tasks.</reminder>" {
		t.Errorf("block 1 = %q, want initial reminder", msg.Blocks[1].Text)
	}
	if msg.Blocks[2].Text != "hello" {
		t.Errorf("block 2 = %q, want user text", msg.Blocks[2].Text)
	}
	if a.firstTurn {
		t.Error("firstTurn should be cleared after buildMessage")
	}
}

func TestBuildMessageSecondTurnHasNoReminder(t *testing.T) {
	a, _ := newTestAgent(t, &fakeClient{})
	a.buildMessage("first")
	msg := a.buildMessage("second")
	if len(msg.Blocks) != 1 || msg.Blocks[0].Text != "second" {
		t.Errorf("second turn should carry only the user text, got %+v", msg.Blocks)
	}
}

func TestOnTurnEndResetsOnTaskUpdate(t *testing.T) {
	a, _ := newTestAgent(t, &fakeClient{})
	for i := 0; i < 11; i++ {
		a.onTurnEnd(nil)
	}
	if !a.tasks.TooLongWithoutTask() {
		t.Fatal("expected nag threshold to be exceeded")
	}
	extra := a.onTurnEnd([]string{tools.ToolTaskUpdate})
	if extra != nil {
		t.Errorf("expected no nag block on the round that ran TaskUpdate, got %v", extra)
	}
	if a.tasks.TooLongWithoutTask() {
		t.Error("counter should have been reset")
	}
}

func TestOnTurnEndNagsAfterThreshold(t *testing.T) {
	a, _ := newTestAgent(t, &fakeClient{})
	var extra []model.Block
	for i := 0; i < 11; i++ {
		extra = a.onTurnEnd(nil)
	}
	if len(extra) != 1 || extra[0].Text != "<reminder>10+ turns without task update. Please update tasks.</reminder>" {
		t.Errorf("expected nag reminder block after threshold, got %v", extra)
	}
}

func TestRunEndsTurnOnNonToolUseStopReason(t *testing.T) {
	client := &fakeClient{responses: []*model.Response{
		{Blocks: []model.Block{model.Text("all done")}, StopReason: model.StopReasonEndTurn},
	}}
	a, _ := newTestAgent(t, client)

	if err := a.Run(context.Background(), "do the thing"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if client.calls != 1 {
		t.Errorf("expected exactly one model call, got %d", client.calls)
	}
	last := a.conversation[len(a.conversation)-1]
	if last.Role != model.RoleAssistant || last.TextContent() != "all done" {
		t.Errorf("unexpected final message: %+v", last)
	}
}

func TestRunExecutesToolAndLoopsToCompletion(t *testing.T) {
	readInput, _ := json.Marshal(map[string]string{"path": "f.txt"})
	client := &fakeClient{responses: []*model.Response{
		{
			Blocks:     []model.Block{model.ToolUse("t1", tools.ToolRead, readInput)},
			StopReason: model.StopReasonToolUse,
		},
		{Blocks: []model.Block{model.Text("read it")}, StopReason: model.StopReasonEndTurn},
	}}
	a, dir := newTestAgent(t, client)
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := a.Run(context.Background(), "read f.txt"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("expected two model calls, got %d", client.calls)
	}

	// conversation: user(build) -> assistant(tool_use) -> user(tool_result) -> assistant(text)
	foundResult := false
	for _, msg := range a.conversation {
		for _, b := range msg.Blocks {
			if b.Type == model.BlockToolResult && b.ToolUseID == "t1" {
				foundResult = true
				if b.Content != "hello world" {
					t.Errorf("tool result content = %q, want file contents", b.Content)
				}
			}
		}
	}
	if !foundResult {
		t.Error("expected a tool_result block for tool-use id t1")
	}
}

func TestRunHonoursPreSetInterrupt(t *testing.T) {
	client := &fakeClient{}
	a, _ := newTestAgent(t, client)
	a.interrupt.Request()

	if err := a.Run(context.Background(), "anything"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if client.calls != 0 {
		t.Errorf("model should never be called once interrupted, got %d calls", client.calls)
	}
	last := a.conversation[len(a.conversation)-1]
	if last.TextContent() != interruptNotice {
		t.Errorf("expected interrupt notice as final message, got %q", last.TextContent())
	}
}

func TestCaptureBeforeDispatchOnlyTracksWriteAndEdit(t *testing.T) {
	a, dir := newTestAgent(t, &fakeClient{})
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	readInput, _ := json.Marshal(map[string]string{"path": "f.txt"})
	a.captureBeforeDispatch(tools.ToolRead, readInput)
	if len(a.fileOriginals) != 0 {
		t.Error("Read should not trigger a file-originals capture")
	}

	writeInput, _ := json.Marshal(map[string]string{"path": "f.txt", "content": "new"})
	a.captureBeforeDispatch(tools.ToolWrite, writeInput)
	resolved, _ := a.guard.ResolvePath("f.txt")
	snap, ok := a.fileOriginals[resolved]
	if !ok {
		t.Fatal("expected Write to capture a file snapshot")
	}
	if string(snap.Content) != "original" {
		t.Errorf("snapshot content = %q, want %q", snap.Content, "original")
	}
}

func TestClearResetsConversationAndFirstTurn(t *testing.T) {
	a, _ := newTestAgent(t, &fakeClient{})
	a.conversation = append(a.conversation, model.UserText("hello"))
	a.firstTurn = false

	a.Clear()

	if len(a.conversation) != 0 {
		t.Errorf("expected conversation to be cleared, got %d messages", len(a.conversation))
	}
	if !a.firstTurn {
		t.Error("expected firstTurn to be reset to true")
	}
}

func TestTasksDelegatesToTracker(t *testing.T) {
	a, _ := newTestAgent(t, &fakeClient{})
	if _, err := a.tasks.Update([]tasktracker.Task{
		{Content: "do the thing", Status: tasktracker.Pending, ActiveForm: "doing the thing"},
	}); err != nil {
		t.Fatal(err)
	}

	got := a.Tasks()
	if len(got) != 1 || got[0].Content != "do the thing" {
		t.Errorf("expected Tasks() to reflect the tracker state, got %+v", got)
	}
}

func TestSkillDescriptionsNilIndex(t *testing.T) {
	a, _ := newTestAgent(t, &fakeClient{})
	if got := a.SkillDescriptions(); got != "" {
		t.Errorf("expected empty descriptions with a nil skill index, got %q", got)
	}
}
