// Package agent implements the Agent Core: the turn loop described in
// SPEC_FULL.md §4.8, the Subagent Runner of §4.9, cooperative interrupt
// handling, and in-memory checkpoint/rewind.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/corewright/pilot/model"
	"github.com/corewright/pilot/skills"
	"github.com/corewright/pilot/tasktracker"
	"github.com/corewright/pilot/tools"
	"github.com/corewright/pilot/ui"
	"github.com/corewright/pilot/workspace"
)

// Agent is the top-level, long-lived conversation: one workspace, one task
// tracker, one checkpoint history. It is never shared with a subagent.
type Agent struct {
	client         model.Client
	modelID        string
	maxTokens      int
	thinkingBudget int

	registry *tools.Registry
	guard    *workspace.Guard
	tasks    *tasktracker.Tracker
	skillIdx *skills.Index
	sink     ui.Sink
	searcher tools.SearchProvider

	conversation []model.Message
	firstTurn    bool
	interrupt    *InterruptFlag

	fileOriginals map[string]*FileSnapshot
	checkpoints   []Checkpoint
}

// Config collects everything New needs to wire an Agent.
type Config struct {
	Client         model.Client
	Model          string
	MaxTokens      int
	ThinkingBudget int
	Workspace      *workspace.Guard
	Skills         *skills.Index
	Sink           ui.Sink
	Searcher       tools.SearchProvider // optional; defaults to the built-in DuckDuckGo provider
}

// New builds a top-level Agent with its own tool registry and task tracker.
func New(cfg Config) *Agent {
	a := &Agent{
		client:         cfg.Client,
		modelID:        cfg.Model,
		maxTokens:      cfg.MaxTokens,
		thinkingBudget: cfg.ThinkingBudget,
		registry:       tools.NewBaseRegistry(),
		guard:          cfg.Workspace,
		tasks:          tasktracker.New(),
		skillIdx:       cfg.Skills,
		sink:           cfg.Sink,
		searcher:       cfg.Searcher,
		firstTurn:      true,
		interrupt:      NewInterruptFlag(),
		fileOriginals:  make(map[string]*FileSnapshot),
	}
	return a
}

// Interrupt requests that the current or next turn stop at its next polling
// point. Safe to call from any goroutine, typically a raw-mode key listener.
func (a *Agent) Interrupt() {
	a.interrupt.Request()
}

// Conversation returns the accumulated message history.
func (a *Agent) Conversation() []model.Message {
	return append([]model.Message(nil), a.conversation...)
}

// Clear resets the conversation and the first-turn flag, per the /clear
// slash command's contract in §4.8/§6: the next Run call behaves as if this
// were a brand-new top-level session (CLAUDE.md and the initial task
// reminder are re-injected). The task tracker and checkpoint history are
// independent state and are left untouched.
func (a *Agent) Clear() {
	a.conversation = nil
	a.firstTurn = true
	a.interrupt.Clear()
}

// Tasks returns the current task list, for the /tasks slash command.
func (a *Agent) Tasks() []tasktracker.Task {
	return a.tasks.Tasks()
}

// SkillDescriptions returns the skill-description layer, for the /skills
// slash command.
func (a *Agent) SkillDescriptions() string {
	if a.skillIdx == nil {
		return ""
	}
	return a.skillIdx.GetDescriptions()
}

func (a *Agent) executionContext() *tools.ExecutionContext {
	return &tools.ExecutionContext{
		Workspace:     a.guard,
		Tasks:         a.tasks,
		Skills:        a.skillIdx,
		SpawnSubagent: a.spawnSubagent,
		Sink:          a.sink,
		Searcher:      a.searcher,
	}
}

// buildMessage implements §4.8's build_message: on the first turn of a
// top-level session, prepend a system-reminder carrying CLAUDE.md (if
// present) and the task-tracker's initial reminder, then clear the flag.
func (a *Agent) buildMessage(userInput string) model.Message {
	var blocks []model.Block
	if a.firstTurn {
		if claude := a.readClaudeMD(); claude != "" {
			blocks = append(blocks, model.Text(fmt.Sprintf("<system-reminder>\n%s\n</system-reminder>", claude)))
		}
		blocks = append(blocks, model.Text(tasktracker.InitialReminder))
		a.firstTurn = false
	}
	blocks = append(blocks, model.Text(userInput))
	return model.Message{Role: model.RoleUser, Blocks: blocks}
}

func (a *Agent) readClaudeMD() string {
	if a.guard == nil {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(a.guard.Root(), "CLAUDE.md"))
	if err != nil {
		return ""
	}
	return string(data)
}

// Run hands userInput to the turn loop and returns once the model stops
// requesting tools, the turn is interrupted, or the transport fails.
func (a *Agent) Run(ctx context.Context, userInput string) error {
	defer a.interrupt.Clear()
	a.CreateCheckpoint(userInput)

	msg := a.buildMessage(userInput)
	a.conversation = append(a.conversation, msg)

	cfg := turnLoopConfig{
		client:         a.client,
		registry:       a.registry,
		ec:             a.executionContext(),
		modelID:        a.modelID,
		systemPrompt:   a.systemPrompt(),
		maxTokens:      a.maxTokens,
		thinkingBudget: a.thinkingBudget,
		sink:           a.sink,
		interrupt:      a.interrupt,
		onTurnEnd:      a.onTurnEnd,
		beforeDispatch: a.captureBeforeDispatch,
	}

	conversation, err := runTurnLoop(ctx, cfg, a.conversation)
	a.conversation = conversation
	return err
}

// onTurnEnd implements §4.6's nag policy: reset the counter if TaskUpdate ran
// this round, otherwise increment it; once the threshold is crossed, prepend
// the nag reminder to the next user turn's blocks.
func (a *Agent) onTurnEnd(invokedTools []string) []model.Block {
	ranTaskUpdate := false
	for _, name := range invokedTools {
		if name == tools.ToolTaskUpdate {
			ranTaskUpdate = true
			break
		}
	}
	if ranTaskUpdate {
		a.tasks.Reset()
	} else {
		a.tasks.Increment()
	}

	if a.tasks.TooLongWithoutTask() {
		return []model.Block{model.Text(tasktracker.NagReminder)}
	}
	return nil
}

// captureBeforeDispatch snapshots a file's pre-modification content the
// first time Write or Edit targets it, so RewindCode can restore it later.
func (a *Agent) captureBeforeDispatch(name string, input json.RawMessage) {
	if name != tools.ToolWrite && name != tools.ToolEdit {
		return
	}
	var params struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &params); err != nil || params.Path == "" {
		return
	}
	resolved, err := a.guard.ResolvePath(params.Path)
	if err != nil {
		return
	}
	a.captureFileBeforeModification(resolved)
}

func (a *Agent) spawnSubagent(ctx context.Context, agentType, prompt string) (string, error) {
	sub := newSubagent(agentType, prompt, a.client, a.modelID, a.maxTokens, a.thinkingBudget, a.guard, a.skillIdx, a.sink, a.searcher)
	sub.interrupt = a.interrupt
	return sub.Run(ctx)
}

func (a *Agent) systemPrompt() string {
	var sb strings.Builder

	sb.WriteString(`You are Pilot, an AI coding assistant running in the terminal. You help users with software engineering tasks. Use the instructions below and the tools available to you to assist the user.

IMPORTANT: Assist with authorized security testing, defensive security, CTF challenges, and educational contexts. Refuse requests for destructive techniques, DoS attacks, mass targeting, supply chain compromise, or detection evasion for malicious purposes.

# Doing tasks
The user will primarily request you to perform software engineering tasks. These include solving bugs, adding new functionality, refactoring code, explaining code, and more.
- NEVER propose changes to code you haven't read. If a user asks about or wants you to modify a file, read it first.
- Be careful not to introduce security vulnerabilities such as command injection, XSS, SQL injection, and other OWASP top 10 vulnerabilities. If you notice that you wrote insecure code, immediately fix it.
- Avoid over-engineering. Only make changes that are directly requested or clearly necessary. Keep solutions simple and focused.
  - Don't add features, refactor code, or make "improvements" beyond what was asked. Don't add docstrings, comments, or type annotations to code you didn't change.
  - Don't add error handling, fallbacks, or validation for scenarios that can't happen. Trust internal code and framework guarantees.
  - Don't create helpers, utilities, or abstractions for one-time operations. Three similar lines of code is better than a premature abstraction.
- If something is unused, delete it completely rather than commenting it out or renaming it.

# Executing actions with care

Carefully consider the reversibility and blast radius of actions. Generally you can freely take local, reversible actions like editing files or running tests. But for actions that are hard to reverse, affect shared systems beyond your local environment, or could otherwise be risky or destructive, check with the user before proceeding.

Examples of risky actions that warrant user confirmation:
- Destructive operations: deleting files/branches, dropping database tables, killing processes, rm -rf, overwriting uncommitted changes
- Hard-to-reverse operations: force-pushing, git reset --hard, amending published commits, removing or downgrading packages/dependencies
- Actions visible to others or that affect shared state: pushing code, creating/closing/commenting on PRs or issues, sending messages, modifying shared infrastructure

When you encounter an obstacle, do not use destructive actions as a shortcut. Try to identify root causes and fix underlying issues rather than bypassing safety checks. If you discover unexpected state like unfamiliar files or branches, investigate before deleting or overwriting. When in doubt, ask before acting.

# Tool usage policy
- You can call multiple tools in a single response. If the calls are independent, issue them together; if one depends on another's result, call them sequentially.
- Use Read/Write/Edit for file operations, not Bash with cat/sed/echo. Reserve Bash for commands that genuinely need a shell.
- Use TaskUpdate to track multi-step work, not free text.
- For broad codebase exploration (project structure, how a feature works, finding patterns across files) or an isolated planning or coding sub-task, use Task to delegate to an Explore, Plan, or Code subagent rather than cluttering this conversation with intermediate search results.
- Use Skill to load a named skill's full instructions when its description matches the task at hand.

# Tone and style
- Only use emojis if the user explicitly requests it.
- Your output is displayed on a command line. Responses should be short and concise. GitHub-flavored markdown is fine.
- Do not use a colon before tool calls. "Let me read the file." not "Let me read the file:".
- Prioritize technical accuracy over validating the user's beliefs. Disagree when necessary.
- Never give time estimates for how long tasks will take.

# Git workflow
When asked to create git commits:
- Only commit when the user explicitly requests it.
- NEVER force-push, reset --hard, use --no-verify, or amend unless the user explicitly asks.
- Prefer staging specific files over `)
	sb.WriteString("`git add -A`")
	sb.WriteString(` or `)
	sb.WriteString("`git add .`")
	sb.WriteString(`.
- NEVER use interactive flags (`)
	sb.WriteString("`-i`")
	sb.WriteString(`) since they require interactive input.
`)

	if a.skillIdx != nil {
		if desc := a.skillIdx.GetDescriptions(); desc != "" {
			sb.WriteString("\n# Available Skills\n\n")
			sb.WriteString(desc)
		}
	}

	sb.WriteString("\n# Environment\n\nWorking directory: ")
	if a.guard != nil {
		sb.WriteString(a.guard.Root())
	}
	sb.WriteString("\n")

	return sb.String()
}
