package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
)

// ANSI color codes
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Dim     = "\033[2m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m"
	White   = "\033[97m"
)

var _ Sink = (*Terminal)(nil)

// Terminal implements Sink on top of raw ANSI escapes plus glamour for
// markdown rendering of final assistant responses. Safe for concurrent use:
// every method takes an internal lock before writing, since the core makes
// no assumption about which goroutine calls into the sink.
type Terminal struct {
	mu       sync.Mutex
	color    bool
	renderer *glamour.TermRenderer
}

// NewTerminal creates a terminal with color detection and a glamour renderer
// that word-wraps at a fixed 100 columns.
func NewTerminal() *Terminal {
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	return &Terminal{
		color:    isTerminal(),
		renderer: r,
	}
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func (t *Terminal) c(code, text string) string {
	if !t.color {
		return text
	}
	return code + text + Reset
}

// Write emits free, unstyled text.
func (t *Terminal) Write(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Print(text)
}

// WritePrimary emits text in the sink's primary register.
func (t *Terminal) WritePrimary(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Print(t.c(Bold+White, text))
}

// WriteAccent emits text in the sink's accent register.
func (t *Terminal) WriteAccent(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Print(t.c(Cyan, text))
}

// WriteError emits text in the sink's error register.
func (t *Terminal) WriteError(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprint(os.Stderr, t.c(Red, text))
}

// WriteDebug emits text in the sink's debug register.
func (t *Terminal) WriteDebug(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Print(t.c(Dim+Gray, text))
}

// Newline emits a single line break.
func (t *Terminal) Newline() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Println()
}

// Clear resets the display by emitting the ANSI clear-screen sequence.
func (t *Terminal) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Print("\033[H\033[2J")
}

// Thinking renders an extended-thinking block and how long the request took.
func (t *Terminal) Thinking(content string, durationSeconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if content == "" {
		return
	}
	fmt.Println(t.c(Dim+Gray, fmt.Sprintf("  thinking (%.1fs)", durationSeconds)))
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		fmt.Println(t.c(Dim+Gray, "    "+line))
	}
	fmt.Println()
}

// Response renders a final assistant markdown response through glamour,
// falling back to the raw text if rendering fails.
func (t *Terminal) Response(markdownText string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if markdownText == "" {
		return
	}
	out := markdownText
	if t.renderer != nil {
		if rendered, err := t.renderer.Render(markdownText); err == nil {
			out = strings.TrimSpace(rendered)
		}
	}
	fmt.Println(out)
	fmt.Println()
}

// ToolCall announces a tool invocation before it runs.
func (t *Terminal) ToolCall(name string, input string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Println(t.c(Yellow, fmt.Sprintf("  ↳ %s", name)) + t.c(Gray, fmt.Sprintf(" %s", truncate(input, 100))))
}

// ToolResult announces a tool's result, truncated for display at maxLen.
func (t *Terminal) ToolResult(output string, maxLen int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if maxLen > 0 && len(output) > maxLen {
		output = output[:maxLen] + "..."
	}
	lines := strings.Split(output, "\n")
	shown := lines
	if len(lines) > 5 {
		shown = lines[:5]
	}
	for _, line := range shown {
		fmt.Println(t.c(Gray, "    "+truncate(line, 120)))
	}
	if len(lines) > 5 {
		fmt.Println(t.c(Gray, fmt.Sprintf("    ... (%d more lines)", len(lines)-5)))
	}
}

// Interrupted announces that the current turn was cancelled by the user.
func (t *Terminal) Interrupted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Println(t.c(Yellow, "Interrupted."))
	fmt.Println()
}

// Status renders a transient status line; spinning requests an animated
// indicator, rendered here as a static marker since the sink has no
// background render loop of its own.
func (t *Terminal) Status(message string, spinning bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	marker := " "
	if spinning {
		marker = "."
	}
	fmt.Print("\r\033[K" + t.c(Gray, marker+" "+message))
}

// PrintBanner prints the startup banner.
func (t *Terminal) PrintBanner(model, workDir, version string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	banner := `
    ____  _ __      __
   / __ \(_) /___  / /_
  / /_/ / / / __ \/ __/
 / ____/ / / /_/ / /_
/_/   /_/_/\____/\__/
`
	fmt.Print(t.c(Bold+Cyan, banner))

	versionStr := ""
	if version != "" && version != "dev" {
		versionStr = " v" + version
	}

	fmt.Println(t.c(Bold+White, "Pilot") + t.c(Gray, versionStr))
	fmt.Println()
	fmt.Println(t.c(Gray, "  Model:   ") + t.c(Cyan, model))
	fmt.Println(t.c(Gray, "  Dir:     ") + t.c(White, workDir))
	fmt.Println()
	fmt.Println(t.c(Gray, "  Type ") + t.c(Cyan, "/help") + t.c(Gray, " for commands, Esc to interrupt"))
	fmt.Println()
}

// Prompt returns the formatted prompt string.
func (t *Terminal) Prompt() string {
	return t.c(Bold+Blue, "> ")
}

// PrintHelp prints all available slash commands.
func (t *Terminal) PrintHelp() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Println(t.c(Bold, "Commands"))
	fmt.Println(t.c(Cyan, "  /help   ") + " Show this help message")
	fmt.Println(t.c(Cyan, "  /clear  ") + " Clear conversation history")
	fmt.Println(t.c(Cyan, "  /skills ") + " List available skills")
	fmt.Println(t.c(Cyan, "  /config ") + " Show the resolved configuration")
	fmt.Println(t.c(Cyan, "  /tasks  ") + " Show current task list")
	fmt.Println(t.c(Cyan, "  /rewind ") + " Rewind to a previous checkpoint")
	fmt.Println(t.c(Cyan, "  /exit   ") + " Exit Pilot")
	fmt.Println()
}

// PrintError prints an error message.
func (t *Terminal) PrintError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(os.Stderr, t.c(Red, "Error: "+err.Error()))
	fmt.Println()
}

// PrintWarning prints a warning message.
func (t *Terminal) PrintWarning(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Println(t.c(Yellow, "Warning: "+msg))
}

// PrintSkillList prints the skill-description layer for /skills.
func (t *Terminal) PrintSkillList(descriptions string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Println(t.c(Bold, "Skills"))
	if descriptions == "" {
		fmt.Println(t.c(Gray, "  (none found under .claude/skills)"))
	} else {
		fmt.Println(descriptions)
	}
	fmt.Println()
}

// PrintConfig prints the resolved configuration for /config.
func (t *Terminal) PrintConfig(model, baseURL string, maxThinking int, workdir string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Println(t.c(Bold, "Configuration"))
	fmt.Printf("  %s %s\n", t.c(Gray, "Model:          "), model)
	fmt.Printf("  %s %s\n", t.c(Gray, "Base URL:       "), baseURL)
	fmt.Printf("  %s %d\n", t.c(Gray, "Thinking budget:"), maxThinking)
	fmt.Printf("  %s %s\n", t.c(Gray, "Workdir:        "), workdir)
	fmt.Println()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// Interrupter controls an escape key listener during agent execution.
type Interrupter interface {
	Stop()
	Pause()
	Resume()
}

var _ Interrupter = (*InterruptListener)(nil)

// InterruptListener watches for Esc key presses during agent execution
// and cancels a derived context when detected.
type InterruptListener struct {
	rawMode *RawMode
	cancel  context.CancelFunc
	stopCh  chan struct{} // closed to signal readLoop to exit
	done    chan struct{} // closed when readLoop has exited
	mu      sync.Mutex
	active  bool
}

// StartEscapeListener creates a derived context that cancels when Esc is pressed.
// Returns the derived context, the listener (for Pause/Resume/Stop), and any error.
// If raw mode cannot be initialized (e.g., no TTY), returns the original context
// and a nil listener.
func (t *Terminal) StartEscapeListener(parent context.Context) (context.Context, Interrupter, error) {
	rm, err := NewRawMode()
	if err != nil {
		return parent, nil, err
	}

	if err := rm.Enable(); err != nil {
		return parent, nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	il := &InterruptListener{
		rawMode: rm,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
		active:  true,
	}

	go il.readLoop()

	return ctx, il, nil
}

func (il *InterruptListener) readLoop() {
	defer close(il.done)
	for {
		ch, err := il.rawMode.ReadKeyContext(il.stopCh)
		if err != nil {
			return // ErrStopped or read error
		}

		il.mu.Lock()
		active := il.active
		il.mu.Unlock()

		if !active {
			continue
		}

		if ch == 0x1B {
			il.cancel()
			return
		}
	}
}

// Stop shuts down the listener and restores terminal mode.
func (il *InterruptListener) Stop() {
	il.mu.Lock()
	il.active = false
	il.mu.Unlock()

	// Restore terminal mode first so Ctrl+C works even if goroutine is slow to exit
	il.rawMode.Disable()

	// Signal the readLoop to stop, then wait for it
	close(il.stopCh)
	<-il.done

	il.cancel()
}

// Pause temporarily disables raw mode (e.g., for confirmation prompts).
func (il *InterruptListener) Pause() {
	il.mu.Lock()
	il.active = false
	il.mu.Unlock()
	il.rawMode.Disable()
}

// Resume re-enables raw mode after a Pause.
func (il *InterruptListener) Resume() {
	il.rawMode.Enable()
	il.mu.Lock()
	il.active = true
	il.mu.Unlock()
}

// CheckpointListItem represents a checkpoint entry for display.
type CheckpointListItem struct {
	ID        string
	Turn      int
	Timestamp time.Time
	Preview   string
}

// PrintCheckpointList displays a numbered list of checkpoints.
func (t *Terminal) PrintCheckpointList(items []CheckpointListItem) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Println(t.c(Bold, "Checkpoints:"))
	for _, item := range items {
		age := formatAge(item.Timestamp)
		preview := item.Preview
		if len(preview) > 60 {
			preview = preview[:60] + "..."
		}
		fmt.Printf("  %s  %s  %s  %s\n",
			t.c(Cyan, fmt.Sprintf("[%d]", item.Turn)),
			t.c(Gray, shortID(item.ID)),
			t.c(Gray, fmt.Sprintf("%-8s", age)),
			t.c(White, fmt.Sprintf("%q", preview)),
		)
	}
	fmt.Println(t.c(Gray, "  Press Enter without a number to cancel"))
	fmt.Println()
}

// shortID renders the first 8 characters of a checkpoint's uuid, enough to
// eyeball-distinguish entries without printing the full identifier.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// PrintRewindActions displays the rewind action menu.
func (t *Terminal) PrintRewindActions() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Println(t.c(Bold, "Choose action:"))
	fmt.Printf("  %s  Restore code and conversation\n", t.c(Cyan, "[1]"))
	fmt.Printf("  %s  Restore conversation only\n", t.c(Cyan, "[2]"))
	fmt.Printf("  %s  Restore code only\n", t.c(Cyan, "[3]"))
	fmt.Printf("  %s  Never mind\n", t.c(Cyan, "[4]"))
	fmt.Println()
}

// PrintRewindComplete prints a confirmation message after a rewind operation.
func (t *Terminal) PrintRewindComplete(action string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Println(t.c(Green, fmt.Sprintf("Rewind complete: %s", action)))
	fmt.Println()
}

func formatAge(tm time.Time) string {
	d := time.Since(tm)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// TaskListItem represents a task entry for display.
type TaskListItem struct {
	ID      int
	Content string
	Status  string
}

// PrintTaskList displays the current task list in its stored order, one
// status glyph per task, followed by a completion count.
func (t *Terminal) PrintTaskList(tasks []TaskListItem) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Println(t.c(Bold, "Tasks"))

	pending, inProgress, completed := 0, 0, 0
	for _, task := range tasks {
		var marker string
		switch task.Status {
		case "in_progress":
			inProgress++
			marker = t.c(Yellow, "▣ ")
		case "completed":
			completed++
			marker = t.c(Green, "✔ ")
		default:
			pending++
			marker = t.c(Cyan, "☐ ")
		}
		fmt.Printf("  %s%s\n", marker, task.Content)
	}
	fmt.Println()
	fmt.Printf("  (%d/%d completed)\n", completed, len(tasks))
	fmt.Println()
}
