// Package tasktracker implements the validated, bounded to-do list the agent
// core uses to keep multi-step work honest, plus the nag-reminder policy that
// prods the model when it has gone too long without touching the list.
package tasktracker

import (
	"fmt"
	"strings"

	"github.com/corewright/pilot/agenterr"
)

// MaxTasks is the hard cap on the number of tracked tasks.
const MaxTasks = 20

// NagThreshold is the number of tool-using turns without a TaskUpdate after
// which the tracker starts nagging.
const NagThreshold = 10

// InitialReminder is attached to the first user message of a top-level session.
const InitialReminder = "<reminder>Use TaskUpdate for multi-step tasks.</reminder>"

// NagReminder is prepended to the next user turn once the tracker has gone
// too long without a task update.
const NagReminder = "<reminder>10+ turns without task update. Please update tasks.</reminder>"

// Status is one of the three task lifecycle states.
type Status string

const (
	Pending    Status = "pending"
	InProgress Status = "in_progress"
	Completed  Status = "completed"
)

func (s Status) valid() bool {
	switch s {
	case Pending, InProgress, Completed:
		return true
	default:
		return false
	}
}

// Task is a single tracked work item.
type Task struct {
	Content    string `json:"content"`
	Status     Status `json:"status"`
	ActiveForm string `json:"active_form"`
}

// Tracker owns one agent's task list and nag-counter state. It is never
// shared between a parent agent and any subagent it spawns.
type Tracker struct {
	tasks               []Task
	roundsWithoutUpdate int
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{}
}

// Update validates a complete replacement task list and, on success, swaps it
// in atomically. On validation failure the previous list is left untouched.
func (t *Tracker) Update(tasks []Task) (string, error) {
	if len(tasks) > MaxTasks {
		return "", agenterr.Validation(fmt.Sprintf("Too many tasks: %d (max %d)", len(tasks), MaxTasks))
	}

	inProgress := 0
	for i, task := range tasks {
		if strings.TrimSpace(task.Content) == "" {
			return "", agenterr.Validation(fmt.Sprintf("Task %d: content must not be empty", i+1))
		}
		if strings.TrimSpace(task.ActiveForm) == "" {
			return "", agenterr.Validation(fmt.Sprintf("Task %d: active_form must not be empty", i+1))
		}
		if !task.Status.valid() {
			return "", agenterr.Validation(fmt.Sprintf("Task %d: invalid status %q", i+1, task.Status))
		}
		if task.Status == InProgress {
			inProgress++
		}
	}
	if inProgress > 1 {
		return "", agenterr.Validation("Only one task can be in progress at a time")
	}

	t.tasks = append([]Task(nil), tasks...)
	return t.Render(), nil
}

// Tasks returns the current task list.
func (t *Tracker) Tasks() []Task {
	return append([]Task(nil), t.tasks...)
}

// Render formats the task list for display to the model: a glyph per task
// followed by a completion count.
func (t *Tracker) Render() string {
	if len(t.tasks) == 0 {
		return "(0/0 completed)"
	}
	var sb strings.Builder
	done := 0
	for _, task := range t.tasks {
		switch task.Status {
		case Completed:
			done++
			sb.WriteString("✔ ")
			sb.WriteString(task.Content)
		case InProgress:
			fmt.Fprintf(&sb, "▣ %s <- %s", task.Content, task.ActiveForm)
		default:
			sb.WriteString("☐ ")
			sb.WriteString(task.Content)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "(%d/%d completed)", done, len(t.tasks))
	return sb.String()
}

// Reset clears the nag counter. Called whenever a turn invoked TaskUpdate.
func (t *Tracker) Reset() {
	t.roundsWithoutUpdate = 0
}

// Increment advances the nag counter. Called on every other tool-using turn.
func (t *Tracker) Increment() {
	t.roundsWithoutUpdate++
}

// TooLongWithoutTask reports whether the nag threshold has been exceeded.
func (t *Tracker) TooLongWithoutTask() bool {
	return t.roundsWithoutUpdate > NagThreshold
}

// RoundsWithoutUpdate exposes the raw counter, mainly for tests and status display.
func (t *Tracker) RoundsWithoutUpdate() int {
	return t.roundsWithoutUpdate
}
