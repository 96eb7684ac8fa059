package agent

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// FileSnapshot records a file's state before it was first modified in this session.
type FileSnapshot struct {
	Existed bool   // true if the file existed before its first modification
	Content []byte // content before first modification (nil if it didn't exist)
}

// Checkpoint captures conversation and file state at the start of a user turn.
type Checkpoint struct {
	ID        string // stable identifier, independent of position in the list
	Turn      int    // 1-based turn number
	Timestamp time.Time
	Preview   string            // user message, truncated to 100 chars
	MsgIndex  int               // len(a.conversation) at checkpoint creation
	Files     map[string][]byte // filepath -> content at this checkpoint (nil = didn't exist)
}

// CheckpointItem is a lightweight view of a checkpoint for UI display.
type CheckpointItem struct {
	ID        string
	Turn      int
	Timestamp time.Time
	Preview   string
}

// CreateCheckpoint saves a checkpoint before a user turn begins. Entirely
// in-memory: nothing here ever touches disk beyond reading current file
// content, so it carries none of the persistent-session Non-goal.
func (a *Agent) CreateCheckpoint(userMessage string) {
	preview := userMessage
	if len(preview) > 100 {
		preview = preview[:100]
	}

	files := make(map[string][]byte, len(a.fileOriginals))
	for path := range a.fileOriginals {
		data, err := os.ReadFile(path)
		if err != nil {
			files[path] = nil
		} else {
			files[path] = data
		}
	}

	a.checkpoints = append(a.checkpoints, Checkpoint{
		ID:        uuid.NewString(),
		Turn:      len(a.checkpoints) + 1,
		Timestamp: time.Now(),
		Preview:   preview,
		MsgIndex:  len(a.conversation),
		Files:     files,
	})
}

// captureFileBeforeModification records a file's pre-session state the first
// time it is modified. Subsequent calls for the same path are no-ops.
func (a *Agent) captureFileBeforeModification(path string) {
	if _, ok := a.fileOriginals[path]; ok {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		a.fileOriginals[path] = &FileSnapshot{Existed: false, Content: nil}
	} else {
		a.fileOriginals[path] = &FileSnapshot{Existed: true, Content: data}
	}
}

// Checkpoints returns a lightweight list of all checkpoints for UI display.
func (a *Agent) Checkpoints() []CheckpointItem {
	items := make([]CheckpointItem, len(a.checkpoints))
	for i, cp := range a.checkpoints {
		items[i] = CheckpointItem{ID: cp.ID, Turn: cp.Turn, Timestamp: cp.Timestamp, Preview: cp.Preview}
	}
	return items
}

// RewindConversation truncates the conversation and checkpoint list to the given turn.
func (a *Agent) RewindConversation(turn int) {
	if turn < 1 || turn > len(a.checkpoints) {
		return
	}
	cp := a.checkpoints[turn-1]
	a.conversation = a.conversation[:cp.MsgIndex]
	a.checkpoints = a.checkpoints[:turn-1]
}

// RewindCode restores files to their state at the given checkpoint.
func (a *Agent) RewindCode(turn int) error {
	if turn < 1 || turn > len(a.checkpoints) {
		return fmt.Errorf("invalid checkpoint turn: %d", turn)
	}
	cp := a.checkpoints[turn-1]

	for path, content := range cp.Files {
		if content == nil {
			os.Remove(path)
			continue
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return fmt.Errorf("restore %s: %w", path, err)
		}
	}

	// Files first modified after this checkpoint are not in cp.Files at all;
	// restore those to their pre-session state.
	for path, snapshot := range a.fileOriginals {
		if _, inCheckpoint := cp.Files[path]; inCheckpoint {
			continue
		}
		if !snapshot.Existed {
			os.Remove(path)
			continue
		}
		if err := os.WriteFile(path, snapshot.Content, 0o644); err != nil {
			return fmt.Errorf("restore original %s: %w", path, err)
		}
	}

	trimmed := make(map[string]*FileSnapshot, len(cp.Files))
	for path := range cp.Files {
		if snap, ok := a.fileOriginals[path]; ok {
			trimmed[path] = snap
		}
	}
	a.fileOriginals = trimmed

	return nil
}

// RewindAll restores both code and conversation to the given checkpoint.
func (a *Agent) RewindAll(turn int) error {
	if err := a.RewindCode(turn); err != nil {
		return err
	}
	a.RewindConversation(turn)
	return nil
}
