package session

import (
	"context"
	"time"

	"github.com/ottodev/otto-tui/internal/engine"
)

// TaskKind distinguishes free-text prompts from dispatched catalogue commands.
type TaskKind string

const (
	TaskPrompt  TaskKind = "prompt"
	TaskCommand TaskKind = "command"
)

// TaskStatus is the lifecycle state of one task.
type TaskStatus string

const (
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// Task is one unit of engine work. Status is written only on the UI thread:
// the worker reports outcomes through the bus and the session updates the
// task when it drains the terminal message.
type Task struct {
	ID        string
	Kind      TaskKind
	Payload   string
	StartedAt time.Time
	Status    TaskStatus

	snapshot engine.Snapshot
	cancel   context.CancelFunc
}

// Snapshot returns the file context paths frozen when the task was spawned.
func (t *Task) Snapshot() engine.Snapshot {
	return t.snapshot
}
