// Package session implements the concurrency core of the interactive
// assistant session: the session state machine, the task executor that runs
// blocking engine work off the UI thread, the ordered message bus the UI
// loop drains, the scoped capture of the engine's ambient output channel,
// the change ledger, and the file context registry.
package session

// Message is the closed set of updates a running task posts to the UI loop.
// Exactly one terminal message (Completed or Failed) is posted per task,
// always last.
type Message interface {
	isMessage()
}

// ContentChunk is a piece of streamed assistant text.
type ContentChunk struct {
	Text string
}

// DiffReady announces one applied edit batch. RevertToken identifies the
// batch in the change ledger and at the engine.
type DiffReady struct {
	DiffText      string
	CommitMessage string
	RevertToken   string
}

// Completed is the terminal message of a successful task.
type Completed struct{}

// Failed is the terminal message of a task whose engine work errored or
// panicked. The UI loop never sees a raw worker failure, only this.
type Failed struct {
	Err error
}

func (ContentChunk) isMessage() {}
func (DiffReady) isMessage()    {}
func (Completed) isMessage()    {}
func (Failed) isMessage()       {}

// Update pairs a message with the task that produced it, so the UI loop can
// discard late messages from a cancelled task.
type Update struct {
	TaskID string
	Msg    Message
}
