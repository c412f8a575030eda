// Package engine defines the surface of the external assistant engine: the
// collaborator that does the actual reasoning, file editing and shell work.
// The session core only ever talks to these interfaces; CommandEngine is the
// production implementation that drives an engine CLI subprocess.
package engine

import "context"

// Snapshot is the set of file paths in scope for one engine run. It is taken
// when a task is spawned and never mutated afterwards.
type Snapshot []string

// Sink receives the streamed output of one engine run. Chunk may be called
// any number of times; Diff at most once per applied edit batch. Both are
// called from the worker that runs the engine, never from the UI.
type Sink interface {
	Chunk(text string)
	Diff(diffText, commitMessage, revertToken string)
}

// Engine is the assistant engine contract. Run and RunCommand may block
// arbitrarily and must be invoked off the UI thread; both honor ctx
// cancellation cooperatively.
type Engine interface {
	Run(ctx context.Context, prompt string, snap Snapshot, sink Sink) error
	RunCommand(ctx context.Context, name string, snap Snapshot, sink Sink) error
	RepoSummary(ctx context.Context) (string, error)
	Revert(token string) error
}

// FileContext mirrors the file context registry to the engine side.
type FileContext interface {
	AddToContext(path string) error
	RemoveFromContext(path string) error
}
