package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ottodev/otto-tui/internal/engine"
)

// fakeEngine is a scriptable engine double. Behavior is injected per test via
// runFn/cmdFn; reverts are recorded for assertions.
type fakeEngine struct {
	runFn func(ctx context.Context, prompt string, snap engine.Snapshot, sink engine.Sink) error
	cmdFn func(ctx context.Context, name string, snap engine.Snapshot, sink engine.Sink) error

	mu        sync.Mutex
	reverted  []string
	revertErr error
}

func (f *fakeEngine) Run(ctx context.Context, prompt string, snap engine.Snapshot, sink engine.Sink) error {
	if f.runFn != nil {
		return f.runFn(ctx, prompt, snap, sink)
	}
	return nil
}

func (f *fakeEngine) RunCommand(ctx context.Context, name string, snap engine.Snapshot, sink engine.Sink) error {
	if f.cmdFn != nil {
		return f.cmdFn(ctx, name, snap, sink)
	}
	return nil
}

func (f *fakeEngine) RepoSummary(ctx context.Context) (string, error) {
	return "1 file tracked", nil
}

func (f *fakeEngine) Revert(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revertErr != nil {
		return f.revertErr
	}
	f.reverted = append(f.reverted, token)
	return nil
}

func (f *fakeEngine) revertedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reverted...)
}

func newTestSession(eng engine.Engine) *Session {
	return New(eng, engine.NewMemoryFileContext(), NewAmbientWriter(nil), nil)
}

func isTerminal(m Message) bool {
	switch m.(type) {
	case Completed, Failed:
		return true
	}
	return false
}

// drainUntilTerminal pumps the bus the way the UI loop does, collecting
// updates until the active task's terminal message arrives.
func drainUntilTerminal(t *testing.T, s *Session) []Update {
	t.Helper()
	deadline := time.After(2 * time.Second)
	var got []Update
	for {
		if ups := s.Drain(); len(ups) > 0 {
			got = append(got, ups...)
			if isTerminal(got[len(got)-1].Msg) {
				return got
			}
		}
		select {
		case <-s.Bus().Wake():
		case <-deadline:
			t.Fatalf("no terminal message after %d updates", len(got))
		}
	}
}

func TestSubmitStreamsInOrderAndCompletes(t *testing.T) {
	eng := &fakeEngine{
		runFn: func(ctx context.Context, prompt string, snap engine.Snapshot, sink engine.Sink) error {
			sink.Chunk("thinking...")
			sink.Chunk("done thinking")
			sink.Diff("--- a/x\n+++ b/x", "fix x", "tok-1")
			return nil
		},
	}
	s := newTestSession(eng)

	task, err := s.Submit("fix the bug")
	require.NoError(t, err)
	assert.Equal(t, StateBusy, s.State())

	got := drainUntilTerminal(t, s)
	require.Len(t, got, 4)
	assert.Equal(t, ContentChunk{Text: "thinking..."}, got[0].Msg)
	assert.Equal(t, ContentChunk{Text: "done thinking"}, got[1].Msg)
	diff, ok := got[2].Msg.(DiffReady)
	require.True(t, ok)
	assert.Equal(t, "tok-1", diff.RevertToken)
	assert.Equal(t, Completed{}, got[3].Msg)

	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, s.Active())
	assert.Equal(t, StatusCompleted, task.Status)
}

func TestSubmitWhileBusyIsRejected(t *testing.T) {
	release := make(chan struct{})
	eng := &fakeEngine{
		runFn: func(ctx context.Context, prompt string, snap engine.Snapshot, sink engine.Sink) error {
			<-release
			sink.Chunk("first finished")
			return nil
		},
	}
	s := newTestSession(eng)

	first, err := s.Submit("long task")
	require.NoError(t, err)

	_, err = s.Submit("impatient second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Same(t, first, s.Active())
	assert.Equal(t, StateBusy, s.State())

	close(release)
	got := drainUntilTerminal(t, s)
	assert.Equal(t, ContentChunk{Text: "first finished"}, got[0].Msg)
	assert.Equal(t, Completed{}, got[len(got)-1].Msg)
}

func TestEngineFailurePostsFailed(t *testing.T) {
	boom := errors.New("model unavailable")
	eng := &fakeEngine{
		runFn: func(ctx context.Context, prompt string, snap engine.Snapshot, sink engine.Sink) error {
			return boom
		},
	}
	s := newTestSession(eng)

	task, err := s.Submit("anything")
	require.NoError(t, err)

	got := drainUntilTerminal(t, s)
	failed, ok := got[len(got)-1].Msg.(Failed)
	require.True(t, ok)
	assert.ErrorIs(t, failed.Err, boom)
	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, StateIdle, s.State())
}

func TestEnginePanicBecomesFailed(t *testing.T) {
	eng := &fakeEngine{
		runFn: func(ctx context.Context, prompt string, snap engine.Snapshot, sink engine.Sink) error {
			panic("index out of range")
		},
	}
	s := newTestSession(eng)

	_, err := s.Submit("anything")
	require.NoError(t, err)

	got := drainUntilTerminal(t, s)
	failed, ok := got[len(got)-1].Msg.(Failed)
	require.True(t, ok)
	assert.Contains(t, failed.Err.Error(), "index out of range")
	assert.Equal(t, StateIdle, s.State())
}

func TestCancelDiscardsLateMessages(t *testing.T) {
	started := make(chan struct{})
	eng := &fakeEngine{
		runFn: func(ctx context.Context, prompt string, snap engine.Snapshot, sink engine.Sink) error {
			close(started)
			<-ctx.Done()
			sink.Chunk("late output nobody should see")
			return ctx.Err()
		},
	}
	s := newTestSession(eng)

	_, err := s.Submit("doomed")
	require.NoError(t, err)
	<-started

	s.Cancel()
	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, s.Active())

	// Give the cancelled worker time to post its late chunk and terminal.
	deadline := time.After(time.Second)
	for {
		select {
		case <-s.Bus().Wake():
			assert.Empty(t, s.Drain())
		case <-deadline:
			assert.Empty(t, s.Drain())
			return
		}
	}
}

func TestSubmitAfterCancelRunsFresh(t *testing.T) {
	blockFirst := make(chan struct{})
	eng := &fakeEngine{}
	eng.runFn = func(ctx context.Context, prompt string, snap engine.Snapshot, sink engine.Sink) error {
		if prompt == "first" {
			<-blockFirst
			return ctx.Err()
		}
		sink.Chunk("second ran")
		return nil
	}
	s := newTestSession(eng)

	_, err := s.Submit("first")
	require.NoError(t, err)
	s.Cancel()
	close(blockFirst)

	_, err = s.Submit("second")
	require.NoError(t, err)

	got := drainUntilTerminal(t, s)
	assert.Equal(t, ContentChunk{Text: "second ran"}, got[0].Msg)
	assert.Equal(t, Completed{}, got[len(got)-1].Msg)
}

func TestStuckEngineDoesNotWedgeNextTask(t *testing.T) {
	started := make(chan struct{})
	stuck := make(chan struct{})
	defer close(stuck)

	eng := &fakeEngine{}
	eng.runFn = func(ctx context.Context, prompt string, snap engine.Snapshot, sink engine.Sink) error {
		if prompt == "stuck" {
			close(started)
			// Ignores ctx entirely and keeps the capture redirect held.
			<-stuck
			return nil
		}
		return nil
	}
	s := newTestSession(eng)
	s.ambient.acquireTimeout = 50 * time.Millisecond

	_, err := s.Submit("stuck")
	require.NoError(t, err)
	<-started
	s.Cancel()

	// The next task cannot take the redirect, but it must still reach a
	// terminal message instead of leaving the session Busy forever.
	_, err = s.Submit("next")
	require.NoError(t, err)

	got := drainUntilTerminal(t, s)
	failed, ok := got[len(got)-1].Msg.(Failed)
	require.True(t, ok)
	assert.Contains(t, failed.Err.Error(), "still held")
	assert.Equal(t, StateIdle, s.State())
}

func TestSnapshotFrozenAtSpawn(t *testing.T) {
	var seen engine.Snapshot
	hold := make(chan struct{})
	eng := &fakeEngine{
		runFn: func(ctx context.Context, prompt string, snap engine.Snapshot, sink engine.Sink) error {
			<-hold
			seen = snap
			return nil
		},
	}
	s := newTestSession(eng)

	_, err := s.Registry().Add("a.go")
	require.NoError(t, err)

	_, err = s.Submit("work")
	require.NoError(t, err)

	_, err = s.Registry().Add("b.go")
	require.NoError(t, err)
	close(hold)

	drainUntilTerminal(t, s)
	assert.Equal(t, engine.Snapshot{"a.go"}, seen)
}

func TestDispatchUnknownCommand(t *testing.T) {
	s := newTestSession(&fakeEngine{})
	_, err := s.Dispatch("make-coffee")
	require.Error(t, err)
	assert.Equal(t, StateIdle, s.State())
}

func TestDispatchRunsCatalogueCommand(t *testing.T) {
	var ran string
	eng := &fakeEngine{
		cmdFn: func(ctx context.Context, name string, snap engine.Snapshot, sink engine.Sink) error {
			ran = name
			sink.Chunk("2 passed")
			return nil
		},
	}
	s := newTestSession(eng)

	task, err := s.Dispatch("run-tests")
	require.NoError(t, err)
	assert.Equal(t, TaskCommand, task.Kind)

	got := drainUntilTerminal(t, s)
	assert.Equal(t, "test", ran)
	assert.Equal(t, Completed{}, got[len(got)-1].Msg)
}

func TestCloseRejectsFurtherWork(t *testing.T) {
	s := newTestSession(&fakeEngine{})
	s.Close()

	_, err := s.Submit("too late")
	assert.ErrorIs(t, err, ErrTerminating)
	_, err = s.Dispatch("commit")
	assert.ErrorIs(t, err, ErrTerminating)
}

func TestCommandsCatalogueIsSorted(t *testing.T) {
	names := Commands()
	require.NotEmpty(t, names)
	assert.True(t, KnownCommand("commit"))
	assert.False(t, KnownCommand("definitely-not-a-command"))
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
}
