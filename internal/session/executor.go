package session

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ottodev/otto-tui/internal/engine"
)

// busSink forwards engine output onto the bus, tagged with the owning task.
type busSink struct {
	bus    *Bus
	taskID string
}

func (b *busSink) Chunk(text string) {
	b.bus.Post(Update{TaskID: b.taskID, Msg: ContentChunk{Text: text}})
}

func (b *busSink) Diff(diffText, commitMessage, revertToken string) {
	if revertToken == "" {
		revertToken = uuid.NewString()
	}
	b.bus.Post(Update{TaskID: b.taskID, Msg: DiffReady{
		DiffText:      diffText,
		CommitMessage: commitMessage,
		RevertToken:   revertToken,
	}})
}

// runTask executes one unit of engine work on a worker goroutine. It
// guarantees, in order: the ambient redirect is restored, captured output is
// flushed onto the bus as chunks, and exactly one terminal message is posted
// last. Panics in engine code become a Failed message, never a crash, and a
// redirect that cannot be acquired fails the task without touching the
// engine.
func (s *Session) runTask(ctx context.Context, t *Task, work func(context.Context, engine.Snapshot, engine.Sink) error) {
	var failure error

	func() {
		defer func() {
			if r := recover(); r != nil {
				failure = fmt.Errorf("engine panic: %v", r)
				s.log.Error("engine panicked", zap.String("task", t.ID), zap.Any("panic", r))
			}
		}()

		var buf bytes.Buffer
		release, err := s.ambient.acquire(ctx, &buf)
		if err != nil {
			failure = err
			return
		}
		defer func() {
			captured, rerr := release()
			if rerr != nil {
				s.fatal(rerr)
				return
			}
			if captured != "" {
				s.bus.Post(Update{TaskID: t.ID, Msg: ContentChunk{Text: captured}})
			}
		}()

		failure = work(ctx, t.snapshot, &busSink{bus: s.bus, taskID: t.ID})
	}()

	if failure != nil {
		s.bus.Post(Update{TaskID: t.ID, Msg: Failed{Err: failure}})
		return
	}
	s.bus.Post(Update{TaskID: t.ID, Msg: Completed{}})
}
