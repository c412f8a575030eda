package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// defaultAcquireTimeout bounds how long a new task waits for a previous
// holder to release the redirect. A cancelled engine that ignores its context
// can hold the redirect forever; the next task must fail rather than wedge
// the session.
const defaultAcquireTimeout = 5 * time.Second

// AmbientWriter is the single ambient output capability handed to the engine.
// Outside a task it forwards to its base writer; while a task runs the
// executor redirects it into a per-task buffer so nothing the engine (or its
// subprocesses) prints can corrupt the terminal the UI owns.
type AmbientWriter struct {
	mu     sync.Mutex
	sem    chan struct{}
	base   io.Writer
	target io.Writer

	acquireTimeout time.Duration
}

func NewAmbientWriter(base io.Writer) *AmbientWriter {
	if base == nil {
		base = io.Discard
	}
	w := &AmbientWriter{
		base:           base,
		target:         base,
		sem:            make(chan struct{}, 1),
		acquireTimeout: defaultAcquireTimeout,
	}
	w.sem <- struct{}{}
	return w
}

func (w *AmbientWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.target.Write(p)
}

// acquire redirects the writer into buf for the duration of one task. A free
// writer is taken immediately; one still held by an earlier task is waited
// for, bounded by ctx and the acquire timeout, and the wait failing is an
// error the caller turns into the task's failure. The returned release
// restores the base writer and hands back everything captured.
func (w *AmbientWriter) acquire(ctx context.Context, buf *bytes.Buffer) (func() (string, error), error) {
	select {
	case <-w.sem:
	default:
		t := time.NewTimer(w.acquireTimeout)
		defer t.Stop()
		select {
		case <-w.sem:
		case <-ctx.Done():
			return nil, fmt.Errorf("ambient output channel still held by an earlier task: %w", ctx.Err())
		case <-t.C:
			return nil, fmt.Errorf("ambient output channel still held by an earlier task after %s", w.acquireTimeout)
		}
	}

	w.mu.Lock()
	w.target = buf
	w.mu.Unlock()

	release := func() (string, error) {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.target != io.Writer(buf) {
			// Someone replaced the redirect underneath us. The original
			// capability cannot be proven restored, so the caller must treat
			// this as fatal.
			return "", fmt.Errorf("ambient writer redirect was tampered with during task")
		}
		w.target = w.base
		w.sem <- struct{}{}
		return buf.String(), nil
	}
	return release, nil
}
