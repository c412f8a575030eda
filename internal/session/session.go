package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ottodev/otto-tui/internal/engine"
)

// State is the session lifecycle: Idle accepts new work, Busy runs exactly
// one task, Terminating accepts nothing.
type State string

const (
	StateIdle        State = "idle"
	StateBusy        State = "busy"
	StateTerminating State = "terminating"
)

var (
	// ErrBusy rejects a submission while a task is running. The running task
	// is unaffected; the caller shows a notice and keeps the input intact.
	ErrBusy = errors.New("a task is already running")

	// ErrTerminating rejects work after Close.
	ErrTerminating = errors.New("session is shutting down")
)

// Session owns the interactive session: the state machine, the single active
// task, the ledger, the registry and the ambient capture shim. All methods
// except the bus producers are called from the UI loop.
type Session struct {
	eng      engine.Engine
	bus      *Bus
	ledger   *Ledger
	registry *Registry
	ambient  *AmbientWriter
	log      *zap.Logger

	// fatal is invoked when the ambient writer cannot be provably restored.
	// Overridable for tests; the default exits the process via zap.
	fatal func(err error)

	state State
	task  *Task
}

func New(eng engine.Engine, fc engine.FileContext, ambient *AmbientWriter, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	if ambient == nil {
		ambient = NewAmbientWriter(nil)
	}
	s := &Session{
		eng:      eng,
		bus:      NewBus(),
		ledger:   NewLedger(eng, log),
		registry: NewRegistry(fc, log),
		ambient:  ambient,
		log:      log,
		state:    StateIdle,
	}
	s.fatal = func(err error) {
		log.Fatal("ambient output channel lost", zap.Error(err))
	}
	return s
}

func (s *Session) Bus() *Bus { return s.bus }

func (s *Session) Ledger() *Ledger { return s.ledger }

func (s *Session) Registry() *Registry { return s.registry }

func (s *Session) State() State { return s.state }

// Active returns the running task, or nil when idle.
func (s *Session) Active() *Task { return s.task }

// Submit spawns a task for a free-text prompt. At most one task runs at a
// time; while Busy the submission is rejected with ErrBusy.
func (s *Session) Submit(prompt string) (*Task, error) {
	return s.start(TaskPrompt, prompt, func(ctx context.Context, snap engine.Snapshot, sink engine.Sink) error {
		return s.eng.Run(ctx, prompt, snap, sink)
	})
}

// Cancel requests cooperative cancellation of the active task and returns
// the session to Idle immediately. Updates still in flight from the
// cancelled task are discarded by Drain because they no longer match the
// active task.
func (s *Session) Cancel() {
	if s.task == nil {
		return
	}
	t := s.task
	t.cancel()
	t.Status = StatusFailed
	s.task = nil
	s.state = StateIdle
	s.log.Info("task cancelled", zap.String("task", t.ID), zap.String("kind", string(t.Kind)))
}

// Drain empties the bus and returns only the updates belonging to the active
// task, in post order. Terminal messages flip the session back to Idle, so
// anything a dead task managed to post afterwards is dropped on the floor.
func (s *Session) Drain() []Update {
	all := s.bus.Drain()
	if len(all) == 0 {
		return nil
	}

	live := all[:0]
	for _, u := range all {
		if s.task == nil || u.TaskID != s.task.ID {
			continue
		}
		switch u.Msg.(type) {
		case Completed:
			s.task.Status = StatusCompleted
			s.finish()
		case Failed:
			s.task.Status = StatusFailed
			s.finish()
		}
		live = append(live, u)
	}
	return live
}

func (s *Session) finish() {
	s.task = nil
	if s.state == StateBusy {
		s.state = StateIdle
	}
}

// RepoSummary asks the engine for a repository overview. Safe while Idle;
// the UI calls it outside the task path.
func (s *Session) RepoSummary(ctx context.Context) (string, error) {
	return s.eng.RepoSummary(ctx)
}

// Close moves the session to Terminating and cancels any active task. The
// session accepts no further work.
func (s *Session) Close() {
	if s.task != nil {
		s.task.cancel()
		s.task.Status = StatusFailed
		s.task = nil
	}
	s.state = StateTerminating
	s.log.Info("session closed")
}

func (s *Session) start(kind TaskKind, payload string, work func(context.Context, engine.Snapshot, engine.Sink) error) (*Task, error) {
	switch s.state {
	case StateBusy:
		return nil, ErrBusy
	case StateTerminating:
		return nil, ErrTerminating
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   payload,
		StartedAt: time.Now(),
		Status:    StatusRunning,
		snapshot:  s.registry.Snapshot(),
		cancel:    cancel,
	}
	s.task = t
	s.state = StateBusy
	s.log.Info("task started",
		zap.String("task", t.ID),
		zap.String("kind", string(kind)),
		zap.Int("context_files", len(t.snapshot)))

	go s.runTask(ctx, t, work)
	return t, nil
}
