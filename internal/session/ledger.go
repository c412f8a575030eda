package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reverter undoes one applied edit batch. Satisfied by engine.Engine.
type Reverter interface {
	Revert(token string) error
}

// ChangeRecord is one append-only ledger entry for an applied edit batch.
type ChangeRecord struct {
	ID            string
	DiffText      string
	CommitMessage string
	RevertToken   string
	AppliedAt     time.Time
	Reverted      bool
}

// RevertConflictError reports a revert that cannot proceed: the token is
// unknown or its batch was already reverted. The ledger is unchanged.
type RevertConflictError struct {
	Token  string
	Reason string
}

func (e *RevertConflictError) Error() string {
	return fmt.Sprintf("cannot revert %s: %s", e.Token, e.Reason)
}

// Ledger is the append-only history of applied edit batches. Records are
// never removed; a successful revert flips the record's Reverted flag exactly
// once.
type Ledger struct {
	mu       sync.Mutex
	records  []ChangeRecord
	byToken  map[string]int
	reverter Reverter
	log      *zap.Logger
}

func NewLedger(r Reverter, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{byToken: make(map[string]int), reverter: r, log: log}
}

// Record appends an entry for one applied batch. The engine's revert token is
// used when present; otherwise a fresh one is minted so every record is
// individually revertible.
func (l *Ledger) Record(diffText, commitMessage, revertToken string) (ChangeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if revertToken == "" {
		revertToken = uuid.NewString()
	}
	if _, dup := l.byToken[revertToken]; dup {
		return ChangeRecord{}, fmt.Errorf("duplicate revert token %s", revertToken)
	}

	rec := ChangeRecord{
		ID:            uuid.NewString(),
		DiffText:      diffText,
		CommitMessage: commitMessage,
		RevertToken:   revertToken,
		AppliedAt:     time.Now(),
	}
	l.byToken[revertToken] = len(l.records)
	l.records = append(l.records, rec)
	l.log.Info("change recorded",
		zap.String("token", revertToken),
		zap.String("commit_message", commitMessage))
	return rec, nil
}

// Revert undoes the batch identified by token. An unknown or already-reverted
// token yields a RevertConflictError without touching the engine. If the
// engine's revert fails the record stays unreverted and remains eligible for
// another attempt.
func (l *Ledger) Revert(token string) error {
	l.mu.Lock()
	idx, ok := l.byToken[token]
	if !ok {
		l.mu.Unlock()
		return &RevertConflictError{Token: token, Reason: "no such change"}
	}
	if l.records[idx].Reverted {
		l.mu.Unlock()
		return &RevertConflictError{Token: token, Reason: "already reverted"}
	}
	l.mu.Unlock()

	if err := l.reverter.Revert(token); err != nil {
		return err
	}

	l.mu.Lock()
	l.records[idx].Reverted = true
	l.mu.Unlock()
	l.log.Info("change reverted", zap.String("token", token))
	return nil
}

// LastApplied returns the most recent record that has not been reverted.
func (l *Ledger) LastApplied() (ChangeRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.records) - 1; i >= 0; i-- {
		if !l.records[i].Reverted {
			return l.records[i], true
		}
	}
	return ChangeRecord{}, false
}

// Records returns a copy of the full history, oldest first.
func (l *Ledger) Records() []ChangeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ChangeRecord, len(l.records))
	copy(out, l.records)
	return out
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
