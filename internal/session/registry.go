package session

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ottodev/otto-tui/internal/engine"
)

// Registry tracks which file paths are in the assistant's working context.
// Add and Remove are idempotent; re-adding an included path or removing an
// absent one is a no-op that reports changed=false. Mutations are mirrored to
// the engine-side FileContext collaborator only on actual state changes.
type Registry struct {
	mu       sync.Mutex
	included map[string]bool
	fc       engine.FileContext
	log      *zap.Logger
}

func NewRegistry(fc engine.FileContext, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{included: make(map[string]bool), fc: fc, log: log}
}

// Add includes path in the context. Returns false when path was already
// included.
func (r *Registry) Add(path string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.included[path] {
		return false, nil
	}
	if r.fc != nil {
		if err := r.fc.AddToContext(path); err != nil {
			return false, err
		}
	}
	r.included[path] = true
	r.log.Debug("context add", zap.String("path", path))
	return true, nil
}

// Remove excludes path from the context. Returns false when path was not
// included.
func (r *Registry) Remove(path string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.included[path] {
		return false, nil
	}
	if r.fc != nil {
		if err := r.fc.RemoveFromContext(path); err != nil {
			return false, err
		}
	}
	delete(r.included, path)
	r.log.Debug("context remove", zap.String("path", path))
	return true, nil
}

// Contains reports whether path is currently included.
func (r *Registry) Contains(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.included[path]
}

// Snapshot returns the current context as a sorted, immutable copy. Tasks
// take one at spawn time; later registry mutations do not affect it.
func (r *Registry) Snapshot() engine.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(engine.Snapshot, 0, len(r.included))
	for p := range r.included {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.included)
}
