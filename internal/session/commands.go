package session

import (
	"context"
	"fmt"
	"sort"

	"github.com/ottodev/otto-tui/internal/engine"
)

// commandCatalogue maps dispatcher action names to the engine command each
// one runs. Fixed at startup; unknown names are rejected before any task is
// spawned.
var commandCatalogue = map[string]string{
	"commit":        "commit",
	"run-tests":     "test",
	"run-lint":      "lint",
	"clear-history": "clear",
}

// Commands returns the catalogue's action names, sorted for display.
func Commands() []string {
	out := make([]string, 0, len(commandCatalogue))
	for name := range commandCatalogue {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// KnownCommand reports whether name is in the dispatcher catalogue.
func KnownCommand(name string) bool {
	_, ok := commandCatalogue[name]
	return ok
}

// Dispatch runs a catalogue action through the same executor path as a
// prompt: one task, same bus, same capture scope, same terminal guarantee.
func (s *Session) Dispatch(name string) (*Task, error) {
	engineCmd, ok := commandCatalogue[name]
	if !ok {
		return nil, fmt.Errorf("unknown command %q", name)
	}
	return s.start(TaskCommand, name, func(ctx context.Context, snap engine.Snapshot, sink engine.Sink) error {
		return s.eng.RunCommand(ctx, engineCmd, snap, sink)
	})
}
