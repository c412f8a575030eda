package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ottodev/otto-tui/internal/config"
)

// ANSI escape code pattern for stripping color/cursor sequences from engine
// output before it reaches the renderer.
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]|\x1b\][^\x07]*\x07|\x1b[()][AB012]`)

func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// CommandEngine drives an assistant engine CLI as a subprocess. The prompt is
// delivered on stdin, streamed events arrive as NDJSON on stdout, and
// anything the engine writes to stderr goes to the ambient writer (where the
// session's capture shim picks it up).
type CommandEngine struct {
	cfg     config.EngineConfig
	ambient io.Writer
	log     *zap.Logger
}

// NewCommandEngine constructs an engine bound to an ambient diagnostics
// writer. The writer is a capability owned by the session; the engine must
// never write to the terminal directly.
func NewCommandEngine(cfg config.EngineConfig, ambient io.Writer, log *zap.Logger) *CommandEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &CommandEngine{cfg: cfg, ambient: ambient, log: log}
}

// event is one NDJSON line on the engine's stdout.
type event struct {
	Type          string `json:"type"`
	Text          string `json:"text,omitempty"`
	Diff          string `json:"diff,omitempty"`
	CommitMessage string `json:"commit_message,omitempty"`
	RevertToken   string `json:"revert_token,omitempty"`
	Message       string `json:"message,omitempty"`
}

// Run executes a free-text prompt.
func (e *CommandEngine) Run(ctx context.Context, prompt string, snap Snapshot, sink Sink) error {
	return e.stream(ctx, prompt, nil, snap, sink)
}

// RunCommand executes a named engine command through the same stream contract.
func (e *CommandEngine) RunCommand(ctx context.Context, name string, snap Snapshot, sink Sink) error {
	return e.stream(ctx, "", []string{"--command", name}, snap, sink)
}

func (e *CommandEngine) stream(ctx context.Context, prompt string, extra []string, snap Snapshot, sink Sink) error {
	if len(e.cfg.Command) == 0 {
		return fmt.Errorf("engine command not configured")
	}

	args := append([]string{}, e.cfg.Command[1:]...)
	args = append(args, extra...)
	for _, p := range snap {
		args = append(args, "--file", p)
	}

	cmd := exec.CommandContext(ctx, e.cfg.Command[0], args...)
	cmd.Stdin = strings.NewReader(prompt)
	cmd.Stderr = e.ambient
	// Interrupt first so the engine can clean up; hard kill after the delay
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = 5 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	e.log.Debug("engine started",
		zap.String("cmd", e.cfg.Command[0]),
		zap.Int("context_files", len(snap)))

	scanner := bufio.NewScanner(stdout)
	// Diff payloads can be long single lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	var streamErr error
	for scanner.Scan() {
		if err := parseEventLine(scanner.Text(), sink); err != nil {
			streamErr = err
		}
	}

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if streamErr != nil {
		return streamErr
	}
	if waitErr != nil {
		return fmt.Errorf("engine exited: %w", waitErr)
	}
	return scanner.Err()
}

// parseEventLine decodes one stdout line. Lines that are not JSON are treated
// as plain chunks so non-conforming engines still stream something readable.
func parseEventLine(line string, sink Sink) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	var ev event
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		sink.Chunk(stripANSI(line) + "\n")
		return nil
	}

	switch ev.Type {
	case "chunk":
		if ev.Text != "" {
			sink.Chunk(stripANSI(ev.Text))
		}
	case "diff":
		sink.Diff(ev.Diff, ev.CommitMessage, ev.RevertToken)
	case "error":
		return fmt.Errorf("engine error: %s", ev.Message)
	default:
		// Unknown event types are ignored rather than failing the task
	}
	return nil
}

// RepoSummary runs the configured summary command and returns its stdout.
func (e *CommandEngine) RepoSummary(ctx context.Context) (string, error) {
	if len(e.cfg.SummaryCommand) == 0 {
		return "", fmt.Errorf("summary command not configured")
	}
	cmd := exec.CommandContext(ctx, e.cfg.SummaryCommand[0], e.cfg.SummaryCommand[1:]...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("repo summary: %w", err)
	}
	return string(out), nil
}

// Revert undoes the edit batch identified by token by invoking the configured
// revert command with the token appended.
func (e *CommandEngine) Revert(token string) error {
	if len(e.cfg.RevertCommand) == 0 {
		return fmt.Errorf("revert command not configured")
	}
	args := append([]string{}, e.cfg.RevertCommand[1:]...)
	args = append(args, token)
	cmd := exec.Command(e.cfg.RevertCommand[0], args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		e.log.Warn("revert failed", zap.String("token", token), zap.Error(err))
		return fmt.Errorf("revert %s: %w: %s", token, err, strings.TrimSpace(string(out)))
	}
	e.log.Info("revert applied", zap.String("token", token))
	return nil
}

// MemoryFileContext is an in-process FileContext used when the engine CLI has
// no separate context endpoint; the snapshot passed to each run carries the
// same information.
type MemoryFileContext struct {
	paths map[string]bool
}

func NewMemoryFileContext() *MemoryFileContext {
	return &MemoryFileContext{paths: make(map[string]bool)}
}

func (m *MemoryFileContext) AddToContext(path string) error {
	m.paths[path] = true
	return nil
}

func (m *MemoryFileContext) RemoveFromContext(path string) error {
	delete(m.paths, path)
	return nil
}

// Paths returns the current context paths, for display.
func (m *MemoryFileContext) Paths() []string {
	out := make([]string, 0, len(m.paths))
	for p := range m.paths {
		out = append(out, p)
	}
	return out
}
