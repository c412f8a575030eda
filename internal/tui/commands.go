package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ottodev/otto-tui/internal/session"
)

type slashCommand struct {
	name string
	desc string
}

// slashCommands is the fixed palette shown in suggestions and /help.
var slashCommands = []slashCommand{
	{"/add", "add a file to the context"},
	{"/drop", "remove a file from the context"},
	{"/ls", "list files in the context"},
	{"/commit", "commit pending changes"},
	{"/test", "run the test suite"},
	{"/lint", "run the linter"},
	{"/undo", "revert the last change (or /undo <token>)"},
	{"/diff", "expand the last diff"},
	{"/map", "show a repository summary"},
	{"/clear", "clear the conversation"},
	{"/cancel", "cancel the running task"},
	{"/help", "show help"},
	{"/quit", "exit"},
}

func (m Model) handleSlashCommand(text string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(text)
	name, args := fields[0], fields[1:]

	switch name {
	case "/help":
		m.showHelp = true
		m.input.SetValue("")
		return m, nil

	case "/quit":
		m.quitting = true
		m.sess.Close()
		return m, tea.Quit

	case "/cancel":
		m.input.SetValue("")
		if m.busy() {
			m.sess.Cancel()
			m.appendBlock(block{kind: blockSystem, text: "task cancelled"})
			m.refreshViewport()
		} else {
			m.notice = "nothing is running"
		}
		return m, nil

	case "/add":
		return m.contextAdd(args)

	case "/drop":
		return m.contextDrop(args)

	case "/ls":
		m.input.SetValue("")
		snap := m.sess.Registry().Snapshot()
		if len(snap) == 0 {
			m.appendBlock(block{kind: blockSystem, text: "context is empty; /add <path> to include files"})
		} else {
			m.appendBlock(block{kind: blockSystem, text: "in context:\n  " + strings.Join(snap, "\n  ")})
		}
		m.refreshViewport()
		return m, nil

	case "/undo":
		return m.undo(args)

	case "/diff":
		m.input.SetValue("")
		for i := len(m.blocks) - 1; i >= 0; i-- {
			if m.blocks[i].kind == blockDiff {
				m.blocks[i].collapsed = false
				m.refreshViewport()
				return m, nil
			}
		}
		m.notice = "no changes yet"
		return m, nil

	case "/map":
		m.input.SetValue("")
		m.appendBlock(block{kind: blockUser, text: "/map"})
		m.refreshViewport()
		return m, m.fetchRepoSummary()

	case "/clear":
		m.input.SetValue("")
		m.blocks = nil
		m.streaming = false
		return m.dispatch("/clear", "clear-history")

	case "/commit":
		return m.dispatch("/commit", "commit")

	case "/test":
		return m.dispatch("/test", "run-tests")

	case "/lint":
		return m.dispatch("/lint", "run-lint")
	}

	m.notice = fmt.Sprintf("unknown command %s; /help lists commands", name)
	return m, nil
}

func (m Model) contextAdd(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		m.notice = "usage: /add <path>..."
		return m, nil
	}
	m.input.SetValue("")
	for _, p := range args {
		changed, err := m.sess.Registry().Add(p)
		switch {
		case err != nil:
			m.appendBlock(block{kind: blockError, text: fmt.Sprintf("add %s: %v", p, err)})
		case changed:
			m.appendBlock(block{kind: blockSystem, text: "added " + p})
		default:
			m.appendBlock(block{kind: blockSystem, text: p + " already in context"})
		}
	}
	m.refreshViewport()
	return m, nil
}

func (m Model) contextDrop(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		m.notice = "usage: /drop <path>..."
		return m, nil
	}
	m.input.SetValue("")
	for _, p := range args {
		changed, err := m.sess.Registry().Remove(p)
		switch {
		case err != nil:
			m.appendBlock(block{kind: blockError, text: fmt.Sprintf("drop %s: %v", p, err)})
		case changed:
			m.appendBlock(block{kind: blockSystem, text: "dropped " + p})
		default:
			m.appendBlock(block{kind: blockSystem, text: p + " was not in context"})
		}
	}
	m.refreshViewport()
	return m, nil
}

// undo reverts a recorded change: the last applied one by default, or the
// one named by token. Conflicts (unknown or already reverted) surface as
// errors without touching the working tree.
func (m Model) undo(args []string) (tea.Model, tea.Cmd) {
	m.input.SetValue("")

	var token string
	if len(args) > 0 {
		token = args[0]
	} else {
		rec, ok := m.sess.Ledger().LastApplied()
		if !ok {
			m.notice = "nothing to undo"
			return m, nil
		}
		token = rec.RevertToken
	}

	if err := m.sess.Ledger().Revert(token); err != nil {
		var conflict *session.RevertConflictError
		if errors.As(err, &conflict) {
			m.appendBlock(block{kind: blockError, text: conflict.Error()})
		} else {
			m.appendBlock(block{kind: blockError, text: "revert failed: " + err.Error()})
		}
		m.refreshViewport()
		return m, nil
	}

	for i := range m.blocks {
		if m.blocks[i].kind == blockDiff && m.blocks[i].revertToken == token {
			m.blocks[i].reverted = true
			m.blocks[i].collapsed = true
		}
	}
	m.appendBlock(block{kind: blockSystem, text: "reverted " + token})
	m.refreshViewport()
	return m, nil
}
