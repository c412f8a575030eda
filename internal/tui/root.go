// Package tui is the interactive chat surface. A single bubbletea model owns
// the terminal; all engine work happens behind the session, and the model
// only ever reacts to drained bus updates, key presses and ticks.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/ottodev/otto-tui/internal/config"
	"github.com/ottodev/otto-tui/internal/session"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var activityPhrases = []string{
	"Thinking",
	"Reading code",
	"Considering options",
	"Writing changes",
}

// busWakeMsg reports that the bus has updates ready to drain.
type busWakeMsg struct{}

// tickMsg drives the spinner while a task runs.
type tickMsg time.Time

// repoSummaryMsg carries the result of an async repo summary request.
type repoSummaryMsg struct {
	summary string
	err     error
}

type blockKind int

const (
	blockUser blockKind = iota
	blockAssistant
	blockSystem
	blockError
	blockDiff
)

// block is one transcript entry. Diff blocks carry extra fields for the
// collapse toggle and the undo affordance.
type block struct {
	kind blockKind
	text string

	commitMessage string
	revertToken   string
	collapsed     bool
	reverted      bool
}

// Model is the root bubbletea model for the chat session.
type Model struct {
	sess *session.Session
	cfg  *config.Config
	log  *zap.Logger
	keys KeyMap

	input    textinput.Model
	viewport viewport.Model
	ready    bool
	width    int
	height   int

	blocks    []block
	streaming bool
	notice    string
	showHelp  bool
	quitting  bool

	history    []string
	historyIdx int
	draft      string

	suggestions []slashCommand
	suggestIdx  int

	spinnerFrame int
	taskStart    time.Time
}

func NewModel(sess *session.Session, cfg *config.Config, log *zap.Logger) Model {
	if log == nil {
		log = zap.NewNop()
	}

	ti := textinput.New()
	ti.Placeholder = "Ask for a change, or type / for commands"
	ti.PromptStyle = InputPromptStyle
	ti.Prompt = "> "
	ti.CharLimit = 0
	ti.Focus()

	return Model{
		sess:  sess,
		cfg:   cfg,
		log:   log,
		keys:  DefaultKeyMap(),
		input: ti,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForWake())
}

// waitForWake blocks until the bus signals pending updates. The drain itself
// happens in Update so every session mutation stays on the UI loop.
func (m Model) waitForWake() tea.Cmd {
	wake := m.sess.Bus().Wake()
	return func() tea.Msg {
		<-wake
		return busWakeMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) fetchRepoSummary() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		summary, err := sess.RepoSummary(ctx)
		return repoSummaryMsg{summary: summary, err: err}
	}
}

func (m Model) busy() bool {
	return m.sess.State() == session.StateBusy
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)
	case busWakeMsg:
		return m.handleBusWake()
	case tickMsg:
		if !m.busy() {
			return m, nil
		}
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		return m, tick()
	case repoSummaryMsg:
		if msg.err != nil {
			m.appendBlock(block{kind: blockError, text: "repo summary failed: " + msg.err.Error()})
		} else {
			m.appendBlock(block{kind: blockSystem, text: msg.summary})
		}
		m.refreshViewport()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	// header + status + notice + bordered input
	chrome := 1 + 1 + 1 + 3
	vpHeight := msg.Height - chrome
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}
	m.input.Width = msg.Width - 6
	m.refreshViewport()
	return m, nil
}

// handleBusWake drains the bus and folds every update into the transcript.
// Exactly one waitForWake command is in flight at any time.
func (m Model) handleBusWake() (tea.Model, tea.Cmd) {
	for _, u := range m.sess.Drain() {
		switch msg := u.Msg.(type) {
		case session.ContentChunk:
			m.appendChunk(msg.Text)
		case session.DiffReady:
			m.appendDiff(msg)
		case session.Completed:
			m.streaming = false
			m.appendBlock(block{
				kind: blockSystem,
				text: fmt.Sprintf("done in %s", time.Since(m.taskStart).Round(time.Second)),
			})
		case session.Failed:
			m.streaming = false
			m.appendBlock(block{kind: blockError, text: msg.Err.Error()})
		}
	}
	m.refreshViewport()
	return m, m.waitForWake()
}

// appendChunk extends the open assistant block, or opens one.
func (m *Model) appendChunk(text string) {
	if m.streaming && len(m.blocks) > 0 && m.blocks[len(m.blocks)-1].kind == blockAssistant {
		m.blocks[len(m.blocks)-1].text += text
		return
	}
	m.blocks = append(m.blocks, block{kind: blockAssistant, text: text})
	m.streaming = true
}

// appendDiff records the batch in the ledger and shows it. A chunk arriving
// after a diff starts a new assistant block rather than extending the old one.
func (m *Model) appendDiff(d session.DiffReady) {
	m.streaming = false
	rec, err := m.sess.Ledger().Record(d.DiffText, d.CommitMessage, d.RevertToken)
	if err != nil {
		m.log.Warn("ledger record failed", zap.Error(err))
		m.appendBlock(block{kind: blockError, text: "could not record change: " + err.Error()})
		return
	}
	m.blocks = append(m.blocks, block{
		kind:          blockDiff,
		text:          d.DiffText,
		commitMessage: rec.CommitMessage,
		revertToken:   rec.RevertToken,
		collapsed:     strings.Count(d.DiffText, "\n") > 20,
	})
}

func (m *Model) appendBlock(b block) {
	m.streaming = false
	m.blocks = append(m.blocks, b)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""

	switch {
	case key.Matches(msg, m.keys.Interrupt):
		if m.busy() {
			m.sess.Cancel()
			m.appendBlock(block{kind: blockSystem, text: "task cancelled"})
			m.refreshViewport()
			return m, nil
		}
		m.quitting = true
		m.sess.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.busy() {
			m.sess.Cancel()
			m.appendBlock(block{kind: blockSystem, text: "task cancelled"})
			m.refreshViewport()
			return m, nil
		}
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		m.input.SetValue("")
		m.suggestions = nil
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.ToggleDiff):
		for i := len(m.blocks) - 1; i >= 0; i-- {
			if m.blocks[i].kind == blockDiff {
				m.blocks[i].collapsed = !m.blocks[i].collapsed
				break
			}
		}
		m.refreshViewport()
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.HistoryPrev):
		if len(m.suggestions) > 0 {
			m.suggestIdx = (m.suggestIdx - 1 + len(m.suggestions)) % len(m.suggestions)
			return m, nil
		}
		return m.historyBack()

	case key.Matches(msg, m.keys.HistoryNext):
		if len(m.suggestions) > 0 {
			m.suggestIdx = (m.suggestIdx + 1) % len(m.suggestions)
			return m, nil
		}
		return m.historyForward()

	case key.Matches(msg, m.keys.Complete):
		if len(m.suggestions) > 0 {
			m.input.SetValue(m.suggestions[m.suggestIdx].name + " ")
			m.input.CursorEnd()
			m.suggestions = nil
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.handleSubmit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.updateSuggestions()
	return m, cmd
}

func (m Model) historyBack() (tea.Model, tea.Cmd) {
	if len(m.history) == 0 || m.historyIdx == 0 {
		return m, nil
	}
	if m.historyIdx == len(m.history) {
		m.draft = m.input.Value()
	}
	m.historyIdx--
	m.input.SetValue(m.history[m.historyIdx])
	m.input.CursorEnd()
	return m, nil
}

func (m Model) historyForward() (tea.Model, tea.Cmd) {
	if m.historyIdx >= len(m.history) {
		return m, nil
	}
	m.historyIdx++
	if m.historyIdx == len(m.history) {
		m.input.SetValue(m.draft)
	} else {
		m.input.SetValue(m.history[m.historyIdx])
	}
	m.input.CursorEnd()
	return m, nil
}

func (m *Model) pushHistory(text string) {
	m.history = append(m.history, text)
	m.historyIdx = len(m.history)
	m.draft = ""
}

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.suggestions = nil

	if strings.HasPrefix(text, "/") {
		return m.handleSlashCommand(text)
	}
	return m.submitPrompt(text)
}

// submitPrompt hands a free-text prompt to the session. A busy session
// rejects it; the typed text stays in the input so nothing is lost.
func (m Model) submitPrompt(text string) (tea.Model, tea.Cmd) {
	_, err := m.sess.Submit(text)
	if err != nil {
		m.notice = rejectionNotice(err)
		return m, nil
	}

	m.appendBlock(block{kind: blockUser, text: text})
	m.pushHistory(text)
	m.input.SetValue("")
	m.taskStart = time.Now()
	m.refreshViewport()
	return m, tick()
}

// dispatch routes a catalogue action through the session executor.
func (m Model) dispatch(display, action string) (tea.Model, tea.Cmd) {
	_, err := m.sess.Dispatch(action)
	if err != nil {
		m.notice = rejectionNotice(err)
		return m, nil
	}

	m.appendBlock(block{kind: blockUser, text: display})
	m.pushHistory(display)
	m.input.SetValue("")
	m.taskStart = time.Now()
	m.refreshViewport()
	return m, tick()
}

func rejectionNotice(err error) string {
	switch err {
	case session.ErrBusy:
		return "a task is already running; esc to cancel it first"
	case session.ErrTerminating:
		return "session is shutting down"
	}
	return err.Error()
}

func (m *Model) updateSuggestions() {
	val := m.input.Value()
	if !strings.HasPrefix(val, "/") || strings.Contains(val, " ") {
		m.suggestions = nil
		return
	}
	var matched []slashCommand
	for _, c := range slashCommands {
		if strings.HasPrefix(c.name, val) {
			matched = append(matched, c)
		}
	}
	m.suggestions = matched
	if m.suggestIdx >= len(matched) {
		m.suggestIdx = 0
	}
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if atBottom || m.busy() {
		m.viewport.GotoBottom()
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "starting..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(m.renderHelp())
	} else {
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	b.WriteString(m.renderNoticeLine())
	b.WriteString("\n")
	b.WriteString(InputStyle.Width(m.width - 2).Render(m.input.View()))
	return b.String()
}

func (m Model) renderHeader() string {
	return HeaderStyle.Render("otto")
}

func (m Model) renderStatusBar() string {
	var left string
	if m.busy() {
		elapsed := time.Since(m.taskStart).Round(time.Second)
		phrase := activityPhrases[int(time.Since(m.taskStart)/(3*time.Second))%len(activityPhrases)]
		left = StatusBusyStyle.Render(spinnerFrames[m.spinnerFrame]+" "+phrase) +
			StatusBarStyle.Render(fmt.Sprintf("%s · esc to cancel", elapsed))
	} else {
		left = StatusIdleStyle.Render("idle")
	}

	right := StatusBarStyle.Render(fmt.Sprintf("%d files in context · %d changes",
		m.sess.Registry().Len(), m.sess.Ledger().Len()))

	gap := m.width - lipglossWidth(left) - lipglossWidth(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderNoticeLine() string {
	if m.notice != "" {
		return NoticeStyle.Render(" " + m.notice)
	}
	if len(m.suggestions) > 0 {
		return m.renderSuggestions()
	}
	return ""
}

func (m Model) renderSuggestions() string {
	parts := make([]string, 0, len(m.suggestions))
	for i, c := range m.suggestions {
		label := c.name
		if i == m.suggestIdx {
			parts = append(parts, SuggestionSelectedStyle.Render(label))
		} else {
			parts = append(parts, SuggestionStyle.Render(label))
		}
	}
	return " " + strings.Join(parts, "  ") + DimStyle.Render("  (tab to complete)")
}

func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(HelpTitleStyle.Render("Commands"))
	b.WriteString("\n\n")
	for _, c := range slashCommands {
		b.WriteString(fmt.Sprintf("%s  %s\n",
			HelpKeyStyle.Render(fmt.Sprintf("%-10s", c.name)),
			HelpDescStyle.Render(c.desc)))
	}
	b.WriteString("\n")
	b.WriteString(HelpTitleStyle.Render("Keys"))
	b.WriteString("\n\n")
	for _, row := range m.keys.FullHelp() {
		for _, binding := range row {
			b.WriteString(fmt.Sprintf("%s  %s\n",
				HelpKeyStyle.Render(fmt.Sprintf("%-10s", binding.Help().Key)),
				HelpDescStyle.Render(binding.Help().Desc)))
		}
	}
	return HelpStyle.Render(b.String())
}
