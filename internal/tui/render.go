package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func lipglossWidth(s string) int {
	return lipgloss.Width(s)
}

func (m Model) renderTranscript() string {
	if len(m.blocks) == 0 {
		return DimStyle.Render("\n  Start by describing a change, or type / to see commands.")
	}

	parts := make([]string, 0, len(m.blocks))
	for _, b := range m.blocks {
		parts = append(parts, m.renderBlock(b))
	}
	return strings.Join(parts, "\n")
}

func (m Model) renderBlock(b block) string {
	width := m.viewport.Width - 4
	if width < 10 {
		width = 10
	}

	switch b.kind {
	case blockUser:
		return UserBlockStyle.Width(width).Render(UserTextStyle.Render(b.text))
	case blockAssistant:
		return AssistantBlockStyle.Width(width).Render(strings.TrimRight(b.text, "\n"))
	case blockSystem:
		return SystemBlockStyle.Width(width).Render(SystemTextStyle.Render(strings.TrimRight(b.text, "\n")))
	case blockError:
		return SystemBlockStyle.Width(width).Render(ErrorStyle.Render("✗ " + b.text))
	case blockDiff:
		return m.renderDiffBlock(b, width)
	}
	return b.text
}

// renderDiffBlock shows one applied edit batch: commit message header, then
// the colorized diff body unless collapsed. Reverted batches stay in the
// transcript, struck through.
func (m Model) renderDiffBlock(b block, width int) string {
	header := DiffHeaderStyle.Render("✎ " + b.commitMessage)
	if b.reverted {
		header = DiffRevertedStyle.Render("✎ " + b.commitMessage + " (reverted)")
	}

	lines := strings.Split(strings.TrimRight(b.text, "\n"), "\n")
	if b.collapsed {
		body := DimStyle.Render(fmt.Sprintf("(%d lines, ctrl+d to expand)", len(lines)))
		return SystemBlockStyle.Width(width).Render(header + "\n" + body)
	}

	rendered := make([]string, 0, len(lines)+1)
	rendered = append(rendered, header)
	for _, line := range lines {
		rendered = append(rendered, renderDiffLine(line))
	}
	if !b.reverted {
		rendered = append(rendered, DimStyle.Render("/undo "+b.revertToken+" to revert"))
	}
	return SystemBlockStyle.Width(width).Render(strings.Join(rendered, "\n"))
}

func renderDiffLine(line string) string {
	switch {
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"), strings.HasPrefix(line, "@@"):
		return DiffMetaStyle.Render(line)
	case strings.HasPrefix(line, "+"):
		return DiffAddStyle.Render(line)
	case strings.HasPrefix(line, "-"):
		return DiffDelStyle.Render(line)
	}
	return line
}
