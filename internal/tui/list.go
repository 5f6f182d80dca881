package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type row struct {
	time   string
	course string
	title  string
	detail string
	flag   string
}

// ListModel displays the records of one class with an expandable detail pane.
type ListModel struct {
	heading  string
	rows     []row
	width    int
	height   int
	cursor   int
	expanded bool
}

// NewListModel creates an empty ListModel.
func NewListModel(heading string) ListModel {
	return ListModel{heading: heading}
}

func (l ListModel) SetRows(rows []row) ListModel {
	l.rows = rows
	return l.clampCursor()
}

func (l ListModel) Update(msg tea.Msg) (ListModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "j", "down":
			l.cursor++
		case "k", "up":
			if l.cursor > 0 {
				l.cursor--
			}
		case "g", "home":
			l.cursor = 0
		case "G", "end":
			l.cursor = len(l.rows) - 1
		case "enter", " ":
			l.expanded = !l.expanded
		}
	}
	return l.clampCursor(), nil
}

func (l *ListModel) SetSize(w, h int) {
	l.width = w
	l.height = h
}

func (l ListModel) View() string {
	lineLimit := l.height - 8
	if l.expanded {
		lineLimit -= 8
	}
	if lineLimit < 3 {
		lineLimit = 3
	}

	// Keep the cursor inside the visible window.
	start := 0
	if l.cursor >= lineLimit {
		start = l.cursor - lineLimit + 1
	}
	var b strings.Builder
	for i := start; i < len(l.rows) && i < start+lineLimit; i++ {
		b.WriteString(l.renderRow(i))
	}
	rows := b.String()
	if rows == "" {
		rows = dimStyle.Render("No records.\n")
	}

	parts := []string{
		panelHeaderStyle.Render(fmt.Sprintf("%s (%d)", l.heading, len(l.rows))),
		dimStyle.Render("  Time                 Status  Course              Title"),
		rows,
	}
	if l.expanded && len(l.rows) > 0 {
		r := l.rows[l.cursor]
		detail := r.detail
		if detail == "" {
			detail = dimStyle.Render("(no text)")
		}
		parts = append(parts,
			boxStyle.Width(max(20, l.width-6)).Render(
				lipgloss.JoinVertical(lipgloss.Left,
					panelHeaderStyle.Render(r.title),
					dimStyle.Render(r.course+" · "+r.time),
					"",
					detail,
				),
			),
		)
	}
	parts = append(parts, "", dimStyle.Render("j/k navigate  enter details  g/G first/last"))

	return panelStyle.Width(max(20, l.width-2)).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (l ListModel) renderRow(idx int) string {
	r := l.rows[idx]
	cursor := " "
	if idx == l.cursor {
		cursor = "▌"
	}
	line := lipgloss.JoinHorizontal(lipgloss.Left,
		lipgloss.NewStyle().Width(2).Foreground(accent).Render(cursor),
		lipgloss.NewStyle().Width(21).Foreground(slate).Render(r.time),
		lipgloss.NewStyle().Width(8).Render(flagStyle(r.flag).Render(r.flag)),
		lipgloss.NewStyle().Width(20).Foreground(slate).Render(truncate(r.course, 18)),
		lipgloss.NewStyle().Foreground(ink).Render(truncate(r.title, max(10, l.width-60))),
	)
	if idx == l.cursor {
		return selectedRowStyle.Width(max(20, l.width-6)).Render(line) + "\n"
	}
	return line + "\n"
}

func (l ListModel) clampCursor() ListModel {
	if len(l.rows) == 0 || l.cursor < 0 {
		l.cursor = 0
		return l
	}
	if l.cursor >= len(l.rows) {
		l.cursor = len(l.rows) - 1
	}
	return l
}

// truncate shortens s to at most n display cells.
func truncate(s string, n int) string {
	if lipgloss.Width(s) <= n {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > n {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
