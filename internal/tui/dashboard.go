package tui

import (
	"fmt"
	"strings"

	"github.com/CosmoTheDev/coursewatch/models"
	"github.com/charmbracelet/lipgloss"
)

// DashboardModel shows record counts per class and the latest activity.
type DashboardModel struct {
	snap   Snapshot
	width  int
	height int
}

func (d *DashboardModel) SetSize(w, h int) {
	d.width = w
	d.height = h
}

func (d DashboardModel) View() string {
	var notify, open, done int
	for _, n := range d.snap.Notices {
		if n.ShouldNotify {
			notify++
		}
	}
	for _, a := range d.snap.Assignments {
		if a.HasAttempted {
			done++
		} else {
			open++
		}
	}

	cardW := 18
	if d.width >= 100 {
		cardW = 20
	}
	summary := lipgloss.JoinHorizontal(lipgloss.Top,
		renderCounter("Notices", len(d.snap.Notices), mediumStyle, cardW),
		renderCounter("Notified", notify, okStyle, cardW),
		renderCounter("Open tasks", open, highStyle, cardW),
		renderCounter("Submitted", done, lowStyle, cardW),
	)

	var state []string
	for _, class := range models.Classes() {
		label := "tracking"
		style := okStyle
		if d.snap.Bootstrap[class] {
			label = "not started, next run bootstraps"
			style = highStyle
		}
		state = append(state, fmt.Sprintf("%-11s %s", class, style.Render(label)))
	}

	lineLimit := d.height - 14
	if lineLimit < 3 {
		lineLimit = 3
	}
	recent := noticeRows(d.snap.Notices)
	if len(recent) > lineLimit {
		recent = recent[:lineLimit]
	}
	var b strings.Builder
	for _, r := range recent {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left,
			lipgloss.NewStyle().Width(21).Foreground(slate).Render(r.time),
			lipgloss.NewStyle().Width(20).Foreground(slate).Render(truncate(r.course, 18)),
			lipgloss.NewStyle().Foreground(ink).Render(truncate(r.title, max(10, d.width-50))),
		) + "\n")
	}
	rows := b.String()
	if rows == "" {
		rows = dimStyle.Render("No notices yet. Run: coursewatch run\n")
	}

	updated := "never"
	if !d.snap.LoadedAt.IsZero() {
		updated = d.snap.LoadedAt.Format("15:04:05")
	}
	refreshInfo := lipgloss.JoinHorizontal(lipgloss.Left,
		keycapStyle.Render("r"),
		" ",
		dimStyle.Render("reload"),
		"   ",
		dimStyle.Render(d.snap.Store+" · loaded "+updated),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Padding(0, 1).Render(summary),
		panelStyle.Width(max(20, d.width-2)).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				panelHeaderStyle.Render("Classes"),
				strings.Join(state, "\n"),
				"",
				panelHeaderStyle.Render("Latest Notices"),
				rows,
				refreshInfo,
			),
		),
	)
}

func renderCounter(label string, count int, style lipgloss.Style, width int) string {
	return boxStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Center,
			style.Bold(true).Render(fmt.Sprintf("%d", count)),
			dimStyle.Render(strings.ToUpper(label)),
		),
	) + "  "
}
