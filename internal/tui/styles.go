package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent   = lipgloss.Color("#14B8A6") // teal
	green    = lipgloss.Color("#22C55E")
	yellow   = lipgloss.Color("#F59E0B")
	blue     = lipgloss.Color("#38BDF8")
	slate    = lipgloss.Color("#94A3B8")
	slateDim = lipgloss.Color("#64748B")
	panelBg  = lipgloss.Color("#111827")
	bgDark   = lipgloss.Color("#0B1220")
	line     = lipgloss.Color("#1F2937")
	ink      = lipgloss.Color("#E5E7EB")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ink).
			Background(bgDark).
			BorderStyle(lipgloss.ThickBorder()).
			BorderLeft(true).
			BorderTop(false).
			BorderRight(false).
			BorderBottom(false).
			BorderForeground(accent).
			Padding(0, 1)

	highStyle   = lipgloss.NewStyle().Bold(true).Foreground(yellow)
	mediumStyle = lipgloss.NewStyle().Foreground(blue)
	lowStyle    = lipgloss.NewStyle().Foreground(slate)
	okStyle     = lipgloss.NewStyle().Foreground(green)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(line).
			Background(panelBg).
			Padding(1, 2)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(line).
			Background(panelBg).
			Padding(1, 1)

	panelHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ink)

	mutedBadgeStyle = lipgloss.NewStyle().
			Foreground(slate).
			Background(bgDark).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(line).
			Padding(0, 1)

	keycapStyle = lipgloss.NewStyle().
			Foreground(ink).
			Background(lipgloss.Color("#1E293B")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(line).
			Padding(0, 1)

	selectedRowStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("#0F172A")).
				BorderStyle(lipgloss.NormalBorder()).
				BorderLeft(true).
				BorderForeground(accent)

	dimStyle = lipgloss.NewStyle().Foreground(slateDim)
)

// flagStyle colours the status column: open assignments stand out, muted
// notices fade.
func flagStyle(flag string) lipgloss.Style {
	switch flag {
	case "open":
		return highStyle
	case "notify", "done":
		return okStyle
	default:
		return lowStyle
	}
}
