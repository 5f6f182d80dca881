// Package tui is a read-only terminal browser for the record store.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Tab represents a TUI navigation tab.
type Tab int

const (
	TabOverview Tab = iota
	TabNotices
	TabAssignments
)

var tabNames = []string{"Overview", "Notices", "Assignments"}
var tabTinyNames = []string{"O", "N", "A"}

// Loader reads a fresh Snapshot.
type Loader func(ctx context.Context) (Snapshot, error)

type snapshotMsg struct {
	snap Snapshot
	err  error
}

// App is the root bubbletea model.
type App struct {
	load        Loader
	width       int
	height      int
	activeTab   Tab
	loading     bool
	dashboard   DashboardModel
	notices     ListModel
	assignments ListModel
	statusMsg   string
}

// NewApp creates the TUI application.
func NewApp(load Loader) *App {
	return &App{
		load:        load,
		loading:     true,
		notices:     NewListModel("Notices"),
		assignments: NewListModel("Assignments"),
	}
}

// Run starts the bubbletea program.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (a *App) loadCmd() tea.Cmd {
	return func() tea.Msg {
		snap, err := a.load(context.Background())
		return snapshotMsg{snap: snap, err: err}
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.loadCmd()
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		contentW := max(20, msg.Width-2)
		contentH := max(8, msg.Height-7)
		a.dashboard.SetSize(contentW, contentH)
		a.notices.SetSize(contentW, contentH)
		a.assignments.SetSize(contentW, contentH)
		return a, nil

	case snapshotMsg:
		a.loading = false
		if msg.err != nil {
			a.statusMsg = "load failed: " + msg.err.Error()
			return a, nil
		}
		a.statusMsg = ""
		a.dashboard.snap = msg.snap
		a.notices = a.notices.SetRows(noticeRows(msg.snap.Notices))
		a.assignments = a.assignments.SetRows(assignmentRows(msg.snap.Assignments))
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return a, tea.Quit
		case "1":
			a.activeTab = TabOverview
			return a, nil
		case "2":
			a.activeTab = TabNotices
			return a, nil
		case "3":
			a.activeTab = TabAssignments
			return a, nil
		case "tab":
			a.activeTab = (a.activeTab + 1) % Tab(len(tabNames))
			return a, nil
		case "shift+tab":
			a.activeTab--
			if a.activeTab < 0 {
				a.activeTab = Tab(len(tabNames) - 1)
			}
			return a, nil
		case "r":
			a.loading = true
			return a, a.loadCmd()
		}
	}

	// Delegate to active view.
	var cmd tea.Cmd
	switch a.activeTab {
	case TabNotices:
		a.notices, cmd = a.notices.Update(msg)
	case TabAssignments:
		a.assignments, cmd = a.assignments.Update(msg)
	}
	return a, cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	var content string
	switch {
	case a.loading && a.dashboard.snap.LoadedAt.IsZero():
		content = panelStyle.Width(max(20, a.width-4)).Render("Loading records...")
	case a.activeTab == TabNotices:
		content = a.notices.View()
	case a.activeTab == TabAssignments:
		content = a.assignments.View()
	default:
		content = a.dashboard.View()
	}

	contentBox := lipgloss.NewStyle().
		Width(a.width).
		Padding(0, 1).
		MaxHeight(max(1, a.height-4)).
		Render(content)

	help := "tab next  shift+tab prev  1-3 jump  r reload  q quit"
	if a.statusMsg != "" {
		help = a.statusMsg
	}
	status := lipgloss.NewStyle().
		Width(a.width).
		Padding(0, 1).
		Foreground(slateDim).
		Render(help)

	return lipgloss.JoinVertical(lipgloss.Left,
		a.renderHeader(),
		a.renderTabs(),
		contentBox,
		status,
	)
}

func (a *App) renderHeader() string {
	row := lipgloss.JoinHorizontal(lipgloss.Left,
		titleStyle.Render("coursewatch"),
		"  ",
		dimStyle.Render("course portal records"),
		"  ",
		mutedBadgeStyle.Render(" "+tabNames[a.activeTab]+" "),
	)
	return lipgloss.NewStyle().
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(line).
		Width(a.width).
		Padding(0, 1).
		Render(row)
}

func (a *App) renderTabs() string {
	rendered := a.renderTabLabels(tabNames)
	if lipgloss.Width(rendered) > max(10, a.width-2) {
		rendered = a.renderTabLabels(tabTinyNames)
	}
	return lipgloss.NewStyle().
		Width(a.width).
		Padding(0, 1).
		Foreground(slate).
		Render(rendered)
}

func (a *App) renderTabLabels(labels []string) string {
	parts := make([]string, 0, len(labels))
	for i, name := range labels {
		label := fmt.Sprintf("%d:%s", i+1, name)
		if Tab(i) == a.activeTab {
			parts = append(parts, lipgloss.NewStyle().Bold(true).Foreground(accent).Render(label))
		} else {
			parts = append(parts, dimStyle.Render(label))
		}
		if i < len(labels)-1 {
			parts = append(parts, dimStyle.Render("  ·  "))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, parts...)
}
