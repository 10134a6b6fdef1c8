// Package dashboard is the live fleet view: one row per account, refreshed
// on a fixed interval from the same snapshot source the status server uses.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/azminug/autorun/internal/web"
)

// refreshInterval is how often the dashboard re-fetches the snapshot.
const refreshInterval = 2 * time.Second

// snapshotTimeout bounds a single fetch.
const snapshotTimeout = 5 * time.Second

// Model is the bubbletea model for the dashboard TUI.
type Model struct {
	snapshot web.SnapshotFunc
	snap     *web.Snapshot
	err      error

	table    table.Model
	keys     KeyMap
	help     help.Model
	showHelp bool
	width    int
	height   int
}

// New creates a dashboard model around the given snapshot source.
func New(snapshot web.SnapshotFunc) Model {
	columns := []table.Column{
		{Title: "ACCOUNT", Width: 20},
		{Title: "STATE", Width: 10},
		{Title: "FLAG", Width: 8},
		{Title: "LAST SEEN", Width: 12},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	return Model{
		snapshot: snapshot,
		table:    t,
		keys:     DefaultKeyMap(),
		help:     help.New(),
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetch, scheduleTick())
}

// fetchMsg is the result of fetching a snapshot.
type fetchMsg struct {
	snap *web.Snapshot
	err  error
}

// tickMsg triggers the periodic refresh.
type tickMsg time.Time

func scheduleTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetch loads a snapshot from the source.
func (m Model) fetch() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	snap, err := m.snapshot(ctx)
	return fetchMsg{snap: snap, err: err}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if msg.Height > 10 {
			m.table.SetHeight(msg.Height - 8)
		}
		return m, nil

	case fetchMsg:
		m.err = msg.err
		if msg.snap != nil {
			m.snap = msg.snap
			m.table.SetRows(rowsFor(msg.snap))
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetch, scheduleTick())

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetch
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// rowsFor converts a snapshot into table rows, online accounts first.
func rowsFor(snap *web.Snapshot) []table.Row {
	accounts := make([]web.AccountStatus, len(snap.Accounts))
	copy(accounts, snap.Accounts)
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Online != accounts[j].Online {
			return accounts[i].Online
		}
		return accounts[i].Username < accounts[j].Username
	})

	rows := make([]table.Row, 0, len(accounts))
	for _, a := range accounts {
		state := "offline"
		if a.Online {
			state = "online"
		}
		flag := ""
		if a.Active {
			flag = "restart"
		}
		rows = append(rows, table.Row{a.Username, state, flag, lastSeen(a.LastSeen)})
	}
	return rows
}

// lastSeen renders a presence timestamp as a compact age.
func lastSeen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	}
}

// View renders the model.
func (m Model) View() string {
	return m.renderView()
}
