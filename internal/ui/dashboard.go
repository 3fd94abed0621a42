package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nook-dev/nook/internal/store"
)

// SnapshotFunc produces a fresh Snapshot for each dashboard refresh.
type SnapshotFunc func(ctx context.Context) (Snapshot, error)

// Dashboard is the live `nook status --watch` view: a self-refreshing
// panel showing per-task-family ledger progress and backend availability.
type Dashboard struct {
	fetch    SnapshotFunc
	interval time.Duration
	noColor  bool
}

// NewDashboard builds a dashboard that re-fetches every interval.
func NewDashboard(fetch SnapshotFunc, interval time.Duration, noColor bool) *Dashboard {
	if interval <= 0 {
		interval = time.Second
	}
	return &Dashboard{fetch: fetch, interval: interval, noColor: noColor}
}

// Run blocks until the user quits (q / Ctrl+C) or ctx is canceled.
func (d *Dashboard) Run(ctx context.Context) error {
	m := newDashModel(d.fetch, d.interval, d.noColor)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	if err == tea.ErrProgramKilled && ctx.Err() != nil {
		return nil
	}
	return err
}

type snapshotMsg struct {
	snap Snapshot
	err  error
}

type refreshMsg time.Time

type dashModel struct {
	fetch    SnapshotFunc
	interval time.Duration
	styles   Styles

	spinner spinner.Model
	bars    map[store.TaskType]progress.Model

	snap    Snapshot
	fetched bool
	lastErr error
	width   int
}

func newDashModel(fetch SnapshotFunc, interval time.Duration, noColor bool) *dashModel {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	if !noColor {
		sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(colorTeal))
	}
	return &dashModel{
		fetch:    fetch,
		interval: interval,
		styles:   NewStyles(noColor),
		spinner:  sp,
		bars:     make(map[store.TaskType]progress.Model),
		width:    80,
	}
}

func (m *dashModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchCmd(), m.refreshCmd())
}

func (m *dashModel) fetchCmd() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		snap, err := fetch(ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m *dashModel) refreshCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m *dashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case snapshotMsg:
		m.fetched = true
		m.lastErr = msg.err
		if msg.err == nil {
			m.snap = msg.snap
		}
	case refreshMsg:
		return m, tea.Batch(m.fetchCmd(), m.refreshCmd())
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *dashModel) bar(tt store.TaskType) progress.Model {
	b, ok := m.bars[tt]
	if !ok {
		b = progress.New(progress.WithSolidFill(colorTeal), progress.WithoutPercentage())
		m.bars[tt] = b
	}
	barWidth := m.width - 46
	if barWidth < 10 {
		barWidth = 10
	}
	b.Width = barWidth
	m.bars[tt] = b
	return b
}

func (m *dashModel) View() string {
	st := m.styles
	var b strings.Builder

	header := st.Title.Render("nook") + " " + st.Label.Render("task ledger")
	if !m.fetched {
		return header + "\n\n" + m.spinner.View() + " loading...\n"
	}

	b.WriteString(header)
	b.WriteString("\n\n")

	for _, tt := range m.snap.TaskTypes() {
		c := m.snap.Counts[tt]
		total := c[store.StatusDone] + c[store.StatusPending] + c[store.StatusFailed]
		ratio := 1.0
		if total > 0 {
			ratio = float64(c[store.StatusDone]) / float64(total)
		}
		bar := m.bar(tt)
		counts := fmt.Sprintf("%d/%d", c[store.StatusDone], total)
		if c[store.StatusFailed] > 0 {
			counts += " " + st.Bad.Render(fmt.Sprintf("(%d failed)", c[store.StatusFailed]))
		}
		fmt.Fprintf(&b, "  %-10s %s %s\n", tt, bar.ViewAs(ratio), counts)
	}

	fmt.Fprintf(&b, "\n  %s %d", st.Label.Render("paths"), m.snap.TotalPaths)
	if m.snap.QueueDepth > 0 {
		fmt.Fprintf(&b, "   %s %s %d", m.spinner.View(), st.Label.Render("queued"), m.snap.QueueDepth)
	}
	if m.snap.StoreBytes > 0 {
		fmt.Fprintf(&b, "   %s %s", st.Label.Render("store"), FormatBytes(m.snap.StoreBytes))
	}
	b.WriteString("\n")

	if len(m.snap.Backends) > 0 {
		b.WriteString("\n")
		for _, bk := range m.snap.Backends {
			dot := st.Bad.Render("○")
			if bk.Loaded {
				dot = st.Good.Render("●")
			}
			fmt.Fprintf(&b, "  %s %-14s %s\n", dot, bk.Key, st.Faint.Render(bk.Model))
		}
	}

	if m.lastErr != nil {
		b.WriteString("\n" + st.Bad.Render("refresh failed: "+m.lastErr.Error()) + "\n")
	}
	b.WriteString("\n" + st.Faint.Render("q to quit") + "\n")
	return b.String()
}
