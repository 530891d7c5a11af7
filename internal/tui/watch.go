package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/pulseboard/pkg/dashboard"
	"github.com/vanderheijden86/pulseboard/pkg/export"
	"github.com/vanderheijden86/pulseboard/pkg/trend"
)

// Reloader refreshes the store from the data source.
type Reloader func(ctx context.Context) error

// WatchOptions configures the live dashboard.
type WatchOptions struct {
	Store     *dashboard.Store
	Selection Selection
	// Options are the aggregation options; Now is replaced on every
	// recompute.
	Options dashboard.Options
	// Reload is called on file changes and the r key. Nil disables reloads.
	Reload Reloader
	// Changes delivers file change notifications, usually from a watcher.
	Changes <-chan struct{}
	// Now defaults to time.Now.
	Now func() time.Time
}

type changeMsg struct{}

type computedMsg struct {
	vm  dashboard.ViewModel
	err error
}

type copiedMsg struct{ err error }

// WatchModel is the bubbletea model behind `pulse watch`.
type WatchModel struct {
	opts WatchOptions
	sel  Selection

	viewport viewport.Model
	ready    bool
	width    int
	height   int

	vm         dashboard.ViewModel
	showReport bool
	status     string
	err        error
	updatedAt  time.Time
	refreshes  int
}

// NewWatchModel returns a model computing from opts.Store.
func NewWatchModel(opts WatchOptions) WatchModel {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Selection.Timeframe == "" {
		opts.Selection.Timeframe = trend.Month
	}
	return WatchModel{
		opts:     opts,
		sel:      opts.Selection,
		viewport: viewport.New(80, 20),
	}
}

// Init computes the first view-model and starts listening for changes.
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.compute(false), m.waitForChange())
}

func (m WatchModel) waitForChange() tea.Cmd {
	ch := m.opts.Changes
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changeMsg{}
	}
}

// compute recomputes the view-model, reloading the store first when reload
// is set.
func (m WatchModel) compute(reload bool) tea.Cmd {
	opts := m.opts
	sel := m.sel
	return func() tea.Msg {
		if reload && opts.Reload != nil {
			if err := opts.Reload(context.Background()); err != nil {
				return computedMsg{err: err}
			}
		}
		o := opts.Options
		o.Now = opts.Now()
		return computedMsg{vm: dashboard.ComputeViewModel(opts.Store.Snapshot(), sel.Criteria, sel.Timeframe, o)}
	}
}

// Update handles keys, resizes, refresh results and file changes.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-2)
		m.ready = true
		m.viewport.SetContent(m.render())
		return m, nil

	case changeMsg:
		m.status = "snapshot changed, reloading"
		return m, tea.Batch(m.compute(true), m.waitForChange())

	case computedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.vm = msg.vm
		m.updatedAt = msg.vm.GeneratedAt
		m.refreshes++
		m.status = ""
		m.viewport.SetContent(m.render())
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		} else {
			m.status = "report copied to clipboard"
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r", "f5":
			m.status = "reloading"
			return m, m.compute(true)
		case "t":
			m.sel.Timeframe = nextTimeframe(m.sel.Timeframe)
			m.status = "timeframe " + string(m.sel.Timeframe)
			return m, m.compute(false)
		case "m":
			m.showReport = !m.showReport
			m.viewport.SetContent(m.render())
			m.viewport.GotoTop()
			return m, nil
		case "c":
			md := export.GenerateMarkdown(m.vm, export.ReportOptions{Query: m.sel.Query})
			return m, func() tea.Msg { return copiedMsg{err: CopyToClipboard(md)} }
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func nextTimeframe(tf trend.Timeframe) trend.Timeframe {
	switch tf {
	case trend.Week:
		return trend.Month
	case trend.Month:
		return trend.Quarter
	default:
		return trend.Week
	}
}

func (m WatchModel) render() string {
	if m.refreshes == 0 {
		return mutedStyle.Render("computing…")
	}
	if !m.showReport {
		return SummaryTable(m.vm)
	}
	md := export.GenerateMarkdown(m.vm, export.ReportOptions{Query: m.sel.Query})
	out, err := RenderMarkdown(md, m.width-2)
	if err != nil {
		return md
	}
	return out
}

// View draws the header, the scrollable body and a key help footer.
func (m WatchModel) View() string {
	if !m.ready {
		return "\n  Initializing…"
	}
	header := headerStyle.Render(fmt.Sprintf("pulse watch  %s  %s", m.sel.Timeframe, describeSelection(m.sel)))
	if !m.updatedAt.IsZero() {
		header += mutedStyle.Render("  updated " + m.updatedAt.Format("15:04:05"))
	}

	footer := footerStyle.Render("q quit • r reload • t timeframe • m report • c copy • ↑/↓ scroll")
	switch {
	case m.err != nil:
		footer = errorStyle.Render("error: "+m.err.Error()) + "  " + footer
	case m.status != "":
		footer = mutedStyle.Render(m.status) + "  " + footer
	}
	return header + "\n" + m.viewport.View() + "\n" + footer
}

func describeSelection(sel Selection) string {
	c := sel.Criteria
	if c.IsEmpty() {
		return "all records"
	}
	var parts []string
	if len(c.Statuses) > 0 {
		parts = append(parts, "status="+strings.Join(c.Statuses, ","))
	}
	if len(c.Priorities) > 0 {
		parts = append(parts, "priority="+strings.Join(c.Priorities, ","))
	}
	if len(c.Teams) > 0 {
		parts = append(parts, "team="+strings.Join(c.Teams, ","))
	}
	if c.SearchText != "" {
		parts = append(parts, fmt.Sprintf("q=%q", c.SearchText))
	}
	return strings.Join(parts, " ")
}

// RunWatch runs the live dashboard until the user quits or ctx is done.
func RunWatch(ctx context.Context, opts WatchOptions) error {
	p := tea.NewProgram(NewWatchModel(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run watch view: %w", err)
	}
	return nil
}
