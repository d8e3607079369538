// Package tui shows the stack view in a scrollable terminal viewer that keeps
// up with a live trace.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

const defaultRefreshRate = 100 * time.Millisecond

type tickMsg time.Time

// DoneMsg tells the model the render loop has finished. Err is nil when the
// trace was exhausted normally.
type DoneMsg struct {
	Events int
	Err    error
}

type Model struct {
	width    int
	height   int
	keys     KeyMap
	quitting bool

	lines    *LineWriter
	viewport viewport.Model
	ready    bool

	// follow keeps the viewport pinned to the newest line.
	follow   bool
	lastSeq  uint64
	lastPend string

	title       string
	done        bool
	doneMsg     DoneMsg
	refreshRate time.Duration

	onShutdown func()
}

type ModelOption func(*Model)

// WithTitle sets the header text, usually the trace path.
func WithTitle(title string) ModelOption {
	return func(m *Model) { m.title = title }
}

// WithRefreshRate sets how often the viewer polls for new lines.
func WithRefreshRate(d time.Duration) ModelOption {
	return func(m *Model) {
		if d > 0 {
			m.refreshRate = d
		}
	}
}

// WithFollow sets whether the viewer starts pinned to the bottom.
func WithFollow(follow bool) ModelOption {
	return func(m *Model) { m.follow = follow }
}

// WithOnShutdown registers fn to run when the user quits.
func WithOnShutdown(fn func()) ModelOption {
	return func(m *Model) { m.onShutdown = fn }
}

// NewModel returns a viewer over the lines collected by w.
func NewModel(w *LineWriter, opts ...ModelOption) Model {
	m := Model{
		keys:        DefaultKeyMap(),
		lines:       w,
		follow:      true,
		title:       "stackview",
		refreshRate: defaultRefreshRate,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tickMsg:
		m.refresh()
		return m, m.tickCmd()

	case DoneMsg:
		m.done = true
		m.doneMsg = msg
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		if m.onShutdown != nil {
			m.onShutdown()
		}
		return m, tea.Quit
	}
	if !m.ready {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		m.viewport.ScrollUp(1)
	case key.Matches(msg, m.keys.Down):
		m.viewport.ScrollDown(1)
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.PageUp()
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.PageDown()
	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
	case key.Matches(msg, m.keys.Follow):
		m.follow = !m.follow
		if m.follow {
			m.viewport.GotoBottom()
		}
		return m, nil
	default:
		return m, nil
	}

	// Manual scrolling releases follow mode until the bottom is reached again.
	m.follow = m.viewport.AtBottom()
	return m, nil
}

// resize fits the viewport between the header and footer lines.
func (m *Model) resize() {
	h := m.height - 2
	if h < 1 {
		h = 1
	}
	if !m.ready {
		m.viewport = viewport.New(m.width, h)
		m.ready = true
		m.setContent()
		return
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
	if m.follow {
		m.viewport.GotoBottom()
	}
}

// refresh reloads the viewport when new output has arrived.
func (m *Model) refresh() {
	seq := m.lines.Buffer().Total()
	pend := m.lines.Pending()
	if seq == m.lastSeq && pend == m.lastPend {
		return
	}
	m.lastSeq, m.lastPend = seq, pend
	if m.ready {
		m.setContent()
	}
}

func (m *Model) setContent() {
	m.viewport.SetContent(m.content())
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) content() string {
	lines := m.lines.Buffer().Texts()
	if p := m.lines.Pending(); p != "" {
		lines = append(lines, p)
	}
	return strings.Join(lines, "\n")
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "loading…"
	}
	return strings.Join([]string{m.header(), m.viewport.View(), m.footer()}, "\n")
}

func (m Model) header() string {
	status := "reading"
	switch {
	case m.done && m.doneMsg.Err != nil:
		status = "error: " + m.doneMsg.Err.Error()
	case m.done:
		status = fmt.Sprintf("end of trace (%d events)", m.doneMsg.Events)
	}
	buf := m.lines.Buffer()
	text := fmt.Sprintf(" %s  %s  lines %d", m.title, status, buf.Total())
	if dropped := buf.Total() - uint64(buf.Len()); dropped > 0 {
		text += fmt.Sprintf(" (%d scrolled out)", dropped)
	}
	return headerStyle.Width(m.width).Render(truncate(text, m.width))
}

func (m Model) footer() string {
	var parts []string
	for _, b := range m.keys.shortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	follow := dimStyle.Render("follow off")
	if m.follow {
		follow = followStyle.Render("follow on")
	}
	pos := fmt.Sprintf("%3.0f%%", m.viewport.ScrollPercent()*100)
	return truncate(follow+"  "+pos+"  "+dimStyle.Render(strings.Join(parts, " · ")), m.width)
}
