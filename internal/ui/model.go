// Package ui renders the watch face in the terminal with Bubble Tea.
package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/danmuck/watchsync/internal/appsync"
	"github.com/danmuck/watchsync/internal/display"
)

// Face is the part of display.Face the UI reads.
type Face interface {
	Snapshot(now time.Time) display.View
}

// Options configures the UI.
type Options struct {
	Face    Face
	Refresh func() error
	Status  func() appsync.Status
	Tick    time.Duration
	Now     func() time.Time
}

// Model is the root Bubble Tea model.
type Model struct {
	face    Face
	refresh func() error
	status  func() appsync.Status
	tick    time.Duration
	now     func() time.Time

	keys   keyMap
	help   help.Model
	width  int
	height int

	view       display.View
	syncStatus appsync.Status
	refreshErr error
}

func New(opts Options) Model {
	tick := opts.Tick
	if tick <= 0 {
		tick = time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	m := Model{
		face:    opts.Face,
		refresh: opts.Refresh,
		status:  opts.Status,
		tick:    tick,
		now:     now,
		keys:    defaultKeyMap(),
		help:    help.New(),
	}
	m.poll()
	return m
}

// Run blocks until the user quits.
func Run(opts Options) error {
	_, err := tea.NewProgram(New(opts), tea.WithAltScreen()).Run()
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd(m.tick)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, refreshCmd(m.refresh)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.poll()
		return m, tickCmd(m.tick)

	case refreshResultMsg:
		m.refreshErr = msg.err
		m.poll()
		return m, nil
	}
	return m, nil
}

func (m *Model) poll() {
	if m.face != nil {
		m.view = m.face.Snapshot(m.now())
	}
	if m.status != nil {
		m.syncStatus = m.status()
	}
}

type tickMsg time.Time

type refreshResultMsg struct{ err error }

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func refreshCmd(fn func() error) tea.Cmd {
	if fn == nil {
		return nil
	}
	return func() tea.Msg {
		return refreshResultMsg{err: fn()}
	}
}
