// Package tui is the terminal view of a device session: a status line, a
// connect and a disconnect button, and the device info panel.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/FluidXR/adbinfo/internal/session"
)

// Controller is the part of session.Controller the view drives.
type Controller interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	State() session.State
}

type button int

const (
	buttonConnect button = iota
	buttonDisconnect
)

// StateMsg carries a state published by the controller.
type StateMsg session.State

// connectDoneMsg signals the end of a connect attempt.
type connectDoneMsg struct {
	state session.State
	err   error
}

// disconnectDoneMsg signals the end of a disconnect.
type disconnectDoneMsg struct {
	state session.State
	err   error
}

// Model is the Bubbletea model of the terminal view.
type Model struct {
	ctx  context.Context
	ctrl Controller

	state session.State
	busy  bool // a connect or disconnect is running
	focus button

	// Nickname returns a display name for a serial, or "".
	Nickname func(serial string) string

	width   int
	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	styles  Styles
}

// New returns a Model rendering ctrl's state.
func New(ctx context.Context, ctrl Controller) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	m := Model{
		ctx:     ctx,
		ctrl:    ctrl,
		state:   ctrl.State(),
		keys:    DefaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		styles:  DefaultStyles(),
	}
	m.syncKeys()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// canConnect and canDisconnect mirror the connection state; both are off
// while an operation runs.
func (m Model) canConnect() bool    { return !m.busy && !m.state.Connected }
func (m Model) canDisconnect() bool { return !m.busy && m.state.Connected }

func (m *Model) syncKeys() {
	m.keys.Connect.SetEnabled(m.canConnect())
	m.keys.Disconnect.SetEnabled(m.canDisconnect())
	if m.state.Connected {
		m.focus = buttonDisconnect
	} else {
		m.focus = buttonConnect
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Connect):
			return m.startConnect()
		case key.Matches(msg, m.keys.Disconnect):
			return m.startDisconnect()
		case key.Matches(msg, m.keys.Left):
			m.focus = buttonConnect
		case key.Matches(msg, m.keys.Right):
			m.focus = buttonDisconnect
		case key.Matches(msg, m.keys.Press):
			if m.focus == buttonConnect {
				return m.startConnect()
			}
			return m.startDisconnect()
		}
		return m, nil

	case connectDoneMsg:
		m.busy = false
		m.state = msg.state
		m.syncKeys()
		return m, nil

	case disconnectDoneMsg:
		m.busy = false
		m.state = msg.state
		m.syncKeys()
		return m, nil

	case StateMsg:
		m.state = session.State(msg)
		if !m.busy {
			m.syncKeys()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) startConnect() (tea.Model, tea.Cmd) {
	if !m.canConnect() {
		return m, nil
	}
	m.busy = true
	m.syncKeys()
	ctx, ctrl := m.ctx, m.ctrl
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		err := ctrl.Connect(ctx)
		return connectDoneMsg{state: ctrl.State(), err: err}
	})
}

func (m Model) startDisconnect() (tea.Model, tea.Cmd) {
	if !m.canDisconnect() {
		return m, nil
	}
	m.busy = true
	m.syncKeys()
	ctx, ctrl := m.ctx, m.ctrl
	return m, func() tea.Msg {
		err := ctrl.Disconnect(ctx)
		return disconnectDoneMsg{state: ctrl.State(), err: err}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("📱 Android ADB Connection"))
	b.WriteString("\n")

	status := m.styles.Status
	switch {
	case m.state.Failed():
		status = m.styles.StatusErr
	case m.state.Connected:
		status = m.styles.StatusOK
	}
	line := status.Render(m.state.Status)
	if m.busy {
		line = m.spinner.View() + " " + line
	}
	b.WriteString(line)
	b.WriteString("\n\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderButton(buttonConnect, "🔌 Connect Device", m.canConnect()),
		"  ",
		m.renderButton(buttonDisconnect, "🔌 Disconnect", m.canDisconnect()),
	))
	b.WriteString("\n")

	if m.state.Info != nil {
		b.WriteString(m.renderInfo())
		b.WriteString("\n")
	}

	b.WriteString(m.styles.Tips.Render(strings.Join([]string{
		"💡 Tips:",
		"  • Enable USB Debugging on your Android device",
		"  • Accept the \"Allow USB debugging?\" prompt when it appears",
		"  • Close any other running ADB clients (e.g., Android Studio)",
	}, "\n")))
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderButton(which button, label string, enabled bool) string {
	style := m.styles.Button
	switch {
	case !enabled:
		style = m.styles.ButtonDisabled
	case m.focus == which:
		style = m.styles.ButtonFocused
	}
	return style.Render(label)
}

func (m Model) renderInfo() string {
	lines := []string{m.styles.PanelTitle.Render("📋 Device Info"), ""}
	for _, f := range m.state.Info {
		value := f.Value
		if f.Label == session.LabelSerial && m.Nickname != nil {
			if nick := m.Nickname(f.Value); nick != "" {
				value = fmt.Sprintf("%s (%s)", f.Value, nick)
			}
		}
		lines = append(lines, m.styles.Label.Render(f.Label+":")+" "+value)
	}
	return m.styles.Panel.Render(strings.Join(lines, "\n"))
}
