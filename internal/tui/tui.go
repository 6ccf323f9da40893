// Package tui is the terminal front-end for a voice session. It renders
// controller snapshots and maps keys onto the session controls.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/AltairaLabs/roboshen/runtime/i18n"
	"github.com/AltairaLabs/roboshen/runtime/session"
)

// Terminal size requirements.
const (
	MinTerminalWidth  = 40
	MinTerminalHeight = 12

	defaultWidth  = 80
	defaultHeight = 24

	// headerLines is the height of everything above the transcript.
	headerLines = 9
)

// Controls is the subset of the session controller the front-end drives.
type Controls interface {
	Start(greet bool)
	Retry()
	Stop()
	Interrupt()
	ClearError()
}

// Messages for tea.Cmd
type (
	snapshotMsg session.Snapshot
	closedMsg   struct{}
)

// Options configures a Model.
type Options struct {
	Printer *i18n.Printer
	Title   string
	// Greet makes the first start ask the model for a greeting.
	Greet bool
}

// Model is the bubbletea model for a session.
type Model struct {
	ctrl    Controls
	updates <-chan session.Snapshot
	printer *i18n.Printer
	title   string
	greet   bool
	started bool

	snap session.Snapshot

	spinner  spinner.Model
	level    progress.Model
	history  viewport.Model
	renderer *entryRenderer

	width, height int
	quitting      bool
}

// NewModel creates a model driving ctrl and rendering snapshots from updates.
func NewModel(ctrl Controls, updates <-chan session.Snapshot, opts Options) *Model {
	if opts.Printer == nil {
		opts.Printer = i18n.Default()
	}
	if opts.Title == "" {
		opts.Title = "RoboShen"
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = activeStyle

	return &Model{
		ctrl:     ctrl,
		updates:  updates,
		printer:  opts.Printer,
		title:    opts.Title,
		greet:    opts.Greet,
		snap:     session.Snapshot{State: session.StateIdle, Mode: session.ModeSleeping, Avatar: session.AvatarSleeping},
		spinner:  s,
		level:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(defaultWidth/2), progress.WithoutPercentage()),
		history:  viewport.New(defaultWidth, defaultHeight-headerLines),
		renderer: newEntryRenderer(opts.Printer, defaultWidth),
		width:    defaultWidth,
		height:   defaultHeight,
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

// listen waits for the next snapshot.
func (m *Model) listen() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return closedMsg{}
		}
		return snapshotMsg(snap)
	}
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case snapshotMsg:
		m.apply(session.Snapshot(msg))
		return m, m.listen()

	case closedMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.history, cmd = m.history.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.ctrl.Stop()
		return m, tea.Quit
	case "enter":
		m.activate()
	case " ":
		m.ctrl.Interrupt()
	case "c":
		m.ctrl.ClearError()
	case "s":
		m.ctrl.Stop()
	default:
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd
	}
	return m, nil
}

// activate starts a session, or retries after an error. Only the first
// start greets.
func (m *Model) activate() {
	switch m.snap.State {
	case session.StateError:
		m.ctrl.Retry()
	case session.StateIdle:
		m.ctrl.Start(m.greet && !m.started)
		m.started = true
	default:
	}
}

func (m *Model) apply(snap session.Snapshot) {
	m.snap = snap
	m.history.SetContent(m.renderer.history(snap.History))
	m.history.GotoTop()
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.level.Width = max(width/2, 10)
	m.history.Width = width
	m.history.Height = max(height-headerLines, 1)
	m.renderer.resize(width)
	m.history.SetContent(m.renderer.history(m.snap.History))
}

// View implements tea.Model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("  ")
	b.WriteString(m.status())
	b.WriteString("\n\n")

	b.WriteString(faceStyle.Render(face(m.snap.Avatar)))
	b.WriteString("\n")
	b.WriteString(m.inputLevel())
	b.WriteString("\n\n")

	if m.snap.Error != nil {
		b.WriteString(errorCard(m.snap.Error, m.printer))
		b.WriteString("\n\n")
	}

	b.WriteString(m.history.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.hint()))
	return b.String()
}

func (m *Model) status() string {
	label := m.snap.State.Label(m.printer)
	switch {
	case m.snap.State == session.StateConnecting:
		return m.spinner.View() + " " + statusStyle.Render(label)
	case m.snap.Thinking:
		return activeStyle.Render(label) + " " + m.spinner.View()
	case m.snap.State == session.StateConnected:
		return activeStyle.Render(label)
	default:
		return statusStyle.Render(label)
	}
}

// inputLevel renders the microphone level bar. The smoothed RMS of speech
// sits well under 0.3, so the bar is scaled by its square root.
func (m *Model) inputLevel() string {
	if m.snap.State != session.StateConnected {
		return ""
	}
	bar := m.level.ViewAs(math.Min(1, math.Sqrt(math.Max(0, m.snap.InputLevel))))
	if m.snap.UserSpeaking {
		return bar + " " + activeStyle.Render("●")
	}
	return bar
}

func (m *Model) hint() string {
	switch m.snap.State {
	case session.StateError:
		return m.printer.Text(i18n.HintRetry) + "  (c, q)"
	case session.StateConnected:
		return m.printer.Text(i18n.HintConnected)
	case session.StateIdle:
		return m.printer.Text(i18n.HintStart)
	default:
		return ""
	}
}

// Snapshot returns the last rendered snapshot.
func (m *Model) Snapshot() session.Snapshot {
	return m.snap
}

// Run starts the program and blocks until it exits or ctx is done.
func Run(ctx context.Context, model *Model, opts ...tea.ProgramOption) error {
	if _, _, ok, reason := CheckTerminalSize(); !ok {
		return fmt.Errorf("TUI mode not supported: %s", reason)
	}

	p := tea.NewProgram(model, append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)...)
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// CheckTerminalSize checks if the terminal is large enough for TUI mode
func CheckTerminalSize() (width, height int, supported bool, reason string) {
	// Try stdout first (fd 1), then stderr (fd 2), then stdin (fd 0)
	for _, fd := range []int{1, 2, 0} {
		width, height, err := term.GetSize(fd)
		if err == nil {
			if width < MinTerminalWidth || height < MinTerminalHeight {
				return width, height, false, fmt.Sprintf(
					"terminal too small (%dx%d, minimum %dx%d required)",
					width, height, MinTerminalWidth, MinTerminalHeight,
				)
			}
			return width, height, true, ""
		}
	}
	return 0, 0, false, "unable to detect terminal size (not a TTY)"
}
