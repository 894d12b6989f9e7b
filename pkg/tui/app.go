package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/flowlens/flowlens/pkg/schema"
	"github.com/flowlens/flowlens/pkg/tracer"
)

// --- Tea messages ---

// eventMsg carries the one event a continue cycle produced.
type eventMsg struct {
	snap *schema.Snapshot
}

// errMsg wraps a fatal error.
type errMsg struct{ err error }

// --- Model ---

// Model is the top-level Bubble Tea model for the stepping UI.
type Model struct {
	session *tracer.Session

	// Components
	source  viewport.Model
	state   statePanel
	spinner spinner.Model

	// Target source text, 0-indexed by line.
	lines []string

	// Last event and run state
	snap     *schema.Snapshot
	waiting  bool
	terminal bool
	fatalErr string

	// "go to line" entry
	entering bool
	input    string

	// Layout
	width  int
	height int
}

// New builds the model for one session. The target source is read for
// display only; the session owns execution.
func New(session *tracer.Session) (*Model, error) {
	path := filepath.Join(session.Request.RepoRoot, filepath.FromSlash(session.Entry.Point.File))
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading target for display: %w", err)
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		session: session,
		lines:   strings.Split(string(src), "\n"),
		spinner: sp,
	}, nil
}

// Run drives the program to completion and closes the session.
func Run(session *tracer.Session) error {
	m, err := New(session)
	if err != nil {
		return err
	}
	defer session.Close()

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// continueTo arms the next cycle and waits for its event off the UI
// goroutine.
func (m *Model) continueTo(target int) tea.Cmd {
	m.waiting = true
	return func() tea.Msg {
		if err := m.session.ContinueUntil(target, ""); err != nil {
			return errMsg{err}
		}
		snap := m.session.WaitForEvent()
		if err := m.session.Emit(snap); err != nil {
			return errMsg{err}
		}
		return eventMsg{snap}
	}
}

// nextTarget picks the line one past the current pause, or the entry
// function's first line before any event.
func (m *Model) nextTarget() int {
	if m.snap == nil {
		return m.session.Entry.Info.StartLine
	}
	return m.snap.Line + 1
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case eventMsg:
		m.waiting = false
		m.snap = msg.snap
		if msg.snap.Event == schema.EventReturn || msg.snap.Event == schema.EventError {
			m.terminal = true
		}
		m.refreshSource()
		return m, nil

	case errMsg:
		m.fatalErr = msg.err.Error()
		m.terminal = true
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.entering {
		switch msg.String() {
		case "enter":
			m.entering = false
			if target, err := strconv.Atoi(m.input); err == nil && target > 0 {
				m.input = ""
				return m, m.continueTo(target)
			}
			m.input = ""
			return m, nil
		case "esc":
			m.entering = false
			m.input = ""
			return m, nil
		case "backspace":
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
			return m, nil
		default:
			if s := msg.String(); len(s) == 1 && s[0] >= '0' && s[0] <= '9' {
				m.input += s
			}
			return m, nil
		}
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Step):
		if !m.waiting && !m.terminal {
			return m, m.continueTo(m.nextTarget())
		}
	case key.Matches(msg, keys.Go):
		if !m.waiting && !m.terminal {
			m.entering = true
		}
	case key.Matches(msg, keys.Up), key.Matches(msg, keys.Down),
		key.Matches(msg, keys.PgUp), key.Matches(msg, keys.PgDown):
		var cmd tea.Cmd
		m.source, cmd = m.source.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) layout() {
	bodyHeight := m.height - 4
	if bodyHeight < 3 {
		bodyHeight = 3
	}
	sourceWidth := m.width * 3 / 5
	m.source = viewport.New(sourceWidth, bodyHeight)
	m.state = statePanel{width: m.width - sourceWidth - 4, height: bodyHeight}
	m.refreshSource()
}

// refreshSource repaints the source viewport and keeps the current
// line in view.
func (m *Model) refreshSource() {
	current := 0
	if m.snap != nil {
		current = m.snap.Line
	}

	var b strings.Builder
	for i, line := range m.lines {
		no := i + 1
		num := lineNumber.Render(fmt.Sprintf("%4d ", no))
		if no == current {
			b.WriteString(num + lineCurrent.Render(GlyphPaused+" "+line))
		} else {
			b.WriteString(num + lineNormal.Render("  "+line))
		}
		b.WriteString("\n")
	}
	m.source.SetContent(b.String())

	if current > 0 {
		offset := current - m.source.Height/2
		if offset < 0 {
			offset = 0
		}
		m.source.SetYOffset(offset)
	}
}

func (m *Model) View() string {
	if m.width == 0 {
		return "loading…"
	}

	header := headerStyle.Render("flowlens "+m.session.Request.EntryFullID) +
		runBadgeStyle.Render(m.session.RunID)

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		panelBorder.Render(m.source.View()),
		m.state.render(m.snap),
	)

	footer := m.statusLine() + "\n" + keyBarText(m.waiting, m.terminal, m.entering)
	return header + "\n" + body + "\n" + footer
}

func (m *Model) statusLine() string {
	if m.fatalErr != "" {
		return statusBad.Render(GlyphFailed + " " + m.fatalErr)
	}
	if m.entering {
		return promptStyle.Render("continue to line: " + m.input + "█")
	}
	if m.waiting {
		return m.spinner.View() + " " + GlyphRunning + " running"
	}
	if m.snap == nil {
		return keyDescStyle.Render("ready: press n to reach the first line")
	}
	switch m.snap.Event {
	case schema.EventReturn:
		return statusGood.Render(fmt.Sprintf("%s completed at %s:%d", GlyphCompleted, m.snap.Function, m.snap.Line))
	case schema.EventError:
		return statusBad.Render(fmt.Sprintf("%s failed: %s", GlyphFailed, m.snap.Error))
	case schema.EventTimeout:
		return statusBad.Render(GlyphTimeout + " " + m.snap.Error)
	default:
		return statusGood.Render(fmt.Sprintf("%s paused at %s:%d", GlyphPaused, m.snap.Function, m.snap.Line))
	}
}
