// Package display provides the terminal UI using Bubble Tea.
//
// The [UI] type renders a status bar for the session and an input
// prompt at the bottom of the terminal. All application output is
// printed above the rendered area via Program.Println / Printf,
// ensuring concurrent writes never garble the display. The UI only
// reads session snapshots; user actions leave through [UI.InputChan].
package display

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/voiceask/internal/domain"
)

// ── Styles ───────────────────────────────────────────────────────

var (
	barBg = lipgloss.NewStyle().
		Background(lipgloss.Color("#27272a")).
		Foreground(lipgloss.Color("#a1a1aa"))

	recStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5")).
			Bold(true)

	busyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fde68a"))

	readyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bbf7d0"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a")).
			Italic(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a1a1aa"))

	sepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#52525b"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	// ── Output styles (soft palette) ──

	// BannerStyle is muted slate for the startup banner.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	// Answer: soft sky blue for the assistant.
	chatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))

	// Primary text: light zinc.
	primaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4d4d8"))

	// Secondary text: dimmed zinc for hints, tips, metadata.
	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	// Urgent: soft coral for errors/alerts.
	urgentOutputStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#fca5a5"))

	userInputEchoStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#a1a1aa"))
)

// ── Key bindings ─────────────────────────────────────────────────

// Commands sent on InputChan by key bindings. The parser maps the
// "/name" form straight to an intent.
const (
	CmdToggleRecording = "/toggle_recording"
	CmdSubmit          = "/submit"
	CmdStopSpeaking    = "/stop_speaking"
)

type keyMap struct {
	Record key.Binding
	Submit key.Binding
	Stop   key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Record: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "record/stop")),
	Submit: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "ask AI")),
	Stop:   key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "stop speaking")),
	Quit:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

// ── UI ───────────────────────────────────────────────────────────

// UI manages the terminal through Bubble Tea.
//
// Call [NewUI] then [UI.Run] (blocking).  Other goroutines may
// safely call [UI.Println], [UI.Printf], and read from
// [UI.InputChan] at any time after [UI.WaitReady] returns.
type UI struct {
	program *tea.Program
	inputCh chan string
	readyCh chan struct{}
	quitCh  chan struct{}
	store   domain.SessionStore
	done    atomic.Bool
}

// NewUI creates the display. Call Run() to start.
func NewUI(store domain.SessionStore) *UI {
	return &UI{
		store:   store,
		inputCh: make(chan string, 16),
		readyCh: make(chan struct{}),
		quitCh:  make(chan struct{}),
	}
}

// Println prints a line above the prompt. Thread-safe.
// If the program hasn't started yet, falls back to fmt.Println.
func (u *UI) Println(a ...interface{}) {
	if u.program != nil && !u.done.Load() {
		u.program.Println(a...)
	} else {
		fmt.Println(a...)
	}
}

// Printf prints formatted text above the prompt. Thread-safe.
func (u *UI) Printf(format string, a ...interface{}) {
	if u.program != nil && !u.done.Load() {
		u.program.Printf(format, a...)
	} else {
		fmt.Printf(format, a...)
	}
}

// InputChan returns completed user-input lines and key-binding commands.
func (u *UI) InputChan() <-chan string { return u.inputCh }

// ── Styled print helpers ─────────────────────────────────────────

// PrintAnswer prints the assistant's answer.
func (u *UI) PrintAnswer(text string) {
	u.Println(secondaryStyle.Render("[ai] ") + chatStyle.Render(text))
}

// PrintInfo prints a regular line.
func (u *UI) PrintInfo(text string) {
	u.Println(primaryStyle.Render("  " + text))
}

// PrintHint prints a secondary/dimmed line.
func (u *UI) PrintHint(text string) {
	u.Println(secondaryStyle.Render("  " + text))
}

// PrintUrgent prints an urgent/error line.
func (u *UI) PrintUrgent(text string) {
	u.Println(urgentOutputStyle.Render("  " + text))
}

// PrintUserInput echoes the user's typed command into the scrollback.
func (u *UI) PrintUserInput(text string) {
	u.Println(promptStyle.Render("ask") + secondaryStyle.Render("> ") + userInputEchoStyle.Render(text))
}

// WaitReady blocks until the Bubble Tea event loop is running.
func (u *UI) WaitReady() { <-u.readyCh }

// Quit tells Bubble Tea to exit.
func (u *UI) Quit() {
	if u.program != nil {
		u.program.Quit()
	}
}

// QuitChan is closed when Run returns.
func (u *UI) QuitChan() <-chan struct{} { return u.quitCh }

// Run starts the Bubble Tea event loop.  Blocks until quit.
func (u *UI) Run() error {
	u.program = tea.NewProgram(newModel(u.store, u.inputCh, u.readyCh, u.PrintUserInput))
	_, err := u.program.Run()
	u.done.Store(true)
	close(u.quitCh)
	return err
}

// ── Bubble Tea model ─────────────────────────────────────────────

type model struct {
	store   domain.SessionStore
	input   textinput.Model
	spin    spinner.Model
	inputCh chan<- string
	readyCh chan struct{}
	echoFn  func(string) // prints user input into scrollback
	state   *domain.SessionState
	now     time.Time
	width   int
}

func newModel(store domain.SessionStore, inputCh chan<- string, readyCh chan struct{}, echo func(string)) model {
	ti := textinput.New()
	// Use a plain-text prompt so the textinput width math stays correct.
	// Lipgloss-styled prompts add invisible ANSI bytes that break the
	// internal offset/scroll calculations for long input.
	ti.Prompt = "ask> "
	ti.PromptStyle = promptStyle
	ti.TextStyle = userInputEchoStyle
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8"))
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60 // updated on first WindowSizeMsg

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(busyStyle))

	return model{
		store:   store,
		input:   ti,
		spin:    sp,
		inputCh: inputCh,
		readyCh: readyCh,
		echoFn:  echo,
		now:     time.Now(),
	}
}

// Messages.
type tickMsg time.Time

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spin.Tick,
		tickCmd(),
		signalReady(m.readyCh),
	)
}

func signalReady(ch chan struct{}) tea.Cmd {
	return func() tea.Msg {
		close(ch)
		return nil
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Record):
			m.send(CmdToggleRecording)
			return m, nil
		case key.Matches(msg, keys.Submit):
			// Suppressed unless there is something to send.
			if m.phase() == domain.PhaseRecorded {
				m.send(CmdSubmit)
			}
			return m, nil
		case key.Matches(msg, keys.Stop):
			if m.phase() == domain.PhaseSpeaking {
				m.send(CmdStopSpeaking)
			}
			return m, nil
		}
		if msg.Type == tea.KeyEnter {
			v := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(v) != "" {
				m.inputCh <- v
				// Return a Cmd that prints the echo; it runs
				// outside Update so it won't deadlock on msgs.
				echoFn := m.echoFn
				return m, func() tea.Msg {
					echoFn(v)
					return nil
				}
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		// Let the text input use the full width minus the prompt ("ask> " = 5 chars).
		const promptLen = 5
		if msg.Width > promptLen {
			m.input.Width = msg.Width - promptLen
		}
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		m.refresh()
		return m, tea.Batch(tickCmd(), tea.SetWindowTitle(m.titleStr()))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// send forwards a key-binding command without blocking the UI.
func (m model) send(cmd string) {
	select {
	case m.inputCh <- cmd:
	default:
	}
}

func (m *model) refresh() {
	s, err := m.store.Load(context.Background())
	if err != nil {
		return
	}
	m.state = s
}

func (m model) phase() domain.Phase {
	if m.state == nil {
		return domain.PhaseIdle
	}
	return m.state.Phase
}

func (m model) titleStr() string {
	if m.state == nil {
		return "voiceask"
	}
	switch m.state.Phase {
	case domain.PhaseRecording:
		return "voiceask: recording " + fmtDuration(m.now.Sub(m.state.PhaseSince))
	case domain.PhaseUploading:
		return "voiceask: thinking"
	case domain.PhaseSpeaking:
		return "voiceask: speaking"
	default:
		return "voiceask"
	}
}

func (m model) View() string {
	var b strings.Builder

	if m.state != nil {
		b.WriteString(m.renderBar())
		b.WriteByte('\n')
	}

	// Blank line before prompt for visual separation.
	b.WriteByte('\n')
	b.WriteString(m.input.View())
	return b.String()
}

func (m model) renderBar() string {
	s := m.state
	var parts []string

	switch s.Phase {
	case domain.PhaseRecording:
		parts = append(parts, recStyle.Render("● REC "+fmtDuration(m.now.Sub(s.PhaseSince))))
	case domain.PhaseUploading:
		parts = append(parts, m.spin.View()+busyStyle.Render(s.Phase.String()))
	case domain.PhaseFailed:
		parts = append(parts, errorStyle.Render(s.Phase.String()))
	case domain.PhaseSpeaking, domain.PhaseAwaitingSpeech:
		parts = append(parts, busyStyle.Render("♪ "+s.Phase.String()))
	default:
		parts = append(parts, readyStyle.Render(s.Phase.String()))
	}

	if s.Phase == domain.PhaseFailed {
		parts = append(parts, errorStyle.Render(s.StatusMessage))
	} else {
		parts = append(parts, labelStyle.Render(s.StatusMessage))
	}

	if hints := affordances(s); len(hints) > 0 {
		parts = append(parts, hintStyle.Render(strings.Join(hints, " · ")))
	}

	content := " " + strings.Join(parts, sepStyle.Render("  │  ")) + " "

	w := m.width
	if w <= 0 {
		w = 80
	}
	return barBg.Width(w).Render(content)
}

// affordances lists the actions available in the current phase.
func affordances(s *domain.SessionState) []string {
	help := func(b key.Binding) string {
		h := b.Help()
		return h.Key + " " + h.Desc
	}

	switch s.Phase {
	case domain.PhaseIdle, domain.PhaseFailed:
		return []string{help(keys.Record)}
	case domain.PhaseRecording:
		return []string{help(keys.Record)}
	case domain.PhaseRecorded:
		out := []string{help(keys.Submit)}
		if s.PlayableAudioRef != "" {
			out = append(out, "play")
		}
		return append(out, help(keys.Record))
	case domain.PhaseSpeaking:
		return []string{help(keys.Stop), help(keys.Record)}
	default:
		return nil
	}
}

// ── Helpers ──────────────────────────────────────────────────────

func fmtDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if m == 0 {
		return fmt.Sprintf("%ds", s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
