package tui

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tatianab/lesson-game/internal/generator"
	"github.com/tatianab/lesson-game/internal/hub"
	"github.com/tatianab/lesson-game/internal/models"
	"github.com/tatianab/lesson-game/internal/state"
)

type sessionState int

const (
	stateInputLesson sessionState = iota
	stateLoading
	statePlaying
	stateError
)

// Generator writes a game from lesson text and reworks it from host feedback.
type Generator interface {
	GenerateSpecification(ctx context.Context, lesson generator.Lesson) (*models.GameSpecification, error)
	ReviseSpecification(ctx context.Context, spec *models.GameSpecification, feedback string) (*models.GameSpecification, error)
}

// Config selects the session the console hosts. SessionID resumes a stored
// session, Spec starts a new one, and otherwise the console asks for lesson
// text and generates a game with Generator. With a Generator the lobby also
// accepts revise.
type Config struct {
	Hub       *hub.Hub
	Generator Generator
	Spec      *models.GameSpecification
	SessionID string
}

type model struct {
	state       sessionState
	cfg         Config
	session     *hub.Session
	changes     chan struct{}
	unsubscribe func()
	seenEvents  int
	textInput   textinput.Model
	viewport    viewport.Model
	err         error
	gameLog     string
	width       int
	height      int
}

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true).
			PaddingLeft(1)

	gameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	stateStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)
)

func NewModel(cfg Config) model {
	ti := textinput.New()
	ti.Placeholder = "Paste the lesson text..."
	ti.Focus()
	ti.CharLimit = 4000
	ti.Width = 60

	m := model{
		state:     stateInputLesson,
		cfg:       cfg,
		changes:   make(chan struct{}, 1),
		textInput: ti,
	}
	if cfg.SessionID != "" || cfg.Spec != nil {
		m.state = stateLoading
	}
	return m
}

func (m model) Init() tea.Cmd {
	switch {
	case m.cfg.SessionID != "":
		return m.openSession(m.cfg.SessionID)
	case m.cfg.Spec != nil:
		return m.createSession(m.cfg.Spec)
	}
	return textinput.Blink
}

type sessionReadyMsg struct {
	session *hub.Session
}

type changedMsg struct{}

type commandMsg struct {
	output string
	err    error
	quit   bool
}

type errMsg struct {
	err error
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.close()
			return m, tea.Quit

		case tea.KeyEnter:
			if m.state == stateInputLesson {
				lesson := strings.TrimSpace(m.textInput.Value())
				if lesson == "" {
					return m, nil
				}
				if m.cfg.Generator == nil {
					m.err = errors.New("no generator configured; pass a specification file")
					m.state = stateError
					return m, nil
				}
				m.state = stateLoading
				return m, m.generate(lesson)
			}
			if m.state == statePlaying {
				line := m.textInput.Value()
				if strings.TrimSpace(line) == "" {
					return m, nil
				}
				m.textInput.Reset()
				m.appendLog(userStyle.Width(m.logWidth()).Render("> " + line))
				return m, m.runCommand(line)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = m.logWidth()
		m.viewport.Height = msg.Height - 6
		if m.state == statePlaying {
			m.viewport.SetContent(m.gameLog)
		}

	case sessionReadyMsg:
		first := m.session == nil
		m.close()
		m.session = msg.session
		m.seenEvents = 0
		m.state = statePlaying
		if m.viewport.Width == 0 {
			m.viewport = viewport.New(m.logWidth(), m.height-6)
		}
		spec := m.session.Runner.Spec()
		m.gameLog = gameStyle.Bold(true).Render(spec.Title) + "\n\n" +
			gameStyle.Width(m.logWidth()).Render(spec.Narrative) + "\n"
		m.appendLog(helpStyle.Render("session " + m.session.ID))
		m.drainEvents()
		changes := m.changes
		m.unsubscribe = m.session.Runner.StateManager().Subscribe(func(state.Snapshot) {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
		m.textInput.Placeholder = "Command (help for a list)"
		m.textInput.Reset()
		if !first {
			return m, nil
		}
		return m, waitForChange(m.changes)

	case changedMsg:
		m.drainEvents()
		return m, waitForChange(m.changes)

	case commandMsg:
		if msg.quit {
			m.close()
			return m, tea.Quit
		}
		if msg.err != nil {
			m.appendLog(errorStyle.Render(msg.err.Error()))
		} else if msg.output != "" {
			m.appendLog(gameStyle.Width(m.logWidth()).Render(msg.output))
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		m.state = stateError
		return m, nil
	}

	if m.state == stateInputLesson || m.state == statePlaying {
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) View() string {
	var s string

	switch m.state {
	case stateInputLesson:
		s = fmt.Sprintf(
			"Welcome to the Lesson Game host console!\n\n%s\n\n%s",
			"Paste the lesson your class is studying:",
			m.textInput.View(),
		)

	case stateLoading:
		s = "\n  Preparing the game... please wait.\n"

	case statePlaying:
		mainView := lipgloss.JoinHorizontal(lipgloss.Top,
			m.viewport.View(),
			m.renderState(),
		)
		s = lipgloss.JoinVertical(lipgloss.Left,
			mainView,
			"\n"+m.textInput.View(),
			"\n"+helpStyle.Render(helpText),
		)

	case stateError:
		s = fmt.Sprintf("\n  Error: %v\n\nPress Esc to quit.", m.err)
	}

	return "\n" + s + "\n"
}

func (m model) renderState() string {
	if m.session == nil {
		return ""
	}
	snap := m.session.Runner.Snapshot()
	st := snap.State

	var b strings.Builder
	b.WriteString(titleStyle.Render("PHASE") + "\n")
	fmt.Fprintf(&b, "%s\nRound %d", st.Phase, st.RoundNumber)
	if st.TurnNumber > 0 {
		fmt.Fprintf(&b, ", turn %d", st.TurnNumber)
	}
	b.WriteString("\n")
	if st.TimeRemaining != nil {
		fmt.Fprintf(&b, "Time left: %ds\n", *st.TimeRemaining)
	}
	if st.CurrentPlayerTurn != "" {
		fmt.Fprintf(&b, "Turn: %s\n", st.CurrentPlayerTurn)
	}
	b.WriteString("\n")

	if q := st.ActiveQuestion; q != nil {
		b.WriteString(titleStyle.Render("QUESTION") + "\n")
		b.WriteString(q.Prompt + "\n")
		for _, opt := range q.Options {
			b.WriteString("- " + opt + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(titleStyle.Render("PLAYERS") + "\n")
	board := m.session.Runner.StateManager().Rankings()
	if len(board) == 0 {
		b.WriteString("(none yet)\n")
	}
	for _, rk := range board {
		fmt.Fprintf(&b, "%d. %s  %d", rk.Rank, rk.Name, rk.Score)
		if p := snap.Players[rk.PlayerID]; p.Status != models.StatusActive {
			fmt.Fprintf(&b, " (%s)", p.Status)
		}
		b.WriteString("\n")
	}
	if len(st.Winners) > 0 {
		b.WriteString("\n" + titleStyle.Render("WINNERS") + "\n" + strings.Join(st.Winners, ", ") + "\n")
	}

	stateWidth := int(float64(m.width) * 0.23)
	return stateStyle.Width(stateWidth).Height(m.viewport.Height).Render(b.String())
}

func (m model) logWidth() int {
	return int(float64(m.width) * 0.75)
}

func (m *model) appendLog(line string) {
	m.gameLog += "\n" + line + "\n"
	m.viewport.SetContent(m.gameLog)
	m.viewport.GotoBottom()
}

// drainEvents appends events recorded since the last call.
func (m *model) drainEvents() {
	events := m.session.Runner.Snapshot().State.Events
	if m.seenEvents > len(events) {
		m.seenEvents = 0
	}
	for _, e := range events[m.seenEvents:] {
		m.appendLog(helpStyle.Render(EventLine(e)))
	}
	m.seenEvents = len(events)
}

func (m *model) close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// EventLine renders one event for the console log.
func EventLine(e models.GameEvent) string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	if e.PlayerID != "" {
		b.WriteString(" " + e.PlayerID)
	}
	switch e.Type {
	case models.EventPhaseChange:
		fmt.Fprintf(&b, ": %v -> %v", e.Payload["from"], e.Payload["to"])
	case models.EventQuestionTriggered:
		fmt.Fprintf(&b, ": %v", e.Payload["questionId"])
	case models.EventGameComplete:
		fmt.Fprintf(&b, ": winners %v", e.Payload["winners"])
	}
	return b.String()
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func (m model) generate(lesson string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		spec, err := m.cfg.Generator.GenerateSpecification(ctx, generator.Lesson{Text: lesson})
		if err != nil {
			return errMsg{err}
		}
		sess, err := m.cfg.Hub.Create(ctx, spec)
		if err != nil {
			return errMsg{err}
		}
		return sessionReadyMsg{sess}
	}
}

func (m model) createSession(spec *models.GameSpecification) tea.Cmd {
	return func() tea.Msg {
		sess, err := m.cfg.Hub.Create(context.Background(), spec)
		if err != nil {
			return errMsg{err}
		}
		return sessionReadyMsg{sess}
	}
}

func (m model) openSession(id string) tea.Cmd {
	return func() tea.Msg {
		sess, err := m.cfg.Hub.Get(context.Background(), id)
		if err != nil {
			return errMsg{err}
		}
		return sessionReadyMsg{sess}
	}
}

func (m model) runCommand(line string) tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		cmd, err := ParseCommand(line)
		if err != nil {
			return commandMsg{err: err}
		}
		switch cmd.Name {
		case "quit":
			return commandMsg{quit: true}
		case "revise":
			revised, err := m.revise(context.Background(), sess, cmd.Text)
			if err != nil {
				return commandMsg{err: err}
			}
			return sessionReadyMsg{revised}
		}
		out, err := Execute(context.Background(), sess.Runner, cmd)
		return commandMsg{output: out, err: err}
	}
}

// revise regenerates the lobby's game from feedback and seats its players in
// a fresh session that replaces the old one.
func (m model) revise(ctx context.Context, old *hub.Session, feedback string) (*hub.Session, error) {
	if m.cfg.Generator == nil {
		return nil, errors.New("revise needs a generator; set GEMINI_API_KEY")
	}
	if phase := old.Runner.State().Phase; phase != models.PhaseLobby {
		return nil, fmt.Errorf("revise is only available in the lobby, not %s", phase)
	}
	spec, err := m.cfg.Generator.ReviseSpecification(ctx, old.Runner.Spec(), feedback)
	if err != nil {
		return nil, err
	}
	sess, err := m.cfg.Hub.Create(ctx, spec)
	if err != nil {
		return nil, err
	}
	players := old.Runner.Players()
	for _, id := range slices.Sorted(maps.Keys(players)) {
		if _, err := sess.Runner.AddPlayer(ctx, id, players[id].Name); err != nil {
			_ = m.cfg.Hub.Remove(ctx, sess.ID)
			return nil, err
		}
	}
	if err := m.cfg.Hub.Remove(ctx, old.ID); err != nil {
		_ = m.cfg.Hub.Remove(ctx, sess.ID)
		return nil, err
	}
	return sess, nil
}

// Run hosts one session until the user quits.
func Run(cfg Config) error {
	if cfg.Hub == nil {
		return errors.New("tui: hub is required")
	}
	p := tea.NewProgram(NewModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
