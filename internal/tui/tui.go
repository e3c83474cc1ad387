package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tatianab/prairie/internal/models"
	"github.com/tatianab/prairie/internal/render"
	"github.com/tatianab/prairie/internal/session"
)

type sessionState int

const (
	stateConfigure sessionState = iota
	statePlaying
	stateWaiting
	stateConfirmReset
	stateConcluded
)

const (
	playPlaceholder      = "What will you do?"
	concludedPlaceholder = "Your journey has concluded..."
	keyPlaceholder       = "Paste an API key, or 'anthropic <key>'"
)

type model struct {
	state     sessionState
	ctrl      *session.Controller
	textInput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	gameLog   string
	width     int
	height    int
}

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true).
			PaddingLeft(1)

	gameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87AF87")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F"))

	theEndStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Align(lipgloss.Center)

	epilogueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#BBBBBB")).
			Italic(true)

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

func newModel(ctrl *session.Controller) model {
	ti := textinput.New()
	ti.Placeholder = playPlaceholder
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		state:     statePlaying,
		ctrl:      ctrl,
		textInput: ti,
		viewport:  viewport.New(80, 20),
		spinner:   sp,
	}
}

// Messages sent by Renderer.
type (
	turnMsg         session.TurnView
	systemMsg       string
	errorMsg        string
	configNeededMsg struct{}
	submitDoneMsg   struct{ err error }
)

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.start())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit

		case tea.KeyEsc:
			m.textInput.Reset()
			return m, nil

		case tea.KeyUp, tea.KeyDown, tea.KeyLeft, tea.KeyRight:
			if msg.Alt && m.state == statePlaying {
				return m.submit("go " + arrowDirections[msg.Type])
			}

		case tea.KeyEnter:
			return m.handleEnter()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = m.logWidth()
		m.viewport.Height = max(msg.Height-6, 1)
		m.refreshLog()

	case spinner.TickMsg:
		if m.state != stateWaiting {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case turnMsg:
		m.appendTurn(session.TurnView(msg))
		if msg.IsConclusion {
			m.conclude()
		}
		return m, nil

	case systemMsg:
		m.appendLog(systemStyle.Width(m.logWidth()).Render(string(msg)))
		return m, nil

	case errorMsg:
		m.appendLog(errorStyle.Width(m.logWidth()).Render(fmt.Sprintf("Error: %s. Please try again.", msg)))
		return m, nil

	case configNeededMsg:
		m.state = stateConfigure
		m.textInput.Placeholder = keyPlaceholder
		m.textInput.EchoMode = textinput.EchoPassword
		m.appendLog(systemStyle.Render("An API key is needed before the prairie will answer."))
		return m, nil

	case submitDoneMsg:
		switch m.ctrl.State() {
		case session.Concluded:
			m.conclude()
		default:
			if m.state == stateWaiting {
				m.state = statePlaying
			}
		}
		if errors.Is(msg.err, session.ErrBusy) {
			m.appendLog(systemStyle.Render("The prairie is still answering."))
		}
		return m, nil
	}

	if m.state == stateWaiting {
		return m, nil
	}
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

var arrowDirections = map[tea.KeyType]string{
	tea.KeyUp:    "north",
	tea.KeyDown:  "south",
	tea.KeyRight: "east",
	tea.KeyLeft:  "west",
}

func (m model) handleEnter() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textInput.Value())
	m.textInput.Reset()

	switch m.state {
	case stateConfigure:
		provider, key := parseKeyInput(input, m.ctrlProvider())
		m.textInput.EchoMode = textinput.EchoNormal
		m.restoreAfterConfirm()
		return m, m.configure(provider, key)

	case stateConfirmReset:
		if strings.EqualFold(input, "y") || strings.EqualFold(input, "yes") {
			m.state = statePlaying
			m.textInput.Placeholder = playPlaceholder
			m.gameLog = ""
			m.refreshLog()
			return m, m.reset()
		}
		m.restoreAfterConfirm()
		return m, nil

	case stateWaiting:
		return m, nil
	}

	switch {
	case input == "":
		return m, nil
	case input == "/quit":
		return m, tea.Quit
	case input == "/reset":
		m.state = stateConfirmReset
		m.textInput.Placeholder = "y/n"
		m.appendLog(systemStyle.Render("The prairie will fade away like morning mist, memories scattered to the wind. Begin anew? (y/n)"))
		return m, nil
	case strings.HasPrefix(input, "/key"):
		provider, key := parseKeyInput(strings.TrimSpace(strings.TrimPrefix(input, "/key")), m.ctrlProvider())
		return m, m.configure(provider, key)
	}

	if m.state == stateConcluded {
		return m, nil
	}
	return m.submit(input)
}

func (m *model) restoreAfterConfirm() {
	if m.ctrl.State() == session.Concluded {
		m.conclude()
		return
	}
	m.state = statePlaying
	m.textInput.Placeholder = playPlaceholder
}

func (m model) submit(command string) (tea.Model, tea.Cmd) {
	m.appendLog(userStyle.Width(m.logWidth()).Render("> " + command))
	m.state = stateWaiting
	ctrl := m.ctrl
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		return submitDoneMsg{err: ctrl.Submit(context.Background(), command)}
	})
}

func (m *model) conclude() {
	m.state = stateConcluded
	m.textInput.Placeholder = concludedPlaceholder
}

// parseKeyInput accepts "<key>" or "<provider> <key>".
func parseKeyInput(input, fallback string) (provider, key string) {
	fields := strings.Fields(input)
	switch len(fields) {
	case 0:
		return fallback, ""
	case 1:
		return fallback, fields[0]
	default:
		return fields[0], fields[1]
	}
}

func (m model) ctrlProvider() string {
	return string(m.ctrl.Provider())
}

func (m model) View() string {
	logView := m.viewport.View()
	stateView := m.renderState()

	mainView := lipgloss.JoinHorizontal(lipgloss.Top,
		logView,
		stateView,
	)

	prompt := m.textInput.View()
	if m.state == stateWaiting {
		prompt = m.spinner.View() + " The prairie considers your words..."
	}

	help := helpStyle.Render("Commands: /reset, /key [provider] <key>, /quit. Alt+arrows to walk.")

	return "\n" + lipgloss.JoinVertical(lipgloss.Left,
		mainView,
		"\n"+prompt,
		"\n"+help,
	) + "\n"
}

func (m model) renderState() string {
	world := m.ctrl.World()
	pos := world.Position()

	location := titleStyle.Render("LOCATION") + "\n" + fmt.Sprintf("x=%d, y=%d", pos.X, pos.Y) + "\n"
	if desc, ok := world.CachedLocationDescription(); ok {
		location += helpStyle.Render(glimpse(desc)) + "\n"
	}
	location += "\n"
	turns := titleStyle.Render("TURNS") + "\n" + fmt.Sprintf("%d", world.TurnCount()) + "\n\n"

	invTitle := titleStyle.Render("INVENTORY") + "\n"
	inventory := ""
	items := world.Inventory()
	if len(items) == 0 {
		inventory = "(empty)\n"
	} else {
		for _, item := range items {
			inventory += "- " + item.Name + "\n"
		}
	}

	histTitle := "\n" + titleStyle.Render("HISTORY") + "\n"
	history := renderHistory(world.DisplayedTurns())

	content := location + turns + invTitle + inventory + histTitle + history

	stateWidth := int(float64(m.width) * 0.23)
	return stateStyle.Width(stateWidth).Height(m.viewport.Height).Render(content)
}

// glimpse shortens a cached location description to its first sentence.
func glimpse(desc string) string {
	first := render.Paragraphs(desc)
	if len(first) == 0 {
		return ""
	}
	s := first[0]
	if i := strings.Index(s, ". "); i >= 0 {
		s = s[:i+1]
	}
	if r := []rune(s); len(r) > 80 {
		s = string(r[:77]) + "..."
	}
	return s
}

// renderHistory lists commands from the displayed window, skipping the
// opening narrative.
func renderHistory(turns []models.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		if t.Command == "" {
			continue
		}
		b.WriteString("> " + t.Command + "\n")
	}
	return b.String()
}

func (m *model) appendTurn(v session.TurnView) {
	width := m.logWidth()
	var b strings.Builder

	paragraphs := func(ps []string, style lipgloss.Style) {
		for _, p := range ps {
			b.WriteString(style.Width(width).Render(p))
			b.WriteString("\n\n")
		}
	}

	if !v.IsConclusion {
		paragraphs(render.Paragraphs(v.NarrativeText), gameStyle)
	} else {
		c := render.SplitConclusion(v.NarrativeText)
		paragraphs(c.Main, gameStyle)
		if c.HasMarker {
			b.WriteString(theEndStyle.Width(width).Render("THE END"))
			b.WriteString("\n\n")
			paragraphs(c.Epilogue, epilogueStyle)
		}
		b.WriteString(helpStyle.Width(width).Render(render.RestartPrompt))
	}
	m.appendLog(strings.TrimRight(b.String(), "\n"))
}

func (m *model) appendLog(block string) {
	if m.gameLog != "" {
		m.gameLog += "\n\n"
	}
	m.gameLog += block
	m.refreshLog()
	m.viewport.GotoBottom()
}

func (m *model) refreshLog() {
	m.viewport.SetContent(m.gameLog)
}

func (m model) logWidth() int {
	if m.width == 0 {
		return 80
	}
	return int(float64(m.width) * 0.75)
}

func (m model) start() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctrl.Start()
		return nil
	}
}

func (m model) configure(provider, key string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		// Failures are reported through the renderer.
		_ = ctrl.Configure(provider, key)
		return nil
	}
}

func (m model) reset() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		if err := ctrl.Reset(); err != nil {
			return errorMsg(err.Error())
		}
		return nil
	}
}
