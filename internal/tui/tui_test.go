package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatianab/prairie/internal/engine"
	"github.com/tatianab/prairie/internal/models"
	"github.com/tatianab/prairie/internal/session"
	"github.com/tatianab/prairie/internal/store"
)

func testModel(t *testing.T) model {
	t.Helper()
	kv := store.NewMemoryStore()
	ctrl := session.New(session.Config{
		World:    models.NewWorldState(kv),
		Client:   engine.NewEngine(engine.DefaultConfig()),
		Renderer: NewRenderer(),
		Settings: kv,
	})
	return newModel(ctrl)
}

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	nm, ok := next.(model)
	require.True(t, ok)
	return nm
}

func typeLine(t *testing.T, m model, line string) model {
	t.Helper()
	m.textInput.SetValue(line)
	return update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

func TestParseKeyInput(t *testing.T) {
	p, k := parseKeyInput("sk-123", "openai")
	assert.Equal(t, "openai", p)
	assert.Equal(t, "sk-123", k)

	p, k = parseKeyInput("anthropic  ak-9", "openai")
	assert.Equal(t, "anthropic", p)
	assert.Equal(t, "ak-9", k)

	_, k = parseKeyInput("", "openai")
	assert.Empty(t, k)
}

func TestRenderHistorySkipsOpening(t *testing.T) {
	got := renderHistory([]models.Turn{
		{Command: "", Response: "opening"},
		{Command: "go north"},
		{Command: "look"},
	})
	assert.Equal(t, "> go north\n> look\n", got)
}

func TestConclusionTurnLocksInput(t *testing.T) {
	m := testModel(t)
	m = update(t, m, turnMsg{CommandEcho: "wait", NarrativeText: "Stillness.\n\nTHE END\n\nThe wind waits.", IsConclusion: true})

	assert.Equal(t, stateConcluded, m.state)
	assert.Contains(t, m.gameLog, "THE END")
	assert.Contains(t, m.gameLog, "The wind waits.")
	assert.Equal(t, concludedPlaceholder, m.textInput.Placeholder)

	// Plain commands are ignored once concluded.
	m = typeLine(t, m, "go north")
	assert.Equal(t, stateConcluded, m.state)
	assert.NotContains(t, m.gameLog, "> go north")
}

func TestResetNeedsConfirmation(t *testing.T) {
	m := testModel(t)
	m = typeLine(t, m, "/reset")
	assert.Equal(t, stateConfirmReset, m.state)

	m = typeLine(t, m, "n")
	assert.Equal(t, statePlaying, m.state)
}

func TestConfigNeededSwitchesToKeyEntry(t *testing.T) {
	m := testModel(t)
	m = update(t, m, configNeededMsg{})
	assert.Equal(t, stateConfigure, m.state)

	m = typeLine(t, m, "anthropic ak-1")
	assert.Equal(t, statePlaying, m.state)
}

func TestKeyEntryKeepsConcludedStory(t *testing.T) {
	kv := store.NewMemoryStore()
	models.NewWorldState(kv).AppendTurn("wait", "The grass stills.\n\nTHE END")
	ctrl := session.New(session.Config{
		World:    models.NewWorldState(kv),
		Client:   engine.NewEngine(engine.DefaultConfig()),
		Renderer: NewRenderer(),
		Settings: kv,
	})
	ctrl.Start()
	require.Equal(t, session.Concluded, ctrl.State())

	m := newModel(ctrl)
	m = update(t, m, configNeededMsg{})
	m = typeLine(t, m, "sk-1")
	assert.Equal(t, stateConcluded, m.state)
	assert.Equal(t, concludedPlaceholder, m.textInput.Placeholder)
}

func TestSubmitShowsCommandAndWaits(t *testing.T) {
	m := testModel(t)
	m = typeLine(t, m, "look around")
	assert.Equal(t, stateWaiting, m.state)
	assert.True(t, strings.Contains(m.gameLog, "> look around"))

	// Input is ignored while waiting.
	m = typeLine(t, m, "go south")
	assert.NotContains(t, m.gameLog, "> go south")

	m = update(t, m, submitDoneMsg{err: session.ErrNotConfigured})
	assert.Equal(t, statePlaying, m.state)
}

func TestAltArrowWalks(t *testing.T) {
	m := testModel(t)
	m = update(t, m, tea.KeyMsg{Type: tea.KeyUp, Alt: true})
	assert.Equal(t, stateWaiting, m.state)
	assert.Contains(t, m.gameLog, "> go north")
}

func TestErrorMessageIsShown(t *testing.T) {
	m := testModel(t)
	m = update(t, m, errorMsg("OpenAI API error: quota exceeded"))
	assert.Contains(t, m.gameLog, "quota exceeded")
}

func TestGlimpse(t *testing.T) {
	assert.Equal(t, "A windmill creaks.", glimpse("A windmill creaks. Its blades are rust.\n\nMore."))
	assert.Empty(t, glimpse("   "))
	assert.Len(t, []rune(glimpse(strings.Repeat("grass ", 40))), 80)
}
