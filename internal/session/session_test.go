package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatianab/prairie/internal/engine"
	"github.com/tatianab/prairie/internal/models"
	"github.com/tatianab/prairie/internal/store"
)

type fakeClient struct {
	mu       sync.Mutex
	provider engine.Provider
	key      string
	replies  []string
	err      error
	block    chan struct{}
	started  chan struct{}
	commands []string
}

func (f *fakeClient) Send(ctx context.Context, command string, snap models.Context) (string, error) {
	f.mu.Lock()
	f.commands = append(f.commands, command)
	block, started := f.block, f.started
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func (f *fakeClient) Configured() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.key != ""
}

func (f *fakeClient) Provider() engine.Provider {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.provider
}

func (f *fakeClient) SetCredential(p engine.Provider, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.provider, f.key = p, key
}

type recorder struct {
	mu           sync.Mutex
	turns        []TurnView
	messages     []string
	errors       []string
	configNeeded int
}

func (r *recorder) RenderTurn(v TurnView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, v)
}

func (r *recorder) RenderMessage(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recorder) RenderError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func (r *recorder) RequestConfiguration() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configNeeded++
}

type journalSpy struct {
	turns []models.Turn
}

func (j *journalSpy) Record(t models.Turn, _ bool) error {
	j.turns = append(j.turns, t)
	return nil
}

func newController(t *testing.T, client *fakeClient) (*Controller, *recorder, *store.MemoryStore) {
	t.Helper()
	kv := store.NewMemoryStore()
	r := &recorder{}
	c := New(Config{
		World:    models.NewWorldState(kv),
		Client:   client,
		Renderer: r,
		Settings: kv,
	})
	return c, r, kv
}

func TestStartRecordsOpening(t *testing.T) {
	c, r, _ := newController(t, &fakeClient{key: "k"})
	c.Start()

	require.Len(t, r.turns, 1)
	assert.Equal(t, InitialNarrative, r.turns[0].NarrativeText)
	assert.Empty(t, r.turns[0].CommandEcho)
	assert.Equal(t, 1, c.World().TurnCount())
	assert.Zero(t, r.configNeeded)
}

func TestStartWithoutCredentialRequestsConfiguration(t *testing.T) {
	c, r, _ := newController(t, &fakeClient{})
	c.Start()
	assert.Equal(t, 1, r.configNeeded)
}

func TestSubmitWithoutCredential(t *testing.T) {
	client := &fakeClient{}
	c, r, _ := newController(t, client)

	err := c.Submit(context.Background(), "look")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, 1, r.configNeeded)
	assert.Empty(t, client.commands)
	assert.Equal(t, Idle, c.State())
}

func TestSubmitSuccess(t *testing.T) {
	client := &fakeClient{key: "k", replies: []string{"You pick up the lantern. It is a rusted brass lantern that hums faintly."}}
	c, r, _ := newController(t, client)
	spy := &journalSpy{}
	c.journal = spy

	require.NoError(t, c.Submit(context.Background(), "  take the lantern "))

	require.Len(t, r.turns, 1)
	assert.Equal(t, "take the lantern", r.turns[0].CommandEcho)
	assert.False(t, r.turns[0].IsConclusion)

	inv := c.World().Inventory()
	require.Len(t, inv, 1)
	assert.Equal(t, "Lantern", inv[0].Name)

	turns := c.World().Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, "take the lantern", turns[0].Command)
	assert.Len(t, spy.turns, 1)
	assert.Equal(t, Idle, c.State())
}

func TestSubmitFailureLeavesWorldUntouched(t *testing.T) {
	client := &fakeClient{key: "k", err: &engine.APIError{Provider: engine.ProviderOpenAI, StatusDetail: "rate limited"}}
	c, r, _ := newController(t, client)

	err := c.Submit(context.Background(), "go north")
	var apiErr *engine.APIError
	require.ErrorAs(t, err, &apiErr)

	assert.Equal(t, []string{"OpenAI API error: rate limited"}, r.errors)
	assert.Zero(t, c.World().TurnCount())
	assert.Equal(t, models.Position{}, c.World().Position())
	assert.Equal(t, Idle, c.State())
}

func TestSubmitConfigErrorPromptsForKey(t *testing.T) {
	client := &fakeClient{key: "k", err: &engine.ConfigError{Reason: "API key not configured"}}
	c, r, _ := newController(t, client)

	err := c.Submit(context.Background(), "look")
	assert.Error(t, err)
	assert.Equal(t, 1, r.configNeeded)
	assert.Empty(t, r.errors)
}

func TestSingleInFlightTurn(t *testing.T) {
	client := &fakeClient{
		key:     "k",
		replies: []string{"You walk north."},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	c, _, _ := newController(t, client)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), "go north") }()

	select {
	case <-client.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first submit never dispatched")
	}
	assert.Equal(t, AwaitingResponse, c.State())
	assert.ErrorIs(t, c.Submit(context.Background(), "go south"), ErrBusy)
	assert.ErrorIs(t, c.Reset(), ErrBusy)

	close(client.block)
	require.NoError(t, <-done)
	assert.Equal(t, models.Position{Y: 1}, c.World().Position())
	assert.Equal(t, []string{"go north"}, client.commands)
}

func TestConclusionIsTerminalUntilReset(t *testing.T) {
	client := &fakeClient{key: "k", replies: []string{
		"The grass folds over your footsteps.\n\nTHE END",
		"You walk north.",
	}}
	c, r, _ := newController(t, client)
	c.Start()

	require.NoError(t, c.Submit(context.Background(), "wait"))
	assert.True(t, r.turns[len(r.turns)-1].IsConclusion)
	assert.Equal(t, Concluded, c.State())
	assert.ErrorIs(t, c.Submit(context.Background(), "go north"), ErrConcluded)

	require.NoError(t, c.Reset())
	assert.Equal(t, Idle, c.State())
	assert.Contains(t, r.messages, TransitionMessage)
	assert.Equal(t, 1, c.World().TurnCount(), "opening narrative recorded again")

	assert.True(t, client.Configured(), "credential survives reset")
	require.NoError(t, c.Submit(context.Background(), "go north"))
	assert.Equal(t, models.Position{Y: 1}, c.World().Position())
}

func TestMoveCachesFirstDescription(t *testing.T) {
	client := &fakeClient{key: "k", replies: []string{
		"You walk north to a leaning windmill.",
		"The windmill creaks at you.",
	}}
	c, _, _ := newController(t, client)

	require.NoError(t, c.Submit(context.Background(), "go north"))
	require.NoError(t, c.Submit(context.Background(), "listen"))

	desc, ok := c.World().CachedLocationDescription()
	require.True(t, ok)
	assert.Equal(t, "You walk north to a leaning windmill.", desc)
}

func TestConclusionRecordsEvent(t *testing.T) {
	kv := store.NewMemoryStore()
	client := &fakeClient{key: "k", replies: []string{"Stillness.\n\nTHE END"}}
	c := New(Config{World: models.NewWorldState(kv), Client: client, Renderer: &recorder{}})
	require.NoError(t, c.Submit(context.Background(), "wait"))
	assert.True(t, c.World().HasEvent(EventConcluded))

	// The event alone restores the concluded state.
	world := models.NewWorldState(kv)
	world.AppendTurn("look", "The grass is quiet.")
	restarted := New(Config{World: models.NewWorldState(kv), Client: client, Renderer: &recorder{}})
	restarted.Start()
	assert.Equal(t, Concluded, restarted.State())
}

type brokenRemoveStore struct {
	*store.MemoryStore
}

func (brokenRemoveStore) Remove(string) error { return errors.New("disk is read-only") }

func TestResetFailureKeepsConcludedWorld(t *testing.T) {
	kv := brokenRemoveStore{store.NewMemoryStore()}
	client := &fakeClient{key: "k", replies: []string{"You drift east.\n\nTHE END"}}
	r := &recorder{}
	c := New(Config{World: models.NewWorldState(kv), Client: client, Renderer: r, Settings: kv})

	require.NoError(t, c.Submit(context.Background(), "go east"))
	require.Equal(t, Concluded, c.State())

	err := c.Reset()
	require.Error(t, err)
	assert.Equal(t, Concluded, c.State())
	require.Len(t, r.errors, 1)
	assert.Contains(t, r.errors[0], "disk is read-only")
	assert.NotContains(t, r.messages, TransitionMessage)
	assert.Equal(t, models.Position{X: 1}, c.World().Position())
	assert.Equal(t, 1, c.World().TurnCount())
}

func TestStartRestoresConcludedState(t *testing.T) {
	kv := store.NewMemoryStore()
	world := models.NewWorldState(kv)
	world.AppendTurn("wait", "Your journey has ended.")

	c := New(Config{World: models.NewWorldState(kv), Client: &fakeClient{key: "k"}, Renderer: &recorder{}})
	c.Start()
	assert.Equal(t, Concluded, c.State())
}

func TestConfigurePersistsCredential(t *testing.T) {
	client := &fakeClient{}
	c, r, kv := newController(t, client)

	assert.ErrorIs(t, c.Configure("openai", "   "), ErrNotConfigured)
	assert.Contains(t, r.messages, MsgInvalidKey)

	require.NoError(t, c.Configure("anthropic", "ak-1"))
	assert.True(t, client.Configured())
	assert.Equal(t, engine.ProviderAnthropic, client.provider)

	v, ok, err := kv.Get(store.KeyAPIProvider)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "anthropic", v)

	// A fresh controller over the same store picks the credential back up.
	fresh := &fakeClient{}
	New(Config{World: models.NewWorldState(kv), Client: fresh, Renderer: &recorder{}, Settings: kv})
	assert.True(t, fresh.Configured())
	assert.Equal(t, engine.ProviderAnthropic, fresh.provider)
}

func TestConfigureRejectsUnknownProvider(t *testing.T) {
	c, r, _ := newController(t, &fakeClient{})
	err := c.Configure("gemini", "key")
	assert.Error(t, err)
	assert.Len(t, r.errors, 1)
	assert.False(t, errors.Is(err, ErrNotConfigured))
}

func TestEmptyCommandIsNoop(t *testing.T) {
	client := &fakeClient{key: "k"}
	c, _, _ := newController(t, client)
	assert.ErrorIs(t, c.Submit(context.Background(), "   "), ErrEmptyCommand)
	assert.Empty(t, client.commands)
}
