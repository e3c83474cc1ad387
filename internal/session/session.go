// Package session runs command turns: it guards the single in-flight turn,
// sends the command to the provider, interprets the reply against the world
// and tells the rendering layer what happened.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tatianab/prairie/internal/engine"
	"github.com/tatianab/prairie/internal/interpreter"
	"github.com/tatianab/prairie/internal/models"
	"github.com/tatianab/prairie/internal/store"
)

// State is the controller's position in the turn lifecycle.
type State int

const (
	Idle State = iota
	AwaitingResponse
	Concluded
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingResponse:
		return "awaiting-response"
	case Concluded:
		return "concluded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrEmptyCommand  = errors.New("empty command")
	ErrBusy          = errors.New("a command is already in flight")
	ErrConcluded     = errors.New("the story has concluded; reset to begin again")
	ErrNotConfigured = errors.New("API key not configured")
)

// EventConcluded is recorded in the world when a story reaches its end.
const EventConcluded = "journey-concluded"

// TurnView is what the rendering layer shows for one turn.
type TurnView struct {
	CommandEcho   string
	NarrativeText string
	IsConclusion  bool
}

// Renderer receives everything the player should see.
type Renderer interface {
	RenderTurn(TurnView)
	RenderMessage(msg string)
	RenderError(msg string)
	RequestConfiguration()
}

// Client is the conversation client the controller dispatches through.
type Client interface {
	Send(ctx context.Context, command string, snap models.Context) (string, error)
	Configured() bool
	Provider() engine.Provider
	SetCredential(p engine.Provider, apiKey string)
}

// TurnRecorder receives every completed turn. Failures are logged only.
type TurnRecorder interface {
	Record(models.Turn, bool) error
}

// Config wires a Controller. Journal and Logger are optional.
type Config struct {
	World       *models.WorldState
	Client      Client
	Interpreter *interpreter.Interpreter
	Renderer    Renderer
	Settings    models.Store
	Journal     TurnRecorder
	Logger      *slog.Logger
}

// Controller owns one play session.
type Controller struct {
	world    *models.WorldState
	client   Client
	interp   *interpreter.Interpreter
	renderer Renderer
	settings models.Store
	journal  TurnRecorder
	logger   *slog.Logger

	mu    sync.Mutex
	state State
}

// New builds a controller and loads any saved credential into the client.
func New(cfg Config) *Controller {
	c := &Controller{
		world:    cfg.World,
		client:   cfg.Client,
		interp:   cfg.Interpreter,
		renderer: cfg.Renderer,
		settings: cfg.Settings,
		journal:  cfg.Journal,
		logger:   cfg.Logger,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.interp == nil {
		c.interp = interpreter.New(c.logger)
	}
	c.loadCredential()
	return c
}

func (c *Controller) loadCredential() {
	if c.settings == nil {
		return
	}
	key, ok, err := c.settings.Get(store.KeyAPIKey)
	if err != nil {
		c.logger.Warn("failed to read saved API key", "err", err)
		return
	}
	if !ok || key == "" {
		return
	}
	provider := engine.ProviderOpenAI
	if raw, ok, _ := c.settings.Get(store.KeyAPIProvider); ok {
		if p, err := engine.ParseProvider(raw); err == nil {
			provider = p
		} else {
			c.logger.Warn("ignoring saved provider", "provider", raw)
		}
	}
	c.client.SetCredential(provider, key)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// World returns the session's world state.
func (c *Controller) World() *models.WorldState {
	return c.world
}

// Provider returns the provider turns are currently sent to.
func (c *Controller) Provider() engine.Provider {
	return c.client.Provider()
}

// Configure validates and saves a provider credential.
func (c *Controller) Configure(provider, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		c.renderer.RenderMessage(MsgInvalidKey)
		return ErrNotConfigured
	}
	p, err := engine.ParseProvider(provider)
	if err != nil {
		c.renderer.RenderError(err.Error())
		return err
	}
	if c.settings != nil {
		if err := c.settings.Set(store.KeyAPIKey, apiKey); err != nil {
			return fmt.Errorf("save API key: %w", err)
		}
		if err := c.settings.Set(store.KeyAPIProvider, string(p)); err != nil {
			return fmt.Errorf("save API provider: %w", err)
		}
	}
	c.client.SetCredential(p, apiKey)
	c.logger.Info("credential configured", "provider", p)
	c.renderer.RenderMessage(MsgKeySaved)
	return nil
}

// Start renders the opening of the session: the last stored narrative if
// there is one, otherwise the initial narrative, which is recorded as a turn
// with an empty command.
func (c *Controller) Start() {
	narrative := c.world.NarrativeLog()
	if len(narrative) == 0 {
		c.renderer.RenderTurn(TurnView{NarrativeText: InitialNarrative})
		c.world.AppendTurn("", InitialNarrative)
	} else {
		last := narrative[len(narrative)-1]
		concluded := c.world.HasEvent(EventConcluded) || interpreter.IsConclusion(last)
		c.mu.Lock()
		if concluded {
			c.state = Concluded
		}
		c.mu.Unlock()
		c.renderer.RenderTurn(TurnView{NarrativeText: last, IsConclusion: concluded})
	}

	if !c.client.Configured() {
		c.renderer.RequestConfiguration()
	}
}

// Submit runs one turn. It blocks until the provider answers or fails.
func (c *Controller) Submit(ctx context.Context, command string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return ErrEmptyCommand
	}

	c.mu.Lock()
	switch c.state {
	case AwaitingResponse:
		c.mu.Unlock()
		return ErrBusy
	case Concluded:
		c.mu.Unlock()
		return ErrConcluded
	}
	if !c.client.Configured() {
		c.mu.Unlock()
		c.renderer.RequestConfiguration()
		return ErrNotConfigured
	}
	c.state = AwaitingResponse
	c.mu.Unlock()

	text, err := c.client.Send(ctx, command, c.world.ContextSnapshot())
	if err != nil {
		c.setState(Idle)
		c.logger.Error("turn failed", "command", command, "err", err)
		var cfgErr *engine.ConfigError
		if errors.As(err, &cfgErr) {
			c.renderer.RequestConfiguration()
		} else {
			c.renderer.RenderError(err.Error())
		}
		return err
	}

	res := c.interp.Interpret(text, command, c.world)
	if res.Moved {
		if _, ok := c.world.CachedLocationDescription(); !ok {
			c.world.CacheLocationDescription(text)
		}
	}
	if res.Conclusion {
		c.world.RecordEvent(EventConcluded)
	}
	turn := c.world.AppendTurn(command, text)
	if c.journal != nil {
		if err := c.journal.Record(turn, res.Conclusion); err != nil {
			c.logger.Warn("failed to journal turn", "turn", turn.ID, "err", err)
		}
	}

	next := Idle
	if res.Conclusion {
		next = Concluded
	}
	c.setState(next)
	c.logger.Info("turn complete", "turn", turn.ID, "effects", len(res.Effects), "conclusion", res.Conclusion)

	c.renderer.RenderTurn(TurnView{
		CommandEcho:   command,
		NarrativeText: text,
		IsConclusion:  res.Conclusion,
	})
	return nil
}

// Reset wipes the world, keeps the credential and starts over.
func (c *Controller) Reset() error {
	c.mu.Lock()
	prev := c.state
	if prev == AwaitingResponse {
		c.mu.Unlock()
		return ErrBusy
	}
	// Hold off new turns while the world is wiped.
	c.state = AwaitingResponse
	c.mu.Unlock()

	if err := c.world.Reset(); err != nil {
		c.setState(prev)
		c.logger.Error("reset failed", "err", err)
		c.renderer.RenderError(err.Error())
		return err
	}
	c.setState(Idle)
	c.logger.Info("session reset")
	c.renderer.RenderMessage(TransitionMessage)
	c.Start()
	return nil
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
