package engine

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/tatianab/prairie/internal/models"
)

//go:embed prompts/system.txt
var systemPrompt string

//go:embed prompts/user_turn.txt
var userTurnPrompt string

var userTurnTmpl = template.Must(template.New("user_turn").Parse(userTurnPrompt))

// promptHistoryTurns is how many recent exchanges are rendered into the user block.
const promptHistoryTurns = 5

// Provider selects which vendor API a turn is sent to.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// ParseProvider validates a provider name.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderOpenAI, ProviderAnthropic:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported provider %q", s)
	}
}

// ProviderSettings are the request parameters for one vendor.
type ProviderSettings struct {
	Endpoint    string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Config configures an Engine.
type Config struct {
	OpenAI     ProviderSettings
	Anthropic  ProviderSettings
	HTTPClient *http.Client
}

// DefaultConfig returns the stock endpoints and models.
func DefaultConfig() Config {
	return Config{
		OpenAI: ProviderSettings{
			Endpoint:    "https://api.openai.com/v1/chat/completions",
			Model:       "gpt-4-turbo-preview",
			MaxTokens:   500,
			Temperature: 0.8,
		},
		Anthropic: ProviderSettings{
			Endpoint:    "https://api.anthropic.com/v1/messages",
			Model:       "claude-3-opus-20240229",
			MaxTokens:   500,
			Temperature: 0.8,
		},
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// RenderedPrompt is the provider-neutral content of one request.
type RenderedPrompt struct {
	System string
	User   string
}

// Engine turns commands into vendor requests and replies into narrative text.
type Engine struct {
	cfg Config

	mu       sync.RWMutex
	provider Provider
	apiKey   string
}

func NewEngine(cfg Config) *Engine {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Engine{cfg: cfg, provider: ProviderOpenAI}
}

// SetCredential selects the provider and key used for later dispatches.
func (e *Engine) SetCredential(p Provider, apiKey string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.provider = p
	e.apiKey = strings.TrimSpace(apiKey)
}

// Provider returns the selected provider.
func (e *Engine) Provider() Provider {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.provider
}

// Configured reports whether a credential is set.
func (e *Engine) Configured() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.apiKey != ""
}

// BuildPrompt renders the system instruction and the user block for command.
func BuildPrompt(command string, ctx models.Context) (RenderedPrompt, error) {
	recent := ctx.RecentTurns
	if len(recent) > promptHistoryTurns {
		recent = recent[len(recent)-promptHistoryTurns:]
	}

	data := struct {
		Position  models.Position
		TurnCount int
		Inventory []models.Item
		Recent    []models.Exchange
		Command   string
	}{
		Position:  ctx.Position,
		TurnCount: ctx.TurnCount,
		Inventory: ctx.Inventory,
		Recent:    recent,
		Command:   command,
	}

	var buf bytes.Buffer
	if err := userTurnTmpl.Execute(&buf, data); err != nil {
		return RenderedPrompt{}, fmt.Errorf("render user prompt: %w", err)
	}
	return RenderedPrompt{System: strings.TrimSpace(systemPrompt), User: buf.String()}, nil
}

// Send builds the prompt for command and dispatches it.
func (e *Engine) Send(ctx context.Context, command string, snap models.Context) (string, error) {
	prompt, err := BuildPrompt(command, snap)
	if err != nil {
		return "", err
	}
	return e.Dispatch(ctx, prompt)
}

// Dispatch performs one request against the selected provider. There are no
// retries.
func (e *Engine) Dispatch(ctx context.Context, prompt RenderedPrompt) (string, error) {
	e.mu.RLock()
	provider, apiKey := e.provider, e.apiKey
	e.mu.RUnlock()

	if apiKey == "" {
		return "", &ConfigError{Reason: "API key not configured"}
	}

	switch provider {
	case ProviderOpenAI:
		return e.sendOpenAI(ctx, apiKey, prompt)
	case ProviderAnthropic:
		return e.sendAnthropic(ctx, apiKey, prompt)
	default:
		return "", &ConfigError{Reason: fmt.Sprintf("unsupported provider %q", provider)}
	}
}
