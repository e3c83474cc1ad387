package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatianab/prairie/internal/models"
)

func sampleContext() models.Context {
	ctx := models.Context{
		Position:  models.Position{X: 2, Y: -1},
		TurnCount: 7,
		Inventory: []models.Item{{ID: "i1", Name: "Lantern", Description: "a rusted brass lantern"}},
	}
	for _, c := range []string{"look", "go north", "take lantern", "listen", "go east", "wait"} {
		ctx.RecentTurns = append(ctx.RecentTurns, models.Exchange{Command: c, Response: "after " + c})
	}
	return ctx
}

func TestBuildPrompt(t *testing.T) {
	p, err := BuildPrompt("drop lantern", sampleContext())
	require.NoError(t, err)

	assert.Contains(t, p.System, "THE END")
	assert.Contains(t, p.User, "Current location: x=2, y=-1")
	assert.Contains(t, p.User, "Turn count: 7")
	assert.Contains(t, p.User, "- Lantern: a rusted brass lantern")
	assert.Contains(t, p.User, "Player command: drop lantern")

	// Only the last five exchanges are rendered.
	assert.NotContains(t, p.User, "User: look\n")
	assert.Contains(t, p.User, "User: go north\nNarrator: after go north")
	assert.Contains(t, p.User, "User: wait\nNarrator: after wait")
	assert.Equal(t, 5, strings.Count(p.User, "User: "))
}

func TestBuildPromptEmptyInventory(t *testing.T) {
	p, err := BuildPrompt("look", models.Context{})
	require.NoError(t, err)
	assert.Contains(t, p.User, "Inventory:\nNo items\n")
	assert.NotContains(t, p.User, "Narrator:")
}

func TestDispatchWithoutCredential(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.OpenAI.Endpoint = srv.URL
	e := NewEngine(cfg)

	_, err := e.Send(context.Background(), "look", models.Context{})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Zero(t, hits.Load())
	assert.False(t, e.Configured())
}

func TestDispatchOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Contains(t, req.Messages[1].Content, "Player command: look")
		assert.Equal(t, 500, req.MaxTokens)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  The grass hums.\n"}}]}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.OpenAI.Endpoint = srv.URL
	e := NewEngine(cfg)
	e.SetCredential(ProviderOpenAI, "sk-test")

	text, err := e.Send(context.Background(), "look", models.Context{})
	require.NoError(t, err)
	assert.Equal(t, "The grass hums.", text)
}

func TestDispatchAnthropic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ak-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.System)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		w.Write([]byte(`{"content":[{"type":"text","text":"A crow watches you.  "}]}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Anthropic.Endpoint = srv.URL
	e := NewEngine(cfg)
	e.SetCredential(ProviderAnthropic, "ak-test")

	text, err := e.Send(context.Background(), "look", models.Context{})
	require.NoError(t, err)
	assert.Equal(t, "A crow watches you.", text)
}

func TestDispatchErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		detail string
	}{
		{"vendor message", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided"}}`, "Incorrect API key provided"},
		{"bare status", http.StatusBadGateway, `upstream sad`, "status 502 Bad Gateway"},
		{"malformed success", http.StatusOK, `{"choices":`, "malformed response body"},
		{"missing completion", http.StatusOK, `{"choices":[]}`, "response has no completion text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			cfg := DefaultConfig()
			cfg.OpenAI.Endpoint = srv.URL
			e := NewEngine(cfg)
			e.SetCredential(ProviderOpenAI, "sk-test")

			_, err := e.Send(context.Background(), "look", models.Context{})
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, ProviderOpenAI, apiErr.Provider)
			assert.Equal(t, tt.detail, apiErr.StatusDetail)
			assert.Equal(t, int32(1), hits.Load(), "no retries")
		})
	}
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider(" Anthropic ")
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, p)

	_, err = ParseProvider("gemini")
	assert.Error(t, err)
}
