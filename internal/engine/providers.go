package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

const anthropicVersion = "2023-06-01"

// Completion paths in each vendor's response body.
const (
	openAICompletionPath    = "choices.0.message.content"
	anthropicCompletionPath = "content.0.text"
)

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

func (e *Engine) sendOpenAI(ctx context.Context, apiKey string, prompt RenderedPrompt) (string, error) {
	s := e.cfg.OpenAI
	body := openAIRequest{
		Model: s.Model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
	}
	headers := map[string]string{
		"Authorization": "Bearer " + apiKey,
	}
	return e.post(ctx, ProviderOpenAI, s.Endpoint, headers, body, openAICompletionPath)
}

func (e *Engine) sendAnthropic(ctx context.Context, apiKey string, prompt RenderedPrompt) (string, error) {
	s := e.cfg.Anthropic
	body := anthropicRequest{
		Model:  s.Model,
		System: prompt.System,
		Messages: []chatMessage{
			{Role: "user", Content: prompt.User},
		},
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
	}
	headers := map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": anthropicVersion,
	}
	return e.post(ctx, ProviderAnthropic, s.Endpoint, headers, body, anthropicCompletionPath)
}

func (e *Engine) post(ctx context.Context, p Provider, endpoint string, headers map[string]string, payload any, path string) (string, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s request: %w", p, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("build %s request: %w", p, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := e.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", &APIError{Provider: p, StatusDetail: err.Error()}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return "", &APIError{Provider: p, StatusDetail: fmt.Sprintf("read response: %v", err)}
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", &APIError{Provider: p, StatusDetail: errorDetail(res.StatusCode, data)}
	}

	if !gjson.ValidBytes(data) {
		return "", &APIError{Provider: p, StatusDetail: "malformed response body"}
	}
	completion := gjson.GetBytes(data, path)
	if completion.Type != gjson.String {
		return "", &APIError{Provider: p, StatusDetail: "response has no completion text"}
	}
	return strings.TrimSpace(completion.Str), nil
}

// errorDetail prefers the vendor's error.message and falls back to the status.
func errorDetail(status int, body []byte) string {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "error.message").String(); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("status %d %s", status, http.StatusText(status))
}
