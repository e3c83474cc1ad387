package engine

import "fmt"

// ConfigError means a turn could not be sent because the client is not
// configured. It is raised before any network attempt.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return e.Reason
}

// APIError is a failed provider call: a non-success status or a body the
// completion could not be read from.
type APIError struct {
	Provider     Provider
	StatusDetail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: %s", providerLabel(e.Provider), e.StatusDetail)
}

func providerLabel(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderAnthropic:
		return "Anthropic"
	default:
		return string(p)
	}
}
