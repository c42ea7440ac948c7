package llm

import "errors"

// Sentinel kinds for invocation errors.
var (
	ErrMissingAPIKey = errors.New("llm api key missing: set llm_api_key, OPENAI_API_KEY or OPENROUTER_API_KEY")
	ErrUpstream      = errors.New("llm upstream error")
	ErrNoChoices     = errors.New("llm returned no choices")
	ErrTooLarge      = errors.New("llm response too large")
)
