package llm

import (
	"net/http"
	"time"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBaseURL overrides the API base, e.g. https://openrouter.ai/api/v1.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = base
		}
	}
}

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if key != "" {
			c.apiKey = key
		}
	}
}

// WithTimeout bounds one invocation.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithQualifiedNames sends provider/modelId as the model name.
func WithQualifiedNames(enabled bool) Option {
	return func(c *Client) {
		c.qualify = enabled
	}
}

// WithHTTPClient replaces the transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}
