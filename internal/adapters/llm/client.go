// Package llm invokes chat models through an OpenAI-compatible API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

const (
	openAIBase      = "https://api.openai.com/v1"
	openRouterBase  = "https://openrouter.ai/api/v1"
	defaultTimeout  = 90 * time.Second
	maxErrorBodyLen = 800
	// maxBodyBytes caps how much of an upstream reply is read.
	maxBodyBytes = 4 << 20
)

// Client calls /chat/completions.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	qualify    bool
	openRouter bool
	siteURL    string
	title      string
	http       *http.Client
	log        logger.Logger
}

// NewClient builds a client. Unset base URL and key fall back to the
// OPENAI_* and then OPENROUTER_* environment variables.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		timeout: defaultTimeout,
		http:    &http.Client{},
		log:     logger.Named("llm"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = firstEnv("OPENAI_API_KEY")
	}
	if c.apiKey == "" {
		if c.apiKey = firstEnv("OPENROUTER_API_KEY"); c.apiKey != "" {
			c.openRouter = true
		}
	}
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	if c.baseURL == "" {
		c.baseURL = firstEnv("OPENAI_API_BASE", "OPENAI_BASE_URL", "OPENROUTER_API_BASE", "OPENROUTER_BASE_URL")
	}
	if c.baseURL == "" {
		c.baseURL = openAIBase
		if c.openRouter {
			c.baseURL = openRouterBase
		}
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	if strings.Contains(c.baseURL, "openrouter.ai") {
		c.openRouter = true
	}
	if c.openRouter {
		c.siteURL = firstEnv("OPENROUTER_SITE_URL")
		c.title = firstEnv("OPENROUTER_TITLE")
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ModelName is the name sent upstream for m.
func (c *Client) ModelName(m model.Model) string {
	if c.qualify {
		return m.QualifiedName()
	}
	return m.ModelID
}

// Complete sends prompt as a single user message to m and returns the reply text.
func (c *Client) Complete(ctx context.Context, m model.Model, prompt string) (string, error) {
	start := time.Now()
	text, err := c.complete(ctx, m, prompt)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordInvocationLatency(m.Provider, status, float64(time.Since(start).Milliseconds()))
	return text, err
}

func (c *Client) complete(ctx context.Context, m model.Model, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:    c.ModelName(m),
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: %s: %w", c.ModelName(m), err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("llm: read body: %w", err)
	}
	tooLarge := len(raw) > maxBodyBytes
	if tooLarge {
		raw = raw[:maxBodyBytes]
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn(ctx, "model invocation rejected",
			logger.String("model", c.ModelName(m)),
			logger.Int("status", resp.StatusCode))
		return "", fmt.Errorf("%w: http %d: %s", ErrUpstream, resp.StatusCode, truncate(string(raw), maxErrorBodyLen))
	}

	if tooLarge {
		return "", fmt.Errorf("%w: over %d bytes", ErrTooLarge, maxBodyBytes)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", ErrNoChoices
	}
	return cr.Choices[0].Message.Content, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:runeStart(s, n)]
	}
	return s[:runeStart(s, n-3)] + "..."
}

// runeStart moves i back to the first byte of the rune it falls in.
func runeStart(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
