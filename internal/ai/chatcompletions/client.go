// Package chatcompletions talks to OpenAI-compatible chat completion endpoints.
package chatcompletions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spigell/resource-matcher/internal/ai"
	"github.com/spigell/resource-matcher/internal/utils"
)

const (
	DefaultURL     = "https://ai.hackclub.com/chat/completions"
	defaultTimeout = 25 * time.Second
	// maxErrorBody bounds how much of a failed reply ends up in an error message.
	maxErrorBody = 512
)

var ErrMissingContent = errors.New("chat completion reply has no message content")

// StatusError is returned for non-2xx replies.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("chat completion request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("chat completion request failed with status %d: %s", e.StatusCode, e.Body)
}

type Config struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client sends single-message chat completion requests. It never retries.
type Client struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
}

type message struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type request struct {
	Model       string    `json:"model,omitempty"`
	Messages    []message `json:"messages"`
	Temperature float32   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type response struct {
	Choices []struct {
		Message *message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func New(cfg Config) *Client {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		url = DefaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		url:        url,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      strings.TrimSpace(cfg.Model),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Model() string {
	if c.model == "" {
		return "default"
	}
	return c.model
}

// Generate posts the prompt as a single user message and returns the first choice's content.
func (c *Client) Generate(ctx context.Context, prompt string, opts ai.GenerationOptions) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	payload, err := json.Marshal(request{
		Model:       c.model,
		Messages:    []message{{Role: "user", Content: &prompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: utils.TruncateForLog(string(body), maxErrorBody)}
	}

	var decoded response
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", fmt.Errorf("chat completion error: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 || decoded.Choices[0].Message == nil || decoded.Choices[0].Message.Content == nil {
		return "", ErrMissingContent
	}

	return *decoded.Choices[0].Message.Content, nil
}
