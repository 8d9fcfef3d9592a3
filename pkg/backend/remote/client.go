// Package remote implements the remote inference backend: an
// OpenAI-compatible chat completions endpoint consumed as a server-sent
// events stream.
package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quillworks/quill/internal/logger"
	"github.com/quillworks/quill/pkg/transform"
)

// Config configures a Client.
type Config struct {
	BaseURL string // endpoint root, e.g. https://api.openai.com/v1
	APIKey  string
	Model   string
	Timeout time.Duration
	// HTTPClient overrides the default client, for tests.
	HTTPClient *http.Client
}

// Client streams chat completions from an OpenAI-compatible API.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewClient validates the endpoint policy (HTTPS, or HTTP for loopback only)
// and returns a client. The API key is checked at request time, not here.
func NewClient(cfg Config) (*Client, error) {
	if err := transform.ValidateBaseURL(cfg.BaseURL); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  client,
	}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Stream sends a system+user prompt pair and relays each incremental content
// delta to onDelta, returning the full concatenated text.
//
// The response is parsed line by line: only complete `data: ` lines are
// considered, a literal [DONE] payload ends the stream, and a malformed JSON
// payload is logged and skipped without aborting the stream.
func (c *Client) Stream(ctx context.Context, system, user string, onDelta func(delta string)) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream: true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", transform.WrapErr(transform.CodeConnectionFail, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", c.statusError(resp)
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	// Allow for large single-line payloads.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		if payload == "[DONE]" {
			break
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// Skip, never requeue: a broken line must not be retried forever.
			logger.Warn("skipping malformed stream line", "error", err)
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", transform.WrapErr(transform.CodeConnectionFail, "stream read failed", err)
	}

	return full.String(), nil
}

func (c *Client) statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var ae apiError
	if err := json.Unmarshal(data, &ae); err == nil && ae.Error.Message != "" {
		return transform.Ef(transform.CodeConnectionFail, "API error (status %d): %s", resp.StatusCode, ae.Error.Message)
	}
	return transform.Ef(transform.CodeConnectionFail, "API request failed with status %d", resp.StatusCode)
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }
