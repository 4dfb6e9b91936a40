// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
)

// DefaultBaseURL uses the IPv4 loopback to avoid IPv6 resolution surprises.
const DefaultBaseURL = "http://127.0.0.1:11434"

// DefaultModel is used when the configuration names none.
const DefaultModel = "llama3.2"

var (
	// ErrNotRunning means nothing answered at the base URL.
	ErrNotRunning = errors.New("ollama is not running")

	// ErrModelNotFound means the server does not have the requested model.
	ErrModelNotFound = errors.New("model not found")
)

// APIError is a non-OK reply from the server, or an error reported inside
// the stream.
type APIError struct {
	Status  int // 0 for in-band errors
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return "ollama: " + e.Message
	}
	return fmt.Sprintf("ollama: %s (HTTP %d)", e.Message, e.Status)
}

// Client talks to one Ollama server. It is safe for concurrent use.
// Requests carry no timeout of their own; callers bound them with ctx.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
}

// New creates a client. Empty arguments select DefaultBaseURL and DefaultModel.
func New(baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    &http.Client{},
	}
}

// BaseURL returns the server address requests go to.
func (c *Client) BaseURL() string { return c.baseURL }

// Model returns the model name sent with every chat request.
func (c *Client) Model() string { return c.model }

// Ping checks that the server answers at its root endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("ollama: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w at %s: %w", ErrNotRunning, c.baseURL, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Message: "unexpected status"}
	}
	return nil
}

// Chat posts messages to /api/chat and yields reply chunks as they arrive.
// The request is sent when iteration starts; stopping early closes the
// connection.
func (c *Client) Chat(ctx context.Context, messages []Message, opts Options) iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		body, err := c.openChat(ctx, messages, opts)
		if err != nil {
			yield(StreamChunk{}, err)
			return
		}
		defer body.Close()

		reader := NewStreamReader(body)
		for {
			chunk, err := reader.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = ctxErr
				}
				yield(StreamChunk{}, err)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

func (c *Client) openChat(ctx context.Context, messages []Message, opts Options) (io.ReadCloser, error) {
	payload, err := json.Marshal(ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
		Options:  opts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w at %s: %w", ErrNotRunning, c.baseURL, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		drainAndClose(resp.Body)
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, c.model)
	}

	defer drainAndClose(resp.Body)
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body errorBody
	if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	}
	return nil, apiErr
}

func drainAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, r)
	_ = r.Close()
}
