// Package ollama implements llm.Completer against Ollama's /api/chat endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/mnemo/pkg/llm"
)

const (
	// DefaultTarget is the local Ollama server.
	DefaultTarget = "http://localhost:11434"

	// DefaultModel is used when no model is configured.
	DefaultModel = "llama3.2"

	name = "ollama"
)

// Client sends non-streaming chat requests to an Ollama server.
type Client struct {
	target     string
	model      string
	httpClient *http.Client
}

var _ llm.Completer = (*Client)(nil)

// New creates a client for the Ollama server at target.
func New(target, model string) *Client {
	if target == "" {
		target = DefaultTarget
	}
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		target: strings.TrimRight(target, "/"),
		model:  model,
		httpClient: &http.Client{
			// LLM responses can be slow
			Timeout: 5 * time.Minute,
		},
	}
}

// Complete posts the conversation and returns the assistant's reply.
func (c *Client) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	text, err := c.complete(ctx, messages)
	if err != nil {
		return "", &llm.ModelError{Provider: name, Model: c.model, Err: err}
	}
	return text, nil
}

func (c *Client) complete(ctx context.Context, messages []llm.Message) (string, error) {
	req := chatRequest{
		Model:    c.model,
		Messages: make([]chatMessage, 0, len(messages)),
	}
	for i := range messages {
		req.Messages = append(req.Messages, chatMessage{
			Role:    messages[i].Role,
			Content: messages[i].GetText(),
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if chat.Message.Content == "" {
		return "", llm.ErrEmptyResponse
	}

	return chat.Message.Content, nil
}
