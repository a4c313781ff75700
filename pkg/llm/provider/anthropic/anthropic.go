// Package anthropic implements llm.Completer with the Anthropic Messages API.
package anthropic

import (
	"context"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/papercomputeco/mnemo/pkg/llm"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-sonnet-4-20250514"

	// DefaultMaxTokens bounds the length of a reply.
	DefaultMaxTokens = 1024

	name = "anthropic"
)

// Client sends message requests through the Anthropic SDK.
type Client struct {
	client    anthropicsdk.Client
	model     string
	maxTokens int64
}

var _ llm.Completer = (*Client)(nil)

// New creates a client. An empty baseURL uses the SDK default endpoint.
func New(apiKey, baseURL, model string, opts ...option.RequestOption) *Client {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)

	if model == "" {
		model = DefaultModel
	}

	return &Client{
		client:    anthropicsdk.NewClient(reqOpts...),
		model:     model,
		maxTokens: DefaultMaxTokens,
	}
}

// Complete sends the conversation and returns the concatenated text blocks
// of the reply. System messages are lifted into the system prompt.
func (c *Client) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.model),
		MaxTokens: c.maxTokens,
	}

	var system []string
	for i := range messages {
		text := messages[i].GetText()
		switch messages[i].Role {
		case llm.RoleSystem:
			system = append(system, text)
		case llm.RoleAssistant:
			params.Messages = append(params.Messages, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(text)))
		default:
			params.Messages = append(params.Messages, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(text)))
		}
	}
	if len(system) > 0 {
		params.System = []anthropicsdk.TextBlockParam{{Text: strings.Join(system, "\n")}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", &llm.ModelError{Provider: name, Model: c.model, Err: err}
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", &llm.ModelError{Provider: name, Model: c.model, Err: llm.ErrEmptyResponse}
	}
	return out.String(), nil
}
