// Package openai implements llm.Completer with the OpenAI chat completions
// API. Any OpenAI-compatible server can be targeted through the base URL.
package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/papercomputeco/mnemo/pkg/llm"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"

	name = "openai"
)

// Client sends chat completion requests through the OpenAI SDK.
type Client struct {
	client openaisdk.Client
	model  string
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
		client: openaisdk.NewClient(reqOpts...),
		model:  model,
	}
}

// Complete sends the conversation and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.model),
		Messages: buildMessages(messages),
	})
	if err != nil {
		return "", &llm.ModelError{Provider: name, Model: c.model, Err: err}
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &llm.ModelError{Provider: name, Model: c.model, Err: llm.ErrEmptyResponse}
	}
	return resp.Choices[0].Message.Content, nil
}

func buildMessages(messages []llm.Message) []openaisdk.ChatCompletionMessageParamUnion {
	params := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for i := range messages {
		text := messages[i].GetText()
		switch messages[i].Role {
		case llm.RoleSystem:
			params = append(params, openaisdk.SystemMessage(text))
		case llm.RoleAssistant:
			params = append(params, openaisdk.AssistantMessage(text))
		default:
			params = append(params, openaisdk.UserMessage(text))
		}
	}
	return params
}
