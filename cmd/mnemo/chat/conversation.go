package chatcmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/mnemo/pkg/codec"
	"github.com/papercomputeco/mnemo/pkg/llm"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/tokens"
	"github.com/papercomputeco/mnemo/pkg/utils"
)

const (
	defaultSystemPrompt = "You are a helpful AI assistant. Keep responses concise but informative."
	recallPrefix        = "recall "
)

// reply is the outcome of one conversation step.
type reply struct {
	Text string

	// Recalled is the number of memories folded into the system prompt.
	Recalled int

	// Reabsorbed is set when the oldest stored turn came back into context.
	Reabsorbed bool
}

// conversation is the in-memory message list of one chat, with the system
// prompt at index 0 collecting recalled and reabsorbed context.
type conversation struct {
	manager *memory.Manager
	model   llm.Completer
	logger  *slog.Logger

	messages    []llm.Message
	firstPrompt string
}

func newConversation(manager *memory.Manager, model llm.Completer, systemPrompt string, logger *slog.Logger) *conversation {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	return &conversation{
		manager:  manager,
		model:    model,
		logger:   logger,
		messages: []llm.Message{llm.NewTextMessage(llm.RoleSystem, systemPrompt)},
	}
}

func (c *conversation) system() *llm.Message {
	return &c.messages[0]
}

// step runs one user input through recall, reabsorption, the model and
// storage. Model failures become the reply text; storage failures are
// returned.
func (c *conversation) step(ctx context.Context, input string) (reply, error) {
	var out reply

	if strings.HasPrefix(strings.ToLower(input), recallPrefix) {
		query := strings.TrimSpace(input[len(recallPrefix):])
		relevant := c.manager.FindRelevant(ctx, query)
		if len(relevant) > 0 {
			c.system().AppendText("\nRelevant prior context: " + strings.Join(relevant, "\n"))
			out.Recalled = len(relevant)
		}
		input = fmt.Sprintf("Recall query was '%s', but continue conversation.", query)
	}

	if c.manager.ShouldReabsorb(tokens.EstimateConversation(c.messages)) {
		text, err := c.manager.ReabsorbOldest(ctx)
		var decodeErr *codec.DecodeError
		switch {
		case errors.As(err, &decodeErr):
			c.logger.Warn("skipping reabsorb of an undecodable turn", "error", err)
		case err != nil:
			return out, err
		}
		if text != "" {
			c.system().AppendText("\nReabsorbed prior context: " + text)
			out.Reabsorbed = true
		}
	}

	c.messages = append(c.messages, llm.NewTextMessage(llm.RoleUser, input))
	if c.firstPrompt == "" {
		c.firstPrompt = input
	}

	text, err := c.model.Complete(ctx, c.messages)
	if err != nil {
		c.logger.Warn("model call failed", "error", err)
		text = "Error: " + err.Error()
	}
	out.Text = text

	title := fmt.Sprintf("Turn %d: %s...", len(c.messages)/2, utils.Head(input, 20))
	if err := c.manager.StoreResponse(ctx, text, title, memory.WithFirstPrompt(c.firstPrompt)); err != nil {
		return out, err
	}

	c.messages = append(c.messages, llm.NewTextMessage(llm.RoleAssistant, text))
	return out, nil
}
