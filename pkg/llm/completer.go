package llm

import (
	"context"
	"errors"
)

// Completer produces the assistant's reply to an ordered conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// ModelError wraps a failed completion. Callers turn it into visible text;
// it never affects stored memory.
type ModelError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ModelError) Error() string {
	return e.Provider + " " + e.Model + ": " + e.Err.Error()
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, messages []Message) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}
