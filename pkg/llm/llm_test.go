package llm_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/llm"
)

var _ = Describe("Message", func() {
	It("concatenates text blocks", func() {
		msg := llm.Message{
			Role: llm.RoleUser,
			Content: []llm.ContentBlock{
				{Type: "text", Text: "hello "},
				{Type: "image"},
				{Type: "text", Text: "world"},
			},
		}
		Expect(msg.GetText()).To(Equal("hello world"))
	})

	It("appends to the first text block", func() {
		msg := llm.NewTextMessage(llm.RoleSystem, "Be helpful.")
		msg.AppendText("\nReabsorbed prior context: A")
		Expect(msg.Content).To(HaveLen(1))
		Expect(msg.GetText()).To(Equal("Be helpful.\nReabsorbed prior context: A"))
	})

	It("creates a text block when none exists", func() {
		msg := llm.Message{Role: llm.RoleSystem}
		msg.AppendText("context")
		Expect(msg.GetText()).To(Equal("context"))
	})
})

var _ = Describe("ModelError", func() {
	It("names the provider and unwraps the cause", func() {
		cause := errors.New("connection refused")
		err := &llm.ModelError{Provider: "ollama", Model: "llama3.2", Err: cause}
		Expect(err.Error()).To(Equal("ollama llama3.2: connection refused"))
		Expect(errors.Is(err, cause)).To(BeTrue())
	})
})

var _ = Describe("CompleterFunc", func() {
	It("adapts a function", func() {
		var c llm.Completer = llm.CompleterFunc(func(_ context.Context, msgs []llm.Message) (string, error) {
			return msgs[len(msgs)-1].GetText(), nil
		})
		out, err := c.Complete(context.Background(), []llm.Message{llm.NewTextMessage(llm.RoleUser, "echo")})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("echo"))
	})
})
