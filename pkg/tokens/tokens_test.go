package tokens_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/llm"
	"github.com/papercomputeco/mnemo/pkg/tokens"
)

var _ = Describe("Count", func() {
	DescribeTable("counts whitespace-separated words",
		func(text string, want int) {
			Expect(tokens.Count(text)).To(Equal(want))
		},
		Entry("empty", "", 0),
		Entry("only whitespace", " \t\n ", 0),
		Entry("single word", "hello", 1),
		Entry("mixed separators", "one  two\tthree\nfour", 4),
		Entry("punctuation stays attached", "hello, world!", 2),
	)
})

var _ = Describe("EstimateConversation", func() {
	It("counts the role prefix of every message", func() {
		messages := []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, "Be concise."),
			llm.NewTextMessage(llm.RoleUser, "What is a goroutine?"),
		}

		// "system: Be concise." + "user: What is a goroutine?"
		Expect(tokens.EstimateConversation(messages)).To(Equal(3 + 5))
	})

	It("returns zero for no messages", func() {
		Expect(tokens.EstimateConversation(nil)).To(BeZero())
	})
})
