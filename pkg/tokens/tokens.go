// Package tokens approximates token counts by counting whitespace-separated
// words. It does not match any model's tokenizer.
package tokens

import (
	"strings"

	"github.com/papercomputeco/mnemo/pkg/llm"
)

// Count returns the number of whitespace-separated words in text.
func Count(text string) int {
	return len(strings.Fields(text))
}

// EstimateConversation approximates the size of a conversation as the word
// count of its "role: content" lines.
func EstimateConversation(messages []llm.Message) int {
	total := 0
	for i := range messages {
		total += Count(messages[i].Role + ": " + messages[i].GetText())
	}
	return total
}
