// Package llm defines the conversation types exchanged with the external
// language model and the Completer collaborator interface.
package llm

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation.
// Content is stored as an array of ContentBlocks so providers that accept
// multi-part messages can be fed without re-splitting text.
type Message struct {
	Role    string         `json:"role"`    // "system", "user", "assistant"
	Content []ContentBlock `json:"content"` // Array of content blocks
}

// ContentBlock represents a single piece of content within a message.
type ContentBlock struct {
	Type string `json:"type"` // "text"
	Text string `json:"text,omitempty"`
}

// NewTextMessage creates a simple text message with the given role and content.
func NewTextMessage(role, text string) Message {
	return Message{
		Role: role,
		Content: []ContentBlock{
			{Type: "text", Text: text},
		},
	}
}

// GetText returns the concatenated text content from all text blocks in the message.
func (m *Message) GetText() string {
	var result string
	for _, block := range m.Content {
		if block.Type == "text" {
			result += block.Text
		}
	}
	return result
}

// AppendText adds text to the message's first text block, creating one if
// the message has none.
func (m *Message) AppendText(text string) {
	for i := range m.Content {
		if m.Content[i].Type == "text" {
			m.Content[i].Text += text
			return
		}
	}
	m.Content = append(m.Content, ContentBlock{Type: "text", Text: text})
}
