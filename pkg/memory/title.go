package memory

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/papercomputeco/mnemo/pkg/utils"
)

// AutoTitle derives a session title from its first prompt.
func AutoTitle(firstPrompt string) string {
	return "Chat about " + strings.ReplaceAll(utils.Head(firstPrompt, 30), " ", "_")
}

// Preview derives a session preview from the latest stored turn.
func Preview(text string) string {
	return "Last: " + utils.Head(text, 50) + "..."
}

// ContentHash returns the hex blake3 digest of a turn's plaintext.
func ContentHash(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
