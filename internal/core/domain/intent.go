package domain

import "strings"

// ReadyMarker prefixes an assistant message that carries a playlist prompt.
const ReadyMarker = "READY_TO_CREATE:"

// MaxConversationMessages bounds a stored conversation.
const MaxConversationMessages = 20

var createKeywords = []string{
	"si", "sí", "yes", "dale", "ok", "creala", "créala",
	"create", "hazla", "hacela", "go", "adelante",
}

// Turn is one message of a conversation.
type Turn struct {
	Role    string `json:"role" dynamodbav:"role"`
	Content string `json:"content" dynamodbav:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// IntentClassifier decides whether a chat message asks to create the playlist.
type IntentClassifier func(message string) bool

// KeywordIntent matches the whole message or any of its words against a fixed
// confirmation list. It is brittle by nature; swap in a model-backed classifier
// if that matters.
func KeywordIntent(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	words := strings.Fields(lower)
	for _, kw := range createKeywords {
		if lower == kw {
			return true
		}
		for _, w := range words {
			if w == kw {
				return true
			}
		}
	}
	return false
}

// CapTurns keeps the most recent MaxConversationMessages turns.
func CapTurns(turns []Turn) []Turn {
	if len(turns) <= MaxConversationMessages {
		return turns
	}
	return turns[len(turns)-MaxConversationMessages:]
}

// UserMessages returns the content of user turns, optionally only the last n (n <= 0 means all).
func UserMessages(turns []Turn, n int) []string {
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]string, 0, len(turns))
	for _, t := range turns {
		if t.Role == RoleUser {
			out = append(out, t.Content)
		}
	}
	return out
}
