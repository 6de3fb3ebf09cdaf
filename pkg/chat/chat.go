package chat

const (
	ChatRoleUser   = "user"
	ChatRoleAgent  = "assistant"
	ChatRoleSystem = "system"
)

// ChatMessage is a single message sent to a language model.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// UserPrompt wraps a rendered prompt as the only message of a request.
func UserPrompt(prompt string) []ChatMessage {
	return []ChatMessage{{Role: ChatRoleUser, Content: prompt}}
}
