package llmclient

import "strings"

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in the prompt sent to a provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemMessage creates a system Message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage creates a user Message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage creates an assistant Message.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// Request is the input to Complete. The generation boundary is a single
// blocking completion: messages in, text out.
type Request struct {
	Model       string            `json:"model"`
	Messages    []Message         `json:"messages"`
	Provider    string            `json:"provider,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	TopP        *float64          `json:"top_p,omitempty"`
	MaxTokens   *int              `json:"max_tokens,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// SystemText returns the concatenation of all system messages.
func (r Request) SystemText() string {
	var sb strings.Builder
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(m.Content)
		}
	}
	return sb.String()
}

// UserText returns the concatenation of all non-system messages, with
// assistant turns marked so multi-turn context survives flattening.
func (r Request) UserText() string {
	var parts []string
	for _, m := range r.Messages {
		switch m.Role {
		case RoleUser:
			parts = append(parts, m.Content)
		case RoleAssistant:
			if m.Content != "" {
				parts = append(parts, "[Assistant]: "+m.Content)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// Usage tracks token consumption for a single completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns a new Usage that is the sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// Response is the output of Complete.
type Response struct {
	ID       string `json:"id"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Text     string `json:"text"`
	Usage    Usage  `json:"usage"`
}
