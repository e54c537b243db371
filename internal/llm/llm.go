// Package llm defines the text generation client used for replies, quotes,
// posts and image descriptions.
package llm

import "context"

type MessageRole string

const (
	RoleSystem MessageRole = "system"
	RoleUser   MessageRole = "user"
)

type MessagePartType string

const (
	MessagePartText     MessagePartType = "text"
	MessagePartImageURL MessagePartType = "image_url"
)

// MessagePart is one element of a multimodal user message.
type MessagePart struct {
	Type     MessagePartType
	Text     string
	ImageURL string
}

// Message carries either Content or Parts. Parts wins when both are set.
type Message struct {
	Role    MessageRole
	Content string
	Parts   []MessagePart
}

type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   int
}

type ChatResponse struct {
	Content string
}

type Client interface {
	ChatCompletion(ctx context.Context, request ChatRequest) (ChatResponse, error)
}
