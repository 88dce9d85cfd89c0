package domain

import "context"

// Role is the author of a prompt message.
type Role string

// Prompt roles understood by chat models.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PromptMessage is one message of a chat prompt.
type PromptMessage struct {
	Role    Role
	Content string
}

// Completion is a finished, non-streamed model response.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Completer produces a full response in one call. Used at JSON boundaries.
type Completer interface {
	Complete(ctx context.Context, messages []PromptMessage) (Completion, error)
}

// Streamer opens an incremental response.
type Streamer interface {
	Stream(ctx context.Context, messages []PromptMessage) (TokenStream, error)
}

// TokenStream yields response chunks. Recv returns io.EOF once the model finishes.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}
