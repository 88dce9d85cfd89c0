// Package chat models conversation turns scoped to one or two reports.
package chat

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// MaxTextLength bounds a user message in runes.
const MaxTextLength = 8000

// Scope is the set of documents a conversation is about.
// Order is significant: the first document is labelled CONTEXT 1.
type Scope struct {
	ids []string
}

// NewScope validates one or two distinct document ids.
func NewScope(ids ...string) (Scope, error) {
	if len(ids) == 0 || len(ids) > 2 {
		return Scope{}, fmt.Errorf("scope must reference one or two documents, got %d", len(ids))
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return Scope{}, fmt.Errorf("document id is required")
		}
	}
	if len(ids) == 2 && ids[0] == ids[1] {
		return Scope{}, fmt.Errorf("comparison requires two different documents")
	}
	return Scope{ids: append([]string(nil), ids...)}, nil
}

// DocumentIDs returns a copy of the scoped ids in order.
func (s Scope) DocumentIDs() []string { return append([]string(nil), s.ids...) }

// Comparison reports whether the scope covers two documents.
func (s Scope) Comparison() bool { return len(s.ids) == 2 }

// Key is the stable storage key of the conversation.
func (s Scope) Key() string { return strings.Join(s.ids, ":") }

// TurnKey derives the idempotency key of the assistant reply to one user message.
func TurnKey(scope Scope, userMessageID string) string {
	sum := sha256.Sum256([]byte(scope.Key() + "\x00" + userMessageID))
	return hex.EncodeToString(sum[:])
}

// NewID returns a new time-sortable message id.
func NewID() string { return ulid.Make().String() }

// Message is one persisted chat message. History is append-only.
type Message struct {
	ID            string
	ScopeKey      string
	DocumentIDs   []string
	UserID        string
	IsUserMessage bool
	Text          string
	TurnKey       string // assistant messages only
	CreatedAt     time.Time
}

// NewUserMessage validates and creates a user message.
func NewUserMessage(userID string, scope Scope, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, fmt.Errorf("message is required")
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return Message{}, fmt.Errorf("message too long (max %d characters)", MaxTextLength)
	}
	return Message{
		ID:            NewID(),
		ScopeKey:      scope.Key(),
		DocumentIDs:   scope.DocumentIDs(),
		UserID:        userID,
		IsUserMessage: true,
		Text:          text,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// NewAssistantMessage creates the reply to userMessageID.
func NewAssistantMessage(userID string, scope Scope, userMessageID, text string) Message {
	return Message{
		ID:          NewID(),
		ScopeKey:    scope.Key(),
		DocumentIDs: scope.DocumentIDs(),
		UserID:      userID,
		Text:        text,
		TurnKey:     TurnKey(scope, userMessageID),
		CreatedAt:   time.Now().UTC(),
	}
}

// Page is one newest-first slice of history.
// NextCursor is the id of the oldest message in the page, empty when nothing older remains.
type Page struct {
	Messages   []Message
	NextCursor string
}
