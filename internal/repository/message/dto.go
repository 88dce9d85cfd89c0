package message

import (
	"strings"
	"time"

	"github.com/kailas-cloud/reportlens/internal/domain/chat"
)

// row is the relational shape of a chat message.
// TurnKey is NULL for user messages so the unique index only constrains assistant replies.
type row struct {
	ID            string    `gorm:"primaryKey;size:26"`
	UserID        string    `gorm:"size:128;not null;index:idx_messages_scope,priority:1"`
	ScopeKey      string    `gorm:"size:80;not null;index:idx_messages_scope,priority:2"`
	DocumentIDs   string    `gorm:"size:80;not null"`
	IsUserMessage bool      `gorm:"not null"`
	Text          string    `gorm:"type:text;not null"`
	TurnKey       *string   `gorm:"size:64;uniqueIndex"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (row) TableName() string { return "messages" }

func toRow(m *chat.Message) row {
	r := row{
		ID:            m.ID,
		UserID:        m.UserID,
		ScopeKey:      m.ScopeKey,
		DocumentIDs:   strings.Join(m.DocumentIDs, ","),
		IsUserMessage: m.IsUserMessage,
		Text:          m.Text,
		CreatedAt:     m.CreatedAt,
	}
	if m.TurnKey != "" {
		tk := m.TurnKey
		r.TurnKey = &tk
	}
	return r
}

func (r *row) toDomain() chat.Message {
	m := chat.Message{
		ID:            r.ID,
		ScopeKey:      r.ScopeKey,
		UserID:        r.UserID,
		IsUserMessage: r.IsUserMessage,
		Text:          r.Text,
		CreatedAt:     r.CreatedAt,
	}
	if r.DocumentIDs != "" {
		m.DocumentIDs = strings.Split(r.DocumentIDs, ",")
	}
	if r.TurnKey != nil {
		m.TurnKey = *r.TurnKey
	}
	return m
}
