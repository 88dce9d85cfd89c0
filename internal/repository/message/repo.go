// Package message persists chat history.
package message

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kailas-cloud/reportlens/internal/domain/chat"
)

// Repo stores chat messages. Rows are never updated.
type Repo struct {
	db *gorm.DB
}

// New creates a message repository.
func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Migrate creates or updates the messages table.
func (r *Repo) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&row{})
}

// Append stores a user message.
func (r *Repo) Append(ctx context.Context, m *chat.Message) error {
	rw := toRow(m)
	if err := r.db.WithContext(ctx).Create(&rw).Error; err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// SaveReply stores an assistant message at most once per turn key.
// It reports false when a reply for the same turn already exists.
func (r *Repo) SaveReply(ctx context.Context, m *chat.Message) (bool, error) {
	if m.TurnKey == "" {
		return false, fmt.Errorf("assistant message without turn key")
	}
	rw := toRow(m)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "turn_key"}}, DoNothing: true}).
		Create(&rw)
	if res.Error != nil {
		return false, fmt.Errorf("insert reply: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// History returns the user's messages in a scope, newest first.
// cursor is an exclusive upper bound on message id; limit <= 0 means no limit.
func (r *Repo) History(ctx context.Context, userID, scopeKey string, limit int, cursor string) (chat.Page, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND scope_key = ?", userID, scopeKey).
		Order("id DESC")
	if cursor != "" {
		q = q.Where("id < ?", cursor)
	}
	if limit > 0 {
		q = q.Limit(limit + 1)
	}

	var rows []row
	if err := q.Find(&rows).Error; err != nil {
		return chat.Page{}, fmt.Errorf("list messages: %w", err)
	}

	var page chat.Page
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
		page.NextCursor = rows[len(rows)-1].ID
	}
	page.Messages = make([]chat.Message, 0, len(rows))
	for i := range rows {
		page.Messages = append(page.Messages, rows[i].toDomain())
	}
	return page, nil
}

// Recent returns the last n messages of a scope in chronological order.
func (r *Repo) Recent(ctx context.Context, userID, scopeKey string, n int) ([]chat.Message, error) {
	if n <= 0 {
		return nil, nil
	}
	page, err := r.History(ctx, userID, scopeKey, n, "")
	if err != nil {
		return nil, err
	}
	msgs := page.Messages
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// DeleteByDocument removes every message whose scope includes documentID.
func (r *Repo) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("scope_key = ? OR scope_key LIKE ? OR scope_key LIKE ?",
			documentID, documentID+":%", "%:"+documentID).
		Delete(&row{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete messages: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CountReplies counts assistant messages stored for a turn key.
func (r *Repo) CountReplies(ctx context.Context, turnKey string) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&row{}).Where("turn_key = ?", turnKey).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count replies: %w", err)
	}
	return int(n), nil
}
