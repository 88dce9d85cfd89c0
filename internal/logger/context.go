package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// Field keys shared by request, chat and ingestion log lines so they can be joined.
const (
	KeyRequestID  = "request_id"
	KeyUserID     = "user_id"
	KeyDocumentID = "document_id"
)

// RequestID tags a log line with the HTTP request id.
func RequestID(id string) zap.Field { return zap.String(KeyRequestID, id) }

// UserID tags a log line with the authenticated caller.
func UserID(id string) zap.Field { return zap.String(KeyUserID, id) }

// DocumentID tags a log line with the report it concerns.
func DocumentID(id string) zap.Field { return zap.String(KeyDocumentID, id) }

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from the context.
// Returns zap.NewNop() if no logger is found.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// With returns a context whose logger carries fields on top of the one already in ctx.
func With(ctx context.Context, fields ...zap.Field) context.Context {
	return ContextWithLogger(ctx, FromContext(ctx).With(fields...))
}
