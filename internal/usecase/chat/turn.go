package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reportlens/internal/domain"
	domchat "github.com/kailas-cloud/reportlens/internal/domain/chat"
	"github.com/kailas-cloud/reportlens/internal/metrics"
)

// ErrTurnStreamed is returned when Stream is called on a turn that already ran.
var ErrTurnStreamed = errors.New("turn already streamed")

const persistTimeout = 10 * time.Second

// Turn is one prepared question awaiting its streamed answer.
type Turn struct {
	svc    *Service
	scope  domchat.Scope
	user   domchat.Message
	prompt []domain.PromptMessage
	log    *zap.Logger

	started sync.Once
	once    sync.Once
	reply   domchat.Message
	saveErr error
}

// UserMessage returns the recorded question.
func (t *Turn) UserMessage() domchat.Message { return t.user }

// Stream sends the model answer to sink chunk by chunk. When the model finishes
// the full answer is stored once as the assistant message and returned. A stream,
// sink or timeout error fails the turn and nothing is stored.
func (t *Turn) Stream(ctx context.Context, sink func(chunk string) error) (domchat.Message, error) {
	first := false
	t.started.Do(func() { first = true })
	if !first {
		return domchat.Message{}, ErrTurnStreamed
	}

	ctx, cancel := context.WithTimeout(ctx, t.svc.opts.StreamTimeout)
	defer cancel()

	text, err := t.run(ctx, sink)
	if err != nil {
		metrics.ChatTurnsTotal.WithLabelValues("failed").Inc()
		t.log.Warn("Chat turn failed", zap.Error(err))
		return domchat.Message{}, err
	}

	reply, err := t.complete(ctx, text)
	if err != nil {
		metrics.ChatTurnsTotal.WithLabelValues("failed").Inc()
		return domchat.Message{}, err
	}
	return reply, nil
}

func (t *Turn) run(ctx context.Context, sink func(string) error) (string, error) {
	stream, err := t.svc.llm.Stream(ctx, t.prompt)
	if err != nil {
		return "", fmt.Errorf("open stream: %w", err)
	}
	defer func() { _ = stream.Close() }()

	var b strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", fmt.Errorf("stream: %w", ctxErr)
			}
			return "", fmt.Errorf("stream: %w", err)
		}
		b.WriteString(chunk)
		if err := sink(chunk); err != nil {
			return "", fmt.Errorf("deliver chunk: %w", err)
		}
	}
}

// complete stores the reply at most once per turn. The unique turn key also stops
// a second writer for the same user message.
func (t *Turn) complete(ctx context.Context, text string) (domchat.Message, error) {
	t.once.Do(func() {
		reply := domchat.NewAssistantMessage(t.user.UserID, t.scope, t.user.ID, text)

		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		created, err := t.svc.messages.SaveReply(saveCtx, &reply)
		if err != nil {
			t.saveErr = fmt.Errorf("persist reply: %w", err)
			return
		}
		if !created {
			t.log.Info("Reply already recorded", zap.String("turn_key", reply.TurnKey))
		}
		t.reply = reply
		metrics.ChatTurnsTotal.WithLabelValues("persisted").Inc()
	})
	return t.reply, t.saveErr
}
