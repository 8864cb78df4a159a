package services

import (
	"context"

	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
)

// MessengerClient is the bot-transport collaborator. The real client lives
// outside this service; outbox handlers only need SendMessage and must stay
// idempotent because delivery is at-least-once.
type MessengerClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type logMessenger struct {
	log *logger.Logger
}

// NewLogMessenger returns a messenger that only logs. Used when no transport
// is configured so outbox handlers still complete.
func NewLogMessenger(baseLog *logger.Logger) MessengerClient {
	return &logMessenger{log: baseLog.With("service", "LogMessenger")}
}

func (m *logMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	m.log.Info("Would send bot message", "chat_id", chatID, "text", text)
	return nil
}
