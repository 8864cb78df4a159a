package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stickerlab/packsmith-backend/internal/data/repos"
	types "github.com/stickerlab/packsmith-backend/internal/domain"
	"github.com/stickerlab/packsmith-backend/internal/platform/dbctx"
	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
)

// PackNotifier turns outbox publish events into owner chat messages. Handlers
// are idempotent: redelivery after a lease expiry just re-sends a message,
// which the messaging surface tolerates.
type PackNotifier struct {
	log       *logger.Logger
	userRepo  repos.UserRepo
	packRepo  repos.PackRepo
	messenger MessengerClient
}

func NewPackNotifier(baseLog *logger.Logger, userRepo repos.UserRepo, packRepo repos.PackRepo, messenger MessengerClient) *PackNotifier {
	return &PackNotifier{
		log:       baseLog.With("service", "PackNotifier"),
		userRepo:  userRepo,
		packRepo:  packRepo,
		messenger: messenger,
	}
}

func (n *PackNotifier) RegisterHandlers(w *OutboxWorker) {
	w.Register(EventPackPublished, n.HandlePackPublished)
	w.Register(EventPackPublishFailed, n.HandlePackPublishFailed)
}

func (n *PackNotifier) HandlePackPublished(ctx context.Context, evt *types.OutboxEvent) error {
	var payload struct {
		PackKey      string `json:"pack_key"`
		StickerCount int64  `json:"sticker_count"`
	}
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	chatID, err := n.ownerChatID(ctx, evt)
	if err != nil {
		return err
	}
	if chatID == 0 {
		return nil
	}
	text := fmt.Sprintf("Your pack %s is live with %d stickers.", payload.PackKey, payload.StickerCount)
	return n.messenger.SendMessage(ctx, chatID, text)
}

func (n *PackNotifier) HandlePackPublishFailed(ctx context.Context, evt *types.OutboxEvent) error {
	chatID, err := n.ownerChatID(ctx, evt)
	if err != nil {
		return err
	}
	if chatID == 0 {
		return nil
	}
	return n.messenger.SendMessage(ctx, chatID, "Publishing your pack failed. Open the app to retry.")
}

func (n *PackNotifier) ownerChatID(ctx context.Context, evt *types.OutboxEvent) (int64, error) {
	dbc := dbctx.Context{Ctx: ctx}
	pack, err := n.packRepo.GetByID(dbc, evt.AggregateID)
	if err != nil {
		return 0, err
	}
	if pack == nil {
		// Pack deleted after the event was enqueued; nothing to announce.
		return 0, nil
	}
	user, err := n.userRepo.GetByID(dbc, pack.OwnerUserID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, nil
	}
	return user.ChatID, nil
}
