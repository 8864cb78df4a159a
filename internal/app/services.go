package app

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/stickerlab/packsmith-backend/internal/platform/gcp"
	"github.com/stickerlab/packsmith-backend/internal/platform/localmedia"
	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
	"github.com/stickerlab/packsmith-backend/internal/services"
)

type Services struct {
	Auth         services.AuthService
	Media        services.MediaService
	Assets       services.AssetStore
	Messenger    services.MessengerClient
	Outbox       services.OutboxService
	OutboxWorker *services.OutboxWorker
	Publish      services.PublishService
	Cache        services.PackStateCache
	Notifier     *services.PackNotifier
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	assets, err := wireAssetStore(log, cfg)
	if err != nil {
		return Services{}, err
	}

	cache := services.NewNoopPackStateCache()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		cache = services.NewRedisPackStateCache(log, rdb, cfg.PackCacheTTL)
	}

	outbox := services.NewOutboxService(db, log, reposet.OutboxEvent, cfg.OutboxLeaseTTL)
	worker := services.NewOutboxWorker(log, outbox, services.OutboxWorkerConfig{
		Workers:      cfg.OutboxWorkers,
		PollInterval: cfg.OutboxPollInterval,
		BackoffBase:  cfg.OutboxBackoffBase,
		BackoffCap:   cfg.OutboxBackoffCap,
	})

	media := services.NewMediaService(log, cfg.StickerMaxBytes)
	messenger := services.NewLogMessenger(log)

	publish := services.NewPublishService(db, log, reposet.Pack, reposet.PackItem, reposet.PackUpload, media, assets, outbox, cache)

	notifier := services.NewPackNotifier(log, reposet.User, reposet.Pack, messenger)
	notifier.RegisterHandlers(worker)

	return Services{
		Auth:         services.NewAuthService(log, reposet.User, cfg.JWTSecretKey, cfg.AccessTokenTTL),
		Media:        media,
		Assets:       assets,
		Messenger:    messenger,
		Outbox:       outbox,
		OutboxWorker: worker,
		Publish:      publish,
		Cache:        cache,
		Notifier:     notifier,
	}, nil
}

// wireAssetStore prefers GCS; MEDIA_DIR forces the filesystem store for dev.
func wireAssetStore(log *logger.Logger, cfg Config) (services.AssetStore, error) {
	if cfg.MediaDir != "" {
		store, err := localmedia.NewStore(log, cfg.MediaDir, cfg.MediaBaseURL)
		if err != nil {
			return nil, fmt.Errorf("init local media store: %w", err)
		}
		return store, nil
	}
	store, err := gcp.NewBucketStore(log)
	if err != nil {
		return nil, fmt.Errorf("init bucket store: %w", err)
	}
	return store, nil
}
