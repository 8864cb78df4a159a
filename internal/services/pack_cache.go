package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
)

// PackStateCache holds rendered publish-state views. It is an explicit value
// keyed by pack id and invalidated on every pack write — never a read-through
// ambient global. Misses are always safe: callers rebuild from the store.
type PackStateCache interface {
	Get(ctx context.Context, packID uuid.UUID) (*PublishStateView, bool)
	Set(ctx context.Context, packID uuid.UUID, view *PublishStateView)
	Invalidate(ctx context.Context, packID uuid.UUID)
}

type redisPackStateCache struct {
	log *logger.Logger
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisPackStateCache(baseLog *logger.Logger, rdb *redis.Client, ttl time.Duration) PackStateCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisPackStateCache{
		log: baseLog.With("service", "PackStateCache"),
		rdb: rdb,
		ttl: ttl,
	}
}

func cacheKey(packID uuid.UUID) string {
	return "pack_state:" + packID.String()
}

func (c *redisPackStateCache) Get(ctx context.Context, packID uuid.UUID) (*PublishStateView, bool) {
	if c.rdb == nil || packID == uuid.Nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, cacheKey(packID)).Bytes()
	if err != nil {
		return nil, false
	}
	var view PublishStateView
	if err := json.Unmarshal(raw, &view); err != nil {
		c.log.Warn("Dropping undecodable cached pack state", "pack_id", packID, "error", err)
		_ = c.rdb.Del(ctx, cacheKey(packID)).Err()
		return nil, false
	}
	return &view, true
}

func (c *redisPackStateCache) Set(ctx context.Context, packID uuid.UUID, view *PublishStateView) {
	if c.rdb == nil || packID == uuid.Nil || view == nil {
		return
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(packID), raw, c.ttl).Err(); err != nil {
		c.log.Warn("Pack state cache set failed", "pack_id", packID, "error", err)
	}
}

func (c *redisPackStateCache) Invalidate(ctx context.Context, packID uuid.UUID) {
	if c.rdb == nil || packID == uuid.Nil {
		return
	}
	if err := c.rdb.Del(ctx, cacheKey(packID)).Err(); err != nil {
		c.log.Warn("Pack state cache invalidate failed", "pack_id", packID, "error", err)
	}
}

// noopPackStateCache keeps the publish path unconditional when redis is not
// configured.
type noopPackStateCache struct{}

func NewNoopPackStateCache() PackStateCache { return noopPackStateCache{} }

func (noopPackStateCache) Get(ctx context.Context, packID uuid.UUID) (*PublishStateView, bool) {
	return nil, false
}
func (noopPackStateCache) Set(ctx context.Context, packID uuid.UUID, view *PublishStateView) {}
func (noopPackStateCache) Invalidate(ctx context.Context, packID uuid.UUID)                  {}
