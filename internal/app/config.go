package app

import (
	"strings"
	"time"

	"github.com/stickerlab/packsmith-backend/internal/platform/envutil"
)

type Config struct {
	Port         string
	AllowOrigins []string

	JWTSecretKey   string
	AccessTokenTTL time.Duration

	RedisAddr     string
	RedisPassword string
	PackCacheTTL  time.Duration

	MediaDir        string
	MediaBaseURL    string
	StickerMaxBytes int

	OutboxWorkers      int
	OutboxPollInterval time.Duration
	OutboxLeaseTTL     time.Duration
	OutboxBackoffBase  time.Duration
	OutboxBackoffCap   time.Duration
}

func LoadConfig() Config {
	return Config{
		Port:         envutil.String("PORT", "8080"),
		AllowOrigins: splitCSV(envutil.String("ALLOW_ORIGINS", "")),

		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", "defaultsecret"),
		AccessTokenTTL: envutil.Seconds("ACCESS_TOKEN_TTL", time.Hour),

		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		PackCacheTTL:  envutil.Seconds("PACK_CACHE_TTL", 30*time.Second),

		MediaDir:        envutil.String("MEDIA_DIR", ""),
		MediaBaseURL:    envutil.String("MEDIA_BASE_URL", "http://localhost:8080/media"),
		StickerMaxBytes: envutil.Int("STICKER_MAX_BYTES", 2<<20),

		OutboxWorkers:      envutil.Int("OUTBOX_WORKERS", 2),
		OutboxPollInterval: envutil.Seconds("OUTBOX_POLL_INTERVAL", time.Second),
		OutboxLeaseTTL:     envutil.Seconds("OUTBOX_LEASE_TTL", 2*time.Minute),
		OutboxBackoffBase:  envutil.Seconds("OUTBOX_BACKOFF_BASE", 5*time.Second),
		OutboxBackoffCap:   envutil.Seconds("OUTBOX_BACKOFF_CAP", 10*time.Minute),
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
