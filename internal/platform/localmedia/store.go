package localmedia

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/stickerlab/packsmith-backend/internal/platform/gcp"
	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
)

// Store is the filesystem asset store used in development and tests. It uses
// the same content-addressed keys as the GCS store so the two are
// interchangeable behind services.AssetStore.
type Store struct {
	log     *logger.Logger
	rootDir string
	baseURL string
}

func NewStore(log *logger.Logger, rootDir, baseURL string) (*Store, error) {
	if rootDir == "" {
		rootDir = "./media"
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{
		log:     log.With("service", "LocalMediaStore"),
		rootDir: rootDir,
		baseURL: baseURL,
	}, nil
}

func (s *Store) Store(ctx context.Context, ownerID uuid.UUID, data []byte, mimeType string) (string, error) {
	key := gcp.ObjectKey(ownerID, data)
	path := filepath.Join(s.rootDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create sticker dir: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		// Same content already stored; the id is authoritative.
		return key, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write sticker file: %w", err)
	}
	return key, nil
}

func (s *Store) PublicURL(stickerID string) string {
	if s.baseURL == "" {
		return stickerID
	}
	return s.baseURL + "/" + stickerID
}
