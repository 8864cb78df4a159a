package gcp

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
)

// BucketStore is the GCS-backed asset store. Object keys derive from the
// owner and the sha256 of the normalized bytes, so re-storing identical
// content is a cheap overwrite of the same object.
type BucketStore struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucketName    string
	cdnDomain     string
}

func NewBucketStore(log *logger.Logger) (*BucketStore, error) {
	serviceLog := log.With("service", "BucketStore")
	bucket := os.Getenv("GCS_BUCKET_NAME")
	if bucket == "" {
		return nil, fmt.Errorf("missing env var GCS_BUCKET_NAME")
	}
	cdnDomain := os.Getenv("CDN_DOMAIN")
	saPath := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")
	if saPath == "" {
		serviceLog.Warn("GOOGLE_APPLICATION_CREDENTIALS_JSON not set; relying on ambient ADC")
	}
	ctx := context.Background()
	var stClient *storage.Client
	var err error
	if saPath != "" {
		stClient, err = storage.NewClient(ctx, option.WithCredentialsFile(saPath), option.WithScopes(storage.ScopeReadWrite))
	} else {
		stClient, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	}
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &BucketStore{
		log:           serviceLog,
		storageClient: stClient,
		bucketName:    bucket,
		cdnDomain:     cdnDomain,
	}, nil
}

func (bs *BucketStore) Store(ctx context.Context, ownerID uuid.UUID, data []byte, mimeType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	key := ObjectKey(ownerID, data)
	w := bs.storageClient.Bucket(bs.bucketName).Object(key).NewWriter(ctx)
	w.ContentType = mimeType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write sticker to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close GCS writer: %w", err)
	}
	return key, nil
}

func (bs *BucketStore) PublicURL(stickerID string) string {
	if bs.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", bs.cdnDomain, stickerID)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bs.bucketName, stickerID)
}

// ObjectKey is the content address: owner scope plus sha256 of the bytes.
func ObjectKey(ownerID uuid.UUID, data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("stickers/%s/%s", ownerID, hex.EncodeToString(sum[:]))
}
