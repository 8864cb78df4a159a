package services

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/stickerlab/packsmith-backend/internal/platform/apierr"
	"github.com/stickerlab/packsmith-backend/internal/platform/logger"
)

const (
	// StickerEdge is the canonical square size stickers are normalized to.
	StickerEdge = 512

	defaultMaxUploadBytes = 2 << 20
)

// MediaService is the conversion collaborator: it normalizes arbitrary
// uploaded images into the canonical sticker format. Unsupported or oversized
// input fails with invalid_input and must not be retried server-side.
type MediaService interface {
	Convert(data []byte, mimeType string) ([]byte, string, error)
}

type mediaService struct {
	log      *logger.Logger
	maxBytes int
}

func NewMediaService(baseLog *logger.Logger, maxBytes int) MediaService {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &mediaService{
		log:      baseLog.With("service", "MediaService"),
		maxBytes: maxBytes,
	}
}

func (s *mediaService) Convert(data []byte, mimeType string) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", apierr.InvalidInput(fmt.Errorf("empty upload"))
	}
	if len(data) > s.maxBytes {
		return nil, "", apierr.InvalidInput(fmt.Errorf("upload exceeds %d bytes", s.maxBytes))
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", apierr.InvalidInput(fmt.Errorf("undecodable image (%s): %w", mimeType, err))
	}

	normalized := normalize(src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, normalized); err != nil {
		return nil, "", fmt.Errorf("encode sticker png: %w", err)
	}
	s.log.Debug("Converted upload", "source_format", format, "in_bytes", len(data), "out_bytes", buf.Len())
	return buf.Bytes(), "image/png", nil
}

// normalize scales the image so its longer edge is StickerEdge, preserving
// aspect ratio. Images already at or under the edge are re-encoded as-is.
func normalize(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= StickerEdge && h <= StickerEdge {
		return src
	}
	outW, outH := StickerEdge, StickerEdge
	if w > h {
		outH = h * StickerEdge / w
	} else {
		outW = w * StickerEdge / h
	}
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
