package services

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stickerlab/packsmith-backend/internal/platform/apierr"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 16 {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestConvertNormalizesLargeImages(t *testing.T) {
	svc := NewMediaService(testLogger(t), 0)

	out, mime, err := svc.Convert(encodePNG(t, 1024, 768), "image/png")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if mime != "image/png" {
		t.Fatalf("expected image/png, got %s", mime)
	}
	decoded, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	b := decoded.Bounds()
	if b.Dx() != StickerEdge {
		t.Fatalf("expected longer edge %d, got %d", StickerEdge, b.Dx())
	}
	if b.Dy() != 768*StickerEdge/1024 {
		t.Fatalf("expected aspect preserved, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestConvertKeepsSmallImages(t *testing.T) {
	svc := NewMediaService(testLogger(t), 0)

	out, _, err := svc.Convert(encodePNG(t, 100, 80), "image/png")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	decoded, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded.Bounds().Dx() != 100 || decoded.Bounds().Dy() != 80 {
		t.Fatalf("small images must keep their size, got %v", decoded.Bounds())
	}
}

func TestConvertRejectsBadInput(t *testing.T) {
	svc := NewMediaService(testLogger(t), 64)

	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not an image")},
		{"oversized", bytes.Repeat([]byte{0x1}, 65)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Convert(tc.data, "application/octet-stream")
			if err == nil {
				t.Fatalf("expected an error")
			}
			var ae *apierr.Error
			if !errors.As(err, &ae) || ae.Code != apierr.CodeInvalidInput {
				t.Fatalf("expected invalid_input, got %v", err)
			}
		})
	}
}
