package gcp

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestObjectKeyIsContentAddressed(t *testing.T) {
	owner := uuid.New()
	a := ObjectKey(owner, []byte("same bytes"))
	b := ObjectKey(owner, []byte("same bytes"))
	c := ObjectKey(owner, []byte("other bytes"))

	if a != b {
		t.Fatalf("identical content must map to the same key: %s vs %s", a, b)
	}
	if a == c {
		t.Fatalf("different content must map to different keys")
	}
	if !strings.HasPrefix(a, "stickers/"+owner.String()+"/") {
		t.Fatalf("key must be scoped to the owner, got %s", a)
	}
	if ObjectKey(uuid.New(), []byte("same bytes")) == a {
		t.Fatalf("keys must be scoped per owner")
	}
}

func TestPublicURLPrefersCDN(t *testing.T) {
	bs := &BucketStore{bucketName: "packs-bucket", cdnDomain: "cdn.example.com"}
	if got := bs.PublicURL("stickers/x/y"); got != "https://cdn.example.com/stickers/x/y" {
		t.Fatalf("unexpected CDN url %s", got)
	}
	bs.cdnDomain = ""
	if got := bs.PublicURL("stickers/x/y"); got != "https://storage.googleapis.com/packs-bucket/stickers/x/y" {
		t.Fatalf("unexpected direct url %s", got)
	}
}
