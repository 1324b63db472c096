package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"euroaip/internal/blob/core"
)

func TestPutIsolatesMetadataAndData(t *testing.T) {
	s := New()
	ctx := context.Background()
	meta := map[string]string{"cycle": "2504"}
	if _, err := s.Put(ctx, "snapshots/2504/model.json", strings.NewReader("abc"), core.PutOptions{Metadata: meta}); err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["cycle"] = "mutated"
	info, rc, err := s.Get(ctx, "snapshots/2504/model.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	if string(body) != "abc" || info.Metadata["cycle"] != "2504" || info.ETag == "" {
		t.Fatalf("stored blob changed: %q %+v", body, info)
	}
}

func TestOverwriteAndExists(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.Put(ctx, "k", strings.NewReader("1"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put(ctx, "k", strings.NewReader("2"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	info, err := s.Put(ctx, "k", strings.NewReader("22"), core.PutOptions{Overwrite: true})
	if err != nil || info.Size != 2 {
		t.Fatalf("overwrite: %v %+v", err, info)
	}
}

func TestPresignUnsupported(t *testing.T) {
	if _, err := New().PresignURL(context.Background(), "k", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
