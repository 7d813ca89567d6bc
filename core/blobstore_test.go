package core_test

import (
	"context"
	"testing"

	"github.com/b5/squiggle/core"
)

func TestLocalBlobStorePutGetRoundTrip(t *testing.T) {
	store, err := core.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local blob store: %v", err)
	}
	ctx := context.Background()

	data := []byte("hello, squiggle")
	hash, err := store.Put(ctx, data)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	has, err := store.Has(ctx, hash)
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if !has {
		t.Fatalf("expected blob to be present after put")
	}

	got, err := store.Get(ctx, hash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("got %q, want %q", got, data)
	}

	size, err := store.Size(ctx, hash)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if size != int64(len(data)) {
		t.Fatalf("size = %d, want %d", size, len(data))
	}
}

func TestLocalBlobStoreGetRange(t *testing.T) {
	store, err := core.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local blob store: %v", err)
	}
	ctx := context.Background()

	data := []byte("0123456789")
	hash, err := store.Put(ctx, data)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.GetRange(ctx, hash, 2, 4)
	if err != nil {
		t.Fatalf("get range: %v", err)
	}
	if string(got) != "2345" {
		t.Fatalf("got %q, want %q", got, "2345")
	}
}

func TestLocalBlobStoreGetMissingIsNotFound(t *testing.T) {
	store, err := core.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local blob store: %v", err)
	}
	var missing [32]byte
	if _, err := store.Get(context.Background(), missing); !core.IsKind(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalBlobStorePutIsContentAddressed(t *testing.T) {
	store, err := core.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local blob store: %v", err)
	}
	ctx := context.Background()

	data := []byte("same bytes")
	h1, err := store.Put(ctx, data)
	if err != nil {
		t.Fatalf("put 1: %v", err)
	}
	h2, err := store.Put(ctx, data)
	if err != nil {
		t.Fatalf("put 2: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected identical content to hash identically: %x != %x", h1, h2)
	}
}
