package core_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/b5/squiggle/core"
)

func TestBuildCollectionFromDirHashAndLookup(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "program.json", `{"name":"demo","version":"0.1.0"}`)
	writeFile(t, dir, "index.wasm", "binary-ish-content")
	writeFile(t, dir, ".gitignore", "ignored")

	store, err := core.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local blob store: %v", err)
	}

	coll, err := core.BuildCollectionFromDir(store, dir, []string{".git", ".gitignore", "*.swp", ".DS_Store"})
	if err != nil {
		t.Fatalf("build collection: %v", err)
	}

	if _, ok := coll.Lookup(".gitignore"); ok {
		t.Fatalf("expected .gitignore to be excluded from the collection")
	}
	manifestHash, ok := coll.Lookup("program.json")
	if !ok {
		t.Fatalf("expected program.json in collection")
	}
	entryHash, ok := coll.Lookup("index.wasm")
	if !ok {
		t.Fatalf("expected index.wasm in collection")
	}
	if manifestHash == entryHash {
		t.Fatalf("distinct files must not collide on hash")
	}

	// Hash() must be deterministic over repeated calls on the same entries.
	h1 := coll.Hash()
	h2 := coll.Hash()
	if h1 != h2 {
		t.Fatalf("collection hash is not deterministic: %x != %x", h1, h2)
	}
}

func TestPutFetchCollectionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "program.json", `{"name":"demo","version":"0.1.0"}`)
	writeFile(t, dir, "index.wasm", "binary-ish-content")

	store, err := core.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local blob store: %v", err)
	}
	ctx := context.Background()

	coll, err := core.BuildCollectionFromDir(store, dir, nil)
	if err != nil {
		t.Fatalf("build collection: %v", err)
	}

	hash, err := core.PutCollection(ctx, store, coll)
	if err != nil {
		t.Fatalf("put collection: %v", err)
	}

	fetched, err := core.FetchCollection(ctx, store, hash)
	if err != nil {
		t.Fatalf("fetch collection: %v", err)
	}
	if fetched.Hash() != coll.Hash() {
		t.Fatalf("fetched collection hash mismatch: %x != %x", fetched.Hash(), coll.Hash())
	}
	if _, ok := fetched.Lookup("program.json"); !ok {
		t.Fatalf("expected program.json to survive the round trip")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
