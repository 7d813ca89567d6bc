package core_test

import (
	"path/filepath"
	"testing"

	"github.com/b5/squiggle/core"
)

func TestSpaceRegistryRegisterGetForget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spaces.json")
	registry, err := core.OpenSpaceRegistry(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	ref := core.SpaceRef{ID: mustUUID(t), Name: "my-space", Secret: "aabbcc"}
	if err := registry.Register(ref); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := registry.Get(ref.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "my-space" {
		t.Fatalf("unexpected name: %q", got.Name)
	}

	if err := registry.Forget(ref.ID); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, err := registry.Get(ref.ID); !core.IsKind(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after forget, got %v", err)
	}
}

func TestSpaceRegistryRegisterReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spaces.json")
	registry, err := core.OpenSpaceRegistry(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	id := mustUUID(t)
	if err := registry.Register(core.SpaceRef{ID: id, Name: "v1", Secret: "00"}); err != nil {
		t.Fatalf("register v1: %v", err)
	}
	if err := registry.Register(core.SpaceRef{ID: id, Name: "v2", Secret: "11"}); err != nil {
		t.Fatalf("register v2: %v", err)
	}

	if len(registry.List()) != 1 {
		t.Fatalf("expected a single ref after replacing, got %d", len(registry.List()))
	}
	got, err := registry.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "v2" {
		t.Fatalf("expected the second Register to replace the first, got name %q", got.Name)
	}
}
