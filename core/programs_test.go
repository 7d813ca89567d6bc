package core_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/b5/squiggle/core"
)

func writeProgramDir(t *testing.T, manifestExtra, entry string) string {
	t.Helper()
	dir := t.TempDir()
	manifest := `{"name":"demo","version":"0.1.0"` + manifestExtra + `}`
	if err := os.WriteFile(filepath.Join(dir, "program.json"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write program.json: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.wasm"), []byte(entry), 0o644); err != nil {
		t.Fatalf("write index.wasm: %v", err)
	}
	return dir
}

func TestProgramsMutateGetRoundTrip(t *testing.T) {
	space, author := newTestSpace(t)
	dir := writeProgramDir(t, "", "fake wasm bytes")

	id := mustUUID(t)
	prog, err := space.Programs().Mutate(author, id, dir)
	if err != nil {
		t.Fatalf("mutate program: %v", err)
	}
	if prog.Manifest.Name != "demo" || prog.Manifest.Version != "0.1.0" {
		t.Fatalf("unexpected manifest: %+v", prog.Manifest)
	}

	got, err := space.Programs().Get(id)
	if err != nil {
		t.Fatalf("get program: %v", err)
	}
	if got.EntryHash != prog.EntryHash {
		t.Fatalf("entry hash mismatch after round trip")
	}
}

func TestProgramsMutateRejectsMissingManifest(t *testing.T) {
	space, author := newTestSpace(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.wasm"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write index.wasm: %v", err)
	}

	if _, err := space.Programs().Mutate(author, mustUUID(t), dir); !core.IsKind(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing program.json, got %v", err)
	}
}

func TestProgramsMutateRejectsMissingEntry(t *testing.T) {
	space, author := newTestSpace(t)
	dir := t.TempDir()
	manifest := `{"name":"demo","version":"0.1.0","main":"custom.wasm"}`
	if err := os.WriteFile(filepath.Join(dir, "program.json"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write program.json: %v", err)
	}

	if _, err := space.Programs().Mutate(author, mustUUID(t), dir); !core.IsKind(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing entry file, got %v", err)
	}
}

func TestProgramsDeleteThenGet(t *testing.T) {
	space, author := newTestSpace(t)
	dir := writeProgramDir(t, "", "fake wasm bytes")
	id := mustUUID(t)

	if _, err := space.Programs().Mutate(author, id, dir); err != nil {
		t.Fatalf("mutate program: %v", err)
	}
	if err := space.Programs().Delete(author, id); err != nil {
		t.Fatalf("delete program: %v", err)
	}
	got, err := space.Programs().Get(id)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if !got.Deleted {
		t.Fatalf("expected program to be deleted")
	}
}
