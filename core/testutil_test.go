package core_test

import (
	"crypto/ed25519"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/b5/squiggle/core"
)

// newTestSpace builds a Space backed by a fresh SQLite file and local blob
// dir under t.TempDir(), with no ReplicatedKV attached — the typed-entity
// and event-store tests never touch jobs/ or worker/ keys.
func newTestSpace(t *testing.T) (*core.Space, ed25519.PrivateKey) {
	t.Helper()

	dir := t.TempDir()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	codec := core.NewEventCodec()
	store, err := core.OpenEventStore(filepath.Join(dir, "space.db"), codec, log)
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	blobs, err := core.NewLocalBlobStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}

	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	space := core.NewSpace(uuid.New(), "test-space", [32]byte{1, 2, 3}, store, blobs, nil, log)
	return space, priv
}

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}
