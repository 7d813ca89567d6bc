package core

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// bgCtx is used for the synchronous BlobStore calls made from typed-entity
// helpers that do not (yet) accept a caller context.
var bgCtx = context.Background()

// Space bundles an EventStore, a blob-namespace handle, and a ReplicatedKV
// doc, and exposes the typed-entity APIs over them.
type Space struct {
	ID     uuid.UUID
	Name   string
	Secret [32]byte // derives the gossip topic

	Store *EventStore
	Blobs BlobStore
	KV    ReplicatedKV

	codec *EventCodec
	log   *logrus.Entry

	broadcaster *SyncBroadcaster
}

// NewSpace wires a Space around already-open EventStore/BlobStore/KV
// handles. Sharing.Import also returns one for a newly imported space.
func NewSpace(id uuid.UUID, name string, secret [32]byte, store *EventStore, blobs BlobStore, kv ReplicatedKV, log *logrus.Logger) *Space {
	return &Space{
		ID:     id,
		Name:   name,
		Secret: secret,
		Store:  store,
		Blobs:  blobs,
		KV:     kv,
		codec:  NewEventCodec(),
		log:    log.WithField("component", "space").WithField("space", name),
	}
}

// AttachBroadcaster wires b as this space's SyncBroadcaster so local
// mutations are republished to peers.
func (s *Space) AttachBroadcaster(b *SyncBroadcaster) { s.broadcaster = b }

// signAndIngest is the shared write path every typed entity's Mutate/Delete
// helper funnels through: sign the event, ingest it locally, and hand it to
// the broadcaster if attached.
func (s *Space) signAndIngest(author ed25519.PrivateKey, kind Kind, dataID uuid.UUID, extraTags []Tag, content []byte) (*Event, error) {
	tags := append([]Tag{{Name: "id", Value: dataID.String()}}, extraTags...)

	var link HashLink
	if content != nil {
		hash, err := s.Blobs.Put(context.Background(), content)
		if err != nil {
			return nil, WrapError(ErrIO, err, "store content for %s", dataID)
		}
		if len(content) <= inlineThreshold {
			raw := make(json.RawMessage, len(content))
			copy(raw, content)
			link = HashLink{Hash: hash, Value: raw}
		} else {
			link = HashLinkBare(hash, nil)
		}
	}

	e, err := s.codec.Sign(author, time.Now().Unix(), kind, tags, link)
	if err != nil {
		return nil, err
	}
	if err := s.Store.Ingest(e); err != nil {
		return nil, err
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastEvent(e)
	}
	s.log.WithField("kind", kind.String()).WithField("data_id", dataID).Debug("mutated")
	return e, nil
}

// signAndIngestBare behaves like signAndIngest but always stores content as
// a bare HashLink (never inlined): content = HashLink{hash, value: None} regardless
// of size.
func (s *Space) signAndIngestBare(author ed25519.PrivateKey, kind Kind, dataID uuid.UUID, extraTags []Tag, content []byte) (*Event, error) {
	tags := append([]Tag{{Name: "id", Value: dataID.String()}}, extraTags...)

	var link HashLink
	if content != nil {
		hash, err := s.Blobs.Put(context.Background(), content)
		if err != nil {
			return nil, WrapError(ErrIO, err, "store content for %s", dataID)
		}
		link = HashLinkBare(hash, nil)
	}

	e, err := s.codec.Sign(author, time.Now().Unix(), kind, tags, link)
	if err != nil {
		return nil, err
	}
	if err := s.Store.Ingest(e); err != nil {
		return nil, err
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastEvent(e)
	}
	s.log.WithField("kind", kind.String()).WithField("data_id", dataID).Debug("mutated")
	return e, nil
}

// resolveContent returns the decoded bytes for a HashLink, fetching from
// BlobStore when not inlined.
func (s *Space) resolveContent(link HashLink) ([]byte, error) {
	if link.Value != nil {
		return []byte(link.Value), nil
	}
	return s.Blobs.Get(context.Background(), link.Hash)
}

// Close releases the Space's EventStore handle.
func (s *Space) Close() error {
	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}
