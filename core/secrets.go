package core

import (
	"crypto/ed25519"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Secret is config for a program, scoped to (space, programId). Secrets are
// deliberately excluded from space-share exports.
type Secret struct {
	ProgramID uuid.UUID
	Values    map[string]string
	CreatedAt time.Time
	Deleted   bool
}

// SecretFromEvent resolves a Secret projection. If the inlined value is
// absent and no blob is resolvable locally, the map is returned empty
// rather than fetched from a remote peer.
func SecretFromEvent(e *Event, resolveLocalOnly func(HashLink) ([]byte, bool)) (*Secret, error) {
	id, ok := e.DataID()
	if !ok {
		return nil, NewError(ErrValidation, "secret event %x missing id tag", e.ID[:4])
	}
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, NewError(ErrValidation, "secret event %x: invalid id tag", e.ID[:4])
	}
	s := &Secret{ProgramID: pid, Values: map[string]string{}, CreatedAt: time.Unix(e.CreatedAt, 0), Deleted: e.Kind.IsDelete()}
	if e.Kind.IsDelete() {
		return s, nil
	}
	content, ok := resolveLocalOnly(e.Content)
	if !ok {
		return s, nil
	}
	if err := json.Unmarshal(content, &s.Values); err != nil {
		return nil, WrapError(ErrValidation, err, "secret event %x: invalid json", e.ID[:4])
	}
	return s, nil
}

// Secrets is the typed-entity facade for per-program configuration.
type Secrets struct{ space *Space }

func (s *Space) Secrets() *Secrets { return &Secrets{space: s} }

// Mutate signs and ingests a MutateSecret event for programID. Content is
// always stored as a bare HashLink (never inlined), so the value never
// lands in the events table or in a gossiped event — only a node that
// already holds the blob locally can resolve it back (see
// Space.resolveLocalOnly).
func (s *Secrets) Mutate(author ed25519.PrivateKey, programID uuid.UUID, values map[string]string) (*Secret, error) {
	content, err := json.Marshal(values)
	if err != nil {
		return nil, WrapError(ErrIO, err, "marshal secret values")
	}
	e, err := s.space.signAndIngestBare(author, KindMutateSecret, programID, nil, content)
	if err != nil {
		return nil, err
	}
	return &Secret{ProgramID: programID, Values: values, CreatedAt: time.Unix(e.CreatedAt, 0)}, nil
}

// Delete ingests a DeleteSecret event for programID.
func (s *Secrets) Delete(author ed25519.PrivateKey, programID uuid.UUID) error {
	_, err := s.space.signAndIngestBare(author, KindDeleteSecret, programID, nil, nil)
	return err
}

// Get returns the latest Secret projection for programID, resolving content
// only from the local blob store — never fetched from remote peers.
func (s *Secrets) Get(programID uuid.UUID) (*Secret, error) {
	mutated, mErr := s.space.Store.LatestOf(KindMutateSecret, programID.String())
	deleted, dErr := s.space.Store.LatestOf(KindDeleteSecret, programID.String())
	latest, err := pickLatest(mutated, mErr, deleted, dErr)
	if err != nil {
		return nil, err
	}
	return SecretFromEvent(latest, s.space.resolveLocalOnly)
}

// resolveLocalOnly resolves a HashLink without ever reaching out over the
// network: inlined values resolve directly; bare links resolve only if
// already present in the local BlobStore.
func (s *Space) resolveLocalOnly(link HashLink) ([]byte, bool) {
	if link.Value != nil {
		return []byte(link.Value), true
	}
	has, err := s.Blobs.Has(bgCtx, link.Hash)
	if err != nil || !has {
		return nil, false
	}
	b, err := s.Blobs.Get(bgCtx, link.Hash)
	if err != nil {
		return nil, false
	}
	return b, true
}
