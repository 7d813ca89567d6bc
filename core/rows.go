package core

import (
	"crypto/ed25519"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Row is the projection of a MutateRow/DeleteRow event: a JSON value that
// validated against some Table's schema at write time. A row whose schema
// has since changed is still returned as-is on read — validation happens
// on write, not on read.
type Row struct {
	ID         uuid.UUID
	SchemaHash [32]byte
	Content    json.RawMessage
	CreatedAt  time.Time
	Deleted    bool
}

// RowFromEvent resolves a Row projection from a MutateRow/DeleteRow event.
func RowFromEvent(e *Event, resolve func(HashLink) ([]byte, error)) (*Row, error) {
	id, ok := e.DataID()
	if !ok {
		return nil, NewError(ErrValidation, "row event %x missing id tag", e.ID[:4])
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, NewError(ErrValidation, "row event %x: invalid id tag", e.ID[:4])
	}
	r := &Row{ID: uid, CreatedAt: time.Unix(e.CreatedAt, 0), Deleted: e.Kind.IsDelete()}
	if sch, ok := e.SchemaHash(); ok {
		if h, err := decodeHashHex(sch); err == nil {
			r.SchemaHash = h
		}
	}
	if e.Kind.IsDelete() {
		return r, nil
	}
	content, err := resolve(e.Content)
	if err != nil {
		return nil, err
	}
	r.Content = content
	return r, nil
}

// Rows is the typed-entity facade for schema-validated row instances.
type Rows struct{ space *Space }

func (s *Space) Rows() *Rows { return &Rows{space: s} }

// Mutate loads the table, validates the candidate against its schema,
// writes the value as a bare HashLink, and signs and ingests the event.
// No event is written if validation fails.
func (r *Rows) Mutate(author ed25519.PrivateKey, id uuid.UUID, schemaHash [32]byte, candidate json.RawMessage) (*Row, error) {
	table, err := r.space.Tables().GetBySchemaHash(schemaHash)
	if err != nil {
		return nil, err
	}
	if err := table.Validate(candidate); err != nil {
		return nil, err
	}
	tags := []Tag{{Name: "sch", Value: hashHexString(schemaHash)}}
	e, err := r.space.signAndIngestBare(author, KindMutateRow, id, tags, candidate)
	if err != nil {
		return nil, err
	}
	return &Row{ID: id, SchemaHash: schemaHash, Content: candidate, CreatedAt: time.Unix(e.CreatedAt, 0)}, nil
}

// Delete ingests a DeleteRow event for id. The "sch" tag is still attached,
// as every kind's tags carry an id, though delete events carry no content
// to validate.
func (r *Rows) Delete(author ed25519.PrivateKey, id uuid.UUID, schemaHash [32]byte) error {
	tags := []Tag{{Name: "sch", Value: hashHexString(schemaHash)}}
	_, err := r.space.signAndIngestBare(author, KindDeleteRow, id, tags, nil)
	return err
}

// Get returns the latest projection for id.
func (r *Rows) Get(id uuid.UUID) (*Row, error) {
	mutated, mErr := r.space.Store.LatestOf(KindMutateRow, id.String())
	deleted, dErr := r.space.Store.LatestOf(KindDeleteRow, id.String())
	latest, err := pickLatest(mutated, mErr, deleted, dErr)
	if err != nil {
		return nil, err
	}
	return RowFromEvent(latest, r.space.resolveContent)
}

// Query returns the latest, non-deleted Row projections for a schema,
// newest first.
func (r *Rows) Query(schemaHash [32]byte, offset, limit int) ([]*Row, error) {
	events, err := r.space.Store.RowsBySchema(hashHexString(schemaHash), 0, offset+limit+64)
	if err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]bool)
	var out []*Row
	for _, e := range events {
		id, _ := e.DataID()
		uid, err := uuid.Parse(id)
		if err != nil || seen[uid] {
			continue
		}
		seen[uid] = true
		row, err := r.Get(uid)
		if err != nil || row.Deleted {
			continue
		}
		out = append(out, row)
	}
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}
