package core

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// Table is the projection of a MutateTable event: a JSON schema identified
// by its own content hash, which Rows reference via the "sch" tag.
type Table struct {
	ID         uuid.UUID
	SchemaHash [32]byte
	SchemaJSON []byte
	CreatedAt  time.Time
	Deleted    bool
}

// TableFromEvent resolves a Table projection from a MutateTable/DeleteTable
// event.
func TableFromEvent(e *Event, resolve func(HashLink) ([]byte, error)) (*Table, error) {
	id, ok := e.DataID()
	if !ok {
		return nil, NewError(ErrValidation, "table event %x missing id tag", e.ID[:4])
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, NewError(ErrValidation, "table event %x: invalid id tag", e.ID[:4])
	}
	t := &Table{ID: uid, CreatedAt: time.Unix(e.CreatedAt, 0), Deleted: e.Kind.IsDelete()}
	if e.Kind.IsDelete() {
		return t, nil
	}
	schema, err := resolve(e.Content)
	if err != nil {
		return nil, err
	}
	t.SchemaJSON = schema
	t.SchemaHash = e.Content.Hash
	return t, nil
}

// Validate checks candidate against this table's JSON schema.
func (t *Table) Validate(candidate []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(t.SchemaJSON)
	docLoader := gojsonschema.NewBytesLoader(candidate)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return WrapError(ErrValidation, err, "schema validation error")
	}
	if !result.Valid() {
		msg := "row does not conform to schema"
		if errs := result.Errors(); len(errs) > 0 {
			msg = errs[0].String()
		}
		return NewError(ErrValidation, "%s", msg)
	}
	return nil
}

// Tables is the typed-entity facade for JSON-schema tables within a Space.
type Tables struct{ space *Space }

func (s *Space) Tables() *Tables { return &Tables{space: s} }

// Mutate signs and ingests a MutateTable event carrying schemaJSON as
// content. The table's identity hash is sha256(schemaJSON), the value rows
// will reference via their "sch" tag.
func (t *Tables) Mutate(author ed25519.PrivateKey, id uuid.UUID, schemaJSON []byte) (*Table, error) {
	if !json.Valid(schemaJSON) {
		return nil, NewError(ErrValidation, "table schema is not valid JSON")
	}
	e, err := t.space.signAndIngest(author, KindMutateTable, id, nil, schemaJSON)
	if err != nil {
		return nil, err
	}
	return &Table{ID: id, SchemaHash: sha256.Sum256(schemaJSON), SchemaJSON: schemaJSON, CreatedAt: time.Unix(e.CreatedAt, 0)}, nil
}

// Delete ingests a DeleteTable event for id.
func (t *Tables) Delete(author ed25519.PrivateKey, id uuid.UUID) error {
	_, err := t.space.signAndIngest(author, KindDeleteTable, id, nil, nil)
	return err
}

// Get returns the latest projection for id.
func (t *Tables) Get(id uuid.UUID) (*Table, error) {
	mutated, mErr := t.space.Store.LatestOf(KindMutateTable, id.String())
	deleted, dErr := t.space.Store.LatestOf(KindDeleteTable, id.String())
	latest, err := pickLatest(mutated, mErr, deleted, dErr)
	if err != nil {
		return nil, err
	}
	return TableFromEvent(latest, t.space.resolveContent)
}

// GetBySchemaHash loads the Table whose content hash equals hash — the
// lookup Row writes use to locate the schema named by a "sch" tag.
func (t *Tables) GetBySchemaHash(hash [32]byte) (*Table, error) {
	bytes, err := t.space.resolveContent(HashLinkBare(hash, nil))
	if err != nil {
		return nil, NewError(ErrNotFound, "no table with schema hash %x", hash[:4])
	}
	return &Table{SchemaHash: hash, SchemaJSON: bytes}, nil
}

// List returns the latest non-deleted Table projections, newest first.
func (t *Tables) List(offset, limit int) ([]*Table, error) {
	events, err := t.space.Store.List(KindMutateTable, 0, offset+limit+64)
	if err != nil {
		return nil, err
	}
	var out []*Table
	for _, e := range events {
		id, _ := e.DataID()
		uid, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		table, err := t.Get(uid)
		if err != nil || table.Deleted {
			continue
		}
		out = append(out, table)
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
