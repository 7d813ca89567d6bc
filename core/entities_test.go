package core_test

import (
	"encoding/json"
	"testing"

	"github.com/b5/squiggle/core"
)

func TestUsersMutateGetDeleteRoundTrip(t *testing.T) {
	space, author := newTestSpace(t)
	id := mustUUID(t)

	if _, err := space.Users().Mutate(author, id, core.Profile{Username: "ada", Description: "mathematician"}); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	u, err := space.Users().Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.Profile.Username != "ada" || u.Deleted {
		t.Fatalf("unexpected user projection: %+v", u)
	}
	if u.DisplayName() != "ada" {
		t.Fatalf("expected DisplayName to use Username, got %q", u.DisplayName())
	}

	if err := space.Users().Delete(author, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	u, err = space.Users().Get(id)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if !u.Deleted {
		t.Fatalf("expected user to be deleted")
	}
}

func TestUserBlanknameWhenNoUsernameSet(t *testing.T) {
	space, author := newTestSpace(t)
	id := mustUUID(t)

	if _, err := space.Users().Mutate(author, id, core.Profile{}); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	u, err := space.Users().Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.DisplayName() != u.Blankname() || u.DisplayName() == "" {
		t.Fatalf("expected DisplayName to fall back to Blankname, got %q", u.DisplayName())
	}
}

func TestSpaceMetaMutateGetRoundTrip(t *testing.T) {
	space, author := newTestSpace(t)

	details := core.SpaceDetails{ID: space.ID, Name: "my space", Description: "test"}
	if _, err := space.SpaceMeta().Mutate(author, details); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	got, err := space.SpaceMeta().Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "my space" {
		t.Fatalf("unexpected space details: %+v", got)
	}
}

func TestTablesAndRowsValidateOnWrite(t *testing.T) {
	space, author := newTestSpace(t)

	schema := []byte(`{
		"type": "object",
		"properties": {"name": {"type": "string"}},
		"required": ["name"]
	}`)
	tableID := mustUUID(t)
	table, err := space.Tables().Mutate(author, tableID, schema)
	if err != nil {
		t.Fatalf("mutate table: %v", err)
	}

	rowID := mustUUID(t)
	valid := json.RawMessage(`{"name":"ok"}`)
	if _, err := space.Rows().Mutate(author, rowID, table.SchemaHash, valid); err != nil {
		t.Fatalf("mutate valid row: %v", err)
	}

	row, err := space.Rows().Get(rowID)
	if err != nil {
		t.Fatalf("get row: %v", err)
	}
	if string(row.Content) != string(valid) {
		t.Fatalf("row content mismatch: got %s", row.Content)
	}

	// An invalid candidate must be rejected and must not produce any event.
	badID := mustUUID(t)
	invalid := json.RawMessage(`{"age": 5}`)
	if _, err := space.Rows().Mutate(author, badID, table.SchemaHash, invalid); !core.IsKind(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation for invalid row content, got %v", err)
	}
	if _, err := space.Rows().Get(badID); !core.IsKind(err, core.ErrNotFound) {
		t.Fatalf("expected no event written for a rejected row, got %v", err)
	}
}

func TestTablesDeleteKeepsSchemaResolvable(t *testing.T) {
	space, author := newTestSpace(t)

	schema := []byte(`{"type": "object"}`)
	tableID := mustUUID(t)
	table, err := space.Tables().Mutate(author, tableID, schema)
	if err != nil {
		t.Fatalf("mutate table: %v", err)
	}

	if err := space.Tables().Delete(author, tableID); err != nil {
		t.Fatalf("delete table: %v", err)
	}
	got, err := space.Tables().Get(tableID)
	if err != nil {
		t.Fatalf("get table: %v", err)
	}
	if !got.Deleted {
		t.Fatalf("expected table to be deleted after a later DeleteTable event")
	}

	// The schema itself is still resolvable by hash even though the table
	// entity projection is deleted (rows written against it remain valid).
	if _, err := space.Tables().GetBySchemaHash(table.SchemaHash); err != nil {
		t.Fatalf("schema should remain content-addressable: %v", err)
	}
}

func TestSecretsGetIsLocalOnly(t *testing.T) {
	space, author := newTestSpace(t)
	programID := mustUUID(t)

	if _, err := space.Secrets().Mutate(author, programID, map[string]string{"token": "abc"}); err != nil {
		t.Fatalf("mutate secret: %v", err)
	}
	s, err := space.Secrets().Get(programID)
	if err != nil {
		t.Fatalf("get secret: %v", err)
	}
	if s.Values["token"] != "abc" {
		t.Fatalf("unexpected secret values: %+v", s.Values)
	}

	if err := space.Secrets().Delete(author, programID); err != nil {
		t.Fatalf("delete secret: %v", err)
	}
	s, err = space.Secrets().Get(programID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if !s.Deleted {
		t.Fatalf("expected secret to be deleted")
	}
}

func TestRowsQueryExcludesDeletedAndOtherSchemas(t *testing.T) {
	space, author := newTestSpace(t)

	schemaA := []byte(`{"type": "object"}`)
	tableA, err := space.Tables().Mutate(author, mustUUID(t), schemaA)
	if err != nil {
		t.Fatalf("mutate table a: %v", err)
	}
	schemaB := []byte(`{"type": "object", "properties": {"n": {"type": "number"}}}`)
	tableB, err := space.Tables().Mutate(author, mustUUID(t), schemaB)
	if err != nil {
		t.Fatalf("mutate table b: %v", err)
	}

	keep := mustUUID(t)
	if _, err := space.Rows().Mutate(author, keep, tableA.SchemaHash, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("mutate row keep: %v", err)
	}
	gone := mustUUID(t)
	if _, err := space.Rows().Mutate(author, gone, tableA.SchemaHash, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("mutate row gone: %v", err)
	}
	if err := space.Rows().Delete(author, gone, tableA.SchemaHash); err != nil {
		t.Fatalf("delete row gone: %v", err)
	}
	other := mustUUID(t)
	if _, err := space.Rows().Mutate(author, other, tableB.SchemaHash, json.RawMessage(`{"n":1}`)); err != nil {
		t.Fatalf("mutate row other schema: %v", err)
	}

	rows, err := space.Rows().Query(tableA.SchemaHash, 0, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != keep {
		t.Fatalf("expected only the live row under tableA, got %+v", rows)
	}
}
