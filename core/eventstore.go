package core

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// inlineThreshold is the largest content size Space.signAndIngest inlines
// alongside the hash, so search can operate locally on that content.
const inlineThreshold = 4096

const eventStoreSchema = `
CREATE TABLE IF NOT EXISTS events (
	id            TEXT PRIMARY KEY,
	pubkey        TEXT NOT NULL,
	created_at    INTEGER NOT NULL,
	kind          INTEGER NOT NULL,
	schema_hash   TEXT,
	data_id       TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	content_bytes BLOB,
	tags          TEXT NOT NULL,
	sig           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_kind_data_created ON events(kind, data_id, created_at);
CREATE INDEX IF NOT EXISTS idx_events_schema ON events(schema_hash);

CREATE TABLE IF NOT EXISTS capabilities (
	iss   TEXT NOT NULL,
	aud   TEXT NOT NULL,
	sub   TEXT NOT NULL,
	cmd   TEXT NOT NULL,
	pol   TEXT NOT NULL,
	nonce TEXT NOT NULL,
	exp   INTEGER,
	nbf   INTEGER,
	sig   TEXT NOT NULL
);
`

// EventStore is the durable, queryable per-space event index. A single
// sync.Mutex serializes writes and provides linearizable reads against a
// consistent snapshot.
type EventStore struct {
	mu    sync.Mutex
	db    *sql.DB
	codec *EventCodec
	log   *logrus.Entry
	path  string
}

// OpenEventStore opens (creating if absent) the SQLite-backed index at path.
func OpenEventStore(path string, codec *EventCodec, log *logrus.Logger) (*EventStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, WrapError(ErrIO, err, "open event store %s", path)
	}
	if _, err := db.Exec(eventStoreSchema); err != nil {
		db.Close()
		return nil, WrapError(ErrIO, err, "migrate event store %s", path)
	}
	return &EventStore{
		db:    db,
		codec: codec,
		log:   log.WithField("component", "eventstore").WithField("path", path),
		path:  path,
	}, nil
}

// Close releases the underlying SQLite handle.
func (s *EventStore) Close() error { return s.db.Close() }

// Path returns the on-disk file this store was opened from (used by
// Sharing to snapshot the database).
func (s *EventStore) Path() string { return s.path }

// Ingest verifies e's signature and upserts it by id. Re-ingesting an
// already-present id is a no-op.
func (s *EventStore) Ingest(e *Event) error {
	if err := s.codec.VerifyRow(e); err != nil {
		recordRejected(string(errKindOf(err)))
		return err
	}
	dataID, _ := e.DataID()
	schemaHash := sql.NullString{}
	if sch, ok := e.SchemaHash(); ok {
		schemaHash = sql.NullString{String: sch, Valid: true}
	}
	tagsJSON, err := json.Marshal(e.Tags)
	if err != nil {
		return WrapError(ErrIO, err, "marshal tags for event %x", e.ID[:4])
	}

	var contentBytes []byte
	if e.Content.Value != nil {
		contentBytes = []byte(e.Content.Value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO events (id, pubkey, created_at, kind, schema_hash, data_id, content_hash, content_bytes, tags, sig)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.IDHex(), hex.EncodeToString(e.Pubkey), e.CreatedAt, int(e.Kind), schemaHash, dataID, e.Content.HashHex(), contentBytes, string(tagsJSON), e.SigHex(),
	)
	if err != nil {
		return WrapError(ErrIO, err, "ingest event %x", e.ID[:4])
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		s.log.WithField("event", e.IDHex()).Debug("duplicate event, ignored")
	} else {
		s.log.WithField("event", e.IDHex()).WithField("kind", e.Kind.String()).Debug("ingested event")
		recordIngested(e.Kind)
	}
	return nil
}

// scanEvent scans a single events row into an Event.
func scanEvent(scan func(dest ...interface{}) error) (*Event, error) {
	var (
		idHex, pubkeyHex, dataID, contentHashHex, tagsJSON, sigHex string
		createdAt                                                  int64
		kind                                                        int
		schemaHash                                                  sql.NullString
		contentBytes                                                []byte
	)
	if err := scan(&idHex, &pubkeyHex, &createdAt, &kind, &schemaHash, &dataID, &contentHashHex, &contentBytes, &tagsJSON, &sigHex); err != nil {
		return nil, err
	}
	idB, err := hex.DecodeString(idHex)
	if err != nil || len(idB) != 32 {
		return nil, fmt.Errorf("corrupt event row: bad id %q", idHex)
	}
	pubB, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		return nil, fmt.Errorf("corrupt event row: bad pubkey %q", pubkeyHex)
	}
	hashB, err := hex.DecodeString(contentHashHex)
	if err != nil || len(hashB) != 32 {
		return nil, fmt.Errorf("corrupt event row: bad content hash %q", contentHashHex)
	}
	sigB, err := hex.DecodeString(sigHex)
	if err != nil {
		return nil, fmt.Errorf("corrupt event row: bad sig %q", sigHex)
	}
	var tags []Tag
	if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
		return nil, fmt.Errorf("corrupt event row: bad tags: %w", err)
	}

	e := &Event{
		CreatedAt: createdAt,
		Kind:      Kind(kind),
		Tags:      tags,
		Sig:       sigB,
	}
	copy(e.ID[:], idB)
	e.Pubkey = pubB
	copy(e.Content.Hash[:], hashB)
	if contentBytes != nil {
		e.Content.Value = append(json.RawMessage(nil), contentBytes...)
	}
	return e, nil
}

// LatestOf returns the most recent event for (kind, dataID), ties broken by
// the lexicographically greater id.
func (s *EventStore) LatestOf(kind Kind, dataID string) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(
		`SELECT id, pubkey, created_at, kind, schema_hash, data_id, content_hash, content_bytes, tags, sig
		 FROM events WHERE kind = ? AND data_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		int(kind), dataID,
	)
	e, err := scanEvent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, NewError(ErrNotFound, "no %s event for id %s", kind, dataID)
	}
	if err != nil {
		return nil, WrapError(ErrIO, err, "latest_of %s %s", kind, dataID)
	}
	return e, nil
}

// List returns the latest-per-data_id projection for kind, newest first.
func (s *EventStore) List(kind Kind, offset, limit int) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, pubkey, created_at, kind, schema_hash, data_id, content_hash, content_bytes, tags, sig FROM events e
		 WHERE kind = ? AND id = (
			SELECT id FROM events WHERE kind = e.kind AND data_id = e.data_id
			ORDER BY created_at DESC, id DESC LIMIT 1
		 )
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		int(kind), limit, offset,
	)
	if err != nil {
		return nil, WrapError(ErrIO, err, "list %s", kind)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListAll returns every event of kind, newest first, without collapsing to
// one row per data_id — unlike List, this includes superseded history.
func (s *EventStore) ListAll(kind Kind, offset, limit int) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, pubkey, created_at, kind, schema_hash, data_id, content_hash, content_bytes, tags, sig
		 FROM events WHERE kind = ?
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		int(kind), limit, offset,
	)
	if err != nil {
		return nil, WrapError(ErrIO, err, "list_all %s", kind)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// Search performs a case-insensitive substring match against inlined
// content bytes, newest-first. kind is optional (nil matches all kinds).
func (s *EventStore) Search(kind *Kind, substring string, offset, limit int) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := "%" + strings.ToLower(substring) + "%"
	query := `SELECT id, pubkey, created_at, kind, schema_hash, data_id, content_hash, content_bytes, tags, sig
		FROM events WHERE content_bytes IS NOT NULL AND LOWER(content_bytes) LIKE ?`
	args := []interface{}{needle}
	if kind != nil {
		query += " AND kind = ?"
		args = append(args, int(*kind))
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, WrapError(ErrIO, err, "search %q", substring)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// RowsBySchema returns MutateRow events for the given schema content hash.
func (s *EventStore) RowsBySchema(schemaHash string, offset, limit int) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, pubkey, created_at, kind, schema_hash, data_id, content_hash, content_bytes, tags, sig FROM events
		 WHERE kind = ? AND schema_hash = ?
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		int(KindMutateRow), schemaHash, limit, offset,
	)
	if err != nil {
		return nil, WrapError(ErrIO, err, "rows_by_schema %s", schemaHash)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// Has reports whether an event with the given id is already present
// (used by merge_db to dedup).
func (s *EventStore) Has(idHex string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM events WHERE id = ?`, idHex).Scan(&n); err != nil {
		return false, WrapError(ErrIO, err, "has %s", idHex)
	}
	return n > 0, nil
}

func collectEvents(rows *sql.Rows) ([]*Event, error) {
	var out []*Event
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, WrapError(ErrIO, err, "scan event row")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(ErrIO, err, "iterate event rows")
	}
	return out, nil
}

// CheckCapability reports whether the capabilities table narrows access for
// (iss, cmd). The core itself treats an empty capabilities table as "all
// caps for local user"; this is a hook for a future
// capability-gated authorization layer.
func (s *EventStore) CheckCapability(iss, cmd string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM capabilities`).Scan(&n); err != nil {
		return false, WrapError(ErrIO, err, "check capabilities")
	}
	if n == 0 {
		return true, nil
	}
	var matched int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM capabilities WHERE iss = ? AND cmd = ?`, iss, cmd).Scan(&matched); err != nil {
		return false, WrapError(ErrIO, err, "check capabilities")
	}
	return matched > 0, nil
}
