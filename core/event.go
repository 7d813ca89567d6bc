package core

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/b5/squiggle/internal/canonjson"
)

// Kind is the closed set of event kinds. Each maps to a stable
// numeric code so the canonical tuple hashes identically across versions of
// this code that add new kinds at the end of the list.
type Kind int

const (
	KindMutateUser Kind = iota
	KindDeleteUser
	KindMutateSpace
	KindDeleteSpace
	KindMutateProgram
	KindDeleteProgram
	KindMutateTable
	KindDeleteTable
	KindMutateRow
	KindDeleteRow
	KindMutateSecret
	KindDeleteSecret
)

var kindNames = map[Kind]string{
	KindMutateUser:    "MutateUser",
	KindDeleteUser:    "DeleteUser",
	KindMutateSpace:   "MutateSpace",
	KindDeleteSpace:   "DeleteSpace",
	KindMutateProgram: "MutateProgram",
	KindDeleteProgram: "DeleteProgram",
	KindMutateTable:   "MutateTable",
	KindDeleteTable:   "DeleteTable",
	KindMutateRow:     "MutateRow",
	KindDeleteRow:     "DeleteRow",
	KindMutateSecret:  "MutateSecret",
	KindDeleteSecret:  "DeleteSecret",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsDelete reports whether k is one of the Delete* kinds.
func (k Kind) IsDelete() bool {
	switch k {
	case KindDeleteUser, KindDeleteSpace, KindDeleteProgram, KindDeleteTable, KindDeleteRow, KindDeleteSecret:
		return true
	default:
		return false
	}
}

// Tag is an ordered (name, value, optional hint) triple. The core only
// interprets tag names "id" and "sch"; any other name passes through
// untouched for forward compatibility.
type Tag struct {
	Name  string
	Value string
	Hint  string
}

// HashLink is either a bare content hash or an inlined value carrying the
// same hash.
type HashLink struct {
	Hash  [32]byte
	Value json.RawMessage // nil when not inlined
	Size  *int64          // optional known size when bare
}

// HashLinkFromBytes builds an inlined HashLink over raw bytes.
func HashLinkFromBytes(b []byte) HashLink {
	return HashLink{Hash: sha256.Sum256(b), Value: append(json.RawMessage(nil), b...)}
}

// HashLinkBare builds a bare HashLink, optionally with a known size.
func HashLinkBare(hash [32]byte, size *int64) HashLink {
	return HashLink{Hash: hash, Size: size}
}

func (h HashLink) HashHex() string { return hex.EncodeToString(h.Hash[:]) }

// MarshalJSON renders an inlined link as {"hash":hex,"value":<json>} and a
// bare one as the hex string alone.
func (h HashLink) MarshalJSON() ([]byte, error) {
	if h.Value != nil {
		return json.Marshal(struct {
			Hash  string          `json:"hash"`
			Value json.RawMessage `json:"value"`
		}{Hash: h.HashHex(), Value: h.Value})
	}
	return json.Marshal(h.HashHex())
}

// UnmarshalJSON accepts both the inlined and bare forms.
func (h *HashLink) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		b, err := hex.DecodeString(bare)
		if err != nil || len(b) != 32 {
			return fmt.Errorf("hashlink: invalid bare hash %q", bare)
		}
		copy(h.Hash[:], b)
		h.Value = nil
		return nil
	}
	var inlined struct {
		Hash  string          `json:"hash"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &inlined); err != nil {
		return fmt.Errorf("hashlink: %w", err)
	}
	b, err := hex.DecodeString(inlined.Hash)
	if err != nil || len(b) != 32 {
		return fmt.Errorf("hashlink: invalid inlined hash %q", inlined.Hash)
	}
	copy(h.Hash[:], b)
	h.Value = inlined.Value
	return nil
}

// Event is a signed, content-addressed record.
type Event struct {
	ID        [32]byte
	Pubkey    ed25519.PublicKey
	CreatedAt int64
	Kind      Kind
	Tags      []Tag
	Sig       []byte
	Content   HashLink
}

func (e *Event) IDHex() string  { return hex.EncodeToString(e.ID[:]) }
func (e *Event) SigHex() string { return hex.EncodeToString(e.Sig) }

// Tag returns the first tag value with the given name, and whether it was
// found.
func (e *Event) Tag(name string) (string, bool) {
	for _, t := range e.Tags {
		if t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}

// DataID returns the "id" tag value — the UUID of the logical entity this
// event mutates or deletes. Every kind carries one.
func (e *Event) DataID() (string, bool) { return e.Tag("id") }

// SchemaHash returns the "sch" tag value, present only on MutateRow events.
func (e *Event) SchemaHash() (string, bool) { return e.Tag("sch") }

// canonicalTuple renders the (version, pubkey, created_at, kind, tags,
// content_hash) 6-tuple as canonical JSON for signing. version is fixed
// at 0.
func canonicalTuple(pubkey ed25519.PublicKey, createdAt int64, kind Kind, tags []Tag, contentHash [32]byte) []byte {
	tagArr := make(canonjson.Array, len(tags))
	for i, t := range tags {
		elems := canonjson.Array{canonjson.String(t.Name), canonjson.String(t.Value)}
		if t.Hint != "" {
			elems = append(elems, canonjson.String(t.Hint))
		}
		tagArr[i] = elems
	}
	tuple := canonjson.Array{
		canonjson.Int64(0),
		canonjson.String(hex.EncodeToString(pubkey)),
		canonjson.Int64(createdAt),
		canonjson.Int64(int64(kind)),
		tagArr,
		canonjson.String(hex.EncodeToString(contentHash[:])),
	}
	return canonjson.Marshal(tuple)
}

// computeID returns H(0, pubkey, created_at, kind, tags, content_hash).
func computeID(pubkey ed25519.PublicKey, createdAt int64, kind Kind, tags []Tag, contentHash [32]byte) [32]byte {
	return sha256.Sum256(canonicalTuple(pubkey, createdAt, kind, tags, contentHash))
}

// wireEvent is the JSON transport form of an Event, used for gossip
// broadcast and nothing else: the authoritative encoding for signing and
// storage is the canonical tuple above.
type wireEvent struct {
	Pubkey    string   `json:"pubkey"`
	CreatedAt int64    `json:"created_at"`
	Kind      Kind     `json:"kind"`
	Tags      []Tag    `json:"tags"`
	Sig       string   `json:"sig"`
	Content   HashLink `json:"content"`
}

// EncodeEvent serializes e for transport over GossipBus.
func EncodeEvent(e *Event) ([]byte, error) {
	return json.Marshal(wireEvent{
		Pubkey:    hex.EncodeToString(e.Pubkey),
		CreatedAt: e.CreatedAt,
		Kind:      e.Kind,
		Tags:      e.Tags,
		Sig:       hex.EncodeToString(e.Sig),
		Content:   e.Content,
	})
}

// DecodeEvent parses a gossip payload back into an Event, recomputing its ID
// from the carried fields. Callers must still call EventCodec.Verify (or
// rely on EventStore.Ingest to do so) before trusting the result.
func DecodeEvent(data []byte) (*Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	pub, err := hex.DecodeString(w.Pubkey)
	if err != nil {
		return nil, fmt.Errorf("decode event: invalid pubkey: %w", err)
	}
	sig, err := hex.DecodeString(w.Sig)
	if err != nil {
		return nil, fmt.Errorf("decode event: invalid sig: %w", err)
	}
	e := &Event{
		Pubkey:    ed25519.PublicKey(pub),
		CreatedAt: w.CreatedAt,
		Kind:      w.Kind,
		Tags:      w.Tags,
		Sig:       sig,
		Content:   w.Content,
	}
	e.ID = computeID(e.Pubkey, e.CreatedAt, e.Kind, e.Tags, e.Content.Hash)
	return e, nil
}
