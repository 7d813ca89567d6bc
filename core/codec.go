package core

import (
	"crypto/ed25519"
	"time"
)

// EventCodec signs and verifies events. It is stateless; the
// zero value is ready to use. Signs a raw digest with ed25519.Sign/Verify
// directly rather than a higher-level envelope format.
type EventCodec struct {
	// MaxClockSkew bounds how far into the future created_at may be before
	// Verify rejects the event outright.
	MaxClockSkew time.Duration
}

// NewEventCodec returns a codec with the default clock-skew tolerance.
func NewEventCodec() *EventCodec {
	return &EventCodec{MaxClockSkew: 5 * time.Minute}
}

// Sign computes id from the canonical tuple, signs it under authorSecret,
// and returns a fully formed Event.
func (c *EventCodec) Sign(authorSecret ed25519.PrivateKey, createdAt int64, kind Kind, tags []Tag, content HashLink) (*Event, error) {
	pub, ok := authorSecret.Public().(ed25519.PublicKey)
	if !ok {
		return nil, NewError(ErrIO, "author secret has no ed25519 public key")
	}
	id := computeID(pub, createdAt, kind, tags, content.Hash)
	sig := ed25519.Sign(authorSecret, id[:])
	return &Event{
		ID:        id,
		Pubkey:    pub,
		CreatedAt: createdAt,
		Kind:      kind,
		Tags:      tags,
		Sig:       sig,
		Content:   content,
	}, nil
}

// Verify recomputes id from e's fields and checks the signature.
func (c *EventCodec) Verify(e *Event) error {
	want := computeID(e.Pubkey, e.CreatedAt, e.Kind, e.Tags, e.Content.Hash)
	if want != e.ID {
		return NewError(ErrIDMismatch, "event %x: id does not match canonical tuple", e.ID[:4])
	}
	if len(e.Pubkey) != ed25519.PublicKeySize {
		return NewError(ErrInvalidSignature, "event %x: malformed pubkey", e.ID[:4])
	}
	if !ed25519.Verify(e.Pubkey, e.ID[:], e.Sig) {
		return NewError(ErrInvalidSignature, "event %x: signature does not verify", e.ID[:4])
	}
	if c.MaxClockSkew > 0 {
		skew := time.Unix(e.CreatedAt, 0).Sub(time.Now())
		if skew > c.MaxClockSkew {
			return NewError(ErrValidation, "event %x: created_at %s is %s ahead of local clock", e.ID[:4], time.Unix(e.CreatedAt, 0).Format(time.RFC3339), skew)
		}
	}
	return nil
}

// VerifyRow additionally checks the MutateRow-specific tag invariants:
// tags must carry both "sch" and "id".
func (c *EventCodec) VerifyRow(e *Event) error {
	if err := c.Verify(e); err != nil {
		return err
	}
	if e.Kind != KindMutateRow {
		return nil
	}
	if _, ok := e.SchemaHash(); !ok {
		return NewError(ErrValidation, "event %x: MutateRow missing sch tag", e.ID[:4])
	}
	if _, ok := e.DataID(); !ok {
		return NewError(ErrValidation, "event %x: MutateRow missing id tag", e.ID[:4])
	}
	return nil
}
