package core_test

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/b5/squiggle/core"
)

func TestCodecSignVerifyRoundTrip(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	codec := core.NewEventCodec()

	content := core.HashLinkFromBytes([]byte(`{"hello":"world"}`))
	e, err := codec.Sign(priv, time.Now().Unix(), core.KindMutateUser, []core.Tag{{Name: "id", Value: "abc"}}, content)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := codec.Verify(e); err != nil {
		t.Fatalf("verify freshly signed event: %v", err)
	}
}

func TestCodecVerifyRejectsTamperedSignature(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	codec := core.NewEventCodec()

	content := core.HashLinkFromBytes([]byte(`{"a":1}`))
	e, err := codec.Sign(priv, time.Now().Unix(), core.KindMutateUser, []core.Tag{{Name: "id", Value: "abc"}}, content)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	e.Sig[0] ^= 0xff
	if err := codec.Verify(e); !core.IsKind(err, core.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for tampered sig, got %v", err)
	}
}

func TestCodecVerifyRejectsTamperedField(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	codec := core.NewEventCodec()

	content := core.HashLinkFromBytes([]byte(`{"a":1}`))
	e, err := codec.Sign(priv, time.Now().Unix(), core.KindMutateUser, []core.Tag{{Name: "id", Value: "abc"}}, content)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// Changing a signed field without re-signing must invalidate the id,
	// since id is computed from the canonical tuple.
	e.CreatedAt++
	if err := codec.Verify(e); !core.IsKind(err, core.ErrIDMismatch) {
		t.Fatalf("expected ErrIDMismatch for tampered created_at, got %v", err)
	}
}

func TestCodecVerifyRejectsFarFutureClock(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	codec := core.NewEventCodec()

	future := time.Now().Add(time.Hour).Unix()
	content := core.HashLinkFromBytes([]byte(`{}`))
	e, err := codec.Sign(priv, future, core.KindMutateUser, []core.Tag{{Name: "id", Value: "abc"}}, content)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := codec.Verify(e); !core.IsKind(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation for clock skew, got %v", err)
	}
}

func TestCodecVerifyRowRequiresSchemaAndID(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	codec := core.NewEventCodec()

	content := core.HashLinkFromBytes([]byte(`{"x":1}`))
	e, err := codec.Sign(priv, time.Now().Unix(), core.KindMutateRow, nil, content)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := codec.VerifyRow(e); !core.IsKind(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation for row missing sch/id tags, got %v", err)
	}

	e2, err := codec.Sign(priv, time.Now().Unix(), core.KindMutateRow, []core.Tag{
		{Name: "id", Value: "row-1"},
		{Name: "sch", Value: "deadbeef"},
	}, content)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := codec.VerifyRow(e2); err != nil {
		t.Fatalf("verify row with required tags: %v", err)
	}
}

func TestEncodeDecodeEventRoundTrip(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	codec := core.NewEventCodec()

	content := core.HashLinkFromBytes([]byte(`{"a":"b"}`))
	e, err := codec.Sign(priv, time.Now().Unix(), core.KindMutateTable, []core.Tag{{Name: "id", Value: "t-1"}}, content)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	data, err := core.EncodeEvent(e)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := core.DecodeEvent(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ID != e.ID {
		t.Fatalf("decoded id mismatch: got %x want %x", decoded.ID, e.ID)
	}
	if err := codec.Verify(decoded); err != nil {
		t.Fatalf("verify decoded event: %v", err)
	}
}
