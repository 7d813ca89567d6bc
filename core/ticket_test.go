package core_test

import (
	"testing"

	"github.com/b5/squiggle/core"
)

func TestTicketEncodeDecodeRoundTrip(t *testing.T) {
	want := core.Ticket{
		NodeAddr: "12D3KooWabc123@/ip4/127.0.0.1/tcp/4001",
		RootHash: [32]byte{1, 2, 3, 4, 5},
		Format:   core.HashSeq,
	}
	encoded := want.Encode()

	got, err := core.DecodeTicket(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.NodeAddr != want.NodeAddr || got.RootHash != want.RootHash || got.Format != want.Format {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestDecodeTicketRejectsGarbage(t *testing.T) {
	if _, err := core.DecodeTicket("not a ticket"); !core.IsKind(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation for garbage input, got %v", err)
	}
}

func TestDecodeTicketRejectsTruncated(t *testing.T) {
	full := core.Ticket{NodeAddr: "peer", RootHash: [32]byte{9}, Format: core.HashSeq}.Encode()
	if _, err := core.DecodeTicket(full[:len(full)/2]); !core.IsKind(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation for truncated ticket, got %v", err)
	}
}
