package blankname_test

import (
	"testing"

	"github.com/b5/squiggle/internal/blankname"
)

func TestFromIsDeterministic(t *testing.T) {
	pub := []byte{10, 20, 30, 40, 50}
	a := blankname.From(pub)
	b := blankname.From(pub)
	if a != b {
		t.Fatalf("expected deterministic output, got %q and %q", a, b)
	}
}

func TestFromDiffersAcrossKeys(t *testing.T) {
	a := blankname.From([]byte{1, 2, 3})
	b := blankname.From([]byte{200, 201, 202})
	if a == b {
		t.Fatalf("expected distinct pubkeys to usually produce distinct blanknames, both were %q", a)
	}
}

func TestFromHandlesShortKeys(t *testing.T) {
	if got := blankname.From(nil); got == "" {
		t.Fatalf("expected a non-empty label even for an empty key")
	}
	if got := blankname.From([]byte{1}); got == "" {
		t.Fatalf("expected a non-empty label for a 1-byte key")
	}
}
