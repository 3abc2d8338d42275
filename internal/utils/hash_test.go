package utils

import "testing"

func TestHash64Stable(t *testing.T) {
	// FNV-1a 64 offset basis.
	if got := Hash64(""); got != 0xcbf29ce484222325 {
		t.Fatalf("unexpected empty hash %x", got)
	}
	if Hash64("client-1") != Hash64("client-1") {
		t.Fatalf("expected stable hash")
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]string{"p1", "p2"})
	if len(a) != 16 {
		t.Fatalf("expected 16 hex chars, got %q", a)
	}
	if a == Fingerprint([]string{"p1p2"}) {
		t.Fatalf("expected line boundaries to matter")
	}
}
