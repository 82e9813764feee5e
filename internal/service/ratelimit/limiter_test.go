package ratelimit

import "testing"

func TestAllowConsumesBurst(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if !l.Allow("buy", 3, 0) {
			t.Fatalf("expected token %d available", i)
		}
	}
	if l.Allow("buy", 3, 0) {
		t.Fatalf("expected bucket drained")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()
	if !l.Allow("buy", 1, 0) {
		t.Fatalf("expected buy token")
	}
	if l.Allow("buy", 1, 0) {
		t.Fatalf("expected buy drained")
	}
	if !l.Allow("sell", 1, 0) {
		t.Fatalf("expected sell unaffected")
	}
}
