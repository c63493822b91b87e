package lifecycle

import (
	"testing"
	"time"
)

func TestTrapdoorIsExpired(t *testing.T) {
	now := time.Now()
	td := &Trapdoor{ExpiresAt: now.Add(time.Hour)}

	if td.IsExpired(now) {
		t.Error("not yet expired")
	}
	if !td.IsExpired(now.Add(2 * time.Hour)) {
		t.Error("expected expired after ExpiresAt")
	}
}

func TestTrapdoorIsUsable(t *testing.T) {
	now := time.Now()
	td := &Trapdoor{ExpiresAt: now.Add(time.Hour)}

	if !td.IsUsable(now) {
		t.Error("expected usable trapdoor to report usable")
	}

	td.IsRevoked = true
	if td.IsUsable(now) {
		t.Error("a revoked trapdoor must never be usable")
	}
}

func TestNewTrapdoorIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := newTrapdoorID()
		if err != nil {
			t.Fatalf("newTrapdoorID failed: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate trapdoor id generated: %s", id)
		}
		seen[id] = true
	}
}
