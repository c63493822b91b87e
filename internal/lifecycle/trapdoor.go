package lifecycle

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// Trapdoor is an ephemeral handle for a query-token equivalence class
// with a bounded lifetime. Its lifecycle is created -> (rotated |
// revoked | expired); all three terminal states are absorbing, mirroring
// the teacher's Room, whose Close() transition is likewise one-way
// (room.go: IsClosed never reverts once Close has run).
type Trapdoor struct {
	ID        string
	UserID    string
	Query     string
	Epoch     int64
	CreatedAt time.Time
	ExpiresAt time.Time
	UsageCount uint64
	MaxUsage   uint64
	IsRevoked  bool
}

// newTrapdoorID mints a fresh random 16-byte id, base64 encoded.
func newTrapdoorID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// IsExpired reports whether the trapdoor's expiry has passed as of now.
// A trapdoor at or past expiresAt is functionally equivalent to revoked.
func (t *Trapdoor) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsUsable reports whether the trapdoor can still be matched against
// queries: not revoked and not expired.
func (t *Trapdoor) IsUsable(now time.Time) bool {
	return !t.IsRevoked && !t.IsExpired(now)
}
