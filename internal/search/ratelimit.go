package search

import (
	"errors"
	"strconv"
	"sync"

	"golang.org/x/time/rate"
)

// DefaultMaxQueriesPerEpoch is the default per-user quota.
const DefaultMaxQueriesPerEpoch = 100

// burstPerSecond bounds how fast a single user can spend its epoch
// quota, independent of the hard per-epoch count: a user should not
// be able to exhaust 100 queries in the same instant.
const burstPerSecond = 5

// ErrRateLimitExceeded indicates a user has exhausted its query quota
// for the current epoch.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// RateLimiter enforces a hard per-(userId, epoch) query quota, reset
// at every epoch roll, plus a short-window burst limiter so the quota
// cannot be spent in a single instant. Adapted from the teacher's
// per-IP double-checked-locking limiter map
// (internal/relay/ratelimit.go): the hard quota replaces the
// teacher's continuous token-bucket rate (spec §4.4 scopes rate
// limiting to discrete epochs), while the teacher's underlying
// `x/time/rate.Limiter` is kept for the burst dimension.
type RateLimiter struct {
	mu      sync.Mutex
	counts  map[string]int          // key: userID + epoch
	bursts  map[string]*rate.Limiter // key: userID
	maxPerE int
}

// NewRateLimiter creates a limiter with the given per-epoch quota.
func NewRateLimiter(maxQueriesPerEpoch int) *RateLimiter {
	if maxQueriesPerEpoch <= 0 {
		maxQueriesPerEpoch = DefaultMaxQueriesPerEpoch
	}
	return &RateLimiter{
		counts:  make(map[string]int),
		bursts:  make(map[string]*rate.Limiter),
		maxPerE: maxQueriesPerEpoch,
	}
}

// Allow increments the query count for (userID, epoch) and reports
// whether the quota and burst limiter both permit this query. Once
// either is exhausted, callers must not run the query.
func (rl *RateLimiter) Allow(userID string, epoch int64) bool {
	key := rateLimitKey(userID, epoch)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.counts[key] >= rl.maxPerE {
		return false
	}
	if !rl.burstLimiter(userID).Allow() {
		return false
	}
	rl.counts[key]++
	return true
}

// burstLimiter returns the per-user burst limiter, creating one on
// first use. Must be called with rl.mu held.
func (rl *RateLimiter) burstLimiter(userID string) *rate.Limiter {
	limiter, ok := rl.bursts[userID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(burstPerSecond), burstPerSecond)
		rl.bursts[userID] = limiter
	}
	return limiter
}

// Remaining reports how many queries are left for (userID, epoch).
func (rl *RateLimiter) Remaining(userID string, epoch int64) int {
	key := rateLimitKey(userID, epoch)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	remaining := rl.maxPerE - rl.counts[key]
	if remaining < 0 {
		return 0
	}
	return remaining
}

// EvictEpoch drops all counts for a rolled-off epoch, bounding map growth.
func (rl *RateLimiter) EvictEpoch(userID string, epoch int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.counts, rateLimitKey(userID, epoch))
}

func rateLimitKey(userID string, epoch int64) string {
	return userID + ":" + strconv.FormatInt(epoch, 10)
}
