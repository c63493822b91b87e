package storage

import (
	"context"
	"time"
)

// retryBackoff is the fixed exponential backoff schedule for transient
// get failures: 1s, 2s, 3s.
var retryBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 3 * time.Second}

// Retrying decorates a Backend so that Get is retried up to
// len(retryBackoff) times with the fixed backoff schedule on
// transient failure. Put and Delete are never retried and surface
// failures directly, per the propagation policy that distinguishes
// idempotent reads from mutating writes.
type Retrying struct {
	inner Backend
	sleep func(context.Context, time.Duration) error
}

// NewRetrying wraps inner with the get-retry policy.
func NewRetrying(inner Backend) *Retrying {
	return &Retrying{inner: inner, sleep: ctxSleep}
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Get retries on any error other than ErrNotFound, which is not
// transient and must not be retried.
func (r *Retrying) Get(ctx context.Context, key string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= len(retryBackoff); attempt++ {
		data, err := r.inner.Get(ctx, key)
		if err == nil || err == ErrNotFound {
			return data, err
		}
		lastErr = err
		if attempt < len(retryBackoff) {
			if sleepErr := r.sleep(ctx, retryBackoff[attempt]); sleepErr != nil {
				return nil, sleepErr
			}
		}
	}
	return nil, lastErr
}

func (r *Retrying) Put(ctx context.Context, key string, data []byte) error {
	return r.inner.Put(ctx, key, data)
}

func (r *Retrying) Delete(ctx context.Context, key string) error {
	return r.inner.Delete(ctx, key)
}

func (r *Retrying) Has(ctx context.Context, key string) (bool, error) {
	return r.inner.Has(ctx, key)
}

func (r *Retrying) List(ctx context.Context) ([]string, error) {
	return r.inner.List(ctx)
}

func (r *Retrying) Clear(ctx context.Context) error {
	return r.inner.Clear(ctx)
}
