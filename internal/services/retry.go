// Package services – CAS retry policy
//
// Every logical transition in this package is a sequence of compare-and-swap
// writes; the first CAS to fail aborts the whole transition and the caller
// re-reads and retries from scratch. This file holds the shared bounded-retry
// loop: five attempts with exponential backoff and jitter, after which the
// conflict surfaces to the caller as ErrVersionConflict.
package services

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/tbourn/go-cooler-backend/internal/observability"
	"github.com/tbourn/go-cooler-backend/internal/repo"
)

const (
	casMaxAttempts  = 5
	casBaseBackoff  = 10 * time.Millisecond
	casBackoffLimit = 250 * time.Millisecond
)

// withCASRetry runs fn until it succeeds, fails with a non-contention error,
// or exhausts the attempt budget. fn must re-read current versions on every
// attempt; retrying a stale in-memory snapshot would just lose again.
func withCASRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < casMaxAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, repo.ErrVersionConflict) {
			return err
		}
		observability.CASConflictsTotal.Inc()
		d := casBaseBackoff << attempt
		if d > casBackoffLimit {
			d = casBackoffLimit
		}
		// Full jitter keeps colliding writers from re-colliding in lockstep.
		d = time.Duration(rand.Int63n(int64(d) + 1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
	return ErrVersionConflict
}
