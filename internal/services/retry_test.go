package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-cooler-backend/internal/repo"
)

func TestWithCASRetry_ConflictThenSuccess(t *testing.T) {
	calls := 0
	err := withCASRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return repo.ErrVersionConflict
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestWithCASRetry_ExhaustionSurfacesConflict(t *testing.T) {
	calls := 0
	err := withCASRetry(context.Background(), func() error {
		calls++
		return repo.ErrVersionConflict
	})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if calls != casMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", casMaxAttempts, calls)
	}
}

func TestWithCASRetry_NonConflictErrorIsNotRetried(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := withCASRetry(context.Background(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the original error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("non-contention failures abort immediately; got %d calls", calls)
	}
}

func TestWithCASRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withCASRetry(ctx, func() error {
		calls++
		cancel()
		return repo.ErrVersionConflict
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("cancellation must stop the loop; got %d calls", calls)
	}
}
