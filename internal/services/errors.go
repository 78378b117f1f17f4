// Package services defines the business logic for the cooler service
// lifecycle: the complaint ledger, the state-machine engine, evidence
// verification, and read-side status projections. This file centralizes
// common service-level error values so that they can be consistently
// returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
//
// Taxonomy:
//   - Contention (ErrVersionConflict): recovered locally via bounded retry;
//     only surfaced when retries exhaust, as a transient-failure message.
//   - Policy violations (ConflictingOpenComplaintError, ErrIllegalTransition):
//     surfaced directly, never retried automatically.
//   - Input validity (ErrInvalidEvidence): surfaced with guidance to
//     resubmit; no state mutated.
//   - External dependency failure (ErrVerificationUnavailable): surfaced as
//     "try again later"; the submission persists as pending so only the
//     judgment needs retrying, not the upload.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrCoolerNotFound indicates the referenced cooler does not exist.
	ErrCoolerNotFound = errors.New("cooler not found")

	// ErrComplaintNotFound indicates the referenced complaint does not exist.
	ErrComplaintNotFound = errors.New("complaint not found")

	// ErrSubmissionNotFound indicates the referenced evidence submission
	// does not exist.
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrIllegalTransition is returned when an event does not match any
	// legal transition for the cooler's current state. The event is rejected
	// with zero side effects.
	ErrIllegalTransition = errors.New("event not legal in current cooler state")

	// ErrInvalidEvidence is returned when an evidence submission's image
	// references do not all resolve to retrievable, non-empty images. No
	// state is touched and no judgment call is spent.
	ErrInvalidEvidence = errors.New("evidence images missing or unreadable")

	// ErrVerificationUnavailable is returned when the judgment oracle stays
	// unreachable after bounded retries. The submission remains pending and
	// judgment can be re-driven later without resubmitting evidence.
	ErrVerificationUnavailable = errors.New("verification temporarily unavailable")

	// ErrVersionConflict is returned when a logical transition loses the
	// optimistic-concurrency race more times than the bounded retry allows.
	ErrVersionConflict = errors.New("record contention, retry the request")
)

// ConflictingOpenComplaintError rejects a duplicate report: the cooler
// already carries an open complaint, whose id is included so the caller can
// point the student at the existing entry instead of filing a second one.
type ConflictingOpenComplaintError struct {
	CoolerID            string
	ExistingComplaintID string
}

// Error implements the error interface.
func (e *ConflictingOpenComplaintError) Error() string {
	return fmt.Sprintf("cooler %s already has open complaint %s", e.CoolerID, e.ExistingComplaintID)
}
