// Package services – LifecycleService
//
// This file implements the state machine that drives a cooler's service
// record from "issue reported" through "evidence submitted" to "verified
// resolved" or "rejected, needs rework". The engine is the sole writer of
// Cooler.State and Complaint.Status; every transition is applied through the
// repo's compare-and-swap helpers under the shared bounded-retry policy, and
// any event that matches no legal transition is rejected without side
// effects.
//
// Write ordering: a verdict is persisted on the submission before the
// complaint or cooler are touched, so a crash mid-transition leaves the
// system re-driveable — the already-decided verdict is simply reapplied,
// idempotently, on the next delivery.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-cooler-backend/internal/domain"
	"github.com/tbourn/go-cooler-backend/internal/observability"
	"github.com/tbourn/go-cooler-backend/internal/repo"
)

// EvidenceJudge is the verifier contract the lifecycle engine depends on.
// Implementations must not hold any record-store lock while judging; the
// engine creates the submission first, calls Judge independently, and applies
// the verdict through its own CAS afterwards.
type EvidenceJudge interface {
	// ValidateRefs fails with ErrInvalidEvidence when any reference does not
	// resolve to a retrievable, non-empty image.
	ValidateRefs(ctx context.Context, refs ...string) error
	// Judge produces the two-valued verdict plus a human-readable reason for
	// a pending submission. Returns ErrVerificationUnavailable when the
	// oracle stays unreachable after bounded retries.
	Judge(ctx context.Context, sub *domain.Submission) (domain.Verdict, string, error)
}

// LifecycleService owns cooler state transitions and verdict application.
type LifecycleService struct {
	DB       *gorm.DB
	Verifier EvidenceJudge
}

// SubmitEvidence records a new pending evidence submission for coolerID and
// moves the record into evidence_submitted.
//
// Guards, checked before any state is touched:
//   - both image references (and the TDS reference, when present) must
//     resolve to non-empty stored images, else ErrInvalidEvidence;
//   - the cooler must be in reported or rejected state for complaint-driven
//     work, or clean with no judgment in flight for routine maintenance;
//   - a caller-supplied complaintID must match the cooler's open complaint.
//
// Routine (complaint-less) submissions from a clean cooler do not enter the
// complaint state machine: the cooler stays clean with the pending
// submission attached, and only lastVerifiedAt moves on approval.
func (s *LifecycleService) SubmitEvidence(ctx context.Context, coolerID string, complaintID *string, beforeRef, afterRef string, tdsRef *string, technicianID string) (*domain.Submission, *domain.Cooler, error) {
	tr := otel.Tracer("services/LifecycleService")
	ctx, span := tr.Start(ctx, "SubmitEvidence",
		trace.WithAttributes(
			attribute.String("cooler.id", coolerID),
			attribute.String("technician.id", technicianID),
		),
	)
	defer span.End()

	refs := []string{beforeRef, afterRef}
	if tdsRef != nil {
		refs = append(refs, *tdsRef)
	}
	if err := s.Verifier.ValidateRefs(ctx, refs...); err != nil {
		return nil, nil, err
	}

	var (
		submission *domain.Submission
		cooler     *domain.Cooler
	)
	err := withCASRetry(ctx, func() error {
		cur, err := repo.GetCooler(ctx, s.DB, coolerID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrCoolerNotFound
		}
		if err != nil {
			return err
		}
		if !cur.InvariantHolds() {
			logInvariantViolation(cur)
			return ErrIllegalTransition
		}

		var subComplaintID *string
		switch cur.State {
		case domain.StateReported, domain.StateRejected:
			if complaintID != nil && *complaintID != *cur.CurrentComplaintID {
				return ErrIllegalTransition
			}
			subComplaintID = cur.CurrentComplaintID
		case domain.StateClean:
			// Routine maintenance: no complaint to attach, and only one
			// judgment may be in flight per cooler.
			if complaintID != nil || cur.PendingSubmissionID != nil {
				return ErrIllegalTransition
			}
		default:
			// evidence_submitted: judgment already in flight.
			return ErrIllegalTransition
		}

		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			sub, err := repo.CreateSubmission(ctx, tx, coolerID, subComplaintID, beforeRef, afterRef, tdsRef, technicianID)
			if err != nil {
				return err
			}
			updated, err := repo.UpdateCoolerCAS(ctx, tx, coolerID, cur.Version, technicianID, func(co *domain.Cooler) {
				co.PendingSubmissionID = &sub.ID
				if subComplaintID != nil {
					co.State = domain.StateEvidenceSubmitted
				}
			})
			if err != nil {
				return err
			}
			submission = sub
			cooler = updated
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return submission, cooler, nil
}

// ApplyVerdict persists a decided verdict on a submission and applies its
// full effect set to the complaint and cooler.
//
// Idempotence: re-delivering the same verdict for a submission that already
// carries it is a no-op that re-drives any unfinished downstream effects and
// returns the materialized record. Delivering a *different* verdict to a
// decided submission is rejected — submissions are immutable once judged.
func (s *LifecycleService) ApplyVerdict(ctx context.Context, submissionID string, verdict domain.Verdict, reason, actor string) (*domain.Cooler, *domain.Submission, error) {
	tr := otel.Tracer("services/LifecycleService")
	ctx, span := tr.Start(ctx, "ApplyVerdict",
		trace.WithAttributes(
			attribute.String("submission.id", submissionID),
			attribute.String("verdict", string(verdict)),
		),
	)
	defer span.End()

	if !verdict.Decided() {
		return nil, nil, ErrIllegalTransition
	}

	var (
		cooler *domain.Cooler
		sub    *domain.Submission
	)
	err := withCASRetry(ctx, func() error {
		cur, err := repo.GetSubmission(ctx, s.DB, submissionID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrSubmissionNotFound
		}
		if err != nil {
			return err
		}

		if cur.Verdict.Decided() {
			if cur.Verdict != verdict {
				return ErrIllegalTransition
			}
			// Same verdict redelivered: finish any effects a crash may have
			// left unapplied, then report the current record.
			sub = cur
			cooler, err = s.applyEffects(ctx, cur, actor)
			return err
		}

		// Write order matters: the verdict lands on the submission first, so
		// a crash before the cooler flips leaves a decided submission that a
		// later redelivery completes.
		now := time.Now().UTC()
		decided, err := repo.UpdateSubmissionCAS(ctx, s.DB, submissionID, cur.Version, actor, func(sm *domain.Submission) {
			sm.Verdict = verdict
			sm.VerdictReason = reason
			sm.VerdictAt = &now
		})
		if err != nil {
			return err
		}
		observability.VerdictsTotal.WithLabelValues(string(verdict)).Inc()

		sub = decided
		cooler, err = s.applyEffects(ctx, decided, actor)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return cooler, sub, nil
}

// applyEffects brings the complaint and cooler in line with a decided
// submission. Safe to call repeatedly: once the cooler no longer points at
// the submission, there is nothing left to do.
func (s *LifecycleService) applyEffects(ctx context.Context, sub *domain.Submission, actor string) (*domain.Cooler, error) {
	cooler, err := repo.GetCooler(ctx, s.DB, sub.CoolerID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrCoolerNotFound
	}
	if err != nil {
		return nil, err
	}

	if cooler.PendingSubmissionID == nil || *cooler.PendingSubmissionID != sub.ID {
		// Effects already applied (or superseded); idempotent no-op.
		return cooler, nil
	}

	if sub.ComplaintID == nil {
		return s.applyRoutineEffects(ctx, cooler, sub, actor)
	}

	if cooler.State != domain.StateEvidenceSubmitted || !cooler.InvariantHolds() {
		logInvariantViolation(cooler)
		return nil, ErrIllegalTransition
	}

	if sub.Verdict == domain.VerdictApproved {
		// Resolve the complaint before flipping the cooler; if the cooler
		// write is lost the decided submission re-drives both.
		complaint, err := repo.GetComplaint(ctx, s.DB, *sub.ComplaintID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrComplaintNotFound
		}
		if err != nil {
			return nil, err
		}
		if complaint.Status == domain.ComplaintOpen {
			if _, err := repo.UpdateComplaintCAS(ctx, s.DB, complaint.ID, complaint.Version, actor, func(c *domain.Complaint) {
				c.Status = domain.ComplaintResolved
				c.ResolutionSubmissionID = &sub.ID
			}); err != nil {
				return nil, err
			}
		}

		verifiedAt := sub.VerdictAt
		if verifiedAt == nil {
			now := time.Now().UTC()
			verifiedAt = &now
		}
		return repo.UpdateCoolerCAS(ctx, s.DB, cooler.ID, cooler.Version, actor, func(co *domain.Cooler) {
			co.State = domain.StateClean
			co.CurrentComplaintID = nil
			co.PendingSubmissionID = nil
			co.LastVerifiedAt = verifiedAt
		})
	}

	// Rejected: the complaint stays open and the cooler becomes eligible for
	// resubmission.
	return repo.UpdateCoolerCAS(ctx, s.DB, cooler.ID, cooler.Version, actor, func(co *domain.Cooler) {
		co.State = domain.StateRejected
		co.PendingSubmissionID = nil
	})
}

// applyRoutineEffects handles complaint-less submissions: the cooler never
// left the clean state, so only the pending reference (and, on approval, the
// verification timestamp) move.
func (s *LifecycleService) applyRoutineEffects(ctx context.Context, cooler *domain.Cooler, sub *domain.Submission, actor string) (*domain.Cooler, error) {
	return repo.UpdateCoolerCAS(ctx, s.DB, cooler.ID, cooler.Version, actor, func(co *domain.Cooler) {
		co.PendingSubmissionID = nil
		if sub.Verdict == domain.VerdictApproved {
			verifiedAt := sub.VerdictAt
			if verifiedAt == nil {
				now := time.Now().UTC()
				verifiedAt = &now
			}
			co.LastVerifiedAt = verifiedAt
		}
	})
}

// VerifyAndApply runs the external judgment for a pending submission and
// applies the resulting verdict. The oracle round trip happens with no
// record-store lock held; an unreachable oracle leaves the submission
// pending and surfaces ErrVerificationUnavailable, so a later retry of
// judgment alone completes the cycle.
func (s *LifecycleService) VerifyAndApply(ctx context.Context, submissionID, actor string) (*domain.Cooler, *domain.Submission, error) {
	tr := otel.Tracer("services/LifecycleService")
	ctx, span := tr.Start(ctx, "VerifyAndApply",
		trace.WithAttributes(attribute.String("submission.id", submissionID)),
	)
	defer span.End()

	sub, err := repo.GetSubmission(ctx, s.DB, submissionID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	if sub.Verdict.Decided() {
		// Already judged: just re-drive the effects.
		return s.ApplyVerdict(ctx, sub.ID, sub.Verdict, sub.VerdictReason, actor)
	}

	verdict, reason, err := s.Verifier.Judge(ctx, sub)
	if err != nil {
		return nil, nil, err
	}
	return s.ApplyVerdict(ctx, sub.ID, verdict, reason, actor)
}

// logInvariantViolation records a record whose stored state contradicts the
// complaint-reference invariant. The record is left untouched for manual
// inspection.
func logInvariantViolation(c *domain.Cooler) {
	log.Error().
		Str("cooler_id", c.ID).
		Str("state", string(c.State)).
		Bool("has_complaint_ref", c.CurrentComplaintID != nil).
		Int64("version", c.Version).
		Msg("cooler record violates complaint invariant")
}
