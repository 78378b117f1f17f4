// Package services – ComplaintService
//
// This file implements the complaint ledger: students file issues against a
// cooler, one open complaint per cooler at a time. Filing a complaint is the
// clean → reported transition of the cooler record; resolution and reopening
// are owned by the lifecycle engine and are deliberately not exposed here,
// preserving the single-writer rule on Complaint.Status.
//
// Observability: public methods are OpenTelemetry-instrumented; spans include
// cooler and reporter identifiers.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-cooler-backend/internal/domain"
	"github.com/tbourn/go-cooler-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ComplaintService implements the use-cases around student complaints.
type ComplaintService struct {
	// DB is the database handle used for all ledger operations.
	DB *gorm.DB

	// MaxDescriptionRunes caps the complaint description length. Values <= 0
	// default to 2000.
	MaxDescriptionRunes int
}

// errDescription values for input validation.
var (
	// ErrEmptyDescription is returned when a complaint has no description.
	ErrEmptyDescription = errors.New("complaint description is empty")

	// ErrDescriptionTooLong is returned when a complaint description exceeds
	// the configured length limit.
	ErrDescriptionTooLong = errors.New("complaint description too long")
)

// File records a new complaint against coolerID on behalf of reportedBy and
// moves the cooler record from clean to reported.
//
// Semantics and validation:
//   - description must be non-empty after trimming and within the length cap.
//   - The cooler must exist; otherwise ErrCoolerNotFound.
//   - If the cooler already carries an open complaint, the call fails with
//     *ConflictingOpenComplaintError naming the existing complaint; no second
//     entry is created.
//   - Complaint creation and the cooler CAS commit in one transaction; the
//     version guard on the cooler row still arbitrates concurrent filers, so
//     exactly one of two racing reports wins and the loser observes the
//     winner's complaint on retry.
func (s *ComplaintService) File(ctx context.Context, coolerID, description, reportedBy string) (*domain.Complaint, *domain.Cooler, error) {
	tr := otel.Tracer("services/ComplaintService")
	ctx, span := tr.Start(ctx, "File",
		trace.WithAttributes(
			attribute.String("cooler.id", coolerID),
			attribute.String("reporter.id", reportedBy),
		),
	)
	defer span.End()

	description = strings.TrimSpace(description)
	if description == "" {
		return nil, nil, ErrEmptyDescription
	}
	maxRunes := s.MaxDescriptionRunes
	if maxRunes <= 0 {
		maxRunes = 2000
	}
	if utf8.RuneCountInString(description) > maxRunes {
		return nil, nil, ErrDescriptionTooLong
	}

	var (
		complaint *domain.Complaint
		cooler    *domain.Cooler
	)
	err := withCASRetry(ctx, func() error {
		cur, err := repo.GetCooler(ctx, s.DB, coolerID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrCoolerNotFound
		}
		if err != nil {
			return err
		}

		if cur.CurrentComplaintID != nil {
			return &ConflictingOpenComplaintError{
				CoolerID:            coolerID,
				ExistingComplaintID: *cur.CurrentComplaintID,
			}
		}
		if cur.State != domain.StateClean {
			// A non-clean cooler without a complaint pointer violates the
			// record invariant; refuse the event rather than patch it.
			return ErrIllegalTransition
		}

		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			c, err := repo.CreateComplaint(ctx, tx, coolerID, description, reportedBy)
			if err != nil {
				return err
			}
			updated, err := repo.UpdateCoolerCAS(ctx, tx, coolerID, cur.Version, reportedBy, func(co *domain.Cooler) {
				co.State = domain.StateReported
				co.CurrentComplaintID = &c.ID
			})
			if err != nil {
				return err
			}
			complaint = c
			cooler = updated
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return complaint, cooler, nil
}

// Get returns a complaint by id, or ErrComplaintNotFound.
func (s *ComplaintService) Get(ctx context.Context, id string) (*domain.Complaint, error) {
	c, err := repo.GetComplaint(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrComplaintNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// HistoryFor returns every complaint ever filed against a cooler, most
// recent first.
func (s *ComplaintService) HistoryFor(ctx context.Context, coolerID string) ([]domain.Complaint, error) {
	return repo.ListComplaintsForCooler(ctx, s.DB, coolerID)
}
