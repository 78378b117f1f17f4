// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the evidence
// Submission model. A submission is created in the pending state and its
// verdict is written exactly once via UpdateSubmissionCAS; after that the
// row is immutable.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-cooler-backend/internal/domain"
)

// CreateSubmission inserts a new pending evidence submission. complaintID and
// tdsImageRef may be nil (routine maintenance, no TDS meter photo).
func CreateSubmission(ctx context.Context, db *gorm.DB, coolerID string, complaintID *string, beforeRef, afterRef string, tdsRef *string, submittedBy string) (*domain.Submission, error) {
	now := time.Now().UTC()
	s := &domain.Submission{
		ID:             newID(),
		CoolerID:       coolerID,
		ComplaintID:    complaintID,
		BeforeImageRef: beforeRef,
		AfterImageRef:  afterRef,
		TDSImageRef:    tdsRef,
		SubmittedBy:    submittedBy,
		SubmittedAt:    now,
		Verdict:        domain.VerdictPending,
		CreatedAt:      now,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetSubmission fetches a single submission by ID, or ErrNotFound if missing.
func GetSubmission(ctx context.Context, db *gorm.DB, id string) (*domain.Submission, error) {
	var s domain.Submission
	if err := db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSubmissionsForComplaint returns every submission attempt made against
// one complaint, oldest first. A cooler may require several attempts before
// approval, so this is the per-complaint remediation history.
func ListSubmissionsForComplaint(ctx context.Context, db *gorm.DB, complaintID string) ([]domain.Submission, error) {
	var out []domain.Submission
	err := db.WithContext(ctx).
		Where("complaint_id = ?", complaintID).
		Order("submitted_at asc").
		Find(&out).Error
	return out, err
}

// UpdateSubmissionCAS applies mutate to the submission identified by id under
// optimistic concurrency control. Used solely to write the verdict; the
// per-field audit entries commit in the same transaction as the write.
func UpdateSubmissionCAS(ctx context.Context, db *gorm.DB, id string, expectedVersion int64, actor string, mutate func(*domain.Submission)) (*domain.Submission, error) {
	var out *domain.Submission
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur domain.Submission
		if err := tx.First(&cur, "id = ?", id).Error; err != nil {
			return err
		}
		if cur.Version != expectedVersion {
			return ErrVersionConflict
		}

		before := cur
		mutate(&cur)
		cur.Version = expectedVersion + 1
		cur.UpdatedAt = time.Now().UTC()

		res := tx.Model(&domain.Submission{}).
			Where("id = ? AND version = ?", id, expectedVersion).
			Updates(map[string]any{
				"verdict":        cur.Verdict,
				"verdict_reason": cur.VerdictReason,
				"verdict_at":     cur.VerdictAt,
				"version":        cur.Version,
				"updated_at":     cur.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		fields := []auditField{
			{"verdict", string(before.Verdict), string(cur.Verdict)},
			{"verdict_reason", before.VerdictReason, cur.VerdictReason},
		}
		if err := appendAuditDiff(tx, "submission", id, actor, fields); err != nil {
			return err
		}
		out = &cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
