// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Complaint
// model. Status changes go through UpdateComplaintCAS; the service layer is
// responsible for calling it only from the lifecycle engine so the
// single-writer rule on Complaint.Status holds.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-cooler-backend/internal/domain"
)

// CreateComplaint inserts a new open complaint against coolerID. The
// complaint ID is a randomly generated UUID and ReportedAt is set to UTC.
func CreateComplaint(ctx context.Context, db *gorm.DB, coolerID, description, reportedBy string) (*domain.Complaint, error) {
	now := time.Now().UTC()
	c := &domain.Complaint{
		ID:          newID(),
		CoolerID:    coolerID,
		Description: description,
		ReportedBy:  reportedBy,
		ReportedAt:  now,
		Status:      domain.ComplaintOpen,
		CreatedAt:   now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetComplaint fetches a single complaint by ID, or ErrNotFound if missing.
func GetComplaint(ctx context.Context, db *gorm.DB, id string) (*domain.Complaint, error) {
	var c domain.Complaint
	if err := db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOpenComplaintForCooler returns the open complaint for coolerID, or
// (nil, nil) when the cooler has none. At most one complaint per cooler is
// open at a time; the query still orders by ReportedAt so a corrupted store
// yields a deterministic answer.
func GetOpenComplaintForCooler(ctx context.Context, db *gorm.DB, coolerID string) (*domain.Complaint, error) {
	var c domain.Complaint
	err := db.WithContext(ctx).
		Where("cooler_id = ? AND status = ?", coolerID, domain.ComplaintOpen).
		Order("reported_at asc").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListComplaintsForCooler returns all complaints ever filed against a cooler,
// most recent first. Complaints are never deleted, so this is the full
// grievance history.
func ListComplaintsForCooler(ctx context.Context, db *gorm.DB, coolerID string) ([]domain.Complaint, error) {
	var out []domain.Complaint
	err := db.WithContext(ctx).
		Where("cooler_id = ?", coolerID).
		Order("reported_at desc").
		Find(&out).Error
	return out, err
}

// UpdateComplaintCAS applies mutate to the complaint identified by id under
// optimistic concurrency control, mirroring UpdateCoolerCAS: the write
// succeeds only when the stored version equals expectedVersion, the new row
// carries expectedVersion+1, and per-field audit entries commit in the same
// transaction.
func UpdateComplaintCAS(ctx context.Context, db *gorm.DB, id string, expectedVersion int64, actor string, mutate func(*domain.Complaint)) (*domain.Complaint, error) {
	var out *domain.Complaint
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur domain.Complaint
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

		res := tx.Model(&domain.Complaint{}).
			Where("id = ? AND version = ?", id, expectedVersion).
			Updates(map[string]any{
				"status":                   cur.Status,
				"resolution_submission_id": cur.ResolutionSubmissionID,
				"version":                  cur.Version,
				"updated_at":               cur.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		fields := []auditField{
			{"status", string(before.Status), string(cur.Status)},
			{"resolution_submission_id", strOrEmpty(before.ResolutionSubmissionID), strOrEmpty(cur.ResolutionSubmissionID)},
		}
		if err := appendAuditDiff(tx, "complaint", id, actor, fields); err != nil {
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
