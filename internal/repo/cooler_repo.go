// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Cooler
// record, including the compare-and-swap write path that every mutation of
// cooler state must go through.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a cooler is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - When a CAS write observes a stale version, ErrVersionConflict is
//     returned and nothing is written.
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-cooler-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrVersionConflict is returned by the compare-and-swap helpers when the
// stored version no longer matches the expected version, meaning another
// writer got there first. Callers are expected to re-read and retry
// (bounded), never to overwrite blindly.
var ErrVersionConflict = errors.New("version conflict")

// CreateCooler inserts a new cooler record in the clean state with version 0.
func CreateCooler(ctx context.Context, db *gorm.DB, id, name, location string) (*domain.Cooler, error) {
	c := &domain.Cooler{
		ID:        id,
		Name:      name,
		Location:  location,
		State:     domain.StateClean,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetCooler fetches a single cooler by ID, or ErrNotFound if missing.
func GetCooler(ctx context.Context, db *gorm.DB, id string) (*domain.Cooler, error) {
	var c domain.Cooler
	if err := db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCoolers returns all coolers ordered by ID.
func ListCoolers(ctx context.Context, db *gorm.DB) ([]domain.Cooler, error) {
	var out []domain.Cooler
	err := db.WithContext(ctx).Order("id asc").Find(&out).Error
	return out, err
}

// ListCoolersInStates returns a page of coolers whose state is in states,
// ordered by most recently updated first. Use CountCoolersInStates for
// pagination totals.
func ListCoolersInStates(ctx context.Context, db *gorm.DB, states []domain.CoolerState, offset, limit int) ([]domain.Cooler, error) {
	var out []domain.Cooler
	err := db.WithContext(ctx).
		Where("state IN ?", states).
		Order("updated_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountCoolersInStates returns the number of coolers whose state is in states.
func CountCoolersInStates(ctx context.Context, db *gorm.DB, states []domain.CoolerState) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Cooler{}).
		Where("state IN ?", states).
		Count(&total).Error
	return total, err
}

// UpdateCoolerCAS applies mutate to the cooler identified by id under
// optimistic concurrency control. The write succeeds only if the stored
// version still equals expectedVersion; the new row carries
// expectedVersion+1. One audit entry per changed field is appended in the
// same transaction, so a successful CAS and its audit trail are atomic.
//
// Returns the updated record on success, ErrNotFound when the cooler does
// not exist, and ErrVersionConflict when another writer won the race (in
// which case nothing was written).
func UpdateCoolerCAS(ctx context.Context, db *gorm.DB, id string, expectedVersion int64, actor string, mutate func(*domain.Cooler)) (*domain.Cooler, error) {
	var out *domain.Cooler
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur domain.Cooler
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

		// Guard the UPDATE on the version column as well: the read above and
		// this write are in one transaction, but the column guard keeps the
		// CAS honest even against writers outside this code path.
		res := tx.Model(&domain.Cooler{}).
			Where("id = ? AND version = ?", id, expectedVersion).
			Updates(map[string]any{
				"name":                  cur.Name,
				"location":              cur.Location,
				"state":                 cur.State,
				"last_verified_at":      cur.LastVerifiedAt,
				"current_complaint_id":  cur.CurrentComplaintID,
				"pending_submission_id": cur.PendingSubmissionID,
				"version":               cur.Version,
				"updated_at":            cur.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		if err := appendAuditDiff(tx, "cooler", id, actor, coolerAuditFields(&before, &cur)); err != nil {
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

// coolerAuditFields diffs the audited cooler columns between two snapshots.
func coolerAuditFields(before, after *domain.Cooler) []auditField {
	return []auditField{
		{"state", string(before.State), string(after.State)},
		{"current_complaint_id", strOrEmpty(before.CurrentComplaintID), strOrEmpty(after.CurrentComplaintID)},
		{"pending_submission_id", strOrEmpty(before.PendingSubmissionID), strOrEmpty(after.PendingSubmissionID)},
		{"last_verified_at", timeOrEmpty(before.LastVerifiedAt), timeOrEmpty(after.LastVerifiedAt)},
	}
}

// CoolersStats returns aggregate metadata for the coolers table: the total
// number of rows and the maximum UpdatedAt timestamp among them. The HTTP
// layer uses this pair to build weak ETags for list responses, so read-side
// staleness is bounded by a cheap revalidation rather than a full fetch.
//
// Return values:
//   - count:        total cooler rows
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func CoolersStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Cooler{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// strOrEmpty renders a nullable string column for the audit log.
func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// timeOrEmpty renders a nullable timestamp column for the audit log.
func timeOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// newID returns a fresh UUID string for entity primary keys.
func newID() string { return uuid.NewString() }
