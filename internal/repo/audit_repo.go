// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the append-only audit log: one entry
// per changed field per successful write. Entries are only ever inserted —
// there is no update or delete path — so history reconstruction is always
// possible. The log is read for inspection, never replayed automatically.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-cooler-backend/internal/domain"
)

// auditField is one candidate diff row: a column name with its old and new
// rendered values. Unchanged fields are skipped at append time.
type auditField struct {
	Field    string
	OldValue string
	NewValue string
}

// appendAuditDiff inserts one AuditEntry per field whose value actually
// changed. It is called inside the CAS transactions so the audit trail
// commits atomically with the write it describes.
func appendAuditDiff(tx *gorm.DB, entityType, entityID, actor string, fields []auditField) error {
	now := time.Now().UTC()
	for _, f := range fields {
		if f.OldValue == f.NewValue {
			continue
		}
		e := domain.AuditEntry{
			ID:         newID(),
			EntityType: entityType,
			EntityID:   entityID,
			Field:      f.Field,
			OldValue:   f.OldValue,
			NewValue:   f.NewValue,
			Actor:      actor,
			CreatedAt:  now,
		}
		if err := tx.Create(&e).Error; err != nil {
			return err
		}
	}
	return nil
}

// AppendAudit inserts a single audit entry outside a CAS diff, e.g. for
// entity creation events.
func AppendAudit(ctx context.Context, db *gorm.DB, entityType, entityID, field, oldValue, newValue, actor string) error {
	e := domain.AuditEntry{
		ID:         newID(),
		EntityType: entityType,
		EntityID:   entityID,
		Field:      field,
		OldValue:   oldValue,
		NewValue:   newValue,
		Actor:      actor,
		CreatedAt:  time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(&e).Error
}

// ListAudit returns the audit entries for one entity, oldest first, capped
// at limit (values <= 0 default to 200).
func ListAudit(ctx context.Context, db *gorm.DB, entityType, entityID string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	var out []domain.AuditEntry
	err := db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountAudit returns the number of audit entries recorded for one entity.
func CountAudit(ctx context.Context, db *gorm.DB, entityType, entityID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.AuditEntry{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Count(&total).Error
	return total, err
}
