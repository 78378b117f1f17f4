// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver), schema migrations, and seed data for the campus
// coolers.
package repo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-cooler-backend/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Trace queries through the active OTel provider. Metrics are skipped;
	// Prometheus covers those at the HTTP layer.
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for all domain tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Cooler{},
		&domain.Complaint{},
		&domain.Submission{},
		&domain.AuditEntry{},
		&domain.Idempotency{},
	)
}

// defaultCoolers are the campus coolers provisioned on first boot. The
// display names are taken from the original deployment sheet.
var defaultCoolers = []domain.Cooler{
	{ID: "cooler-1", Name: "AB3-218", Location: "Academic Block 3"},
	{ID: "cooler-2", Name: "sports complex", Location: "Sports Complex"},
	{ID: "cooler-3", Name: "SPS 3", Location: "SPS Building"},
	{ID: "cooler-4", Name: "pragya bhawan", Location: "Pragya Bhawan"},
	{ID: "cooler-5", Name: "hostel", Location: "Hostel Block"},
}

// SeedCoolers inserts the default campus coolers when the table is empty.
// Seeding is skipped entirely when any cooler row already exists, so the
// function is safe to call on every boot.
func SeedCoolers(ctx context.Context, db *gorm.DB) error {
	var count int64
	if err := db.WithContext(ctx).Model(&domain.Cooler{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	titleCaser := cases.Title(language.English)
	rows := make([]domain.Cooler, 0, len(defaultCoolers))
	for _, c := range defaultCoolers {
		c.Name = normalizeDisplayName(titleCaser, c.Name)
		c.State = domain.StateClean
		c.CreatedAt = now
		c.UpdatedAt = now
		rows = append(rows, c)
	}
	return db.WithContext(ctx).Create(&rows).Error
}

// normalizeDisplayName title-cases an all-lowercase name; names that already
// carry mixed case (building codes like "AB3-218" or "SPS 3") are kept as-is.
func normalizeDisplayName(caser cases.Caser, name string) string {
	name = strings.TrimSpace(name)
	if name == "" || name != strings.ToLower(name) {
		return name
	}
	return caser.String(name)
}
