// Package services – StatusService
//
// Read-side projections: cooler status for students, the work queue for
// technicians, and per-cooler audit history. These never mutate anything and
// may be served from a slightly stale view; staleness for list responses is
// bounded by the weak-ETag revalidation the handlers perform against
// repo.CoolersStats.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-cooler-backend/internal/domain"
	"github.com/tbourn/go-cooler-backend/internal/repo"
)

// StatusService serves read-only projections of the record store.
type StatusService struct {
	DB *gorm.DB
}

// ComplaintSummary is the open-complaint slice of a cooler status projection.
type ComplaintSummary struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	ReportedBy  string    `json:"reported_by"`
	ReportedAt  time.Time `json:"reported_at"`
}

// CoolerStatus is the projection served to students and the dashboard.
type CoolerStatus struct {
	ID                  string             `json:"id"`
	Name                string             `json:"name"`
	Location            string             `json:"location"`
	State               domain.CoolerState `json:"state"`
	LastVerifiedAt      *time.Time         `json:"last_verified_at"`
	OpenComplaint       *ComplaintSummary  `json:"open_complaint,omitempty"`
	PendingSubmissionID *string            `json:"pending_submission_id,omitempty"`
}

// CoolerStatus returns the current projection for one cooler, including the
// open complaint summary when the cooler carries one.
func (s *StatusService) CoolerStatus(ctx context.Context, id string) (*CoolerStatus, error) {
	tr := otel.Tracer("services/StatusService")
	ctx, span := tr.Start(ctx, "CoolerStatus",
		trace.WithAttributes(attribute.String("cooler.id", id)),
	)
	defer span.End()

	cooler, err := repo.GetCooler(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrCoolerNotFound
	}
	if err != nil {
		return nil, err
	}

	out := &CoolerStatus{
		ID:                  cooler.ID,
		Name:                cooler.Name,
		Location:            cooler.Location,
		State:               cooler.State,
		LastVerifiedAt:      cooler.LastVerifiedAt,
		PendingSubmissionID: cooler.PendingSubmissionID,
	}
	if cooler.CurrentComplaintID != nil {
		c, err := repo.GetComplaint(ctx, s.DB, *cooler.CurrentComplaintID)
		if err == nil {
			out.OpenComplaint = &ComplaintSummary{
				ID:          c.ID,
				Description: c.Description,
				ReportedBy:  c.ReportedBy,
				ReportedAt:  c.ReportedAt,
			}
		}
	}
	return out, nil
}

// ListCoolers returns the status projection for every cooler, ordered by id.
func (s *StatusService) ListCoolers(ctx context.Context) ([]CoolerStatus, error) {
	tr := otel.Tracer("services/StatusService")
	ctx, span := tr.Start(ctx, "ListCoolers")
	defer span.End()

	coolers, err := repo.ListCoolers(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	out := make([]CoolerStatus, 0, len(coolers))
	for i := range coolers {
		c := &coolers[i]
		out = append(out, CoolerStatus{
			ID:                  c.ID,
			Name:                c.Name,
			Location:            c.Location,
			State:               c.State,
			LastVerifiedAt:      c.LastVerifiedAt,
			PendingSubmissionID: c.PendingSubmissionID,
		})
	}
	return out, nil
}

// TechnicianQueue returns a page of coolers waiting on technician work —
// state reported or rejected — most recently touched first, plus the total
// for pagination metadata.
func (s *StatusService) TechnicianQueue(ctx context.Context, page, pageSize int) ([]CoolerStatus, int64, error) {
	tr := otel.Tracer("services/StatusService")
	ctx, span := tr.Start(ctx, "TechnicianQueue",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	states := []domain.CoolerState{domain.StateReported, domain.StateRejected}
	total, err := repo.CountCoolersInStates(ctx, s.DB, states)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []CoolerStatus{}, 0, nil
	}

	coolers, err := repo.ListCoolersInStates(ctx, s.DB, states, offset, pageSize)
	if err != nil {
		return nil, 0, err
	}

	out := make([]CoolerStatus, 0, len(coolers))
	for i := range coolers {
		c := &coolers[i]
		item := CoolerStatus{
			ID:             c.ID,
			Name:           c.Name,
			Location:       c.Location,
			State:          c.State,
			LastVerifiedAt: c.LastVerifiedAt,
		}
		if c.CurrentComplaintID != nil {
			if cm, err := repo.GetComplaint(ctx, s.DB, *c.CurrentComplaintID); err == nil {
				item.OpenComplaint = &ComplaintSummary{
					ID:          cm.ID,
					Description: cm.Description,
					ReportedBy:  cm.ReportedBy,
					ReportedAt:  cm.ReportedAt,
				}
			}
		}
		out = append(out, item)
	}
	return out, total, nil
}

// History returns the audit trail for one cooler, oldest first. The log is
// append-only, so this is a faithful replay of every state change the record
// has seen.
func (s *StatusService) History(ctx context.Context, coolerID string, limit int) ([]domain.AuditEntry, error) {
	tr := otel.Tracer("services/StatusService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(attribute.String("cooler.id", coolerID)),
	)
	defer span.End()

	if _, err := repo.GetCooler(ctx, s.DB, coolerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCoolerNotFound
		}
		return nil, err
	}
	return repo.ListAudit(ctx, s.DB, "cooler", coolerID, limit)
}
