// Cooler HTTP handlers.
//
// This file exposes the read-side REST endpoints for cooler resources:
//   - GET /coolers              (list with state, ETag support)
//   - GET /coolers/{id}         (status projection)
//   - GET /coolers/{id}/history (audit trail)
//   - GET /queue                (technician work queue, paginated)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses (including
// conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-cooler-backend/internal/domain"
	"github.com/tbourn/go-cooler-backend/internal/oracle"
	"github.com/tbourn/go-cooler-backend/internal/repo"
	"github.com/tbourn/go-cooler-backend/internal/services"
	"github.com/tbourn/go-cooler-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ComplaintService defines the complaint-ledger operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context for cancellation and timeouts.
type ComplaintService interface {
	// File records a new complaint against a cooler and moves it to reported.
	File(ctx context.Context, coolerID, description, reportedBy string) (*domain.Complaint, *domain.Cooler, error)
}

// LifecycleService defines the evidence intake and verdict operations.
//
// Implementations must be safe for concurrent use and honor the provided
// context for cancellation and timeouts.
type LifecycleService interface {
	// SubmitEvidence creates a pending submission and moves the cooler to
	// evidence_submitted (complaint-driven) or keeps it clean (routine).
	SubmitEvidence(ctx context.Context, coolerID string, complaintID *string, beforeRef, afterRef string, tdsRef *string, technicianID string) (*domain.Submission, *domain.Cooler, error)
	// VerifyAndApply judges a pending submission and applies the verdict.
	VerifyAndApply(ctx context.Context, submissionID, actor string) (*domain.Cooler, *domain.Submission, error)
}

// VerifierService exposes the judgment-only operations that never mutate
// records.
type VerifierService interface {
	// Precheck judges a single "before" photo against the clean reference.
	Precheck(ctx context.Context, beforeRef string) (oracle.Outcome, string, error)
}

// StatusService defines the read-side projections served to clients.
type StatusService interface {
	CoolerStatus(ctx context.Context, id string) (*services.CoolerStatus, error)
	ListCoolers(ctx context.Context) ([]services.CoolerStatus, error)
	TechnicianQueue(ctx context.Context, page, pageSize int) ([]services.CoolerStatus, int64, error)
	History(ctx context.Context, coolerID string, limit int) ([]domain.AuditEntry, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for coolers, complaints, and evidence.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic. DB is used only for cheap aggregate reads
// (ETag revalidation, idempotency replays).
type Handlers struct {
	complaintSvc ComplaintService
	lifecycleSvc LifecycleService
	verifierSvc  VerifierService
	statusSvc    StatusService
	db           *gorm.DB
}

// New constructs and returns a Handlers instance bound to the given services.
func New(complaintSvc ComplaintService, lifecycleSvc LifecycleService, verifierSvc VerifierService, statusSvc StatusService, db *gorm.DB) *Handlers {
	return &Handlers{
		complaintSvc: complaintSvc,
		lifecycleSvc: lifecycleSvc,
		verifierSvc:  verifierSvc,
		statusSvc:    statusSvc,
		db:           db,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := c.GetHeader("X-User-ID"); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListCoolersResponse wraps the full cooler status list.
type ListCoolersResponse struct {
	Coolers []services.CoolerStatus `json:"coolers"`
}

// QueueResponse wraps a page of the technician work queue.
type QueueResponse struct {
	Coolers    []services.CoolerStatus `json:"coolers"`
	Pagination Pagination              `json:"pagination"`
}

// HistoryResponse wraps a cooler's audit trail.
type HistoryResponse struct {
	CoolerID string              `json:"cooler_id"`
	Entries  []domain.AuditEntry `json:"entries"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// mapServiceError translates service-layer sentinel errors into the HTTP
// error envelope. Unknown errors become 500 internal_error.
func mapServiceError(c *gin.Context, err error) {
	var conflict *services.ConflictingOpenComplaintError
	switch {
	case errors.As(err, &conflict):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrCoolerNotFound),
		errors.Is(err, services.ErrComplaintNotFound),
		errors.Is(err, services.ErrSubmissionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrIllegalTransition):
		fail(c, http.StatusConflict, ErrCodeIllegalTransition, err.Error())
	case errors.Is(err, services.ErrInvalidEvidence):
		fail(c, http.StatusBadRequest, ErrCodeInvalidEvidence, err.Error())
	case errors.Is(err, services.ErrEmptyDescription),
		errors.Is(err, services.ErrDescriptionTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrVerificationUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeVerificationUnavailable, err.Error())
	case errors.Is(err, services.ErrVersionConflict):
		fail(c, http.StatusServiceUnavailable, ErrCodeTransientConflict, "the record is busy, please retry")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// Handlers
//

// ListCoolers godoc
// @ID          listCoolers
// @Summary     List coolers with live status
// @Description Returns every cooler with its current lifecycle state. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Coolers
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"coolers:5:1736160000\")
//
// @Success     200  {object} handlers.ListCoolersResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /coolers [get]
func (h *Handlers) ListCoolers(c *gin.Context) {
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	if h.db != nil {
		count, maxTS, err := repo.CoolersStats(ctx, h.db)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"coolers:%d:%d"`, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, err := h.statusSvc.ListCoolers(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, ListCoolersResponse{Coolers: items})
}

// GetCooler godoc
// @ID          getCooler
// @Summary     Get one cooler's status
// @Description Returns the current state, open complaint summary (if any), and last verified time.
// @Tags        Coolers
// @Produce     json
//
// @Param       id  path  string  true "Cooler ID"  example(cooler-1)
//
// @Success     200  {object} services.CoolerStatus
// @Failure     404  {object} handlers.ErrorResponse "Cooler not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /coolers/{id} [get]
func (h *Handlers) GetCooler(c *gin.Context) {
	status, err := h.statusSvc.CoolerStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, status)
}

// GetHistory godoc
// @ID          getCoolerHistory
// @Summary     Get a cooler's audit trail
// @Description Returns the append-only audit entries recorded against the cooler, oldest first.
// @Tags        Coolers
// @Produce     json
//
// @Param       id     path   string  true  "Cooler ID"       example(cooler-1)
// @Param       limit  query  int     false "Max entries"     minimum(1) maximum(500) default(200)
//
// @Success     200  {object} handlers.HistoryResponse
// @Failure     404  {object} handlers.ErrorResponse "Cooler not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /coolers/{id}/history [get]
func (h *Handlers) GetHistory(c *gin.Context) {
	coolerID := c.Param("id")
	limit := utils.AtoiDefault(c.Query("limit"), 200)
	if limit > 500 {
		limit = 500
	}

	entries, err := h.statusSvc.History(c.Request.Context(), coolerID, limit)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, HistoryResponse{CoolerID: coolerID, Entries: entries})
}

// GetQueue godoc
// @ID          getQueue
// @Summary     Technician work queue (paginated)
// @Description Returns coolers in reported or rejected state, most recently touched first.
// @Tags        Queue
// @Produce     json
//
// @Param       page       query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.QueueResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /queue [get]
func (h *Handlers) GetQueue(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.statusSvc.TechnicianQueue(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, QueueResponse{
		Coolers: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
