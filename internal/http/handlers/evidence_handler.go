// Evidence HTTP handlers.
//
// This file exposes the technician-facing write endpoints:
//   - POST /coolers/{id}/evidence           (submit before/after evidence, judged synchronously)
//   - POST /coolers/{id}/evidence/precheck  (judge a single before photo, no state change)
//   - POST /submissions/{id}/verdict/retry  (re-drive judgment for a pending submission)
//
// The evidence POST honors the Idempotency-Key header: a replayed request
// returns the originally created submission instead of creating a second one
// or spending another judgment call.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-cooler-backend/internal/domain"
	"github.com/tbourn/go-cooler-backend/internal/http/middleware"
	"github.com/tbourn/go-cooler-backend/internal/oracle"
	"github.com/tbourn/go-cooler-backend/internal/repo"
	"github.com/tbourn/go-cooler-backend/internal/services"
)

// IdempotencyTTL is how long a stored evidence-POST result can be replayed.
// The router may override it from configuration.
var IdempotencyTTL = 24 * time.Hour

// SubmitEvidenceRequest is the JSON payload for an evidence submission. The
// image fields are opaque storage references, never raw bytes.
type SubmitEvidenceRequest struct {
	// ComplaintID optionally names the complaint the evidence answers; it
	// must match the cooler's open complaint. Omit for routine maintenance.
	ComplaintID *string `json:"complaint_id,omitempty" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// BeforeImageRef is the storage key of the pre-cleaning photo.
	BeforeImageRef string `json:"before_image_ref" binding:"required" example:"uploads/c1-before.jpg"`
	// AfterImageRef is the storage key of the post-cleaning photo.
	AfterImageRef string `json:"after_image_ref" binding:"required" example:"uploads/c1-after.jpg"`
	// TDSImageRef optionally adds a TDS meter photo for the water-safety leg.
	TDSImageRef *string `json:"tds_image_ref,omitempty" example:"uploads/c1-tds.jpg"`
}

// SubmitEvidenceResponse returns the judged submission and the cooler record
// it left behind.
type SubmitEvidenceResponse struct {
	Submission *domain.Submission `json:"submission"`
	Cooler     *domain.Cooler     `json:"cooler"`
	// Replayed is true when the response was served from a stored
	// idempotency record rather than a fresh submission.
	Replayed bool `json:"replayed,omitempty"`
}

// PrecheckRequest is the JSON payload for a before-photo precheck.
type PrecheckRequest struct {
	BeforeImageRef string `json:"before_image_ref" binding:"required" example:"uploads/c1-before.jpg"`
}

// PrecheckResponse carries the reduced outcome of a precheck judgment plus
// the oracle's raw reply for display.
type PrecheckResponse struct {
	Outcome oracle.Outcome `json:"outcome"`
	Raw     string         `json:"raw,omitempty"`
}

// SubmitEvidence godoc
// @ID          submitEvidence
// @Summary     Submit before/after cleaning evidence
// @Description Creates a pending submission and judges it synchronously. On approval the cooler returns to clean and the complaint resolves; on rejection the complaint stays open for resubmission. If judgment is unavailable the submission persists as pending (503) and only judgment needs retrying.
// @Tags        Evidence
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "Technician ID (demo header)"  example(tech7)
// @Param       Idempotency-Key  header  string  false "Safe-retry key"               example(7b6a1f2e)
// @Param       id               path    string  true  "Cooler ID"                    example(cooler-1)
// @Param       body             body    handlers.SubmitEvidenceRequest  true  "Evidence payload"
//
// @Success     200  {object}  handlers.SubmitEvidenceResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid evidence"
// @Failure     404  {object}  handlers.ErrorResponse  "Cooler not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Illegal transition"
// @Failure     503  {object}  handlers.ErrorResponse  "Verification unavailable / record contention"
// @Router      /coolers/{id}/evidence [post]
func (h *Handlers) SubmitEvidence(c *gin.Context) {
	ctx := c.Request.Context()
	coolerID := c.Param("id")
	uid := userID(c)

	// Serve a stored result when the middleware flagged this as a replay.
	if key, hasKey := middleware.GetIdempotencyKey(c); hasKey && middleware.IsReplay(c) {
		if rec, err := repo.GetIdempotency(ctx, h.db, uid, coolerID, key, time.Now().UTC()); err == nil {
			if rec.Status == http.StatusServiceUnavailable {
				// The first attempt stalled on judgment. Re-drive judgment for
				// the stored submission instead of serving the stale 503; a
				// decided submission makes this an idempotent no-op.
				cooler, sub, err := h.lifecycleSvc.VerifyAndApply(ctx, rec.SubmissionID, uid)
				if err != nil {
					if errors.Is(err, services.ErrVerificationUnavailable) {
						fail(c, http.StatusServiceUnavailable, ErrCodeVerificationUnavailable,
							"judgment unavailable; submission "+rec.SubmissionID+" is pending, retry later")
						return
					}
					mapServiceError(c, err)
					return
				}
				ok(c, http.StatusOK, SubmitEvidenceResponse{Submission: sub, Cooler: cooler, Replayed: true})
				return
			}
			sub, serr := repo.GetSubmission(ctx, h.db, rec.SubmissionID)
			cooler, cerr := repo.GetCooler(ctx, h.db, coolerID)
			if serr == nil && cerr == nil {
				ok(c, rec.Status, SubmitEvidenceResponse{Submission: sub, Cooler: cooler, Replayed: true})
				return
			}
		}
	}

	var req SubmitEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "before_image_ref and after_image_ref required")
		return
	}

	sub, cooler, err := h.lifecycleSvc.SubmitEvidence(ctx, coolerID, req.ComplaintID, req.BeforeImageRef, req.AfterImageRef, req.TDSImageRef, uid)
	if err != nil {
		mapServiceError(c, err)
		return
	}

	cooler, sub, err = h.lifecycleSvc.VerifyAndApply(ctx, sub.ID, uid)
	if err != nil {
		if errors.Is(err, services.ErrVerificationUnavailable) {
			// The submission survives as pending; remember it for replays so a
			// client retry of this POST re-drives judgment instead of
			// re-uploading.
			h.rememberSubmission(c, uid, coolerID, sub.ID, http.StatusServiceUnavailable)
			fail(c, http.StatusServiceUnavailable, ErrCodeVerificationUnavailable,
				"judgment unavailable; submission "+sub.ID+" is pending, retry later")
			return
		}
		mapServiceError(c, err)
		return
	}

	h.rememberSubmission(c, uid, coolerID, sub.ID, http.StatusOK)
	ok(c, http.StatusOK, SubmitEvidenceResponse{Submission: sub, Cooler: cooler})
}

// rememberSubmission persists an idempotency record when the request carried
// a key. Best effort: a failed insert only costs replay protection.
func (h *Handlers) rememberSubmission(c *gin.Context, uid, coolerID, submissionID string, status int) {
	key, hasKey := middleware.GetIdempotencyKey(c)
	if !hasKey || h.db == nil {
		return
	}
	_, _ = repo.CreateIdempotency(c.Request.Context(), h.db, uid, coolerID, key, submissionID, status, IdempotencyTTL)
}

// Precheck godoc
// @ID          precheckEvidence
// @Summary     Judge a before photo without touching any record
// @Description Compares a single photo against the clean reference so a technician can confirm a cooler actually needs work. Never mutates state.
// @Tags        Evidence
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Cooler ID"  example(cooler-1)
// @Param       body  body  handlers.PrecheckRequest  true  "Precheck payload"
//
// @Success     200  {object}  handlers.PrecheckResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid image reference"
// @Failure     503  {object}  handlers.ErrorResponse  "Judgment unavailable or inconclusive"
// @Router      /coolers/{id}/evidence/precheck [post]
func (h *Handlers) Precheck(c *gin.Context) {
	var req PrecheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "before_image_ref required")
		return
	}

	outcome, raw, err := h.verifierSvc.Precheck(c.Request.Context(), req.BeforeImageRef)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, PrecheckResponse{Outcome: outcome, Raw: raw})
}

// RetryVerdict godoc
// @ID          retryVerdict
// @Summary     Re-drive judgment for a pending submission
// @Description Retries the oracle judgment for a submission whose earlier verification was unavailable, then applies the verdict. Re-driving an already-decided submission is an idempotent no-op.
// @Tags        Evidence
// @Produce     json
//
// @Param       X-User-ID  header  string  false "Technician ID (demo header)"  example(tech7)
// @Param       id         path    string  true  "Submission ID (UUID)"          format(uuid)
//
// @Success     200  {object}  handlers.SubmitEvidenceResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Submission not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Verification unavailable"
// @Router      /submissions/{id}/verdict/retry [post]
func (h *Handlers) RetryVerdict(c *gin.Context) {
	cooler, sub, err := h.lifecycleSvc.VerifyAndApply(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, SubmitEvidenceResponse{Submission: sub, Cooler: cooler})
}
