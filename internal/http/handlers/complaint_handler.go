// Complaint HTTP handlers.
//
// This file exposes the write endpoint students use to report an issue:
//   - POST /coolers/{id}/complaints
//
// Filing is the only complaint operation the request layer may perform;
// resolution and reopening belong to the lifecycle engine and have no
// HTTP surface.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-cooler-backend/internal/domain"
)

// FileComplaintRequest is the JSON payload for reporting an issue.
type FileComplaintRequest struct {
	// Description of the observed issue (1–2000 chars).
	Description string `json:"description" binding:"required,min=1,max=2000" example:"water tastes odd, tank looks dirty"`
}

// FileComplaintResponse returns the created complaint together with the
// cooler record it moved to reported.
type FileComplaintResponse struct {
	Complaint *domain.Complaint `json:"complaint"`
	Cooler    *domain.Cooler    `json:"cooler"`
}

// FileComplaint godoc
// @ID          fileComplaint
// @Summary     Report an issue against a cooler
// @Description Files a complaint and moves the cooler from clean to reported. A cooler carries at most one open complaint; duplicates get 409 with the existing complaint id.
// @Tags        Complaints
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "Reporter ID (demo header)"  example(student42)
// @Param       id         path    string  true  "Cooler ID"                  example(cooler-1)
// @Param       body       body    handlers.FileComplaintRequest  true  "Complaint payload"
//
// @Success     201  {object}  handlers.FileComplaintResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Cooler not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Open complaint already exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /coolers/{id}/complaints [post]
func (h *Handlers) FileComplaint(c *gin.Context) {
	var req FileComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Description) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "description required (1–2000 chars)")
		return
	}

	complaint, cooler, err := h.complaintSvc.File(c.Request.Context(), c.Param("id"), req.Description, userID(c))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, FileComplaintResponse{Complaint: complaint, Cooler: cooler})
}
