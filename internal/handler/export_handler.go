package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/proctorly/assessment-backend/internal/middleware"
	"github.com/proctorly/assessment-backend/internal/response"
	"github.com/proctorly/assessment-backend/internal/service"
)

// ExportHandler handles downloadable session documents.
type ExportHandler struct {
	exportService *service.ExportService
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(exportService *service.ExportService) *ExportHandler {
	return &ExportHandler{exportService: exportService}
}

// ExportProgress godoc
// GET /api/v1/assessment/export/progress
// Dumps the candidate's saved answers, marks, and snapshots as a backup.
func (h *ExportHandler) ExportProgress(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	export, err := h.exportService.Progress(c.Request.Context(), claims.CandidateID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="assessment-progress.json"`)
	response.Success(c, http.StatusOK, export)
}

// ExportSubmission godoc
// GET /api/v1/assessment/export/submission
// Downloads the candidate's final record after submission.
func (h *ExportHandler) ExportSubmission(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sub, err := h.exportService.Submission(c.Request.Context(), claims.CandidateID)
	if err != nil {
		if errors.Is(err, service.ErrNoSubmission) {
			response.Fail(c, http.StatusNotFound, response.ErrNotSubmitted)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="assessment-submission.json"`)
	response.Success(c, http.StatusOK, sub)
}
