package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/proctorly/assessment-backend/internal/config"
	"github.com/proctorly/assessment-backend/internal/repository"
	"github.com/proctorly/assessment-backend/internal/response"
	"github.com/proctorly/assessment-backend/internal/service"
)

// ReviewHandler handles reviewer-facing result endpoints.
type ReviewHandler struct {
	cfg         *config.Config
	submissions *repository.SubmissionRepository
	authService *service.AuthService
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(cfg *config.Config, submissions *repository.SubmissionRepository, authService *service.AuthService) *ReviewHandler {
	return &ReviewHandler{
		cfg:         cfg,
		submissions: submissions,
		authService: authService,
	}
}

// ListSubmissions godoc
// GET /api/v1/review/submissions
// Lists archived submission summaries for the configured assessment.
func (h *ReviewHandler) ListSubmissions(c *gin.Context) {
	summaries, err := h.submissions.ListByAssessment(c.Request.Context(), h.cfg.AssessmentID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"submissions": summaries})
}

// GetSubmission godoc
// GET /api/v1/review/submissions/:candidate_id
// Returns one archived submission with full answer and mark payloads.
func (h *ReviewHandler) GetSubmission(c *gin.Context) {
	candidateID, err := strconv.Atoi(c.Param("candidate_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	sub, err := h.submissions.GetByCandidate(c.Request.Context(), h.cfg.AssessmentID, candidateID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, sub)
}

// ResetCandidateLogin godoc
// POST /api/v1/review/candidates/:candidate_id/reset-login
// Clears a candidate's single-device login pin so they can sign in again.
func (h *ReviewHandler) ResetCandidateLogin(c *gin.Context) {
	candidateID, err := strconv.Atoi(c.Param("candidate_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	if err := h.authService.ResetCandidateSession(c.Request.Context(), candidateID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
