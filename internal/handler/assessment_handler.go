package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/proctorly/assessment-backend/internal/middleware"
	"github.com/proctorly/assessment-backend/internal/response"
	"github.com/proctorly/assessment-backend/internal/service"
	"github.com/proctorly/assessment-backend/internal/session"
)

// AssessmentHandler handles the candidate-facing assessment endpoints.
type AssessmentHandler struct {
	assessmentService *service.AssessmentService
	rosterService     *service.RosterService
	manager           *session.Manager
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(
	assessmentService *service.AssessmentService,
	rosterService *service.RosterService,
	manager *session.Manager,
) *AssessmentHandler {
	return &AssessmentHandler{
		assessmentService: assessmentService,
		rosterService:     rosterService,
		manager:           manager,
	}
}

// GetPaper godoc
// GET /api/v1/assessment/paper
// Returns the question set with grading data stripped, plus the session
// parameters the client needs to render the shell.
func (h *AssessmentHandler) GetPaper(c *gin.Context) {
	response.Success(c, http.StatusOK, h.assessmentService.Paper())
}

// GetState godoc
// GET /api/v1/assessment/state
// Returns the candidate's current session view, creating the session (with
// saved work restored) if this is their first contact.
func (h *AssessmentHandler) GetState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if ctrl, ok := h.manager.Get(claims.CandidateID); ok {
		response.Success(c, http.StatusOK, ctrl.View())
		return
	}

	cand, err := h.rosterService.GetByID(c.Request.Context(), claims.CandidateID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	// No device or sink yet; the proctoring stream binds them on connect.
	ctrl := h.manager.Attach(*cand, nil, nil)
	response.Success(c, http.StatusOK, ctrl.View())
}
