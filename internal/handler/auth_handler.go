package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/proctorly/assessment-backend/internal/middleware"
	"github.com/proctorly/assessment-backend/internal/model"
	"github.com/proctorly/assessment-backend/internal/response"
	"github.com/proctorly/assessment-backend/internal/service"
	"github.com/proctorly/assessment-backend/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService   *service.AuthService
	rosterService *service.RosterService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, rosterService *service.RosterService) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		rosterService: rosterService,
	}
}

// Login godoc
// POST /api/v1/auth/login
// Validates email + password and returns a JWT. Candidate logins are
// single-device: a second login while one is active is rejected.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	cand, err := h.rosterService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	var token string
	switch cand.Role {
	case model.RoleReviewer:
		token, err = h.authService.GenerateReviewerToken(cand.ID, cand.Email)
	default:
		token, err = h.authService.GenerateCandidateToken(c.Request.Context(), cand.ID, cand.Email)
	}
	if err != nil {
		if errors.Is(err, service.ErrSessionAlreadyActive) {
			response.Fail(c, http.StatusConflict, response.ErrSessionActive)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, model.LoginResponse{
		Token:     token,
		Candidate: *cand,
	})
}

// Logout godoc
// POST /api/v1/auth/logout
// Releases the candidate's single-device login pin.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.ResetCandidateSession(c.Request.Context(), claims.CandidateID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Me godoc
// GET /api/v1/auth/me
// Returns the profile of the currently authenticated account.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	cand, err := h.rosterService.GetByID(c.Request.Context(), claims.CandidateID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"candidate": cand})
}
