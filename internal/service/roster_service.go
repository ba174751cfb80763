package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/proctorly/assessment-backend/internal/model"
	"github.com/proctorly/assessment-backend/internal/repository"
	"github.com/rs/zerolog"
)

// RosterService handles candidate account lookups and credential checks.
type RosterService struct {
	candidates *repository.CandidateRepository
	auth       *AuthService
	log        zerolog.Logger
}

// NewRosterService creates a new RosterService.
func NewRosterService(candidates *repository.CandidateRepository, auth *AuthService, log zerolog.Logger) *RosterService {
	return &RosterService{
		candidates: candidates,
		auth:       auth,
		log:        log.With().Str("component", "roster_service").Logger(),
	}
}

// Authenticate verifies credentials and returns the account. Unknown emails
// and wrong passwords both map to ErrInvalidCredentials.
func (s *RosterService) Authenticate(ctx context.Context, email, password string) (*model.Candidate, error) {
	cand, err := s.candidates.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.auth.CheckPassword(cand.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return cand, nil
}

// GetByID retrieves one account.
func (s *RosterService) GetByID(ctx context.Context, id int) (*model.Candidate, error) {
	return s.candidates.GetByID(ctx, id)
}
