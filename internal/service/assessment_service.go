package service

import (
	"context"
	"errors"

	"github.com/proctorly/assessment-backend/internal/config"
	"github.com/proctorly/assessment-backend/internal/model"
	"github.com/proctorly/assessment-backend/internal/repository"
	"github.com/rs/zerolog"
)

// ErrNoQuestions rejects startup with an empty question bank.
var ErrNoQuestions = errors.New("assessment has no questions")

// Paper is the candidate-facing assessment document: the question set with
// grading data stripped, plus the session parameters the client needs.
type Paper struct {
	AssessmentID    string                       `json:"assessment_id"`
	Title           string                       `json:"title"`
	DurationSeconds int                          `json:"duration_seconds"`
	Questions       []model.QuestionForCandidate `json:"questions"`
}

// AssessmentService owns the question bank for the configured assessment.
// The bank is loaded once at startup and immutable afterwards.
type AssessmentService struct {
	cfg       *config.Config
	questions *repository.QuestionRepository
	log       zerolog.Logger
	bank      *model.Bank
}

// NewAssessmentService creates an AssessmentService with an empty bank.
// Call LoadBank before serving.
func NewAssessmentService(cfg *config.Config, questions *repository.QuestionRepository, log zerolog.Logger) *AssessmentService {
	return &AssessmentService{
		cfg:       cfg,
		questions: questions,
		log:       log.With().Str("component", "assessment_service").Logger(),
	}
}

// LoadBank loads the configured assessment's questions from PostgreSQL.
func (s *AssessmentService) LoadBank(ctx context.Context) error {
	questions, err := s.questions.ListByAssessment(ctx, s.cfg.AssessmentID)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	s.bank = model.NewBank(questions)
	s.log.Info().
		Str("assessment_id", s.cfg.AssessmentID).
		Int("questions", s.bank.Len()).
		Msg("Question bank loaded")
	return nil
}

// Bank returns the loaded question bank.
func (s *AssessmentService) Bank() *model.Bank {
	return s.bank
}

// Paper returns the candidate-facing assessment document.
func (s *AssessmentService) Paper() Paper {
	return Paper{
		AssessmentID:    s.cfg.AssessmentID,
		Title:           s.cfg.AssessmentTitle,
		DurationSeconds: int(s.cfg.Duration.Seconds()),
		Questions:       s.bank.ForCandidate(),
	}
}
