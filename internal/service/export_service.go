package service

import (
	"context"
	"errors"
	"time"

	"github.com/proctorly/assessment-backend/internal/config"
	"github.com/proctorly/assessment-backend/internal/model"
	"github.com/proctorly/assessment-backend/internal/store"
	"github.com/rs/zerolog"
)

// ErrNoSubmission is returned when a submission export is requested before
// the assessment was submitted.
var ErrNoSubmission = errors.New("no submission exists for this candidate")

// ProgressExport is a point-in-time dump of a candidate's saved work,
// downloadable as a backup while the session is still running.
type ProgressExport struct {
	AssessmentID string                  `json:"assessment_id"`
	CandidateID  int                     `json:"candidate_id"`
	ExportedAt   time.Time               `json:"exported_at"`
	Answers      map[string]model.Answer `json:"answers"`
	Marked       map[string]bool         `json:"marked"`
	Snapshots    []model.Snapshot        `json:"snapshots"`
}

// ExportService builds downloadable session documents from the store, so
// exports work even when the in-memory session is gone.
type ExportService struct {
	cfg *config.Config
	st  store.Store
	log zerolog.Logger
}

// NewExportService creates a new ExportService.
func NewExportService(cfg *config.Config, st store.Store, log zerolog.Logger) *ExportService {
	return &ExportService{
		cfg: cfg,
		st:  st,
		log: log.With().Str("component", "export_service").Logger(),
	}
}

// Progress dumps the candidate's saved answers, marks, and snapshots.
func (s *ExportService) Progress(ctx context.Context, candidateID int) (*ProgressExport, error) {
	ref := store.SessionRef{AssessmentID: s.cfg.AssessmentID, CandidateID: candidateID}

	answers, err := s.st.LoadAnswers(ctx, ref)
	if err != nil {
		return nil, err
	}
	marks, err := s.st.LoadMarks(ctx, ref)
	if err != nil {
		return nil, err
	}
	snapshots, err := s.st.LoadSnapshots(ctx, ref)
	if err != nil {
		return nil, err
	}

	return &ProgressExport{
		AssessmentID: s.cfg.AssessmentID,
		CandidateID:  candidateID,
		ExportedAt:   time.Now().UTC(),
		Answers:      answers,
		Marked:       marks,
		Snapshots:    snapshots,
	}, nil
}

// Submission returns the candidate's final record for download.
func (s *ExportService) Submission(ctx context.Context, candidateID int) (*model.Submission, error) {
	ref := store.SessionRef{AssessmentID: s.cfg.AssessmentID, CandidateID: candidateID}

	sub, err := s.st.LoadSubmission(ctx, ref)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNoSubmission
	}
	return sub, nil
}
