package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proctorly/assessment-backend/internal/model"
)

// SubmissionRepository handles archived submission data access.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// ListByAssessment retrieves submission summaries for reviewer listings,
// most recent first.
func (r *SubmissionRepository) ListByAssessment(ctx context.Context, assessmentID string) ([]model.SubmissionSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.assessment_id, s.candidate_id, c.name, s.score_earned, s.score_max,
		        s.snapshot_count, s.trigger, s.submitted_at
		 FROM submissions s
		 JOIN candidates c ON c.id = s.candidate_id
		 WHERE s.assessment_id = $1
		 ORDER BY s.submitted_at DESC`, assessmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []model.SubmissionSummary
	for rows.Next() {
		var s model.SubmissionSummary
		if err := rows.Scan(&s.ID, &s.AssessmentID, &s.CandidateID, &s.CandidateName,
			&s.Score.Earned, &s.Score.Max, &s.SnapshotCount, &s.Trigger, &s.SubmittedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// GetByCandidate retrieves one archived submission with its full answer and
// mark payloads.
func (r *SubmissionRepository) GetByCandidate(ctx context.Context, assessmentID string, candidateID int) (*model.Submission, error) {
	sub := &model.Submission{AssessmentID: assessmentID}
	err := r.pool.QueryRow(ctx,
		`SELECT s.id, s.candidate_id, c.email, c.name, s.answers, s.marks,
		        s.score_earned, s.score_max, s.trigger, s.submitted_at
		 FROM submissions s
		 JOIN candidates c ON c.id = s.candidate_id
		 WHERE s.assessment_id = $1 AND s.candidate_id = $2`, assessmentID, candidateID,
	).Scan(&sub.ID, &sub.Candidate.ID, &sub.Candidate.Email, &sub.Candidate.Name,
		&sub.Answers, &sub.Marks, &sub.Score.Earned, &sub.Score.Max, &sub.Trigger, &sub.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
