package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proctorly/assessment-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByAssessment retrieves all questions for an assessment, ordered by
// order_num. The order defines the navigation index space for every session.
func (r *QuestionRepository) ListByAssessment(ctx context.Context, assessmentID string) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, section, question_type, points, prompt, choices, correct_choice
		 FROM questions WHERE assessment_id = $1
		 ORDER BY order_num`, assessmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Section, &q.Type, &q.Points, &q.Prompt, &q.Choices, &q.CorrectChoice); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, assessmentID string, orderNum int, q *model.Question) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO questions (id, assessment_id, section, question_type, points, prompt, choices, correct_choice, order_num)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		q.ID, assessmentID, q.Section, q.Type, q.Points, q.Prompt, q.Choices, q.CorrectChoice, orderNum,
	)
	return err
}
