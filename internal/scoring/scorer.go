// Package scoring implements automatic grading of choice questions.
package scoring

import (
	"github.com/proctorly/assessment-backend/internal/model"
)

// Score grades an answer set against the question bank. Only choice
// questions with a defined correct index contribute: each adds its point
// value to Max, and to Earned iff the recorded choice matches. Free-text
// items are graded manually elsewhere and contribute to neither total.
//
// Pure function: deterministic, no side effects, safe to call repeatedly.
func Score(bank *model.Bank, answers map[string]model.Answer) model.Score {
	var s model.Score
	for _, q := range bank.Questions() {
		if !q.AutoGradable() {
			continue
		}
		s.Max += q.Points
		ans, ok := answers[q.ID]
		if ok && ans.Choice != nil && *ans.Choice == *q.CorrectChoice {
			s.Earned += q.Points
		}
	}
	return s
}
