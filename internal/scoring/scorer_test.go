package scoring

import (
	"fmt"
	"testing"

	"github.com/proctorly/assessment-backend/internal/model"
	"pgregory.net/rapid"
)

func intp(i int) *int { return &i }

func choiceQuestion(id string, points, correct int) model.Question {
	return model.Question{
		ID:            id,
		Section:       "aptitude",
		Type:          model.QuestionTypeChoice,
		Points:        points,
		Prompt:        "prompt " + id,
		Choices:       []string{"A", "B", "C", "D"},
		CorrectChoice: intp(correct),
	}
}

func TestScoreThreeQuestionsTwoCorrect(t *testing.T) {
	bank := model.NewBank([]model.Question{
		choiceQuestion("q1", 1, 0),
		choiceQuestion("q2", 1, 1),
		choiceQuestion("q3", 1, 2),
	})

	answers := map[string]model.Answer{
		"q1": model.ChoiceAnswer(0),
		"q2": model.ChoiceAnswer(1),
		"q3": model.ChoiceAnswer(1),
	}

	got := Score(bank, answers)
	if got.Earned != 2 || got.Max != 3 {
		t.Fatalf("Score = %d/%d, want 2/3", got.Earned, got.Max)
	}
}

func TestScoreIgnoresFreeText(t *testing.T) {
	bank := model.NewBank([]model.Question{
		choiceQuestion("q1", 2, 0),
		{
			ID:     "q2",
			Type:   model.QuestionTypeFreeText,
			Points: 10,
			Prompt: "essay",
		},
	})

	answers := map[string]model.Answer{
		"q1": model.ChoiceAnswer(0),
		"q2": model.TextAnswer("long form answer"),
	}

	got := Score(bank, answers)
	if got.Earned != 2 || got.Max != 2 {
		t.Fatalf("Score = %d/%d, want 2/2 (free text excluded)", got.Earned, got.Max)
	}
}

func TestScoreUnansweredAndWrongTypeEarnNothing(t *testing.T) {
	bank := model.NewBank([]model.Question{
		choiceQuestion("q1", 3, 1),
		choiceQuestion("q2", 3, 2),
	})

	// q1 unanswered, q2 answered with free text instead of a choice.
	answers := map[string]model.Answer{
		"q2": model.TextAnswer("2"),
	}

	got := Score(bank, answers)
	if got.Earned != 0 || got.Max != 6 {
		t.Fatalf("Score = %d/%d, want 0/6", got.Earned, got.Max)
	}
}

func TestScoreEmptyBank(t *testing.T) {
	got := Score(model.NewBank(nil), nil)
	if got.Earned != 0 || got.Max != 0 {
		t.Fatalf("Score = %d/%d, want 0/0", got.Earned, got.Max)
	}
}

func TestScoreProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n")

		questions := make([]model.Question, 0, n)
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("q%d", i)
			if rapid.Bool().Draw(t, "freetext") {
				questions = append(questions, model.Question{
					ID:     id,
					Type:   model.QuestionTypeFreeText,
					Points: rapid.IntRange(1, 5).Draw(t, "pts"),
				})
				continue
			}
			questions = append(questions, choiceQuestion(id,
				rapid.IntRange(1, 5).Draw(t, "pts"),
				rapid.IntRange(0, 3).Draw(t, "correct")))
		}
		bank := model.NewBank(questions)

		answers := make(map[string]model.Answer)
		for _, q := range questions {
			if rapid.Bool().Draw(t, "answered") {
				answers[q.ID] = model.ChoiceAnswer(rapid.IntRange(0, 3).Draw(t, "choice"))
			}
		}

		first := Score(bank, answers)
		second := Score(bank, answers)
		if first != second {
			t.Fatalf("scoring not deterministic: %+v vs %+v", first, second)
		}

		if first.Earned > first.Max {
			t.Fatalf("earned %d exceeds max %d", first.Earned, first.Max)
		}

		// Max depends only on the bank, never on the answers.
		empty := Score(bank, nil)
		if empty.Max != first.Max {
			t.Fatalf("max changed with answers: %d vs %d", empty.Max, first.Max)
		}
	})
}
