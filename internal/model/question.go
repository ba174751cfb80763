package model

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeChoice   QuestionType = "CHOICE"
	QuestionTypeFreeText QuestionType = "FREE_TEXT"
)

// Question is a single item of the assessment. Immutable once loaded.
// CorrectChoice is never serialized towards candidates.
type Question struct {
	ID            string       `json:"id"`
	Section       string       `json:"section"`
	Type          QuestionType `json:"type"`
	Points        int          `json:"points"`
	Prompt        string       `json:"prompt"`
	Choices       []string     `json:"choices,omitempty"`
	CorrectChoice *int         `json:"-"`
}

// AutoGradable reports whether the question contributes to the automatic score.
func (q Question) AutoGradable() bool {
	return q.Type == QuestionTypeChoice && q.CorrectChoice != nil
}

// QuestionForCandidate is a question with grading data stripped, safe to send
// to the exam-taking client.
type QuestionForCandidate struct {
	ID      string       `json:"id"`
	Section string       `json:"section"`
	Type    QuestionType `json:"type"`
	Points  int          `json:"points"`
	Prompt  string       `json:"prompt"`
	Choices []string     `json:"choices,omitempty"`
}

// Bank is the ordered, immutable question set of one assessment.
type Bank struct {
	questions []Question
	byID      map[string]int
}

// NewBank builds a Bank from an ordered question list.
func NewBank(questions []Question) *Bank {
	byID := make(map[string]int, len(questions))
	for i, q := range questions {
		byID[q.ID] = i
	}
	return &Bank{questions: questions, byID: byID}
}

// Len returns the number of questions.
func (b *Bank) Len() int { return len(b.questions) }

// At returns the question at the given ordinal index.
func (b *Bank) At(i int) Question { return b.questions[i] }

// Contains reports whether a question with the given ID exists.
func (b *Bank) Contains(id string) bool {
	_, ok := b.byID[id]
	return ok
}

// Questions returns the ordered question list.
func (b *Bank) Questions() []Question { return b.questions }

// ForCandidate returns the bank stripped of correct answers.
func (b *Bank) ForCandidate() []QuestionForCandidate {
	out := make([]QuestionForCandidate, 0, len(b.questions))
	for _, q := range b.questions {
		out = append(out, QuestionForCandidate{
			ID:      q.ID,
			Section: q.Section,
			Type:    q.Type,
			Points:  q.Points,
			Prompt:  q.Prompt,
			Choices: q.Choices,
		})
	}
	return out
}
