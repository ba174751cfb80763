package model

// Answer is the recorded value for one question: either a choice index or
// free text, never both.
type Answer struct {
	Choice *int    `json:"choice,omitempty"`
	Text   *string `json:"text,omitempty"`
}

// ChoiceAnswer builds an Answer holding a choice index.
func ChoiceAnswer(index int) Answer {
	return Answer{Choice: &index}
}

// TextAnswer builds an Answer holding free text.
func TextAnswer(text string) Answer {
	return Answer{Text: &text}
}

// Valid reports whether exactly one side of the union is set.
func (a Answer) Valid() bool {
	return (a.Choice != nil) != (a.Text != nil)
}
