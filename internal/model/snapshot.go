package model

// Snapshot is a single proof-of-presence still frame. The field names match
// the wire/persistence format used by the exam client.
type Snapshot struct {
	// Ts is the capture time, ISO-8601.
	Ts string `json:"ts"`
	// QuestionIndex is the question displayed at capture time.
	QuestionIndex int `json:"q"`
	// Data is the opaque encoded image payload.
	Data string `json:"data"`
}
