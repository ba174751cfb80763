package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmitTrigger names what caused a submission.
type SubmitTrigger string

const (
	TriggerManual  SubmitTrigger = "manual"
	TriggerTimeout SubmitTrigger = "timeout"
)

// Score is the automatic grading result.
type Score struct {
	Earned int `json:"score"`
	Max    int `json:"max"`
}

// Submission is the immutable final record of one attempt. Created exactly
// once per session, never mutated afterward.
type Submission struct {
	ID           uuid.UUID         `json:"id"`
	AssessmentID string            `json:"assessment_id"`
	Candidate    Candidate         `json:"candidate"`
	Answers      map[string]Answer `json:"answers"`
	Marks        map[string]bool   `json:"marked"`
	Snapshots    []Snapshot        `json:"snapshots"`
	Score        Score             `json:"score"`
	Trigger      SubmitTrigger     `json:"trigger"`
	SubmittedAt  time.Time         `json:"submitted_at"`
}

// SubmissionSummary is one archived submission row for reviewer listings.
// Snapshot payloads are dropped, only the count is kept.
type SubmissionSummary struct {
	ID            uuid.UUID     `json:"id"`
	AssessmentID  string        `json:"assessment_id"`
	CandidateID   int           `json:"candidate_id"`
	CandidateName string        `json:"candidate_name"`
	Score         Score         `json:"score"`
	SnapshotCount int           `json:"snapshot_count"`
	Trigger       SubmitTrigger `json:"trigger"`
	SubmittedAt   time.Time     `json:"submitted_at"`
}
