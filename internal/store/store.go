// Package store provides best-effort persistence of session artifacts.
// Writes are fire-and-forget from the session's point of view: a failed
// save is logged by the caller and never interrupts the in-memory session.
package store

import (
	"context"

	"github.com/proctorly/assessment-backend/internal/model"
)

// SessionRef identifies one candidate's attempt at one assessment. All
// artifacts are keyed under this stable namespace.
type SessionRef struct {
	AssessmentID string
	CandidateID  int
}

// Store is the durable key/value layer for session artifacts. Restore
// methods return empty (not an error) when nothing was saved.
type Store interface {
	SaveAnswer(ctx context.Context, ref SessionRef, questionID string, ans model.Answer) error
	SaveMark(ctx context.Context, ref SessionRef, questionID string, marked bool) error
	AppendSnapshot(ctx context.Context, ref SessionRef, snap model.Snapshot) error
	RecordViolation(ctx context.Context, ref SessionRef, v model.Violation) error
	SaveSubmission(ctx context.Context, ref SessionRef, sub *model.Submission) error

	LoadAnswers(ctx context.Context, ref SessionRef) (map[string]model.Answer, error)
	LoadMarks(ctx context.Context, ref SessionRef) (map[string]bool, error)
	LoadSnapshots(ctx context.Context, ref SessionRef) ([]model.Snapshot, error)
	LoadSubmission(ctx context.Context, ref SessionRef) (*model.Submission, error)
}
