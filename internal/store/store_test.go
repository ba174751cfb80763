package store

import (
	"context"
	"testing"
	"time"

	"github.com/proctorly/assessment-backend/internal/model"
)

var testRef = SessionRef{AssessmentID: "general-assessment", CandidateID: 7}

func TestMemoryStoreAnswerLastWriteWins(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.SaveAnswer(ctx, testRef, "q1", model.ChoiceAnswer(0)); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if err := s.SaveAnswer(ctx, testRef, "q1", model.ChoiceAnswer(3)); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}

	answers, err := s.LoadAnswers(ctx, testRef)
	if err != nil {
		t.Fatalf("LoadAnswers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("got %d answers, want 1", len(answers))
	}
	if got := answers["q1"]; got.Choice == nil || *got.Choice != 3 {
		t.Fatalf("answer q1 = %+v, want choice 3", got)
	}
}

func TestMemoryStoreSnapshotsOrdered(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		snap := model.Snapshot{Ts: time.Now().UTC().Format(time.RFC3339), QuestionIndex: i, Data: "frame"}
		if err := s.AppendSnapshot(ctx, testRef, snap); err != nil {
			t.Fatalf("AppendSnapshot: %v", err)
		}
	}

	snaps, err := s.LoadSnapshots(ctx, testRef)
	if err != nil {
		t.Fatalf("LoadSnapshots: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(snaps))
	}
	for i, snap := range snaps {
		if snap.QuestionIndex != i {
			t.Fatalf("snapshot %d has question index %d", i, snap.QuestionIndex)
		}
	}
}

func TestMemoryStoreEmptyRestore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	answers, err := s.LoadAnswers(ctx, testRef)
	if err != nil || len(answers) != 0 {
		t.Fatalf("LoadAnswers = %v, %v; want empty, nil", answers, err)
	}
	marks, err := s.LoadMarks(ctx, testRef)
	if err != nil || len(marks) != 0 {
		t.Fatalf("LoadMarks = %v, %v; want empty, nil", marks, err)
	}
	sub, err := s.LoadSubmission(ctx, testRef)
	if err != nil || sub != nil {
		t.Fatalf("LoadSubmission = %v, %v; want nil, nil", sub, err)
	}
}

func TestMemoryStoreRefsIsolated(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	other := SessionRef{AssessmentID: testRef.AssessmentID, CandidateID: 8}

	if err := s.SaveMark(ctx, testRef, "q1", true); err != nil {
		t.Fatalf("SaveMark: %v", err)
	}

	marks, err := s.LoadMarks(ctx, other)
	if err != nil {
		t.Fatalf("LoadMarks: %v", err)
	}
	if len(marks) != 0 {
		t.Fatalf("marks leaked across session refs: %v", marks)
	}
}
