package store

import (
	"context"
	"sync"

	"github.com/proctorly/assessment-backend/internal/model"
)

// MemoryStore is an in-process Store used by tests and as a degraded mode
// when Redis is unavailable: the session keeps working, artifacts just do
// not survive the process.
type MemoryStore struct {
	mu          sync.Mutex
	answers     map[SessionRef]map[string]model.Answer
	marks       map[SessionRef]map[string]bool
	snapshots   map[SessionRef][]model.Snapshot
	violations  map[SessionRef][]model.Violation
	submissions map[SessionRef]*model.Submission
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		answers:     make(map[SessionRef]map[string]model.Answer),
		marks:       make(map[SessionRef]map[string]bool),
		snapshots:   make(map[SessionRef][]model.Snapshot),
		violations:  make(map[SessionRef][]model.Violation),
		submissions: make(map[SessionRef]*model.Submission),
	}
}

func (s *MemoryStore) SaveAnswer(_ context.Context, ref SessionRef, questionID string, ans model.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answers[ref] == nil {
		s.answers[ref] = make(map[string]model.Answer)
	}
	s.answers[ref][questionID] = ans
	return nil
}

func (s *MemoryStore) SaveMark(_ context.Context, ref SessionRef, questionID string, marked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.marks[ref] == nil {
		s.marks[ref] = make(map[string]bool)
	}
	s.marks[ref][questionID] = marked
	return nil
}

func (s *MemoryStore) AppendSnapshot(_ context.Context, ref SessionRef, snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[ref] = append(s.snapshots[ref], snap)
	return nil
}

func (s *MemoryStore) RecordViolation(_ context.Context, ref SessionRef, v model.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.violations[ref] = append(s.violations[ref], v)
	return nil
}

func (s *MemoryStore) SaveSubmission(_ context.Context, ref SessionRef, sub *model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[ref] = sub
	return nil
}

func (s *MemoryStore) LoadAnswers(_ context.Context, ref SessionRef) (map[string]model.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.Answer, len(s.answers[ref]))
	for k, v := range s.answers[ref] {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) LoadMarks(_ context.Context, ref SessionRef) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.marks[ref]))
	for k, v := range s.marks[ref] {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) LoadSnapshots(_ context.Context, ref SessionRef) ([]model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Snapshot, len(s.snapshots[ref]))
	copy(out, s.snapshots[ref])
	return out, nil
}

func (s *MemoryStore) LoadSubmission(_ context.Context, ref SessionRef) (*model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submissions[ref], nil
}

// Violations returns recorded integrity events, for tests and review.
func (s *MemoryStore) Violations(ref SessionRef) []model.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Violation, len(s.violations[ref]))
	copy(out, s.violations[ref])
	return out
}
