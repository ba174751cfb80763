package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/proctorly/assessment-backend/internal/config"
	"github.com/proctorly/assessment-backend/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps session artifacts in Redis hashes/lists and feeds the
// persistence queues consumed by the archive workers.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// SaveAnswer upserts one answer in the session hash and queues it for the
// PostgreSQL archive.
func (s *RedisStore) SaveAnswer(ctx context.Context, ref SessionRef, questionID string, ans model.Answer) error {
	raw, err := json.Marshal(ans)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}

	key := config.CacheKey.AnswersKey(ref.AssessmentID, ref.CandidateID)
	if err := s.rdb.HSet(ctx, key, questionID, raw).Err(); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"candidate_id":  ref.CandidateID,
		"assessment_id": ref.AssessmentID,
		"q_id":          questionID,
		"answer":        json.RawMessage(raw),
	})
	return s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err()
}

// SaveMark upserts one review mark in the session hash.
func (s *RedisStore) SaveMark(ctx context.Context, ref SessionRef, questionID string, marked bool) error {
	key := config.CacheKey.MarksKey(ref.AssessmentID, ref.CandidateID)
	return s.rdb.HSet(ctx, key, questionID, strconv.FormatBool(marked)).Err()
}

// AppendSnapshot appends a proctoring snapshot to the session list and
// queues it for the archive.
func (s *RedisStore) AppendSnapshot(ctx context.Context, ref SessionRef, snap model.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	key := config.CacheKey.SnapshotsKey(ref.AssessmentID, ref.CandidateID)
	if err := s.rdb.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"candidate_id":  ref.CandidateID,
		"assessment_id": ref.AssessmentID,
		"ts":            snap.Ts,
		"q":             snap.QuestionIndex,
		"data":          snap.Data,
	})
	return s.rdb.RPush(ctx, config.WorkerKey.PersistSnapshotsQueue, payload).Err()
}

// RecordViolation queues an integrity event for the archive. Violations are
// not replayed into sessions, so nothing is kept in the hot namespace.
func (s *RedisStore) RecordViolation(ctx context.Context, ref SessionRef, v model.Violation) error {
	payload, err := json.Marshal(map[string]interface{}{
		"candidate_id":  ref.CandidateID,
		"assessment_id": ref.AssessmentID,
		"kind":          v.Kind,
		"detail":        v.Detail,
		"q":             v.QuestionIndex,
		"at":            v.At.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal violation: %w", err)
	}
	return s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err()
}

// SaveSubmission stores the final record and queues it for the archive.
func (s *RedisStore) SaveSubmission(ctx context.Context, ref SessionRef, sub *model.Submission) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}

	key := config.CacheKey.SubmissionKey(ref.AssessmentID, ref.CandidateID)
	if err := s.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("save submission: %w", err)
	}

	return s.rdb.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, raw).Err()
}

// LoadAnswers restores all saved answers; empty map when nothing was saved.
func (s *RedisStore) LoadAnswers(ctx context.Context, ref SessionRef) (map[string]model.Answer, error) {
	key := config.CacheKey.AnswersKey(ref.AssessmentID, ref.CandidateID)
	raw, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}

	answers := make(map[string]model.Answer, len(raw))
	for qid, val := range raw {
		var ans model.Answer
		if err := json.Unmarshal([]byte(val), &ans); err != nil {
			continue // Skip unreadable entries, restore is best-effort
		}
		answers[qid] = ans
	}
	return answers, nil
}

// LoadMarks restores all saved review marks.
func (s *RedisStore) LoadMarks(ctx context.Context, ref SessionRef) (map[string]bool, error) {
	key := config.CacheKey.MarksKey(ref.AssessmentID, ref.CandidateID)
	raw, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("load marks: %w", err)
	}

	marks := make(map[string]bool, len(raw))
	for qid, val := range raw {
		b, err := strconv.ParseBool(val)
		if err != nil {
			continue
		}
		marks[qid] = b
	}
	return marks, nil
}

// LoadSnapshots restores the ordered snapshot sequence.
func (s *RedisStore) LoadSnapshots(ctx context.Context, ref SessionRef) ([]model.Snapshot, error) {
	key := config.CacheKey.SnapshotsKey(ref.AssessmentID, ref.CandidateID)
	raw, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}

	snaps := make([]model.Snapshot, 0, len(raw))
	for _, val := range raw {
		var snap model.Snapshot
		if err := json.Unmarshal([]byte(val), &snap); err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// LoadSubmission restores the final record; nil when none was saved.
func (s *RedisStore) LoadSubmission(ctx context.Context, ref SessionRef) (*model.Submission, error) {
	key := config.CacheKey.SubmissionKey(ref.AssessmentID, ref.CandidateID)
	raw, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load submission: %w", err)
	}

	var sub model.Submission
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		return nil, fmt.Errorf("decode submission: %w", err)
	}
	return &sub, nil
}
