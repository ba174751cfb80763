package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proctorly/assessment-backend/internal/config"
	"github.com/proctorly/assessment-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SubmissionWorker consumes persist_submissions_queue and archives final
// records to PostgreSQL. The archive insert is idempotent, so a retried
// queue item never produces a duplicate row.
type SubmissionWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewSubmissionWorker creates a new SubmissionWorker.
func NewSubmissionWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *SubmissionWorker {
	return &SubmissionWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "submission_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *SubmissionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *SubmissionWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistSubmissionsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var sub model.Submission
	if err := json.Unmarshal([]byte(result[1]), &sub); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.persistSubmission(ctx, &sub); err != nil {
		w.log.Error().Err(err).
			Int("candidate_id", sub.Candidate.ID).
			Str("submission_id", sub.ID.String()).
			Msg("Persist error, retrying in 5s")
		w.rdb.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *SubmissionWorker) persistSubmission(ctx context.Context, sub *model.Submission) error {
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return err
	}
	marks, err := json.Marshal(sub.Marks)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`INSERT INTO submissions (id, assessment_id, candidate_id, answers, marks,
		                          snapshot_count, score_earned, score_max, trigger, submitted_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7, $8, $9, $10)
		 ON CONFLICT DO NOTHING`,
		sub.ID, sub.AssessmentID, sub.Candidate.ID, string(answers), string(marks),
		len(sub.Snapshots), sub.Score.Earned, sub.Score.Max, sub.Trigger, sub.SubmittedAt,
	)
	return err
}

// drain processes all remaining items in the queue before shutdown.
func (w *SubmissionWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistSubmissionsQueue).Result()
		if err != nil {
			break
		}

		var sub model.Submission
		if err := json.Unmarshal([]byte(result), &sub); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persistSubmission(ctx, &sub); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
