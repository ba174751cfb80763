package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proctorly/assessment-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ViolationWorker consumes persist_violations_queue and archives integrity
// events to PostgreSQL for proctoring review.
type ViolationWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewViolationWorker creates a new ViolationWorker.
func NewViolationWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ViolationWorker {
	return &ViolationWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "violation_worker").Logger(),
	}
}

type violationPayload struct {
	CandidateID  int    `json:"candidate_id"`
	AssessmentID string `json:"assessment_id"`
	Kind         string `json:"kind"`
	Detail       string `json:"detail"`
	Q            int    `json:"q"`
	At           int64  `json:"at"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *ViolationWorker) Start(ctx context.Context) {
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

func (w *ViolationWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistViolationsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var payload violationPayload
	if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.persistViolation(ctx, &payload); err != nil {
		w.log.Error().Err(err).
			Int("candidate_id", payload.CandidateID).
			Str("kind", payload.Kind).
			Msg("Persist error, retrying in 5s")
		w.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *ViolationWorker) persistViolation(ctx context.Context, p *violationPayload) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO session_violations (assessment_id, candidate_id, kind, detail, question_index, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.AssessmentID, p.CandidateID, p.Kind, p.Detail, p.Q, time.Unix(p.At, 0),
	)
	return err
}

// drain processes all remaining items in the queue before shutdown.
func (w *ViolationWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistViolationsQueue).Result()
		if err != nil {
			break
		}

		var payload violationPayload
		if err := json.Unmarshal([]byte(result), &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persistViolation(ctx, &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
