package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proctorly/assessment-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// SnapshotWorker batches proctoring snapshots from Redis into PostgreSQL.
// Snapshots are the highest-volume artifact (one per candidate per cadence),
// so the fast path is a bulk COPY.
type SnapshotWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewSnapshotWorker creates a new SnapshotWorker.
func NewSnapshotWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *SnapshotWorker {
	return &SnapshotWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "snapshot_worker").Logger(),
	}
}

type snapshotPayload struct {
	CandidateID  int    `json:"candidate_id"`
	AssessmentID string `json:"assessment_id"`
	Ts           string `json:"ts"`
	Q            int    `json:"q"`
	Data         string `json:"data"`
}

func (w *SnapshotWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	buffer := make([]*snapshotPayload, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Check flush conditions (time or size)
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0] // Clear buffer, keep capacity
				lastFlushTime = time.Now()
			}
		}

		// 2. Check context (graceful shutdown)
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// 3. Fetch from Redis
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistSnapshotsQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Queue empty, loop back to check flush timer
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var payload snapshotPayload
		if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, &payload)
	}
}

// flushSafe attempts bulk insert, then fallback insert, then requeue.
func (w *SnapshotWorker) flushSafe(ctx context.Context, batch []*snapshotPayload) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *SnapshotWorker) bulkInsert(ctx context.Context, batch []*snapshotPayload) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, p := range batch {
		capturedAt, err := time.Parse(time.RFC3339, p.Ts)
		if err != nil {
			// Trigger fallback, which drops the bad timestamp individually.
			return err
		}
		rows = append(rows, []interface{}{
			p.AssessmentID, p.CandidateID, capturedAt, p.Q, p.Data,
		})
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"session_snapshots"},
		[]string{"assessment_id", "candidate_id", "captured_at", "question_index", "frame"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *SnapshotWorker) fallbackInsert(ctx context.Context, batch []*snapshotPayload) {
	requeueList := make([]*snapshotPayload, 0)

	for _, p := range batch {
		capturedAt, err := time.Parse(time.RFC3339, p.Ts)
		if err != nil {
			w.log.Error().Str("ts", p.Ts).Msg("Dropping snapshot with invalid timestamp")
			continue
		}

		_, err = w.pool.Exec(ctx,
			`INSERT INTO session_snapshots (assessment_id, candidate_id, captured_at, question_index, frame)
			 VALUES ($1, $2, $3, $4, $5)`,
			p.AssessmentID, p.CandidateID, capturedAt, p.Q, p.Data,
		)
		if err != nil {
			w.log.Error().Err(err).Int("candidate_id", p.CandidateID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, p)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *SnapshotWorker) requeue(ctx context.Context, items []*snapshotPayload) {
	pipe := w.rdb.Pipeline()
	for _, p := range items {
		data, _ := json.Marshal(p)
		pipe.RPush(ctx, config.WorkerKey.PersistSnapshotsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
	} else {
		w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
		// Avoid thrashing if the DB is down hard.
		time.Sleep(2 * time.Second)
	}
}

func (w *SnapshotWorker) shutdown(buffer []*snapshotPayload) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
