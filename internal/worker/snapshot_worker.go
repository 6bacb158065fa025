package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/medsimlab/clinsim-backend/internal/config"
	"github.com/medsimlab/clinsim-backend/internal/model"
	"github.com/medsimlab/clinsim-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SnapshotWorker drains the snapshot persist queue into PostgreSQL. Each
// queue message is a full serialized session state; only the newest message
// per session in a batch is written.
type SnapshotWorker struct {
	repo *repository.SessionRepository
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewSnapshotWorker creates a new SnapshotWorker.
func NewSnapshotWorker(repo *repository.SessionRepository, rdb *redis.Client, log zerolog.Logger) *SnapshotWorker {
	return &SnapshotWorker{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "snapshot_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *SnapshotWorker) Start(ctx context.Context) {
	w.log.Info().Msg("SnapshotWorker started")

	buffer := make([]*repository.SnapshotRow, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistSnapshotsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
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

		row, err := decodeSnapshotRow([]byte(result[1]))
		if err != nil {
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed snapshot")
			continue
		}

		buffer = append(buffer, row)
	}
}

// decodeSnapshotRow extracts the row metadata from a serialized state. The
// raw bytes are stored verbatim as the snapshot document.
func decodeSnapshotRow(raw []byte) (*repository.SnapshotRow, error) {
	var state model.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	if state.ID == "" {
		return nil, errors.New("snapshot without session id")
	}
	return &repository.SnapshotRow{
		SessionID:   state.ID,
		CaseStudyID: state.CaseStudyID,
		LearnerID:   state.LearnerID,
		Status:      state.Status,
		Snapshot:    raw,
	}, nil
}

// flushSafe deduplicates and bulk-upserts, falling back to row-by-row.
func (w *SnapshotWorker) flushSafe(ctx context.Context, batch []*repository.SnapshotRow) {
	// A session can appear many times in one batch; the upsert statement
	// cannot touch the same row twice, so keep only the newest per session.
	deduped := dedupeNewest(batch)

	if err := w.repo.BulkUpsert(ctx, deduped); err != nil {
		w.log.Warn().Err(err).Int("count", len(deduped)).Msg("Bulk upsert failed, attempting row-by-row recovery")
		w.fallbackUpsert(ctx, deduped)
	}
}

// dedupeNewest keeps the last occurrence of each session, preserving batch
// order otherwise.
func dedupeNewest(batch []*repository.SnapshotRow) []*repository.SnapshotRow {
	last := make(map[string]int, len(batch))
	for i, row := range batch {
		last[row.SessionID] = i
	}

	out := make([]*repository.SnapshotRow, 0, len(last))
	for i, row := range batch {
		if last[row.SessionID] == i {
			out = append(out, row)
		}
	}
	return out
}

func (w *SnapshotWorker) fallbackUpsert(ctx context.Context, batch []*repository.SnapshotRow) {
	requeueList := make([]*repository.SnapshotRow, 0)

	for _, row := range batch {
		if err := w.repo.Upsert(ctx, row); err != nil {
			w.log.Error().Err(err).Str("session_id", row.SessionID).Msg("Upsert failed, requeueing")
			requeueList = append(requeueList, row)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *SnapshotWorker) requeue(ctx context.Context, items []*repository.SnapshotRow) {
	pipe := w.rdb.Pipeline()
	for _, row := range items {
		pipe.RPush(ctx, config.WorkerKey.PersistSnapshotsQueue, row.Snapshot)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue snapshots to Redis. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed snapshots back to Redis")
	time.Sleep(2 * time.Second)
}

func (w *SnapshotWorker) shutdown(buffer []*repository.SnapshotRow) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
