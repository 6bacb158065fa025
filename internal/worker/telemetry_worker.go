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

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// TelemetryWorker drains the audit persist queue into PostgreSQL in batches.
// The hot tail in Redis serves stress inference; this worker is the durable
// path.
type TelemetryWorker struct {
	repo *repository.AuditRepository
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewTelemetryWorker creates a new TelemetryWorker.
func NewTelemetryWorker(repo *repository.AuditRepository, rdb *redis.Client, log zerolog.Logger) *TelemetryWorker {
	return &TelemetryWorker{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "telemetry_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *TelemetryWorker) Start(ctx context.Context) {
	w.log.Info().Msg("TelemetryWorker started")

	buffer := make([]*model.AuditEntry, 0, BatchSize)
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

		// 3. Fetch from Redis. BLPop blocks for 1 second, returns
		// immediately if data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistAuditQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
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

		var entry model.AuditEntry
		if err := json.Unmarshal([]byte(result[1]), &entry); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, &entry)
	}
}

// flushSafe attempts bulk insert, then row-by-row fallback, then requeue.
func (w *TelemetryWorker) flushSafe(ctx context.Context, batch []*model.AuditEntry) {
	if err := w.repo.BulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *TelemetryWorker) fallbackInsert(ctx context.Context, batch []*model.AuditEntry) {
	requeueList := make([]*model.AuditEntry, 0)

	for _, entry := range batch {
		if err := w.repo.Insert(ctx, entry); err != nil {
			w.log.Error().Err(err).Str("session_id", entry.SessionID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, entry)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *TelemetryWorker) requeue(ctx context.Context, items []*model.AuditEntry) {
	pipe := w.rdb.Pipeline()
	for _, entry := range items {
		data, _ := json.Marshal(entry)
		pipe.RPush(ctx, config.WorkerKey.PersistAuditQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	// Sleep a bit to avoid thrashing if the DB is down hard
	time.Sleep(2 * time.Second)
}

func (w *TelemetryWorker) shutdown(buffer []*model.AuditEntry) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
