package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/medsimlab/clinsim-backend/internal/config"
	"github.com/medsimlab/clinsim-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AuditService ingests interaction events. Each event lands in two places in
// one pipeline: a capped per-session tail read by the stress detector, and
// the persist queue drained by the telemetry worker into PostgreSQL.
type AuditService struct {
	rdb        *redis.Client
	tailLength int64
	log        zerolog.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(rdb *redis.Client, tailLength int64, log zerolog.Logger) *AuditService {
	if tailLength <= 0 {
		tailLength = 200
	}
	return &AuditService{
		rdb:        rdb,
		tailLength: tailLength,
		log:        log.With().Str("component", "audit_service").Logger(),
	}
}

// Record appends one interaction event. The entry is timestamped server-side
// at ingestion.
func (s *AuditService) Record(ctx context.Context, sessionID string, req *model.RecordEventRequest) (*model.AuditEntry, error) {
	entry := &model.AuditEntry{
		Timestamp: time.Now(),
		Action:    req.Action,
		Target:    req.Target,
		ItemID:    req.ItemID,
		SessionID: sessionID,
		Metadata:  req.Metadata,
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encode audit entry: %w", err)
	}

	tailKey := config.CacheKey.SessionAuditTailKey(sessionID)

	pipe := s.rdb.Pipeline()
	pipe.RPush(ctx, tailKey, raw)
	pipe.LTrim(ctx, tailKey, -s.tailLength, -1)
	pipe.RPush(ctx, config.WorkerKey.PersistAuditQueue, raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("record audit entry: %w", err)
	}

	return entry, nil
}

// EntriesForSession returns the hot tail of a session's audit log in the
// order it was appended. Satisfies the session package's audit port.
func (s *AuditService) EntriesForSession(ctx context.Context, sessionID string) ([]model.AuditEntry, error) {
	tailKey := config.CacheKey.SessionAuditTailKey(sessionID)

	items, err := s.rdb.LRange(ctx, tailKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read audit tail: %w", err)
	}

	entries := make([]model.AuditEntry, 0, len(items))
	for _, item := range items {
		var entry model.AuditEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("Skipping malformed audit entry")
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ClearTail drops a session's hot tail, typically on completion. Durable
// rows in PostgreSQL are unaffected.
func (s *AuditService) ClearTail(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, config.CacheKey.SessionAuditTailKey(sessionID)).Err()
}
