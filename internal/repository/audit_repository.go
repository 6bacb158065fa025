package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medsimlab/clinsim-backend/internal/model"
)

// AuditRepository handles durable audit-entry storage. Entries are
// append-only; the hot read path for stress inference is the Redis tail,
// with this table as the source of truth and fallback.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// BulkInsert appends a batch of entries via COPY.
func (r *AuditRepository) BulkInsert(ctx context.Context, entries []*model.AuditEntry) error {
	rows := make([][]interface{}, 0, len(entries))
	for _, e := range entries {
		var metadata []byte
		if e.Metadata != nil {
			raw, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata: %w", err)
			}
			metadata = raw
		}
		rows = append(rows, []interface{}{
			e.SessionID, e.ItemID, string(e.Action), e.Target, metadata, e.Timestamp,
		})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"audit_entries"},
		[]string{"session_id", "item_id", "action", "target", "metadata", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// Insert appends a single entry (fallback path when COPY fails).
func (r *AuditRepository) Insert(ctx context.Context, e *model.AuditEntry) error {
	var metadata []byte
	if e.Metadata != nil {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		metadata = raw
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_entries (session_id, item_id, action, target, metadata, recorded_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		e.SessionID, e.ItemID, string(e.Action), e.Target, metadata, e.Timestamp,
	)
	return err
}

// ListBySession returns all entries for a session in temporal order.
func (r *AuditRepository) ListBySession(ctx context.Context, sessionID string) ([]model.AuditEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, item_id, action, target, metadata, recorded_at
		 FROM audit_entries WHERE session_id = $1
		 ORDER BY recorded_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var action string
		var itemID *string
		var metadata []byte
		if err := rows.Scan(&e.SessionID, &itemID, &action, &e.Target, &metadata, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = model.AuditAction(action)
		if itemID != nil {
			e.ItemID = *itemID
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &e.Metadata)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
