package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medsimlab/clinsim-backend/internal/model"
)

// SessionRepository handles durable session snapshot rows. The hot path
// writes snapshots to Redis; the snapshot worker batches them into this
// table.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// SnapshotRow is one persisted snapshot record.
type SnapshotRow struct {
	SessionID   string
	CaseStudyID string
	LearnerID   int
	Status      model.SessionStatus
	Snapshot    []byte
	UpdatedAt   time.Time
}

// Upsert writes or replaces a single snapshot row.
func (r *SessionRepository) Upsert(ctx context.Context, row *SnapshotRow) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_snapshots (session_id, case_study_id, learner_id, status, snapshot)
		 VALUES ($1, $2, $3, $4, $5::jsonb)
		 ON CONFLICT (session_id) DO UPDATE
		 SET status = EXCLUDED.status, snapshot = EXCLUDED.snapshot, updated_at = NOW()`,
		row.SessionID, row.CaseStudyID, row.LearnerID, row.Status, row.Snapshot,
	)
	return err
}

// BulkUpsert writes a batch of snapshot rows with UNNEST in one statement.
func (r *SessionRepository) BulkUpsert(ctx context.Context, rows []*SnapshotRow) error {
	n := len(rows)
	if n == 0 {
		return nil
	}

	sessionIDs := make([]string, 0, n)
	caseStudyIDs := make([]string, 0, n)
	learnerIDs := make([]int, 0, n)
	statuses := make([]string, 0, n)
	snapshots := make([][]byte, 0, n)

	for _, row := range rows {
		sessionIDs = append(sessionIDs, row.SessionID)
		caseStudyIDs = append(caseStudyIDs, row.CaseStudyID)
		learnerIDs = append(learnerIDs, row.LearnerID)
		statuses = append(statuses, string(row.Status))
		snapshots = append(snapshots, row.Snapshot)
	}

	query := `
		INSERT INTO session_snapshots (session_id, case_study_id, learner_id, status, snapshot)
		SELECT u.session_id, u.case_study_id, u.learner_id, u.status, u.snapshot
		FROM UNNEST(
			$1::uuid[],
			$2::uuid[],
			$3::int[],
			$4::text[],
			$5::jsonb[]
		) AS u (session_id, case_study_id, learner_id, status, snapshot)
		ON CONFLICT (session_id) DO UPDATE
		SET status = EXCLUDED.status, snapshot = EXCLUDED.snapshot, updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, sessionIDs, caseStudyIDs, learnerIDs, statuses, snapshots)
	return err
}

// GetSnapshot returns the stored snapshot document for a session.
func (r *SessionRepository) GetSnapshot(ctx context.Context, sessionID string) ([]byte, error) {
	var snapshot []byte
	err := r.pool.QueryRow(ctx,
		`SELECT snapshot FROM session_snapshots WHERE session_id = $1`, sessionID,
	).Scan(&snapshot)
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// FindActiveSession returns the most recent active session id for a learner
// and case study, or pgx.ErrNoRows.
func (r *SessionRepository) FindActiveSession(ctx context.Context, learnerID int, caseStudyID string) (string, error) {
	var sessionID string
	err := r.pool.QueryRow(ctx,
		`SELECT session_id FROM session_snapshots
		 WHERE learner_id = $1 AND case_study_id = $2 AND status = 'active'
		 ORDER BY updated_at DESC LIMIT 1`,
		learnerID, caseStudyID,
	).Scan(&sessionID)
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

// MarkAbandoned is the administrative escape hatch for sessions that will
// never be completed. No reducer transition produces this status.
func (r *SessionRepository) MarkAbandoned(ctx context.Context, sessionID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE session_snapshots SET status = 'abandoned', updated_at = NOW()
		 WHERE session_id = $1 AND status = 'active'`,
		sessionID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s not active", sessionID)
	}
	return nil
}
