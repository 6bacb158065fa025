package session

import (
	"context"
	"errors"

	"github.com/medsimlab/clinsim-backend/internal/model"
)

// ErrNoSnapshot is returned by a SnapshotStore when no snapshot exists for
// a session.
var ErrNoSnapshot = errors.New("no snapshot for session")

// SnapshotStore persists serialized session snapshots. A write happens
// after every applied transition and always reflects a fully-applied state.
type SnapshotStore interface {
	Save(ctx context.Context, sessionID string, snapshot []byte) error
	Load(ctx context.Context, sessionID string) ([]byte, error)
}

// AuditSource reads a session's interaction events from the external
// append-only audit log. Order is not guaranteed; the stress detector sorts.
type AuditSource interface {
	EntriesForSession(ctx context.Context, sessionID string) ([]model.AuditEntry, error)
}
