package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/medsimlab/clinsim-backend/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSnapshotStore is an in-memory SnapshotStore for tests.
type memSnapshotStore struct {
	mu    sync.Mutex
	saves int
	last  map[string][]byte
}

func newMemSnapshotStore() *memSnapshotStore {
	return &memSnapshotStore{last: make(map[string][]byte)}
}

func (s *memSnapshotStore) Save(_ context.Context, sessionID string, snapshot []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.last[sessionID] = append([]byte(nil), snapshot...)
	return nil
}

func (s *memSnapshotStore) Load(_ context.Context, sessionID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.last[sessionID]
	if !ok {
		return nil, ErrNoSnapshot
	}
	return raw, nil
}

func (s *memSnapshotStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// memAuditSource serves a fixed set of entries.
type memAuditSource struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (s *memAuditSource) EntriesForSession(context.Context, string) ([]model.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditEntry(nil), s.entries...), nil
}

func (s *memAuditSource) set(entries []model.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
}

func newTestOrchestrator(t *testing.T, cfg Config) (*Orchestrator, *model.CaseStudy) {
	t.Helper()
	cs := testCaseStudy()
	state := NewState(cs, 1, time.Now())
	cfg.Log = zerolog.Nop()
	return New(cs, state, cfg), cs
}

func TestOrchestratorPersistsAfterEveryTransition(t *testing.T) {
	store := newMemSnapshotStore()
	orch, _ := newTestOrchestrator(t, Config{Snapshots: store})
	ctx := context.Background()

	orch.SubmitAnswer(ctx, "q1", "b")
	orch.NextItem(ctx)
	orch.AdministerMed(ctx, "med-abx", []string{"patient"}, "J. Rivera")
	orch.Complete(ctx)

	assert.Equal(t, 4, store.saveCount())

	// The stored snapshot reflects the final state.
	raw, err := store.Load(ctx, orch.State().ID)
	require.NoError(t, err)
	var snap model.SessionState
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.Equal(t, model.SessionStatusCompleted, snap.Status)
	assert.Equal(t, 1.0, snap.Scores["q1"])
}

func TestOrchestratorSubmitReturnsScoreResult(t *testing.T) {
	orch, _ := newTestOrchestrator(t, Config{Snapshots: newMemSnapshotStore()})

	state, res := orch.SubmitAnswer(context.Background(), "q2", []string{"a", "b"})
	assert.Equal(t, 2.0, res.Earned)
	assert.Equal(t, 3.0, res.Max)
	assert.InDelta(t, 2.0/3.0, res.Ratio, 1e-9)
	assert.Equal(t, 2.0, state.Scores["q2"])

	// Unknown items score zero out of one and change nothing.
	state, res = orch.SubmitAnswer(context.Background(), "ghost", "x")
	assert.Equal(t, 0.0, res.Earned)
	assert.Equal(t, 1.0, res.Max)
	assert.NotContains(t, state.Scores, "ghost")
}

func TestOrchestratorProgressAndReadiness(t *testing.T) {
	orch, cs := newTestOrchestrator(t, Config{Snapshots: newMemSnapshotStore()})
	ctx := context.Background()

	assert.InDelta(t, 100.0/float64(len(cs.Items)), orch.Progress(), 1e-9)
	assert.Equal(t, 0.5, orch.PassProbability())

	orch.SubmitAnswer(ctx, "q1", "b")
	assert.Greater(t, orch.PassProbability(), 0.5)

	orch.NextItem(ctx)
	orch.NextItem(ctx)
	assert.InDelta(t, 100.0, orch.Progress(), 1e-9)
}

func TestOrchestratorDerivesAlertsFromVisibleData(t *testing.T) {
	orch, _ := newTestOrchestrator(t, Config{Snapshots: newMemSnapshotStore()})
	ctx := context.Background()

	assert.Empty(t, orch.Alerts())

	// Advancing reveals the critical lactate.
	orch.NextItem(ctx)
	alerts := orch.Alerts()
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "Lactate")
}

func TestOrchestratorRefreshStress(t *testing.T) {
	audit := &memAuditSource{}
	var mu sync.Mutex
	var notified []model.StressState

	orch, _ := newTestOrchestrator(t, Config{
		Snapshots: newMemSnapshotStore(),
		Audit:     audit,
		OnStress: func(s model.StressState) {
			mu.Lock()
			notified = append(notified, s)
			mu.Unlock()
		},
	})
	ctx := context.Background()

	// Quiet log: stays focused, no notification.
	state, changed := orch.RefreshStress(ctx)
	assert.Equal(t, model.StressFocused, state)
	assert.False(t, changed)

	// Burst of answer toggles: panic, notified once.
	base := time.Now()
	var entries []model.AuditEntry
	for i := 0; i < 8; i++ {
		entries = append(entries, model.AuditEntry{
			Timestamp: base.Add(time.Duration(i) * 200 * time.Millisecond),
			Action:    model.AuditActionAnswerSelect,
			Target:    "opt-a",
		})
	}
	audit.set(entries)

	state, changed = orch.RefreshStress(ctx)
	assert.Equal(t, model.StressPanic, state)
	assert.True(t, changed)
	assert.Equal(t, model.StressPanic, orch.State().StressState)

	// Re-evaluating the same log changes nothing and fires no callback.
	_, changed = orch.RefreshStress(ctx)
	assert.False(t, changed)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []model.StressState{model.StressPanic}, notified)
}

func TestOrchestratorStressLoopStopsOnComplete(t *testing.T) {
	audit := &memAuditSource{}
	orch, _ := newTestOrchestrator(t, Config{
		Snapshots:    newMemSnapshotStore(),
		Audit:        audit,
		PollInterval: 5 * time.Millisecond,
	})
	ctx := context.Background()

	orch.StartStressLoop(ctx)
	time.Sleep(20 * time.Millisecond)

	orch.Complete(ctx)
	time.Sleep(20 * time.Millisecond)

	// The loop is gone; starting again is safe and idempotent.
	orch.StartStressLoop(ctx)
	orch.StopStressLoop()
	assert.Equal(t, model.SessionStatusCompleted, orch.State().Status)
}

func TestOrchestratorResumeFromSnapshot(t *testing.T) {
	store := newMemSnapshotStore()
	orch, cs := newTestOrchestrator(t, Config{Snapshots: store})
	ctx := context.Background()

	orch.SubmitAnswer(ctx, "q1", "b")
	orch.NextItem(ctx)

	raw, err := store.Load(ctx, orch.State().ID)
	require.NoError(t, err)
	var snap model.SessionState
	require.NoError(t, json.Unmarshal(raw, &snap))

	fresh := New(cs, NewState(cs, 1, time.Now()), Config{Snapshots: store, Log: zerolog.Nop()})
	resumed := fresh.Resume(ctx, snap)

	assert.Equal(t, snap.ID, resumed.ID)
	assert.Equal(t, 1, resumed.CurrentItemIndex)
	assert.Equal(t, 1.0, resumed.Scores["q1"])
	require.Len(t, resumed.ActiveClinicalData.Labs, 1)
}
