package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/medsimlab/clinsim-backend/internal/config"
	"github.com/medsimlab/clinsim-backend/internal/model"
	"github.com/medsimlab/clinsim-backend/internal/repository"
	"github.com/medsimlab/clinsim-backend/internal/scoring"
	"github.com/medsimlab/clinsim-backend/internal/session"
	"github.com/medsimlab/clinsim-backend/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Session service errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotSessionOwner = errors.New("session belongs to another learner")
)

// redisSnapshotStore is the write-through snapshot port: the latest snapshot
// is SET for fast resume and also queued for the snapshot worker to batch
// into PostgreSQL.
type redisSnapshotStore struct {
	rdb *redis.Client
}

func (s *redisSnapshotStore) Save(ctx context.Context, sessionID string, snapshot []byte) error {
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.SessionSnapshotKey(sessionID), snapshot, 0)
	pipe.RPush(ctx, config.WorkerKey.PersistSnapshotsQueue, snapshot)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisSnapshotStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.SessionSnapshotKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNoSnapshot
	}
	return raw, err
}

// SessionService owns the live session orchestrators. One orchestrator per
// in-flight session, held in memory for the whole attempt; resume re-hydrates
// from the snapshot chain (Redis, then PostgreSQL).
type SessionService struct {
	mu       sync.RWMutex
	sessions map[string]*session.Orchestrator

	caseStudies *CaseStudyService
	audit       *AuditService
	repo        *repository.SessionRepository
	rdb         *redis.Client
	snapshots   session.SnapshotStore
	cfg         *config.Config
	log         zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	caseStudies *CaseStudyService,
	audit *AuditService,
	repo *repository.SessionRepository,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessions:    make(map[string]*session.Orchestrator),
		caseStudies: caseStudies,
		audit:       audit,
		repo:        repo,
		rdb:         rdb,
		snapshots:   &redisSnapshotStore{rdb: rdb},
		cfg:         cfg,
		log:         log.With().Str("component", "session_service").Logger(),
	}
}

// Start begins a session for a learner on a case study. If the learner
// already has an active session on that case study it is resumed instead, so
// a reconnect never forks a second attempt.
func (s *SessionService) Start(ctx context.Context, learnerID int, caseStudyID string) (*session.Orchestrator, bool, error) {
	if existingID, err := s.findActiveSessionID(ctx, learnerID, caseStudyID); err == nil && existingID != "" {
		orch, err := s.resume(ctx, existingID, learnerID, caseStudyID)
		if err == nil {
			return orch, true, nil
		}
		s.log.Warn().Err(err).Str("session_id", existingID).Msg("Resume failed, starting fresh session")
	}

	cs, err := s.caseStudies.GetTemplate(ctx, caseStudyID)
	if err != nil {
		return nil, false, fmt.Errorf("load case study: %w", err)
	}

	state := session.NewState(cs, learnerID, time.Now())
	orch := s.buildOrchestrator(cs, state)

	s.register(orch)
	s.trackActiveSession(ctx, learnerID, caseStudyID, state.ID)
	orch.StartStressLoop(context.Background())

	s.log.Info().
		Str("session_id", state.ID).
		Str("case_study_id", caseStudyID).
		Int("learner_id", learnerID).
		Msg("Session started")
	return orch, false, nil
}

// Get returns the live orchestrator for a session, enforcing ownership.
func (s *SessionService) Get(sessionID string, learnerID int) (*session.Orchestrator, error) {
	s.mu.RLock()
	orch, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if orch.State().LearnerID != learnerID {
		return nil, ErrNotSessionOwner
	}
	return orch, nil
}

// SubmitAnswer scores an answer through the session's orchestrator and pushes
// the score and readiness updates to the live stream.
func (s *SessionService) SubmitAnswer(ctx context.Context, orch *session.Orchestrator, itemID string, answer any) (model.SessionState, scoring.Result) {
	state, result := orch.SubmitAnswer(ctx, itemID, answer)

	s.publish(ctx, state.ID, websocket.EventScore, websocket.ScorePayload{
		ItemID: itemID,
		Earned: result.Earned,
		Max:    result.Max,
		Ratio:  result.Ratio,
	})
	s.publish(ctx, state.ID, websocket.EventReadiness, websocket.ReadinessPayload{
		PassProbability: orch.PassProbability(),
		Progress:        orch.Progress(),
	})
	return state, result
}

// NextItem advances the session and pushes any newly derived clinical alerts.
func (s *SessionService) NextItem(ctx context.Context, orch *session.Orchestrator) model.SessionState {
	state := orch.NextItem(ctx)
	s.publish(ctx, state.ID, websocket.EventAlerts, websocket.AlertsPayload{Alerts: orch.Alerts()})
	return state
}

// Complete finishes a session: terminal transition, stream notification, and
// release of the in-memory orchestrator and the active-session marker.
func (s *SessionService) Complete(ctx context.Context, orch *session.Orchestrator) model.SessionState {
	state := orch.Complete(ctx)

	s.publish(ctx, state.ID, websocket.EventCompleted, websocket.ReadinessPayload{
		PassProbability: orch.PassProbability(),
		Progress:        orch.Progress(),
	})

	s.rdb.Del(ctx, config.CacheKey.LearnerActiveSessionKey(state.LearnerID, state.CaseStudyID))
	s.mu.Lock()
	delete(s.sessions, state.ID)
	s.mu.Unlock()

	s.log.Info().Str("session_id", state.ID).Msg("Session completed")
	return state
}

// resume rebuilds a live orchestrator from the newest snapshot available. A
// snapshot that fails to decode is treated as absent.
func (s *SessionService) resume(ctx context.Context, sessionID string, learnerID int, caseStudyID string) (*session.Orchestrator, error) {
	s.mu.RLock()
	if orch, ok := s.sessions[sessionID]; ok {
		s.mu.RUnlock()
		if orch.State().LearnerID != learnerID {
			return nil, ErrNotSessionOwner
		}
		return orch, nil
	}
	s.mu.RUnlock()

	snap, err := s.loadSnapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if snap.LearnerID != learnerID {
		return nil, ErrNotSessionOwner
	}
	if snap.Status != model.SessionStatusActive {
		return nil, fmt.Errorf("session %s is %s", sessionID, snap.Status)
	}

	cs, err := s.caseStudies.GetTemplate(ctx, caseStudyID)
	if err != nil {
		return nil, fmt.Errorf("load case study: %w", err)
	}

	fresh := session.NewState(cs, learnerID, time.Now())
	orch := s.buildOrchestrator(cs, fresh)
	orch.Resume(ctx, *snap)

	s.register(orch)
	orch.StartStressLoop(context.Background())

	s.log.Info().Str("session_id", sessionID).Msg("Session resumed")
	return orch, nil
}

// loadSnapshot reads the snapshot chain: Redis first, PostgreSQL fallback.
func (s *SessionService) loadSnapshot(ctx context.Context, sessionID string) (*model.SessionState, error) {
	raw, err := s.snapshots.Load(ctx, sessionID)
	if err != nil && !errors.Is(err, session.ErrNoSnapshot) {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("Snapshot cache read failed")
	}

	if len(raw) == 0 {
		raw, err = s.repo.GetSnapshot(ctx, sessionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, session.ErrNoSnapshot
			}
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
	}

	var snap model.SessionState
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", sessionID, err)
	}
	if snap.ID != sessionID {
		return nil, fmt.Errorf("snapshot id mismatch: %s", snap.ID)
	}
	return &snap, nil
}

func (s *SessionService) buildOrchestrator(cs *model.CaseStudy, state model.SessionState) *session.Orchestrator {
	sessionID := state.ID
	return session.New(cs, state, session.Config{
		Snapshots:    s.snapshots,
		Audit:        s.audit,
		PollInterval: s.cfg.StressPollInterval,
		StressWindow: s.cfg.StressWindow,
		// OnStress fires from the background poll loop long after the start
		// request has returned, so it must not hold the request context.
		OnStress: func(st model.StressState) {
			s.publish(context.Background(), sessionID, websocket.EventStress, websocket.StressPayload{State: string(st)})
		},
		Log: s.log,
	})
}

func (s *SessionService) register(orch *session.Orchestrator) {
	s.mu.Lock()
	s.sessions[orch.State().ID] = orch
	s.mu.Unlock()
}

func (s *SessionService) findActiveSessionID(ctx context.Context, learnerID int, caseStudyID string) (string, error) {
	key := config.CacheKey.LearnerActiveSessionKey(learnerID, caseStudyID)
	id, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", err
	}

	id, err = s.repo.FindActiveSession(ctx, learnerID, caseStudyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

func (s *SessionService) trackActiveSession(ctx context.Context, learnerID int, caseStudyID, sessionID string) {
	key := config.CacheKey.LearnerActiveSessionKey(learnerID, caseStudyID)
	if err := s.rdb.Set(ctx, key, sessionID, 0).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("Active session marker write failed")
	}
}

// publish pushes a stream event to the session's PubSub channel. Stream
// delivery is best-effort; state is already persisted before any publish.
func (s *SessionService) publish(ctx context.Context, sessionID, eventType string, payload any) {
	event, err := websocket.NewStreamEvent(eventType, sessionID, payload)
	if err != nil {
		return
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.SessionStreamChannel(sessionID), raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("Stream publish failed")
	}
}

// Shutdown stops every live stress loop. Snapshots are already durable; the
// orchestrators simply stop polling.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, orch := range s.sessions {
		orch.StopStressLoop()
	}
}
