package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/medsimlab/clinsim-backend/internal/clinical"
	"github.com/medsimlab/clinsim-backend/internal/model"
	"github.com/medsimlab/clinsim-backend/internal/readiness"
	"github.com/medsimlab/clinsim-backend/internal/scoring"
	"github.com/medsimlab/clinsim-backend/internal/stress"
	"github.com/rs/zerolog"
)

// Config wires an Orchestrator's collaborators.
type Config struct {
	Snapshots    SnapshotStore
	Audit        AuditSource
	PollInterval time.Duration
	StressWindow time.Duration
	// OnStress fires after every stress re-evaluation that changes the
	// classification (used to push live updates to the UI stream).
	OnStress func(model.StressState)
	Log      zerolog.Logger
}

// Orchestrator is the single writer of one session's state. Every mutation
// goes through the pure reducer under one mutex, followed by a snapshot
// write, so no two transitions ever interleave their read-modify-write.
type Orchestrator struct {
	mu    sync.Mutex
	id    string
	cs    *model.CaseStudy
	state model.SessionState

	snapshots    SnapshotStore
	audit        AuditSource
	pollInterval time.Duration
	stressWindow time.Duration
	onStress     func(model.StressState)
	log          zerolog.Logger

	cancelPoll context.CancelFunc
}

// New creates an orchestrator around an existing state (fresh or resumed).
func New(cs *model.CaseStudy, state model.SessionState, cfg Config) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.StressWindow <= 0 {
		cfg.StressWindow = stress.DefaultWindow
	}
	return &Orchestrator{
		id:           state.ID,
		cs:           cs,
		state:        state,
		snapshots:    cfg.Snapshots,
		audit:        cfg.Audit,
		pollInterval: cfg.PollInterval,
		stressWindow: cfg.StressWindow,
		onStress:     cfg.OnStress,
		log:          cfg.Log.With().Str("component", "session_orchestrator").Str("session_id", state.ID).Logger(),
	}
}

// apply runs one transition and persists the resulting snapshot. A failed
// snapshot write is logged but never fails the transition; the next write
// supersedes it.
func (o *Orchestrator) apply(ctx context.Context, action Action) model.SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state = Apply(o.cs, o.state, action)
	o.persistLocked(ctx)
	return o.state
}

func (o *Orchestrator) persistLocked(ctx context.Context) {
	if o.snapshots == nil {
		return
	}
	raw, err := json.Marshal(o.state)
	if err != nil {
		o.log.Error().Err(err).Msg("Snapshot marshal failed")
		return
	}
	if err := o.snapshots.Save(ctx, o.state.ID, raw); err != nil {
		o.log.Warn().Err(err).Msg("Snapshot write failed")
	}
}

// SubmitAnswer scores and records an answer, returning the new state and
// the per-item score result.
func (o *Orchestrator) SubmitAnswer(ctx context.Context, itemID string, answer any) (model.SessionState, scoring.Result) {
	state := o.apply(ctx, SubmitAnswer{ItemID: itemID, Answer: answer})

	item := o.cs.ItemByID(itemID)
	if item == nil {
		return state, scoring.Result{Max: 1}
	}
	res := scoring.Result{Earned: state.Scores[itemID], Max: itemMaxPoints(item)}
	if res.Max > 0 {
		res.Ratio = res.Earned / res.Max
	}
	return state, res
}

// NextItem advances the session to the next item.
func (o *Orchestrator) NextItem(ctx context.Context) model.SessionState {
	return o.apply(ctx, NextItem{})
}

// Complete terminates the session and stops the stress poll loop.
func (o *Orchestrator) Complete(ctx context.Context) model.SessionState {
	state := o.apply(ctx, Complete{At: time.Now()})
	o.StopStressLoop()
	return state
}

// AdministerMed records a medication administration at the current item.
func (o *Orchestrator) AdministerMed(ctx context.Context, medID string, rights []string, nurse string) model.SessionState {
	return o.apply(ctx, AdministerMed{
		MedID:         medID,
		RightsChecked: rights,
		NurseName:     nurse,
		At:            time.Now(),
	})
}

// Resume replaces the state from a persisted snapshot, keeping the live
// case-study template.
func (o *Orchestrator) Resume(ctx context.Context, snapshot model.SessionState) model.SessionState {
	return o.apply(ctx, Resume{Snapshot: snapshot})
}

// RefreshStress pulls the session's audit entries and re-classifies the
// stress state. Returns the classification and whether it changed.
func (o *Orchestrator) RefreshStress(ctx context.Context) (model.StressState, bool) {
	if o.audit == nil {
		return o.State().StressState, false
	}

	entries, err := o.audit.EntriesForSession(ctx, o.id)
	if err != nil {
		o.log.Warn().Err(err).Msg("Audit read failed, stress state unchanged")
		return o.State().StressState, false
	}

	detected := stress.Detect(entries, o.stressWindow)

	o.mu.Lock()
	changed := o.state.StressState != detected
	if changed {
		o.state = Apply(o.cs, o.state, UpdateStress{State: detected})
		o.persistLocked(ctx)
	}
	o.mu.Unlock()

	if changed && o.onStress != nil {
		o.onStress(detected)
	}
	return detected, changed
}

// StartStressLoop launches the periodic stress re-evaluation. The loop ends
// when ctx is cancelled, StopStressLoop is called, or the session leaves
// active status.
func (o *Orchestrator) StartStressLoop(ctx context.Context) {
	o.mu.Lock()
	if o.cancelPoll != nil {
		o.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	o.cancelPoll = cancel
	o.mu.Unlock()

	go o.stressLoop(ctx)
}

// StopStressLoop cancels the poll loop if running.
func (o *Orchestrator) StopStressLoop() {
	o.mu.Lock()
	cancel := o.cancelPoll
	o.cancelPoll = nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (o *Orchestrator) stressLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if o.State().Status != model.SessionStatusActive {
				o.StopStressLoop()
				return
			}
			o.RefreshStress(ctx)
		}
	}
}

// State returns a copy of the current session state.
func (o *Orchestrator) State() model.SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// CaseStudy returns the attached immutable template.
func (o *Orchestrator) CaseStudy() *model.CaseStudy {
	return o.cs
}

// CurrentItem returns the item at the current index, or nil for an empty
// case study.
func (o *Orchestrator) CurrentItem() *model.Item {
	o.mu.Lock()
	idx := o.state.CurrentItemIndex
	o.mu.Unlock()

	if idx < 0 || idx >= len(o.cs.Items) {
		return nil
	}
	return &o.cs.Items[idx]
}

// Progress reports completion as a percentage of items reached.
func (o *Orchestrator) Progress() float64 {
	if len(o.cs.Items) == 0 {
		return 0
	}
	o.mu.Lock()
	idx := o.state.CurrentItemIndex
	o.mu.Unlock()
	return float64(idx+1) / float64(len(o.cs.Items)) * 100
}

// PassProbability recomputes exam readiness from the full score history, in
// item order.
func (o *Orchestrator) PassProbability() float64 {
	o.mu.Lock()
	scores := o.state.Scores
	o.mu.Unlock()

	earned := make([]float64, 0, len(scores))
	totals := make([]float64, 0, len(scores))
	for i := range o.cs.Items {
		item := &o.cs.Items[i]
		score, answered := scores[item.ID]
		if !answered {
			continue
		}
		earned = append(earned, score)
		totals = append(totals, itemMaxPoints(item))
	}
	return readiness.PassProbability(earned, totals)
}

// Alerts derives the clinical alerts for the currently visible data.
func (o *Orchestrator) Alerts() []string {
	o.mu.Lock()
	data := o.state.ActiveClinicalData
	o.mu.Unlock()
	return clinical.DeriveAlerts(data)
}
