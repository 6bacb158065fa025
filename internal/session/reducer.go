package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/medsimlab/clinsim-backend/internal/model"
	"github.com/medsimlab/clinsim-backend/internal/scoring"
)

// NewState builds the initial session state for a case study: empty answers
// and scores, a zeroed competency profile and the case study's base
// clinical data as the visible starting point.
func NewState(cs *model.CaseStudy, learnerID int, now time.Time) model.SessionState {
	profile := make(map[model.CJMMStep]float64, len(model.CJMMSteps))
	for _, step := range model.CJMMSteps {
		profile[step] = 0
	}

	return model.SessionState{
		ID:                 uuid.New().String(),
		CaseStudyID:        cs.ID,
		LearnerID:          learnerID,
		CurrentItemIndex:   0,
		Answers:            map[string]any{},
		Scores:             map[string]float64{},
		StartTime:          now,
		Status:             model.SessionStatusActive,
		StressState:        model.StressFocused,
		CJMMProfile:        profile,
		AdministeredMeds:   map[string]model.MedAdministration{},
		ActiveClinicalData: cs.ClinicalData,
	}
}

// Apply is the pure transition function of the session state machine. It
// never mutates its input; every changed map or list is cloned first. All
// transitions are total: unknown actions, unknown item ids and submissions
// against a completed session return the state unchanged.
func Apply(cs *model.CaseStudy, state model.SessionState, action Action) model.SessionState {
	switch a := action.(type) {
	case SubmitAnswer:
		return applySubmit(cs, state, a)
	case NextItem:
		return applyNext(cs, state)
	case Complete:
		return applyComplete(state, a.At)
	case AdministerMed:
		return applyAdministerMed(state, a)
	case UpdateStress:
		state.StressState = a.State
		return state
	case Resume:
		return applyResume(state, a.Snapshot)
	default:
		return state
	}
}

func applySubmit(cs *model.CaseStudy, state model.SessionState, a SubmitAnswer) model.SessionState {
	if state.Status == model.SessionStatusCompleted {
		return state
	}
	item := cs.ItemByID(a.ItemID)
	if item == nil {
		return state
	}

	res := scoring.Score(item, a.Answer)

	answers := make(map[string]any, len(state.Answers)+1)
	for k, v := range state.Answers {
		answers[k] = v
	}
	answers[a.ItemID] = a.Answer

	scores := make(map[string]float64, len(state.Scores)+1)
	for k, v := range state.Scores {
		scores[k] = v
	}
	scores[a.ItemID] = res.Earned

	state.Answers = answers
	state.Scores = scores
	state.CJMMProfile = recomputeProfileStep(cs, state.CJMMProfile, scores, item.Pedagogy.CJMMStep)
	return state
}

// recomputeProfileStep rebuilds the rolling accuracy for a single
// clinical-judgment step from every answered item tagged with it. Other
// steps keep their previous values.
func recomputeProfileStep(cs *model.CaseStudy, profile map[model.CJMMStep]float64, scores map[string]float64, step model.CJMMStep) map[model.CJMMStep]float64 {
	next := make(map[model.CJMMStep]float64, len(profile))
	for k, v := range profile {
		next[k] = v
	}

	var earned, max float64
	for i := range cs.Items {
		item := &cs.Items[i]
		if item.Pedagogy.CJMMStep != step {
			continue
		}
		score, answered := scores[item.ID]
		if !answered {
			continue
		}
		earned += score
		max += itemMaxPoints(item)
	}

	if max > 0 {
		next[step] = earned / max
	} else {
		next[step] = 0
	}
	return next
}

func itemMaxPoints(item *model.Item) float64 {
	if item.Scoring.MaxPoints > 0 {
		return item.Scoring.MaxPoints
	}
	return 1
}

func applyNext(cs *model.CaseStudy, state model.SessionState) model.SessionState {
	if state.Status == model.SessionStatusCompleted {
		return state
	}
	last := len(cs.Items) - 1
	if last < 0 || state.CurrentItemIndex >= last {
		return state
	}

	state.CurrentItemIndex++
	if phase, ok := cs.EHRPhases[state.CurrentItemIndex]; ok {
		state.ActiveClinicalData = mergeClinicalData(state.ActiveClinicalData, phase)
	}
	return state
}

// mergeClinicalData appends a phase's partial update onto the visible
// clinical data. Lists only ever grow; nothing is replaced.
func mergeClinicalData(base, update model.ClinicalData) model.ClinicalData {
	return model.ClinicalData{
		Notes:        appendClone(base.Notes, update.Notes),
		Vitals:       appendClone(base.Vitals, update.Vitals),
		Labs:         appendClone(base.Labs, update.Labs),
		PhysicalExam: appendClone(base.PhysicalExam, update.PhysicalExam),
		Orders:       appendClone(base.Orders, update.Orders),
		Imaging:      appendClone(base.Imaging, update.Imaging),
		Medications:  appendClone(base.Medications, update.Medications),
		Pearls:       appendClone(base.Pearls, update.Pearls),
	}
}

// appendClone concatenates into a fresh backing array so neither input is
// aliased by the result.
func appendClone[T any](base, update []T) []T {
	if len(base) == 0 && len(update) == 0 {
		return nil
	}
	out := make([]T, 0, len(base)+len(update))
	out = append(out, base...)
	return append(out, update...)
}

func applyComplete(state model.SessionState, at time.Time) model.SessionState {
	if state.Status == model.SessionStatusCompleted {
		return state
	}
	state.Status = model.SessionStatusCompleted
	state.EndTime = &at
	return state
}

func applyAdministerMed(state model.SessionState, a AdministerMed) model.SessionState {
	if state.Status == model.SessionStatusCompleted {
		return state
	}

	meds := make(map[string]model.MedAdministration, len(state.AdministeredMeds)+1)
	for k, v := range state.AdministeredMeds {
		meds[k] = v
	}
	// Re-administration of the same med overwrites the earlier record.
	meds[a.MedID] = model.MedAdministration{
		MedID:          a.MedID,
		Timestamp:      a.At,
		ItemIndex:      state.CurrentItemIndex,
		RightsChecked:  a.RightsChecked,
		AdministeredBy: a.NurseName,
	}

	state.AdministeredMeds = meds
	return state
}

// applyResume swaps in the snapshot wholesale except for the case-study
// reference, which stays attached to the live template so a stale one is
// never resurrected from disk.
func applyResume(state model.SessionState, snapshot model.SessionState) model.SessionState {
	snapshot.CaseStudyID = state.CaseStudyID
	return snapshot
}
