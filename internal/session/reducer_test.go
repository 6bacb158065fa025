package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/medsimlab/clinsim-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCaseStudy() *model.CaseStudy {
	return &model.CaseStudy{
		ID:    "cs-1",
		Title: "Sepsis progression",
		ClinicalData: model.ClinicalData{
			Vitals: []model.VitalSigns{
				{HeartRate: 92, SystolicBP: 110, RespiratoryRate: 18, Temperature: 100.8, SpO2: 95, Consciousness: model.ConsciousnessAlert},
			},
			PhysicalExam: []string{"Warm, flushed skin"},
		},
		Items: []model.Item{
			{
				ID:              "q1",
				Type:            model.ItemTypeMultipleChoice,
				Scoring:         model.ScoringRule{Method: model.ScoringDichotomous, MaxPoints: 1},
				CorrectOptionID: "b",
				Pedagogy:        model.Pedagogy{CJMMStep: model.StepRecognizeCues},
			},
			{
				ID:               "q2",
				Type:             model.ItemTypeSelectAll,
				Scoring:          model.ScoringRule{Method: model.ScoringPolytomous, MaxPoints: 3},
				CorrectOptionIDs: []string{"a", "b", "c"},
				Pedagogy:         model.Pedagogy{CJMMStep: model.StepRecognizeCues},
			},
			{
				ID:              "q3",
				Type:            model.ItemTypeMultipleChoice,
				Scoring:         model.ScoringRule{Method: model.ScoringDichotomous, MaxPoints: 1},
				CorrectOptionID: "a",
				Pedagogy:        model.Pedagogy{CJMMStep: model.StepTakeActions},
			},
		},
		EHRPhases: map[int]model.ClinicalData{
			1: {
				Labs: []model.LabResult{
					{Name: "Lactate", Value: 4.2, Unit: "mmol/L", RefLow: 0.5, RefHigh: 2.2},
				},
			},
		},
	}
}

func TestNewState(t *testing.T) {
	cs := testCaseStudy()
	state := NewState(cs, 7, time.Now())

	assert.NotEmpty(t, state.ID)
	assert.Equal(t, "cs-1", state.CaseStudyID)
	assert.Equal(t, 7, state.LearnerID)
	assert.Equal(t, 0, state.CurrentItemIndex)
	assert.Equal(t, model.SessionStatusActive, state.Status)
	assert.Equal(t, model.StressFocused, state.StressState)
	assert.Empty(t, state.Answers)
	assert.Len(t, state.CJMMProfile, len(model.CJMMSteps))
	assert.Equal(t, cs.ClinicalData.Vitals, state.ActiveClinicalData.Vitals)
}

func TestApplySubmitRecordsAnswerAndScore(t *testing.T) {
	cs := testCaseStudy()
	state := NewState(cs, 1, time.Now())

	next := Apply(cs, state, SubmitAnswer{ItemID: "q1", Answer: "b"})

	assert.Equal(t, "b", next.Answers["q1"])
	assert.Equal(t, 1.0, next.Scores["q1"])
	assert.Equal(t, 1.0, next.CJMMProfile[model.StepRecognizeCues])

	// The input state is untouched.
	assert.Empty(t, state.Answers)
	assert.Empty(t, state.Scores)
}

func TestApplySubmitResubmissionOverwrites(t *testing.T) {
	cs := testCaseStudy()
	state := NewState(cs, 1, time.Now())

	state = Apply(cs, state, SubmitAnswer{ItemID: "q1", Answer: "b"})
	state = Apply(cs, state, SubmitAnswer{ItemID: "q1", Answer: "a"})

	assert.Equal(t, "a", state.Answers["q1"])
	assert.Equal(t, 0.0, state.Scores["q1"])
	assert.Equal(t, 0.0, state.CJMMProfile[model.StepRecognizeCues])
}

func TestApplySubmitBlendsProfileAcrossItems(t *testing.T) {
	cs := testCaseStudy()
	state := NewState(cs, 1, time.Now())

	// q1 perfect (1/1), q2 partial (2/3): recognizeCues = 3/4.
	state = Apply(cs, state, SubmitAnswer{ItemID: "q1", Answer: "b"})
	state = Apply(cs, state, SubmitAnswer{ItemID: "q2", Answer: []string{"a", "b"}})

	assert.InDelta(t, 0.75, state.CJMMProfile[model.StepRecognizeCues], 1e-9)
	assert.Equal(t, 0.0, state.CJMMProfile[model.StepTakeActions])
}

func TestApplySubmitUnknownItemIsNoOp(t *testing.T) {
	cs := testCaseStudy()
	state := NewState(cs, 1, time.Now())

	next := Apply(cs, state, SubmitAnswer{ItemID: "ghost", Answer: "b"})
	assert.Equal(t, state, next)
}

func TestApplyNextAdvancesAndReleasesPhase(t *testing.T) {
	cs := testCaseStudy()
	state := NewState(cs, 1, time.Now())
	require.Empty(t, state.ActiveClinicalData.Labs)

	state = Apply(cs, state, NextItem{})

	assert.Equal(t, 1, state.CurrentItemIndex)
	require.Len(t, state.ActiveClinicalData.Labs, 1)
	assert.Equal(t, "Lactate", state.ActiveClinicalData.Labs[0].Name)
	// Existing data survives the merge.
	assert.Len(t, state.ActiveClinicalData.Vitals, 1)
	assert.Equal(t, []string{"Warm, flushed skin"}, state.ActiveClinicalData.PhysicalExam)
}

func TestApplyNextClampsAtLastItem(t *testing.T) {
	cs := testCaseStudy()
	state := NewState(cs, 1, time.Now())

	for i := 0; i < 10; i++ {
		state = Apply(cs, state, NextItem{})
	}
	assert.Equal(t, len(cs.Items)-1, state.CurrentItemIndex)
}

func TestApplyNextPhaseMergeDoesNotAliasTemplate(t *testing.T) {
	cs := testCaseStudy()
	state := NewState(cs, 1, time.Now())
	state = Apply(cs, state, NextItem{})

	state.ActiveClinicalData.Labs[0].Value = 99

	assert.Equal(t, 4.2, cs.EHRPhases[1].Labs[0].Value)
}

func TestApplyCompleteStampsEndTime(t *testing.T) {
	cs := testCaseStudy()
	state := NewState(cs, 1, time.Now())
	at := time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC)

	state = Apply(cs, state, Complete{At: at})

	assert.Equal(t, model.SessionStatusCompleted, state.Status)
	require.NotNil(t, state.EndTime)
	assert.Equal(t, at, *state.EndTime)

	// A second Complete keeps the original end time.
	later := Apply(cs, state, Complete{At: at.Add(time.Hour)})
	assert.Equal(t, at, *later.EndTime)
}

func TestCompletedSessionRejectsMutations(t *testing.T) {
	cs := testCaseStudy()
	state := NewState(cs, 1, time.Now())
	state = Apply(cs, state, Complete{At: time.Now()})

	after := Apply(cs, state, SubmitAnswer{ItemID: "q1", Answer: "b"})
	assert.Empty(t, after.Answers)

	after = Apply(cs, state, NextItem{})
	assert.Equal(t, 0, after.CurrentItemIndex)

	after = Apply(cs, state, AdministerMed{MedID: "m1", At: time.Now()})
	assert.Empty(t, after.AdministeredMeds)
}

func TestApplyAdministerMed(t *testing.T) {
	cs := testCaseStudy()
	state := NewState(cs, 1, time.Now())
	state = Apply(cs, state, NextItem{})

	first := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	state = Apply(cs, state, AdministerMed{
		MedID:         "med-abx",
		RightsChecked: []string{"patient", "drug", "dose", "route", "time"},
		NurseName:     "J. Rivera",
		At:            first,
	})

	require.Len(t, state.AdministeredMeds, 1)
	rec := state.AdministeredMeds["med-abx"]
	assert.Equal(t, 1, rec.ItemIndex)
	assert.Equal(t, "J. Rivera", rec.AdministeredBy)

	// Re-administration overwrites the earlier record.
	state = Apply(cs, state, AdministerMed{MedID: "med-abx", NurseName: "K. Osei", At: first.Add(time.Minute)})
	require.Len(t, state.AdministeredMeds, 1)
	assert.Equal(t, "K. Osei", state.AdministeredMeds["med-abx"].AdministeredBy)
}

func TestApplyUpdateStress(t *testing.T) {
	cs := testCaseStudy()
	state := NewState(cs, 1, time.Now())

	state = Apply(cs, state, UpdateStress{State: model.StressPanic})
	assert.Equal(t, model.StressPanic, state.StressState)
}

func TestApplyResumeKeepsLiveCaseStudyReference(t *testing.T) {
	cs := testCaseStudy()
	live := NewState(cs, 1, time.Now())

	snapshot := NewState(cs, 1, time.Now())
	snapshot.CaseStudyID = "stale-cs"
	snapshot.CurrentItemIndex = 2
	snapshot.Scores = map[string]float64{"q1": 1}

	resumed := Apply(cs, live, Resume{Snapshot: snapshot})

	assert.Equal(t, live.CaseStudyID, resumed.CaseStudyID)
	assert.Equal(t, 2, resumed.CurrentItemIndex)
	assert.Equal(t, 1.0, resumed.Scores["q1"])
}

func TestSnapshotRoundTripIsLossless(t *testing.T) {
	cs := testCaseStudy()
	state := NewState(cs, 1, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	state = Apply(cs, state, SubmitAnswer{ItemID: "q1", Answer: "b"})
	state = Apply(cs, state, NextItem{})
	state = Apply(cs, state, AdministerMed{MedID: "med-abx", NurseName: "J. Rivera", At: time.Date(2025, 3, 10, 9, 5, 0, 0, time.UTC)})

	raw, err := json.Marshal(state)
	require.NoError(t, err)

	var restored model.SessionState
	require.NoError(t, json.Unmarshal(raw, &restored))

	resumed := Apply(cs, NewState(cs, 1, time.Now()), Resume{Snapshot: restored})

	assert.Equal(t, state.ID, resumed.ID)
	assert.Equal(t, state.CurrentItemIndex, resumed.CurrentItemIndex)
	assert.Equal(t, state.Scores, resumed.Scores)
	assert.Equal(t, state.CJMMProfile, resumed.CJMMProfile)
	assert.Equal(t, state.AdministeredMeds["med-abx"].AdministeredBy, resumed.AdministeredMeds["med-abx"].AdministeredBy)
}

func TestUnknownActionIsNoOp(t *testing.T) {
	cs := testCaseStudy()
	state := NewState(cs, 1, time.Now())

	assert.Equal(t, state, Apply(cs, state, nil))
}
