package model

import (
	"encoding/json"
	"time"
)

// SessionStatus enumerates case-study session states.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	// SessionStatusAbandoned is reachable only through administrative
	// action, never through a reducer transition.
	SessionStatusAbandoned SessionStatus = "abandoned"
)

// MedAdministration records one medication administration by the learner.
type MedAdministration struct {
	MedID          string    `json:"medId"`
	Timestamp      time.Time `json:"timestamp"`
	ItemIndex      int       `json:"itemIndex"`
	RightsChecked  []string  `json:"rightsChecked"`
	AdministeredBy string    `json:"administeredBy"`
}

// SessionState is the root session aggregate. It is mutated exclusively by
// the session reducer; everything else sees copies. The CaseStudy template
// itself is referenced by id and re-attached on resume, never persisted
// inside the snapshot.
type SessionState struct {
	ID                 string                       `json:"id"`
	CaseStudyID        string                       `json:"caseStudyId"`
	LearnerID          int                          `json:"learnerId"`
	CurrentItemIndex   int                          `json:"currentItemIndex"`
	Answers            map[string]any               `json:"answers"`
	Scores             map[string]float64           `json:"scores"`
	StartTime          time.Time                    `json:"startTime"`
	EndTime            *time.Time                   `json:"endTime,omitempty"`
	Status             SessionStatus                `json:"status"`
	StressState        StressState                  `json:"stressState"`
	CJMMProfile        map[CJMMStep]float64         `json:"cjmmProfile"`
	AdministeredMeds   map[string]MedAdministration `json:"administeredMeds"`
	ActiveClinicalData ClinicalData                 `json:"activeClinicalData"`
}

// ─── Request payloads ───────────────────────────────────────────────

// StartSessionRequest starts (or resumes) a session for a case study.
type StartSessionRequest struct {
	CaseStudyID string `json:"case_study_id" binding:"required,uuid"`
}

// SubmitAnswerRequest is the payload for submitting an item answer. The
// answer shape depends on the item type and is decoded as untyped JSON.
type SubmitAnswerRequest struct {
	ItemID string          `json:"item_id" binding:"required"`
	Answer json.RawMessage `json:"answer" binding:"required"`
}

// AdministerMedRequest records a medication administration.
type AdministerMedRequest struct {
	MedID         string   `json:"med_id" binding:"required"`
	RightsChecked []string `json:"rights_checked" binding:"required,min=1"`
	NurseName     string   `json:"nurse_name" binding:"required,min=1,max=120"`
}
