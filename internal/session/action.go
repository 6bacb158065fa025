package session

import (
	"time"

	"github.com/medsimlab/clinsim-backend/internal/model"
)

// Action is a session state transition request. The reducer treats any
// unrecognized implementation as a no-op.
type Action interface {
	isAction()
}

// SubmitAnswer scores and records an answer for one item.
type SubmitAnswer struct {
	ItemID string
	Answer any
}

// NextItem advances the current item index, revealing any EHR phase update
// keyed to the new index.
type NextItem struct{}

// Complete terminates the session.
type Complete struct {
	At time.Time
}

// AdministerMed records a medication administration.
type AdministerMed struct {
	MedID         string
	RightsChecked []string
	NurseName     string
	At            time.Time
}

// UpdateStress replaces the current stress classification.
type UpdateStress struct {
	State model.StressState
}

// Resume replaces the whole state with a persisted snapshot, keeping the
// live case-study reference.
type Resume struct {
	Snapshot model.SessionState
}

func (SubmitAnswer) isAction()  {}
func (NextItem) isAction()      {}
func (Complete) isAction()      {}
func (AdministerMed) isAction() {}
func (UpdateStress) isAction()  {}
func (Resume) isAction()        {}
