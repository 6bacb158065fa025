package model

import (
	"time"
)

// Patient is the demographic header of a case study.
type Patient struct {
	Name       string   `json:"name"`
	Age        int      `json:"age"`
	Sex        string   `json:"sex"`
	Allergies  []string `json:"allergies,omitempty"`
	CodeStatus string   `json:"codeStatus,omitempty"`
}

// Consciousness is the AVPU scale value of a vital-sign record.
type Consciousness string

const (
	ConsciousnessAlert        Consciousness = "Alert"
	ConsciousnessVoice        Consciousness = "Voice"
	ConsciousnessPain         Consciousness = "Pain"
	ConsciousnessUnresponsive Consciousness = "Unresponsive"
)

// VitalSigns is a single timestamped vital-sign snapshot. Temperature is
// recorded in degrees Fahrenheit.
type VitalSigns struct {
	Timestamp       time.Time     `json:"timestamp"`
	HeartRate       float64       `json:"heartRate"`
	SystolicBP      float64       `json:"systolicBp"`
	DiastolicBP     float64       `json:"diastolicBp"`
	RespiratoryRate float64       `json:"respiratoryRate"`
	Temperature     float64       `json:"temperature"`
	SpO2            float64       `json:"spo2"`
	Consciousness   Consciousness `json:"consciousness"`
}

// LabFlag classifies a lab value against its reference range.
type LabFlag string

const (
	LabFlagNormal   LabFlag = "N"
	LabFlagHigh     LabFlag = "H"
	LabFlagLow      LabFlag = "L"
	LabFlagCritical LabFlag = "C"
)

// LabResult is a single resulted lab value with its reference range.
type LabResult struct {
	Name       string    `json:"name"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	RefLow     float64   `json:"refLow"`
	RefHigh    float64   `json:"refHigh"`
	ResultedAt time.Time `json:"resultedAt"`
}

// ClinicalNote is a narrative chart entry.
type ClinicalNote struct {
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// ProviderOrder is a provider order visible in the chart.
type ProviderOrder struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	OrderedAt time.Time `json:"orderedAt"`
	Status    string    `json:"status"`
}

// ImagingResult is a resulted imaging study.
type ImagingResult struct {
	Modality   string    `json:"modality"`
	Impression string    `json:"impression"`
	ResultedAt time.Time `json:"resultedAt"`
}

// CaseMedication is a medication available for administration in the case.
type CaseMedication struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Dose  string `json:"dose"`
	Route string `json:"route"`
}

// ClinicalData groups everything visible in the simulated EHR. Phase updates
// append to these lists; they never replace them.
type ClinicalData struct {
	Notes        []ClinicalNote   `json:"notes,omitempty"`
	Vitals       []VitalSigns     `json:"vitals,omitempty"`
	Labs         []LabResult      `json:"labs,omitempty"`
	PhysicalExam []string         `json:"physicalExam,omitempty"`
	Orders       []ProviderOrder  `json:"orders,omitempty"`
	Imaging      []ImagingResult  `json:"imaging,omitempty"`
	Medications  []CaseMedication `json:"medications,omitempty"`
	Pearls       []string         `json:"pearls,omitempty"`
}

// CaseStudy is the immutable authored template a session runs against.
// EHRPhases maps an item index to the partial clinical data revealed when the
// learner advances to that index.
type CaseStudy struct {
	ID           string               `json:"id"`
	Title        string               `json:"title"`
	Patient      Patient              `json:"patient"`
	ClinicalData ClinicalData         `json:"clinicalData"`
	Items        []Item               `json:"items"`
	EHRPhases    map[int]ClinicalData `json:"ehrPhases,omitempty"`
}

// ItemByID looks up an item by id. Returns nil if absent.
func (cs *CaseStudy) ItemByID(id string) *Item {
	for i := range cs.Items {
		if cs.Items[i].ID == id {
			return &cs.Items[i]
		}
	}
	return nil
}

// ─── Learner-facing payload (answer keys stripped) ──────────────────

// ItemForLearner is an item without its answer key or rationale.
type ItemForLearner struct {
	ID            string            `json:"id"`
	Type          ItemType          `json:"type"`
	Stem          string            `json:"stem"`
	MediaURL      string            `json:"mediaUrl,omitempty"`
	Options       []ItemOption      `json:"options,omitempty"`
	MaxSelections int               `json:"maxSelections,omitempty"`
	MatrixRows    []MatrixRow       `json:"matrixRows,omitempty"`
	Blanks        []BlankForLearner `json:"blanks,omitempty"`
	MaxPoints     float64           `json:"maxPoints"`
}

// BlankForLearner is a cloze blank without its key.
type BlankForLearner struct {
	ID      string       `json:"id"`
	Options []ItemOption `json:"options,omitempty"`
}

// CaseStudyPayload is the cached, learner-safe view of a case study.
type CaseStudyPayload struct {
	CaseStudyID  string           `json:"case_study_id"`
	Title        string           `json:"title"`
	Patient      Patient          `json:"patient"`
	ClinicalData ClinicalData     `json:"clinical_data"`
	Items        []ItemForLearner `json:"items"`
}
