package clinical

import (
	"testing"

	"github.com/medsimlab/clinsim-backend/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestCalculateMAP(t *testing.T) {
	assert.InDelta(t, 93.33, CalculateMAP(120, 80), 0.01)
	assert.InDelta(t, 60.0, CalculateMAP(90, 45), 0.01)
	assert.InDelta(t, 46.67, CalculateMAP(70, 35), 0.01)
}

func TestCalculateMEWSNormalVitals(t *testing.T) {
	v := model.VitalSigns{
		HeartRate:       72,
		SystolicBP:      118,
		RespiratoryRate: 14,
		Temperature:     98.6,
		Consciousness:   model.ConsciousnessAlert,
	}
	assert.Equal(t, 0, CalculateMEWS(v))
}

func TestCalculateMEWSDeterioratingPatient(t *testing.T) {
	// Tachycardic, hypotensive, tachypneic, febrile and responsive only to
	// pain: every parameter lands in a scored band.
	v := model.VitalSigns{
		HeartRate:       135,
		SystolicBP:      75,
		RespiratoryRate: 32,
		Temperature:     103.5,
		Consciousness:   model.ConsciousnessPain,
	}
	mews := CalculateMEWS(v)
	assert.GreaterOrEqual(t, mews, 10)
	assert.Equal(t, 12, mews)
}

func TestCalculateMEWSBandEdges(t *testing.T) {
	tests := []struct {
		name string
		v    model.VitalSigns
		want int
	}{
		{"bradycardia", model.VitalSigns{HeartRate: 38, SystolicBP: 120, RespiratoryRate: 12, Temperature: 98.6, Consciousness: model.ConsciousnessAlert}, 2},
		{"mild tachycardia", model.VitalSigns{HeartRate: 105, SystolicBP: 120, RespiratoryRate: 12, Temperature: 98.6, Consciousness: model.ConsciousnessAlert}, 1},
		{"severe hypotension", model.VitalSigns{HeartRate: 80, SystolicBP: 68, RespiratoryRate: 12, Temperature: 98.6, Consciousness: model.ConsciousnessAlert}, 3},
		{"hypothermia", model.VitalSigns{HeartRate: 80, SystolicBP: 120, RespiratoryRate: 12, Temperature: 94.0, Consciousness: model.ConsciousnessAlert}, 2},
		{"unresponsive", model.VitalSigns{HeartRate: 80, SystolicBP: 120, RespiratoryRate: 12, Temperature: 98.6, Consciousness: model.ConsciousnessUnresponsive}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateMEWS(tt.v))
		})
	}
}

func TestFlagLab(t *testing.T) {
	tests := []struct {
		name string
		lab  model.LabResult
		want model.LabFlag
	}{
		{"normal", model.LabResult{Name: "Sodium", Value: 140, RefLow: 135, RefHigh: 145}, model.LabFlagNormal},
		{"high", model.LabResult{Name: "WBC", Value: 14.2, RefLow: 4.5, RefHigh: 11.0}, model.LabFlagHigh},
		{"low", model.LabResult{Name: "WBC", Value: 3.1, RefLow: 4.5, RefHigh: 11.0}, model.LabFlagLow},
		{"critical high potassium", model.LabResult{Name: "Potassium", Value: 6.8, RefLow: 3.5, RefHigh: 5.0}, model.LabFlagCritical},
		{"critical low potassium", model.LabResult{Name: "Potassium", Value: 2.2, RefLow: 3.5, RefHigh: 5.0}, model.LabFlagCritical},
		{"high but not critical", model.LabResult{Name: "Potassium", Value: 5.4, RefLow: 3.5, RefHigh: 5.0}, model.LabFlagHigh},
		{"name-matched substring", model.LabResult{Name: "Potassium (serum)", Value: 6.8, RefLow: 3.5, RefHigh: 5.0}, model.LabFlagCritical},
		{"critical troponin", model.LabResult{Name: "Troponin I", Value: 2.3, RefLow: 0, RefHigh: 0.04}, model.LabFlagCritical},
		{"critical lactate", model.LabResult{Name: "Lactate", Value: 5.1, RefLow: 0.5, RefHigh: 2.2}, model.LabFlagCritical},
		{"no reference range", model.LabResult{Name: "Qualitative", Value: 1}, model.LabFlagNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FlagLab(tt.lab))
		})
	}
}

func TestDeriveAlerts(t *testing.T) {
	data := model.ClinicalData{
		Vitals: []model.VitalSigns{
			{HeartRate: 72, SystolicBP: 118, RespiratoryRate: 14, Temperature: 98.6, SpO2: 98, Consciousness: model.ConsciousnessAlert},
			{HeartRate: 135, SystolicBP: 75, RespiratoryRate: 32, Temperature: 103.5, SpO2: 86, Consciousness: model.ConsciousnessPain},
		},
		Labs: []model.LabResult{
			{Name: "Sodium", Value: 140, RefLow: 135, RefHigh: 145},
			{Name: "Lactate", Value: 5.1, Unit: "mmol/L", RefLow: 0.5, RefHigh: 2.2},
		},
	}

	alerts := DeriveAlerts(data)
	assert.Len(t, alerts, 3)
	assert.Contains(t, alerts[0], "MEWS")
	assert.Contains(t, alerts[1], "hypoxemia")
	assert.Contains(t, alerts[2], "Lactate")
}

func TestDeriveAlertsOnlyLatestVitalsCount(t *testing.T) {
	// The earlier critical snapshot is history; the latest one is stable.
	data := model.ClinicalData{
		Vitals: []model.VitalSigns{
			{HeartRate: 135, SystolicBP: 75, RespiratoryRate: 32, Temperature: 103.5, SpO2: 86, Consciousness: model.ConsciousnessPain},
			{HeartRate: 80, SystolicBP: 118, RespiratoryRate: 14, Temperature: 98.6, SpO2: 97, Consciousness: model.ConsciousnessAlert},
		},
	}

	assert.Empty(t, DeriveAlerts(data))
}
