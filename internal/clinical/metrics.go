// Package clinical provides pure numeric helpers over vital-sign and
// lab-result snapshots: early-warning scoring, mean arterial pressure,
// lab flagging and bedside alert derivation.
package clinical

import (
	"fmt"
	"strings"

	"github.com/medsimlab/clinsim-backend/internal/model"
)

// CalculateMAP returns the mean arterial pressure for a systolic/diastolic
// pair: (SBP + 2*DBP) / 3.
func CalculateMAP(systolic, diastolic float64) float64 {
	return (systolic + 2*diastolic) / 3
}

// CalculateMEWS computes the Modified Early Warning Score for a vital-sign
// snapshot. Each parameter contributes a banded sub-score; the total is the
// sum. Temperature bands are in degrees Fahrenheit.
func CalculateMEWS(v model.VitalSigns) int {
	return heartRateScore(v.HeartRate) +
		systolicScore(v.SystolicBP) +
		respiratoryScore(v.RespiratoryRate) +
		temperatureScore(v.Temperature) +
		consciousnessScore(v.Consciousness)
}

func heartRateScore(hr float64) int {
	switch {
	case hr < 40:
		return 2
	case hr <= 50:
		return 1
	case hr <= 100:
		return 0
	case hr <= 110:
		return 1
	case hr <= 129:
		return 2
	default:
		return 3
	}
}

func systolicScore(sbp float64) int {
	switch {
	case sbp <= 70:
		return 3
	case sbp <= 80:
		return 2
	case sbp <= 100:
		return 1
	case sbp < 200:
		return 0
	default:
		return 2
	}
}

func respiratoryScore(rr float64) int {
	switch {
	case rr < 9:
		return 2
	case rr <= 14:
		return 0
	case rr <= 20:
		return 1
	case rr <= 29:
		return 2
	default:
		return 3
	}
}

func temperatureScore(tempF float64) int {
	switch {
	case tempF < 95.0:
		return 2
	case tempF <= 96.8:
		return 1
	case tempF <= 100.4:
		return 0
	case tempF <= 101.3:
		return 1
	default:
		return 2
	}
}

func consciousnessScore(c model.Consciousness) int {
	switch c {
	case model.ConsciousnessAlert:
		return 0
	case model.ConsciousnessVoice:
		return 1
	case model.ConsciousnessPain:
		return 2
	case model.ConsciousnessUnresponsive:
		return 3
	default:
		return 0
	}
}

// criticalRange is a name-matched critical threshold pair. Values at or
// beyond either bound flag as critical regardless of the reference range.
type criticalRange struct {
	low  float64
	high float64
}

// criticalRanges keys are matched case-insensitively as substrings of the
// lab name, so "Potassium (serum)" matches "potassium".
var criticalRanges = map[string]criticalRange{
	"potassium":  {low: 2.5, high: 6.5},
	"sodium":     {low: 120, high: 160},
	"glucose":    {low: 40, high: 500},
	"hemoglobin": {low: 5, high: 20},
	"platelet":   {low: 20, high: 1000},
	"troponin":   {low: -1, high: 0.5},
	"lactate":    {low: -1, high: 4},
}

// FlagLab classifies a lab result: "C" when a name-matched critical
// threshold is breached (taking precedence), otherwise "H"/"L" against the
// reference range, otherwise "N".
func FlagLab(lab model.LabResult) model.LabFlag {
	name := strings.ToLower(lab.Name)
	for key, cr := range criticalRanges {
		if !strings.Contains(name, key) {
			continue
		}
		if lab.Value < cr.low || lab.Value > cr.high {
			return model.LabFlagCritical
		}
	}

	switch {
	case lab.RefHigh > 0 && lab.Value > lab.RefHigh:
		return model.LabFlagHigh
	case lab.Value < lab.RefLow:
		return model.LabFlagLow
	default:
		return model.LabFlagNormal
	}
}

// MEWSAlertThreshold is the score at or above which an escalation alert is
// raised.
const MEWSAlertThreshold = 5

// DeriveAlerts builds the alert strings for the currently visible clinical
// data: an early-warning alert from the latest vitals plus one alert per
// critical lab.
func DeriveAlerts(data model.ClinicalData) []string {
	var alerts []string

	if n := len(data.Vitals); n > 0 {
		latest := data.Vitals[n-1]
		if mews := CalculateMEWS(latest); mews >= MEWSAlertThreshold {
			alerts = append(alerts, fmt.Sprintf("MEWS %d: early warning threshold exceeded, escalate care", mews))
		}
		if latest.SpO2 > 0 && latest.SpO2 < 90 {
			alerts = append(alerts, fmt.Sprintf("SpO2 %.0f%%: hypoxemia", latest.SpO2))
		}
	}

	for _, lab := range data.Labs {
		if FlagLab(lab) == model.LabFlagCritical {
			alerts = append(alerts, fmt.Sprintf("Critical lab: %s %.2f %s", lab.Name, lab.Value, lab.Unit))
		}
	}

	return alerts
}
