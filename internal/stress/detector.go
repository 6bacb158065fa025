// Package stress classifies a learner's behavioral state from a trailing
// window of audit-log interaction events. Detection is pure and
// deterministic: "now" is the latest entry's own timestamp, never the wall
// clock, so a classification is reproducible from an audit-log snapshot.
package stress

import (
	"sort"
	"time"

	"github.com/medsimlab/clinsim-backend/internal/model"
)

// DefaultWindow is the trailing window examined per evaluation.
const DefaultWindow = 60 * time.Second

// Threshold constants of the priority cascade.
const (
	idleThreshold       = 30 * time.Second
	recentTargetWindow  = 5 * time.Second
	panicAnswerChanges  = 6
	panicClickRate      = 2.0 // events per second
	panicUniqueTargets  = 3
	hesitantMinChanges  = 3
	hesitantTabSwitches = 5
	hesitantAvgGap      = 8 * time.Second
)

// Detect classifies the stress state for a set of audit entries over the
// given trailing window. Entries may arrive in any order. An empty input,
// or one with no entries inside the window, reads as focused.
func Detect(entries []model.AuditEntry, window time.Duration) model.StressState {
	if len(entries) == 0 {
		return model.StressFocused
	}
	if window <= 0 {
		window = DefaultWindow
	}

	sorted := make([]model.AuditEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	now := sorted[len(sorted)-1].Timestamp
	cutoff := now.Add(-window)

	recent := sorted[:0:0]
	for _, e := range sorted {
		if !e.Timestamp.Before(cutoff) {
			recent = append(recent, e)
		}
	}
	if len(recent) == 0 {
		return model.StressFocused
	}

	var answerChanges, tabSwitches, uniqueTargets5s int
	seenTargets := make(map[string]struct{})
	for _, e := range recent {
		switch e.Action {
		case model.AuditActionAnswerSelect, model.AuditActionAnswerDeselect:
			answerChanges++
		case model.AuditActionTabChange:
			tabSwitches++
		}
		if now.Sub(e.Timestamp) <= recentTargetWindow {
			if _, ok := seenTargets[e.Target]; !ok {
				seenTargets[e.Target] = struct{}{}
				uniqueTargets5s++
			}
		}
	}

	clickRate := float64(len(recent)) / window.Seconds()
	timeSinceLastAction := now.Sub(recent[len(recent)-1].Timestamp)

	var avgGap time.Duration
	if len(recent) >= 2 {
		total := recent[len(recent)-1].Timestamp.Sub(recent[0].Timestamp)
		avgGap = total / time.Duration(len(recent)-1)
	}

	// Strict priority cascade, first match wins. The idle branch measures
	// against the log-relative "now" above, so with at least one in-window
	// entry it stays below the window by construction; it is kept first to
	// preserve the published rule order.
	switch {
	case timeSinceLastAction > idleThreshold:
		return model.StressParalysis
	case answerChanges > panicAnswerChanges ||
		clickRate > panicClickRate ||
		uniqueTargets5s > panicUniqueTargets:
		return model.StressPanic
	case answerChanges >= hesitantMinChanges &&
		(tabSwitches > hesitantTabSwitches || avgGap > hesitantAvgGap):
		return model.StressHesitant
	default:
		return model.StressFocused
	}
}
