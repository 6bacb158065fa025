// Package scoring maps (item, submitted answer) pairs to earned points
// under the per-type partial-credit rules. Scoring is pure and total: a
// missing item, a nil answer or a malformed answer shape degrades to a zero
// score, never to a panic or an error.
package scoring

import (
	"github.com/medsimlab/clinsim-backend/internal/model"
)

// Result is the outcome of scoring a single item submission.
type Result struct {
	Earned float64 `json:"earned"`
	Max    float64 `json:"max"`
	Ratio  float64 `json:"ratio"`
}

func result(earned, max float64) Result {
	if earned < 0 {
		earned = 0
	}
	r := Result{Earned: earned, Max: max}
	if max > 0 {
		r.Ratio = earned / max
	}
	return r
}

// Score evaluates a submitted answer against an item's key.
//
// Dispatch order: a "linkage" scoring method short-circuits to the
// all-or-nothing linkage evaluator regardless of item type; everything else
// dispatches on the type tag.
func Score(item *model.Item, answer any) Result {
	if item == nil {
		return result(0, 1)
	}

	max := item.Scoring.MaxPoints
	if max <= 0 {
		max = 1
	}
	if answer == nil {
		return result(0, max)
	}

	if item.Scoring.Method == model.ScoringLinkage {
		return scoreLinkage(item, answer)
	}

	switch item.Type {
	case model.ItemTypeMultipleChoice,
		model.ItemTypePriorityAction,
		model.ItemTypeTrend,
		model.ItemTypeGraphic,
		model.ItemTypeAudioVideo,
		model.ItemTypeChartExhibit:
		return scoreDichotomous(item, answer)
	case model.ItemTypeSelectAll:
		return scorePlusMinus(item.CorrectOptionIDs, item.Scoring.MaxPoints, answer)
	case model.ItemTypeSelectN:
		return scoreSelectN(item, answer)
	case model.ItemTypeOrderedResponse:
		return scoreOrdered(item, answer)
	case model.ItemTypeMatrixMatch:
		return scoreMatrix(item, answer)
	case model.ItemTypeClozeDropdown, model.ItemTypeDragDropCloze:
		return scoreCloze(item, answer)
	case model.ItemTypeBowtie:
		return scoreBowtie(item, answer)
	case model.ItemTypeHotspot:
		return scorePlusMinus(item.CorrectHotspotIDs, item.Scoring.MaxPoints, answer)
	default:
		return result(0, 1)
	}
}

// scoreDichotomous awards 1 point for an exact match on the single key.
func scoreDichotomous(item *model.Item, answer any) Result {
	s, ok := asString(answer)
	if ok && s == item.CorrectOptionID && item.CorrectOptionID != "" {
		return result(1, 1)
	}
	return result(0, 1)
}

// scorePlusMinus implements the selectAll/hotspot model: +1 per correct
// selection, -1 per incorrect selection, floored at zero. Max defaults to
// the number of correct ids when the item declares no maxPoints.
func scorePlusMinus(correctIDs []string, declaredMax float64, answer any) Result {
	max := declaredMax
	if max <= 0 {
		max = float64(len(correctIDs))
	}
	if max <= 0 {
		return result(0, 1)
	}

	selected, ok := asStringSlice(answer)
	if !ok {
		return result(0, max)
	}

	correct := toSet(correctIDs)
	earned := 0.0
	for _, id := range selected {
		if _, ok := correct[id]; ok {
			earned++
		} else {
			earned--
		}
	}
	return result(earned, max)
}

// scoreSelectN credits +1 per correct id among the first n submitted
// selections; selections beyond n are ignored and there is no penalty.
func scoreSelectN(item *model.Item, answer any) Result {
	max := item.Scoring.MaxPoints
	if max <= 0 {
		max = float64(len(item.CorrectOptionIDs))
	}
	if max <= 0 {
		return result(0, 1)
	}

	n := item.MaxSelections
	if n <= 0 {
		n = int(max)
	}

	selected, ok := asStringSlice(answer)
	if !ok {
		return result(0, max)
	}
	if len(selected) > n {
		selected = selected[:n]
	}

	correct := toSet(item.CorrectOptionIDs)
	earned := 0.0
	for _, id := range selected {
		if _, ok := correct[id]; ok {
			earned++
		}
	}
	return result(earned, max)
}

// scoreOrdered awards 1 point iff the submitted sequence matches the key
// element-wise at identical length.
func scoreOrdered(item *model.Item, answer any) Result {
	submitted, ok := asStringSlice(answer)
	if !ok || len(item.CorrectOrder) == 0 || len(submitted) != len(item.CorrectOrder) {
		return result(0, 1)
	}
	for i, id := range submitted {
		if id != item.CorrectOrder[i] {
			return result(0, 1)
		}
	}
	return result(1, 1)
}

// scoreMatrix credits +1 per row whose submitted column matches the key.
func scoreMatrix(item *model.Item, answer any) Result {
	max := item.Scoring.MaxPoints
	if max <= 0 {
		max = float64(len(item.CorrectMatches))
	}
	if max <= 0 {
		return result(0, 1)
	}

	submitted, ok := asStringMap(answer)
	if !ok {
		return result(0, max)
	}

	earned := 0.0
	for row, col := range item.CorrectMatches {
		if submitted[row] == col {
			earned++
		}
	}
	return result(earned, max)
}

// scoreCloze credits +1 per blank whose submitted value equals the blank's
// key.
func scoreCloze(item *model.Item, answer any) Result {
	max := item.Scoring.MaxPoints
	if max <= 0 {
		max = float64(len(item.Blanks))
	}
	if max <= 0 {
		return result(0, 1)
	}

	submitted, ok := asStringMap(answer)
	if !ok {
		return result(0, max)
	}

	earned := 0.0
	for _, blank := range item.Blanks {
		if submitted[blank.ID] == blank.CorrectOption {
			earned++
		}
	}
	return result(earned, max)
}

// bowtieMaxPoints is fixed: 2 actions + 1 condition + 2 parameters.
const bowtieMaxPoints = 5

// scoreBowtie credits +1 for the condition, +1 per correct action and +1
// per correct monitoring parameter, out of a fixed maximum of 5.
func scoreBowtie(item *model.Item, answer any) Result {
	sub, ok := asBowtie(answer)
	if !ok {
		return result(0, bowtieMaxPoints)
	}

	earned := 0.0
	if sub.Condition != "" && sub.Condition == item.Condition {
		earned++
	}
	actions := toSet(item.CorrectActionIDs)
	for _, id := range sub.Actions {
		if _, ok := actions[id]; ok {
			earned++
		}
	}
	params := toSet(item.CorrectParameterIDs)
	for _, id := range sub.Parameters {
		if _, ok := params[id]; ok {
			earned++
		}
	}
	return result(earned, bowtieMaxPoints)
}

// scoreLinkage is the all-or-nothing regime for cloze content scored under
// linkage rules: every blank must match for any credit.
func scoreLinkage(item *model.Item, answer any) Result {
	max := item.Scoring.MaxPoints
	if max <= 0 {
		max = float64(len(item.Blanks))
	}
	if max <= 0 {
		return result(0, 1)
	}

	submitted, ok := asStringMap(answer)
	if !ok || len(item.Blanks) == 0 {
		return result(0, max)
	}

	for _, blank := range item.Blanks {
		if submitted[blank.ID] != blank.CorrectOption {
			return result(0, max)
		}
	}
	return result(max, max)
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
