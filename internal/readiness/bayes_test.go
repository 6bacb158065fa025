package readiness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPassProbabilityNoEvidenceIsPrior(t *testing.T) {
	assert.Equal(t, 0.5, PassProbability(nil, nil))
	assert.Equal(t, 0.5, PassProbability([]float64{}, []float64{}))
}

func TestPassProbabilityAllCorrectGrows(t *testing.T) {
	p := PassProbability([]float64{1, 1, 1}, []float64{1, 1, 1})
	assert.Greater(t, p, 0.5)
	assert.LessOrEqual(t, p, 1.0)

	// More consistent evidence never lowers the estimate.
	shorter := PassProbability([]float64{1, 1}, []float64{1, 1})
	assert.GreaterOrEqual(t, p, shorter)
}

func TestPassProbabilityAllWrongShrinks(t *testing.T) {
	p := PassProbability([]float64{0, 0, 0}, []float64{1, 1, 1})
	assert.Less(t, p, 0.5)
	assert.GreaterOrEqual(t, p, 0.0)
}

func TestPassProbabilityPartialCreditMovesProportionally(t *testing.T) {
	high := PassProbability([]float64{4}, []float64{5})
	low := PassProbability([]float64{1}, []float64{5})
	assert.Greater(t, high, 0.5)
	assert.Less(t, low, 0.5)
	assert.Greater(t, high, low)
}

func TestPassProbabilityNeutralRatioIsFixpoint(t *testing.T) {
	// r = 0.5 leaves the estimate unchanged at any point.
	p := PassProbability([]float64{1, 1}, []float64{2, 2})
	assert.InDelta(t, 0.5, p, 1e-12)
}

func TestPassProbabilitySkipsDegenerateUpdates(t *testing.T) {
	// A perfect score drives p to 1; a following zero score would make the
	// denominator vanish and is skipped rather than dividing by zero.
	p := PassProbability([]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0}, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1})
	assert.GreaterOrEqual(t, p, 0.0)
	assert.LessOrEqual(t, p, 1.0)
}

func TestPassProbabilityZeroTotalReadsAsZeroRatio(t *testing.T) {
	p := PassProbability([]float64{1}, []float64{0})
	assert.Less(t, p, 0.5)
}

func TestPassProbabilityStaysInUnitInterval(t *testing.T) {
	scores := []float64{0, 1, 0.5, 3, 0, 5, 2.5}
	totals := []float64{1, 1, 1, 5, 2, 5, 5}
	p := PassProbability(scores, totals)
	assert.GreaterOrEqual(t, p, 0.0)
	assert.LessOrEqual(t, p, 1.0)
}
