// Package readiness derives a rolling exam-readiness probability from the
// per-item score history via sequential Bayesian updating.
package readiness

// prior is the mastery probability before any evidence.
const prior = 0.5

// stabilityFloor guards the update against a vanishing denominator; updates
// below it are skipped and the running probability carries forward.
const stabilityFloor = 0.001

// PassProbability folds the per-item score ratios into a single pass
// probability in [0, 1]. Each ratio acts as the likelihood of mastery for
// one Bayesian update step; the computation is order-dependent and is
// always recomputed from the full history.
func PassProbability(scores, totals []float64) float64 {
	p := prior

	n := len(scores)
	if len(totals) < n {
		n = len(totals)
	}

	for i := 0; i < n; i++ {
		var r float64
		if totals[i] > 0 {
			r = scores[i] / totals[i]
		}

		denom := r*p + (1-r)*(1-p)
		if denom < stabilityFloor {
			continue
		}
		p = (r * p) / denom
	}

	return clamp01(p)
}

func clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
