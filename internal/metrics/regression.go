// Package metrics computes the statistical evaluation metrics reported
// for trained models: regression fits (R², Pearson, Spearman),
// classification scores, expression-percentile subsets, and seed-averaged
// aggregation.
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// RegressionScores holds the three regression fit metrics for one output.
type RegressionScores struct {
	R2        float64
	PearsonR  float64
	SpearmanR float64
}

// Regression computes R², Pearson r and Spearman rho between observed and
// predicted values.
func Regression(y, pred []float64) RegressionScores {
	return RegressionScores{
		R2:        R2(y, pred),
		PearsonR:  stat.Correlation(y, pred, nil),
		SpearmanR: Spearman(y, pred),
	}
}

// R2 is the coefficient of determination of pred against y.
func R2(y, pred []float64) float64 {
	if len(y) == 0 {
		return math.NaN()
	}
	mean := stat.Mean(y, nil)
	var ssRes, ssTot float64
	for i := range y {
		d := y[i] - pred[i]
		ssRes += d * d
		m := y[i] - mean
		ssTot += m * m
	}
	if ssTot == 0 {
		return math.NaN()
	}
	return 1 - ssRes/ssTot
}

// Pearson is the linear correlation of x and y.
func Pearson(x, y []float64) float64 {
	return stat.Correlation(x, y, nil)
}

// Spearman is the rank correlation of x and y, with ties assigned their
// average rank.
func Spearman(x, y []float64) float64 {
	return stat.Correlation(ranks(x), ranks(y), nil)
}

// ranks returns average fractional ranks (1-based).
func ranks(x []float64) []float64 {
	n := len(x)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return x[order[a]] < x[order[b]] })

	r := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && x[order[j+1]] == x[order[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			r[order[k]] = avg
		}
		i = j + 1
	}
	return r
}

// Percentile returns the p-th percentile (0-100) of values, linearly
// interpolating between order statistics at positions p/100*(n-1).
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}

// RegressionBreakdown carries overall scores plus the expression-extreme
// subsets: highly expressed (y above the upper percentile), lowly
// expressed (y below the lower percentile) and their union.
type RegressionBreakdown struct {
	Overall RegressionScores
	High    RegressionScores
	Low     RegressionScores
	Extreme RegressionScores
}

// RegressionWithSubsets computes the breakdown with percentile thresholds
// at pct and 100-pct (pct is conventionally 90).
func RegressionWithSubsets(y, pred []float64, pct float64) RegressionBreakdown {
	upper := Percentile(y, pct)
	lower := Percentile(y, 100-pct)

	var hy, hp, ly, lp, ey, ep []float64
	for i := range y {
		high := y[i] > upper
		low := y[i] < lower
		if high {
			hy = append(hy, y[i])
			hp = append(hp, pred[i])
		}
		if low {
			ly = append(ly, y[i])
			lp = append(lp, pred[i])
		}
		if high || low {
			ey = append(ey, y[i])
			ep = append(ep, pred[i])
		}
	}

	return RegressionBreakdown{
		Overall: Regression(y, pred),
		High:    Regression(hy, hp),
		Low:     Regression(ly, lp),
		Extreme: Regression(ey, ep),
	}
}

// ApplyMask returns the elements of y and pred where mask is true. A nil
// mask returns the inputs unchanged.
func ApplyMask(y, pred []float64, mask []bool) (my, mpred []float64) {
	if mask == nil {
		return y, pred
	}
	for i := range y {
		if mask[i] {
			my = append(my, y[i])
			mpred = append(mpred, pred[i])
		}
	}
	return my, mpred
}

// ZeroFillNaN replaces NaN predictions with zero in place and reports how
// many were replaced. Callers log a warning when the count is non-zero.
func ZeroFillNaN(pred []float64) int {
	var n int
	for i, v := range pred {
		if math.IsNaN(v) {
			pred[i] = 0
			n++
		}
	}
	return n
}
