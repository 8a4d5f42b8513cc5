package hedging

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// costTailRisk returns the historical value at risk and expected shortfall
// of a sample of replication costs. A higher cost is a loss for the hedger,
// so VaR is the confidence quantile of the costs and ES is the mean of the
// costs at or above it.
func costTailRisk(costs []float64, confidence float64) (valueAtRisk, shortfall float64) {
	if len(costs) == 0 {
		return 0, 0
	}

	sorted := make([]float64, len(costs))
	copy(sorted, costs)
	sort.Float64s(sorted)

	valueAtRisk = stat.Quantile(confidence, stat.Empirical, sorted, nil)

	var tail []float64
	for i := len(sorted) - 1; i >= 0 && sorted[i] >= valueAtRisk; i-- {
		tail = append(tail, sorted[i])
	}
	return valueAtRisk, stat.Mean(tail, nil)
}
