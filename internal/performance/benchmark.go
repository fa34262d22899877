package performance

import "perp-strategy-lab/internal/domain"

// tbillReinvestDrop is how many trailing rows of the restricted window
// are excluded from the T-bill average: the series models a recurring
// 30-day reinvestment, and the final unrealized month never pays out.
const tbillReinvestDrop = 30

// percentageBenchmarkReturn computes the benchmark return of a series
// that stores a daily rate (percent, not price). Points must already be
// restricted to the trade window and ordered ASC. An empty window after
// the trailing drop yields 0.
func percentageBenchmarkReturn(points []domain.BenchmarkPoint) float64 {
	if len(points) <= tbillReinvestDrop {
		return 0
	}
	points = points[:len(points)-tbillReinvestDrop]

	sum := 0.0
	for _, p := range points {
		sum += p.Open
	}
	return sum/float64(len(points))*0.01 + 1
}

// priceBenchmarkReturn computes close_last/open_first of a price series
// restricted to the trade window. An empty window yields 0.
func priceBenchmarkReturn(points []domain.BenchmarkPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	first := points[0].Open
	last := points[len(points)-1].Close
	if first == 0 {
		return 0
	}
	return last / first
}
