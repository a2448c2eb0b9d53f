package analysis

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"airquality-server/internal/modules/airquality/types"
)

// RFMDistribution returns one histogram per RFM metric. bins <= 0 picks the
// bin count with Sturges' rule.
func RFMDistribution(rows []types.RFMRow, bins int) []types.Histogram {
	out := make([]types.Histogram, 0, len(types.RFMMetrics))
	for _, m := range types.RFMMetrics {
		xs := make([]float64, 0, len(rows))
		for _, row := range rows {
			v, _ := row.Metric(m)
			xs = append(xs, v)
		}
		out = append(out, histogram(m, xs, bins))
	}
	return out
}

func sturges(n int) int {
	if n < 1 {
		return 1
	}
	return int(math.Ceil(math.Log2(float64(n)))) + 1
}

// histogram uses equal-width bins over [min, max]; the last bin is closed.
func histogram(metric string, xs []float64, bins int) types.Histogram {
	h := types.Histogram{Metric: metric, Edges: []float64{}, Counts: []int{}}
	if len(xs) == 0 {
		return h
	}
	xs = slices.Clone(xs)
	slices.Sort(xs)
	if bins <= 0 {
		bins = sturges(len(xs))
	}

	lo, hi := xs[0], xs[len(xs)-1]
	if lo == hi {
		h.Edges = []float64{lo - 0.5, hi + 0.5}
		h.Counts = []int{len(xs)}
		return h
	}

	h.Edges = floats.Span(make([]float64, bins+1), lo, hi)
	h.Edges[bins] = hi
	dividers := slices.Clone(h.Edges)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, xs, nil)
	h.Counts = make([]int, len(counts))
	for i, c := range counts {
		h.Counts[i] = int(c)
	}
	return h
}
