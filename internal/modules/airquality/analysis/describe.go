package analysis

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"airquality-server/internal/modules/airquality/types"
)

// Describe returns count, mean, sample standard deviation, min, quartiles and
// max of each column over its non-missing values.
func Describe(readings []types.Reading, columns []string) ([]types.ColumnSummary, error) {
	out := make([]types.ColumnSummary, 0, len(columns))
	for _, col := range columns {
		if err := checkColumn(col); err != nil {
			return nil, err
		}
		out = append(out, summarize(col, values(readings, col)))
	}
	return out, nil
}

func summarize(column string, xs []float64) types.ColumnSummary {
	s := types.ColumnSummary{Column: column, Count: len(xs)}
	if len(xs) == 0 {
		nan := math.NaN()
		s.Mean, s.Std, s.Min, s.Q1, s.Median, s.Q3, s.Max = nan, nan, nan, nan, nan, nan, nan
		return s
	}
	slices.Sort(xs)
	s.Mean = stat.Mean(xs, nil)
	s.Std = math.NaN()
	if len(xs) > 1 {
		s.Std = stat.StdDev(xs, nil)
	}
	s.Min = floats.Min(xs)
	s.Max = floats.Max(xs)
	s.Q1 = quantile(xs, 0.25)
	s.Median = quantile(xs, 0.5)
	s.Q3 = quantile(xs, 0.75)
	return s
}

// quantile interpolates linearly between the closest ranks of sorted, the
// estimator spreadsheet tools and dataframe libraries report by default.
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}
