package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"airquality-server/internal/modules/airquality/types"
)

// Correlation returns the Pearson matrix of the given measurement columns,
// each pair computed over the rows where both values are present.
func Correlation(readings []types.Reading, columns []string) (types.CorrelationMatrix, error) {
	data := make([][]float64, len(columns))
	for i, col := range columns {
		if err := checkColumn(col); err != nil {
			return types.CorrelationMatrix{}, err
		}
		data[i] = make([]float64, len(readings))
		for j, r := range readings {
			data[i][j], _ = r.Value(col)
		}
	}
	return correlationMatrix(columns, data), nil
}

// RFMCorrelation correlates recency, frequency and magnitude across stations.
func RFMCorrelation(rows []types.RFMRow) types.CorrelationMatrix {
	data := make([][]float64, len(types.RFMMetrics))
	for i, m := range types.RFMMetrics {
		data[i] = make([]float64, len(rows))
		for j, row := range rows {
			data[i][j], _ = row.Metric(m)
		}
	}
	return correlationMatrix(types.RFMMetrics, data)
}

func correlationMatrix(names []string, data [][]float64) types.CorrelationMatrix {
	n := len(names)
	m := types.CorrelationMatrix{
		Columns: append([]string(nil), names...),
		Values:  make([][]float64, n),
	}
	for i := range m.Values {
		m.Values[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := pairwise(data[i], data[j], i == j)
			m.Values[i][j] = v
			m.Values[j][i] = v
		}
	}
	return m
}

func pairwise(a, b []float64, diagonal bool) float64 {
	x := make([]float64, 0, len(a))
	y := make([]float64, 0, len(a))
	for k := range a {
		if math.IsNaN(a[k]) || math.IsNaN(b[k]) {
			continue
		}
		x = append(x, a[k])
		y = append(y, b[k])
	}
	if len(x) < 2 {
		return math.NaN()
	}
	if !(stat.Variance(x, nil) > 0) || !(stat.Variance(y, nil) > 0) {
		return math.NaN()
	}
	if diagonal {
		return 1
	}
	r := stat.Correlation(x, y, nil)
	// Rounding can push |r| marginally past 1.
	return math.Max(-1, math.Min(1, r))
}
