package analysis

import (
	"slices"
	"strings"

	"airquality-server/internal/modules/airquality/types"
)

const whiskerIQR = 1.5

// BoxPlot computes per-station quartiles of column with whiskers at the most
// extreme values within 1.5 IQR of the box. Stations with no values for the
// column are left out.
func BoxPlot(readings []types.Reading, column string) ([]types.BoxStats, error) {
	if err := checkColumn(column); err != nil {
		return nil, err
	}

	out := []types.BoxStats{}
	for station, rows := range groupByStation(readings) {
		xs := values(rows, column)
		if len(xs) == 0 {
			continue
		}
		slices.Sort(xs)

		b := types.BoxStats{
			Station: station,
			Count:   len(xs),
			Q1:      quantile(xs, 0.25),
			Median:  quantile(xs, 0.5),
			Q3:      quantile(xs, 0.75),
		}
		iqr := b.Q3 - b.Q1
		lowFence, highFence := b.Q1-whiskerIQR*iqr, b.Q3+whiskerIQR*iqr

		b.WhiskerLow, b.WhiskerHigh = b.Q1, b.Q3
		for _, x := range xs {
			if x >= lowFence {
				b.WhiskerLow = x
				break
			}
		}
		for i := len(xs) - 1; i >= 0; i-- {
			if xs[i] <= highFence {
				b.WhiskerHigh = xs[i]
				break
			}
		}
		for _, x := range xs {
			if x < lowFence || x > highFence {
				b.OutlierCount++
			}
		}
		out = append(out, b)
	}

	slices.SortFunc(out, func(a, b types.BoxStats) int {
		return strings.Compare(a.Station, b.Station)
	})
	return out, nil
}
