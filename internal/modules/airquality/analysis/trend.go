package analysis

import (
	"math"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"airquality-server/internal/modules/airquality/types"
)

// Trend returns, per station, the daily mean of column. Days on which every
// value is missing are skipped.
func Trend(readings []types.Reading, column string) ([]types.TrendSeries, error) {
	if err := checkColumn(column); err != nil {
		return nil, err
	}

	out := []types.TrendSeries{}
	for station, rows := range groupByStation(readings) {
		byDay := make(map[time.Time][]float64)
		for _, r := range rows {
			v, _ := r.Value(column)
			if math.IsNaN(v) {
				continue
			}
			d := r.Date()
			byDay[d] = append(byDay[d], v)
		}
		if len(byDay) == 0 {
			continue
		}

		points := make([]types.TrendPoint, 0, len(byDay))
		for d, vs := range byDay {
			points = append(points, types.TrendPoint{Date: d, Value: stat.Mean(vs, nil)})
		}
		slices.SortFunc(points, func(a, b types.TrendPoint) int {
			return a.Date.Compare(b.Date)
		})
		out = append(out, types.TrendSeries{Station: station, Points: points})
	}

	slices.SortFunc(out, func(a, b types.TrendSeries) int {
		return strings.Compare(a.Station, b.Station)
	})
	return out, nil
}
