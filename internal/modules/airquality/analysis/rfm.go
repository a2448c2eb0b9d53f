package analysis

import (
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"airquality-server/internal/modules/airquality/types"
)

// DefaultThreshold is the PM2.5 level a reading must strictly exceed to count
// as a high-pollution event.
const DefaultThreshold = 150.0

const oneDay = 24 * time.Hour

// RFM summarises high-pollution events per station.
//
// Recency is the number of whole days between the latest reading in the whole
// input and the station's latest event, frequency the event count and
// magnitude the mean PM2.5 over the events. Stations without events are
// omitted. Rows are sorted by station and do not depend on input order.
func RFM(readings []types.Reading, threshold float64) []types.RFMRow {
	out := []types.RFMRow{}
	_, globalMax, ok := DateBounds(readings)
	if !ok {
		return out
	}

	type group struct {
		latest time.Time
		pm25   []float64
	}
	groups := make(map[string]*group)
	for _, r := range readings {
		// NaN compares false.
		if !(r.PM25 > threshold) {
			continue
		}
		g, ok := groups[r.Station]
		if !ok {
			g = &group{latest: r.Timestamp}
			groups[r.Station] = g
		}
		if r.Timestamp.After(g.latest) {
			g.latest = r.Timestamp
		}
		g.pm25 = append(g.pm25, r.PM25)
	}

	for station, g := range groups {
		slices.Sort(g.pm25)
		out = append(out, types.RFMRow{
			Station:   station,
			Recency:   int(globalMax.Sub(g.latest) / oneDay),
			Frequency: len(g.pm25),
			Magnitude: stat.Mean(g.pm25, nil),
		})
	}
	slices.SortFunc(out, func(a, b types.RFMRow) int {
		return strings.Compare(a.Station, b.Station)
	})
	return out
}
