// Package analysis holds the pure filter and aggregation functions behind the
// dashboard panels. Every function takes its input explicitly and returns a
// fresh, non-nil result; empty input yields empty output.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"airquality-server/internal/modules/airquality/types"
)

var ErrUnknownColumn = errors.New("unknown column")

func checkColumn(column string) error {
	if _, ok := (types.Reading{}).Value(column); !ok {
		return fmt.Errorf("%w %q", ErrUnknownColumn, column)
	}
	return nil
}

// Filter keeps readings whose station is selected and whose calendar date
// lies in [start, end]. Bounds are truncated to their UTC date first.
func Filter(readings []types.Reading, stations []string, start, end time.Time) []types.Reading {
	out := []types.Reading{}
	if len(stations) == 0 {
		return out
	}
	from, to := types.DateOf(start), types.DateOf(end)
	if from.After(to) {
		return out
	}

	selected := make(map[string]struct{}, len(stations))
	for _, s := range stations {
		selected[s] = struct{}{}
	}

	for _, r := range readings {
		if _, ok := selected[r.Station]; !ok {
			continue
		}
		d := r.Date()
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// StationsOf returns the sorted distinct station names.
func StationsOf(readings []types.Reading) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range readings {
		if _, ok := seen[r.Station]; ok {
			continue
		}
		seen[r.Station] = struct{}{}
		out = append(out, r.Station)
	}
	slices.Sort(out)
	return out
}

// DateBounds returns the earliest and latest timestamps. ok is false when
// readings is empty.
func DateBounds(readings []types.Reading) (lo, hi time.Time, ok bool) {
	if len(readings) == 0 {
		return time.Time{}, time.Time{}, false
	}
	lo, hi = readings[0].Timestamp, readings[0].Timestamp
	for _, r := range readings[1:] {
		if r.Timestamp.Before(lo) {
			lo = r.Timestamp
		}
		if r.Timestamp.After(hi) {
			hi = r.Timestamp
		}
	}
	return lo, hi, true
}

// values collects the non-missing values of column in input order.
func values(readings []types.Reading, column string) []float64 {
	out := make([]float64, 0, len(readings))
	for _, r := range readings {
		v, _ := r.Value(column)
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func groupByStation(readings []types.Reading) map[string][]types.Reading {
	groups := make(map[string][]types.Reading)
	for _, r := range readings {
		groups[r.Station] = append(groups[r.Station], r)
	}
	return groups
}
