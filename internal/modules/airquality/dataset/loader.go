// Package dataset loads the air-quality CSV into typed readings.
package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"airquality-server/internal/modules/airquality/types"
)

// RequiredColumns must be present in every source. The hour column is
// optional and selects the hourly variant when present.
var RequiredColumns = append([]string{
	types.ColStation, types.ColYear, types.ColMonth, types.ColDay,
}, types.MeasureColumns...)

var nanValues = []string{"", "NA", "NaN", "nan", "<nil>"}

const utf8BOM = "\ufeff"

type Loader struct {
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewLoader returns a loader that fetches remote sources with client. A nil
// client falls back to one with a 30s timeout.
func NewLoader(client *http.Client, logger *slog.Logger) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{client: client, logger: logger, now: time.Now}
}

// IsRemote reports whether source is fetched over HTTP.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Load reads source (URL or local path) and returns the parsed dataset.
// Errors wrap ErrSourceUnavailable or ErrSchemaMismatch.
func (l *Loader) Load(ctx context.Context, source string) (*types.Dataset, error) {
	start := l.now()
	raw, err := l.fetch(ctx, source)
	if err != nil {
		return nil, err
	}

	readings, hasHour, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}

	l.logger.Info("dataset loaded",
		"source", source,
		"rows", len(readings),
		"hourly", hasHour,
		"bytes", len(raw),
		"duration_ms", l.now().Sub(start).Milliseconds(),
	)

	return &types.Dataset{
		Source:   source,
		HasHour:  hasHour,
		LoadedAt: l.now().UTC(),
		Readings: readings,
	}, nil
}

func (l *Loader) fetch(ctx context.Context, source string) ([]byte, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: empty source", ErrSourceUnavailable)
	}

	if !IsRemote(source) {
		b, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrSourceUnavailable, source, err)
		}
		return b, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrSourceUnavailable, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", ErrSourceUnavailable, source, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			l.logger.Warn("close response body", "source", source, "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: get %s: unexpected status %s", ErrSourceUnavailable, source, resp.Status)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body of %s: %w", ErrSourceUnavailable, source, err)
	}
	return b, nil
}

// Parse decodes a comma-separated table with a header row. Any row whose
// date components do not form a real calendar date fails the whole parse.
func Parse(r io.Reader) (readings []types.Reading, hasHour bool, err error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrSchemaMismatch, err)
	}
	if len(records) == 0 {
		return nil, false, fmt.Errorf("%w: missing header row", ErrSchemaMismatch)
	}

	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], utf8BOM))
	}
	present := make(map[string]bool, len(header))
	for _, name := range header {
		present[name] = true
	}
	var missing []string
	for _, name := range RequiredColumns {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, false, fmt.Errorf("%w: missing columns %s", ErrSchemaMismatch, strings.Join(missing, ", "))
	}
	hasHour = present[types.ColHour]

	if len(records) == 1 {
		return []types.Reading{}, hasHour, nil
	}

	colTypes := map[string]series.Type{types.ColStation: series.String}
	for _, name := range dateColumns(hasHour) {
		colTypes[name] = series.Float
	}
	for _, name := range types.MeasureColumns {
		colTypes[name] = series.Float
	}

	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.WithTypes(colTypes),
		dataframe.NaNValues(nanValues),
	)
	if df.Err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrSchemaMismatch, df.Err)
	}

	return buildReadings(df, hasHour)
}

func dateColumns(hasHour bool) []string {
	cols := []string{types.ColYear, types.ColMonth, types.ColDay}
	if hasHour {
		cols = append(cols, types.ColHour)
	}
	return cols
}

func buildReadings(df dataframe.DataFrame, hasHour bool) ([]types.Reading, bool, error) {
	n := df.Nrow()
	stations := df.Col(types.ColStation)

	parts := make(map[string][]float64, 4)
	for _, name := range dateColumns(hasHour) {
		parts[name] = df.Col(name).Float()
	}
	measures := make(map[string][]float64, len(types.MeasureColumns))
	for _, name := range types.MeasureColumns {
		measures[name] = df.Col(name).Float()
	}

	out := make([]types.Reading, 0, n)
	for i := 0; i < n; i++ {
		// Header is line 1.
		line := i + 2

		el := stations.Elem(i)
		station := strings.TrimSpace(el.String())
		if el.IsNA() || station == "" {
			return nil, false, fmt.Errorf("%w: line %d: empty station", ErrSchemaMismatch, line)
		}

		year, err := wholeNumber(parts[types.ColYear][i])
		if err != nil {
			return nil, false, fmt.Errorf("%w: line %d: year: %w", ErrSchemaMismatch, line, err)
		}
		month, err := wholeNumber(parts[types.ColMonth][i])
		if err != nil {
			return nil, false, fmt.Errorf("%w: line %d: month: %w", ErrSchemaMismatch, line, err)
		}
		day, err := wholeNumber(parts[types.ColDay][i])
		if err != nil {
			return nil, false, fmt.Errorf("%w: line %d: day: %w", ErrSchemaMismatch, line, err)
		}
		hour := 0
		if hasHour {
			hour, err = wholeNumber(parts[types.ColHour][i])
			if err != nil {
				return nil, false, fmt.Errorf("%w: line %d: hour: %w", ErrSchemaMismatch, line, err)
			}
		}

		ts, err := Timestamp(year, month, day, hour)
		if err != nil {
			return nil, false, fmt.Errorf("%w: line %d: %w", ErrSchemaMismatch, line, err)
		}

		for _, name := range types.MeasureColumns {
			if err := checkMeasure(name, measures[name][i]); err != nil {
				return nil, false, fmt.Errorf("%w: line %d: %s: %w", ErrSchemaMismatch, line, name, err)
			}
		}

		out = append(out, types.Reading{
			Station:   station,
			Year:      year,
			Month:     month,
			Day:       day,
			Hour:      hour,
			Timestamp: ts,
			PM25:      measures[types.ColPM25][i],
			PM10:      measures[types.ColPM10][i],
			SO2:       measures[types.ColSO2][i],
			NO2:       measures[types.ColNO2][i],
			O3:        measures[types.ColO3][i],
			CO:        measures[types.ColCO][i],
			TEMP:      measures[types.ColTEMP][i],
			PRES:      measures[types.ColPRES][i],
			DEWP:      measures[types.ColDEWP][i],
			RAIN:      measures[types.ColRAIN][i],
			WSPM:      measures[types.ColWSPM][i],
		})
	}
	return out, hasHour, nil
}

// Timestamp combines date parts into a UTC time, rejecting values that
// time.Date would silently normalise (month 13, Feb 30, hour 24).
func Timestamp(year, month, day, hour int) (time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("month %d out of range", month)
	}
	if hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("hour %d out of range", hour)
	}
	ts := time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC)
	if ts.Year() != year || int(ts.Month()) != month || ts.Day() != day {
		return time.Time{}, fmt.Errorf("invalid date %04d-%02d-%02d", year, month, day)
	}
	return ts, nil
}

// nonNegativeColumns are concentrations and amounts that cannot drop below
// zero. Temperature, pressure and dew point can.
var nonNegativeColumns = map[string]bool{
	types.ColPM25: true, types.ColPM10: true, types.ColSO2: true,
	types.ColNO2: true, types.ColO3: true, types.ColCO: true,
	types.ColRAIN: true, types.ColWSPM: true,
}

// checkMeasure accepts NaN (missing) and finite values, rejecting negatives
// in nonNegativeColumns.
func checkMeasure(column string, v float64) error {
	if math.IsNaN(v) {
		return nil
	}
	if math.IsInf(v, 0) {
		return fmt.Errorf("%v is not a finite number", v)
	}
	if v < 0 && nonNegativeColumns[column] {
		return fmt.Errorf("%v is negative", v)
	}
	return nil
}

func wholeNumber(v float64) (int, error) {
	if math.IsNaN(v) {
		return 0, fmt.Errorf("missing value")
	}
	if math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("%v is not a whole number", v)
	}
	return int(v), nil
}
