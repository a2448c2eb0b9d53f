package types

import (
	"encoding/json"
	"math"
	"time"
)

// Column names as they appear in the source CSV header.
const (
	ColStation = "station"
	ColYear    = "year"
	ColMonth   = "month"
	ColDay     = "day"
	ColHour    = "hour"

	ColPM25 = "PM2.5"
	ColPM10 = "PM10"
	ColSO2  = "SO2"
	ColNO2  = "NO2"
	ColO3   = "O3"
	ColCO   = "CO"
	ColTEMP = "TEMP"
	ColPRES = "PRES"
	ColDEWP = "DEWP"
	ColRAIN = "RAIN"
	ColWSPM = "WSPM"
)

// MeasureColumns is the fixed column list used for the parameter correlation
// heatmap and the descriptive statistics table.
var MeasureColumns = []string{
	ColPM25, ColPM10, ColSO2, ColNO2, ColO3, ColCO,
	ColTEMP, ColPRES, ColDEWP, ColRAIN, ColWSPM,
}

// Metric names of the RFM summary.
const (
	MetricRecency   = "recency"
	MetricFrequency = "frequency"
	MetricMagnitude = "magnitude"
)

var RFMMetrics = []string{MetricRecency, MetricFrequency, MetricMagnitude}

// Reading is one hourly (or daily) observation at a station. Missing
// measurements are NaN.
type Reading struct {
	Station   string
	Year      int
	Month     int
	Day       int
	Hour      int
	Timestamp time.Time

	PM25 float64
	PM10 float64
	SO2  float64
	NO2  float64
	O3   float64
	CO   float64
	TEMP float64
	PRES float64
	DEWP float64
	RAIN float64
	WSPM float64
}

// Value returns the measurement stored under the given column name.
// ok is false for unknown columns.
func (r Reading) Value(column string) (v float64, ok bool) {
	switch column {
	case ColPM25:
		return r.PM25, true
	case ColPM10:
		return r.PM10, true
	case ColSO2:
		return r.SO2, true
	case ColNO2:
		return r.NO2, true
	case ColO3:
		return r.O3, true
	case ColCO:
		return r.CO, true
	case ColTEMP:
		return r.TEMP, true
	case ColPRES:
		return r.PRES, true
	case ColDEWP:
		return r.DEWP, true
	case ColRAIN:
		return r.RAIN, true
	case ColWSPM:
		return r.WSPM, true
	default:
		return math.NaN(), false
	}
}

// Date is the UTC calendar date of the reading.
func (r Reading) Date() time.Time {
	return DateOf(r.Timestamp)
}

func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Station   string    `json:"station"`
		Timestamp time.Time `json:"timestamp"`
		PM25      *float64  `json:"pm25"`
		PM10      *float64  `json:"pm10"`
		SO2       *float64  `json:"so2"`
		NO2       *float64  `json:"no2"`
		O3        *float64  `json:"o3"`
		CO        *float64  `json:"co"`
		TEMP      *float64  `json:"temp"`
		PRES      *float64  `json:"pres"`
		DEWP      *float64  `json:"dewp"`
		RAIN      *float64  `json:"rain"`
		WSPM      *float64  `json:"wspm"`
	}{
		Station:   r.Station,
		Timestamp: r.Timestamp,
		PM25:      NullFloat(r.PM25),
		PM10:      NullFloat(r.PM10),
		SO2:       NullFloat(r.SO2),
		NO2:       NullFloat(r.NO2),
		O3:        NullFloat(r.O3),
		CO:        NullFloat(r.CO),
		TEMP:      NullFloat(r.TEMP),
		PRES:      NullFloat(r.PRES),
		DEWP:      NullFloat(r.DEWP),
		RAIN:      NullFloat(r.RAIN),
		WSPM:      NullFloat(r.WSPM),
	})
}

// Dataset is the immutable result of one successful load.
type Dataset struct {
	Source   string
	HasHour  bool
	LoadedAt time.Time
	Readings []Reading
}

// RFMRow summarises the high-pollution events of one station.
type RFMRow struct {
	Station   string  `json:"station"`
	Recency   int     `json:"recency"`
	Frequency int     `json:"frequency"`
	Magnitude float64 `json:"magnitude"`
}

// Metric returns the named RFM metric as a float.
func (r RFMRow) Metric(name string) (float64, bool) {
	switch name {
	case MetricRecency:
		return float64(r.Recency), true
	case MetricFrequency:
		return float64(r.Frequency), true
	case MetricMagnitude:
		return r.Magnitude, true
	default:
		return math.NaN(), false
	}
}

// CorrelationMatrix is a square Pearson matrix; undefined cells are NaN.
type CorrelationMatrix struct {
	Columns []string
	Values  [][]float64
}

func (m CorrelationMatrix) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		values[i] = make([]*float64, len(row))
		for j, v := range row {
			values[i][j] = NullFloat(v)
		}
	}
	return json.Marshal(struct {
		Columns []string     `json:"columns"`
		Values  [][]*float64 `json:"values"`
	}{Columns: m.Columns, Values: values})
}

// ColumnSummary holds descriptive statistics over the non-missing values of
// one column.
type ColumnSummary struct {
	Column string
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Q1     float64
	Median float64
	Q3     float64
	Max    float64
}

func (s ColumnSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Column string   `json:"column"`
		Count  int      `json:"count"`
		Mean   *float64 `json:"mean"`
		Std    *float64 `json:"std"`
		Min    *float64 `json:"min"`
		Q1     *float64 `json:"q1"`
		Median *float64 `json:"median"`
		Q3     *float64 `json:"q3"`
		Max    *float64 `json:"max"`
	}{
		Column: s.Column,
		Count:  s.Count,
		Mean:   NullFloat(s.Mean),
		Std:    NullFloat(s.Std),
		Min:    NullFloat(s.Min),
		Q1:     NullFloat(s.Q1),
		Median: NullFloat(s.Median),
		Q3:     NullFloat(s.Q3),
		Max:    NullFloat(s.Max),
	})
}

// BoxStats is the five-number summary of one station with Tukey whiskers.
type BoxStats struct {
	Station      string  `json:"station"`
	Count        int     `json:"count"`
	Q1           float64 `json:"q1"`
	Median       float64 `json:"median"`
	Q3           float64 `json:"q3"`
	WhiskerLow   float64 `json:"whiskerLow"`
	WhiskerHigh  float64 `json:"whiskerHigh"`
	OutlierCount int     `json:"outlierCount"`
}

// TrendPoint is the daily mean of a column at one station.
type TrendPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

type TrendSeries struct {
	Station string       `json:"station"`
	Points  []TrendPoint `json:"points"`
}

// Histogram has len(Edges) == len(Counts)+1.
type Histogram struct {
	Metric string    `json:"metric"`
	Edges  []float64 `json:"edges"`
	Counts []int     `json:"counts"`
}

// NullFloat maps NaN and infinities to nil for JSON output.
func NullFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// DateOf truncates t to midnight UTC of its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Load origins recorded in the load log.
const (
	OriginSource   = "source"
	OriginSnapshot = "snapshot"
)

// LoadRecord is one entry of the dataset load history.
type LoadRecord struct {
	Source     string    `json:"source"`
	Origin     string    `json:"origin"`
	Rows       int       `json:"rows"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"durationMs"`
	LoadedAt   time.Time `json:"loadedAt"`
}
