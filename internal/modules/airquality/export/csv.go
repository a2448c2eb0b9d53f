package export

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"airquality-server/internal/modules/airquality/types"
)

const ContentTypeCSV = "text/csv; charset=utf-8"

// WriteReadingsCSV writes readings in the source column layout so the file
// can be loaded again. Missing measurements are written as NA.
func WriteReadingsCSV(w io.Writer, readings []types.Reading, hasHour bool) error {
	n := len(readings)
	stations := make([]string, n)
	years := make([]int, n)
	months := make([]int, n)
	days := make([]int, n)
	hours := make([]int, n)
	measures := make([][]string, len(types.MeasureColumns))
	for j := range measures {
		measures[j] = make([]string, n)
	}

	for i, r := range readings {
		stations[i] = r.Station
		years[i], months[i], days[i], hours[i] = r.Year, r.Month, r.Day, r.Hour
		for j, col := range types.MeasureColumns {
			v, _ := r.Value(col)
			measures[j][i] = formatMeasure(v)
		}
	}

	cols := []series.Series{
		series.New(stations, series.String, types.ColStation),
		series.New(years, series.Int, types.ColYear),
		series.New(months, series.Int, types.ColMonth),
		series.New(days, series.Int, types.ColDay),
	}
	if hasHour {
		cols = append(cols, series.New(hours, series.Int, types.ColHour))
	}
	for j, col := range types.MeasureColumns {
		cols = append(cols, series.New(measures[j], series.String, col))
	}

	df := dataframe.New(cols...)
	if df.Err != nil {
		return fmt.Errorf("build readings table: %w", df.Err)
	}
	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("write readings csv: %w", err)
	}
	return nil
}

func formatMeasure(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
