package views

import (
	"bytes"
	"io"
	"math"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"airquality-server/internal/modules/airquality/service"
	"airquality-server/internal/modules/airquality/types"
)

func TestLoadTemplates_success(t *testing.T) {
	err := LoadTemplates()
	if err != nil {
		t.Fatalf("LoadTemplates() = %v; want nil", err)
	}
	if dashboardTmpl == nil {
		t.Fatal("LoadTemplates() left dashboardTmpl nil")
	}
}

func TestLoadTemplates_failure_sub(t *testing.T) {
	// fs.Sub rejects an invalid directory name.
	emptyFS := fstest.MapFS{}
	err := loadTemplatesFromFS(emptyFS, "../templates")
	if err == nil {
		t.Fatal("loadTemplatesFromFS(emptyFS, \"../templates\") = nil; want error")
	}
}

func TestLoadTemplates_failure_parse(t *testing.T) {
	// FS with invalid template syntax; ParseFS fails.
	badFS := fstest.MapFS{
		"templates/base.html":              {Data: []byte("{{ .")},
		"templates/partials/overview.html": {Data: []byte("ok")},
	}
	err := loadTemplatesFromFS(badFS, "templates")
	if err == nil {
		t.Fatal("loadTemplatesFromFS(badFS, \"templates\") = nil; want error")
	}
}

func TestRenderDashboard_notLoaded(t *testing.T) {
	prev := dashboardTmpl
	dashboardTmpl = nil
	t.Cleanup(func() { dashboardTmpl = prev })

	var buf bytes.Buffer
	err := RenderDashboard(&buf, (*DashboardData)(nil))
	if err == nil {
		t.Fatal("RenderDashboard() = nil; want error when templates not loaded")
	}
	if !strings.Contains(err.Error(), "not loaded") {
		t.Errorf("err = %q; want message containing \"not loaded\"", err.Error())
	}
}

func testOverview() *service.Overview {
	from := time.Date(2017, time.February, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2017, time.February, 28, 0, 0, 0, 0, time.UTC)
	return &service.Overview{
		Catalog: service.Catalog{
			Source:   "data/cleaned_data.csv",
			LoadedAt: time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC),
			Rows:     4,
			Stations: []string{"Dongsi", "Guanyuan", "Wanliu"},
			MinDate:  from,
			MaxDate:  to,
		},
		Selected:     []string{"Dongsi", "Wanliu"},
		From:         from,
		To:           to,
		Threshold:    150,
		FilteredRows: 4,
		Summary: []types.ColumnSummary{
			{Column: types.ColPM25, Count: 4, Mean: 142.5, Std: 40.1, Min: 90, Q1: 120, Median: 150, Q3: 172.5, Max: 180},
		},
		Trend: []types.TrendSeries{
			{Station: "Dongsi", Points: []types.TrendPoint{{Date: from, Value: 160}}},
		},
		BoxPlot: []types.BoxStats{
			{Station: "Dongsi", Count: 2, Q1: 160, Median: 170, Q3: 180, WhiskerLow: 160, WhiskerHigh: 180},
		},
		Correlation: types.CorrelationMatrix{
			Columns: []string{types.ColPM25, types.ColPM10},
			Values:  [][]float64{{1, 0.8}, {0.8, 1}},
		},
		RFM: []types.RFMRow{
			{Station: "Dongsi", Recency: 5, Frequency: 2, Magnitude: 170},
		},
		RFMCorrelation: types.CorrelationMatrix{
			Columns: types.RFMMetrics,
			Values: [][]float64{
				{math.NaN(), math.NaN(), math.NaN()},
				{math.NaN(), math.NaN(), math.NaN()},
				{math.NaN(), math.NaN(), math.NaN()},
			},
		},
		RFMDistribution: []types.Histogram{
			{Metric: types.MetricRecency, Edges: []float64{4.5, 5.5}, Counts: []int{1}},
		},
	}
}

func TestRenderDashboard_withData(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}

	var buf bytes.Buffer
	err := RenderDashboard(&buf, &DashboardData{Overview: testOverview()})
	if err != nil {
		t.Fatalf("RenderDashboard(data) = %v; want nil", err)
	}
	out := buf.String()
	for _, want := range []string{
		"<!DOCTYPE html>",
		"<main",
		"Air Quality Dashboard",
		"station-selector",
		`value="Wanliu" checked`,
		`value="2017-02-01"`,
		"Descriptive statistics",
		"142.50",
		"RFM summary",
		"Dongsi",
		"/api/v1/rfm/export.xlsx",
		"trend-chart",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, `value="Guanyuan" checked`) {
		t.Error("unselected station rendered as checked")
	}
	if strings.Contains(out, "ZgotmplZ") {
		t.Error("output contains an unsafe value placeholder")
	}
}

func TestRenderDashboard_emptyFilter(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}

	ov := testOverview()
	ov.Selected = []string{}
	ov.FilteredRows = 0
	ov.Summary = []types.ColumnSummary{}
	ov.Trend = []types.TrendSeries{}
	ov.BoxPlot = []types.BoxStats{}

	var buf bytes.Buffer
	if err := RenderDashboard(&buf, &DashboardData{Overview: ov}); err != nil {
		t.Fatalf("RenderDashboard() = %v; want nil", err)
	}
	out := buf.String()
	if got := strings.Count(out, "No readings match the current filter"); got != 3 {
		t.Errorf("empty-filter message rendered %d times; want 3", got)
	}
	// RFM uses the full dataset and is unaffected.
	if !strings.Contains(out, "recency (days)") {
		t.Error("RFM table missing")
	}
}

func TestRenderDashboard_noHighPollutionEvents(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}

	ov := testOverview()
	ov.RFM = []types.RFMRow{}
	ov.RFMCorrelation = types.CorrelationMatrix{}
	ov.RFMDistribution = []types.Histogram{}

	var buf bytes.Buffer
	if err := RenderDashboard(&buf, &DashboardData{Overview: ov}); err != nil {
		t.Fatalf("RenderDashboard() = %v; want nil", err)
	}
	out := buf.String()
	if !strings.Contains(out, "No high-pollution events") {
		t.Error("output missing \"No high-pollution events\"")
	}
	if strings.Contains(out, "export.xlsx") {
		t.Error("export link rendered without RFM rows")
	}
}

func TestRenderDashboard_loadError(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}

	var buf bytes.Buffer
	err := RenderDashboard(&buf, &DashboardData{Error: "data source unavailable: get x: 404 Not Found"})
	if err != nil {
		t.Fatalf("RenderDashboard() = %v; want nil", err)
	}
	out := buf.String()
	if !strings.Contains(out, "404 Not Found") {
		t.Errorf("output missing error message; got %q", out)
	}
	if strings.Contains(out, "Descriptive statistics") {
		t.Error("panels rendered despite load error")
	}
}

func TestRenderOverviewPartial(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}

	var buf bytes.Buffer
	if err := RenderOverviewPartial(&buf, &DashboardData{Overview: testOverview()}); err != nil {
		t.Fatalf("RenderOverviewPartial() = %v; want nil", err)
	}
	out := buf.String()
	if strings.Contains(out, "<!DOCTYPE html>") {
		t.Error("partial rendered the full layout")
	}
	if !strings.Contains(out, "panel-rfm") {
		t.Error("partial missing RFM panel")
	}
}

// Ensure RenderDashboard propagates write errors (e.g. closed writer).
func TestRenderDashboard_writeError(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}

	w := &failingWriter{err: io.ErrClosedPipe}
	err := RenderDashboard(w, &DashboardData{})
	if err == nil {
		t.Fatal("RenderDashboard(failingWriter) = nil; want error")
	}
	if err != io.ErrClosedPipe {
		t.Errorf("RenderDashboard() = %v; want %v", err, io.ErrClosedPipe)
	}
}

func TestFormatters(t *testing.T) {
	if got := formatNumber(math.NaN()); got != "n/a" {
		t.Errorf("formatNumber(NaN) = %q; want n/a", got)
	}
	if got := formatNumber(170); got != "170" {
		t.Errorf("formatNumber(170) = %q; want 170", got)
	}
	if got := formatNumber(0.12345); got != "0.12" {
		t.Errorf("formatNumber(0.12345) = %q; want 0.12", got)
	}
	if got := formatDate(time.Time{}); got != "" {
		t.Errorf("formatDate(zero) = %q; want empty", got)
	}
	if got := string(heatColor(1)); got != "#ff0000" {
		t.Errorf("heatColor(1) = %q; want #ff0000", got)
	}
	if got := string(heatColor(-1)); got != "#0000ff" {
		t.Errorf("heatColor(-1) = %q; want #0000ff", got)
	}
	if got := string(heatColor(0)); got != "#ffffff" {
		t.Errorf("heatColor(0) = %q; want #ffffff", got)
	}
}

type failingWriter struct{ err error }

func (f *failingWriter) Write([]byte) (int, error) { return 0, f.err }
