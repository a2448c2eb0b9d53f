package views

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"math"
	"strconv"
	"time"

	"airquality-server/internal/modules/airquality/service"
)

var dashboardTmpl *template.Template

var funcs = template.FuncMap{
	"num":      formatNumber,
	"date":     formatDate,
	"datetime": formatDateTime,
	"heat":     heatColor,
}

// loadTemplatesFromFS loads dashboard templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	tmpl, err := template.New("dashboard").Funcs(funcs).ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	dashboardTmpl = tmpl
	return nil
}

// LoadTemplates loads embedded dashboard templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// DashboardData is the view model of the dashboard page. When Error is set
// the page shows only the message.
type DashboardData struct {
	Title    string
	Error    string
	Overview *service.Overview
}

func RenderDashboard(w io.Writer, data *DashboardData) error {
	if dashboardTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	if data == nil {
		data = &DashboardData{}
	}
	if data.Title == "" {
		data.Title = "Air Quality Dashboard"
	}
	return dashboardTmpl.ExecuteTemplate(w, "dashboard.html", data)
}

// RenderOverviewPartial executes only the panels below the filter form.
// Use for HTMX fragment refresh.
func RenderOverviewPartial(w io.Writer, data *DashboardData) error {
	if dashboardTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	return dashboardTmpl.ExecuteTemplate(w, "partials/overview.html", data)
}

func formatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e9 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04 MST")
}

// heatColor maps a correlation in [-1, 1] to a blue-white-red scale.
func heatColor(v float64) template.CSS {
	if math.IsNaN(v) {
		return template.CSS("#eeeeee")
	}
	v = math.Max(-1, math.Min(1, v))
	fade := func(x float64) int { return int(math.Round(255 * (1 - math.Abs(x)))) }
	if v >= 0 {
		return template.CSS(fmt.Sprintf("#ff%02x%02x", fade(v), fade(v)))
	}
	return template.CSS(fmt.Sprintf("#%02x%02xff", fade(v), fade(v)))
}
