package service

import (
	"context"
	"time"

	"airquality-server/internal/modules/airquality/analysis"
	"airquality-server/internal/modules/airquality/types"
)

// Scope selects which readings an aggregate is computed over.
type Scope int

const (
	ScopeFiltered Scope = iota
	ScopeFull
)

// AggregateScope is the scope of the parameter correlation heatmap and of
// the RFM table with its correlation and distribution. Trend, boxplot and
// descriptive statistics always use the filtered readings.
const AggregateScope = ScopeFull

// Selection is the user's filter. Nil Stations selects every station; an
// empty non-nil slice selects none. Zero From/To fall back to the dataset
// bounds.
type Selection struct {
	Stations []string
	From     time.Time
	To       time.Time
}

type DatasetStatus struct {
	Source   string    `json:"source"`
	Loaded   bool      `json:"loaded"`
	Expired  bool      `json:"expired"`
	Rows     int       `json:"rows"`
	LoadedAt time.Time `json:"loadedAt,omitzero"`
}

// Catalog describes the filter controls: the station options and the
// date-picker bounds.
type Catalog struct {
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loadedAt"`
	Hourly   bool      `json:"hourly"`
	Rows     int       `json:"rows"`
	Stations []string  `json:"stations"`
	MinDate  time.Time `json:"minDate,omitzero"`
	MaxDate  time.Time `json:"maxDate,omitzero"`
}

// Overview is everything the dashboard renders for one selection.
type Overview struct {
	Catalog   Catalog
	Selected  []string
	From      time.Time
	To        time.Time
	Threshold float64

	FilteredRows int
	Summary      []types.ColumnSummary
	Trend        []types.TrendSeries
	BoxPlot      []types.BoxStats

	Correlation     types.CorrelationMatrix
	RFM             []types.RFMRow
	RFMCorrelation  types.CorrelationMatrix
	RFMDistribution []types.Histogram
}

// IsSelected reports whether station is part of the current selection.
func (o *Overview) IsSelected(station string) bool {
	for _, s := range o.Selected {
		if s == station {
			return true
		}
	}
	return false
}

func (s *Service) Catalog(ctx context.Context) (Catalog, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return Catalog{}, err
	}
	return catalogOf(ds), nil
}

func catalogOf(ds *types.Dataset) Catalog {
	c := Catalog{
		Source:   ds.Source,
		LoadedAt: ds.LoadedAt,
		Hourly:   ds.HasHour,
		Rows:     len(ds.Readings),
		Stations: analysis.StationsOf(ds.Readings),
	}
	if lo, hi, ok := analysis.DateBounds(ds.Readings); ok {
		c.MinDate, c.MaxDate = lo, hi
	}
	return c
}

// resolve fills the defaults of sel from the dataset.
func resolve(c Catalog, sel Selection) Selection {
	out := sel
	if out.Stations == nil {
		out.Stations = c.Stations
	}
	if out.From.IsZero() {
		out.From = c.MinDate
	}
	if out.To.IsZero() {
		out.To = c.MaxDate
	}
	return out
}

func filtered(ds *types.Dataset, sel Selection) []types.Reading {
	r := resolve(catalogOf(ds), sel)
	return analysis.Filter(ds.Readings, r.Stations, r.From, r.To)
}

func scoped(ds *types.Dataset, sel Selection, scope Scope) []types.Reading {
	if scope == ScopeFull {
		return ds.Readings
	}
	return filtered(ds, sel)
}

func (s *Service) Readings(ctx context.Context, sel Selection) ([]types.Reading, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return filtered(ds, sel), nil
}

// FilteredDataset returns the selected readings together with the source
// shape (hourly or daily), both taken from one dataset snapshot.
func (s *Service) FilteredDataset(ctx context.Context, sel Selection) (*types.Dataset, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return &types.Dataset{
		Source:   ds.Source,
		HasHour:  ds.HasHour,
		LoadedAt: ds.LoadedAt,
		Readings: filtered(ds, sel),
	}, nil
}

func (s *Service) Summary(ctx context.Context, sel Selection) ([]types.ColumnSummary, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return analysis.Describe(filtered(ds, sel), types.MeasureColumns)
}

func (s *Service) Trend(ctx context.Context, sel Selection, column string) ([]types.TrendSeries, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return analysis.Trend(filtered(ds, sel), column)
}

func (s *Service) BoxPlot(ctx context.Context, sel Selection, column string) ([]types.BoxStats, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return analysis.BoxPlot(filtered(ds, sel), column)
}

func (s *Service) Correlation(ctx context.Context, sel Selection) (types.CorrelationMatrix, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return types.CorrelationMatrix{}, err
	}
	return analysis.Correlation(scoped(ds, sel, AggregateScope), types.MeasureColumns)
}

func (s *Service) RFM(ctx context.Context, sel Selection, threshold float64) ([]types.RFMRow, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return analysis.RFM(scoped(ds, sel, AggregateScope), threshold), nil
}

func (s *Service) RFMCorrelation(ctx context.Context, sel Selection, threshold float64) (types.CorrelationMatrix, error) {
	rows, err := s.RFM(ctx, sel, threshold)
	if err != nil {
		return types.CorrelationMatrix{}, err
	}
	return analysis.RFMCorrelation(rows), nil
}

func (s *Service) RFMDistribution(ctx context.Context, sel Selection, threshold float64, bins int) ([]types.Histogram, error) {
	rows, err := s.RFM(ctx, sel, threshold)
	if err != nil {
		return nil, err
	}
	return analysis.RFMDistribution(rows, bins), nil
}

// Overview computes every dashboard panel from a single dataset snapshot.
func (s *Service) Overview(ctx context.Context, sel Selection) (*Overview, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}

	cat := catalogOf(ds)
	r := resolve(cat, sel)
	rows := analysis.Filter(ds.Readings, r.Stations, r.From, r.To)

	summary, err := analysis.Describe(rows, types.MeasureColumns)
	if err != nil {
		return nil, err
	}
	trend, err := analysis.Trend(rows, types.ColPM25)
	if err != nil {
		return nil, err
	}
	box, err := analysis.BoxPlot(rows, types.ColPM25)
	if err != nil {
		return nil, err
	}

	aggregate := ds.Readings
	if AggregateScope == ScopeFiltered {
		aggregate = rows
	}
	corr, err := analysis.Correlation(aggregate, types.MeasureColumns)
	if err != nil {
		return nil, err
	}
	rfm := analysis.RFM(aggregate, s.threshold)

	return &Overview{
		Catalog:         cat,
		Selected:        r.Stations,
		From:            r.From,
		To:              r.To,
		Threshold:       s.threshold,
		FilteredRows:    len(rows),
		Summary:         summary,
		Trend:           trend,
		BoxPlot:         box,
		Correlation:     corr,
		RFM:             rfm,
		RFMCorrelation:  analysis.RFMCorrelation(rfm),
		RFMDistribution: analysis.RFMDistribution(rfm, 0),
	}, nil
}
