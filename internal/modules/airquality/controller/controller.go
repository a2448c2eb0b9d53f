package controller

import (
	"context"
	"net/http"

	"airquality-server/internal/modules/airquality/service"
	"airquality-server/internal/modules/airquality/types"
)

// DashboardService is the part of service.Service the handlers use.
type DashboardService interface {
	Threshold() float64
	Catalog(ctx context.Context) (service.Catalog, error)
	Overview(ctx context.Context, sel service.Selection) (*service.Overview, error)
	Readings(ctx context.Context, sel service.Selection) ([]types.Reading, error)
	FilteredDataset(ctx context.Context, sel service.Selection) (*types.Dataset, error)
	Summary(ctx context.Context, sel service.Selection) ([]types.ColumnSummary, error)
	Trend(ctx context.Context, sel service.Selection, column string) ([]types.TrendSeries, error)
	BoxPlot(ctx context.Context, sel service.Selection, column string) ([]types.BoxStats, error)
	Correlation(ctx context.Context, sel service.Selection) (types.CorrelationMatrix, error)
	RFM(ctx context.Context, sel service.Selection, threshold float64) ([]types.RFMRow, error)
	RFMCorrelation(ctx context.Context, sel service.Selection, threshold float64) (types.CorrelationMatrix, error)
	RFMDistribution(ctx context.Context, sel service.Selection, threshold float64, bins int) ([]types.Histogram, error)
	RecentLoads(ctx context.Context, limit int) ([]types.LoadRecord, error)
}

type AirQualityController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type airQualityControllerImpl struct {
	service DashboardService
}

func NewAirQualityController(service DashboardService) AirQualityController {
	return &airQualityControllerImpl{service: service}
}

func (c *airQualityControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", c.handleDashboard)
	mux.HandleFunc("GET /partials/overview", c.handleOverviewPartial)

	mux.HandleFunc("GET /api/v1/stations", c.handleStations)
	mux.HandleFunc("GET /api/v1/readings", c.handleReadings)
	mux.HandleFunc("GET /api/v1/readings/export.csv", c.handleReadingsCSV)
	mux.HandleFunc("GET /api/v1/summary", c.handleSummary)
	mux.HandleFunc("GET /api/v1/trend", c.handleTrend)
	mux.HandleFunc("GET /api/v1/boxplot", c.handleBoxPlot)
	mux.HandleFunc("GET /api/v1/correlation", c.handleCorrelation)
	mux.HandleFunc("GET /api/v1/rfm", c.handleRFM)
	mux.HandleFunc("GET /api/v1/rfm/correlation", c.handleRFMCorrelation)
	mux.HandleFunc("GET /api/v1/rfm/distribution", c.handleRFMDistribution)
	mux.HandleFunc("GET /api/v1/rfm/export.xlsx", c.handleRFMExport)
	mux.HandleFunc("GET /api/v1/loads", c.handleLoads)
}
