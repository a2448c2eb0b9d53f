package controller

import (
	"bytes"
	"log/slog"
	"net/http"

	"airquality-server/internal/modules/airquality/export"
	"airquality-server/internal/modules/airquality/types"
	"airquality-server/internal/utils"
)

type readingsPage struct {
	Total    int             `json:"total"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
	Readings []types.Reading `json:"readings"`
}

type rfmResponse struct {
	Threshold float64        `json:"threshold"`
	Rows      []types.RFMRow `json:"rows"`
}

func (c *airQualityControllerImpl) handleStations(w http.ResponseWriter, r *http.Request) {
	catalog, err := c.service.Catalog(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, catalog)
}

func (c *airQualityControllerImpl) handleReadings(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset, err := parsePage(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	readings, err := c.service.Readings(r.Context(), sel)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	page := readingsPage{Total: len(readings), Limit: limit, Offset: offset, Readings: []types.Reading{}}
	if offset < len(readings) {
		end := min(offset+limit, len(readings))
		page.Readings = readings[offset:end]
	}
	utils.WriteJSON(w, http.StatusOK, page)
}

func (c *airQualityControllerImpl) handleReadingsCSV(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	ds, err := c.service.FilteredDataset(r.Context(), sel)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteReadingsCSV(&buf, ds.Readings, ds.HasHour); err != nil {
		slog.Error("readings csv export failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to export readings")
		return
	}
	utils.SetAttachment(w, export.ContentTypeCSV, "readings.csv")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("readings csv: write response failed", "error", err)
	}
}

func (c *airQualityControllerImpl) handleSummary(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	summary, err := c.service.Summary(r.Context(), sel)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, summary)
}

func (c *airQualityControllerImpl) handleTrend(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	series, err := c.service.Trend(r.Context(), sel, parseColumn(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, series)
}

func (c *airQualityControllerImpl) handleBoxPlot(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := c.service.BoxPlot(r.Context(), sel, parseColumn(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, stats)
}

func (c *airQualityControllerImpl) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := c.service.Correlation(r.Context(), sel)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, m)
}

func (c *airQualityControllerImpl) handleRFM(w http.ResponseWriter, r *http.Request) {
	sel, threshold, ok := c.parseRFMQuery(w, r)
	if !ok {
		return
	}
	rows, err := c.service.RFM(r.Context(), sel, threshold)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, rfmResponse{Threshold: threshold, Rows: rows})
}

func (c *airQualityControllerImpl) handleRFMCorrelation(w http.ResponseWriter, r *http.Request) {
	sel, threshold, ok := c.parseRFMQuery(w, r)
	if !ok {
		return
	}
	m, err := c.service.RFMCorrelation(r.Context(), sel, threshold)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, m)
}

func (c *airQualityControllerImpl) handleRFMDistribution(w http.ResponseWriter, r *http.Request) {
	sel, threshold, ok := c.parseRFMQuery(w, r)
	if !ok {
		return
	}
	bins, err := parseBins(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	hists, err := c.service.RFMDistribution(r.Context(), sel, threshold, bins)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, hists)
}

func (c *airQualityControllerImpl) handleRFMExport(w http.ResponseWriter, r *http.Request) {
	sel, threshold, ok := c.parseRFMQuery(w, r)
	if !ok {
		return
	}
	rows, err := c.service.RFM(r.Context(), sel, threshold)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	corr, err := c.service.RFMCorrelation(r.Context(), sel, threshold)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteRFMWorkbook(&buf, rows, corr, threshold); err != nil {
		slog.Error("rfm xlsx export failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to export rfm summary")
		return
	}
	utils.SetAttachment(w, export.ContentTypeXLSX, "rfm.xlsx")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("rfm xlsx: write response failed", "error", err)
	}
}

func (c *airQualityControllerImpl) handleLoads(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultLoadsLimit, maxLoadsLimit)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	loads, err := c.service.RecentLoads(r.Context(), limit)
	if err != nil {
		slog.Error("loads: query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	utils.WriteJSON(w, http.StatusOK, loads)
}

// parseRFMQuery resolves the selection and threshold and writes a 400 when
// either is invalid.
func (c *airQualityControllerImpl) parseRFMQuery(w http.ResponseWriter, r *http.Request) (sel selection, threshold float64, ok bool) {
	sel, err := parseSelection(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return sel, 0, false
	}
	threshold, err = parseThreshold(r, c.service.Threshold())
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return sel, 0, false
	}
	return sel, threshold, true
}
