package controller

import (
	"bytes"
	"log/slog"
	"net/http"

	"airquality-server/internal/modules/airquality/views"
	"airquality-server/internal/utils"
)

func (c *airQualityControllerImpl) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	sel, err := parseSelection(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := http.StatusOK
	data := &views.DashboardData{}
	overview, err := c.service.Overview(r.Context(), sel)
	if err != nil {
		// The page still renders, showing only the load error.
		status = statusFor(err)
		slog.Error("dashboard: load overview failed", "error", err, "request_id", utils.RequestID(r.Context()))
		data.Error = err.Error()
	} else {
		data.Overview = overview
	}

	var buf bytes.Buffer
	if err := views.RenderDashboard(&buf, data); err != nil {
		slog.Error("dashboard template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	writeHTML(w, status, buf.Bytes())
}

func (c *airQualityControllerImpl) handleOverviewPartial(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	overview, err := c.service.Overview(r.Context(), sel)
	if err != nil {
		slog.Error("overview: load failed", "error", err, "request_id", utils.RequestID(r.Context()))
		writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := views.RenderOverviewPartial(&buf, &views.DashboardData{Overview: overview}); err != nil {
		slog.Error("overview partial render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render")
		return
	}
	writeHTML(w, http.StatusOK, buf.Bytes())
}

func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Error("write html response failed", "error", err)
	}
}
