package httpapi

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"airquality-server/internal/utils"
)

// DatasetStatus is the dataset section of the health report.
type DatasetStatus struct {
	Source   string    `json:"source"`
	Loaded   bool      `json:"loaded"`
	Expired  bool      `json:"expired"`
	Rows     int       `json:"rows"`
	LoadedAt time.Time `json:"loadedAt,omitzero"`
}

// DatasetStatuser reports the dataset held in memory without loading it.
type DatasetStatuser interface {
	DatasetStatus() DatasetStatus
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	db      *sql.DB
	dataset DatasetStatuser
}

type healthResponse struct {
	Status  string         `json:"status"`
	Dataset *DatasetStatus `json:"dataset,omitempty"`
}

func NewHealthchecker(db *sql.DB, dataset DatasetStatuser) healthchecker {
	return &healthcheckerImpl{db: db, dataset: dataset}
}

// handleHealthz fails only when the database is unreachable. A dataset that
// has not been loaded yet is reported but does not make the service unhealthy.
func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		slog.Error("failed to check database connectivity", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to check database connectivity")
		return
	}

	resp := healthResponse{Status: "ok"}
	if h.dataset != nil {
		st := h.dataset.DatasetStatus()
		resp.Dataset = &st
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func registerHealthcheck(mux *http.ServeMux, db *sql.DB, dataset DatasetStatuser) {
	healthchecker := NewHealthchecker(db, dataset)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
