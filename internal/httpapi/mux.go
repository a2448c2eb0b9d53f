package httpapi

import (
	"database/sql"
	"net/http"

	"airquality-server/internal/observability"
)

func NewMux(db *sql.DB, dataset DatasetStatuser) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db, dataset)
	mux.Handle("GET /metrics", observability.Handler())
	return mux
}
