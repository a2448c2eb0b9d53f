package controller

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"airquality-server/internal/modules/airquality/analysis"
	"airquality-server/internal/modules/airquality/dataset"
	"airquality-server/internal/modules/airquality/service"
	"airquality-server/internal/modules/airquality/types"
	"airquality-server/internal/utils"
)

type selection = service.Selection

const (
	defaultReadingsLimit = 100
	maxReadingsLimit     = 1000
	defaultLoadsLimit    = 20
	maxLoadsLimit        = 200
	maxBins              = 100
)

// parseSelection reads the station and date filter. Without applied=1 an
// absent station list selects every station; with it, no station selects
// none.
func parseSelection(r *http.Request) (selection, error) {
	q := r.URL.Query()

	var sel selection
	applied := q.Get("applied") == "1"
	for _, s := range q["station"] {
		if s = strings.TrimSpace(s); s != "" {
			sel.Stations = append(sel.Stations, s)
		}
	}
	if sel.Stations == nil && applied {
		sel.Stations = []string{}
	}

	var err error
	if s := strings.TrimSpace(q.Get("from")); s != "" {
		sel.From, err = time.Parse(time.DateOnly, s)
		if err != nil {
			return selection{}, errors.New("invalid 'from' (expected YYYY-MM-DD)")
		}
	}
	if s := strings.TrimSpace(q.Get("to")); s != "" {
		sel.To, err = time.Parse(time.DateOnly, s)
		if err != nil {
			return selection{}, errors.New("invalid 'to' (expected YYYY-MM-DD)")
		}
	}
	return sel, nil
}

// parseColumn defaults to PM2.5. Unknown names are rejected by the analysis
// functions.
func parseColumn(r *http.Request) string {
	if c := strings.TrimSpace(r.URL.Query().Get("column")); c != "" {
		return c
	}
	return types.ColPM25
}

func parseThreshold(r *http.Request, def float64) (float64, error) {
	s := strings.TrimSpace(r.URL.Query().Get("threshold"))
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("invalid 'threshold' (expected number)")
	}
	if v < 0 {
		return 0, errors.New("'threshold' must be >= 0")
	}
	return v, nil
}

// parseBins returns 0 (automatic bin count) when bins is absent.
func parseBins(r *http.Request) (int, error) {
	s := r.URL.Query().Get("bins")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid 'bins' (expected integer)")
	}
	if n < 1 || n > maxBins {
		return 0, errors.New("'bins' must be between 1 and 100")
	}
	return n, nil
}

func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid 'limit' (expected integer)")
	}
	if n <= 0 {
		return 0, errors.New("'limit' must be > 0")
	}
	if n > maxLimit {
		return 0, errors.New("'limit' must be <= " + strconv.Itoa(maxLimit))
	}
	return n, nil
}

func parsePage(r *http.Request) (limit, offset int, err error) {
	limit, err = parseLimit(r, defaultReadingsLimit, maxReadingsLimit)
	if err != nil {
		return 0, 0, err
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		offset, err = strconv.Atoi(s)
		if err != nil {
			return 0, 0, errors.New("invalid 'offset' (expected integer)")
		}
		if offset < 0 {
			return 0, 0, errors.New("'offset' must be >= 0")
		}
	}
	return limit, offset, nil
}

// statusFor maps the loader and pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dataset.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, dataset.ErrSchemaMismatch):
		return http.StatusBadGateway
	case errors.Is(err, analysis.ErrUnknownColumn):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	utils.WriteError(w, statusFor(err), err.Error())
}
