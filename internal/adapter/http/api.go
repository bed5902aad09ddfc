package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/agrimeteo-etl/internal/adapter/geojson"
	"github.com/couchcryptid/agrimeteo-etl/internal/domain"
	"github.com/couchcryptid/agrimeteo-etl/internal/pipeline"
)

type handlers struct {
	api    API
	logger *slog.Logger
}

// errBadRequest marks malformed query parameters.
var errBadRequest = errors.New("bad request")

func (h *handlers) departments(w http.ResponseWriter, _ *http.Request) {
	type department struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	deps := h.api.Departments()
	out := make([]department, len(deps))
	for i, d := range deps {
		out[i] = department{Code: string(d), Name: d.Name()}
	}
	writeJSON(w, http.StatusOK, out)
}

// series serves GET /v1/series?mode=year|climatology&year=2020&department=27.
func (h *handlers) series(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := yearParam(q.Get("year"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	mode := domain.Mode(q.Get("mode"))
	switch mode {
	case "":
		mode = domain.ModeYear
	case domain.ModeYear, domain.ModeClimatology:
	default:
		h.writeError(w, r, fmt.Errorf("%w: unknown mode %q", errBadRequest, mode))
		return
	}

	series, err := h.api.Series(r.Context(), pipeline.Query{
		Mode:       mode,
		Year:       year,
		Department: domain.Department(q.Get("department")),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (h *handlers) compare(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r.URL.Query().Get("year"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cmp, err := h.api.Compare(r.Context(), year)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

// regions serves the region layer as GeoJSON. With variable set, the
// features are painted with the monthly mean of month (1-12, default
// September, the first month of the agricultural year).
func (h *handlers) regions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := yearParam(q.Get("year"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	month := time.September
	if s := q.Get("month"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 12 {
			h.writeError(w, r, fmt.Errorf("%w: month must be 1-12, got %q", errBadRequest, s))
			return
		}
		month = time.Month(n)
	}

	var paint *geojson.Paint
	if name := q.Get("variable"); name != "" {
		v, err := domain.ParseVariable(name)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		paint = &geojson.Paint{Variable: v}
	}

	snap, err := h.api.Snapshot(r.Context(), year, month)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if paint != nil {
		paint.Date = snap.Date
		paint.Values = snap.Values
	}
	writeBody(w, "application/geo+json", http.StatusOK, geojson.Layer(snap.Regions, paint))
}

// yields serves GET /v1/yields?year=2020 or GET /v1/yields?lowest=5. Without
// either parameter every year is returned. variable selects the Agreste
// variable and defaults to the yields themselves.
func (h *handlers) yields(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	variable := q.Get("variable")
	var (
		out []domain.YieldCategory
		err error
	)
	switch {
	case q.Get("lowest") != "":
		n, convErr := strconv.Atoi(q.Get("lowest"))
		if convErr != nil || n < 1 {
			h.writeError(w, r, fmt.Errorf("%w: lowest must be a positive integer", errBadRequest))
			return
		}
		out, err = h.api.LowestYields(variable, n)
	case q.Get("year") != "":
		year, convErr := strconv.Atoi(q.Get("year"))
		if convErr != nil {
			h.writeError(w, r, fmt.Errorf("%w: invalid year %q", errBadRequest, q.Get("year")))
			return
		}
		out, err = h.api.Yields(variable, year)
	default:
		out, err = h.api.Yields(variable, 0)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) yieldVariables(w http.ResponseWriter, r *http.Request) {
	out, err := h.api.YieldVariables()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// yearParam parses an agricultural year. An empty value yields 0, which the
// pipeline resolves to its default year.
func yearParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(s)
	if err != nil || year < 1900 || year > 2200 {
		return 0, fmt.Errorf("%w: invalid year %q", errBadRequest, s)
	}
	return year, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, domain.ErrConfig):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrLookup):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("api request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		h.logger.Debug("api request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
