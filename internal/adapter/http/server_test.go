package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/agrimeteo-etl/internal/adapter/http"
	"github.com/couchcryptid/agrimeteo-etl/internal/domain"
	"github.com/couchcryptid/agrimeteo-etl/internal/pipeline"
	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockAPI struct {
	lastQuery pipeline.Query
	lastYear  int
	lastMonth time.Month
	lowestN   int
	variable  string
	err       error
}

func (m *mockAPI) Departments() []domain.Department { return domain.DefaultDepartments }

func (m *mockAPI) Series(_ context.Context, q pipeline.Query) ([]domain.DepartmentSeries, error) {
	m.lastQuery = q
	if m.err != nil {
		return nil, m.err
	}
	s := domain.DepartmentSeries{Department: "27", Mode: q.Mode, Date: time.Date(2019, 9, 1, 0, 0, 0, 0, time.UTC)}
	s.Values[domain.TAvg] = 14.5
	return []domain.DepartmentSeries{s}, nil
}

func (m *mockAPI) Compare(_ context.Context, year int) (domain.Comparison, error) {
	m.lastYear = year
	return domain.Comparison{Year: year}, m.err
}

func (m *mockAPI) Snapshot(_ context.Context, year int, month time.Month) (pipeline.MapSnapshot, error) {
	m.lastYear, m.lastMonth = year, month
	if m.err != nil {
		return pipeline.MapSnapshot{}, m.err
	}
	var vals domain.Variables
	vals[domain.Precipitation] = 3.5
	return pipeline.MapSnapshot{
		Date: domain.BaselineDate(month, year),
		Regions: []domain.Region{{
			PointID:    0,
			Department: "27",
			Communes:   []string{"27001"},
			Geometry:   geom.Polygon{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}},
			Area:       1,
		}},
		Values: map[int]domain.Variables{0: vals},
	}, nil
}

func (m *mockAPI) Yields(variable string, year int) ([]domain.YieldCategory, error) {
	m.variable, m.lastYear = variable, year
	return []domain.YieldCategory{{Category: "Blé tendre"}}, m.err
}

func (m *mockAPI) LowestYields(variable string, n int) ([]domain.YieldCategory, error) {
	m.variable, m.lowestN = variable, n
	return nil, m.err
}

func (m *mockAPI) YieldVariables() ([]string, error) {
	return []string{"Production", domain.YieldVariable}, m.err
}

func newTestServer(readyErr error, api *mockAPI) *httpadapter.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, api, logger)
}

func get(t *testing.T, srv http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(nil, &mockAPI{}), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(t, newTestServer(nil, &mockAPI{}), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(t, newTestServer(fmt.Errorf("not ready yet"), &mockAPI{}), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(nil, &mockAPI{}), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestDepartments(t *testing.T) {
	rec := get(t, newTestServer(nil, &mockAPI{}), "/v1/departments")

	require.Equal(t, http.StatusOK, rec.Code)
	var body []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "Eure", body[0]["name"])
	assert.Equal(t, "28", body[1]["code"])
}

func TestSeries_PassesQuery(t *testing.T) {
	api := &mockAPI{}
	rec := get(t, newTestServer(nil, api), "/v1/series?mode=climatology&year=2020&department=28")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pipeline.Query{Mode: domain.ModeClimatology, Year: 2020, Department: "28"}, api.lastQuery)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, 14.5, body[0]["Tavg"])
	assert.Equal(t, "2019-09-01", body[0]["date"])
}

func TestSeries_OmittedYearDefersToPipeline(t *testing.T) {
	api := &mockAPI{lastYear: -1}
	srv := newTestServer(nil, api)

	rec := get(t, srv, "/v1/series")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, api.lastQuery.Year)
	assert.Equal(t, domain.ModeYear, api.lastQuery.Mode)

	require.Equal(t, http.StatusOK, get(t, srv, "/v1/compare").Code)
	assert.Equal(t, 0, api.lastYear)
}

func TestSeries_BadInput(t *testing.T) {
	srv := newTestServer(nil, &mockAPI{})

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/series?year=abc").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/series?mode=weekly").Code)
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"config", &domain.Error{Kind: domain.ErrConfig, Op: "series"}, http.StatusBadRequest},
		{"lookup", &domain.Error{Kind: domain.ErrLookup, Op: "series"}, http.StatusNotFound},
		{"data", fmt.Errorf("wrapped: %w", &domain.Error{Kind: domain.ErrData, Op: "mean"}), http.StatusUnprocessableEntity},
		{"not loaded", pipeline.ErrNotLoaded, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newTestServer(nil, &mockAPI{err: tt.err}), "/v1/series?year=2020")
			assert.Equal(t, tt.want, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestCompare(t *testing.T) {
	api := &mockAPI{}
	rec := get(t, newTestServer(nil, api), "/v1/compare?year=2021")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2021, api.lastYear)
	assert.Contains(t, rec.Body.String(), `"year":2021`)
}

func TestRegions_PaintedLayer(t *testing.T) {
	api := &mockAPI{}
	rec := get(t, newTestServer(nil, api), "/v1/regions?year=2020&month=10&variable=precipitation")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, time.October, api.lastMonth)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	props := fc.Features[0].Properties
	assert.Equal(t, "precipitation", props["variable"])
	assert.Equal(t, "2019-10-01", props["date"])
	assert.Equal(t, 3.5, props["value"])
}

func TestRegions_UnpaintedAndBadInput(t *testing.T) {
	api := &mockAPI{}
	srv := newTestServer(nil, api)

	rec := get(t, srv, "/v1/regions?year=2020")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"variable"`)
	assert.Equal(t, time.September, api.lastMonth)

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/regions?month=13").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/regions?variable=snow").Code)
}

func TestYields(t *testing.T) {
	api := &mockAPI{}
	srv := newTestServer(nil, api)

	rec := get(t, srv, "/v1/yields?year=2018")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2018, api.lastYear)
	assert.Contains(t, rec.Body.String(), "Blé tendre")

	rec = get(t, srv, "/v1/yields?lowest=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, api.lowestN)

	rec = get(t, srv, "/v1/yields")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, api.lastYear)
	assert.Empty(t, api.variable)

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/yields?lowest=0").Code)
}

func TestYields_Variable(t *testing.T) {
	api := &mockAPI{}
	srv := newTestServer(nil, api)

	rec := get(t, srv, "/v1/yields?variable=Production&year=2020")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Production", api.variable)
	assert.Equal(t, 2020, api.lastYear)

	rec = get(t, srv, "/v1/yields?variable=Surface&lowest=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Surface", api.variable)
	assert.Equal(t, 2, api.lowestN)

	rec = get(t, srv, "/v1/yields/variables")
	require.Equal(t, http.StatusOK, rec.Code)
	var body []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"Production", domain.YieldVariable}, body)
}
