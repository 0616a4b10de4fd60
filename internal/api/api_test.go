package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhydro/sewerflow/pkg/cascade"
	"github.com/openhydro/sewerflow/pkg/elevation"
	"github.com/openhydro/sewerflow/pkg/engine"
	"github.com/openhydro/sewerflow/pkg/geometry"
	"github.com/openhydro/sewerflow/pkg/network"
	"github.com/openhydro/sewerflow/pkg/provider"
)

func newTestServer(t *testing.T) (*Server, *provider.Memory) {
	t.Helper()

	segs := []network.Segment{
		{ID: 1, Up: geometry.Point{X: 0, Y: 0}, Down: geometry.Point{X: 100, Y: 0}},
		{ID: 2, Up: geometry.Point{X: 100, Y: 0}, Down: geometry.Point{X: 200, Y: 0}},
	}
	mem := provider.NewMemory(segs)

	byKey := make(map[string]float64)
	for x := -100.0; x <= 400; x += 100 {
		byKey[geometry.Point{X: x, Y: 0}.Key(geometry.DefaultTolerance)] = 100
	}
	sampler := &elevation.Static{Tolerance: geometry.DefaultTolerance, ByKey: byKey}

	e, err := engine.New(context.Background(), engine.Options{
		Provider:          mem,
		Sampler:           sampler,
		Tolerance:         geometry.DefaultTolerance,
		MovementTolerance: 0.01,
		Params:            cascade.Params{MinCover: 1.0, Diameter: 0.2, Slope: 0.001, Epsilon: 0.01},
	})
	require.NoError(t, err)

	return New(e, mem, nil), mem
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestChangesCycle(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/changes", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report engine.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 2, report.EventCount)
	assert.Equal(t, 2, report.DepthsRecalculated)
	assert.NotEmpty(t, report.CycleID)

	// A second cycle with no edits does nothing.
	rec = doJSON(t, router, http.MethodPost, "/v1/changes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 0, report.EventCount)
}

func TestEditEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/changes", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/segments/1/endpoint", moveRequest{
		Endpoint: "up",
		To:       geometry.Point{X: -100, Y: 0},
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/v1/changes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report engine.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.EventCount)
	assert.Greater(t, report.DepthsRecalculated, 0)
}

func TestAddAndRemoveSegment(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/segments", segmentRequest{
		ID:   3,
		Up:   geometry.Point{X: 200, Y: 0},
		Down: geometry.Point{X: 300, Y: 0},
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate id is rejected.
	rec = doJSON(t, router, http.MethodPost, "/v1/segments", segmentRequest{ID: 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/v1/segments/3", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestBadSegmentID(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodDelete, "/v1/segments/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_INPUT", resp.Code)
}

func TestParameters(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/changes", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/parameters", parametersRequest{
		MinCover: 1.5, Diameter: 0.2, Slope: 0.001, Epsilon: 0.01,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report engine.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 2, report.DepthsRecalculated)
}

func TestStats(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	doJSON(t, router, http.MethodPost, "/v1/changes", nil)

	rec := doJSON(t, router, http.MethodGet, "/v1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats engine.Statistics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.DepthsRecalculated)
}

func TestExportDOT(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	// Works before any cycle by building from the store.
	rec := doJSON(t, router, http.MethodGet, "/v1/export.dot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "digraph network")
	assert.Equal(t, "text/vnd.graphviz", rec.Header().Get("Content-Type"))
}
