package admin

import (
	"bytes"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gridpath/internal/db"
	"github.com/banshee-data/gridpath/internal/grid"
	"github.com/banshee-data/gridpath/internal/server"
	"github.com/banshee-data/gridpath/internal/testutil"
	"github.com/banshee-data/gridpath/internal/timeutil"
)

func newTestServer(t *testing.T, withDB bool) (*Server, *grid.Engine) {
	t.Helper()
	engine := testutil.NewEngine()
	cfg := Config{Engine: engine, Gatherer: prometheus.NewRegistry()}
	if withDB {
		database, err := db.NewDB(filepath.Join(t.TempDir(), "exports.db"))
		require.NoError(t, err)
		t.Cleanup(func() { database.Close() })
		cfg.DB = database
	}
	return New(cfg), engine
}

func TestHandleStats(t *testing.T) {
	t.Parallel()
	s, engine := newTestServer(t, false)
	testutil.WalkLine(t, engine, 10, 20)

	rec := testutil.Serve(http.HandlerFunc(s.handleStats), http.MethodGet, "/debug/stats")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp StatsResponse
	testutil.DecodeJSON(t, rec, &resp)
	assert.Equal(t, 3, resp.Summary.Cells)
	assert.Equal(t, 2, resp.Summary.Edges)
	assert.Equal(t, int64(1), resp.Summary.Counters.Walks)
	assert.InDelta(t, 15.0, resp.Summary.MeanEdgeWeight, 1e-9)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, 0.0)
	assert.NotEmpty(t, resp.Build.GoVersion)
}

func TestHandleStats_Uptime(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s := New(Config{Engine: testutil.NewEngine(), Clock: clock})
	clock.Advance(90 * time.Second)

	rec := testutil.Serve(http.HandlerFunc(s.handleStats), http.MethodGet, "/debug/stats")
	var resp StatsResponse
	testutil.DecodeJSON(t, rec, &resp)
	assert.Equal(t, 90.0, resp.UptimeSeconds)
	assert.Zero(t, resp.Summary.Cells)
}

func TestHandleStats_RejectsPost(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, false)
	rec := testutil.Serve(http.HandlerFunc(s.handleStats), http.MethodPost, "/debug/stats")
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestHandleExport(t *testing.T) {
	t.Parallel()
	s, engine := newTestServer(t, true)
	testutil.WalkLine(t, engine, 4, 4, 4)

	rec := testutil.Serve(http.HandlerFunc(s.handleExport), http.MethodPost, "/debug/export")
	testutil.AssertStatusCode(t, rec.Code, http.StatusCreated)
	var created ExportResponse
	testutil.DecodeJSON(t, rec, &created)
	assert.NotEmpty(t, created.ExportID)
	assert.Equal(t, 4, created.Cells)
	assert.Equal(t, 3, created.Edges)

	rec = testutil.Serve(http.HandlerFunc(s.handleExports), http.MethodGet, "/debug/exports")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var listed []db.Export
	testutil.DecodeJSON(t, rec, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ExportID, listed[0].ID)
	assert.Equal(t, 3, listed[0].EdgeCount)
}

func TestHandleExport_Errors(t *testing.T) {
	t.Parallel()

	withDB, _ := newTestServer(t, true)
	rec := testutil.Serve(http.HandlerFunc(withDB.handleExport), http.MethodGet, "/debug/export")
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)

	noDB, _ := newTestServer(t, false)
	rec = testutil.Serve(http.HandlerFunc(noDB.handleExport), http.MethodPost, "/debug/export")
	testutil.AssertStatusCode(t, rec.Code, http.StatusServiceUnavailable)
	rec = testutil.Serve(http.HandlerFunc(noDB.handleExports), http.MethodGet, "/debug/exports")
	testutil.AssertStatusCode(t, rec.Code, http.StatusServiceUnavailable)
}

func TestHandleExports_EmptyList(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, true)
	rec := testutil.Serve(http.HandlerFunc(s.handleExports), http.MethodGet, "/debug/exports")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestHandleGridChart(t *testing.T) {
	t.Parallel()
	s, engine := newTestServer(t, false)
	testutil.WalkLine(t, engine, 1, 2, 3)

	rec := testutil.Serve(http.HandlerFunc(s.handleGridChart), http.MethodGet, "/debug/grid")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Walk Grid")
	assert.Contains(t, rec.Body.String(), "cells=4 edges=3 stride=1")
}

func TestHandleGridChart_BadMaxPoints(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, false)
	for _, q := range []string{"abc", "0", "-3"} {
		rec := testutil.Serve(http.HandlerFunc(s.handleGridChart), http.MethodGet, "/debug/grid?max_points="+q)
		testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	}
}

func TestHandleGridPNG(t *testing.T) {
	t.Parallel()
	s, engine := newTestServer(t, false)

	// Empty grid still renders.
	rec := testutil.Serve(http.HandlerFunc(s.handleGridPNG), http.MethodGet, "/debug/grid.png")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	testutil.WalkLine(t, engine, 5, 5)
	rec = testutil.Serve(http.HandlerFunc(s.handleGridPNG), http.MethodGet, "/debug/grid.png?max_points=2")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestSampleCells(t *testing.T) {
	t.Parallel()
	engine := testutil.NewEngine()
	testutil.WalkLine(t, engine, 1, 1, 1, 1, 1, 1, 1, 1, 1)
	snap := engine.Store().Snapshot()

	cells, stride, maxDegree := sampleCells(snap, 4)
	assert.Equal(t, 3, stride)
	assert.Len(t, cells, 4)
	assert.Equal(t, 1, maxDegree)

	cells, stride, _ = sampleCells(snap, 100)
	assert.Equal(t, 1, stride)
	assert.Len(t, cells, 10)
}

func TestDegreeColor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, hexColor(viridis[0]), degreeColor(0, 0))
	assert.Equal(t, hexColor(viridis[0]), degreeColor(0, 8))
	assert.Equal(t, hexColor(viridis[len(viridis)-1]), degreeColor(8, 8))
	assert.Equal(t, hexColor(viridis[len(viridis)-1]), degreeColor(20, 8))

	c := hexColor("#fde725")
	assert.Equal(t, uint8(0xfd), c.R)
	assert.Equal(t, uint8(0xe7), c.G)
	assert.Equal(t, uint8(0x25), c.B)
}

func TestAttachRoutes(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	engine := testutil.NewEngine()
	server.NewMetrics(reg)
	server.RegisterGridCollectors(reg, engine.Store())

	database, err := db.NewDB(filepath.Join(t.TempDir(), "exports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	s := New(Config{Engine: engine, DB: database, Gatherer: reg})
	mux := http.NewServeMux()
	require.NoError(t, s.AttachRoutes(mux))

	t.Run("metrics", func(t *testing.T) {
		rec := testutil.Serve(mux, http.MethodGet, "/metrics")
		testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
		assert.Contains(t, rec.Body.String(), "gridpath_cells 0")
		assert.Contains(t, rec.Body.String(), "gridpath_sessions_active 0")
	})

	t.Run("stats", func(t *testing.T) {
		rec := testutil.Serve(mux, http.MethodGet, "/debug/stats")
		testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	})

	t.Run("export", func(t *testing.T) {
		rec := testutil.Serve(mux, http.MethodPost, "/debug/export")
		testutil.AssertStatusCode(t, rec.Code, http.StatusCreated)
	})

	for _, path := range []string{"/debug/", "/debug/grid", "/debug/grid.png", "/debug/build", "/debug/exports", "/debug/tailsql/"} {
		t.Run(path, func(t *testing.T) {
			rec := testutil.Serve(mux, http.MethodGet, path)
			if rec.Code == http.StatusNotFound {
				t.Errorf("route %s should be registered, got 404", path)
			}
		})
	}
}
