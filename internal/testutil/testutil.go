// Package testutil provides shared test helpers for the grid packages and
// the admin handlers.
package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/gridpath/internal/grid"
)

// CellPoint returns the centre of the bucket at (10i, 10j). Points from
// different (i, j) never snap together.
func CellPoint(i, j int64) grid.Point {
	return grid.Point{X: i*5000 + 250, Y: j*5000 + 250}
}

// NewEngine returns an engine over a fresh default store.
func NewEngine() *grid.Engine {
	return grid.NewEngine(grid.NewStore(grid.DefaultStoreConfig()))
}

// WalkLine walks CellPoint(0,0) -> (1,0) -> ... with the given leg lengths
// and fails the test on error.
func WalkLine(t testing.TB, e *grid.Engine, lengths ...int64) []grid.Point {
	t.Helper()
	pts := make([]grid.Point, len(lengths)+1)
	for i := range pts {
		pts[i] = CellPoint(int64(i), 0)
	}
	if err := e.Walk(context.Background(), pts, lengths); err != nil {
		t.Fatalf("walk: %v", err)
	}
	return pts
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// NewTestRequest creates a test HTTP request from a loopback address, which
// the debug routes require.
func NewTestRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:40000"
	return req
}

// Serve runs one request through h.
func Serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, NewTestRequest(method, path))
	return rec
}

// DecodeJSON decodes the recorded body into v.
func DecodeJSON(t testing.TB, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v (body %q)", err, rec.Body.String())
	}
}
