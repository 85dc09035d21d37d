package admin

import (
	"net/http"

	"github.com/banshee-data/gridpath/internal/db"
	"github.com/banshee-data/gridpath/internal/grid"
	"github.com/banshee-data/gridpath/internal/httputil"
	"github.com/banshee-data/gridpath/internal/monitoring"
	"github.com/banshee-data/gridpath/internal/version"
)

// StatsResponse is the body of /debug/stats.
type StatsResponse struct {
	Summary       grid.Summary `json:"summary"`
	UptimeSeconds float64      `json:"uptime_seconds"`
	Build         version.Info `json:"build"`
}

// ExportResponse is the body of a successful POST /debug/export.
type ExportResponse struct {
	ExportID string `json:"export_id"`
	Cells    int    `json:"cells"`
	Edges    int    `json:"edges"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, StatsResponse{
		Summary:       s.engine.Store().Summary(),
		UptimeSeconds: s.clock.Since(s.startedAt).Seconds(),
		Build:         version.Get(),
	})
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, version.Get())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	if s.db == nil {
		httputil.ServiceUnavailable(w, "export database not configured")
		return
	}

	snap := s.engine.Store().Snapshot()
	id, err := s.db.ExportSnapshot(r.Context(), snap)
	if err != nil {
		monitoring.Logf("graph export failed: %v", err)
		httputil.InternalServerError(w, "export failed: "+err.Error())
		return
	}
	monitoring.Logf("graph export %s written: cells=%d edges=%d", id, len(snap.Cells), snap.EdgeCount())
	httputil.Created(w, ExportResponse{ExportID: id, Cells: len(snap.Cells), Edges: snap.EdgeCount()})
}

func (s *Server) handleExports(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	if s.db == nil {
		httputil.ServiceUnavailable(w, "export database not configured")
		return
	}
	exports, err := s.db.ListExports(r.Context())
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if exports == nil {
		exports = []db.Export{}
	}
	httputil.WriteJSONOK(w, exports)
}
