// Package admin mounts the debug and metrics HTTP surface of the grid server.
package admin

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/gridpath/internal/db"
	"github.com/banshee-data/gridpath/internal/grid"
	"github.com/banshee-data/gridpath/internal/timeutil"
	"github.com/banshee-data/gridpath/internal/version"
)

// Config wires the admin surface to the running server.
type Config struct {
	Engine *grid.Engine
	// DB receives graph exports. When nil the export routes answer 503 and
	// tailsql is not mounted.
	DB       *db.DB
	Gatherer prometheus.Gatherer
	Clock    timeutil.Clock
}

// Server holds the admin handlers.
type Server struct {
	engine    *grid.Engine
	db        *db.DB
	gatherer  prometheus.Gatherer
	clock     timeutil.Clock
	startedAt time.Time
}

// New returns an admin server. A nil Gatherer uses the default registry.
func New(cfg Config) *Server {
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	clock := timeutil.OrReal(cfg.Clock)
	return &Server{
		engine:    cfg.Engine,
		db:        cfg.DB,
		gatherer:  gatherer,
		clock:     clock,
		startedAt: clock.Now(),
	}
}

// AttachRoutes mounts /metrics and the /debug/ pages on mux. Debug pages are
// only served to local and tailnet clients.
func (s *Server) AttachRoutes(mux *http.ServeMux) error {
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	debug := tsweb.Debugger(mux)
	debug.KV("Build", version.Get().String())
	debug.KVFunc("Cells", func() any { return s.engine.Store().Len() })
	debug.HandleFunc("stats", "Grid summary and request counters (JSON)", s.handleStats)
	debug.HandleFunc("build", "Build information (JSON)", s.handleBuild)
	debug.HandleFunc("grid", "Cell scatter coloured by out-degree", s.handleGridChart)
	debug.HandleFunc("grid.png", "Cell scatter as PNG", s.handleGridPNG)
	debug.HandleSilentFunc("export", s.handleExport)
	debug.HandleFunc("exports", "Stored graph exports (JSON); POST /debug/export to add one", s.handleExports)

	if s.db == nil {
		return nil
	}
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+s.db.Path(), s.db.DB, &tailsql.DBOptions{
		Label: "Graph exports",
	})
	debug.Handle("tailsql/", "SQL over graph exports", tsql.NewMux())
	return nil
}
