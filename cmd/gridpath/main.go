package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/gridpath/internal/admin"
	"github.com/banshee-data/gridpath/internal/config"
	"github.com/banshee-data/gridpath/internal/db"
	"github.com/banshee-data/gridpath/internal/grid"
	"github.com/banshee-data/gridpath/internal/monitoring"
	"github.com/banshee-data/gridpath/internal/server"
	"github.com/banshee-data/gridpath/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to JSON configuration file (defaults apply when omitted)")
	listen      = flag.String("listen", "", "Protocol listen address (overrides config)")
	adminListen = flag.String("admin-listen", "", "Admin HTTP listen address (overrides config)")
	grpcListen  = flag.String("grpc-listen", "", "gRPC health listen address (overrides config)")
	workers     = flag.Int("workers", 0, "Concurrent request workers (overrides config)")
	exportDB    = flag.String("export-db", "", "SQLite file for graph exports (overrides config)")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// shutdownTimeout bounds the admin HTTP server's graceful shutdown.
const shutdownTimeout = 2 * time.Second

// applyFlags copies explicitly set flags over cfg.
func applyFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listen = listen
		case "admin-listen":
			cfg.AdminListen = adminListen
		case "grpc-listen":
			cfg.GRPCListen = grpcListen
		case "workers":
			cfg.Workers = workers
		case "export-db":
			cfg.ExportPath = exportDB
		case "log-level":
			cfg.LogLevel = logLevel
		}
	})
}

func loadConfig(fs *flag.FlagSet) (*config.Config, error) {
	cfg := config.Empty()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	applyFlags(fs, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("gridpath", version.Get())
		return
	}

	cfg, err := loadConfig(flag.CommandLine)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := monitoring.NewZapLogger(cfg.GetLogLevel(), cfg.GetLogFormat())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	monitoring.UseZap(logger)
	logger.Info("starting gridpath", zap.Stringer("build", version.Get()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	if err := a.run(ctx); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("graceful shutdown complete")
}

// app is the wired server: protocol listener, health service, admin HTTP and
// export database.
type app struct {
	logger   *zap.Logger
	engine   *grid.Engine
	listener *server.Listener
	health   *server.HealthServer
	healthLn net.Listener
	http     *http.Server
	httpLn   net.Listener
	db       *db.DB
}

// newApp binds every configured socket so that address errors surface before
// anything starts serving.
func newApp(cfg *config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	store := grid.NewStore(grid.StoreConfig{Shards: cfg.GetShards()})
	a.engine = grid.NewEngine(store)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := server.NewMetrics(reg)
	server.RegisterGridCollectors(reg, store)

	if path := cfg.GetExportPath(); path != "" {
		if a.db, err = db.NewDB(path); err != nil {
			return nil, fmt.Errorf("failed to open export database: %w", err)
		}
	}

	a.listener = server.NewListener(server.ListenerConfig{
		Address:            cfg.GetListen(),
		Engine:             a.engine,
		Workers:            cfg.GetWorkers(),
		Metrics:            metrics,
		Logger:             logger.Named("session"),
		MaxFrameBytes:      cfg.GetMaxFrameBytes(),
		CloseAfterOneToAll: cfg.GetCloseAfterOneToAll(),
		ReadTimeout:        cfg.GetReadTimeout(),
		LogInterval:        cfg.GetStatsInterval(),
	})
	if _, err = a.listener.Listen(); err != nil {
		return nil, err
	}

	if addr := cfg.GetGRPCListen(); addr != "" {
		if a.healthLn, err = net.Listen("tcp", addr); err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		a.health = server.NewHealthServer()
	}

	if addr := cfg.GetAdminListen(); addr != "" {
		mux := http.NewServeMux()
		adm := admin.New(admin.Config{Engine: a.engine, DB: a.db, Gatherer: reg})
		if err = adm.AttachRoutes(mux); err != nil {
			return nil, err
		}
		if a.httpLn, err = net.Listen("tcp", addr); err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		a.http = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	}
	return a, nil
}

func (a *app) close() {
	if a.listener != nil {
		a.listener.Close()
	}
	if a.healthLn != nil {
		a.healthLn.Close()
	}
	if a.httpLn != nil {
		a.httpLn.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// run serves until ctx is cancelled or a component fails.
func (a *app) run(ctx context.Context) error {
	defer func() {
		if a.db != nil {
			a.db.Close()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.listener.Serve(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if a.health != nil {
		g.Go(func() error {
			return a.health.Serve(gctx, a.healthLn)
		})
		a.health.SetServing(true)
	}

	if a.http != nil {
		g.Go(func() error {
			a.logger.Info("admin HTTP listening", zap.Stringer("addr", a.httpLn.Addr()))
			if err := a.http.Serve(a.httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin HTTP server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := a.http.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("admin HTTP shutdown error", zap.Error(err))
				return a.http.Close()
			}
			return nil
		})
	}

	<-gctx.Done()
	a.logger.Info("shutting down")
	if a.health != nil {
		a.health.SetServing(false)
	}
	return g.Wait()
}
