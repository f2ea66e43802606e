package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"transparencia/internal/db"
	"transparencia/internal/domain/analytics"
	"transparencia/internal/domain/ingest"
	"transparencia/internal/domain/registry"
	"transparencia/internal/platform/config"
	"transparencia/internal/platform/jobs"
	"transparencia/internal/platform/metrics"
	analyticshandler "transparencia/internal/transport/http/handlers/analytics"
	importshandler "transparencia/internal/transport/http/handlers/imports"
	jobshandler "transparencia/internal/transport/http/handlers/jobs"
	registryhandler "transparencia/internal/transport/http/handlers/registry"
	"transparencia/internal/transport/http/middleware"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store    registry.Store
		jobStore jobs.Store
		pool     *pgxpool.Pool
	)
	if cfg.DatabaseURL != "" {
		var err error
		pool, err = db.Connect(ctx, cfg)
		if err != nil {
			slog.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
				slog.Error("migrations failed", "err", err)
				os.Exit(1)
			}
		}
		store = registry.NewPostgres(pool)
		jobStore = jobs.NewPostgresStore(pool)
	} else {
		slog.Warn("DATABASE_URL not set, running with the in-memory store")
		store = registry.NewMemory()
		jobStore = jobs.NewMemoryStore()
	}

	var documentPattern *regexp.Regexp
	if cfg.DocumentPattern != "" {
		documentPattern = regexp.MustCompile(cfg.DocumentPattern)
	}
	normalizer := ingest.NewNormalizer(documentPattern)
	engine := ingest.NewEngine(store, ingest.Policy{})
	importer := ingest.NewImporter(store, normalizer, engine, ingest.Options{
		Workers:            cfg.ImportWorkers,
		ErrorRateThreshold: cfg.ImportErrorThreshold,
		ThresholdMinRows:   cfg.ThresholdMinRows,
	})

	jobsSvc := jobs.New(jobStore, cfg.JobWorkers, cfg.JobQueueSize)
	jobsSvc.Start(ctx)

	analyticsSvc := analytics.New(store)

	collector := metrics.New()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Metrics(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.BodyLimit(cfg.MaxUploadBytes))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(collector.Snapshot())
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		importshandler.NewHandler(store, importer, jobsSvc, collector, cfg.UploadDir).RegisterRoutes(r)
		jobshandler.NewHandler(jobsSvc).RegisterRoutes(r)
		registryhandler.NewHandler(store).RegisterRoutes(r)
		analyticshandler.NewHandler(analyticsSvc, jobsSvc, cfg.ExportDir).RegisterRoutes(r)
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("server listening", "addr", cfg.Addr, "env", cfg.Environment)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}
