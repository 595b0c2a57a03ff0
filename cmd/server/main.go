package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/AngelCh415/mkt-kpi/internal/config"
	"github.com/AngelCh415/mkt-kpi/internal/httpx"
	"github.com/AngelCh415/mkt-kpi/internal/ingest"
	"github.com/AngelCh415/mkt-kpi/internal/metrics"
	"github.com/AngelCh415/mkt-kpi/internal/pipeline"
	"github.com/AngelCh415/mkt-kpi/internal/store"
	"github.com/AngelCh415/mkt-kpi/internal/telemetry"
	"github.com/AngelCh415/mkt-kpi/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("error loading .env file", slog.String("err", err.Error()))
	}
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFile)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tel := telemetry.NewMetrics(reg)

	mSvc := metrics.NewService(cfg.Pipeline.TopN, logger)
	st := store.NewMemoryStore(mSvc, tel)
	engine := pipeline.NewEngine(pipeline.Options{MaxDiscardRatio: cfg.Pipeline.MaxDiscardRatio}, logger, tel)
	remote := pipeline.NewRemote(engine, st, ingest.NewHTTPClient(cfg.HTTPTimeout), pipeline.RemoteConfig{
		EventsURL:  cfg.EventsURL,
		CostsURL:   cfg.CostsURL,
		SinkURL:    cfg.SinkURL,
		SinkSecret: cfg.SinkSecret,
		MaxBytes:   cfg.Pipeline.MaxUploadBytes,
	}, logger)

	r := httpx.NewRouter(logger, httpx.Deps{
		Engine:         engine,
		Store:          st,
		Remote:         remote,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Limiter:        rate.NewLimiter(rate.Limit(cfg.Pipeline.UploadRatePerSec), cfg.Pipeline.UploadBurst),
		MaxUploadBytes: cfg.Pipeline.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	logger.Info("starting server", slog.String("port", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
