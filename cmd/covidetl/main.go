package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/covid-report-etl/internal/adapter/api"
	"github.com/couchcryptid/covid-report-etl/internal/adapter/csvfile"
	httpadapter "github.com/couchcryptid/covid-report-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/covid-report-etl/internal/adapter/kafka"
	"github.com/couchcryptid/covid-report-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/covid-report-etl/internal/config"
	"github.com/couchcryptid/covid-report-etl/internal/domain"
	"github.com/couchcryptid/covid-report-etl/internal/observability"
	"github.com/couchcryptid/covid-report-etl/internal/pipeline"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	overlay, err := config.LoadAliases(cfg.AliasesFile)
	if err != nil {
		logger.Error("failed to load region aliases", "error", err)
		os.Exit(1)
	}
	canon, err := domain.NewCanonicalizer(overlay)
	if err != nil {
		logger.Error("invalid region aliases", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional sinks (feature-flagged via KAFKA_ENABLED / STORE_DRIVER).
	var sinks []pipeline.ResultSink
	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg, logger)
		sinks = append(sinks, publisher)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka sink disabled")
	}

	var store *sqlstore.Store
	if cfg.StoreDriver != "" {
		store, err = sqlstore.Open(ctx, cfg.StoreDriver, cfg.StoreDSN, logger)
		if err != nil {
			logger.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
			os.Exit(1)
		}
		if err := store.Migrate(ctx); err != nil {
			logger.Error("failed to migrate store", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, store)
		logger.Info("sql sink enabled", "driver", cfg.StoreDriver)
	}

	source := csvfile.NewSource(cfg.DataDir, logger)
	assembler := pipeline.NewAssembler(canon, logger)

	p := pipeline.New(source, assembler, logger, metrics, cfg.IngestInterval, pipeline.WithSinks(sinks...))

	queries := api.NewHandler(p, api.Options{
		Window:    cfg.RollingWindow,
		TopN:      cfg.TopN,
		CacheSize: cfg.APICacheSize,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger, queries)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ingestion loop.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("store close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
