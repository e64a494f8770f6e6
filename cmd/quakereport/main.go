package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/quake-report/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quake-report/internal/adapter/kafka"
	"github.com/couchcryptid/quake-report/internal/adapter/usgs"
	"github.com/couchcryptid/quake-report/internal/config"
	"github.com/couchcryptid/quake-report/internal/loader"
	"github.com/couchcryptid/quake-report/internal/observability"
	"github.com/couchcryptid/quake-report/internal/screen"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := usgs.NewClient(cfg.FeedConnectTimeout, cfg.FeedReadTimeout, logger)
	l := loader.New(client, logger, metrics)

	opts := []screen.Option{screen.WithRefreshInterval(cfg.RefreshInterval)}

	// Record publishing is feature-flagged via KAFKA_ENABLED.
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, screen.WithPublisher(writer))
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	scr := screen.New(l, cfg.FeedURL, cfg.DisplayTimezone, logger, metrics, opts...)
	srv := httpadapter.NewServer(cfg.HTTPAddr, scr, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start refresh loop.
	go func() {
		if err := scr.Run(ctx); err != nil {
			logger.Error("screen error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Closing the screen first ends open streams so Shutdown is not held up by them.
	scr.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
