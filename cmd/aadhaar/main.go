package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"aadhaar/internal/amqp"
	"aadhaar/internal/cache"
	"aadhaar/internal/config"
	apphttp "aadhaar/internal/http"
	"aadhaar/internal/loader"
	"aadhaar/internal/log"
	"aadhaar/internal/metrics"
	"aadhaar/internal/pipeline"
	"aadhaar/internal/storage"
	"aadhaar/internal/telemetry"
	"aadhaar/internal/watch"
)

const serviceName = "aadhaar"

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("Trace flush failed", log.FieldError, err.Error())
		}
	}()

	p := pipeline.New(loader.New(cfg.DataDir, logger), logger)

	m := metrics.New()
	p.AddObserver(m)

	ledger, err := storage.NewLedger(cfg.LedgerDSN, cfg.LedgerRetention, logger)
	if err != nil {
		return fmt.Errorf("opening reload ledger: %w", err)
	}
	defer ledger.Close()
	p.AddObserver(ledger)

	var broker *amqp.Client
	if cfg.AMQPEnabled() {
		broker, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPReloadQueue, logger)
		if err != nil {
			// The broker is optional; the HTTP surface works without it.
			logger.Warn("AMQP unavailable, continuing without it",
				log.FieldComponent, log.ComponentAMQP,
				log.FieldError, err.Error())
		} else {
			defer broker.Close()
			p.AddObserver(broker)
		}
	}

	caches := cache.NewManager(logger)
	defer caches.Stop()

	opts := apphttp.DefaultOptions()
	opts.CORSOrigins = cfg.CORSOrigins
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Pipeline: p,
		Ledger:   ledger,
		Metrics:  m,
		Caches:   caches,
		Logger:   logger,
	}, opts)

	g, gctx := errgroup.WithContext(ctx)
	caches.StartCleanup(gctx, 5*time.Minute)

	g.Go(func() error {
		logger.Info("Starting HTTP server", "port", cfg.Port, log.FieldDirectory, cfg.DataDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	// Serve immediately; /readyz turns green once this reload lands.
	g.Go(func() error {
		p.Reload(gctx, pipeline.TriggerStartup)
		return nil
	})

	if broker != nil {
		g.Go(func() error {
			return broker.Listen(gctx, func(ctx context.Context, req *amqp.ReloadRequest) error {
				logger.InfoContext(ctx, "Reload requested over AMQP",
					log.FieldRequestID, req.RequestID,
					"requested_by", req.RequestedBy,
					"reason", req.Reason)
				p.Reload(ctx, pipeline.TriggerAMQP)
				return nil
			})
		})
	}

	if cfg.WatchInput {
		w, err := watch.New(cfg.DataDir, cfg.WatchDebounce, func(ctx context.Context) {
			p.Reload(ctx, pipeline.TriggerWatch)
		}, logger)
		if err != nil {
			logger.Warn("Input watcher disabled", log.FieldError, err.Error())
		} else if err := w.Start(gctx); err != nil {
			logger.Warn("Input watcher failed to start", log.FieldError, err.Error())
		} else {
			defer w.Stop()
		}
	}

	return g.Wait()
}
