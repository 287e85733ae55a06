// Package main provides the entrypoint for the SafeTrail sweep worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/safetrail/safetrail/internal/alert"
	"github.com/safetrail/safetrail/internal/database"
	"github.com/safetrail/safetrail/internal/detection"
	"github.com/safetrail/safetrail/internal/geofence"
	"github.com/safetrail/safetrail/internal/monitor"
	"github.com/safetrail/safetrail/internal/notify"
	"github.com/safetrail/safetrail/internal/profile"
	"github.com/safetrail/safetrail/internal/route"
	"github.com/safetrail/safetrail/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "safetrail-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting SafeTrail worker")

	// Worker also exposes a health endpoint for Cloud Run
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Alert and zone state comes from the database when configured so
	// sweeps see the same alerts the API writes.
	var zoneRepo geofence.Repository = geofence.NewInMemoryRepository()
	var alertRepo alert.Repository = alert.NewInMemoryRepository()
	if os.Getenv("DB_HOST") != "" {
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		zoneRepo = geofence.NewPostgresRepository(pool)
		alertRepo = alert.NewPostgresRepository(pool)
		log.Info().Str("host", dbConfig.Host).Msg("database connected")
	} else {
		log.Warn().Msg("DB_HOST not set - using in-memory stores")
	}

	notifier := notify.New(notify.NewLogSink(log))
	zones := geofence.NewService(zoneRepo)
	routes := route.NewRegistry()
	// Profiles are fed by location_sample messages relayed over
	// Pub/Sub; without that feed sweeps have nothing to evaluate.
	profiles := profile.NewStore(profile.Config{})
	engine := detection.NewEngine(detection.EngineConfig{
		Zones:  zones,
		Routes: routes,
		Logger: log,
	})
	alerts := alert.NewService(alert.Config{}, alertRepo, notifier, log)
	mon := monitor.NewService(profiles, engine, alerts, log)

	sweepCfg := worker.DefaultSweepConfig()
	if raw := os.Getenv("SWEEP_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			sweepCfg.Interval = d
		}
	}
	if raw := os.Getenv("SWEEP_CONCURRENCY"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			sweepCfg.Concurrency = n
		}
	}

	sweepJob := worker.NewSweepJob(worker.SweepJobConfig{
		Config:  sweepCfg,
		Logger:  log,
		Monitor: mon,
	})

	// Interval sweep loop
	go sweepJob.Start(ctx)

	// Pub/Sub carries the telemetry relay and out-of-band sweep
	// triggers. Without it the worker tracks no tourists.
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	if projectID == "" {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set - no telemetry feed, sweeps will be empty")
	} else {
		subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
		if subscription == "" {
			subscription = "safetrail-sweep"
		}
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			SweepJob:         sweepJob,
			Monitor:          mon,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	// Health check server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
