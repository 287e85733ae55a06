// Package main provides the entrypoint for the SafeTrail API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/safetrail/safetrail/internal/alert"
	"github.com/safetrail/safetrail/internal/api"
	"github.com/safetrail/safetrail/internal/api/handler"
	"github.com/safetrail/safetrail/internal/api/middleware"
	"github.com/safetrail/safetrail/internal/auth"
	"github.com/safetrail/safetrail/internal/database"
	"github.com/safetrail/safetrail/internal/detection"
	"github.com/safetrail/safetrail/internal/geofence"
	"github.com/safetrail/safetrail/internal/monitor"
	"github.com/safetrail/safetrail/internal/notify"
	"github.com/safetrail/safetrail/internal/profile"
	"github.com/safetrail/safetrail/internal/route"
	"github.com/safetrail/safetrail/internal/sos"
	"github.com/safetrail/safetrail/internal/telemetry"
	"github.com/safetrail/safetrail/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "safetrail-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting SafeTrail API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database when configured; without one, the server runs
	// on in-memory stores, which suits local development and testing.
	var pool *pgxpool.Pool
	readinessChecks := map[string]handler.ReadinessCheck{}
	if os.Getenv("DB_HOST") != "" {
		dbConfig := database.ConfigFromEnv()
		pool, err = database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		readinessChecks["database"] = pool.Ping
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")
	} else {
		log.Warn().Msg("DB_HOST not set - using in-memory stores")
	}

	// Token validation for the authority console
	signingKey := os.Getenv("JWT_SIGNING_KEY")
	if signingKey == "" {
		signingKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	validator := auth.NewValidator(auth.Config{
		SigningKey: signingKey,
		Issuer:     os.Getenv("JWT_ISSUER"),
		Audience:   os.Getenv("JWT_AUDIENCE"),
	})

	// Zone and alert persistence
	var zoneRepo geofence.Repository
	var alertRepo alert.Repository
	if pool != nil {
		zoneRepo = geofence.NewPostgresRepository(pool)
		alertRepo = alert.NewPostgresRepository(pool)
	} else {
		zoneRepo = geofence.NewInMemoryRepository()
		alertRepo = alert.NewInMemoryRepository()
	}
	zones := geofence.NewService(zoneRepo)
	routes := route.NewRegistry()
	log.Info().Msg("zone and route services initialized")

	// Notification sinks: always log, webhook and pubsub when configured
	sinks := []notify.Sink{notify.NewLogSink(log)}

	var webhookSink *notify.WebhookSink
	if url := os.Getenv("NOTIFY_WEBHOOK_URL"); url != "" {
		deliveryMetrics, metricsErr := notify.NewDeliveryMetrics()
		if metricsErr != nil {
			log.Fatal().Err(metricsErr).Msg("failed to initialize delivery metrics")
		}
		webhookSink = notify.NewWebhookSink(notify.WebhookConfig{URL: url}, log).
			WithMetrics(deliveryMetrics)
		sinks = append(sinks, webhookSink)
		log.Info().Str("url", url).Msg("webhook notifications enabled")
	}

	var pubsubSink *notify.PubSubSink
	if projectID := os.Getenv("PUBSUB_PROJECT_ID"); projectID != "" {
		topic := os.Getenv("PUBSUB_TOPIC")
		if topic == "" {
			topic = "safetrail-events"
		}
		pubsubSink, err = notify.NewPubSubSink(ctx, notify.PubSubConfig{
			ProjectID: projectID,
			TopicName: topic,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub sink")
		}
		defer pubsubSink.Close()
		sinks = append(sinks, pubsubSink)
		log.Info().Str("topic", topic).Msg("pubsub notifications enabled")
	}

	notifier := notify.New(sinks...)

	// Tracking, detection and alerting, with thresholds tunable per
	// deployment region
	profiles := profile.NewStore(profile.Config{
		Smoothing: envFloat("EWMA_SMOOTHING", 0),
	})
	engine := detection.NewEngine(detection.EngineConfig{
		Config: detection.Config{
			RouteDeviationMeters: envFloat("ROUTE_DEVIATION_THRESHOLD_M", 0),
			InactivityWarn:       envDuration("INACTIVITY_WARN", 0),
			InactivityEscalate:   envDuration("INACTIVITY_ESCALATE", 0),
			SpeedRatio:           envFloat("SPEED_RATIO", 0),
			SpeedEscalateRatio:   envFloat("SPEED_ESCALATE_RATIO", 0),
			CommLossGrace:        envDuration("COMM_LOSS_GRACE", 0),
		},
		Zones:  zones,
		Routes: routes,
		Logger: log,
	})
	alerts := alert.NewService(alert.Config{
		SuppressionWindow: envDuration("ALERT_SUPPRESSION_WINDOW", 0),
	}, alertRepo, notifier, log)
	mon := monitor.NewService(profiles, engine, alerts, log)
	log.Info().Msg("monitoring pipeline initialized")

	// Time-driven detection runs in process against the live profile
	// store, so inactivity and communication loss surface even when a
	// tourist stops sending samples.
	sweepCfg := worker.DefaultSweepConfig()
	sweepCfg.Interval = envDuration("SWEEP_INTERVAL", sweepCfg.Interval)
	if raw := os.Getenv("SWEEP_CONCURRENCY"); raw != "" {
		if n, parseErr := strconv.Atoi(raw); parseErr == nil {
			sweepCfg.Concurrency = n
		}
	}
	sweepJob := worker.NewSweepJob(worker.SweepJobConfig{
		Config:  sweepCfg,
		Logger:  log,
		Monitor: mon,
	})
	sweepCtx, stopSweeps := context.WithCancel(ctx)
	defer stopSweeps()
	go sweepJob.Start(sweepCtx)
	log.Info().Dur("interval", sweepCfg.Interval).Msg("detection sweep loop started")

	// Panic button
	sosCountdown := envDuration("SOS_COUNTDOWN", sos.DefaultCountdown)
	controller := sos.NewController(sos.Config{Countdown: sosCountdown}, profiles, notifier, log)
	log.Info().Dur("countdown", sosCountdown).Msg("sos controller initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:          Version,
		BuildTime:        BuildTime,
		Logger:           log,
		ServiceName:      serviceName,
		Metrics:          metrics,
		TokenValidator:   validator,
		Monitor:          mon,
		Profiles:         profiles,
		Alerts:           alerts,
		Zones:            zones,
		Routes:           routes,
		SOS:              controller,
		SOSCountdownSecs: sosCountdown.Seconds(),
		ReadinessChecks:  readinessChecks,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	stopSweeps()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	// Let in-flight webhook deliveries drain.
	if webhookSink != nil {
		webhookSink.Flush()
	}

	log.Info().Msg("server stopped")
}

// envDuration reads a duration from the environment, falling back to
// def when unset or malformed. Zero values defer to package defaults.
func envDuration(key string, def time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if raw := os.Getenv(key); raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return def
}
