package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"

	"hearthside/pkg/bus"
	"hearthside/pkg/db"
	gos3 "hearthside/pkg/s3"
	"hearthside/pkg/telemetry"
	"hearthside/services/api"
)

const serviceName = "hearthd"

// Config holds runtime configuration for the answer engine service.
type Config struct {
	Addr              string        `env:"ADDR,default=:8080"`
	DBDSN             string        `env:"DB_DSN,required"`
	NATSURL           string        `env:"NATS_URL"`
	MediaBucket       string        `env:"S3_BUCKET"`
	APIBase           string        `env:"API_BASE_URL"`
	OTLPEndpoint      string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AllowedOrigins    []string      `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
	ReminderInterval  time.Duration `env:"REMINDER_INTERVAL,default=24h"`
	ManualRemindLimit int           `env:"MANUAL_REMIND_LIMIT,default=5"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
		Timestamp().Str("service", serviceName).Logger()

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	// Tracing is optional; without an OTLP endpoint requests still get a
	// structured log line from the router middleware.
	var requestMiddleware func(http.Handler) http.Handler
	if cfg.OTLPEndpoint != "" {
		shutdownTelemetry, middleware, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("init telemetry")
		}
		requestMiddleware = middleware
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("shutdown telemetry")
			}
		}()
	}

	pool, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate database")
	}

	orm, err := db.ConnectORM(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect orm")
	}
	defer func() {
		if err := db.CloseORM(orm); err != nil {
			logger.Error().Err(err).Msg("close orm")
		}
	}()

	s3Client, err := gos3.NewClientFromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("s3 client")
	}

	var eventBus *bus.Bus
	if cfg.NATSURL != "" {
		eventBus, err = bus.New(cfg.NATSURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect nats")
		}
		defer eventBus.Close()
	} else {
		logger.Warn().Msg("NATS_URL not set, notification events disabled")
	}

	app, err := api.New(&api.Store{DB: pool, ORM: orm, S3: s3Client, Bus: eventBus}, api.Config{
		APIBase:           cfg.APIBase,
		MediaBucket:       cfg.MediaBucket,
		AllowedOrigins:    cfg.AllowedOrigins,
		ReminderInterval:  cfg.ReminderInterval,
		ManualRemindLimit: cfg.ManualRemindLimit,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init api")
	}

	handler, err := app.Routes()
	if err != nil {
		logger.Fatal().Err(err).Msg("build router")
	}
	if requestMiddleware != nil {
		handler = requestMiddleware(handler)
	}

	go app.Sweeper().Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("starting hearthd")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
}
