package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"buzzer/internal/archive"
	"buzzer/internal/config"
	"buzzer/internal/dispatcher"
	"buzzer/internal/logging"
	"buzzer/internal/questions"
	"buzzer/internal/registry"
	"buzzer/internal/telemetry"
	"buzzer/internal/transport/rest"
	"buzzer/internal/transport/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.New(cfg.LogLevel)
	log.Info().Msg("starting buzzer server")

	ctx := context.Background()

	httpClient := &http.Client{Timeout: time.Duration(cfg.QuestionProviderTimeout) * time.Millisecond}
	source := questions.NewProvider(
		questions.NewRemoteSource(cfg.QuestionProviderBaseURL, httpClient),
		questions.NewLocalBank(),
		log,
	)

	arc := connectArchive(ctx, cfg, log)
	pub := connectTelemetry(ctx, cfg, log)

	reg := registry.New(source, log)
	disp := dispatcher.New(reg, source, arc, pub, log)

	wsHandler := ws.NewHandler(disp, log)
	router := rest.NewRouter(&rest.Container{
		Dispatcher:         disp,
		WSHandler:          wsHandler,
		Log:                log,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	for _, r := range reg.All() {
		r.Connections().CloseAll()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("stopped")
}

// connectArchive dials Mongo best-effort: an unset URI or a failed
// connection degrades to a no-op archiver rather than failing startup —
// archiving is an enrichment, not core gameplay (§4's non-goal of
// persistence-as-authority).
func connectArchive(ctx context.Context, cfg *config.Config, log zerolog.Logger) archive.Archiver {
	if cfg.MongoURI == "" {
		log.Info().Msg("MONGO_URI not set, room archive disabled")
		return archive.NoopArchiver{}
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Warn().Err(err).Msg("mongo connect failed, room archive disabled")
		return archive.NoopArchiver{}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		log.Warn().Err(err).Msg("mongo ping failed, room archive disabled")
		return archive.NoopArchiver{}
	}
	log.Info().Msg("room archive connected to mongo")
	return archive.NewMongoArchiver(client.Database(cfg.MongoDBName), log)
}

// connectTelemetry dials Redis best-effort, same degrade-to-noop policy.
func connectTelemetry(ctx context.Context, cfg *config.Config, log zerolog.Logger) telemetry.Publisher {
	if cfg.RedisURL == "" {
		log.Info().Msg("REDIS_URL not set, telemetry publisher disabled")
		return telemetry.NoopPublisher{}
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("invalid REDIS_URL, telemetry publisher disabled")
		return telemetry.NoopPublisher{}
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis ping failed, telemetry publisher disabled")
		return telemetry.NoopPublisher{}
	}
	log.Info().Msg("telemetry publisher connected to redis")
	return telemetry.NewRedisPublisher(client, log)
}
