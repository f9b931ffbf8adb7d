package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/projectsphere/identity-api/internal/api"
	mongorepo "github.com/projectsphere/identity-api/internal/infrastructure/db/mongo"
	redisinfra "github.com/projectsphere/identity-api/internal/infrastructure/db/redis"
	"github.com/projectsphere/identity-api/internal/infrastructure/queue"
	"github.com/projectsphere/identity-api/internal/pkg/config"
	"github.com/projectsphere/identity-api/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Env == "development",
		Service: "identity-api",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, db, err := mongorepo.Connect(ctx, mongorepo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	rdb, err := redisinfra.Connect(ctx, redisinfra.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer rdb.Close()

	if err := prepareStorage(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("storage preparation failed")
	}

	dispatcher := queue.NewDispatcher(0, queue.NewLogSender(log), log)
	dispatcher.Start(ctx)

	e := api.NewRouter(cfg, db, rdb, dispatcher)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting identity api")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

// prepareStorage creates indexes and seeds the permission catalog with the
// well-known administrative entries. Both steps are idempotent.
func prepareStorage(ctx context.Context, db *mongo.Database) error {
	credRepo := mongorepo.NewCredentialRepository(db)
	if err := credRepo.EnsureIndexes(ctx); err != nil {
		return err
	}
	return mongorepo.NewPermissionRepository(db).Seed(ctx)
}
