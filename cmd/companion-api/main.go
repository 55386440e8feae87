// @title           Companion API
// @version         1.0
// @description     Accounts, onboarding and metered chat for the companion app.
// @BasePath        /
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

//go:generate swag init -g cmd/companion-api/main.go -d ../.. -o ../../docs

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	_ "github.com/aicompanion/companion/docs"
	"github.com/aicompanion/companion/internal/api"
	"github.com/aicompanion/companion/internal/core/ports"
	"github.com/aicompanion/companion/internal/core/service"
	"github.com/aicompanion/companion/internal/infrastructure/config"
	mongodb "github.com/aicompanion/companion/internal/infrastructure/db/mongo"
	redisdb "github.com/aicompanion/companion/internal/infrastructure/db/redis"
	"github.com/aicompanion/companion/internal/infrastructure/db/sqlite"
	"github.com/aicompanion/companion/internal/infrastructure/http/handlers"
	"github.com/aicompanion/companion/internal/infrastructure/queue"
	"github.com/aicompanion/companion/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		boot := logger.New(logger.Options{})
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logger.Init(logger.ForEnv(cfg.Env, cfg.LogLevel, "companion-api"))

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("companion-api stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	checks := []handlers.Check{handlers.RedisCheck(rdb)}

	var (
		accounts ports.AccountRepository
		audits   ports.AuditRepository
	)
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		accounts = sqlite.NewAccountRepository(db)
		audits = sqlite.NewAuditRepository(db)
		checks = append(checks, handlers.SQLCheck("sqlite", db))
	default:
		client, db, err := mongodb.Connect(ctx, mongodb.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			AppName:  "companion-api",
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := mongodb.Disconnect(client); err != nil {
				log.Warn().Err(err).Msg("mongo disconnect")
			}
		}()
		repo := mongodb.NewAccountRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return err
		}
		accounts = repo
		audits = mongodb.NewAuditRepository(db)
		checks = append(checks, handlers.MongoCheck(db))
	}
	log.Info().Str("driver", cfg.StoreDriver).Msg("account store ready")

	// Audit workers outlive the request context so queued events drain
	// after the listener closes.
	workerCtx, cancelWorkers := context.WithCancel(context.WithoutCancel(ctx))
	dispatcher := queue.NewDispatcher(cfg.AuditWorkers, service.NewAuditService(audits, log), log)
	dispatcher.Start(workerCtx)
	defer func() {
		cancelWorkers()
		dispatcher.Wait()
	}()

	svc := api.Services{
		Auth:       service.NewAuthService(accounts, redisdb.NewTokenRevoker(rdb), dispatcher, cfg.JWTSecret, cfg.TokenTTL, log),
		Chat:       service.NewChatService(redisdb.NewChatQuota(rdb, cfg.AnonymousChatWindow), cfg.AnonymousChatQuota, log),
		Onboarding: service.NewOnboardingService(accounts, dispatcher, log),
	}
	e := api.NewRouter(svc, api.Options{
		AuthRateLimitRPM: cfg.AuthRateLimitRPM,
		HealthChecks:     checks,
	}, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
