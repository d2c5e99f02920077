// Command api runs the BuyTime backend.
//
//	api           serve the HTTP API (default)
//	api serve     same as above
//	api migrate   apply database migrations and exit
//
// @title                       BuyTime API
// @version                     1.0
// @description                 Balance and reward ledger with identity provider sync.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/buytime/backend/internal/api"
	"github.com/buytime/backend/internal/api/middleware"
	"github.com/buytime/backend/internal/core/domain"
	"github.com/buytime/backend/internal/core/ports"
	"github.com/buytime/backend/internal/core/service"
	"github.com/buytime/backend/internal/infrastructure/config"
	mongodb "github.com/buytime/backend/internal/infrastructure/db/mongo"
	"github.com/buytime/backend/internal/infrastructure/db/postgres"
	redisdb "github.com/buytime/backend/internal/infrastructure/db/redis"
	"github.com/buytime/backend/internal/infrastructure/http/handlers"
	"github.com/buytime/backend/internal/infrastructure/queue"
	"github.com/buytime/backend/internal/infrastructure/webhook"
	"github.com/buytime/backend/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// command is the startup mode selected on the command line.
type command string

const (
	commandServe   command = "serve"
	commandMigrate command = "migrate"
)

// parseCommand reads the subcommand. Anything unrecognised serves.
func parseCommand(args []string) command {
	if len(args) > 0 && args[0] == string(commandMigrate) {
		return commandMigrate
	}
	return commandServe
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		l := logger.New(logger.Options{Output: os.Stderr, Service: "buytime-api"})
		l.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "buytime-api",
		Env:     cfg.Env,
	})

	switch parseCommand(os.Args[1:]) {
	case commandMigrate:
		if err := postgres.RunMigrations(cfg.Postgres.URL); err != nil {
			log.Fatal().Err(err).Msg("migrations failed")
		}
		log.Info().Msg("migrations applied")
	default:
		if err := serve(ctx, cfg, log); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- Relational store ---
	if cfg.Postgres.RunMigrations {
		if err := postgres.RunMigrations(cfg.Postgres.URL); err != nil {
			return err
		}
	}
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:          cfg.Postgres.URL,
		MaxOpenConns: cfg.Postgres.MaxOpenConns,
		Timeout:      cfg.Postgres.QueryTimeout,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	store := postgres.NewStore(db, cfg.Postgres.QueryTimeout)

	health := map[string]handlers.Pinger{"postgres": store}

	// --- Webhook audit trail (optional) ---
	var audit ports.AuditSink
	var dispatcher *queue.AuditDispatcher
	if cfg.Mongo.URI != "" {
		client, mdb, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()

		if err := mongodb.EnsureIndexes(ctx, mdb); err != nil {
			log.Warn().Err(err).Msg("audit indexes not created")
		}
		dispatcher = queue.NewAuditDispatcher(cfg.Ledger.AuditWorkers, mongodb.NewAuditRepository(mdb), log)
		dispatcher.Start()
		audit = dispatcher
		health["mongodb"] = handlers.MongoPinger(mdb)
	} else {
		log.Info().Msg("MONGO_URI not set, webhook audit trail disabled")
	}

	// --- Delivery dedup (optional) ---
	var dedup ports.DeliveryDedup
	if cfg.Redis.Addr != "" {
		rdb, err := redisdb.Connect(ctx, redisdb.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()

		dedup = redisdb.NewDeliveryDedup(rdb, redisdb.DefaultDedupTTL)
		health["redis"] = handlers.RedisPinger(rdb)
	} else {
		log.Info().Msg("REDIS_ADDR not set, webhook delivery dedup disabled")
	}

	// --- Core services ---
	rewards, err := domain.NewRewardTable(cfg.Ledger.RewardMultipliers)
	if err != nil {
		return err
	}
	verifier, err := webhook.NewVerifier(cfg.Webhook.Secret, cfg.Webhook.Tolerance)
	if err != nil {
		return err
	}
	auth, err := middleware.Auth(middleware.AuthConfig{
		PublicKeyPEM: cfg.Auth.PublicKey,
		Secret:       cfg.Auth.Secret,
		Issuer:       cfg.Auth.Issuer,
	})
	if err != nil {
		return err
	}

	e := api.NewRouter(api.Deps{
		Ledger:         service.NewLedgerService(store.Balances(), rewards, log),
		Preferences:    service.NewPreferencesService(store.Preferences(), log),
		Profile:        service.NewProfileService(store.Users(), log),
		Webhooks:       service.NewWebhookService(store.Users(), verifier, dedup, audit, log),
		Auth:           auth,
		Health:         health,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		Log:            log,
	})

	// --- Serve until signalled ---
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if dispatcher != nil {
		if err := dispatcher.Close(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("audit records lost on shutdown")
		}
	}
	return nil
}
