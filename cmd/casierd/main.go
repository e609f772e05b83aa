// casierd runs the custodial ledger service: HTTP API in front of the
// locker core, with pluggable persistence, an optional freeze-gate cache
// and an optional event broker.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/Aurory-Game/ocil/api"
	"github.com/Aurory-Game/ocil/custody/memory"
	"github.com/Aurory-Game/ocil/events"
	"github.com/Aurory-Game/ocil/gate"
	"github.com/Aurory-Game/ocil/locker"
	"github.com/Aurory-Game/ocil/log"
	"github.com/Aurory-Game/ocil/postgres"
)

const shutdownTimeout = 10 * time.Second

type config struct {
	Environment string
	LogLevel    string
	Address     string

	Store              string
	PostgresPrimaryDSN string
	PostgresReplicaDSN string
	PostgresDBName     string
	MigrationsPath     string

	RedisAddress   string
	RedisPassword  string
	FreezeCacheTTL time.Duration

	RabbitURI        string
	RabbitExchange   string
	RabbitRoutingKey string
}

func loadConfig() config {
	return config{
		Environment:        envOr("ENV_NAME", "local"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		Address:            envOr("SERVER_ADDRESS", ":3000"),
		Store:              envOr("LEDGER_STORE", "memory"),
		PostgresPrimaryDSN: os.Getenv("DB_PRIMARY_DSN"),
		PostgresReplicaDSN: os.Getenv("DB_REPLICA_DSN"),
		PostgresDBName:     envOr("DB_NAME", "casier"),
		MigrationsPath:     envOr("DB_MIGRATIONS_PATH", "postgres/migrations"),
		RedisAddress:       os.Getenv("REDIS_ADDRESS"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		FreezeCacheTTL:     envDuration("FREEZE_CACHE_TTL_SECONDS", 5*time.Second),
		RabbitURI:          os.Getenv("RABBITMQ_URI"),
		RabbitExchange:     envOr("RABBITMQ_EXCHANGE", "casier.events"),
		RabbitRoutingKey:   envOr("RABBITMQ_ROUTING_KEY", "locker"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		return fallback
	}

	return time.Duration(seconds) * time.Second
}

func main() {
	cfg := loadConfig()

	logger, _, err := log.NewZap(log.Config{
		Environment:     log.Environment(cfg.Environment),
		Level:           cfg.LogLevel,
		OTelLibraryName: "github.com/Aurory-Game/ocil",
	})
	if err != nil {
		panic(err)
	}

	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ledgers, configs, closeStore, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Errorf("store setup: %v", err)
		os.Exit(1)
	}

	defer closeStore()

	publisher, closePublisher, err := buildPublisher(cfg, logger)
	if err != nil {
		logger.Errorf("publisher setup: %v", err)
		os.Exit(1)
	}

	defer closePublisher()

	// The in-memory bank stands in for the external custody layer until a
	// real settlement adapter is configured.
	bank := memory.NewBank()
	service := locker.NewService(ledgers, configs, bank, bank, publisher, logger)

	freezeGate := gate.New(configs, buildRedis(cfg), cfg.FreezeCacheTTL, logger)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "casierd",
	})
	api.NewHandler(service, freezeGate, logger).Register(app)

	go func() {
		logger.Infof("listening on %s", cfg.Address)

		if err := app.Listen(cfg.Address); err != nil {
			logger.Errorf("http server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// buildStores selects the persistence backend. The returned closer is
// always safe to call.
func buildStores(ctx context.Context, cfg config, logger log.Logger) (locker.LedgerStore, locker.ConfigStore, func(), error) {
	if cfg.Store != "postgres" {
		store := locker.NewMemoryStore()

		return store, store, func() {}, nil
	}

	conn := &postgres.PostgresConnection{
		ConnectionStringPrimary: cfg.PostgresPrimaryDSN,
		ConnectionStringReplica: cfg.PostgresReplicaDSN,
		PrimaryDBName:           cfg.PostgresDBName,
		Component:               "casierd",
		MigrationsPath:          cfg.MigrationsPath,
		Logger:                  logger,
	}

	if err := conn.Connect(ctx); err != nil {
		return nil, nil, func() {}, err
	}

	closer := func() {
		if err := conn.Close(); err != nil {
			logger.Warnf("close postgres: %v", err)
		}
	}

	return postgres.NewLedgerRepository(conn), postgres.NewConfigRepository(conn), closer, nil
}

func buildPublisher(cfg config, logger log.Logger) (events.Publisher, func(), error) {
	if cfg.RabbitURI == "" {
		logger.Info("no broker configured, events disabled")

		return events.NopPublisher{}, func() {}, nil
	}

	conn, err := amqp.Dial(cfg.RabbitURI)
	if err != nil {
		return nil, func() {}, err
	}

	publisher, err := events.NewAMQPPublisher(conn, cfg.RabbitExchange, cfg.RabbitRoutingKey)
	if err != nil {
		_ = conn.Close()

		return nil, func() {}, err
	}

	closer := func() {
		if err := publisher.Close(); err != nil {
			logger.Warnf("close publisher: %v", err)
		}

		if err := conn.Close(); err != nil {
			logger.Warnf("close amqp connection: %v", err)
		}
	}

	return publisher, closer, nil
}

func buildRedis(cfg config) *redis.Client {
	if cfg.RedisAddress == "" {
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
	})
}
