// Package postgres persists ledgers and the admin config. It keeps a
// primary/replica connection pair behind a resolver and runs schema
// migrations on connect.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bxcodec/dbresolver/v2"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Aurory-Game/ocil/log"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

// ErrNotConnected is returned when the hub is used before Connect.
var ErrNotConnected = errors.New("postgres connection not established")

// PostgresConnection is a hub which deals with postgres connections.
type PostgresConnection struct {
	ConnectionStringPrimary string
	ConnectionStringReplica string
	PrimaryDBName           string
	Component               string
	MigrationsPath          string
	MaxOpenConnections      int
	MaxIdleConnections      int
	Logger                  log.Logger

	connectionDB dbresolver.DB
	connected    bool
	mu           sync.RWMutex
}

func (pc *PostgresConnection) initDefaults() {
	if pc.Logger == nil {
		pc.Logger = log.NoneLogger{}
	}

	if pc.MaxOpenConnections <= 0 {
		pc.MaxOpenConnections = defaultMaxOpenConns
	}

	if pc.MaxIdleConnections <= 0 {
		pc.MaxIdleConnections = defaultMaxIdleConns
	}

	if pc.ConnectionStringReplica == "" {
		pc.ConnectionStringReplica = pc.ConnectionStringPrimary
	}
}

// Connect establishes the primary and replica connections, runs pending
// migrations, and keeps the resolved handle for GetDB.
func (pc *PostgresConnection) Connect(ctx context.Context) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.initDefaults()

	pc.Logger.Info("Connecting to primary and replica databases...")

	primary, err := pc.open(ctx, pc.ConnectionStringPrimary)
	if err != nil {
		return fmt.Errorf("connect primary: %w", err)
	}

	replica, err := pc.open(ctx, pc.ConnectionStringReplica)
	if err != nil {
		_ = primary.Close()

		return fmt.Errorf("connect replica: %w", err)
	}

	if pc.MigrationsPath != "" {
		if err := pc.runMigrations(primary); err != nil {
			_ = primary.Close()
			_ = replica.Close()

			return fmt.Errorf("run migrations: %w", err)
		}
	}

	pc.connectionDB = dbresolver.New(
		dbresolver.WithPrimaryDBs(primary),
		dbresolver.WithReplicaDBs(replica),
		dbresolver.WithLoadBalancer(dbresolver.RoundRobinLB),
	)
	pc.connected = true

	pc.Logger.Info("Connected to postgres ✅")

	return nil
}

func (pc *PostgresConnection) open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	db.SetMaxOpenConns(pc.MaxOpenConnections)
	db.SetMaxIdleConns(pc.MaxIdleConnections)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping: %w", err)
	}

	return db, nil
}

func (pc *PostgresConnection) runMigrations(primary *sql.DB) error {
	driver, err := migratepg.WithInstance(primary, &migratepg.Config{
		DatabaseName: pc.PrimaryDBName,
	})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+pc.MigrationsPath, pc.PrimaryDBName, driver)
	if err != nil {
		return fmt.Errorf("migration source %s: %w", pc.MigrationsPath, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	pc.Logger.Infof("Migrations applied for %s", pc.PrimaryDBName)

	return nil
}

// GetDB returns the resolved database handle.
func (pc *PostgresConnection) GetDB() (dbresolver.DB, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	if !pc.connected {
		return nil, ErrNotConnected
	}

	return pc.connectionDB, nil
}

// Close releases the underlying connections.
func (pc *PostgresConnection) Close() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if !pc.connected {
		return nil
	}

	pc.connected = false

	return pc.connectionDB.Close()
}
