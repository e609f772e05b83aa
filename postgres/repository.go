package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Aurory-Game/ocil/locker"
)

// LedgerRepository implements locker.LedgerStore on postgres. Entries are
// stored as an ordered JSONB array so insertion order survives the round
// trip.
type LedgerRepository struct {
	conn *PostgresConnection
}

// NewLedgerRepository binds a repository to a connection hub.
func NewLedgerRepository(conn *PostgresConnection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

// GetLedger implements locker.LedgerStore.
func (r *LedgerRepository) GetLedger(ctx context.Context, owner string) (*locker.Ledger, error) {
	db, err := r.conn.GetDB()
	if err != nil {
		return nil, err
	}

	var (
		rawEntries      []byte
		sequence        int64
		capacityVersion int64
	)

	row := db.QueryRowContext(ctx,
		`SELECT entries, sequence, capacity_version FROM lockers WHERE owner = $1`, owner)

	if err := row.Scan(&rawEntries, &sequence, &capacityVersion); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("owner %s: %w", owner, locker.ErrLedgerNotFound)
		}

		return nil, fmt.Errorf("query ledger %s: %w", owner, err)
	}

	ledger := &locker.Ledger{
		Owner:           owner,
		Sequence:        uint64(sequence),
		CapacityVersion: uint64(capacityVersion),
	}

	if err := json.Unmarshal(rawEntries, &ledger.Entries); err != nil {
		return nil, fmt.Errorf("decode entries for %s: %w", owner, err)
	}

	if err := ledger.Validate(); err != nil {
		return nil, fmt.Errorf("stored ledger %s violates invariants: %w", owner, err)
	}

	return ledger, nil
}

// CreateLedger implements locker.LedgerStore.
func (r *LedgerRepository) CreateLedger(ctx context.Context, ledger *locker.Ledger) error {
	db, err := r.conn.GetDB()
	if err != nil {
		return err
	}

	rawEntries, err := encodeEntries(ledger.Entries)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO lockers (owner, entries, sequence, capacity_version)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (owner) DO NOTHING`,
		ledger.Owner, rawEntries, int64(ledger.Sequence), int64(ledger.CapacityVersion))
	if err != nil {
		return fmt.Errorf("insert ledger %s: %w", ledger.Owner, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert ledger %s: %w", ledger.Owner, err)
	}

	if affected == 0 {
		return fmt.Errorf("ledger %s: %w", ledger.Owner, locker.ErrAlreadyInitialized)
	}

	return nil
}

// SaveLedger implements locker.LedgerStore.
func (r *LedgerRepository) SaveLedger(ctx context.Context, ledger *locker.Ledger) error {
	db, err := r.conn.GetDB()
	if err != nil {
		return err
	}

	rawEntries, err := encodeEntries(ledger.Entries)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx,
		`UPDATE lockers
		 SET entries = $2, sequence = $3, capacity_version = $4, updated_at = now()
		 WHERE owner = $1`,
		ledger.Owner, rawEntries, int64(ledger.Sequence), int64(ledger.CapacityVersion))
	if err != nil {
		return fmt.Errorf("update ledger %s: %w", ledger.Owner, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update ledger %s: %w", ledger.Owner, err)
	}

	if affected == 0 {
		return fmt.Errorf("ledger %s: %w", ledger.Owner, locker.ErrLedgerNotFound)
	}

	return nil
}

func encodeEntries(entries []locker.Entry) ([]byte, error) {
	if entries == nil {
		entries = []locker.Entry{}
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode entries: %w", err)
	}

	return raw, nil
}

// ConfigRepository implements locker.ConfigStore on postgres. The config
// lives in a single-row table.
type ConfigRepository struct {
	conn *PostgresConnection
}

// NewConfigRepository binds a repository to a connection hub.
func NewConfigRepository(conn *PostgresConnection) *ConfigRepository {
	return &ConfigRepository{conn: conn}
}

// GetConfig implements locker.ConfigStore.
func (r *ConfigRepository) GetConfig(ctx context.Context) (*locker.Config, error) {
	db, err := r.conn.GetDB()
	if err != nil {
		return nil, err
	}

	cfg := &locker.Config{}

	row := db.QueryRowContext(ctx, `SELECT admin, frozen FROM config WHERE id = 1`)
	if err := row.Scan(&cfg.Admin, &cfg.Frozen); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, locker.ErrConfigNotFound
		}

		return nil, fmt.Errorf("query config: %w", err)
	}

	return cfg, nil
}

// CreateConfig implements locker.ConfigStore.
func (r *ConfigRepository) CreateConfig(ctx context.Context, cfg *locker.Config) error {
	db, err := r.conn.GetDB()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO config (id, admin, frozen) VALUES (1, $1, $2)
		 ON CONFLICT (id) DO NOTHING`,
		cfg.Admin, cfg.Frozen)
	if err != nil {
		return fmt.Errorf("insert config: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert config: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("config: %w", locker.ErrAlreadyInitialized)
	}

	return nil
}

// SetFrozen flips the freeze flag. Operator hook for the external gate.
func (r *ConfigRepository) SetFrozen(ctx context.Context, frozen bool) error {
	db, err := r.conn.GetDB()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `UPDATE config SET frozen = $1, updated_at = now() WHERE id = 1`, frozen)
	if err != nil {
		return fmt.Errorf("update config: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update config: %w", err)
	}

	if affected == 0 {
		return locker.ErrConfigNotFound
	}

	return nil
}
