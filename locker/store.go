package locker

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory LedgerStore and ConfigStore. It backs tests
// and the embedded mode of casierd when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	ledgers map[string]*Ledger
	config  *Config
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ledgers: make(map[string]*Ledger)}
}

// GetLedger implements LedgerStore.
func (s *MemoryStore) GetLedger(_ context.Context, owner string) (*Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ledger, ok := s.ledgers[owner]
	if !ok {
		return nil, fmt.Errorf("owner %s: %w", owner, ErrLedgerNotFound)
	}

	return ledger.Clone(), nil
}

// CreateLedger implements LedgerStore.
func (s *MemoryStore) CreateLedger(_ context.Context, ledger *Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ledgers[ledger.Owner]; ok {
		return fmt.Errorf("ledger %s: %w", ledger.Owner, ErrAlreadyInitialized)
	}

	s.ledgers[ledger.Owner] = ledger.Clone()

	return nil
}

// SaveLedger implements LedgerStore.
func (s *MemoryStore) SaveLedger(_ context.Context, ledger *Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ledgers[ledger.Owner]; !ok {
		return fmt.Errorf("ledger %s: %w", ledger.Owner, ErrLedgerNotFound)
	}

	s.ledgers[ledger.Owner] = ledger.Clone()

	return nil
}

// GetConfig implements ConfigStore.
func (s *MemoryStore) GetConfig(context.Context) (*Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.config == nil {
		return nil, ErrConfigNotFound
	}

	cfg := *s.config

	return &cfg, nil
}

// CreateConfig implements ConfigStore.
func (s *MemoryStore) CreateConfig(_ context.Context, cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config != nil {
		return fmt.Errorf("config: %w", ErrAlreadyInitialized)
	}

	dup := *cfg
	s.config = &dup

	return nil
}

// SetFrozen flips the freeze flag. Operator hook for the external gate;
// no ledger operation touches it.
func (s *MemoryStore) SetFrozen(frozen bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config == nil {
		return ErrConfigNotFound
	}

	s.config.Frozen = frozen

	return nil
}
