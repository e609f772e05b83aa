// Package memory provides an in-memory custody.Bank and custody.Provisioner.
// It backs tests, local runs and the embedded wiring of casierd when no
// external custody backend is configured.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Aurory-Game/ocil/custody"
)

type account struct {
	authority string
	asset     string
	amount    uint64
}

// AuditEntry is appended for every provenance-tracked transfer executed by
// the bank, standing in for the ownership-transfer record an external
// registry would persist.
type AuditEntry struct {
	Source      string
	Destination string
	Amount      uint64
	Metadata    string
	Certificate string
	At          time.Time
}

// Bank is an in-memory custody backend. Safe for concurrent use.
type Bank struct {
	mu       sync.RWMutex
	accounts map[string]*account
	audit    []AuditEntry
}

// NewBank returns an empty in-memory bank.
func NewBank() *Bank {
	return &Bank{accounts: make(map[string]*account)}
}

// Fund provisions the account behind ref if needed and credits amount to
// it. Test and bootstrap helper; authority follows custody.Provisioner
// semantics (empty means self-owned).
func (b *Bank) Fund(ref custody.AccountRef, authority string, amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct := b.accounts[ref.Key()]
	if acct == nil {
		acct = b.newAccount(ref, authority)
		b.accounts[ref.Key()] = acct
	}

	acct.amount += amount
}

func (b *Bank) newAccount(ref custody.AccountRef, authority string) *account {
	if authority == "" {
		authority = ref.Key()
	}

	return &account{authority: authority, asset: ref.Asset}
}

// Lookup implements custody.Bank.
func (b *Bank) Lookup(_ context.Context, ref custody.AccountRef) (custody.Account, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	acct, ok := b.accounts[ref.Key()]
	if !ok {
		return custody.Account{}, false, nil
	}

	return custody.Account{
		Key:       ref.Key(),
		Authority: acct.authority,
		Asset:     acct.asset,
		Amount:    acct.amount,
	}, true, nil
}

// Transfer implements custody.Bank.
func (b *Bank) Transfer(_ context.Context, src, dst custody.AccountRef, amount uint64, record *custody.TransferRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	from, ok := b.accounts[src.Key()]
	if !ok {
		return fmt.Errorf("transfer source %s: %w", src.Key(), custody.ErrAccountNotFound)
	}

	to, ok := b.accounts[dst.Key()]
	if !ok {
		return fmt.Errorf("transfer destination %s: %w", dst.Key(), custody.ErrAccountNotFound)
	}

	if from.amount < amount {
		return fmt.Errorf("transfer %d from %s holding %d: %w", amount, src.Key(), from.amount, custody.ErrInsufficientBalance)
	}

	from.amount -= amount
	to.amount += amount

	if record != nil {
		b.audit = append(b.audit, AuditEntry{
			Source:      src.Key(),
			Destination: dst.Key(),
			Amount:      amount,
			Metadata:    record.Metadata.Key(),
			Certificate: record.Certificate.Key(),
			At:          time.Now().UTC(),
		})
	}

	return nil
}

// Close implements custody.Bank.
func (b *Bank) Close(_ context.Context, ref custody.AccountRef, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct, ok := b.accounts[ref.Key()]
	if !ok {
		return fmt.Errorf("close %s: %w", ref.Key(), custody.ErrAccountNotFound)
	}

	if acct.amount != 0 {
		return fmt.Errorf("close %s holding %d: %w", ref.Key(), acct.amount, custody.ErrAccountNotEmpty)
	}

	delete(b.accounts, ref.Key())

	return nil
}

// Ensure implements custody.Provisioner.
func (b *Bank) Ensure(_ context.Context, ref custody.AccountRef, authority, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.accounts[ref.Key()]; ok {
		return nil
	}

	b.accounts[ref.Key()] = b.newAccount(ref, authority)

	return nil
}

// AuditTrail returns a copy of the recorded provenance entries.
func (b *Bank) AuditTrail() []AuditEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	trail := make([]AuditEntry, len(b.audit))
	copy(trail, b.audit)

	return trail
}
