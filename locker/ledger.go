package locker

import (
	"fmt"
	"slices"
)

// Entry is one (asset type, balance) pair of a ledger. A reachable entry
// always carries a strictly positive balance: draining an entry removes it
// instead of retaining it at zero.
type Entry struct {
	Asset   string `json:"asset"`
	Balance uint64 `json:"balance"`
}

// Ledger is the per-owner record of custodial balances. Entries keep
// their insertion order for as long as they live; asset identifiers are
// pairwise distinct. Sequence is the replay-guard counter, advanced by
// exactly one per accepted batch operation. CapacityVersion is an opaque
// storage-size tag owned by the provisioning collaborator; the core
// persists it untouched.
type Ledger struct {
	Owner           string  `json:"owner"`
	Entries         []Entry `json:"entries"`
	Sequence        uint64  `json:"sequence"`
	CapacityVersion uint64  `json:"capacityVersion"`
}

// Config is the process-wide admin record. While Frozen is true no
// ledger-mutating operation may execute; that gate is enforced outside
// the core, which assumes the check already passed.
type Config struct {
	Admin  string `json:"admin"`
	Frozen bool   `json:"frozen"`
}

// NewLedger returns an empty ledger for owner with sequence zero.
func NewLedger(owner string) *Ledger {
	return &Ledger{Owner: owner}
}

// find returns the index of the entry tracking asset.
func (l *Ledger) find(asset string) (int, bool) {
	for i := range l.Entries {
		if l.Entries[i].Asset == asset {
			return i, true
		}
	}

	return 0, false
}

// Balance returns the tracked balance for asset. The boolean is false
// when the ledger holds no entry for it.
func (l *Ledger) Balance(asset string) (uint64, bool) {
	if i, ok := l.find(asset); ok {
		return l.Entries[i].Balance, true
	}

	return 0, false
}

// setBalance upserts the entry for asset. A zero balance removes the
// entry; a nonzero balance updates it in place or appends a new entry at
// the end, so surviving entries never move relative to each other.
func (l *Ledger) setBalance(asset string, balance uint64) {
	i, ok := l.find(asset)

	switch {
	case !ok && balance == 0:
	case !ok:
		l.Entries = append(l.Entries, Entry{Asset: asset, Balance: balance})
	case balance == 0:
		l.Entries = append(l.Entries[:i], l.Entries[i+1:]...)
	default:
		l.Entries[i].Balance = balance
	}
}

// Clone returns a deep copy. Engines mutate clones so that a failed
// operation leaves the stored ledger untouched.
func (l *Ledger) Clone() *Ledger {
	dup := *l
	dup.Entries = slices.Clone(l.Entries)

	return &dup
}

// Validate checks the structural invariants: positive balances and
// pairwise-distinct asset identifiers.
func (l *Ledger) Validate() error {
	seen := make(map[string]struct{}, len(l.Entries))

	for _, e := range l.Entries {
		if e.Balance == 0 {
			return fmt.Errorf("entry %s has zero balance", e.Asset)
		}

		if _, dup := seen[e.Asset]; dup {
			return fmt.Errorf("entry %s appears more than once", e.Asset)
		}

		seen[e.Asset] = struct{}{}
	}

	return nil
}

// addBalance is the overflow-checked balance addition used by the deposit
// engine.
func addBalance(balance, amount uint64) (uint64, error) {
	sum := balance + amount
	if sum < balance {
		return 0, fmt.Errorf("add %d to balance %d: %w", amount, balance, ErrAmountOverflow)
	}

	return sum, nil
}
