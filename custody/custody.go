// Package custody defines the narrow capability ports through which the
// ledger core reaches custodial holding accounts. The core never owns these
// accounts: it reads their balances and requests transfers, creations and
// closures against them, and a concrete Bank (in-memory, chain-backed, or
// otherwise) carries the requests out.
package custody

import (
	"context"
	"errors"
)

// Sentinel errors shared by Bank and Provisioner implementations.
var (
	// ErrAccountNotFound is returned when an operation references an
	// account that does not exist.
	ErrAccountNotFound = errors.New("custodial account not found")

	// ErrInsufficientBalance is returned by Transfer when the source
	// account holds less than the requested amount.
	ErrInsufficientBalance = errors.New("insufficient custodial balance")

	// ErrAccountNotEmpty is returned by Close when the account still
	// holds a balance.
	ErrAccountNotEmpty = errors.New("custodial account not empty")

	// ErrAccountExists is returned by Provisioner implementations asked
	// to create an account that is already provisioned.
	ErrAccountExists = errors.New("custodial account already exists")
)

// AccountRef identifies a custodial holding account. Primary holding
// accounts are keyed by (asset, holder); escalation accounts are keyed by
// asset alone and carry an empty Holder.
type AccountRef struct {
	Asset  string
	Holder string
}

// VaultRef returns the reference of the primary holding account for an
// (asset, owner) pair.
func VaultRef(asset, owner string) AccountRef {
	return AccountRef{Asset: asset, Holder: owner}
}

// EscalationRef returns the reference of the shared escalation account for
// an asset.
func EscalationRef(asset string) AccountRef {
	return AccountRef{Asset: asset}
}

// Key returns the canonical identity of the referenced account.
func (r AccountRef) Key() string {
	if r.Holder == "" {
		return r.Asset
	}

	return r.Asset + "/" + r.Holder
}

// IsEscalation reports whether the reference designates an asset-wide
// escalation account rather than a per-holder one.
func (r AccountRef) IsEscalation() bool {
	return r.Holder == ""
}

// Account is the read model of a custodial holding account. Authority is
// the key controlling outbound transfers; self-custodied vaults carry
// their own key as authority.
type Account struct {
	Key       string
	Authority string
	Asset     string
	Amount    uint64
}

// SelfOwned reports whether the account is its own transfer authority.
func (a Account) SelfOwned() bool {
	return a.Authority == a.Key
}

// TransferRecord carries the extra resources of a provenance-tracked
// transfer: assets of the second class require an auditable
// ownership-transfer record alongside the balance movement.
type TransferRecord struct {
	Metadata          AccountRef
	SourceRecord      AccountRef
	DestinationRecord AccountRef
	Certificate       AccountRef
}

// Bank executes balance movements between custodial accounts. Every call
// is synchronous and either fully applies or fails without effect; the
// surrounding execution environment serializes calls touching the same
// accounts.
type Bank interface {
	// Lookup returns the account behind ref. The boolean is false when
	// the account has not been provisioned.
	Lookup(ctx context.Context, ref AccountRef) (Account, bool, error)

	// Transfer moves amount from src to dst. A non-nil record requests
	// the provenance-tracked transfer path for the second asset class.
	Transfer(ctx context.Context, src, dst AccountRef, amount uint64, record *TransferRecord) error

	// Close removes an empty account, releasing its residual resources
	// to beneficiary.
	Close(ctx context.Context, ref AccountRef, beneficiary string) error
}

// Provisioner lazily creates custodial accounts. Ensure is a no-op when
// the account already exists.
type Provisioner interface {
	// Ensure creates the account behind ref if absent, charging payer
	// for the underlying storage. An empty authority provisions a
	// self-custodied account (the account is its own authority), which
	// is how vault and escalation accounts are held.
	Ensure(ctx context.Context, ref AccountRef, authority, payer string) error
}
