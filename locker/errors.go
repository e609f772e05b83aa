package locker

import "errors"

// Error taxonomy. Every failure is terminal and synchronous: the core
// never retries, and any error aborts the enclosing operation including
// items already processed within the same batch. Callers resubmit with
// refreshed expectation fields if they want to retry.
var (
	// ErrPriorBalanceMismatch is the optimistic-concurrency violation on
	// a balance field: the caller's expected prior balance no longer
	// matches the ledger entry (or an entry unexpectedly exists/is
	// absent).
	ErrPriorBalanceMismatch = errors.New("prior balance mismatch")

	// ErrSequenceMismatch is the replay-guard violation: the batch's
	// expected sequence number does not match the ledger's counter.
	ErrSequenceMismatch = errors.New("sequence mismatch")

	// ErrInsufficientFunds is returned when the source custodial account
	// holds less than the withdrawal amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidDestination is returned when a deposit destination fails
	// its ownership or asset-type checks.
	ErrInvalidDestination = errors.New("invalid destination account")

	// ErrInvalidVault is returned when a withdrawal source or receiving
	// account fails its ownership or asset-type checks.
	ErrInvalidVault = errors.New("invalid vault account")

	// ErrWithdrawUntrackedAsset is returned when a vault-sourced
	// withdrawal references an asset the ledger does not track. Only
	// escalation-sourced withdrawals may create entries for untracked
	// assets.
	ErrWithdrawUntrackedAsset = errors.New("withdraw for asset not tracked by ledger")

	// ErrMalformedBatchLayout is returned when a batch's flat resource
	// list is inconsistent with its declared item and extended-item
	// counts.
	ErrMalformedBatchLayout = errors.New("malformed batch layout")

	// ErrTransferFailed wraps a failure reported by the transfer
	// executor collaborator.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrAmountOverflow is returned when a balance mutation would
	// overflow uint64.
	ErrAmountOverflow = errors.New("amount overflow")

	// ErrLedgerNotFound is returned by ledger stores for unknown owners.
	ErrLedgerNotFound = errors.New("ledger not found")

	// ErrConfigNotFound is returned when the admin config has not been
	// initialized.
	ErrConfigNotFound = errors.New("config not initialized")

	// ErrAlreadyInitialized is returned when init_config or init_locker
	// targets a record that already exists.
	ErrAlreadyInitialized = errors.New("already initialized")
)
