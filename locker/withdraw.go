package locker

import (
	"context"
	"fmt"

	"github.com/Aurory-Game/ocil/custody"
)

// WithdrawRequest carries one single-asset withdrawal. Vault designates
// the source custodial account; when it equals Escalation the withdrawal
// is escalation-sourced, which is the only case allowed to create ledger
// entries for assets not previously tracked.
type WithdrawRequest struct {
	Asset                string
	Amount               uint64
	ExpectedPriorBalance uint64

	// FinalBalance is the balance the caller wants the ledger entry left
	// at; zero removes the entry. Taken at face value (see
	// ClassifyWithdrawal).
	FinalBalance uint64

	// Principal is the requesting identity. It receives the withdrawn
	// value in Destination and pays for its lazy provisioning.
	Principal   string
	Destination custody.AccountRef

	Vault custody.AccountRef

	// VaultBeneficiary receives the residual storage resources when the
	// emptied vault is closed.
	VaultBeneficiary string

	Escalation custody.AccountRef

	Record *custody.TransferRecord
}

// Withdraw applies a single-asset withdrawal: it checks the source holds
// enough, updates the ledger entry under the prior-balance guard,
// classifies the withdrawal, moves the value to the principal's account,
// sweeps the residual into escalation for *Burn classifications, and
// closes the vault once it is drained to zero.
func Withdraw(ctx context.Context, bank custody.Bank, accounts custody.Provisioner, ledger *Ledger, req WithdrawRequest) error {
	sourceIsEscalation := req.Vault == req.Escalation

	source, err := lookupSource(ctx, bank, req.Vault, req.Asset)
	if err != nil {
		return err
	}

	if source.Amount < req.Amount {
		return fmt.Errorf("withdraw %d of %s from %s holding %d: %w",
			req.Amount, req.Asset, req.Vault.Key(), source.Amount, ErrInsufficientFunds)
	}

	if err := applyWithdrawToLedger(ledger, req, sourceIsEscalation); err != nil {
		return err
	}

	class := ClassifyWithdrawal(ledger.Owner, req.Principal, req.FinalBalance, source.Amount, req.Amount)

	if err := accounts.Ensure(ctx, req.Destination, req.Principal, req.Principal); err != nil {
		return fmt.Errorf("withdraw %s: provision destination %s: %w", req.Asset, req.Destination.Key(), err)
	}

	if err := validateReceiving(ctx, bank, req.Destination, req.Asset, req.Principal); err != nil {
		return err
	}

	if err := bank.Transfer(ctx, req.Vault, req.Destination, req.Amount, req.Record); err != nil {
		return fmt.Errorf("withdraw %s: move %d from %s to %s: %w (%w)",
			req.Asset, req.Amount, req.Vault.Key(), req.Destination.Key(), ErrTransferFailed, err)
	}

	if class.RequiresEscalation() && !sourceIsEscalation {
		if err := escalateResidue(ctx, bank, accounts, req, source.Amount); err != nil {
			return err
		}
	}

	return closeDrainedVault(ctx, bank, req, sourceIsEscalation)
}

// lookupSource reads the source custodial account and validates its
// identity: it must exist, custody its own value, and be bound to the
// withdrawn asset.
func lookupSource(ctx context.Context, bank custody.Bank, vault custody.AccountRef, asset string) (custody.Account, error) {
	acct, ok, err := bank.Lookup(ctx, vault)
	if err != nil {
		return custody.Account{}, fmt.Errorf("lookup source %s: %w", vault.Key(), err)
	}

	if !ok || !acct.SelfOwned() || acct.Asset != asset {
		return custody.Account{}, fmt.Errorf("source %s for asset %s: %w", vault.Key(), asset, ErrInvalidVault)
	}

	return acct, nil
}

// applyWithdrawToLedger mutates the entry under the prior-balance guard.
// A zero final balance removes the entry; an untracked asset may only be
// introduced by an escalation-sourced withdrawal.
func applyWithdrawToLedger(ledger *Ledger, req WithdrawRequest, sourceIsEscalation bool) error {
	balance, tracked := ledger.Balance(req.Asset)

	if tracked {
		if balance != req.ExpectedPriorBalance {
			return fmt.Errorf("withdraw %s: tracked balance %d, expected prior %d: %w",
				req.Asset, balance, req.ExpectedPriorBalance, ErrPriorBalanceMismatch)
		}

		ledger.setBalance(req.Asset, req.FinalBalance)

		return nil
	}

	if req.ExpectedPriorBalance != 0 {
		return fmt.Errorf("withdraw %s: asset untracked, expected prior %d: %w",
			req.Asset, req.ExpectedPriorBalance, ErrPriorBalanceMismatch)
	}

	if !sourceIsEscalation {
		return fmt.Errorf("withdraw %s from vault %s: %w", req.Asset, req.Vault.Key(), ErrWithdrawUntrackedAsset)
	}

	ledger.setBalance(req.Asset, req.FinalBalance)

	return nil
}

// validateReceiving checks the principal's receiving account: right asset,
// controlled by the principal.
func validateReceiving(ctx context.Context, bank custody.Bank, dest custody.AccountRef, asset, principal string) error {
	acct, ok, err := bank.Lookup(ctx, dest)
	if err != nil {
		return fmt.Errorf("lookup receiving account %s: %w", dest.Key(), err)
	}

	if !ok || acct.Asset != asset || acct.Authority != principal {
		return fmt.Errorf("receiving account %s for asset %s: %w", dest.Key(), asset, ErrInvalidVault)
	}

	return nil
}

// escalateResidue relocates the residual balance (sourceAmount minus the
// declared final balance) from the vault into the escalation account,
// provisioning it on demand with the principal as payer.
func escalateResidue(ctx context.Context, bank custody.Bank, accounts custody.Provisioner, req WithdrawRequest, sourceAmount uint64) error {
	if err := accounts.Ensure(ctx, req.Escalation, "", req.Principal); err != nil {
		return fmt.Errorf("withdraw %s: provision escalation %s: %w", req.Asset, req.Escalation.Key(), err)
	}

	var residue uint64
	if sourceAmount > req.FinalBalance {
		residue = sourceAmount - req.FinalBalance
	}

	if residue == 0 {
		return nil
	}

	if err := bank.Transfer(ctx, req.Vault, req.Escalation, residue, nil); err != nil {
		return fmt.Errorf("escalate %d of %s from %s: %w (%w)",
			residue, req.Asset, req.Vault.Key(), ErrTransferFailed, err)
	}

	return nil
}

// closeDrainedVault re-reads the source after all movements and closes it
// when it reached exactly zero, unless the source is the escalation
// account, which is shared across owners and never closed here.
func closeDrainedVault(ctx context.Context, bank custody.Bank, req WithdrawRequest, sourceIsEscalation bool) error {
	if sourceIsEscalation {
		return nil
	}

	acct, ok, err := bank.Lookup(ctx, req.Vault)
	if err != nil {
		return fmt.Errorf("re-read source %s: %w", req.Vault.Key(), err)
	}

	if !ok || acct.Amount != 0 {
		return nil
	}

	if err := bank.Close(ctx, req.Vault, req.VaultBeneficiary); err != nil {
		return fmt.Errorf("close drained vault %s: %w", req.Vault.Key(), err)
	}

	return nil
}
