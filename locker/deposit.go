package locker

import (
	"context"
	"fmt"

	"github.com/Aurory-Game/ocil/custody"
)

// DepositRequest carries one single-asset deposit. The caller states the
// balance it believes the ledger currently tracks for the asset; the
// engine rejects the request if reality has diverged.
type DepositRequest struct {
	Asset                string
	Amount               uint64
	ExpectedPriorBalance uint64

	// RouteToEscalation sends the value to the asset-wide escalation
	// account instead of the owner's vault, and sweeps any vault residue
	// along with it.
	RouteToEscalation bool

	// Depositor pays for lazily provisioned accounts and authorizes the
	// transfer out of Source.
	Depositor string
	Source    custody.AccountRef

	Vault      custody.AccountRef
	Escalation custody.AccountRef

	// Record requests the provenance-tracked transfer path for assets of
	// the second class. Nil for plain transfers.
	Record *custody.TransferRecord
}

// Deposit applies a single-asset deposit to the ledger and moves the value
// into the chosen custodial destination.
//
// The ledger entry is updated first under the prior-balance guard, then
// the destination account is provisioned and validated, then the value
// moves. When routing to escalation, any residue left in the owner's
// vault from earlier non-escalated deposits is swept into the destination
// and the emptied vault is closed, so at most one custodial location per
// (asset, owner) stays nonzero once escalation routing is in effect.
func Deposit(ctx context.Context, bank custody.Bank, accounts custody.Provisioner, ledger *Ledger, req DepositRequest) error {
	balance, tracked := ledger.Balance(req.Asset)

	if !tracked && req.ExpectedPriorBalance != 0 {
		return fmt.Errorf("deposit %s: asset untracked, expected prior %d: %w",
			req.Asset, req.ExpectedPriorBalance, ErrPriorBalanceMismatch)
	}

	if tracked && req.ExpectedPriorBalance != balance {
		return fmt.Errorf("deposit %s: tracked balance %d, expected prior %d: %w",
			req.Asset, balance, req.ExpectedPriorBalance, ErrPriorBalanceMismatch)
	}

	next, err := addBalance(balance, req.Amount)
	if err != nil {
		return fmt.Errorf("deposit %s: %w", req.Asset, err)
	}

	ledger.setBalance(req.Asset, next)

	dest := req.Vault
	if req.RouteToEscalation {
		dest = req.Escalation
	}

	if err := accounts.Ensure(ctx, dest, "", req.Depositor); err != nil {
		return fmt.Errorf("deposit %s: provision destination %s: %w", req.Asset, dest.Key(), err)
	}

	if err := validateDestination(ctx, bank, dest, req.Asset); err != nil {
		return err
	}

	if err := bank.Transfer(ctx, req.Source, dest, req.Amount, req.Record); err != nil {
		return fmt.Errorf("deposit %s: move %d from %s to %s: %w (%w)",
			req.Asset, req.Amount, req.Source.Key(), dest.Key(), ErrTransferFailed, err)
	}

	if req.RouteToEscalation {
		if err := sweepVaultResidue(ctx, bank, ledger.Owner, req.Vault, dest); err != nil {
			return err
		}
	}

	return nil
}

// validateDestination checks the destination's recorded authority and
// asset type. Vault and escalation accounts custody their own value, so a
// valid destination is self-owned and bound to the deposited asset.
func validateDestination(ctx context.Context, bank custody.Bank, dest custody.AccountRef, asset string) error {
	acct, ok, err := bank.Lookup(ctx, dest)
	if err != nil {
		return fmt.Errorf("lookup destination %s: %w", dest.Key(), err)
	}

	if !ok || !acct.SelfOwned() || acct.Asset != asset {
		return fmt.Errorf("destination %s for asset %s: %w", dest.Key(), asset, ErrInvalidDestination)
	}

	return nil
}

// sweepVaultResidue drains the owner's vault into dest and closes it, with
// the residual storage resources returning to the owner. No-op when the
// vault is absent or already empty.
func sweepVaultResidue(ctx context.Context, bank custody.Bank, owner string, vault, dest custody.AccountRef) error {
	acct, ok, err := bank.Lookup(ctx, vault)
	if err != nil {
		return fmt.Errorf("lookup vault %s: %w", vault.Key(), err)
	}

	if !ok || acct.Amount == 0 {
		return nil
	}

	if err := bank.Transfer(ctx, vault, dest, acct.Amount, nil); err != nil {
		return fmt.Errorf("sweep %d from %s to %s: %w (%w)",
			acct.Amount, vault.Key(), dest.Key(), ErrTransferFailed, err)
	}

	if err := bank.Close(ctx, vault, owner); err != nil {
		return fmt.Errorf("close swept vault %s: %w", vault.Key(), err)
	}

	return nil
}
