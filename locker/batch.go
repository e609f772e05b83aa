package locker

import (
	"context"
	"fmt"

	"github.com/Aurory-Game/ocil/custody"
)

// Batch resource layout: every item contributes one fixed-size chunk to
// the flat account list. A normal chunk carries the asset reference, the
// principal-side account, the vault and the escalation account. Items of
// the provenance-tracked asset class contribute four additional
// references and must appear first, contiguously, in the batch.
const (
	batchChunkSize     = 4
	extendedChunkExtra = 4
)

// BatchItem is one decoded per-item request of a batch.
type BatchItem struct {
	Asset string

	// Account is the principal-side account of the item: the depositor's
	// funding account in a deposit batch, the receiving account in a
	// withdraw batch.
	Account custody.AccountRef

	Vault      custody.AccountRef
	Escalation custody.AccountRef

	// Record is non-nil for items decoded from an extended chunk.
	Record *custody.TransferRecord
}

// DecodeBatchItems splits a flat resource list into per-item requests.
// The first extendedCount items use the extended layout. The list length
// must equal exactly
//
//	(batchChunkSize+extendedChunkExtra)*extendedCount +
//	batchChunkSize*(itemCount-extendedCount)
//
// anything else is a malformed layout.
func DecodeBatchItems(refs []custody.AccountRef, itemCount, extendedCount int) ([]BatchItem, error) {
	if itemCount < 0 || extendedCount < 0 || extendedCount > itemCount {
		return nil, fmt.Errorf("%d items, %d extended: %w", itemCount, extendedCount, ErrMalformedBatchLayout)
	}

	want := (batchChunkSize+extendedChunkExtra)*extendedCount + batchChunkSize*(itemCount-extendedCount)
	if len(refs) != want {
		return nil, fmt.Errorf("%d resources for %d items (%d extended), want %d: %w",
			len(refs), itemCount, extendedCount, want, ErrMalformedBatchLayout)
	}

	items := make([]BatchItem, 0, itemCount)
	next := 0

	for i := 0; i < itemCount; i++ {
		chunk := refs[next : next+batchChunkSize]
		item := BatchItem{
			Asset:      chunk[0].Asset,
			Account:    chunk[1],
			Vault:      chunk[2],
			Escalation: chunk[3],
		}
		next += batchChunkSize

		if i < extendedCount {
			extra := refs[next : next+extendedChunkExtra]
			item.Record = &custody.TransferRecord{
				Metadata:          extra[0],
				SourceRecord:      extra[1],
				DestinationRecord: extra[2],
				Certificate:       extra[3],
			}
			next += extendedChunkExtra
		}

		items = append(items, item)
	}

	return items, nil
}

// DepositBatchRequest applies several deposits in one guarded operation.
// Amounts and ExpectedPriorBalances run parallel to the decoded items:
// each item carries its own pair.
type DepositBatchRequest struct {
	Accounts              []custody.AccountRef
	Amounts               []uint64
	ExpectedPriorBalances []uint64
	RouteToEscalation     bool
	ExpectedSequence      uint64
	ExtendedCount         int
	Depositor             string
}

// RunDepositBatch validates the replay guard, advances the sequence once,
// and dispatches every decoded item to the deposit engine. The first item
// failure aborts the whole batch; the environment's atomicity guarantee
// discards any effects already applied.
func RunDepositBatch(ctx context.Context, bank custody.Bank, accounts custody.Provisioner, ledger *Ledger, req DepositBatchRequest) error {
	if len(req.Amounts) != len(req.ExpectedPriorBalances) {
		return fmt.Errorf("%d amounts, %d prior balances: %w",
			len(req.Amounts), len(req.ExpectedPriorBalances), ErrMalformedBatchLayout)
	}

	if err := AdvanceSequence(ledger, req.ExpectedSequence); err != nil {
		return err
	}

	items, err := DecodeBatchItems(req.Accounts, len(req.Amounts), req.ExtendedCount)
	if err != nil {
		return err
	}

	for i, item := range items {
		err := Deposit(ctx, bank, accounts, ledger, DepositRequest{
			Asset:                item.Asset,
			Amount:               req.Amounts[i],
			ExpectedPriorBalance: req.ExpectedPriorBalances[i],
			RouteToEscalation:    req.RouteToEscalation,
			Depositor:            req.Depositor,
			Source:               item.Account,
			Vault:                item.Vault,
			Escalation:           item.Escalation,
			Record:               item.Record,
		})
		if err != nil {
			return fmt.Errorf("batch item %d: %w", i, err)
		}
	}

	return nil
}

// WithdrawBatchRequest applies several withdrawals in one guarded
// operation, with per-item amount, prior-balance and final-balance
// triples.
type WithdrawBatchRequest struct {
	Accounts              []custody.AccountRef
	Amounts               []uint64
	ExpectedPriorBalances []uint64
	FinalBalances         []uint64
	ExpectedSequence      uint64
	ExtendedCount         int
	Principal             string
	VaultBeneficiary      string
}

// RunWithdrawBatch is the withdraw-side batch coordinator; semantics
// mirror RunDepositBatch.
func RunWithdrawBatch(ctx context.Context, bank custody.Bank, accounts custody.Provisioner, ledger *Ledger, req WithdrawBatchRequest) error {
	if len(req.Amounts) != len(req.ExpectedPriorBalances) || len(req.Amounts) != len(req.FinalBalances) {
		return fmt.Errorf("%d amounts, %d prior balances, %d final balances: %w",
			len(req.Amounts), len(req.ExpectedPriorBalances), len(req.FinalBalances), ErrMalformedBatchLayout)
	}

	if err := AdvanceSequence(ledger, req.ExpectedSequence); err != nil {
		return err
	}

	items, err := DecodeBatchItems(req.Accounts, len(req.Amounts), req.ExtendedCount)
	if err != nil {
		return err
	}

	for i, item := range items {
		err := Withdraw(ctx, bank, accounts, ledger, WithdrawRequest{
			Asset:                item.Asset,
			Amount:               req.Amounts[i],
			ExpectedPriorBalance: req.ExpectedPriorBalances[i],
			FinalBalance:         req.FinalBalances[i],
			Principal:            req.Principal,
			Destination:          item.Account,
			Vault:                item.Vault,
			VaultBeneficiary:     req.VaultBeneficiary,
			Escalation:           item.Escalation,
			Record:               item.Record,
		})
		if err != nil {
			return fmt.Errorf("batch item %d: %w", i, err)
		}
	}

	return nil
}

// AdvanceSequence enforces the replay guard and advances the counter by
// exactly one. Also usable standalone when no value moves but the
// replay-protection state must still progress.
func AdvanceSequence(ledger *Ledger, expectedSequence uint64) error {
	if ledger.Sequence != expectedSequence {
		return fmt.Errorf("ledger at %d, expected %d: %w", ledger.Sequence, expectedSequence, ErrSequenceMismatch)
	}

	ledger.Sequence++

	return nil
}
