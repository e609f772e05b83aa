package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aurory-Game/ocil/custody"
)

func TestBankFundAndLookup(t *testing.T) {
	ctx := context.Background()
	bank := NewBank()

	ref := custody.VaultRef("gold", "alice")
	bank.Fund(ref, "", 100)

	acct, ok, err := bank.Lookup(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(100), acct.Amount)
	assert.Equal(t, "gold", acct.Asset)
	assert.True(t, acct.SelfOwned())

	_, ok, err = bank.Lookup(ctx, custody.VaultRef("gold", "bob"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBankTransfer(t *testing.T) {
	ctx := context.Background()
	bank := NewBank()

	src := custody.AccountRef{Asset: "gold", Holder: "alice"}
	dst := custody.VaultRef("gold", "alice")
	bank.Fund(src, "alice", 100)
	bank.Fund(dst, "", 0)

	require.NoError(t, bank.Transfer(ctx, src, dst, 40, nil))

	from, _, _ := bank.Lookup(ctx, src)
	to, _, _ := bank.Lookup(ctx, dst)
	assert.Equal(t, uint64(60), from.Amount)
	assert.Equal(t, uint64(40), to.Amount)

	err := bank.Transfer(ctx, src, dst, 1000, nil)
	assert.ErrorIs(t, err, custody.ErrInsufficientBalance)

	err = bank.Transfer(ctx, custody.AccountRef{Asset: "gold", Holder: "ghost"}, dst, 1, nil)
	assert.ErrorIs(t, err, custody.ErrAccountNotFound)
}

func TestBankTransferRecordsProvenance(t *testing.T) {
	ctx := context.Background()
	bank := NewBank()

	src := custody.AccountRef{Asset: "nft", Holder: "alice"}
	dst := custody.VaultRef("nft", "alice")
	bank.Fund(src, "alice", 1)
	bank.Fund(dst, "", 0)

	record := &custody.TransferRecord{
		Metadata:    custody.AccountRef{Asset: "nft", Holder: "metadata"},
		Certificate: custody.AccountRef{Asset: "nft", Holder: "certificate"},
	}
	require.NoError(t, bank.Transfer(ctx, src, dst, 1, record))

	trail := bank.AuditTrail()
	require.Len(t, trail, 1)
	assert.Equal(t, src.Key(), trail[0].Source)
	assert.Equal(t, dst.Key(), trail[0].Destination)
	assert.Equal(t, uint64(1), trail[0].Amount)
	assert.Equal(t, "nft/metadata", trail[0].Metadata)

	// Plain transfers leave no trace.
	require.NoError(t, bank.Transfer(ctx, dst, src, 1, nil))
	assert.Len(t, bank.AuditTrail(), 1)
}

func TestBankClose(t *testing.T) {
	ctx := context.Background()
	bank := NewBank()

	ref := custody.VaultRef("gold", "alice")
	bank.Fund(ref, "", 10)

	err := bank.Close(ctx, ref, "alice")
	assert.ErrorIs(t, err, custody.ErrAccountNotEmpty)

	bank.Fund(custody.EscalationRef("gold"), "", 0)
	require.NoError(t, bank.Transfer(ctx, ref, custody.EscalationRef("gold"), 10, nil))
	require.NoError(t, bank.Close(ctx, ref, "alice"))

	_, ok, err := bank.Lookup(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)

	err = bank.Close(ctx, ref, "alice")
	assert.ErrorIs(t, err, custody.ErrAccountNotFound)
}

func TestBankEnsure(t *testing.T) {
	ctx := context.Background()
	bank := NewBank()

	ref := custody.EscalationRef("gold")
	require.NoError(t, bank.Ensure(ctx, ref, "", "payer"))

	acct, ok, err := bank.Lookup(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, acct.SelfOwned())
	assert.Equal(t, uint64(0), acct.Amount)

	// Ensure is idempotent and never resets an existing account.
	bank.Fund(ref, "", 5)
	require.NoError(t, bank.Ensure(ctx, ref, "other", "payer"))

	acct, _, _ = bank.Lookup(ctx, ref)
	assert.Equal(t, uint64(5), acct.Amount)
	assert.True(t, acct.SelfOwned())
}
