package locker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerBalance(t *testing.T) {
	ledger := NewLedger("alice")
	ledger.setBalance("gold", 100)

	balance, ok := ledger.Balance("gold")
	assert.True(t, ok)
	assert.Equal(t, uint64(100), balance)

	_, ok = ledger.Balance("silver")
	assert.False(t, ok)
}

func TestLedgerSetBalance(t *testing.T) {
	tests := []struct {
		name    string
		setup   []Entry
		asset   string
		balance uint64
		want    []Entry
	}{
		{
			name:    "append new entry",
			setup:   []Entry{{Asset: "gold", Balance: 10}},
			asset:   "silver",
			balance: 5,
			want:    []Entry{{Asset: "gold", Balance: 10}, {Asset: "silver", Balance: 5}},
		},
		{
			name:    "update in place keeps order",
			setup:   []Entry{{Asset: "gold", Balance: 10}, {Asset: "silver", Balance: 5}},
			asset:   "gold",
			balance: 42,
			want:    []Entry{{Asset: "gold", Balance: 42}, {Asset: "silver", Balance: 5}},
		},
		{
			name:    "zero removes entry",
			setup:   []Entry{{Asset: "gold", Balance: 10}, {Asset: "silver", Balance: 5}, {Asset: "iron", Balance: 7}},
			asset:   "silver",
			balance: 0,
			want:    []Entry{{Asset: "gold", Balance: 10}, {Asset: "iron", Balance: 7}},
		},
		{
			name:    "zero on untracked asset is a no-op",
			setup:   []Entry{{Asset: "gold", Balance: 10}},
			asset:   "silver",
			balance: 0,
			want:    []Entry{{Asset: "gold", Balance: 10}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &Ledger{Owner: "alice", Entries: tt.setup}
			ledger.setBalance(tt.asset, tt.balance)

			assert.Equal(t, tt.want, ledger.Entries)
			assert.NoError(t, ledger.Validate())
		})
	}
}

func TestLedgerClone(t *testing.T) {
	ledger := &Ledger{
		Owner:    "alice",
		Entries:  []Entry{{Asset: "gold", Balance: 10}},
		Sequence: 3,
	}

	dup := ledger.Clone()
	dup.setBalance("gold", 99)
	dup.Sequence = 4

	assert.Equal(t, uint64(10), ledger.Entries[0].Balance)
	assert.Equal(t, uint64(3), ledger.Sequence)
}

func TestLedgerValidate(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		wantErr bool
	}{
		{name: "empty", entries: nil, wantErr: false},
		{name: "valid", entries: []Entry{{Asset: "gold", Balance: 1}, {Asset: "silver", Balance: 2}}, wantErr: false},
		{name: "zero balance", entries: []Entry{{Asset: "gold", Balance: 0}}, wantErr: true},
		{name: "duplicate asset", entries: []Entry{{Asset: "gold", Balance: 1}, {Asset: "gold", Balance: 2}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Ledger{Entries: tt.entries}).Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAddBalanceOverflow(t *testing.T) {
	sum, err := addBalance(10, 20)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), sum)

	_, err = addBalance(^uint64(0), 1)
	assert.ErrorIs(t, err, ErrAmountOverflow)
}
