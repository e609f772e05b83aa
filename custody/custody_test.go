package custody

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccountRefKey(t *testing.T) {
	assert.Equal(t, "gold/alice", VaultRef("gold", "alice").Key())
	assert.Equal(t, "gold", EscalationRef("gold").Key())
}

func TestAccountRefIsEscalation(t *testing.T) {
	assert.False(t, VaultRef("gold", "alice").IsEscalation())
	assert.True(t, EscalationRef("gold").IsEscalation())
}

func TestAccountSelfOwned(t *testing.T) {
	assert.True(t, Account{Key: "gold/alice", Authority: "gold/alice"}.SelfOwned())
	assert.False(t, Account{Key: "gold/alice", Authority: "alice"}.SelfOwned())
}
