package locker

// WithdrawType classifies a withdrawal along two independent axes: whether
// the requesting principal is the ledger owner, and whether the residual
// balance must be escalated out of the per-owner vault.
type WithdrawType uint8

const (
	WithdrawOwner WithdrawType = iota
	WithdrawOwnerBurn
	WithdrawNonOwner
	WithdrawNonOwnerBurn
)

// String returns the classification name.
func (t WithdrawType) String() string {
	switch t {
	case WithdrawOwner:
		return "owner"
	case WithdrawOwnerBurn:
		return "owner_burn"
	case WithdrawNonOwner:
		return "non_owner"
	case WithdrawNonOwnerBurn:
		return "non_owner_burn"
	default:
		return "unknown"
	}
}

// RequiresEscalation reports whether the classification mandates sweeping
// the residual balance into the escalation account.
func (t WithdrawType) RequiresEscalation() bool {
	return t == WithdrawOwnerBurn || t == WithdrawNonOwnerBurn
}

// ClassifyWithdrawal derives the withdrawal type from the ledger owner,
// the requesting principal and the balance figures of the request.
// Escalation is needed when the caller intends to leave less in the
// source than will actually remain there after the withdrawal
// (finalBalance < sourceAmount - withdrawAmount): the excess residue must
// not stay in a per-owner account.
//
// finalBalance is caller-supplied and taken at face value here; the
// engines cross-check it only through the prior-balance guard.
func ClassifyWithdrawal(ledgerOwner, principal string, finalBalance, sourceAmount, withdrawAmount uint64) WithdrawType {
	var remaining uint64
	if sourceAmount > withdrawAmount {
		remaining = sourceAmount - withdrawAmount
	}

	needsEscalation := finalBalance < remaining

	if principal == ledgerOwner {
		if needsEscalation {
			return WithdrawOwnerBurn
		}

		return WithdrawOwner
	}

	if needsEscalation {
		return WithdrawNonOwnerBurn
	}

	return WithdrawNonOwner
}
