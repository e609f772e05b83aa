package api

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var maxUint64 = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// parseAmount converts a JSON string amount into the integral token units
// the ledger tracks. Amounts travel as strings so callers never lose
// precision to float64 on the way in.
func parseAmount(s string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}

	if d.IsNegative() || !d.IsInteger() {
		return 0, fmt.Errorf("amount %q must be a non-negative integer", s)
	}

	if d.Cmp(maxUint64) > 0 {
		return 0, fmt.Errorf("amount %q exceeds the representable range", s)
	}

	return d.BigInt().Uint64(), nil
}

// parseAmounts converts a parallel array of string amounts.
func parseAmounts(in []string) ([]uint64, error) {
	out := make([]uint64, len(in))

	for i, s := range in {
		v, err := parseAmount(s)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}

		out[i] = v
	}

	return out, nil
}
