// Package utils holds amount and address helpers shared by the
// submission, quoting and balance packages.
package utils

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ParseAmount parses a human-decimal amount string and rejects empty or
// negative values. It performs no network calls.
func ParseAmount(amount string) (decimal.Decimal, error) {
	if amount == "" {
		return decimal.Decimal{}, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("amount cannot be negative")
	}

	return dec, nil
}

// ToUnits converts a human-decimal amount into raw on-chain units for
// the given precision. Fractional dust below the asset's precision is
// truncated, never rounded up.
func ToUnits(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).Truncate(0).BigInt()
}

// FromUnits converts raw on-chain units back into a human-decimal
// amount for the given precision.
func FromUnits(units *big.Int, decimals uint8) decimal.Decimal {
	if units == nil {
		return decimal.Decimal{}
	}
	return decimal.NewFromBigInt(units, -int32(decimals))
}

// ValidAddress reports whether s is a syntactically valid 0x-hex
// EVM address.
func ValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// ShortAddress renders an address for human-readable summaries,
// keeping the first and last few characters.
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:8] + "…" + addr[len(addr)-4:]
}
