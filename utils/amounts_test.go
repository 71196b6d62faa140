package utils

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount("12.50")
	require.NoError(t, err)
	assert.Equal(t, "12.5", d.String())

	_, err = ParseAmount("")
	assert.Error(t, err)

	_, err = ParseAmount("abc")
	assert.Error(t, err)

	_, err = ParseAmount("-1")
	assert.Error(t, err)

	zero, err := ParseAmount("0")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
}

func TestToUnitsTruncatesDust(t *testing.T) {
	d := decimal.RequireFromString("1.2345678")
	// 6-decimal asset: the 7th and 8th fractional digits are dropped,
	// never rounded up.
	assert.Equal(t, "1234567", ToUnits(d, 6).String())

	assert.Equal(t, "1000000000000000000", ToUnits(decimal.NewFromInt(1), 18).String())
}

func TestFromUnits(t *testing.T) {
	units := new(big.Int)
	units.SetString("1500000", 10)
	assert.Equal(t, "1.5", FromUnits(units, 6).String())
	assert.True(t, FromUnits(nil, 6).IsZero())
}

func TestValidAddress(t *testing.T) {
	assert.True(t, ValidAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"))
	assert.False(t, ValidAddress("70997970C51812dc3A010C7d01b50e0d17dc79"))
	assert.False(t, ValidAddress("not-an-address"))
	assert.False(t, ValidAddress(""))
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "0x709979…79C8", ShortAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"))
	assert.Equal(t, "0xabc", ShortAddress("0xabc"))
}
