package types

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAsset_HumanUnits(t *testing.T) {
	usdc := Asset{Symbol: "USDC", Decimals: 6}
	assert.Equal(t, "1000", usdc.Human(big.NewInt(1_000_000_000)).String())
	assert.Equal(t, int64(1_000_500_000), usdc.Units(decimal.RequireFromString("1000.5")).Int64())
	// truncates below the smallest unit
	assert.Equal(t, int64(1), usdc.Units(decimal.RequireFromString("0.0000019")).Int64())
	assert.True(t, usdc.Human(nil).IsZero())
}

func TestAsset_Rate(t *testing.T) {
	assert.Equal(t, "1", Asset{}.Rate().String())
	assert.Equal(t, "0.98", Asset{RefRate: decimal.RequireFromString("0.98")}.Rate().String())
}

func TestNewLeg(t *testing.T) {
	a := Asset{Symbol: "USDC", Decimals: 6}
	b := Asset{Symbol: "vUSD", Decimals: 18}
	l := NewLeg(BToA, b, a, decimal.NewFromInt(1000), decimal.NewFromInt(3))
	assert.Equal(t, "vUSD→USDC", l.Label())
	assert.Equal(t, "B_TO_A", l.Direction.String())
	want, _ := new(big.Int).SetString("1000000000000000000000", 10)
	assert.Equal(t, 0, want.Cmp(l.AmountIn))
}
