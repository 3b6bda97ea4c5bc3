package detector

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knasko/vusd/internal/dex/core"
	"github.com/knasko/vusd/internal/risk"
	"github.com/knasko/vusd/internal/types"
)

type stubVenue struct{ d core.Descriptor }

func (s stubVenue) Descriptor() core.Descriptor { return s.d }
func (s stubVenue) Spender() common.Address     { return common.Address{} }
func (s stubVenue) Quote(context.Context, types.Leg) (core.Quote, error) {
	return core.Quote{}, nil
}
func (s stubVenue) SwapCall(types.Leg, *big.Int, common.Address) (core.Call, error) {
	return core.Call{}, nil
}

func quote(name string, kind core.Kind, fee uint32, fees []uint32, out *big.Int) core.Quote {
	return core.Quote{Source: stubVenue{core.Descriptor{Name: name, Kind: kind, Fee: fee, Fees: fees}}, AmountOut: out}
}

func e18(s string) *big.Int {
	v, _ := new(big.Int).SetString(s, 10)
	return v
}

var (
	usdc = types.Asset{Symbol: "USDC", Decimals: 6}
	vusd = types.Asset{Symbol: "vUSD", Decimals: 18}
)

func legAB() types.Leg {
	return types.NewLeg(types.AToB, usdc, vusd, decimal.NewFromInt(1000), decimal.NewFromInt(3))
}

func TestBest_LargestOutput(t *testing.T) {
	q, ok := Best([]core.Quote{
		quote("V3 0.05%", core.KindV3Single, 500, nil, e18("1001000000000000000000")),
		quote("V3 0.3%", core.KindV3Single, 3000, nil, e18("1004500000000000000000")),
		quote("V2", core.KindV2, 3000, nil, e18("999000000000000000000")),
	})
	require.True(t, ok)
	assert.Equal(t, "V3 0.3%", q.Venue().Name)
}

func TestBest_TieGoesToLowerFeeThenOrder(t *testing.T) {
	same := e18("1000000000000000000000")
	q, _ := Best([]core.Quote{
		quote("V2", core.KindV2, 3000, nil, same),
		quote("path", core.KindV3Multi, 0, []uint32{500, 3000}, same),
		quote("V3 0.05%", core.KindV3Single, 500, nil, same),
		quote("V3 0.05% dup", core.KindV3Single, 500, nil, same),
	})
	assert.Equal(t, "V3 0.05%", q.Venue().Name)
}

func TestBest_Empty(t *testing.T) {
	_, ok := Best(nil)
	assert.False(t, ok)
}

func TestProfit_ReferenceRates(t *testing.T) {
	l := legAB()
	assert.Equal(t, "4.5", Profit(l, e18("1004500000000000000000")).String())

	l.Out.RefRate = decimal.RequireFromString("0.99")
	// 1004.5 × 0.99 − 1000
	assert.Equal(t, "-5.545", Profit(l, e18("1004500000000000000000")).String())
}

func TestEvaluate_Gating(t *testing.T) {
	d := New(risk.NewEngine())
	good := []core.Quote{quote("V3", core.KindV3Single, 500, nil, e18("1004500000000000000000"))}
	weak := []core.Quote{quote("V3", core.KindV3Single, 500, nil, e18("1002000000000000000000"))}
	rich := big.NewInt(2_000_000_000)
	poor := big.NewInt(999_000_000)

	v := d.Evaluate(legAB(), good, rich)
	assert.True(t, v.OK())
	assert.Equal(t, "4.5", v.Profit.String())

	assert.Equal(t, risk.InsufficientBalance, d.Evaluate(legAB(), good, poor).Reason)
	assert.Equal(t, risk.BelowThreshold, d.Evaluate(legAB(), weak, rich).Reason)
	assert.Equal(t, risk.NoQuotes, d.Evaluate(legAB(), nil, rich).Reason)
}

func TestDecide(t *testing.T) {
	ok := func(dir types.Direction, p string) Verdict {
		return Verdict{Leg: types.Leg{Direction: dir}, Profit: decimal.RequireFromString(p), Reason: risk.OK}
	}
	bad := Verdict{Reason: risk.BelowThreshold}

	v, found := Decide(ok(types.AToB, "5"), ok(types.BToA, "5"))
	require.True(t, found)
	assert.Equal(t, types.AToB, v.Leg.Direction)

	v, _ = Decide(ok(types.AToB, "4"), ok(types.BToA, "5"))
	assert.Equal(t, types.BToA, v.Leg.Direction)

	v, _ = Decide(bad, ok(types.BToA, "3"))
	assert.Equal(t, types.BToA, v.Leg.Direction)

	_, found = Decide(bad, bad)
	assert.False(t, found)
}
