package univ3

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/knasko/vusd/internal/dex/core"
	"github.com/knasko/vusd/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

func decimalsOf(m map[common.Address]uint8) DecimalsFunc {
	return func(a common.Address) (uint8, bool) {
		d, ok := m[a]
		return d, ok
	}
}

func sameDecimals() DecimalsFunc {
	return decimalsOf(map[common.Address]uint8{usdc: 18, vusd: 18})
}

func TestAmountOutFromPool_IdentityAtParity(t *testing.T) {
	st := core.PoolState{SqrtPriceX96: new(big.Int).Set(q96), Token0: usdc, Token1: vusd}
	in := big.NewInt(1_000_000_000_000)

	out, err := AmountOutFromPool(st, sameDecimals(), 0, usdc, vusd, in)
	require.NoError(t, err)
	assert.Equal(t, 0, in.Cmp(out))

	back, err := AmountOutFromPool(st, sameDecimals(), 0, vusd, usdc, in)
	require.NoError(t, err)
	assert.Equal(t, 0, in.Cmp(back))
}

func TestAmountOutFromPool_FeeMonotonic(t *testing.T) {
	st := core.PoolState{SqrtPriceX96: new(big.Int).Set(q96), Token0: usdc, Token1: vusd}
	in, _ := new(big.Int).SetString("1000000000000000000000", 10)

	var prev *big.Int
	for _, fee := range []uint32{0, 100, 500, 3000, 10000} {
		out, err := AmountOutFromPool(st, sameDecimals(), fee, usdc, vusd, in)
		require.NoError(t, err)
		if prev != nil {
			assert.Equal(t, -1, out.Cmp(prev), "fee %d should lower output", fee)
		}
		prev = out
	}
}

func TestAmountOutFromPool_FeeDeduction(t *testing.T) {
	st := core.PoolState{SqrtPriceX96: new(big.Int).Set(q96), Token0: usdc, Token1: vusd}
	out, err := AmountOutFromPool(st, sameDecimals(), 3000, usdc, vusd, big.NewInt(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, int64(997_000), out.Int64())
}

func TestAmountOutFromPool_DirectionSymmetry(t *testing.T) {
	cases := []struct {
		name string
		sqrt *big.Int
		in   *big.Int
	}{
		{"price 4", new(big.Int).Lsh(big.NewInt(1), 97), big.NewInt(1_000_000_000_000_000_000)},
		{"price 2.25", new(big.Int).Mul(big.NewInt(3), new(big.Int).Lsh(big.NewInt(1), 95)), big.NewInt(1_000_001)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := core.PoolState{SqrtPriceX96: tc.sqrt, Token0: usdc, Token1: vusd}
			out, err := AmountOutFromPool(st, sameDecimals(), 0, usdc, vusd, tc.in)
			require.NoError(t, err)
			back, err := AmountOutFromPool(st, sameDecimals(), 0, vusd, usdc, out)
			require.NoError(t, err)

			diff := new(big.Int).Sub(tc.in, back)
			assert.True(t, diff.Sign() >= 0 && diff.Cmp(big.NewInt(1)) <= 0, "round trip drift %s", diff)
		})
	}
}

func TestAmountOutFromPool_MixedDecimals(t *testing.T) {
	// 1 USDC (6) = 1 vUSD (18): raw price token1/token0 = 1e12, sqrt = 1e6 * 2^96.
	sqrt := new(big.Int).Mul(big.NewInt(1_000_000), q96)
	st := core.PoolState{SqrtPriceX96: sqrt, Token0: usdc, Token1: vusd}
	dec := decimalsOf(map[common.Address]uint8{usdc: 6, vusd: 18})

	out, err := AmountOutFromPool(st, dec, 0, usdc, vusd, big.NewInt(1_000_000_000))
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("1000000000000000000000", 10)
	assert.Equal(t, 0, want.Cmp(out))

	assert.Equal(t, "1", HumanPrice(sqrt, 6, 18).String())
}

func TestAmountOutFromPool_PoolMismatch(t *testing.T) {
	st := core.PoolState{SqrtPriceX96: q96, Token0: usdc, Token1: vusd}
	_, err := AmountOutFromPool(st, sameDecimals(), 500, usdc, weth, big.NewInt(1))
	assert.ErrorIs(t, err, types.ErrPoolMismatch)

	_, err = AmountOutFromPool(st, sameDecimals(), 500, usdc, usdc, big.NewInt(1))
	assert.ErrorIs(t, err, types.ErrPoolMismatch)
}

func TestAmountOutFromPool_MissingDecimals(t *testing.T) {
	st := core.PoolState{SqrtPriceX96: q96, Token0: usdc, Token1: vusd}
	dec := decimalsOf(map[common.Address]uint8{usdc: 6})
	_, err := AmountOutFromPool(st, dec, 500, usdc, vusd, big.NewInt(1))
	assert.ErrorIs(t, err, types.ErrMissingDecimals)
}

func TestAmountOutFromPool_BadPrice(t *testing.T) {
	st := core.PoolState{SqrtPriceX96: big.NewInt(0), Token0: usdc, Token1: vusd}
	_, err := AmountOutFromPool(st, sameDecimals(), 500, usdc, vusd, big.NewInt(1))
	assert.Error(t, err)
}
