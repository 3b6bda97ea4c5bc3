package univ3

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/knasko/vusd/internal/dex/core"
	"github.com/knasko/vusd/internal/types"
	"github.com/shopspring/decimal"
)

// DecimalsFunc resolves a token's decimals; ok=false when unknown.
type DecimalsFunc func(token common.Address) (dec uint8, ok bool)

const feeDenominator = 1_000_000

var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// AmountOutFromPool prices amountIn against the pool's spot sqrtPriceX96.
// sqrtPriceX96²/2^192 is token1 per token0 in smallest units, so the raw
// amounts need no decimal rescaling. The fee (ppm) is taken from the input.
func AmountOutFromPool(st core.PoolState, decimals DecimalsFunc, fee uint32, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	var zeroForOne bool
	switch {
	case tokenIn == st.Token0 && tokenOut == st.Token1:
		zeroForOne = true
	case tokenIn == st.Token1 && tokenOut == st.Token0:
		zeroForOne = false
	default:
		return nil, fmt.Errorf("%w (token0=%s token1=%s in=%s out=%s)",
			types.ErrPoolMismatch, st.Token0.Hex(), st.Token1.Hex(), tokenIn.Hex(), tokenOut.Hex())
	}
	if _, ok := decimals(st.Token0); !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrMissingDecimals, st.Token0.Hex())
	}
	if _, ok := decimals(st.Token1); !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrMissingDecimals, st.Token1.Hex())
	}
	if st.SqrtPriceX96 == nil || st.SqrtPriceX96.Sign() <= 0 {
		return nil, fmt.Errorf("bad sqrtPriceX96")
	}
	if fee >= feeDenominator {
		return nil, fmt.Errorf("fee %d ppm out of range", fee)
	}
	if amountIn == nil || amountIn.Sign() < 0 {
		return nil, fmt.Errorf("bad amountIn")
	}

	afterFee := new(big.Int).Mul(amountIn, big.NewInt(int64(feeDenominator-fee)))
	afterFee.Quo(afterFee, big.NewInt(feeDenominator))

	priceNum := new(big.Int).Mul(st.SqrtPriceX96, st.SqrtPriceX96)
	out := new(big.Int)
	if zeroForOne {
		out.Mul(afterFee, priceNum)
		out.Quo(out, q192)
	} else {
		out.Mul(afterFee, q192)
		out.Quo(out, priceNum)
	}
	return out, nil
}

// HumanPrice is the spot price of token0 in whole token1 units.
func HumanPrice(sqrtPriceX96 *big.Int, dec0, dec1 uint8) decimal.Decimal {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero
	}
	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	num.Mul(num, pow10(dec0))
	den := new(big.Int).Mul(q192, pow10(dec1))
	return decimal.NewFromBigInt(num, 0).DivRound(decimal.NewFromBigInt(den, 0), 18)
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
