package univ3

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/knasko/vusd/internal/dex/core"
	"github.com/knasko/vusd/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var router = common.HexToAddress("0x33d2394f6Ca43aba6716982d6CB0824Db4A912b2")

// fakeCaller answers eth_call by 4-byte selector.
type fakeCaller struct {
	mu    sync.Mutex
	ret   map[string][]byte
	err   error
	calls []core.Call
}

func (f *fakeCaller) Simulate(_ context.Context, call core.Call) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}
	for sel, out := range f.ret {
		if bytes.Equal(call.Data[:4], parsedRouterABI.Methods[sel].ID) {
			return out, nil
		}
	}
	return nil, errors.New("execution reverted")
}

type fakePools struct {
	st    core.PoolState
	err   error
	reads int
}

func (f *fakePools) PoolState(context.Context, common.Address) (core.PoolState, error) {
	f.reads++
	return f.st, f.err
}

func amountOutReturn(t *testing.T, method string, v *big.Int) []byte {
	t.Helper()
	out, err := parsedRouterABI.Methods[method].Outputs.Pack(v)
	require.NoError(t, err)
	return out
}

func testLeg() types.Leg {
	a := types.Asset{Symbol: "USDC", Address: usdc, Decimals: 18, RefRate: decimal.NewFromInt(1)}
	b := types.Asset{Symbol: "vUSD", Address: vusd, Decimals: 18, RefRate: decimal.NewFromInt(1)}
	return types.NewLeg(types.AToB, a, b, decimal.NewFromInt(1000), decimal.NewFromInt(3))
}

func TestSingleHop_RouterQuote(t *testing.T) {
	want, _ := new(big.Int).SetString("1004500000000000000000", 10)
	fc := &fakeCaller{ret: map[string][]byte{"exactInputSingle": amountOutReturn(t, "exactInputSingle", want)}}
	pools := &fakePools{}
	v, err := NewSingleHop(SingleHopOpts{Fee: 500, Pool: common.HexToAddress("0x01"), Router: router, Caller: fc, Pools: pools, Decimals: sameDecimals()}, zap.NewNop())
	require.NoError(t, err)

	q, err := v.Quote(context.Background(), testLeg())
	require.NoError(t, err)
	assert.Equal(t, 0, want.Cmp(q.AmountOut))
	assert.Equal(t, "1004.5", q.Human.String())
	assert.False(t, q.Fallback)
	assert.Equal(t, 0, pools.reads)
	assert.Equal(t, "V3 0.05%", q.Venue().String())
}

func TestSingleHop_FallsBackToPool(t *testing.T) {
	fc := &fakeCaller{err: errors.New("execution reverted")}
	pools := &fakePools{st: core.PoolState{SqrtPriceX96: new(big.Int).Set(q96), Token0: usdc, Token1: vusd}}
	v, err := NewSingleHop(SingleHopOpts{Fee: 3000, Pool: common.HexToAddress("0x01"), Router: router, Caller: fc, Pools: pools, Decimals: sameDecimals()}, zap.NewNop())
	require.NoError(t, err)

	leg := testLeg()
	q, err := v.Quote(context.Background(), leg)
	require.NoError(t, err)
	assert.True(t, q.Fallback)
	want := new(big.Int).Mul(leg.AmountIn, big.NewInt(997_000))
	want.Quo(want, big.NewInt(1_000_000))
	assert.Equal(t, 0, want.Cmp(q.AmountOut))
	assert.Equal(t, 1, pools.reads)
}

func TestSingleHop_NoPoolPropagatesUnavailable(t *testing.T) {
	fc := &fakeCaller{err: errors.New("execution reverted")}
	v, err := NewSingleHop(SingleHopOpts{Fee: 500, Router: router, Caller: fc}, zap.NewNop())
	require.NoError(t, err)

	_, err = v.Quote(context.Background(), testLeg())
	assert.ErrorIs(t, err, types.ErrQuoteUnavailable)
}

func TestSingleHop_FallbackPoolMismatch(t *testing.T) {
	fc := &fakeCaller{err: errors.New("execution reverted")}
	pools := &fakePools{st: core.PoolState{SqrtPriceX96: q96, Token0: usdc, Token1: weth}}
	v, err := NewSingleHop(SingleHopOpts{Fee: 500, Pool: common.HexToAddress("0x01"), Router: router, Caller: fc, Pools: pools, Decimals: sameDecimals()}, zap.NewNop())
	require.NoError(t, err)

	_, err = v.Quote(context.Background(), testLeg())
	assert.ErrorIs(t, err, types.ErrPoolMismatch)
}

func TestSingleHop_SwapCallCarriesMinOut(t *testing.T) {
	v, err := NewSingleHop(SingleHopOpts{Fee: 500, Router: router, Caller: &fakeCaller{}}, zap.NewNop())
	require.NoError(t, err)

	leg := testLeg()
	minOut := big.NewInt(989)
	recipient := common.HexToAddress("0xbeef")
	call, err := v.SwapCall(leg, minOut, recipient)
	require.NoError(t, err)
	assert.Equal(t, router, call.To)

	args, err := parsedRouterABI.Methods["exactInputSingle"].Inputs.Unpack(call.Data[4:])
	require.NoError(t, err)
	p := *abi.ConvertType(args[0], new(exactInputSingleParams)).(*exactInputSingleParams)
	assert.Equal(t, usdc, p.TokenIn)
	assert.Equal(t, recipient, p.Recipient)
	assert.Equal(t, int64(500), p.Fee.Int64())
	assert.Equal(t, 0, minOut.Cmp(p.AmountOutMinimum))
}

func TestNewSingleHop_BadFee(t *testing.T) {
	_, err := NewSingleHop(SingleHopOpts{Fee: 0, Caller: &fakeCaller{}}, zap.NewNop())
	assert.Error(t, err)
}

func TestMultiHop_QuoteEncodesPath(t *testing.T) {
	want := big.NewInt(123456)
	fc := &fakeCaller{ret: map[string][]byte{"exactInput": amountOutReturn(t, "exactInput", want)}}
	v, err := NewMultiHop(MultiHopOpts{Fees: []uint32{500, 3000}, Via: []common.Address{weth}, Router: router, Caller: fc})
	require.NoError(t, err)

	leg := testLeg()
	q, err := v.Quote(context.Background(), leg)
	require.NoError(t, err)
	assert.Equal(t, 0, want.Cmp(q.AmountOut))
	assert.Equal(t, uint32(3500), q.Venue().TotalFee())
	assert.Equal(t, "V3 path 0.05%+0.3%", q.Venue().String())

	path, err := v.Path(leg)
	require.NoError(t, err)
	tokens, fees, err := DecodePath(path)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{usdc, weth, vusd}, tokens)
	assert.Equal(t, []uint32{500, 3000}, fees)
}

func TestMultiHop_NoFallback(t *testing.T) {
	v, err := NewMultiHop(MultiHopOpts{Fees: []uint32{500, 500}, Via: []common.Address{weth}, Router: router, Caller: &fakeCaller{err: errors.New("dial tcp: timeout")}})
	require.NoError(t, err)
	_, err = v.Quote(context.Background(), testLeg())
	assert.ErrorIs(t, err, types.ErrQuoteUnavailable)
}

func TestNewMultiHop_InvalidPathLength(t *testing.T) {
	_, err := NewMultiHop(MultiHopOpts{Fees: []uint32{500}, Via: []common.Address{weth}, Router: router, Caller: &fakeCaller{}})
	assert.ErrorIs(t, err, types.ErrInvalidPathLength)
}
