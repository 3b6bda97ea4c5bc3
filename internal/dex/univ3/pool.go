package univ3

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/knasko/vusd/internal/dex/core"
	"github.com/knasko/vusd/internal/multicall"
)

// Minimal pool ABI: slot0 + token0/token1.
const poolABI = `[
  {"inputs":[],"name":"slot0","outputs":[
     {"internalType":"uint160","name":"sqrtPriceX96","type":"uint160"},
     {"internalType":"int24","name":"tick","type":"int24"},
     {"internalType":"uint16","name":"observationIndex","type":"uint16"},
     {"internalType":"uint16","name":"observationCardinality","type":"uint16"},
     {"internalType":"uint16","name":"observationCardinalityNext","type":"uint16"},
     {"internalType":"uint8","name":"feeProtocol","type":"uint8"},
     {"internalType":"bool","name":"unlocked","type":"bool"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"token1","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

var parsedPoolABI = mustABI(poolABI)

var poolMethods = []string{"slot0", "token0", "token1"}

// PoolStateReader reads slot0/token0/token1. With a multicall client the
// three reads go out as one eth_call.
type PoolStateReader struct {
	ec ethereum.ContractCaller
	mc multicall.IClient
}

func NewPoolStateReader(ec ethereum.ContractCaller, mc multicall.IClient) *PoolStateReader {
	return &PoolStateReader{ec: ec, mc: mc}
}

func (r *PoolStateReader) PoolState(ctx context.Context, pool common.Address) (core.PoolState, error) {
	raw, err := r.read(ctx, pool)
	if err != nil {
		return core.PoolState{}, err
	}
	return decodePoolState(raw)
}

func (r *PoolStateReader) read(ctx context.Context, pool common.Address) ([][]byte, error) {
	inputs := make([][]byte, len(poolMethods))
	for i, m := range poolMethods {
		in, err := parsedPoolABI.Pack(m)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", m, err)
		}
		inputs[i] = in
	}

	if r.mc != nil {
		calls := make([]multicall.Call, len(inputs))
		for i, in := range inputs {
			calls[i] = multicall.Call{Target: pool, CallData: in}
		}
		res, err := r.mc.Aggregate(ctx, calls)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", pool.Hex(), err)
		}
		out := make([][]byte, len(res))
		for i, rr := range res {
			if !rr.Success {
				return nil, fmt.Errorf("pool %s: %s failed", pool.Hex(), poolMethods[i])
			}
			out[i] = rr.Data
		}
		return out, nil
	}

	out := make([][]byte, len(inputs))
	for i, in := range inputs {
		res, err := r.ec.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: in}, nil)
		if err != nil {
			return nil, fmt.Errorf("pool %s: call %s: %w", pool.Hex(), poolMethods[i], err)
		}
		out[i] = res
	}
	return out, nil
}

func decodePoolState(raw [][]byte) (core.PoolState, error) {
	if len(raw) != len(poolMethods) {
		return core.PoolState{}, fmt.Errorf("pool state: want %d results, got %d", len(poolMethods), len(raw))
	}
	outsS, err := parsedPoolABI.Methods["slot0"].Outputs.Unpack(raw[0])
	if err != nil || len(outsS) == 0 {
		return core.PoolState{}, fmt.Errorf("decode slot0: %w", err)
	}
	sqrt, ok := outsS[0].(*big.Int)
	if !ok {
		return core.PoolState{}, fmt.Errorf("unexpected sqrtPriceX96 type %T", outsS[0])
	}
	t0, err := unpackAddress("token0", raw[1])
	if err != nil {
		return core.PoolState{}, err
	}
	t1, err := unpackAddress("token1", raw[2])
	if err != nil {
		return core.PoolState{}, err
	}
	return core.PoolState{SqrtPriceX96: sqrt, Token0: t0, Token1: t1}, nil
}

func unpackAddress(method string, raw []byte) (common.Address, error) {
	outs, err := parsedPoolABI.Methods[method].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		if err == nil {
			err = fmt.Errorf("empty output")
		}
		return common.Address{}, fmt.Errorf("decode %s: %w", method, err)
	}
	addr, ok := outs[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected %s type %T", method, outs[0])
	}
	return addr, nil
}
