package univ3

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// минимальный ABI Factory: getPool(tokenA, tokenB, fee) -> address
const v3FactoryABI = `[
  {"inputs":[
    {"internalType":"address","name":"tokenA","type":"address"},
    {"internalType":"address","name":"tokenB","type":"address"},
    {"internalType":"uint24","name":"fee","type":"uint24"}],
   "name":"getPool",
   "outputs":[{"internalType":"address","name":"pool","type":"address"}],
   "stateMutability":"view","type":"function"}
]`

var parsedFactoryABI = mustABI(v3FactoryABI)

// CheckAvailableFeeTiers returns the tiers that have a deployed pool for the
// pair, with pool addresses.
func CheckAvailableFeeTiers(ctx context.Context, ec ethereum.ContractCaller, factory, base, quote common.Address, tiers []uint32) (present []uint32, pools map[uint32]common.Address, err error) {
	if (base == common.Address{}) || (quote == common.Address{}) {
		return nil, nil, fmt.Errorf("base/quote address is zero")
	}
	if factory == (common.Address{}) {
		return nil, nil, fmt.Errorf("factory address is zero")
	}

	// factory ожидает tokenA < tokenB
	tokenA, tokenB := base, quote
	if bytes.Compare(tokenB.Bytes(), tokenA.Bytes()) < 0 {
		tokenA, tokenB = tokenB, tokenA
	}

	pools = make(map[uint32]common.Address, len(tiers))
	for _, fee := range tiers {
		data, err := parsedFactoryABI.Pack("getPool", tokenA, tokenB, big.NewInt(int64(fee)))
		if err != nil {
			return nil, nil, fmt.Errorf("pack getPool: %w", err)
		}

		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		res, callErr := ec.CallContract(cctx, ethereum.CallMsg{To: &factory, Data: data}, nil)
		cancel()
		if callErr != nil {
			return nil, nil, fmt.Errorf("call getPool(fee=%d): %w", fee, callErr)
		}

		out, err := parsedFactoryABI.Unpack("getPool", res)
		if err != nil || len(out) != 1 {
			return nil, nil, fmt.Errorf("unpack getPool(fee=%d): %w", fee, err)
		}
		addr := out[0].(common.Address)
		if addr != (common.Address{}) {
			present = append(present, fee)
			pools[fee] = addr
		}
	}
	return present, pools, nil
}
