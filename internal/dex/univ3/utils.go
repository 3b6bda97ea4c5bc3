package univ3

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABIForUtils = `[
  {"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

var parsedERC20Decimals = mustABI(erc20ABIForUtils)

func GetERC20Decimals(ctx context.Context, ec ethereum.ContractCaller, token common.Address) (uint8, error) {
	input, err := parsedERC20Decimals.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("pack decimals: %w", err)
	}
	res, err := ec.CallContract(ctx, ethereum.CallMsg{To: &token, Data: input}, nil)
	if err != nil {
		return 0, fmt.Errorf("call decimals: %w", err)
	}
	outs, err := parsedERC20Decimals.Methods["decimals"].Outputs.Unpack(res)
	if err != nil || len(outs) == 0 {
		if err == nil {
			err = fmt.Errorf("empty decimals output")
		}
		return 0, fmt.Errorf("decode decimals: %w", err)
	}

	switch v := outs[0].(type) {
	case uint8:
		return v, nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unexpected decimals type %T", v)
	}
}

// RouterWETH9 reads the wrapped-native token the router is bound to.
func RouterWETH9(ctx context.Context, ec ethereum.ContractCaller, router common.Address) (common.Address, error) {
	input, err := parsedRouterABI.Pack("WETH9")
	if err != nil {
		return common.Address{}, fmt.Errorf("pack WETH9: %w", err)
	}
	res, err := ec.CallContract(ctx, ethereum.CallMsg{To: &router, Data: input}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("call WETH9: %w", err)
	}
	outs, err := parsedRouterABI.Methods["WETH9"].Outputs.Unpack(res)
	if err != nil || len(outs) == 0 {
		return common.Address{}, fmt.Errorf("decode WETH9: %w", err)
	}
	addr, ok := outs[0].(common.Address)
	if !ok || addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("router returned empty WETH9")
	}
	return addr, nil
}
