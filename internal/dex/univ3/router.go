package univ3

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// SwapRouter02 flavour: no deadline inside the structs.
const routerABI = `[
  {"inputs":[{"components":[
      {"internalType":"address","name":"tokenIn","type":"address"},
      {"internalType":"address","name":"tokenOut","type":"address"},
      {"internalType":"uint24","name":"fee","type":"uint24"},
      {"internalType":"address","name":"recipient","type":"address"},
      {"internalType":"uint256","name":"amountIn","type":"uint256"},
      {"internalType":"uint256","name":"amountOutMinimum","type":"uint256"},
      {"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],
    "internalType":"struct IV3SwapRouter.ExactInputSingleParams","name":"params","type":"tuple"}],
   "name":"exactInputSingle","outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"}],
   "stateMutability":"payable","type":"function"},
  {"inputs":[{"components":[
      {"internalType":"bytes","name":"path","type":"bytes"},
      {"internalType":"address","name":"recipient","type":"address"},
      {"internalType":"uint256","name":"amountIn","type":"uint256"},
      {"internalType":"uint256","name":"amountOutMinimum","type":"uint256"}],
    "internalType":"struct IV3SwapRouter.ExactInputParams","name":"params","type":"tuple"}],
   "name":"exactInput","outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"}],
   "stateMutability":"payable","type":"function"},
  {"inputs":[],"name":"WETH9","outputs":[{"internalType":"address","name":"","type":"address"}],
   "stateMutability":"view","type":"function"}
]`

var parsedRouterABI = mustABI(routerABI)

func mustABI(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return a
}

type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

type exactInputParams struct {
	Path             []byte
	Recipient        common.Address
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
}

func packExactInputSingle(tokenIn, tokenOut common.Address, fee uint32, recipient common.Address, amountIn, minOut *big.Int) ([]byte, error) {
	data, err := parsedRouterABI.Pack("exactInputSingle", exactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Fee:               big.NewInt(int64(fee)),
		Recipient:         recipient,
		AmountIn:          amountIn,
		AmountOutMinimum:  minOut,
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, fmt.Errorf("pack exactInputSingle: %w", err)
	}
	return data, nil
}

func packExactInput(path []byte, recipient common.Address, amountIn, minOut *big.Int) ([]byte, error) {
	data, err := parsedRouterABI.Pack("exactInput", exactInputParams{
		Path:             path,
		Recipient:        recipient,
		AmountIn:         amountIn,
		AmountOutMinimum: minOut,
	})
	if err != nil {
		return nil, fmt.Errorf("pack exactInput: %w", err)
	}
	return data, nil
}

func unpackAmountOut(method string, raw []byte) (*big.Int, error) {
	outs, err := parsedRouterABI.Methods[method].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		if err == nil {
			err = fmt.Errorf("empty %s output", method)
		}
		return nil, fmt.Errorf("decode %s: %w", method, err)
	}
	out, ok := outs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s output type %T", method, outs[0])
	}
	return out, nil
}
