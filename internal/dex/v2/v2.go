package v2

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/knasko/vusd/internal/dex/core"
	"github.com/knasko/vusd/internal/types"
)

const routerABI = `[
 {"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"amountOutMin","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"}],"name":"swapExactTokensForTokens","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"}
]`

// DefaultFeePPM is the constant-product pool fee (0.3%), used only to rank
// equal quotes.
const DefaultFeePPM = 3000

type V2 struct {
	desc     core.Descriptor
	abi      abi.ABI
	router   common.Address
	caller   core.Caller
	deadline time.Duration
	now      func() time.Time
}

type Opts struct {
	Name     string
	Router   common.Address
	Caller   core.Caller
	Via      []common.Address
	Deadline time.Duration
	FeePPM   uint32
}

func New(o Opts) (*V2, error) {
	rABI, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		return nil, err
	}
	if o.Caller == nil {
		return nil, errors.New("v2 router: caller is nil")
	}
	if o.Deadline <= 0 {
		o.Deadline = 60 * time.Second
	}
	if o.FeePPM == 0 {
		o.FeePPM = DefaultFeePPM
	}
	return &V2{
		desc:     core.Descriptor{Name: o.Name, Kind: core.KindV2, Fee: o.FeePPM, Via: append([]common.Address(nil), o.Via...)},
		abi:      rABI,
		router:   o.Router,
		caller:   o.Caller,
		deadline: o.Deadline,
		now:      time.Now,
	}, nil
}

func (v *V2) Descriptor() core.Descriptor { return v.desc }
func (v *V2) Spender() common.Address     { return v.router }

func (v *V2) path(leg types.Leg) []common.Address {
	p := make([]common.Address, 0, len(v.desc.Via)+2)
	p = append(p, leg.In.Address)
	p = append(p, v.desc.Via...)
	return append(p, leg.Out.Address)
}

// ---------- core.Venue ----------

func (v *V2) Quote(ctx context.Context, leg types.Leg) (core.Quote, error) {
	data, err := v.abi.Pack("getAmountsOut", leg.AmountIn, v.path(leg))
	if err != nil {
		return core.Quote{}, fmt.Errorf("pack getAmountsOut: %w", err)
	}
	raw, err := v.caller.Simulate(ctx, core.Call{To: v.router, Data: data})
	if err != nil {
		return core.Quote{}, fmt.Errorf("%w: getAmountsOut: %v", types.ErrQuoteUnavailable, err)
	}
	outs, err := v.abi.Methods["getAmountsOut"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return core.Quote{}, fmt.Errorf("%w: decode getAmountsOut", types.ErrQuoteUnavailable)
	}
	amounts, ok := outs[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return core.Quote{}, fmt.Errorf("%w: bad amounts length", types.ErrQuoteUnavailable)
	}
	out := amounts[len(amounts)-1]
	return core.Quote{Source: v, Direction: leg.Direction, AmountOut: out, Human: leg.Out.Human(out)}, nil
}

func (v *V2) SwapCall(leg types.Leg, minOut *big.Int, recipient common.Address) (core.Call, error) {
	deadline := big.NewInt(v.now().Add(v.deadline).Unix())
	data, err := v.abi.Pack("swapExactTokensForTokens", leg.AmountIn, minOut, v.path(leg), recipient, deadline)
	if err != nil {
		return core.Call{}, fmt.Errorf("pack swapExactTokensForTokens: %w", err)
	}
	return core.Call{To: v.router, Data: data}, nil
}
