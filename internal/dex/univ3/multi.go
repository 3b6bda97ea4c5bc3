package univ3

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/knasko/vusd/internal/dex/core"
	"github.com/knasko/vusd/internal/types"
)

// MultiHop quotes in → via... → out through the router's exactInput. There is
// no fallback: when the router is unreachable the venue is simply absent.
type MultiHop struct {
	desc      core.Descriptor
	router    common.Address
	recipient common.Address
	caller    core.Caller
}

type MultiHopOpts struct {
	Name      string
	Fees      []uint32
	Via       []common.Address
	Router    common.Address
	Recipient common.Address
	Caller    core.Caller
}

func NewMultiHop(o MultiHopOpts) (*MultiHop, error) {
	if o.Caller == nil {
		return nil, fmt.Errorf("v3 multi-hop: caller is nil")
	}
	if len(o.Via) == 0 {
		return nil, fmt.Errorf("v3 multi-hop: no intermediate asset")
	}
	// Validate the shape once with placeholder endpoints so a bad fee list
	// fails at startup rather than mid-cycle.
	probe := append([]common.Address{{}}, o.Via...)
	probe = append(probe, common.Address{})
	if _, err := EncodePath(probe, o.Fees); err != nil {
		return nil, err
	}
	fees := append([]uint32(nil), o.Fees...)
	via := append([]common.Address(nil), o.Via...)
	return &MultiHop{
		desc:      core.Descriptor{Name: o.Name, Kind: core.KindV3Multi, Fees: fees, Via: via},
		router:    o.Router,
		recipient: o.Recipient,
		caller:    o.Caller,
	}, nil
}

func (v *MultiHop) Descriptor() core.Descriptor { return v.desc }
func (v *MultiHop) Spender() common.Address     { return v.router }

// Path encodes the route for the given leg.
func (v *MultiHop) Path(leg types.Leg) ([]byte, error) {
	tokens := make([]common.Address, 0, len(v.desc.Via)+2)
	tokens = append(tokens, leg.In.Address)
	tokens = append(tokens, v.desc.Via...)
	tokens = append(tokens, leg.Out.Address)
	return EncodePath(tokens, v.desc.Fees)
}

func (v *MultiHop) Quote(ctx context.Context, leg types.Leg) (core.Quote, error) {
	path, err := v.Path(leg)
	if err != nil {
		return core.Quote{}, err
	}
	data, err := packExactInput(path, v.recipient, leg.AmountIn, big.NewInt(0))
	if err != nil {
		return core.Quote{}, err
	}
	raw, err := v.caller.Simulate(ctx, core.Call{To: v.router, Data: data})
	if err != nil {
		return core.Quote{}, fmt.Errorf("%w: exactInput: %v", types.ErrQuoteUnavailable, err)
	}
	out, err := unpackAmountOut("exactInput", raw)
	if err != nil {
		return core.Quote{}, fmt.Errorf("%w: %v", types.ErrQuoteUnavailable, err)
	}
	return core.Quote{Source: v, Direction: leg.Direction, AmountOut: out, Human: leg.Out.Human(out)}, nil
}

func (v *MultiHop) SwapCall(leg types.Leg, minOut *big.Int, recipient common.Address) (core.Call, error) {
	path, err := v.Path(leg)
	if err != nil {
		return core.Call{}, err
	}
	data, err := packExactInput(path, recipient, leg.AmountIn, minOut)
	if err != nil {
		return core.Call{}, err
	}
	return core.Call{To: v.router, Data: data}, nil
}
