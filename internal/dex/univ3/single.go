package univ3

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/knasko/vusd/internal/dex/core"
	"github.com/knasko/vusd/internal/types"
	"go.uber.org/zap"
)

// quoteStrategy is one way of pricing a leg. Strategies run in order; the
// next one is tried only when the previous failed with ErrQuoteUnavailable.
type quoteStrategy interface {
	name() string
	fallback() bool
	amountOut(ctx context.Context, leg types.Leg) (*big.Int, error)
}

// SingleHop is a V3 venue for one fee tier: router static call first, pool
// slot0 pricing when the router reverts and a pool address is known.
type SingleHop struct {
	desc       core.Descriptor
	router     common.Address
	log        *zap.Logger
	strategies []quoteStrategy
}

type SingleHopOpts struct {
	Name   string
	Fee    uint32
	Pool   common.Address // zero disables the fallback
	Router common.Address
	// Recipient is the address quoted swaps pay out to.
	Recipient common.Address
	Caller    core.Caller
	Pools     core.PoolReader
	Decimals  DecimalsFunc
}

func NewSingleHop(o SingleHopOpts, log *zap.Logger) (*SingleHop, error) {
	if o.Caller == nil {
		return nil, fmt.Errorf("v3 single-hop: caller is nil")
	}
	if o.Fee == 0 || o.Fee >= feeDenominator {
		return nil, fmt.Errorf("v3 single-hop: bad fee tier %d", o.Fee)
	}
	desc := core.Descriptor{Name: o.Name, Kind: core.KindV3Single, Fee: o.Fee, Pool: o.Pool}
	v := &SingleHop{desc: desc, router: o.Router, log: log.With(zap.String("venue", desc.String()))}
	v.strategies = append(v.strategies, &routerSingle{router: o.Router, fee: o.Fee, recipient: o.Recipient, caller: o.Caller})
	if o.Pool != (common.Address{}) && o.Pools != nil && o.Decimals != nil {
		v.strategies = append(v.strategies, &poolSpot{pool: o.Pool, fee: o.Fee, reader: o.Pools, decimals: o.Decimals, log: v.log})
	}
	return v, nil
}

func (v *SingleHop) Descriptor() core.Descriptor { return v.desc }
func (v *SingleHop) Spender() common.Address     { return v.router }

func (v *SingleHop) Quote(ctx context.Context, leg types.Leg) (core.Quote, error) {
	var lastErr error
	for _, s := range v.strategies {
		out, err := s.amountOut(ctx, leg)
		if err == nil {
			return core.Quote{
				Source:    v,
				Direction: leg.Direction,
				AmountOut: out,
				Human:     leg.Out.Human(out),
				Fallback:  s.fallback(),
			}, nil
		}
		lastErr = fmt.Errorf("%s: %w", s.name(), err)
		if !errors.Is(err, types.ErrQuoteUnavailable) {
			break
		}
		v.log.Debug("quote strategy unavailable", zap.String("strategy", s.name()), zap.Error(err))
	}
	return core.Quote{}, lastErr
}

func (v *SingleHop) SwapCall(leg types.Leg, minOut *big.Int, recipient common.Address) (core.Call, error) {
	data, err := packExactInputSingle(leg.In.Address, leg.Out.Address, v.desc.Fee, recipient, leg.AmountIn, minOut)
	if err != nil {
		return core.Call{}, err
	}
	return core.Call{To: v.router, Data: data}, nil
}

type routerSingle struct {
	router    common.Address
	fee       uint32
	recipient common.Address
	caller    core.Caller
}

func (r *routerSingle) name() string   { return "router" }
func (r *routerSingle) fallback() bool { return false }

func (r *routerSingle) amountOut(ctx context.Context, leg types.Leg) (*big.Int, error) {
	data, err := packExactInputSingle(leg.In.Address, leg.Out.Address, r.fee, r.recipient, leg.AmountIn, big.NewInt(0))
	if err != nil {
		return nil, err
	}
	raw, err := r.caller.Simulate(ctx, core.Call{To: r.router, Data: data})
	if err != nil {
		return nil, fmt.Errorf("%w: exactInputSingle: %v", types.ErrQuoteUnavailable, err)
	}
	out, err := unpackAmountOut("exactInputSingle", raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrQuoteUnavailable, err)
	}
	return out, nil
}

type poolSpot struct {
	pool     common.Address
	fee      uint32
	reader   core.PoolReader
	decimals DecimalsFunc
	log      *zap.Logger
}

func (p *poolSpot) name() string   { return "slot0" }
func (p *poolSpot) fallback() bool { return true }

func (p *poolSpot) amountOut(ctx context.Context, leg types.Leg) (*big.Int, error) {
	st, err := p.reader.PoolState(ctx, p.pool)
	if err != nil {
		return nil, err
	}
	out, err := AmountOutFromPool(st, p.decimals, p.fee, leg.In.Address, leg.Out.Address, leg.AmountIn)
	if err != nil {
		return nil, err
	}
	dec0, _ := p.decimals(st.Token0)
	dec1, _ := p.decimals(st.Token1)
	p.log.Debug("slot0 fallback price",
		zap.String("pool", p.pool.Hex()),
		zap.String("sqrtPriceX96", st.SqrtPriceX96.String()),
		zap.String("token1_per_token0", HumanPrice(st.SqrtPriceX96, dec0, dec1).String()),
	)
	return out, nil
}
