package core

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/knasko/vusd/internal/types"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindV2       Kind = "amm_v2"
	KindV3Single Kind = "amm_v3_single"
	KindV3Multi  Kind = "amm_v3_multi"
)

// Descriptor identifies a venue. Fee/Pool apply to KindV3Single, Fees/Via to
// KindV3Multi; Via is also an optional intermediate route for KindV2.
type Descriptor struct {
	Name string
	Kind Kind
	Fee  uint32
	Pool common.Address
	Fees []uint32
	Via  []common.Address
}

// TotalFee is the sum of the hop fees in ppm.
func (d Descriptor) TotalFee() uint32 {
	switch d.Kind {
	case KindV3Multi:
		var sum uint32
		for _, f := range d.Fees {
			sum += f
		}
		return sum
	default:
		return d.Fee
	}
}

func (d Descriptor) String() string {
	if d.Name != "" {
		return d.Name
	}
	switch d.Kind {
	case KindV3Single:
		return fmt.Sprintf("V3 %s", feePct(d.Fee))
	case KindV3Multi:
		parts := make([]string, len(d.Fees))
		for i, f := range d.Fees {
			parts[i] = feePct(f)
		}
		return "V3 path " + strings.Join(parts, "+")
	default:
		return "V2"
	}
}

func feePct(ppm uint32) string {
	return decimal.New(int64(ppm), -4).String() + "%"
}

// Call is an unsigned contract call.
type Call struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Caller runs a call read-only against the latest state; it never mutates
// chain state or spends gas.
type Caller interface {
	Simulate(ctx context.Context, call Call) ([]byte, error)
}

// Venue quotes a leg and builds the swap call that realises the quote.
type Venue interface {
	Descriptor() Descriptor
	// Spender is the contract that pulls the input token on swap.
	Spender() common.Address
	Quote(ctx context.Context, leg types.Leg) (Quote, error)
	SwapCall(leg types.Leg, minOut *big.Int, recipient common.Address) (Call, error)
}

// Quote is one venue's answer for one leg.
type Quote struct {
	Source    Venue
	Direction types.Direction
	AmountOut *big.Int
	Human     decimal.Decimal
	// Fallback marks quotes derived from pool state instead of the router.
	Fallback bool
}

// Venue returns the descriptor of the quoting venue.
func (q Quote) Venue() Descriptor {
	if q.Source == nil {
		return Descriptor{}
	}
	return q.Source.Descriptor()
}

// PoolState is the subset of a V3 pool used by fallback pricing.
type PoolState struct {
	SqrtPriceX96 *big.Int
	Token0       common.Address
	Token1       common.Address
}

type PoolReader interface {
	PoolState(ctx context.Context, pool common.Address) (PoolState, error)
}
