package types

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var (
	ErrQuoteUnavailable  = errors.New("quote unavailable")
	ErrPoolMismatch      = errors.New("pool/token mismatch")
	ErrMissingDecimals   = errors.New("missing token decimals")
	ErrInvalidPathLength = errors.New("invalid path length: tokens must be fees+1")
	ErrApprovalFailed    = errors.New("approve failed")
	ErrSwapFailed        = errors.New("swap failed")
	ErrPreflightReverted = errors.New("preflight simulation reverted")
	ErrNoSigner          = errors.New("no signer configured")
)

// Asset is one side of the traded pair.
type Asset struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
	// RefRate is the value of one whole unit in the reference unit used for
	// profit arithmetic. 1.0 treats both assets as equal in value.
	RefRate decimal.Decimal
}

// Rate returns RefRate, treating an unset rate as 1.
func (a Asset) Rate() decimal.Decimal {
	if a.RefRate.IsZero() {
		return decimal.NewFromInt(1)
	}
	return a.RefRate
}

// Human converts an exact smallest-unit amount into whole units.
func (a Asset) Human(amount *big.Int) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(a.Decimals))
}

// Units converts a human amount into the exact smallest-unit integer (truncating).
func (a Asset) Units(human decimal.Decimal) *big.Int {
	return human.Shift(int32(a.Decimals)).BigInt()
}

type Direction int

const (
	AToB Direction = iota
	BToA
)

func (d Direction) String() string {
	switch d {
	case AToB:
		return "A_TO_B"
	case BToA:
		return "B_TO_A"
	default:
		return "UNKNOWN"
	}
}

// Leg is a single trade direction as configured for one cycle.
type Leg struct {
	Direction Direction
	In        Asset
	Out       Asset
	// Size is the configured trade size in In's whole units.
	Size      decimal.Decimal
	AmountIn  *big.Int
	Threshold decimal.Decimal
}

// Label renders the leg as "USDC→vUSD".
func (l Leg) Label() string {
	return l.In.Symbol + "→" + l.Out.Symbol
}

// NewLeg fills AmountIn from the human size.
func NewLeg(dir Direction, in, out Asset, size, threshold decimal.Decimal) Leg {
	return Leg{
		Direction: dir,
		In:        in,
		Out:       out,
		Size:      size,
		AmountIn:  in.Units(size),
		Threshold: threshold,
	}
}

// Receipt is the confirmation record of a mined transaction.
type Receipt struct {
	Success bool
	TxHash  common.Hash
	GasUsed uint64
	Block   uint64
}

// Confirmation resolves a submitted transaction to its receipt.
type Confirmation interface {
	Hash() common.Hash
	Wait(ctx context.Context) (Receipt, error)
}
