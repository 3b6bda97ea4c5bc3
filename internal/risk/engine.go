package risk

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Reason explains why a direction is or is not eligible.
type Reason int

const (
	OK Reason = iota
	NoQuotes
	InsufficientBalance
	BelowThreshold
)

func (r Reason) String() string {
	switch r {
	case OK:
		return "ok"
	case NoQuotes:
		return "no_quotes"
	case InsufficientBalance:
		return "insufficient_balance"
	case BelowThreshold:
		return "below_profit_threshold"
	default:
		return "unknown"
	}
}

type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Check gates one direction. Balance is compared in exact smallest units,
// profit against the threshold in reference units.
func (e *Engine) Check(hasQuote bool, profit, threshold decimal.Decimal, balance, need *big.Int) Reason {
	if !hasQuote {
		return NoQuotes
	}
	if balance == nil || need == nil || balance.Cmp(need) < 0 {
		return InsufficientBalance
	}
	if profit.LessThan(threshold) {
		return BelowThreshold
	}
	return OK
}
