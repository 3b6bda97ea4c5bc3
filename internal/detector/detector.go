package detector

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/knasko/vusd/internal/dex/core"
	"github.com/knasko/vusd/internal/risk"
	"github.com/knasko/vusd/internal/types"
)

// Verdict is the evaluation of one direction in one cycle.
type Verdict struct {
	Leg     types.Leg
	Best    core.Quote
	HasBest bool
	Profit  decimal.Decimal
	Balance *big.Int
	Reason  risk.Reason
}

func (v Verdict) OK() bool { return v.Reason == risk.OK }

type Detector struct {
	risk *risk.Engine
}

func New(r *risk.Engine) *Detector { return &Detector{risk: r} }

// Best picks the largest output. Equal outputs go to the lower total fee,
// then to the earlier quote.
func Best(quotes []core.Quote) (core.Quote, bool) {
	var (
		best core.Quote
		have bool
	)
	for _, q := range quotes {
		if q.AmountOut == nil {
			continue
		}
		if !have {
			best, have = q, true
			continue
		}
		switch q.AmountOut.Cmp(best.AmountOut) {
		case 1:
			best = q
		case 0:
			if q.Venue().TotalFee() < best.Venue().TotalFee() {
				best = q
			}
		}
	}
	return best, have
}

// Profit values the trade in reference units:
// out × rate(out) − size × rate(in).
func Profit(leg types.Leg, amountOut *big.Int) decimal.Decimal {
	out := leg.Out.Human(amountOut).Mul(leg.Out.Rate())
	in := leg.Size.Mul(leg.In.Rate())
	return out.Sub(in)
}

func (d *Detector) Evaluate(leg types.Leg, quotes []core.Quote, balance *big.Int) Verdict {
	v := Verdict{Leg: leg, Balance: balance}
	v.Best, v.HasBest = Best(quotes)
	if v.HasBest {
		v.Profit = Profit(leg, v.Best.AmountOut)
	}
	v.Reason = d.risk.Check(v.HasBest, v.Profit, leg.Threshold, balance, leg.AmountIn)
	return v
}

// Decide picks the direction to act on. When both are eligible the higher
// profit wins and a tie goes to fwd.
func Decide(fwd, rev Verdict) (Verdict, bool) {
	switch {
	case fwd.OK() && rev.OK():
		if fwd.Profit.GreaterThanOrEqual(rev.Profit) {
			return fwd, true
		}
		return rev, true
	case fwd.OK():
		return fwd, true
	case rev.OK():
		return rev, true
	default:
		return Verdict{}, false
	}
}
