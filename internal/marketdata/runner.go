package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/knasko/vusd/internal/dex/core"
	imetrics "github.com/knasko/vusd/internal/metrics"
	"github.com/knasko/vusd/internal/types"
	"go.uber.org/zap"
)

// Result is the outcome of one venue for one leg: exactly one of Quote
// (when Err is nil) or Err is meaningful.
type Result struct {
	Venue core.Descriptor
	Quote core.Quote
	Err   error
	Took  time.Duration
}

func (r Result) OK() bool { return r.Err == nil }

// Scan holds every venue's result for one leg, in configured venue order.
type Scan struct {
	Leg     types.Leg
	Results []Result
	Ts      time.Time
}

// Quotes returns the surviving quotes in configured order.
func (s Scan) Quotes() []core.Quote {
	out := make([]core.Quote, 0, len(s.Results))
	for _, r := range s.Results {
		if r.OK() {
			out = append(out, r.Quote)
		}
	}
	return out
}

func (s Scan) Failed() int {
	n := 0
	for _, r := range s.Results {
		if !r.OK() {
			n++
		}
	}
	return n
}

type Aggregator struct {
	log *zap.Logger
}

func NewAggregator(log *zap.Logger) *Aggregator {
	return &Aggregator{log: log}
}

// Scan quotes leg on every venue concurrently and waits for all of them.
// Venue failures (including panics) are recorded per result and never
// fail the scan.
func (a *Aggregator) Scan(ctx context.Context, leg types.Leg, venues []core.Venue) Scan {
	res := make([]Result, len(venues))

	var wg sync.WaitGroup
	for i, ven := range venues {
		wg.Add(1)
		go func(i int, ven core.Venue) {
			defer wg.Done()
			res[i] = a.quoteOne(ctx, leg, ven)
		}(i, ven)
	}
	wg.Wait()

	return Scan{Leg: leg, Results: res, Ts: time.Now()}
}

func (a *Aggregator) quoteOne(ctx context.Context, leg types.Leg, ven core.Venue) (r Result) {
	d := ven.Descriptor()
	r.Venue = d
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.Err = fmt.Errorf("%w: venue panicked: %v", types.ErrQuoteUnavailable, p)
		}
		r.Took = time.Since(start)
		imetrics.QuoteLatency.WithLabelValues(string(d.Kind)).Observe(r.Took.Seconds())
		if r.Err != nil {
			imetrics.QuoterErrors.WithLabelValues(d.String()).Inc()
			a.log.Debug("marketdata: quote failed",
				zap.Stringer("direction", leg.Direction),
				zap.String("venue", d.String()),
				zap.Error(r.Err),
			)
			return
		}
		if r.Quote.Fallback {
			imetrics.FallbackQuotes.WithLabelValues(d.String()).Inc()
		}
	}()

	q, err := ven.Quote(ctx, leg)
	if err != nil {
		r.Err = err
		return r
	}
	if q.AmountOut == nil || q.AmountOut.Sign() <= 0 {
		r.Err = fmt.Errorf("%w: zero output", types.ErrQuoteUnavailable)
		return r
	}
	r.Quote = q
	return r
}
