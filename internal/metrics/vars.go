package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_cycles_total",
		Help: "Completed scan/execute cycles by outcome",
	}, []string{"outcome"})

	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "arb_cycle_duration_seconds",
		Help:    "Wall time of one scan/execute cycle",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	SkippedTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_skipped_ticks_total",
		Help: "Timer ticks dropped because a cycle was still running",
	})

	QuoterErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_quoter_errors_total",
		Help: "Number of quoter failures",
	}, []string{"venue"})

	QuoteLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arb_quoter_latency_seconds",
		Help:    "Time to obtain a DEX quote",
		Buckets: prometheus.DefBuckets, // можно настроить под себя
	}, []string{"kind"})

	FallbackQuotes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_fallback_quotes_total",
		Help: "Quotes priced from pool slot0 after the router call failed",
	}, []string{"venue"})

	BestOut = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arb_best_out",
		Help: "Best quoted output (whole units of the output asset) per direction",
	}, []string{"direction"})

	Profit = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arb_profit",
		Help: "Profit of the best quote per direction in reference units",
	}, []string{"direction"})

	Transactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_transactions_total",
		Help: "Transactions submitted by kind and final status",
	}, []string{"kind", "status"})
)

func init() {
	prometheus.MustRegister(
		Cycles,
		CycleDuration,
		SkippedTicks,
		QuoterErrors,
		QuoteLatency,
		FallbackQuotes,
		BestOut,
		Profit,
		Transactions,
	)
}
