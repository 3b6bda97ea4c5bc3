package bot

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/knasko/vusd/internal/config"
	"github.com/knasko/vusd/internal/connectors/redisfeed"
	"github.com/knasko/vusd/internal/dash"
	"github.com/knasko/vusd/internal/detector"
	"github.com/knasko/vusd/internal/dex/core"
	"github.com/knasko/vusd/internal/execution"
	"github.com/knasko/vusd/internal/marketdata"
	imetrics "github.com/knasko/vusd/internal/metrics"
	"github.com/knasko/vusd/internal/risk"
	"github.com/knasko/vusd/internal/scheduler"
	"github.com/knasko/vusd/internal/types"
)

// ReportSink receives one report per cycle.
type ReportSink interface {
	Publish(ctx context.Context, r redisfeed.CycleReport) error
}

type Deps struct {
	Signer execution.Signer
	Venues []core.Venue
	// Legs holds A→B then B→A.
	Legs  [2]types.Leg
	Board *dash.Board
	Feed  ReportSink
}

// Bot runs the scan/decide/execute cycle for one asset pair.
type Bot struct {
	cfg    *config.Config
	log    *zap.Logger
	signer execution.Signer
	venues []core.Venue
	legs   [2]types.Leg
	agg    *marketdata.Aggregator
	det    *detector.Detector
	exec   *execution.Executor
	board  *dash.Board
	feed   ReportSink
}

func New(cfg *config.Config, log *zap.Logger, d Deps) *Bot {
	return &Bot{
		cfg:    cfg,
		log:    log,
		signer: d.Signer,
		venues: d.Venues,
		legs:   d.Legs,
		agg:    marketdata.NewAggregator(log),
		det:    detector.New(risk.NewEngine()),
		exec:   execution.NewExecutor(d.Signer, cfg.Trade.SlippageBps, log),
		board:  d.Board,
		feed:   d.Feed,
	}
}

func (b *Bot) Board() *dash.Board { return b.board }

// Run blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) {
	names := make([]string, 0, len(b.venues))
	for _, v := range b.venues {
		names = append(names, v.Descriptor().String())
	}
	b.log.Info("arb-bot started",
		zap.String("wallet", b.signer.Address().Hex()),
		zap.String("pair", b.legs[0].Label()),
		zap.Strings("venues", names),
		zap.Duration("interval", b.cfg.CheckInterval()),
		zap.Uint32("slippage_bps", b.cfg.Trade.SlippageBps),
	)
	scheduler.New(b.cfg.CheckInterval(), b.Cycle, b.cfg.Debug, b.log).Run(ctx)
	b.log.Info("arb-bot finished")
}

// Cycle performs one scan, decision and (maybe) execution.
func (b *Bot) Cycle(ctx context.Context) (err error) {
	start := time.Now()
	report := redisfeed.CycleReport{TsMs: start.UnixMilli(), Outcome: "idle"}
	defer func() {
		took := time.Since(start)
		if err != nil {
			report.Outcome = "error"
			report.Error = err.Error()
		}
		report.DurationMs = took.Milliseconds()
		imetrics.CycleDuration.Observe(took.Seconds())
		imetrics.Cycles.WithLabelValues(report.Outcome).Inc()
		b.publish(ctx, report)
		b.log.Info("cycle done", zap.String("outcome", report.Outcome), zap.Int64("ms", report.DurationMs))
	}()

	fwd, rev := b.legs[0], b.legs[1]
	var (
		balA, balB *big.Int
		scanA      marketdata.Scan
		scanB      marketdata.Scan
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		balA, err = b.signer.BalanceOf(gctx, fwd.In.Address)
		if err != nil {
			err = fmt.Errorf("balance %s: %w", fwd.In.Symbol, err)
		}
		return err
	})
	g.Go(func() (err error) {
		balB, err = b.signer.BalanceOf(gctx, rev.In.Address)
		if err != nil {
			err = fmt.Errorf("balance %s: %w", rev.In.Symbol, err)
		}
		return err
	})
	g.Go(func() error { scanA = b.agg.Scan(gctx, fwd, b.venues); return nil })
	g.Go(func() error { scanB = b.agg.Scan(gctx, rev, b.venues); return nil })
	if err := g.Wait(); err != nil {
		return err
	}

	b.logBalances(fwd, balA, rev, balB)
	for _, s := range []marketdata.Scan{scanA, scanB} {
		b.logScan(s)
		if b.board != nil {
			b.board.Update(s)
		}
	}

	va := b.det.Evaluate(fwd, scanA.Quotes(), balA)
	vb := b.det.Evaluate(rev, scanB.Quotes(), balB)
	b.logVerdict(va)
	b.logVerdict(vb)

	choice, ok := detector.Decide(va, vb)
	if !ok {
		b.log.Info("no profitable direction")
		return nil
	}

	report.Direction = choice.Leg.Direction.String()
	report.Venue = choice.Best.Venue().String()
	report.AmountIn = choice.Leg.Size.String()
	report.AmountOut = choice.Best.Human.String()
	report.Profit = choice.Profit.String()
	b.log.Info("executing",
		zap.Stringer("direction", choice.Leg.Direction),
		zap.String("venue", report.Venue),
		zap.String("profit", report.Profit),
	)

	res, err := b.exec.Execute(ctx, choice.Leg, choice.Best)
	if res.Swap.TxHash != (common.Hash{}) {
		report.TxHash = res.Swap.TxHash.Hex()
	}
	if err != nil {
		return fmt.Errorf("execute %s: %w", choice.Leg.Label(), err)
	}
	report.Outcome = "executed"
	return nil
}

func (b *Bot) publish(ctx context.Context, r redisfeed.CycleReport) {
	if b.feed == nil {
		return
	}
	if err := b.feed.Publish(ctx, r); err != nil {
		b.log.Warn("cycle report not published", zap.Error(err))
	}
}

func (b *Bot) logBalances(a types.Leg, balA *big.Int, r types.Leg, balB *big.Int) {
	b.log.Info("balances",
		zap.String(a.In.Symbol, a.In.Human(balA).String()),
		zap.String(r.In.Symbol, r.In.Human(balB).String()),
	)
}

func (b *Bot) logScan(s marketdata.Scan) {
	for _, r := range s.Results {
		if !r.OK() {
			b.log.Warn("quote unavailable",
				zap.Stringer("direction", s.Leg.Direction),
				zap.String("venue", r.Venue.String()),
				zap.Error(r.Err),
			)
			continue
		}
		b.log.Info("quote",
			zap.Stringer("direction", s.Leg.Direction),
			zap.String("venue", r.Venue.String()),
			zap.String("in", s.Leg.Size.String()+" "+s.Leg.In.Symbol),
			zap.String("out", r.Quote.Human.String()+" "+s.Leg.Out.Symbol),
			zap.String("profit", detector.Profit(s.Leg, r.Quote.AmountOut).String()),
			zap.Bool("fallback", r.Quote.Fallback),
			zap.Duration("took", r.Took),
		)
	}
}

func (b *Bot) logVerdict(v detector.Verdict) {
	dir := v.Leg.Direction.String()
	if v.HasBest {
		f, _ := v.Best.Human.Float64()
		imetrics.BestOut.WithLabelValues(dir).Set(f)
		p, _ := v.Profit.Float64()
		imetrics.Profit.WithLabelValues(dir).Set(p)
	}
	fields := []zap.Field{
		zap.String("direction", dir),
		zap.String("reason", v.Reason.String()),
		zap.String("profit", v.Profit.String()),
		zap.String("threshold", v.Leg.Threshold.String()),
	}
	if v.HasBest {
		fields = append(fields, zap.String("best_venue", v.Best.Venue().String()))
	}
	switch v.Reason {
	case risk.NoQuotes:
		b.log.Error("no usable quotes", fields...)
	case risk.InsufficientBalance:
		b.log.Warn("insufficient balance",
			append(fields,
				zap.String("balance", v.Leg.In.Human(v.Balance).String()),
				zap.String("need", v.Leg.Size.String()),
			)...)
	case risk.BelowThreshold:
		b.log.Warn("below profit threshold", fields...)
	default:
		b.log.Info("direction eligible", fields...)
	}
}

// NewLogger builds the JSON logger; debug lowers the level and enables
// stack traces on error lines.
func NewLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.DisableStacktrace = !debug
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	return cfg.Build()
}
