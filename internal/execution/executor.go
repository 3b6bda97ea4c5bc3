package execution

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"go.uber.org/zap"

	"github.com/knasko/vusd/internal/dex/core"
	imetrics "github.com/knasko/vusd/internal/metrics"
	"github.com/knasko/vusd/internal/types"
)

// Signer is the account capability the executor drives. Simulate must not
// mutate state.
type Signer interface {
	core.Caller
	Address() common.Address
	BalanceOf(ctx context.Context, token common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (types.Confirmation, error)
	Submit(ctx context.Context, call core.Call) (types.Confirmation, error)
}

// Result describes what one execution did on chain.
type Result struct {
	Direction types.Direction
	Venue     string
	AmountIn  *big.Int
	Quoted    *big.Int
	MinOut    *big.Int
	Approval  *types.Receipt
	Swap      types.Receipt
}

type Executor struct {
	signer      Signer
	slippageBps uint32
	log         *zap.Logger
}

func NewExecutor(signer Signer, slippageBps uint32, log *zap.Logger) *Executor {
	return &Executor{signer: signer, slippageBps: slippageBps, log: log}
}

// MinOut applies a basis-point slippage bound: out × (10000 − bps) / 10000.
func MinOut(out *big.Int, bps uint32) *big.Int {
	if bps >= 10_000 {
		return new(big.Int)
	}
	m := new(big.Int).Mul(out, big.NewInt(int64(10_000-bps)))
	return m.Quo(m, big.NewInt(10_000))
}

// Execute trades leg on the quote's venue: allowance, preflight, swap. At
// most one approval and exactly one swap are submitted, each awaited.
func (e *Executor) Execute(ctx context.Context, leg types.Leg, q core.Quote) (Result, error) {
	if q.Source == nil || q.AmountOut == nil {
		return Result{}, fmt.Errorf("%w: empty quote", types.ErrQuoteUnavailable)
	}
	venue := q.Source
	res := Result{
		Direction: leg.Direction,
		Venue:     venue.Descriptor().String(),
		AmountIn:  leg.AmountIn,
		Quoted:    q.AmountOut,
		MinOut:    MinOut(q.AmountOut, e.slippageBps),
	}
	log := e.log.With(
		zap.Stringer("direction", leg.Direction),
		zap.String("venue", res.Venue),
	)

	approval, err := e.ensureAllowance(ctx, log, leg.In.Address, venue.Spender(), leg.AmountIn)
	res.Approval = approval
	if err != nil {
		return res, err
	}

	call, err := venue.SwapCall(leg, res.MinOut, e.signer.Address())
	if err != nil {
		return res, fmt.Errorf("build swap: %w", err)
	}

	if _, err := e.signer.Simulate(ctx, call); err != nil {
		return res, fmt.Errorf("%w: %v", types.ErrPreflightReverted, err)
	}
	log.Debug("preflight ok", zap.String("min_out", leg.Out.Human(res.MinOut).String()))

	conf, err := e.signer.Submit(ctx, call)
	if err != nil {
		imetrics.Transactions.WithLabelValues("swap", "send_error").Inc()
		return res, fmt.Errorf("submit swap: %w", err)
	}
	rcpt, err := conf.Wait(ctx)
	res.Swap = rcpt
	if err != nil {
		return res, fmt.Errorf("wait swap %s: %w", conf.Hash().Hex(), err)
	}
	if !rcpt.Success {
		imetrics.Transactions.WithLabelValues("swap", "failed").Inc()
		return res, fmt.Errorf("%w: tx %s", types.ErrSwapFailed, rcpt.TxHash.Hex())
	}
	imetrics.Transactions.WithLabelValues("swap", "success").Inc()

	log.Info("swap confirmed",
		zap.String("tx", rcpt.TxHash.Hex()),
		zap.String("in", leg.Size.String()+" "+leg.In.Symbol),
		zap.String("quoted", q.Human.String()+" "+leg.Out.Symbol),
		zap.String("min_out", leg.Out.Human(res.MinOut).String()),
	)
	return res, nil
}

func (e *Executor) ensureAllowance(ctx context.Context, log *zap.Logger, token, spender common.Address, need *big.Int) (*types.Receipt, error) {
	cur, err := e.signer.Allowance(ctx, token, spender)
	if err != nil {
		return nil, fmt.Errorf("read allowance: %w", err)
	}
	if cur.Cmp(need) >= 0 {
		return nil, nil
	}

	log.Info("approving spender", zap.String("token", token.Hex()), zap.String("spender", spender.Hex()))
	conf, err := e.signer.Approve(ctx, token, spender, math.MaxBig256)
	if err != nil {
		imetrics.Transactions.WithLabelValues("approve", "send_error").Inc()
		return nil, fmt.Errorf("%w: %v", types.ErrApprovalFailed, err)
	}
	rcpt, err := conf.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("wait approve %s: %w", conf.Hash().Hex(), err)
	}
	if !rcpt.Success {
		imetrics.Transactions.WithLabelValues("approve", "failed").Inc()
		return &rcpt, fmt.Errorf("%w: tx %s", types.ErrApprovalFailed, rcpt.TxHash.Hex())
	}
	imetrics.Transactions.WithLabelValues("approve", "success").Inc()
	return &rcpt, nil
}
