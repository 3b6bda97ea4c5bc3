package bot

import (
	"context"
	"errors"
	"fmt"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/knasko/vusd/internal/config"
	"github.com/knasko/vusd/internal/connectors/redisfeed"
	"github.com/knasko/vusd/internal/dash"
	"github.com/knasko/vusd/internal/dex/core"
	"github.com/knasko/vusd/internal/dex/univ3"
	v2 "github.com/knasko/vusd/internal/dex/v2"
	"github.com/knasko/vusd/internal/execution"
	"github.com/knasko/vusd/internal/multicall"
	"github.com/knasko/vusd/internal/rpcselect"
	"github.com/knasko/vusd/internal/types"
	"github.com/knasko/vusd/internal/wallet"
)

var errNoVenues = errors.New("no venues configured")

// Build dials the chain and wires every component from cfg. The returned
// func releases the connections.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Bot, func(), error) {
	endpoint := cfg.Chain.RPCURL
	if cfg.Chain.AutoRPC && len(cfg.Chain.RPCList) > 0 {
		endpoint = rpcselect.Select(ctx, cfg.Chain.RPCList, cfg.Chain.RPCURL, cfg.RPCProbeTimeout(), log)
	}
	ec, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rpc: %w", err)
	}
	closers := []func(){ec.Close}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	w, err := wallet.New(ec, cfg.Chain.PrivateKey, wallet.Opts{
		GasLimit:           cfg.Chain.GasLimit,
		MaxPriorityFeeGwei: cfg.Chain.MaxPriorityFeeGwei,
		PollInterval:       cfg.ReceiptPoll(),
	}, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	a, err := resolveAsset(ctx, ec, cfg.Assets.A, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	b, err := resolveAsset(ctx, ec, cfg.Assets.B, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	venues, err := buildVenues(ctx, cfg, ec, w, a, b, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	deps := Deps{
		Signer: w,
		Venues: venues,
		Legs: [2]types.Leg{
			types.NewLeg(types.AToB, a, b, cfg.Trade.SizeA, cfg.Trade.ThresholdAToB),
			types.NewLeg(types.BToA, b, a, cfg.Trade.SizeB, cfg.Trade.ThresholdBToA),
		},
		Board: dash.NewBoard(),
	}
	if cfg.Redis.Addr != "" {
		pub := redisfeed.NewPublisher(cfg)
		deps.Feed = pub
		closers = append(closers, func() { _ = pub.Close() })
		log.Info("cycle reports enabled", zap.String("redis", cfg.Redis.Addr), zap.String("stream", cfg.Redis.Stream))
	}
	return New(cfg, log, deps), cleanup, nil
}

func resolveAsset(ctx context.Context, ec ethereum.ContractCaller, c config.Asset, log *zap.Logger) (types.Asset, error) {
	a := types.Asset{Symbol: c.Symbol, Address: common.HexToAddress(c.Address), Decimals: c.Decimals, RefRate: c.ReferenceRate}
	if a.Decimals != 0 {
		return a, nil
	}
	dec, err := univ3.GetERC20Decimals(ctx, ec, a.Address)
	if err != nil {
		return a, fmt.Errorf("asset %s: %w: %v", a.Symbol, types.ErrMissingDecimals, err)
	}
	a.Decimals = dec
	log.Info("token decimals read on-chain", zap.String("symbol", a.Symbol), zap.Uint8("decimals", dec))
	return a, nil
}

// buildVenues registers, in order: the V3 fee-tier pools, the V2 router,
// then one multi-hop venue per fee combo through the bridge asset.
func buildVenues(ctx context.Context, cfg *config.Config, ec ethereum.ContractCaller, signer execution.Signer, a, b types.Asset, log *zap.Logger) ([]core.Venue, error) {
	reg := core.NewRegistry()
	decimals := func(t common.Address) (uint8, bool) {
		switch t {
		case a.Address:
			return a.Decimals, true
		case b.Address:
			return b.Decimals, true
		}
		return 0, false
	}

	var mc multicall.IClient
	if cfg.DEX.Multicall != "" {
		var err error
		if mc, err = multicall.New(ec, common.HexToAddress(cfg.DEX.Multicall)); err != nil {
			return nil, fmt.Errorf("multicall: %w", err)
		}
	}
	pools := univ3.NewPoolStateReader(ec, mc)

	if cfg.DEX.V3Router != "" {
		router := common.HexToAddress(cfg.DEX.V3Router)
		for _, p := range cfg.DEX.V3Pools {
			v, err := univ3.NewSingleHop(univ3.SingleHopOpts{
				Name:      p.Name,
				Fee:       p.Fee,
				Pool:      common.HexToAddress(p.Address),
				Router:    router,
				Recipient: signer.Address(),
				Caller:    signer,
				Pools:     pools,
				Decimals:  decimals,
			}, log)
			if err != nil {
				return nil, err
			}
			if err := reg.Register(v); err != nil {
				return nil, err
			}
		}
	}

	if cfg.DEX.V2Router != "" {
		v, err := v2.New(v2.Opts{
			Name:     "V2",
			Router:   common.HexToAddress(cfg.DEX.V2Router),
			Caller:   signer,
			Deadline: cfg.Deadline(),
			FeePPM:   cfg.DEX.V2FeePPM,
		})
		if err != nil {
			return nil, err
		}
		if err := reg.Register(v); err != nil {
			return nil, err
		}
	}

	if cfg.DEX.V3Router != "" && len(cfg.DEX.MultiHopFees) > 0 {
		bridge := resolveBridge(ctx, cfg, ec, log)
		switch bridge {
		case common.Address{}:
			log.Warn("no bridge asset (router WETH9 and WETH9 env both unavailable), multi-hop venues disabled")
		case a.Address, b.Address:
			log.Warn("bridge asset equals a traded asset, multi-hop venues disabled", zap.String("bridge", bridge.Hex()))
		default:
			for _, fees := range cfg.DEX.MultiHopFees {
				v, err := univ3.NewMultiHop(univ3.MultiHopOpts{
					Fees:      fees,
					Via:       []common.Address{bridge},
					Router:    common.HexToAddress(cfg.DEX.V3Router),
					Recipient: signer.Address(),
					Caller:    signer,
				})
				if err != nil {
					return nil, fmt.Errorf("multi-hop %v: %w", fees, err)
				}
				if err := reg.Register(v); err != nil {
					return nil, err
				}
			}
		}
	}

	if reg.Len() == 0 {
		return nil, errNoVenues
	}
	return reg.All(), nil
}

func resolveBridge(ctx context.Context, cfg *config.Config, ec ethereum.ContractCaller, log *zap.Logger) common.Address {
	if common.IsHexAddress(cfg.DEX.Bridge) {
		return common.HexToAddress(cfg.DEX.Bridge)
	}
	weth, err := univ3.RouterWETH9(ctx, ec, common.HexToAddress(cfg.DEX.V3Router))
	if err == nil {
		log.Info("bridge asset from router", zap.String("weth9", weth.Hex()))
		return weth
	}
	log.Warn("router WETH9 lookup failed", zap.Error(err))
	if common.IsHexAddress(cfg.DEX.WETH9Fallback) {
		return common.HexToAddress(cfg.DEX.WETH9Fallback)
	}
	return common.Address{}
}
