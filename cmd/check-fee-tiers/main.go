package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/knasko/vusd/internal/config"
	"github.com/knasko/vusd/internal/dex/univ3"
)

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config")
	envPath := flag.String("env", ".env", "dotenv file")
	factoryFlag := flag.String("factory", "", "V3 factory address (default: dex.v3_factory)")
	tiersStr := flag.String("tiers", "100,500,3000,10000", "fee tiers to test, comma-separated")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *envPath)
	if err != nil {
		panic(err)
	}

	factory := *factoryFlag
	if factory == "" {
		factory = cfg.DEX.V3Factory
	}
	if !common.IsHexAddress(factory) {
		panic("V3 factory is not set: pass -factory or dex.v3_factory")
	}

	ctx := context.Background()
	ec, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		panic(err)
	}
	defer ec.Close()

	a := common.HexToAddress(cfg.Assets.A.Address)
	b := common.HexToAddress(cfg.Assets.B.Address)
	tiers := parseTiers(*tiersStr)

	fmt.Printf("RPC: %s\n", cfg.Chain.RPCURL)
	fmt.Printf("Pair: %s/%s (%s / %s)\n", cfg.Assets.A.Symbol, cfg.Assets.B.Symbol, a.Hex(), b.Hex())
	fmt.Printf("Testing tiers: %v\n\n", tiers)

	present, pools, err := univ3.CheckAvailableFeeTiers(ctx, ec, common.HexToAddress(factory), a, b, tiers)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if len(present) == 0 {
		fmt.Println("no pools on given tiers")
		return
	}
	for _, f := range present {
		fmt.Printf("  [fee=%d] %s\n", f, pools[f].Hex())
	}
}

func parseTiers(s string) []uint32 {
	parts := strings.Split(s, ",")
	var out []uint32
	for _, p := range parts {
		p = strings.TrimSpace(p)
		var v uint32
		fmt.Sscanf(p, "%d", &v)
		if v > 0 {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		out = []uint32{100, 500, 3000, 10000}
	}
	return out
}
