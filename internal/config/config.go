package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/knasko/vusd/internal/types"
)

type Asset struct {
	Symbol  string `yaml:"symbol"`
	Address string `yaml:"address"`
	// Decimals of 0 are read from the token at startup.
	Decimals      uint8           `yaml:"decimals"`
	ReferenceRate decimal.Decimal `yaml:"reference_rate"`
}

type Pool struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Fee     uint32 `yaml:"fee"`
}

type Config struct {
	Debug bool `yaml:"debug"`

	Chain struct {
		RPCURL             string   `yaml:"rpc_url"`
		RPCList            []string `yaml:"rpc_list"`
		AutoRPC            bool     `yaml:"auto_rpc"`
		RPCProbeTimeoutMs  int      `yaml:"rpc_probe_timeout_ms"`
		PrivateKey         string   `yaml:"private_key"`
		MaxPriorityFeeGwei float64  `yaml:"max_priority_fee_gwei"`
		GasLimit           uint64   `yaml:"gas_limit"`
		ReceiptPollMs      int      `yaml:"receipt_poll_ms"`
	} `yaml:"chain"`

	Assets struct {
		A Asset `yaml:"a"`
		B Asset `yaml:"b"`
	} `yaml:"assets"`

	DEX struct {
		V3Router  string `yaml:"v3_router"`
		V3Factory string `yaml:"v3_factory"`
		V2Router  string `yaml:"v2_router"`
		V2FeePPM  uint32 `yaml:"v2_fee_ppm"`
		Multicall string `yaml:"multicall"`
		// Bridge is the intermediate asset of multi-hop paths. Empty means
		// ask the V3 router for WETH9, then fall back to WETH9Fallback.
		Bridge        string     `yaml:"bridge"`
		WETH9Fallback string     `yaml:"weth9"`
		V3Pools       []Pool     `yaml:"v3_pools"`
		MultiHopFees  [][]uint32 `yaml:"multihop_fees"`
	} `yaml:"dex"`

	Trade struct {
		SizeA         decimal.Decimal `yaml:"size_a"`
		SizeB         decimal.Decimal `yaml:"size_b"`
		ThresholdAToB decimal.Decimal `yaml:"threshold_a_to_b"`
		ThresholdBToA decimal.Decimal `yaml:"threshold_b_to_a"`
		SlippageBps   uint32          `yaml:"slippage_bps"`
		DeadlineSec   int             `yaml:"deadline_sec"`
	} `yaml:"trade"`

	Timings struct {
		CheckIntervalMs int `yaml:"check_interval_ms"`
	} `yaml:"timings"`

	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Stream   string `yaml:"stream"`
		MaxLen   int64  `yaml:"max_len"`
	} `yaml:"redis"`
}

// Default returns the Cronos zkEVM USDC/vUSD setup.
func Default() *Config {
	var c Config
	c.Chain.RPCURL = "https://mainnet.zkevm.cronos.org"
	c.Chain.RPCProbeTimeoutMs = 4000
	c.Chain.GasLimit = 800_000
	c.Chain.ReceiptPollMs = 2000

	c.Assets.A = Asset{Symbol: "USDC", Address: "0xaa5b845F8C9c047779bEDf64829601d8B264076c", Decimals: 6, ReferenceRate: decimal.NewFromInt(1)}
	c.Assets.B = Asset{Symbol: "vUSD", Address: "0x5b91e29Ae5A71d9052620Acb813d5aC25eC7a4A2", Decimals: 18, ReferenceRate: decimal.NewFromInt(1)}

	c.DEX.V3Router = "0x33d2394f6Ca43aba6716982d6CB0824Db4A912b2"
	c.DEX.V2Router = "0x39aD8C3067281e60045DF041846EE01c1Dd3a853"
	c.DEX.V2FeePPM = 3000
	c.DEX.V3Pools = []Pool{
		{Name: "V3 0.05%", Address: "0xb808a593Ce19eaf73D3A69B02A5a74E57B8edc7d", Fee: 500},
		{Name: "V3 0.3%", Address: "0x3a7377c1C2AEf2424aAda1BcDBEE1322170b40F0", Fee: 3000},
	}
	c.DEX.MultiHopFees = [][]uint32{{500, 500}, {500, 3000}, {3000, 500}, {3000, 3000}}

	c.Trade.SizeA = decimal.NewFromInt(1000)
	c.Trade.SizeB = decimal.NewFromInt(1000)
	c.Trade.ThresholdAToB = decimal.NewFromInt(3)
	c.Trade.ThresholdBToA = decimal.NewFromInt(3)
	c.Trade.SlippageBps = 150
	c.Trade.DeadlineSec = 60

	c.Timings.CheckIntervalMs = 20_000

	c.Redis.Stream = "arb:cycles"
	c.Redis.MaxLen = 10_000
	return &c
}

// Load merges the YAML file (if present) over Default, loads envPath into the
// process environment without overriding it, then applies env overrides.
func Load(path, envPath string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, c); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envPath, err)
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	setStr("PRIVATE_KEY", &c.Chain.PrivateKey)
	setStr("RPC_URL", &c.Chain.RPCURL)
	if v, ok := os.LookupEnv("HTTP_RPC_LIST"); ok {
		c.Chain.RPCList = splitList(v)
	}
	setFlag("AUTORPC", &c.Chain.AutoRPC)
	setStr("WETH9", &c.DEX.WETH9Fallback)
	setFlag("DEBUG", &c.Debug)
	setStr("METRICS_ADDR", &c.Metrics.ListenAddr)
	setStr("REDIS_ADDR", &c.Redis.Addr)

	if err := setInt("CHECK_INTERVAL_MS", &c.Timings.CheckIntervalMs); err != nil {
		return err
	}
	if err := setInt("DEADLINE_SEC", &c.Trade.DeadlineSec); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("SLIPPAGE_BPS"); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return fmt.Errorf("SLIPPAGE_BPS: %w", err)
		}
		c.Trade.SlippageBps = uint32(n)
	}
	for name, dst := range map[string]*decimal.Decimal{
		"TRADE_AMOUNT_A":          &c.Trade.SizeA,
		"TRADE_AMOUNT_B":          &c.Trade.SizeB,
		"PROFIT_THRESHOLD_A_TO_B": &c.Trade.ThresholdAToB,
		"PROFIT_THRESHOLD_B_TO_A": &c.Trade.ThresholdBToA,
	} {
		if err := setDecimal(name, dst); err != nil {
			return err
		}
	}
	return nil
}

func setStr(name string, dst *string) {
	if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setFlag(name string, dst *bool) {
	if v, ok := os.LookupEnv(name); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes":
			*dst = true
		case "0", "false", "no":
			*dst = false
		}
	}
}

func setInt(name string, dst *int) error {
	v, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

func setDecimal(name string, dst *decimal.Decimal) error {
	v, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks everything the bot needs before it dials the chain.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Chain.PrivateKey) == "" {
		return fmt.Errorf("PRIVATE_KEY: %w", types.ErrNoSigner)
	}
	if c.Chain.RPCURL == "" && len(c.Chain.RPCList) == 0 {
		return errors.New("no rpc endpoint configured")
	}
	a, b := c.Assets.A, c.Assets.B
	for _, x := range []Asset{a, b} {
		if !common.IsHexAddress(x.Address) || common.HexToAddress(x.Address) == (common.Address{}) {
			return fmt.Errorf("asset %q: bad address %q", x.Symbol, x.Address)
		}
		if x.ReferenceRate.IsNegative() {
			return fmt.Errorf("asset %q: negative reference_rate", x.Symbol)
		}
	}
	if common.HexToAddress(a.Address) == common.HexToAddress(b.Address) {
		return errors.New("assets a and b must differ")
	}
	if c.Trade.SlippageBps >= 10_000 {
		return fmt.Errorf("slippage_bps %d out of range [0,10000)", c.Trade.SlippageBps)
	}
	if c.Timings.CheckIntervalMs <= 0 {
		return errors.New("check_interval_ms must be positive")
	}
	if !c.Trade.SizeA.IsPositive() || !c.Trade.SizeB.IsPositive() {
		return errors.New("trade sizes must be positive")
	}
	if c.DEX.V3Router == "" && c.DEX.V2Router == "" {
		return errors.New("no router configured")
	}
	for _, p := range c.DEX.V3Pools {
		if p.Fee == 0 || p.Fee >= 1_000_000 {
			return fmt.Errorf("pool %q: fee %d out of range", p.Name, p.Fee)
		}
	}
	for _, combo := range c.DEX.MultiHopFees {
		// one bridge asset: A → bridge → B
		if len(combo) != 2 {
			return fmt.Errorf("multihop fees %v: %w", combo, types.ErrInvalidPathLength)
		}
	}
	return nil
}

func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Timings.CheckIntervalMs) * time.Millisecond
}

func (c *Config) Deadline() time.Duration {
	return time.Duration(c.Trade.DeadlineSec) * time.Second
}

func (c *Config) RPCProbeTimeout() time.Duration {
	return time.Duration(c.Chain.RPCProbeTimeoutMs) * time.Millisecond
}

func (c *Config) ReceiptPoll() time.Duration {
	return time.Duration(c.Chain.ReceiptPollMs) * time.Millisecond
}
