package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/knasko/vusd/internal/config"
	"github.com/knasko/vusd/internal/connectors/redisfeed"
)

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config")
	envPath := flag.String("env", ".env", "dotenv file")
	n := flag.Int64("n", 20, "number of latest reports to print")
	follow := flag.Bool("follow", false, "keep printing new reports")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *envPath)
	if err != nil {
		panic(err)
	}
	if cfg.Redis.Addr == "" {
		panic("redis.addr / REDIS_ADDR is not set")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c := redisfeed.NewConsumer(cfg)
	defer c.Close()

	reports, err := c.Tail(ctx, *n)
	if err != nil {
		panic(err)
	}
	last := "$"
	for _, r := range reports {
		printReport(r)
		last = r.ID
	}
	if !*follow {
		return
	}

	out := make(chan redisfeed.CycleReport, 16)
	go func() {
		_ = c.Follow(ctx, last, out)
		close(out)
	}()
	for r := range out {
		printReport(r)
	}
}

func printReport(r redisfeed.CycleReport) {
	line := fmt.Sprintf("%s %-8s %6dms", r.ID, r.Outcome, r.DurationMs)
	if r.Direction != "" {
		line += fmt.Sprintf("  %s via %s in=%s out=%s profit=%s", r.Direction, r.Venue, r.AmountIn, r.AmountOut, r.Profit)
	}
	if r.TxHash != "" {
		line += "  tx=" + r.TxHash
	}
	if r.Error != "" {
		line += "  err=" + r.Error
	}
	fmt.Println(line)
}
