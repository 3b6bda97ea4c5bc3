package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/knasko/vusd/internal/bot"
	"github.com/knasko/vusd/internal/config"
	"github.com/knasko/vusd/internal/metrics"
	"go.uber.org/zap"
)

func parseFlags() (cfgPath, envPath string, debug bool) {
	flag.StringVar(&cfgPath, "config", "./config.yaml", "путь к конфигу")
	flag.StringVar(&envPath, "env", ".env", "dotenv file loaded before env overrides")
	flag.BoolVar(&debug, "debug", false, "verbose logging (same as DEBUG=1)")
	flag.Parse()
	return cfgPath, envPath, debug
}

func main() {
	cfgPath, envPath, debug := parseFlags()

	cfg, err := config.Load(cfgPath, envPath)
	if err != nil {
		panic(err)
	}
	cfg.Debug = cfg.Debug || debug

	logger, err := bot.NewLogger(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Warn("received signal, shutting down...")
		cancel()
	}()

	b, cleanup, err := bot.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}
	defer cleanup()

	metrics.Serve(ctx, cfg.Metrics.ListenAddr, nil, logger, b.Board().Routes())
	b.Run(ctx)
}
