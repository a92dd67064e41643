package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fenrir-lob/internal/collat"
	"fenrir-lob/internal/config"
	"fenrir-lob/internal/core"
	"fenrir-lob/internal/metrics"
	fenrirNet "fenrir-lob/internal/net"
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	configureLogger(cfg.Log)

	coins := collat.NewCoinLedger()
	items := collat.NewItemCustody()
	royalty := collat.NewRoyaltyOracle()

	eng := core.New(coins, items, royalty)
	eng.SetLogger(log.Logger)
	eng.SetMetrics(metrics.NewRegistry())

	if err := eng.SetMaxOrdersPerPrice(cfg.Engine.MaxOrdersPerPrice); err != nil {
		log.Fatal().Err(err).Msg("invalid max-orders-per-price")
	}
	if err := eng.SetFees(cfg.Fees.DevRate, cfg.Fees.BurnRate, cfg.Fees.DevRecipient); err != nil {
		log.Fatal().Err(err).Msg("invalid starting fee schedule")
	}

	go func() {
		if err := metrics.Serve(ctx, cfg.Server.MetricsPort); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	srv := fenrirNet.New(cfg.Server.Address, cfg.Server.Port, eng)
	go srv.Run(ctx)

	log.Info().
		Str("address", cfg.Server.Address).
		Int("port", cfg.Server.Port).
		Msg("fenrir-lob running")

	<-ctx.Done()
}

// configureLogger sets zerolog's global level and writer from config. Pretty
// output is for local development; production runs ship structured JSON.
func configureLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
