// Command fireflysync imports trading history, transfers and interest
// payouts from cryptocurrency exchanges into a Firefly III ledger, and keeps
// importing on a fixed interval.
//
// Usage:
//
//	fireflysync            (configuration from environment / .env)
//	fireflysync --setup    (interactive configuration wizard)
//
// Required environment variables:
//
//	FIREFLY_HOST, FIREFLY_ACCESS_TOKEN, SYNC_BEGIN_TIMESTAMP
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fireflysync/fireflysync/config"
	"github.com/fireflysync/fireflysync/internal/services/exchange"
	"github.com/fireflysync/fireflysync/internal/services/explorer"
	"github.com/fireflysync/fireflysync/internal/services/ledger"
	"github.com/fireflysync/fireflysync/internal/services/reconciler"
	"github.com/fireflysync/fireflysync/internal/services/resolver"
	"github.com/fireflysync/fireflysync/internal/services/syncer"
	"github.com/fireflysync/fireflysync/internal/services/writer"
	"github.com/fireflysync/fireflysync/internal/setup"
	"github.com/fireflysync/fireflysync/internal/storage/synclog"
)

// Exit codes consumed by ops tooling. Any non-zero exit requires operator
// action, never an automatic restart.
const (
	exitLedgerUnreachable  = -600
	exitNoExchangesEnabled = -700
	exitBadInterval        = -749
)

func main() {
	runSetup := flag.Bool("setup", false, "run the interactive configuration wizard")
	flag.Parse()

	if *runSetup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
	}

	cfg, err := config.Get()
	if err != nil {
		if errors.Is(err, syncer.ErrUnsupportedInterval) {
			log.Printf("%v", err)
			os.Exit(exitBadInterval)
		}
		log.Fatal(err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	firefly := ledger.NewFirefly(cfg.FireflyHost, cfg.FireflyToken, cfg.FireflyVerifyTLS, logger)
	if err := firefly.Connect(ctx); err != nil {
		logger.Error("ledger unreachable", zap.String("host", cfg.FireflyHost), zap.Error(err))
		os.Exit(exitLedgerUnreachable)
	}
	logger.Info("connected to ledger", zap.String("host", cfg.FireflyHost))

	chains, err := explorer.Supported(cfg.Explorer, logger)
	if err != nil {
		logger.Fatal("failed to initialize block explorers", zap.Error(err))
	}

	journal, err := synclog.NewWALStore(cfg.JournalDir)
	if err != nil {
		logger.Fatal("failed to open sync journal", zap.Error(err))
	}
	defer journal.Close()

	startTimestamp := cfg.SyncStart.UnixMilli()

	group, ctx := errgroup.WithContext(ctx)
	enabled := 0
	for _, platform := range exchange.Platforms() {
		creds, ok := cfg.Exchanges[platform]
		if !ok || !creds.Enabled() {
			logger.Info("exchange disabled, no credentials", zap.String("platform", platform))
			continue
		}

		client, err := exchange.Build(platform, creds, logger)
		if err != nil {
			logger.Fatal("failed to initialize exchange", zap.String("platform", platform), zap.Error(err))
		}
		if err := client.Ping(ctx); err != nil {
			logger.Warn("exchange not reachable at startup", zap.String("platform", platform), zap.Error(err))
		}

		res := resolver.New(client.Name(), firefly, logger)
		ledgerWriter := writer.New(client.Name(), firefly, res.ServiceKey(), res.UnclassifiedKey(), cfg.Debug, logger)
		rec := reconciler.New(client.Name(), firefly, res, chains, logger)
		orchestrator := syncer.NewOrchestrator(client, res, ledgerWriter, rec, journal, startTimestamp, cfg.Interval, logger)

		group.Go(func() error {
			return orchestrator.Run(ctx)
		})
		enabled++
	}

	if enabled == 0 {
		logger.Error("no exchanges enabled, set API credentials for at least one platform")
		os.Exit(exitNoExchangesEnabled)
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("sync terminated", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
