// Command hlboard polls the Hyperliquid public API for the equity and fills
// of tracked wallets, records a per-dashboard time series and serves the
// browser dashboard.
//
// Usage:
//
//	hlboard --config config.yaml
//	hlboard setup        (interactive dashboard creation)
//	hlboard (uses CLI flags with defaults)
//
// Optional environment variables (a .env file is honored):
//
//	HLBOARD_DELETE_SECRET  confirmation secret for dashboard deletion
//	HLBOARD_API_BASE_URL   override for the info endpoint
//	HLBOARD_TLS_DOMAINS    comma-separated domains to enable autocert HTTPS
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hlboard/config"
	"github.com/hlboard/dashboard"
	"github.com/hlboard/internal/clients"
	"github.com/hlboard/internal/services/metrics"
	"github.com/hlboard/internal/services/poller"
	"github.com/hlboard/internal/setup"
	"github.com/hlboard/internal/storage/journal"
	"github.com/hlboard/internal/storage/notes"
	"github.com/hlboard/internal/storage/registry"
	"github.com/hlboard/internal/storage/snapshots"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	reg, err := registry.NewStore(cfg.RegistryFile, logger)
	if err != nil {
		logger.Fatal("failed to load dashboard registry", zap.Error(err))
	}
	store, err := snapshots.NewStore(cfg.DataDir)
	if err != nil {
		logger.Fatal("failed to open snapshot store", zap.Error(err))
	}

	if len(os.Args) > 1 && os.Args[len(os.Args)-1] == "setup" {
		if err := setup.Run(reg, store); err != nil {
			log.Fatal(err)
		}
		return
	}

	noteStore, err := notes.NewStore(cfg.NotesDir)
	if err != nil {
		logger.Fatal("failed to open note store", zap.Error(err))
	}
	jrnl, err := journal.New(cfg.JournalDir)
	if err != nil {
		logger.Fatal("failed to open snapshot journal", zap.Error(err))
	}
	defer jrnl.Close()

	client := clients.NewHyperliquidClient(cfg.APIBaseURL, cfg.HTTPTimeout, logger)
	engine := metrics.NewEngine(client, reg, store, jrnl, logger)
	p := poller.New(engine, cfg.PollInterval, logger)
	server := dashboard.NewServer(cfg.ListenAddr, reg, store, noteStore, engine, jrnl, cfg.DeleteSecret)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(ctx) })
	g.Go(func() error {
		if len(cfg.TLSDomains) > 0 {
			return server.StartWithAutoTLS(ctx, cfg.TLSDomains, cfg.CertCacheDir)
		}
		return server.Start(ctx)
	})

	logger.Info("hlboard started",
		zap.String("listen", cfg.ListenAddr),
		zap.Int("dashboards", len(reg.Names())))

	if err := g.Wait(); err != nil {
		logger.Error(err.Error())
	}
}
