// feedsim writes synthetic UPI transactions into the feed database at a
// fixed interval, standing in for a real bank export during development.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spendlens/spendlens-go/internal/config"
	"github.com/spendlens/spendlens-go/internal/feedgen"
	"github.com/spendlens/spendlens-go/internal/infra/feedstore"
	"github.com/spendlens/spendlens-go/internal/infra/observability"
)

func main() {
	_ = config.LoadDotEnv(".env")
	cfg := config.Load()

	interval := flag.Duration("interval", 5*time.Second, "time between generated transactions")
	seed := flag.Int64("seed", time.Now().UnixNano(), "rng seed, fixed for reproducible feeds")
	backfill := flag.Int("backfill", 0, "insert this many historical transactions and keep going")
	flag.Parse()

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	store, err := feedstore.NewStore(cfg.FeedDBPath)
	if err != nil {
		logger.Fatal("failed to open feed store", zap.Error(err))
	}
	defer store.Close()

	gen := feedgen.New(*seed, cfg.HomeCity)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("feed simulator starting",
		zap.String("db", cfg.FeedDBPath),
		zap.Duration("interval", *interval),
		zap.Int("backfill", *backfill),
	)

	if *backfill > 0 {
		now := time.Now().UTC()
		for i := *backfill; i > 0; i-- {
			at := now.Add(-time.Duration(i) * (60 * 24 * time.Hour / time.Duration(*backfill+1)))
			if err := store.Insert(ctx, gen.Next(at)); err != nil {
				logger.Warn("backfill insert failed", zap.Error(err))
			}
		}
		logger.Info("backfill complete", zap.Int("transactions", *backfill))
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("feed simulator stopped")
			os.Exit(0)
		case <-ticker.C:
			txn := gen.Next(time.Now().UTC())
			if err := store.Insert(ctx, txn); err != nil {
				logger.Warn("insert failed", zap.Error(err))
				continue
			}
			logger.Info("transaction generated",
				zap.String("id", txn.ID),
				zap.String("merchant", txn.Merchant),
				zap.String("category", txn.Category),
				zap.Float64("amount", txn.Amount),
			)
		}
	}
}
