package feedstore

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spendlens/spendlens-go/internal/domain"
)

// Poller re-materializes the feed on a fixed interval and hands each
// snapshot to apply. A failed snapshot is logged and retried on the next
// tick; the previous snapshot stays in effect.
type Poller struct {
	store    *Store
	interval time.Duration
	apply    func(ctx context.Context, txns []domain.Transaction)
	logger   *zap.Logger
}

func NewPoller(store *Store, interval time.Duration, apply func(ctx context.Context, txns []domain.Transaction), logger *zap.Logger) *Poller {
	return &Poller{
		store:    store,
		interval: interval,
		apply:    apply,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled. It performs one snapshot immediately
// so the service does not start empty.
func (p *Poller) Run(ctx context.Context) {
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("feed poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	txns, err := p.store.Snapshot(ctx)
	if err != nil {
		p.logger.Warn("feed snapshot failed", zap.Error(err))
		return
	}
	p.logger.Debug("feed snapshot loaded", zap.Int("transactions", len(txns)))
	p.apply(ctx, txns)
}
