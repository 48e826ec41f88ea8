package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spendlens/spendlens-go/internal/anomaly"
	"github.com/spendlens/spendlens-go/internal/domain"
	"github.com/spendlens/spendlens-go/internal/infra/observability"
	"github.com/spendlens/spendlens-go/internal/insight"
	"github.com/spendlens/spendlens-go/internal/port"
)

var tracer = otel.Tracer("service/analysis")

// DetectionConfig carries the tunables every detector reads.
type DetectionConfig struct {
	HomeCity        string
	DupWindow       time.Duration
	SpikeMultiplier float64
	Catalog         domain.PlanCatalog
}

// ledgerSnapshot is an immutable view of the transaction table. Swapped
// atomically so readers never see a half-loaded ledger.
type ledgerSnapshot struct {
	id       string
	source   string
	loadedAt time.Time
	txns     []domain.Transaction
}

// Analysis runs the detectors and the summarizer over the current ledger
// snapshot. Reports are cached per snapshot: a re-run over unchanged data
// is a map lookup.
type Analysis struct {
	cfg     DetectionConfig
	cache   port.Cache[*domain.AnalysisReport]
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time

	snapshot atomic.Pointer[ledgerSnapshot]
}

// NewAnalysis creates the analysis service with all dependencies injected.
func NewAnalysis(
	cfg DetectionConfig,
	cache port.Cache[*domain.AnalysisReport],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Analysis {
	return &Analysis{
		cfg:     cfg,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the wall clock. Recharge expiry and report
// timestamps follow the injected clock in tests.
func (a *Analysis) WithClock(now func() time.Time) *Analysis {
	a.now = now
	return a
}

// SetLedger replaces the current ledger. source labels where the rows came
// from ("upload" or "feed") for logs and metrics.
func (a *Analysis) SetLedger(ctx context.Context, txns []domain.Transaction, source string) string {
	snap := &ledgerSnapshot{
		id:       uuid.New().String(),
		source:   source,
		loadedAt: a.now(),
		txns:     txns,
	}
	a.snapshot.Store(snap)

	a.metrics.AddIngestedRows(source, len(txns))
	a.logger.Info("ledger replaced",
		zap.String("snapshot_id", snap.id),
		zap.String("source", source),
		zap.Int("transactions", len(txns)),
	)
	return snap.id
}

// TransactionCount reports the size of the current ledger.
func (a *Analysis) TransactionCount() int {
	if snap := a.snapshot.Load(); snap != nil {
		return len(snap.txns)
	}
	return 0
}

// Analyze produces the full report for the current ledger. Detectors and
// the summarizer run concurrently; each is pure over the snapshot, so the
// only shared state is its own result slot.
func (a *Analysis) Analyze(ctx context.Context) (*domain.AnalysisReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := a.snapshot.Load()
	if snap == nil {
		return nil, &domain.ErrNotFound{Resource: "ledger"}
	}

	if report, ok := a.cache.Get(snap.id); ok {
		a.metrics.IncrCacheHit("report")
		return report, nil
	}
	a.metrics.IncrCacheMiss("report")

	ctx, span := tracer.Start(ctx, "Analysis.Analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("snapshot.id", snap.id),
		attribute.Int("snapshot.transactions", len(snap.txns)),
	)

	start := time.Now()
	defer func() {
		a.metrics.RecordAnalysisDuration("analyze", time.Since(start))
	}()

	report := &domain.AnalysisReport{
		SnapshotID:       snap.id,
		GeneratedAt:      a.now(),
		TransactionCount: len(snap.txns),
	}

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer a.timed("duplicates")()
		report.Duplicates = anomaly.FindDuplicates(snap.txns, a.cfg.DupWindow)
		return nil
	})
	g.Go(func() error {
		defer a.timed("spikes")()
		report.Spikes = anomaly.FindSpikes(snap.txns, a.cfg.SpikeMultiplier)
		return nil
	})
	g.Go(func() error {
		defer a.timed("out_of_city")()
		report.OutOfCity = anomaly.FindOutOfCity(snap.txns, a.cfg.HomeCity)
		return nil
	})
	g.Go(func() error {
		defer a.timed("recharges")()
		report.ActiveRecharges = anomaly.ActiveRecharges(snap.txns, a.cfg.Catalog, a.now())
		return nil
	})
	g.Go(func() error {
		defer a.timed("insights")()
		report.Insights = insight.Summarize(snap.txns)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.metrics.SetAnomalies("duplicates", len(report.Duplicates))
	a.metrics.SetAnomalies("spikes", len(report.Spikes))
	a.metrics.SetAnomalies("out_of_city", len(report.OutOfCity))
	a.metrics.SetAnomalies("active_recharges", len(report.ActiveRecharges))

	a.cache.Set(snap.id, report)

	a.logger.Info("analysis complete",
		zap.String("snapshot_id", snap.id),
		zap.Int("duplicates", len(report.Duplicates)),
		zap.Int("spikes", len(report.Spikes)),
		zap.Int("out_of_city", len(report.OutOfCity)),
		zap.Int("active_recharges", len(report.ActiveRecharges)),
		zap.Duration("took", time.Since(start)),
	)
	return report, nil
}

func (a *Analysis) timed(operation string) func() {
	start := time.Now()
	return func() {
		a.metrics.RecordAnalysisDuration(operation, time.Since(start))
	}
}

// Duplicates returns near-simultaneous repeated payments in the ledger.
func (a *Analysis) Duplicates(ctx context.Context) ([]domain.Transaction, error) {
	report, err := a.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	return report.Duplicates, nil
}

// Spikes returns transactions far above the ledger's typical amount.
func (a *Analysis) Spikes(ctx context.Context) ([]domain.Transaction, error) {
	report, err := a.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	return report.Spikes, nil
}

// OutOfCity returns transactions outside the configured home city.
func (a *Analysis) OutOfCity(ctx context.Context) ([]domain.Transaction, error) {
	report, err := a.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	return report.OutOfCity, nil
}

// ActiveRecharges returns prepaid plans still in their validity window.
func (a *Analysis) ActiveRecharges(ctx context.Context) ([]domain.ActiveRecharge, error) {
	report, err := a.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	return report.ActiveRecharges, nil
}

// Insights returns the spending summary for the current ledger.
func (a *Analysis) Insights(ctx context.Context) (*domain.InsightReport, error) {
	report, err := a.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	return report.Insights, nil
}
