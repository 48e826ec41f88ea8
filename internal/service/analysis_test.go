package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spendlens/spendlens-go/internal/domain"
	"github.com/spendlens/spendlens-go/internal/infra/cache"
	"github.com/spendlens/spendlens-go/internal/infra/observability"
	"github.com/spendlens/spendlens-go/internal/service"
)

var testNow = time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

func newAnalysis() *service.Analysis {
	cfg := service.DetectionConfig{
		HomeCity:        "Pune",
		DupWindow:       3 * time.Minute,
		SpikeMultiplier: 10,
		Catalog:         domain.DefaultPlanCatalog(),
	}
	return service.NewAnalysis(
		cfg,
		cache.New[*domain.AnalysisReport](5*time.Minute),
		observability.NewMetrics(),
		zap.NewNop(),
	).WithClock(func() time.Time { return testNow })
}

func testLedger() []domain.Transaction {
	at := func(d time.Duration) time.Time {
		return time.Date(2025, 7, 10, 10, 0, 0, 0, time.UTC).Add(d)
	}
	debit := func(id string, ts time.Time, amount float64, merchant, category, city string) domain.Transaction {
		return domain.Transaction{
			ID: id, Timestamp: ts, Amount: amount,
			Merchant: merchant, Category: category, City: city,
			TxnType: domain.TxnDebit, PaymentMode: "UPI",
		}
	}
	return []domain.Transaction{
		debit("t-1", at(0), 250, "Swiggy", "Food", "Pune"),
		debit("t-2", at(90*time.Second), 250, "Swiggy", "Food", "Pune"),
		debit("t-3", at(time.Hour), 120, "Zomato", "Food", "Pune"),
		debit("t-4", at(2*time.Hour), 9000, "Croma", "Electronics", "Pune"),
		debit("t-5", at(3*time.Hour), 180, "Uber", "Transport", "Goa"),
		debit("t-6", at(4*time.Hour), 349, "Jio", domain.CategoryRecharge, "Pune"),
	}
}

func TestAnalyze_FullReport(t *testing.T) {
	svc := newAnalysis()
	svc.SetLedger(context.Background(), testLedger(), "upload")

	report, err := svc.Analyze(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if report.TransactionCount != 6 {
		t.Errorf("expected 6 transactions, got %d", report.TransactionCount)
	}
	if len(report.Duplicates) != 2 {
		t.Errorf("expected 2 duplicates, got %v", report.Duplicates)
	}
	if len(report.Spikes) != 1 || report.Spikes[0].ID != "t-4" {
		t.Errorf("expected t-4 as the only spike, got %v", report.Spikes)
	}
	if len(report.OutOfCity) != 1 || report.OutOfCity[0].ID != "t-5" {
		t.Errorf("expected t-5 as the only out-of-city txn, got %v", report.OutOfCity)
	}
	// Jio 349 bought July 10 with 28-day validity is active on July 15.
	if len(report.ActiveRecharges) != 1 || report.ActiveRecharges[0].Merchant != "Jio" {
		t.Errorf("expected one active Jio recharge, got %v", report.ActiveRecharges)
	}
	if report.Insights == nil || report.Insights.TopCategory != "Electronics" {
		t.Errorf("expected Electronics as top category, got %+v", report.Insights)
	}
	if !report.GeneratedAt.Equal(testNow) {
		t.Errorf("expected report stamped with the injected clock, got %v", report.GeneratedAt)
	}
}

func TestAnalyze_NoLedgerLoaded(t *testing.T) {
	svc := newAnalysis()

	_, err := svc.Analyze(context.Background())
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAnalyze_ReportCachedPerSnapshot(t *testing.T) {
	svc := newAnalysis()
	svc.SetLedger(context.Background(), testLedger(), "upload")

	first, err := svc.Analyze(context.Background())
	if err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	second, err := svc.Analyze(context.Background())
	if err != nil {
		t.Fatalf("second analyze: %v", err)
	}
	if first != second {
		t.Error("expected the cached report pointer on an unchanged snapshot")
	}

	// A new ledger gets a new snapshot and a fresh report.
	svc.SetLedger(context.Background(), testLedger()[:3], "feed")
	third, err := svc.Analyze(context.Background())
	if err != nil {
		t.Fatalf("third analyze: %v", err)
	}
	if third == second {
		t.Error("expected a fresh report after the ledger changed")
	}
	if third.SnapshotID == second.SnapshotID {
		t.Error("expected a new snapshot id after the ledger changed")
	}
}

func TestAnalyze_AccessorsDeriveFromReport(t *testing.T) {
	svc := newAnalysis()
	svc.SetLedger(context.Background(), testLedger(), "upload")
	ctx := context.Background()

	spikes, err := svc.Spikes(ctx)
	if err != nil {
		t.Fatalf("spikes: %v", err)
	}
	if len(spikes) != 1 {
		t.Errorf("expected 1 spike, got %d", len(spikes))
	}

	recharges, err := svc.ActiveRecharges(ctx)
	if err != nil {
		t.Fatalf("recharges: %v", err)
	}
	if len(recharges) != 1 {
		t.Errorf("expected 1 recharge, got %d", len(recharges))
	}

	insights, err := svc.Insights(ctx)
	if err != nil {
		t.Fatalf("insights: %v", err)
	}
	if insights.TotalSpend == 0 {
		t.Error("expected a non-zero total spend")
	}
}

func TestAnalyze_ContextCancelled(t *testing.T) {
	svc := newAnalysis()
	svc.SetLedger(context.Background(), testLedger(), "upload")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Analyze(ctx); err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}

func TestAnalyze_EmptyLedgerYieldsEmptyReport(t *testing.T) {
	svc := newAnalysis()
	svc.SetLedger(context.Background(), nil, "upload")

	report, err := svc.Analyze(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.TransactionCount != 0 || len(report.Duplicates) != 0 || len(report.Spikes) != 0 {
		t.Errorf("expected an empty report, got %+v", report)
	}
}
