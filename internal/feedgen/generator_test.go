package feedgen_test

import (
	"testing"
	"time"

	"github.com/spendlens/spendlens-go/internal/domain"
	"github.com/spendlens/spendlens-go/internal/feedgen"
)

func TestGenerator_ProducesValidTransactions(t *testing.T) {
	g := feedgen.New(42, "Pune")
	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)

	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		txn := g.Next(now)

		if txn.ID == "" || seen[txn.ID] {
			t.Fatalf("iteration %d: missing or repeated id %q", i, txn.ID)
		}
		seen[txn.ID] = true

		if txn.TxnType != domain.TxnDebit && txn.TxnType != domain.TxnCredit {
			t.Fatalf("iteration %d: bad txn_type %q", i, txn.TxnType)
		}
		if txn.Amount <= 0 {
			t.Fatalf("iteration %d: non-positive amount %g", i, txn.Amount)
		}
		if txn.Merchant == "" || txn.Category == "" || txn.City == "" {
			t.Fatalf("iteration %d: incomplete transaction %+v", i, txn)
		}
		if txn.TxnType == domain.TxnCredit && txn.Category != "Income" {
			t.Fatalf("iteration %d: credit with category %q", i, txn.Category)
		}
	}
}

func TestGenerator_RechargesUseCataloguedPlans(t *testing.T) {
	g := feedgen.New(7, "Pune")
	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	catalog := domain.DefaultPlanCatalog()

	found := false
	for i := 0; i < 2000; i++ {
		txn := g.Next(now)
		if txn.Category != domain.CategoryRecharge {
			continue
		}
		found = true
		if _, ok := catalog[txn.Amount]; !ok {
			t.Fatalf("recharge amount %g not in catalog", txn.Amount)
		}
	}
	if !found {
		t.Fatal("expected at least one recharge in 2000 draws")
	}
}

func TestGenerator_Reproducible(t *testing.T) {
	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	a := feedgen.New(99, "Pune")
	b := feedgen.New(99, "Pune")

	for i := 0; i < 50; i++ {
		ta, tb := a.Next(now), b.Next(now)
		if ta.Merchant != tb.Merchant || ta.Amount != tb.Amount || ta.Category != tb.Category {
			t.Fatalf("iteration %d: generators diverged: %+v vs %+v", i, ta, tb)
		}
	}
}
