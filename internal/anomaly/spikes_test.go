package anomaly_test

import (
	"testing"
	"time"

	"github.com/spendlens/spendlens-go/internal/anomaly"
	"github.com/spendlens/spendlens-go/internal/domain"
)

func amounts(values ...float64) []domain.Transaction {
	out := make([]domain.Transaction, len(values))
	for i, v := range values {
		out[i] = domain.Transaction{
			ID:        string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Amount:    v,
			Merchant:  "Swiggy",
			City:      "Pune",
			TxnType:   domain.TxnDebit,
		}
	}
	return out
}

func TestFindSpikes_TenTimesMedian(t *testing.T) {
	// median of [100 110 120 130 5000] is 120; only 5000 > 1200.
	txns := amounts(100, 120, 110, 130, 5000)

	got := anomaly.FindSpikes(txns, anomaly.DefaultSpikeMultiplier)
	if len(got) != 1 {
		t.Fatalf("expected 1 spike, got %d", len(got))
	}
	if got[0].Amount != 5000 {
		t.Errorf("expected the 5000 row, got %.0f", got[0].Amount)
	}
}

func TestFindSpikes_ThresholdIsStrict(t *testing.T) {
	// Even-sized table: median of [100 100 100 100] is 100.
	at := amounts(100, 100, 100, 1000)
	if got := anomaly.FindSpikes(at, 10); len(got) != 0 {
		t.Errorf("amount == multiplier*median must not be a spike, got %d", len(got))
	}

	above := amounts(100, 100, 100, 1000.01)
	got := anomaly.FindSpikes(above, 10)
	if len(got) != 1 || got[0].Amount != 1000.01 {
		t.Errorf("amount just above threshold must be a spike, got %v", got)
	}
}

func TestFindSpikes_EvenTableMedian(t *testing.T) {
	// Sorted [90 100 200 2000]: median is (100+200)/2 = 150, threshold 1500.
	txns := amounts(90, 100, 200, 2000)

	got := anomaly.FindSpikes(txns, 10)
	if len(got) != 1 {
		t.Fatalf("expected 1 spike, got %d", len(got))
	}
	if got[0].Amount != 2000 {
		t.Errorf("expected the 2000 row, got %.0f", got[0].Amount)
	}
}

func TestFindSpikes_ZeroMedian(t *testing.T) {
	// Majority-zero table: any positive amount is a spike.
	txns := amounts(0, 0, 0, 50)
	got := anomaly.FindSpikes(txns, 10)
	if len(got) != 1 || got[0].Amount != 50 {
		t.Errorf("positive amount over zero median must be a spike, got %v", got)
	}

	// All-zero table yields none.
	if got := anomaly.FindSpikes(amounts(0, 0, 0), 10); len(got) != 0 {
		t.Errorf("all-zero table: expected no spikes, got %d", len(got))
	}
}

func TestFindSpikes_EmptyTable(t *testing.T) {
	if got := anomaly.FindSpikes(nil, 10); len(got) != 0 {
		t.Errorf("empty table: expected no spikes, got %d", len(got))
	}
}
