// Package anomaly implements the stateless detectors that turn an immutable
// transaction snapshot into duplicate clusters, spend spikes, out-of-city
// rows and currently valid recharge plans. No function mutates its input,
// so detectors may run concurrently over the same snapshot without
// synchronization.
package anomaly

import (
	"sort"
	"time"

	"github.com/spendlens/spendlens-go/internal/domain"
)

// DefaultDuplicateWindow bounds how far apart two payments may be and still
// count as the same accidental double charge.
const DefaultDuplicateWindow = 3 * time.Minute

// FindDuplicates returns every transaction that has at least one
// near-simultaneous twin: identical amount, merchant, txn_type, payment_mode
// and city, with timestamps at most window apart. Matching is pairwise, so
// overlapping windows chain transitively into one logical cluster. The
// result is sorted by timestamp with each transaction appearing once.
//
// A delta of exactly window matches; anything beyond it does not. An empty
// payment_mode is equal only to another empty payment_mode: the live feed
// omits the column entirely, and cross-source comparisons must not pair an
// unknown mode with a known one.
func FindDuplicates(txns []domain.Transaction, window time.Duration) []domain.Transaction {
	if len(txns) < 2 {
		return nil
	}

	sorted := make([]domain.Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	flagged := make([]bool, len(sorted))
	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			// Sorted input: once j falls outside the window, no later row
			// can pair with i either.
			if sorted[j].Timestamp.Sub(sorted[i].Timestamp) > window {
				break
			}
			if sameDuplicateKey(sorted[i], sorted[j]) {
				flagged[i] = true
				flagged[j] = true
			}
		}
	}

	var out []domain.Transaction
	for i, hit := range flagged {
		if hit {
			out = append(out, sorted[i])
		}
	}
	return out
}

// sameDuplicateKey reports whether two rows are attribute-identical for
// duplicate purposes. A row without a merchant never equals anything: the
// comparison is meaningless, not an error.
func sameDuplicateKey(a, b domain.Transaction) bool {
	if a.Merchant == "" || b.Merchant == "" {
		return false
	}
	return a.Amount == b.Amount &&
		a.Merchant == b.Merchant &&
		a.TxnType == b.TxnType &&
		a.PaymentMode == b.PaymentMode &&
		a.City == b.City
}
