package anomaly

import (
	"sort"

	"github.com/spendlens/spendlens-go/internal/domain"
)

// DefaultSpikeMultiplier is how many times the median an amount must exceed
// to be flagged.
const DefaultSpikeMultiplier = 10.0

// FindSpikes returns every transaction whose amount strictly exceeds
// multiplier times the median amount of the whole table. The table is not
// windowed by time or category. With a zero median (all-zero amounts are
// possible in a fresh feed) any positive amount is a spike; an all-zero
// table yields none.
func FindSpikes(txns []domain.Transaction, multiplier float64) []domain.Transaction {
	if len(txns) == 0 {
		return nil
	}

	median := medianAmount(txns)
	threshold := multiplier * median

	var out []domain.Transaction
	for _, t := range txns {
		if t.Amount > threshold {
			out = append(out, t)
		}
	}
	return out
}

// medianAmount is the conventional median: the mean of the two central
// values when the table has an even number of rows.
func medianAmount(txns []domain.Transaction) float64 {
	amounts := make([]float64, len(txns))
	for i, t := range txns {
		amounts[i] = t.Amount
	}
	sort.Float64s(amounts)

	n := len(amounts)
	if n%2 == 1 {
		return amounts[n/2]
	}
	return (amounts[n/2-1] + amounts[n/2]) / 2
}
