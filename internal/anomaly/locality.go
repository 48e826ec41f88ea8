package anomaly

import "github.com/spendlens/spendlens-go/internal/domain"

// FindOutOfCity returns every transaction whose city differs from homeCity
// by exact string comparison. No case folding and no whitespace trimming:
// the feed and the detector must agree on the literal city spelling, and a
// mismatch there should surface as an anomaly rather than be papered over.
func FindOutOfCity(txns []domain.Transaction, homeCity string) []domain.Transaction {
	var out []domain.Transaction
	for _, t := range txns {
		if t.City != homeCity {
			out = append(out, t)
		}
	}
	return out
}
