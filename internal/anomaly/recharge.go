package anomaly

import (
	"sort"
	"time"

	"github.com/spendlens/spendlens-go/internal/domain"
)

// planKey identifies a plan purchase for dedup purposes.
type planKey struct {
	merchant string
	amount   float64
}

// ActiveRecharges reconstructs the currently valid prepaid plans from the
// recharge purchase history. Purchases are walked most-recent-first and
// folded through an explicit seen map keyed by (merchant, amount): the
// first purchase of a pair wins and blocks every older purchase of the same
// pair, whether or not it is still valid. Amounts the catalog does not know
// are recharge spends of unknown validity; they are skipped silently and
// block nothing. A plan is active while its due date is strictly after now,
// so a plan expiring at exactly now is already lapsed.
//
// Output keeps encounter order: most recent purchase first, not re-sorted
// by due date. DaysRemaining is floored to whole days.
//
// Known limitation: a newer repurchase supersedes an older, possibly
// still-running plan of the same pair. Real operators let plans stack;
// changing that here would change reported output, so the most-recent-wins
// policy stays.
func ActiveRecharges(txns []domain.Transaction, catalog domain.PlanCatalog, now time.Time) []domain.ActiveRecharge {
	var recharges []domain.Transaction
	for _, t := range txns {
		if t.Category == domain.CategoryRecharge {
			recharges = append(recharges, t)
		}
	}
	sort.SliceStable(recharges, func(i, j int) bool {
		return recharges[i].Timestamp.After(recharges[j].Timestamp)
	})

	seen := make(map[planKey]bool)
	var out []domain.ActiveRecharge
	for _, t := range recharges {
		key := planKey{merchant: t.Merchant, amount: t.Amount}
		if seen[key] {
			continue
		}

		validity, ok := catalog[t.Amount]
		if !ok {
			continue
		}
		seen[key] = true

		due := t.Timestamp.AddDate(0, 0, validity)
		if !due.After(now) {
			// Lapsed, but it still blocks older purchases of the pair.
			continue
		}

		out = append(out, domain.ActiveRecharge{
			Merchant:      t.Merchant,
			Amount:        t.Amount,
			StartDate:     t.Timestamp,
			DueDate:       due,
			ValidityDays:  validity,
			DaysRemaining: int(due.Sub(now).Hours() / 24),
		})
	}
	return out
}
