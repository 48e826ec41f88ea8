// Package feedgen produces synthetic UPI transactions with the same shape
// and odds as a student's real ledger: mostly small debits, an occasional
// credit from home, rare out-of-city spends, and operator recharges priced
// from real prepaid plans. It backs the feedsim binary and the dev seeding
// endpoint.
package feedgen

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/spendlens/spendlens-go/internal/domain"
)

type categoryProfile struct {
	name      string
	weight    int
	merchants []string
}

var categoryProfiles = []categoryProfile{
	{"Education", 10, []string{"Byjus", "Unacademy", "Vedantu"}},
	{"Food", 25, []string{"Swiggy", "Zomato", "Dominos"}},
	{"Entertainment", 15, []string{"Netflix", "BookMyShow", "Hotstar"}},
	{"Books", 10, []string{"Amazon", "Flipkart", "Kindle"}},
	{"Transport", 10, []string{"Ola", "Uber", "IRCTC"}},
	{domain.CategoryRecharge, 10, []string{"Jio", "Airtel", "Vi", "BSNL"}},
}

var rechargePlans = map[string][]float64{
	"Jio":    {149, 199, 239, 299, 349, 399},
	"Airtel": {199, 239, 299, 349, 399},
	"Vi":     {179, 199, 269, 299},
	"BSNL":   {187, 247, 319, 399},
}

var personMerchants = []string{"Mom", "Dad", "Ramesh Veggie", "Ankita", "Ajay", "Local Kirana", "Street Vendor"}

var incomeSources = []string{"Mom", "Dad", "Scholarship", "Friend Refund"}

var unusualCities = []string{"Shimla", "Goa", "Leh", "Gangtok"}

// Generator emits one synthetic transaction per call. Not safe for
// concurrent use; give each goroutine its own.
type Generator struct {
	rng      *rand.Rand
	homeCity string
}

// New creates a generator. The seed makes runs reproducible in tests; pass
// time.Now().UnixNano() for a live feed.
func New(seed int64, homeCity string) *Generator {
	return &Generator{
		rng:      rand.New(rand.NewSource(seed)),
		homeCity: homeCity,
	}
}

// Next produces one transaction stamped at now.
func (g *Generator) Next(now time.Time) domain.Transaction {
	t := domain.Transaction{
		ID:        uuid.New().String(),
		Timestamp: now,
		City:      g.homeCity,
	}

	if g.rng.Float64() < 0.15 {
		t.TxnType = domain.TxnCredit
		t.Category = "Income"
		t.Merchant = pick(g.rng, incomeSources)
		t.Amount = float64(300 + g.rng.Intn(5701))
		return t
	}

	t.TxnType = domain.TxnDebit
	if g.rng.Float64() < 0.25 {
		t.Category = "Friends/Vendor"
		t.Merchant = pick(g.rng, personMerchants)
		t.Amount = float64(10 + g.rng.Intn(1491))
	} else {
		profile := g.pickCategory()
		t.Category = profile.name
		t.Merchant = pick(g.rng, profile.merchants)
		t.Amount = g.amountFor(profile.name, t.Merchant)
	}

	// Rare trip: ~1% of debits happen away from home.
	if g.rng.Float64() < 0.01 {
		t.City = pick(g.rng, unusualCities)
	}
	return t
}

func (g *Generator) pickCategory() categoryProfile {
	total := 0
	for _, p := range categoryProfiles {
		total += p.weight
	}
	n := g.rng.Intn(total)
	for _, p := range categoryProfiles {
		if n < p.weight {
			return p
		}
		n -= p.weight
	}
	return categoryProfiles[len(categoryProfiles)-1]
}

func (g *Generator) amountFor(category, merchant string) float64 {
	switch category {
	case domain.CategoryRecharge:
		return pick(g.rng, rechargePlans[merchant])
	case "Education":
		return float64(500 + g.rng.Intn(2001))
	case "Books":
		return float64(100 + g.rng.Intn(1701))
	default:
		return float64(1 + g.rng.Intn(3000))
	}
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.Intn(len(items))]
}
