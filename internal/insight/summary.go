// Package insight derives the descriptive facts the dashboard cards and the
// advisor prompt are built from. Like the detectors it is pure aggregation
// over the raw snapshot; it never reads detector output.
package insight

import (
	"fmt"
	"sort"
	"time"

	"github.com/spendlens/spendlens-go/internal/domain"
)

// topN limits the merchant and city rankings.
const topN = 10

// Summarize aggregates the snapshot into an InsightReport. Rows with an
// empty categorical value are skipped by the aggregate that needs it and
// still counted by the others; an empty table yields an empty report, never
// an error.
func Summarize(txns []domain.Transaction) *domain.InsightReport {
	report := &domain.InsightReport{PeakHour: -1}

	byCategory := make(map[string]float64)
	byMerchant := make(map[string]float64)
	byCity := make(map[string]float64)
	byMonth := make(map[string]float64)
	byAmount := make(map[float64]int)
	byMode := make(map[string]int)
	byDay := make(map[time.Weekday]float64)
	byHour := make(map[int]float64)

	for _, t := range txns {
		report.TotalSpend += t.Amount

		if t.Category != "" {
			byCategory[t.Category] += t.Amount
		}
		if t.Merchant != "" {
			byMerchant[t.Merchant] += t.Amount
		}
		if t.City != "" {
			byCity[t.City] += t.Amount
		}
		if t.PaymentMode != "" {
			byMode[t.PaymentMode]++
		}
		byMonth[t.Timestamp.Format("2006-01")] += t.Amount
		byDay[t.Timestamp.Weekday()] += t.Amount
		byHour[t.Timestamp.Hour()] += t.Amount
		byAmount[t.Amount]++
	}

	if cat, total, ok := maxByTotal(byCategory); ok {
		report.TopCategory = cat
		if report.TotalSpend > 0 {
			report.TopCategoryPct = total / report.TotalSpend * 100
		}
	}

	report.TopMerchants = rankMerchants(byMerchant)
	report.TopCities = rankCities(byCity)
	report.MonthlySpend = rankMonths(byMonth)
	if month, _, ok := maxByTotal(byMonth); ok {
		report.PeakMonth = month
	}

	report.PeakDay, report.PeakHour = peakDayHour(byDay, byHour)
	report.MostFrequentAmount = modeAmount(byAmount)
	if mode, _, ok := maxByCount(byMode); ok {
		report.TopPaymentMode = mode
	}

	report.Lines = renderLines(report)
	return report
}

// maxByTotal picks the key with the largest total; ties break to the
// lexicographically smaller key so reruns agree.
func maxByTotal(m map[string]float64) (string, float64, bool) {
	var (
		bestKey   string
		bestTotal float64
		found     bool
	)
	for k, v := range m {
		if !found || v > bestTotal || (v == bestTotal && k < bestKey) {
			bestKey, bestTotal, found = k, v, true
		}
	}
	return bestKey, bestTotal, found
}

func maxByCount(m map[string]int) (string, int, bool) {
	var (
		bestKey   string
		bestCount int
		found     bool
	)
	for k, v := range m {
		if !found || v > bestCount || (v == bestCount && k < bestKey) {
			bestKey, bestCount, found = k, v, true
		}
	}
	return bestKey, bestCount, found
}

func rankMerchants(m map[string]float64) []domain.MerchantSpend {
	out := make([]domain.MerchantSpend, 0, len(m))
	for k, v := range m {
		out = append(out, domain.MerchantSpend{Merchant: k, Total: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Merchant < out[j].Merchant
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

func rankCities(m map[string]float64) []domain.CitySpend {
	out := make([]domain.CitySpend, 0, len(m))
	for k, v := range m {
		out = append(out, domain.CitySpend{City: k, Total: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].City < out[j].City
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// rankMonths returns every month in calendar order.
func rankMonths(m map[string]float64) []domain.MonthSpend {
	out := make([]domain.MonthSpend, 0, len(m))
	for k, v := range m {
		out = append(out, domain.MonthSpend{Month: k, Total: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// peakDayHour picks the peak weekday and hour by their marginal sums over
// the day x hour spend matrix. Hour ties break to the earlier hour, day
// ties to the earlier weekday.
func peakDayHour(byDay map[time.Weekday]float64, byHour map[int]float64) (string, int) {
	if len(byDay) == 0 {
		return "", -1
	}

	peakDay := time.Sunday
	var bestDay float64
	first := true
	for d := time.Sunday; d <= time.Saturday; d++ {
		v, ok := byDay[d]
		if !ok {
			continue
		}
		if first || v > bestDay {
			peakDay, bestDay, first = d, v, false
		}
	}

	peakHour := -1
	var bestHour float64
	for h := 0; h < 24; h++ {
		v, ok := byHour[h]
		if !ok {
			continue
		}
		if peakHour < 0 || v > bestHour {
			peakHour, bestHour = h, v
		}
	}
	return peakDay.String(), peakHour
}

// modeAmount is the most frequent amount; ties break to the lowest amount.
func modeAmount(m map[float64]int) float64 {
	var (
		best      float64
		bestCount int
	)
	for amount, count := range m {
		if count > bestCount || (count == bestCount && amount < best) {
			best, bestCount = amount, count
		}
	}
	return best
}

// renderLines produces the human-readable insight strings passed to the
// advisor as prompt context. Wording mirrors the dashboard cards.
func renderLines(r *domain.InsightReport) []string {
	if r.TotalSpend == 0 && len(r.TopMerchants) == 0 {
		return nil
	}

	var lines []string
	if r.TopCategory != "" {
		lines = append(lines, fmt.Sprintf("Top category: %s (%.1f%% of spend)", r.TopCategory, r.TopCategoryPct))
	}
	if len(r.TopMerchants) > 0 {
		lines = append(lines, fmt.Sprintf("Top merchant: %s - ₹%d", r.TopMerchants[0].Merchant, int(r.TopMerchants[0].Total)))
	}
	if r.PeakMonth != "" {
		for _, m := range r.MonthlySpend {
			if m.Month == r.PeakMonth {
				lines = append(lines, fmt.Sprintf("Highest spending month: %s - ₹%d", m.Month, int(m.Total)))
				break
			}
		}
	}
	if r.TopPaymentMode != "" {
		lines = append(lines, fmt.Sprintf("Most used payment mode: %s", r.TopPaymentMode))
	}
	if len(r.TopCities) > 0 {
		lines = append(lines, fmt.Sprintf("Top spending city: %s - ₹%d", r.TopCities[0].City, int(r.TopCities[0].Total)))
	}
	if r.PeakDay != "" && r.PeakHour >= 0 {
		lines = append(lines, fmt.Sprintf("Peak spending: %ss around %d:00 hours", r.PeakDay, r.PeakHour))
	}
	lines = append(lines, fmt.Sprintf("Most frequent transaction amount: ₹%g", r.MostFrequentAmount))
	return lines
}
