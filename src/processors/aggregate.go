package processors

import (
	"math"
	"sort"

	"github.com/username/sellersync/backend/src/models"
)

// Aggregate sums classified entries into per-currency bucket totals plus a
// breakdown table grouped by entry label. Input order does not affect the
// result beyond floating-point association; callers using fixed-step
// decimals get identical totals for any permutation.
func Aggregate(entries []models.FinancialEntry) ([]models.CurrencyTotals, []models.BreakdownLine) {
	totalsByCurrency := make(map[string]*models.CurrencyTotals)
	linesByKey := make(map[string]*models.BreakdownLine)

	for _, e := range entries {
		if e.Bucket == models.BucketExcluded {
			continue
		}

		totals := totalsByCurrency[e.Currency]
		if totals == nil {
			totals = &models.CurrencyTotals{Currency: e.Currency}
			totalsByCurrency[e.Currency] = totals
		}

		switch e.Bucket {
		case models.BucketRevenue:
			totals.GrossSales += e.Amount
		case models.BucketRefunds:
			totals.Refunds += e.Amount
		case models.BucketFees:
			totals.Fees += e.Amount
		case models.BucketWithholdings:
			totals.Withholdings += e.Amount
		case models.BucketOtherAdjustments:
			totals.OtherAdjustments += e.Amount
		}
		// Net cashflow counts every non-excluded entry regardless of bucket.
		totals.NetCashflow += e.Amount

		key := e.Currency + "|" + e.Label()
		line := linesByKey[key]
		if line == nil {
			line = &models.BreakdownLine{
				Label:    e.Label(),
				Bucket:   e.Bucket,
				Currency: e.Currency,
			}
			linesByKey[key] = line
		}
		line.Count++
		line.Total += e.Amount
	}

	totals := make([]models.CurrencyTotals, 0, len(totalsByCurrency))
	for _, t := range totalsByCurrency {
		t.NetSales = t.GrossSales + t.Refunds
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Currency < totals[j].Currency })

	lines := make([]models.BreakdownLine, 0, len(linesByKey))
	for _, l := range linesByKey {
		lines = append(lines, *l)
	}
	// Largest absolute contribution first; label breaks ties so the order
	// is stable across runs.
	sort.Slice(lines, func(i, j int) bool {
		ai, aj := math.Abs(lines[i].Total), math.Abs(lines[j].Total)
		if ai != aj {
			return ai > aj
		}
		return lines[i].Label < lines[j].Label
	})

	return totals, lines
}
