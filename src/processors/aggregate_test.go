package processors

import (
	"math/rand"
	"testing"

	"github.com/username/sellersync/backend/src/models"
)

func sampleEntries() []models.FinancialEntry {
	return []models.FinancialEntry{
		{Bucket: models.BucketRevenue, Amount: 100, Currency: "EUR", AmountType: "ItemPrice", AmountDescription: "Principal"},
		{Bucket: models.BucketRevenue, Amount: 25, Currency: "EUR", AmountType: "ItemPrice", AmountDescription: "Shipping"},
		{Bucket: models.BucketRefunds, Amount: -30, Currency: "EUR", AmountType: "Refund", AmountDescription: "Principal"},
		{Bucket: models.BucketFees, Amount: -15, Currency: "EUR", AmountType: "Fee", AmountDescription: "Commission"},
		{Bucket: models.BucketWithholdings, Amount: -5, Currency: "EUR", AmountType: "Tax", AmountDescription: "Withheld"},
		{Bucket: models.BucketOtherAdjustments, Amount: 2, Currency: "EUR", AmountType: "Adjustment", AmountDescription: "Chargeback"},
		{Bucket: models.BucketExcluded, Amount: 999, Currency: "EUR", AmountType: "Metadata", AmountDescription: "Promo"},
		{Bucket: models.BucketRevenue, Amount: 50, Currency: "USD", AmountType: "ItemPrice", AmountDescription: "Principal"},
	}
}

func TestAggregateTotals(t *testing.T) {
	totals, _ := Aggregate(sampleEntries())

	if len(totals) != 2 {
		t.Fatalf("currencies = %d, want 2", len(totals))
	}
	// Sorted by currency code.
	if totals[0].Currency != "EUR" || totals[1].Currency != "USD" {
		t.Fatalf("currency order = %s, %s, want EUR, USD", totals[0].Currency, totals[1].Currency)
	}

	eur := totals[0]
	if eur.GrossSales != 125 {
		t.Fatalf("grossSales = %v, want 125", eur.GrossSales)
	}
	if eur.Refunds != -30 {
		t.Fatalf("refunds = %v, want -30", eur.Refunds)
	}
	if eur.NetSales != 95 {
		t.Fatalf("netSales = %v, want 95 (gross + refunds)", eur.NetSales)
	}
	if eur.Fees != -15 {
		t.Fatalf("fees = %v, want -15", eur.Fees)
	}
	if eur.Withholdings != -5 {
		t.Fatalf("withholdings = %v, want -5", eur.Withholdings)
	}
	if eur.OtherAdjustments != 2 {
		t.Fatalf("otherAdjustments = %v, want 2", eur.OtherAdjustments)
	}
	// Excluded entries must not appear anywhere, including net cashflow.
	if eur.NetCashflow != 77 {
		t.Fatalf("netCashflow = %v, want 77", eur.NetCashflow)
	}
}

func TestAggregateOrderIndependence(t *testing.T) {
	base, baseLines := Aggregate(sampleEntries())

	shuffled := sampleEntries()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 5; i++ {
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		totals, lines := Aggregate(shuffled)
		if len(totals) != len(base) {
			t.Fatalf("shuffle %d: currency count changed", i)
		}
		for j := range base {
			if totals[j] != base[j] {
				t.Fatalf("shuffle %d: totals[%d] = %+v, want %+v", i, j, totals[j], base[j])
			}
		}
		if len(lines) != len(baseLines) {
			t.Fatalf("shuffle %d: breakdown length changed", i)
		}
		for j := range baseLines {
			if lines[j] != baseLines[j] {
				t.Fatalf("shuffle %d: line[%d] = %+v, want %+v", i, j, lines[j], baseLines[j])
			}
		}
	}
}

func TestAggregateBreakdownOrderAndGrouping(t *testing.T) {
	entries := []models.FinancialEntry{
		{Bucket: models.BucketRevenue, Amount: 10, Currency: "EUR", AmountType: "ItemPrice", AmountDescription: "Principal"},
		{Bucket: models.BucketRevenue, Amount: 10, Currency: "EUR", AmountType: "ItemPrice", AmountDescription: "Principal"},
		{Bucket: models.BucketFees, Amount: -50, Currency: "EUR", AmountType: "Fee", AmountDescription: "Commission"},
	}
	_, lines := Aggregate(entries)

	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2 (same label groups together)", len(lines))
	}
	// Largest absolute total first.
	if lines[0].Label != "Fee • Commission" || lines[0].Total != -50 {
		t.Fatalf("lines[0] = %+v, want Fee • Commission / -50", lines[0])
	}
	if lines[1].Label != "ItemPrice • Principal" || lines[1].Total != 20 || lines[1].Count != 2 {
		t.Fatalf("lines[1] = %+v, want ItemPrice • Principal / 20 / count 2", lines[1])
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	totals, lines := Aggregate(nil)
	if len(totals) != 0 || len(lines) != 0 {
		t.Fatalf("Aggregate(nil) = %d totals, %d lines, want empty", len(totals), len(lines))
	}
}
