package processors

import (
	"strings"

	"github.com/username/sellersync/backend/src/models"
)

// Classification is an ordered rule table: the first matching rule wins.
// Keeping precedence in one place makes it explicit and independently
// testable instead of buried in cascading conditionals.

type classifyRule struct {
	name      string
	heuristic bool
	match     func(e models.FinancialEntry, key string) (models.Bucket, bool)
}

// Keyword vocabularies are matched against the normalized concatenation of
// amount type, amount description and event type.
var (
	metadataKeywords    = []string{"metadata", "promotionmeta"}
	withholdingKeywords = []string{"withheld", "withholding", "taxwithheld", "tds"}
	refundKeywords      = []string{"refund", "reversalreimbursement", "returnpostage", "goodwill"}
	chargeKeywords      = []string{"fee", "commission", "subscription", "storage", "fbainbound", "advertising"}
	revenueKeywords     = []string{"principal", "shipping", "giftwrap", "itemprice", "restockingfeerefund"}
)

// eventListBuckets maps event list names directly to a bucket.
var eventListBuckets = map[string]models.Bucket{
	"ShipmentEventList":   models.BucketRevenue,
	"RefundEventList":     models.BucketRefunds,
	"ServiceFeeEventList": models.BucketFees,
	"AdjustmentEventList": models.BucketOtherAdjustments,
	"ChargebackEventList": models.BucketOtherAdjustments,
}

var classifyRules = []classifyRule{
	{
		// Promotion metadata echoes carry no cashflow meaning.
		name: "metadata-excluded",
		match: func(e models.FinancialEntry, key string) (models.Bucket, bool) {
			if containsAny(key, metadataKeywords) {
				return models.BucketExcluded, true
			}
			return "", false
		},
	},
	{
		// Withholding tax outranks the event-list mapping: a withheld tax
		// line inside a shipment event is still a withholding.
		name: "withholding-keyword",
		match: func(e models.FinancialEntry, key string) (models.Bucket, bool) {
			if containsAny(key, withholdingKeywords) {
				return models.BucketWithholdings, true
			}
			return "", false
		},
	},
	{
		name: "event-list",
		match: func(e models.FinancialEntry, key string) (models.Bucket, bool) {
			bucket, ok := eventListBuckets[e.EventType]
			return bucket, ok
		},
	},
	{
		name: "refund-keyword",
		match: func(e models.FinancialEntry, key string) (models.Bucket, bool) {
			if containsAny(key, refundKeywords) {
				return models.BucketRefunds, true
			}
			return "", false
		},
	},
	{
		name: "charge-keyword",
		match: func(e models.FinancialEntry, key string) (models.Bucket, bool) {
			if containsAny(key, chargeKeywords) {
				return models.BucketFees, true
			}
			return "", false
		},
	},
	{
		name: "revenue-keyword",
		match: func(e models.FinancialEntry, key string) (models.Bucket, bool) {
			if containsAny(key, revenueKeywords) {
				return models.BucketRevenue, true
			}
			return "", false
		},
	},
	{
		// Last resort: bucket on sign alone. Surfaced as a data-quality
		// warning so a fallback is never indistinguishable from a rule.
		name:      "sign-heuristic",
		heuristic: true,
		match: func(e models.FinancialEntry, key string) (models.Bucket, bool) {
			if e.Amount < 0 {
				return models.BucketFees, true
			}
			return models.BucketRevenue, true
		},
	},
}

// classifyKey is the normalized haystack the keyword rules search.
func classifyKey(e models.FinancialEntry) string {
	return normalizeKeyword(e.AmountType + " " + e.AmountDescription + " " + e.EventType)
}

func normalizeKeyword(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
