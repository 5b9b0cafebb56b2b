package processors

import (
	"fmt"

	"github.com/username/sellersync/backend/src/logger"
	"github.com/username/sellersync/backend/src/models"
)

// Classifier assigns each financial entry to an accounting bucket by
// evaluating the ordered rule table. Classification is a pure function of
// the entry's fields.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify returns the bucket for one entry and whether the sign heuristic
// decided it.
func (c *Classifier) Classify(e models.FinancialEntry) (models.Bucket, bool) {
	key := classifyKey(e)
	for _, rule := range classifyRules {
		if bucket, ok := rule.match(e, key); ok {
			return bucket, rule.heuristic
		}
	}
	// The rule table ends with an unconditional heuristic, so this is
	// unreachable; kept so the compiler sees every path return.
	return models.BucketExcluded, false
}

// ClassifyAll buckets every entry in place and returns the entries together
// with accumulated data-quality warnings. Warnings are informational and
// never abort processing.
func (c *Classifier) ClassifyAll(entries []models.FinancialEntry) ([]models.FinancialEntry, []string) {
	var warnings []string
	for i := range entries {
		bucket, heuristic := c.Classify(entries[i])
		entries[i].Bucket = bucket
		entries[i].Heuristic = heuristic
		if heuristic {
			warnings = append(warnings, fmt.Sprintf(
				"heuristic classification used for %q (%s %.2f %s): bucketed as %s by amount sign",
				entries[i].Label(), entries[i].Path, entries[i].Amount, entries[i].Currency, bucket))
		}
	}
	if len(warnings) > 0 {
		logger.L.Warn("Heuristic fallback used during classification", "count", len(warnings))
	}
	return entries, warnings
}
