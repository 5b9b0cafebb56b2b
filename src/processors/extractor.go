package processors

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/username/sellersync/backend/src/models"
)

// typeFieldNames is the fixed ordered list of fields consulted, nearest
// enclosing object first, to tag an extracted amount with its type.
var typeFieldNames = []string{
	"ChargeType",
	"FeeType",
	"AdjustmentType",
	"PromotionType",
	"TransactionType",
	"Type",
}

var orderIDFieldNames = []string{"AmazonOrderId", "SellerOrderId", "OrderId"}

var groupIDFieldNames = []string{"FinancialEventGroupId", "SettlementId", "GroupId"}

var postedAtFieldNames = []string{"PostedDate", "PostedDateTime", "TransactionPostedDate"}

// EventExtractor recursively walks nested financial event objects and
// captures every monetary sub-field as a FinancialEntry candidate. One
// shipment event may carry principal, tax, shipping and promotion amounts;
// each becomes its own entry so it can be bucketed independently.
type EventExtractor struct{}

func NewEventExtractor() *EventExtractor {
	return &EventExtractor{}
}

// Extract walks every event in every event list. The event list name (e.g.
// "ShipmentEventList") becomes the entry's event type.
func (x *EventExtractor) Extract(eventLists map[string][]any) []models.FinancialEntry {
	var entries []models.FinancialEntry

	// Stable iteration keeps extraction deterministic for a given payload.
	names := make([]string, 0, len(eventLists))
	for name := range eventLists {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, listName := range names {
		for i, raw := range eventLists[listName] {
			event, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			ctx := eventContext{
				eventType: listName,
				postedAt:  findTime(event, postedAtFieldNames),
				groupID:   findString(event, groupIDFieldNames),
				orderID:   findString(event, orderIDFieldNames),
			}
			path := listName + "[" + strconv.Itoa(i) + "]"
			entries = append(entries, x.walk(event, path, "", ctx)...)
		}
	}
	return entries
}

type eventContext struct {
	eventType string
	postedAt  time.Time
	groupID   string
	orderID   string
}

// walk descends into obj capturing money-shaped children. typeTag is the
// value of the nearest enclosing type field seen so far.
func (x *EventExtractor) walk(obj map[string]any, path, typeTag string, ctx eventContext) []models.FinancialEntry {
	if t := findString(obj, typeFieldNames); t != "" {
		typeTag = t
	}
	if id := findString(obj, orderIDFieldNames); id != "" {
		ctx.orderID = id
	}

	var entries []models.FinancialEntry
	for key, value := range obj {
		childPath := path + "." + key
		switch v := value.(type) {
		case map[string]any:
			if amount, currency, ok := moneyShape(v); ok {
				entries = append(entries, models.FinancialEntry{
					PostedAt:          ctx.postedAt,
					GroupID:           ctx.groupID,
					OrderID:           ctx.orderID,
					EventType:         ctx.eventType,
					Path:              childPath,
					AmountType:        typeTag,
					AmountDescription: key,
					Amount:            amount,
					Currency:          currency,
				})
				continue
			}
			entries = append(entries, x.walk(v, childPath, typeTag, ctx)...)
		case []any:
			for i, item := range v {
				child, ok := item.(map[string]any)
				if !ok {
					continue
				}
				entries = append(entries, x.walk(child, childPath+"["+strconv.Itoa(i)+"]", typeTag, ctx)...)
			}
		}
	}
	return entries
}

// moneyShape reports whether obj matches the {amount, currency} shape the
// marketplace uses for monetary values, in either of its spellings.
func moneyShape(obj map[string]any) (float64, string, bool) {
	var amountRaw any
	var currency string
	matched := 0

	for key, value := range obj {
		switch strings.ToLower(key) {
		case "currencyamount", "amount":
			amountRaw = value
			matched++
		case "currencycode", "currency":
			if s, ok := value.(string); ok {
				currency = s
				matched++
			}
		}
	}
	// Exactly the two monetary keys and nothing else: containers that merely
	// include an amount alongside other data are walked, not captured.
	if matched != 2 || len(obj) != 2 || currency == "" {
		return 0, "", false
	}

	switch v := amountRaw.(type) {
	case float64:
		return v, currency, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, "", false
		}
		return parsed, currency, true
	}
	return 0, "", false
}

func findString(obj map[string]any, names []string) string {
	for _, name := range names {
		if v, ok := obj[name].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func findTime(obj map[string]any, names []string) time.Time {
	for _, name := range names {
		if v, ok := obj[name].(string); ok && v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
