package spapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/username/sellersync/backend/src/logger"
)

const (
	financialEventsPath = "/finances/v0/financialEvents"

	financesPageSize = 100
)

type financialEventsResponse struct {
	Payload struct {
		NextToken       string           `json:"NextToken"`
		FinancialEvents map[string][]any `json:"FinancialEvents"`
	} `json:"payload"`
}

// ListFinancialEvents fetches one page of financial events posted inside the
// window. The continuation token is opaque and must be echoed back verbatim
// on the next call; it replaces the window parameters when present.
func (c *Client) ListFinancialEvents(ctx context.Context, postedAfter, postedBefore time.Time, nextToken string) (map[string][]any, string, error) {
	query := url.Values{}
	if nextToken != "" {
		query.Set("NextToken", nextToken)
	} else {
		query.Set("PostedAfter", postedAfter.UTC().Format(time.RFC3339))
		if !postedBefore.IsZero() {
			query.Set("PostedBefore", postedBefore.UTC().Format(time.RFC3339))
		}
		query.Set("MaxResultsPerPage", strconv.Itoa(financesPageSize))
	}

	var resp financialEventsResponse
	if err := c.call(ctx, http.MethodGet, financialEventsPath, query, nil, &resp); err != nil {
		return nil, "", err
	}
	return resp.Payload.FinancialEvents, resp.Payload.NextToken, nil
}

// ListAllFinancialEvents drains every page for the window, merging event
// lists by name. Each page fetch gets its own wall-clock budget, independent
// of the report poller's backoff budget.
func (c *Client) ListAllFinancialEvents(ctx context.Context, postedAfter, postedBefore time.Time, pageBudget time.Duration) (map[string][]any, error) {
	merged := make(map[string][]any)
	nextToken := ""
	page := 0

	for {
		page++
		pageCtx := ctx
		cancel := context.CancelFunc(func() {})
		if pageBudget > 0 {
			pageCtx, cancel = context.WithTimeout(ctx, pageBudget)
		}

		events, token, err := c.ListFinancialEvents(pageCtx, postedAfter, postedBefore, nextToken)
		cancel()
		if err != nil {
			return nil, err
		}

		for name, list := range events {
			merged[name] = append(merged[name], list...)
		}

		if token == "" {
			break
		}
		nextToken = token
	}

	logger.L.Info("Financial events fetched", "pages", page, "eventLists", len(merged))
	return merged, nil
}
