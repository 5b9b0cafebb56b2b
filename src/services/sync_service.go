package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/username/sellersync/backend/src/logger"
	"github.com/username/sellersync/backend/src/models"
	"github.com/username/sellersync/backend/src/parsers"
	"github.com/username/sellersync/backend/src/processors"
	"github.com/username/sellersync/backend/src/spapi"
)

const (
	ChannelAmazon = "amazon"

	// Fixed concurrency for per-order item fetches. Bounds the outbound
	// request rate against the platform's throttling without serializing
	// unrelated work.
	orderItemWorkers = 3
)

// reportKinds maps API-facing sync kinds to the report type each one
// requests. Orders and cashflow are API-driven and absent here.
var reportKinds = map[string]models.ReportType{
	"settlements": models.ReportTypeSettlements,
	"inventory":   models.ReportTypeInventory,
	"returns":     models.ReportTypeReturns,
}

type syncServiceImpl struct {
	api          MarketplaceAPI
	backend      Backend
	parser       *parsers.ReportParser
	extractor    *processors.EventExtractor
	classifier   *processors.Classifier
	emailService EmailService

	financesPageBudget time.Duration
}

func NewSyncService(
	api MarketplaceAPI,
	backend Backend,
	parser *parsers.ReportParser,
	extractor *processors.EventExtractor,
	classifier *processors.Classifier,
	emailService EmailService,
	financesPageBudget time.Duration,
) SyncService {
	return &syncServiceImpl{
		api:                api,
		backend:            backend,
		parser:             parser,
		extractor:          extractor,
		classifier:         classifier,
		emailService:       emailService,
		financesPageBudget: financesPageBudget,
	}
}

// RunSync executes one end-to-end pipeline: submit, poll, fetch, parse or
// classify, upsert. The run record is created before any remote call and
// updated at every phase transition; on failure it keeps the partial counts
// achieved so far. Retrying means re-invoking, which creates a new run.
func (s *syncServiceImpl) RunSync(ctx context.Context, kind string, req SyncRequest) (*SyncResult, error) {
	reportType, isReport := reportKinds[kind]
	if !isReport && kind != "orders" && kind != "cashflow" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSyncKind, kind)
	}

	run := &models.SyncRun{
		CompanyID:     req.CompanyID,
		Channel:       ChannelAmazon,
		ReportType:    reportType,
		MarketplaceID: req.MarketplaceID,
		StartDate:     req.StartDate.UTC().Format(time.RFC3339),
		EndDate:       req.EndDate.UTC().Format(time.RFC3339),
		Status:        "processing",
	}
	if err := s.backend.AppendRun(run); err != nil {
		return nil, err
	}

	startTime := time.Now()
	logger.L.Info("Sync run started", "runId", run.ID, "kind", kind, "companyId", req.CompanyID)

	var warnings []string
	var err error
	switch kind {
	case "orders":
		err = s.runOrdersSync(ctx, run, req)
	case "cashflow":
		warnings, err = s.runCashflowSync(ctx, run, req)
	case "settlements":
		warnings, err = s.runSettlementSync(ctx, run, req)
	case "inventory":
		err = s.runInventorySync(ctx, run, req)
	case "returns":
		err = s.runReturnsSync(ctx, run, req)
	}

	if err != nil {
		run.Status = "failed: " + err.Error()
		run.LastError = err.Error()
		if updateErr := s.backend.UpdateRun(run); updateErr != nil {
			logger.L.Error("Failed to persist failed run status", "runId", run.ID, "error", updateErr)
		}
		logger.L.Error("Sync run failed", "runId", run.ID, "kind", kind, "error", err,
			"rowsFetched", run.RowsFetched, "rowsUpserted", run.RowsUpserted)
		if s.emailService != nil {
			if alertErr := s.emailService.SendSyncFailureAlert(req.CompanyID, kind, run.ID, err.Error()); alertErr != nil {
				logger.L.Warn("Failed to send sync failure alert", "runId", run.ID, "error", alertErr)
			}
		}
		return &SyncResult{
			RunID:        run.ID,
			Status:       run.Status,
			RowsFetched:  run.RowsFetched,
			RowsUpserted: run.RowsUpserted,
			Warnings:     warnings,
		}, err
	}

	run.Status = "completed"
	if err := s.backend.UpdateRun(run); err != nil {
		return nil, err
	}
	logger.L.Info("Sync run completed", "runId", run.ID, "kind", kind,
		"rowsFetched", run.RowsFetched, "rowsUpserted", run.RowsUpserted,
		"duration", time.Since(startTime))

	return &SyncResult{
		RunID:        run.ID,
		Status:       run.Status,
		RowsFetched:  run.RowsFetched,
		RowsUpserted: run.RowsUpserted,
		Warnings:     warnings,
	}, nil
}

func (s *syncServiceImpl) GetRun(id int64) (*models.SyncRun, error) {
	return s.backend.GetRun(id)
}

func (s *syncServiceImpl) ListRuns(companyID string) ([]models.SyncRun, error) {
	return s.backend.ListRuns(companyID)
}

// fetchReportTable runs the report lifecycle and parses the payload. A
// DONE_NO_DATA report returns (nil, nil): zero rows, not an error.
func (s *syncServiceImpl) fetchReportTable(ctx context.Context, run *models.SyncRun, req SyncRequest, reportType models.ReportType) (*models.ParsedTable, error) {
	job := &models.ReportJob{
		Type:          reportType,
		MarketplaceID: req.MarketplaceID,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		Status:        models.ReportStatusRequested,
	}

	doc, err := s.api.RunReport(ctx, job)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	text, err := s.api.FetchDocument(ctx, doc)
	if err != nil {
		return nil, err
	}

	table, err := s.parser.Parse(text, reportType)
	if err != nil {
		return nil, err
	}

	run.RowsFetched = len(table.Rows)
	if err := s.backend.UpdateRun(run); err != nil {
		return nil, err
	}
	return table, nil
}

func (s *syncServiceImpl) runSettlementSync(ctx context.Context, run *models.SyncRun, req SyncRequest) ([]string, error) {
	table, err := s.fetchReportTable(ctx, run, req, models.ReportTypeSettlements)
	if err != nil || table == nil {
		return nil, err
	}

	var warnings []string
	var facts []map[string]any
	for _, row := range table.Rows {
		amount, ok := parsers.ParseAmount(row[parsers.FieldAmount])
		if !ok {
			// No parseable amount: skip, don't zero-fill.
			continue
		}

		entry := models.FinancialEntry{
			EventType:         string(models.ReportTypeSettlements),
			AmountType:        row[parsers.FieldType],
			AmountDescription: row[parsers.FieldDescription],
			Amount:            amount,
			Currency:          row[parsers.FieldCurrency],
		}
		bucket, heuristic := s.classifier.Classify(entry)
		if heuristic {
			warnings = append(warnings, fmt.Sprintf(
				"heuristic classification used for settlement line %q / %q",
				entry.AmountType, entry.AmountDescription))
		}

		facts = append(facts, map[string]any{
			"company_id":         req.CompanyID,
			"marketplace_id":     req.MarketplaceID,
			"settlement_id":      row[parsers.FieldSettlementID],
			"order_id":           row[parsers.FieldOrderID],
			"posted_at":          row[parsers.FieldDate],
			"amount_type":        row[parsers.FieldType],
			"amount_description": row[parsers.FieldDescription],
			"bucket":             string(bucket),
			"amount":             amount,
			"currency":           row[parsers.FieldCurrency],
		})
	}

	written, err := s.backend.UpsertFacts("settlement_entries", facts,
		[]string{"company_id", "marketplace_id", "settlement_id", "order_id", "posted_at", "amount_type", "amount_description"})
	run.RowsUpserted = written
	if err != nil {
		return warnings, err
	}
	return warnings, s.backend.UpdateRun(run)
}

func (s *syncServiceImpl) runInventorySync(ctx context.Context, run *models.SyncRun, req SyncRequest) error {
	table, err := s.fetchReportTable(ctx, run, req, models.ReportTypeInventory)
	if err != nil || table == nil {
		return err
	}

	var facts []map[string]any
	for _, row := range table.Rows {
		if row[parsers.FieldSKU] == "" {
			continue
		}
		quantity, _ := strconv.Atoi(row[parsers.FieldQuantity])
		price, _ := parsers.ParseAmount(row[parsers.FieldAmount])
		facts = append(facts, map[string]any{
			"company_id":     req.CompanyID,
			"marketplace_id": req.MarketplaceID,
			"sku":            row[parsers.FieldSKU],
			"asin":           row[parsers.FieldASIN],
			"fnsku":          row[parsers.FieldFNSKU],
			"description":    row[parsers.FieldDescription],
			"condition":      row[parsers.FieldStatus],
			"quantity":       quantity,
			"price":          price,
			"currency":       row[parsers.FieldCurrency],
		})
	}

	written, err := s.backend.UpsertFacts("inventory_levels", facts,
		[]string{"company_id", "marketplace_id", "sku"})
	run.RowsUpserted = written
	if err != nil {
		return err
	}
	return s.backend.UpdateRun(run)
}

func (s *syncServiceImpl) runReturnsSync(ctx context.Context, run *models.SyncRun, req SyncRequest) error {
	table, err := s.fetchReportTable(ctx, run, req, models.ReportTypeReturns)
	if err != nil || table == nil {
		return err
	}

	var facts []map[string]any
	for _, row := range table.Rows {
		if row[parsers.FieldOrderID] == "" {
			continue
		}
		quantity, _ := strconv.Atoi(row[parsers.FieldQuantity])
		facts = append(facts, map[string]any{
			"company_id":     req.CompanyID,
			"marketplace_id": req.MarketplaceID,
			"order_id":       row[parsers.FieldOrderID],
			"sku":            row[parsers.FieldSKU],
			"return_date":    row[parsers.FieldDate],
			"reason":         row[parsers.FieldReason],
			"status":         row[parsers.FieldStatus],
			"quantity":       quantity,
		})
	}

	written, err := s.backend.UpsertFacts("return_events", facts,
		[]string{"company_id", "marketplace_id", "order_id", "sku", "return_date"})
	run.RowsUpserted = written
	if err != nil {
		return err
	}
	return s.backend.UpdateRun(run)
}

// runOrdersSync pages through the orders listing and enriches each order
// with its line items through a bounded worker pool.
func (s *syncServiceImpl) runOrdersSync(ctx context.Context, run *models.SyncRun, req SyncRequest) error {
	var orders []spapi.Order
	nextToken := ""
	for {
		page, token, err := s.api.ListOrders(ctx, req.MarketplaceID, req.StartDate, req.EndDate, nextToken)
		if err != nil {
			return err
		}
		orders = append(orders, page...)
		if token == "" {
			break
		}
		nextToken = token
	}

	run.RowsFetched = len(orders)
	if err := s.backend.UpdateRun(run); err != nil {
		return err
	}
	if len(orders) == 0 {
		return nil
	}

	itemsByOrder, err := s.fetchOrderItems(ctx, orders)
	if err != nil {
		return err
	}

	var facts []map[string]any
	for _, order := range orders {
		items := itemsByOrder[order.AmazonOrderID]
		if len(items) == 0 {
			facts = append(facts, orderFact(req, order, nil))
			continue
		}
		for i := range items {
			facts = append(facts, orderFact(req, order, &items[i]))
		}
	}

	written, err := s.backend.UpsertFacts("marketplace_orders", facts,
		[]string{"company_id", "marketplace_id", "order_id", "sku"})
	run.RowsUpserted = written
	if err != nil {
		return err
	}
	return s.backend.UpdateRun(run)
}

func orderFact(req SyncRequest, order spapi.Order, item *spapi.OrderItem) map[string]any {
	fact := map[string]any{
		"company_id":     req.CompanyID,
		"marketplace_id": req.MarketplaceID,
		"order_id":       order.AmazonOrderID,
		"purchase_date":  order.PurchaseDate,
		"order_status":   order.OrderStatus,
		"sku":            "",
		"asin":           "",
		"quantity":       0,
		"amount":         0.0,
		"currency":       "",
	}
	if order.OrderTotal != nil {
		if amount, ok := parsers.ParseAmount(order.OrderTotal.Amount); ok {
			fact["amount"] = amount
		}
		fact["currency"] = order.OrderTotal.CurrencyCode
	}
	if item != nil {
		fact["sku"] = item.SellerSKU
		fact["asin"] = item.ASIN
		fact["quantity"] = item.QuantityOrdered
		if item.ItemPrice != nil {
			if amount, ok := parsers.ParseAmount(item.ItemPrice.Amount); ok {
				fact["amount"] = amount
			}
			fact["currency"] = item.ItemPrice.CurrencyCode
		}
	}
	return fact
}

// fetchOrderItems drains a shared queue of orders with a fixed number of
// workers. The first error cancels the remaining fetches.
func (s *syncServiceImpl) fetchOrderItems(ctx context.Context, orders []spapi.Order) (map[string][]spapi.OrderItem, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan spapi.Order)
	var mu sync.Mutex
	results := make(map[string][]spapi.OrderItem, len(orders))
	var firstErr error

	var wg sync.WaitGroup
	for w := 0; w < orderItemWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for order := range jobs {
				items, err := s.api.ListOrderItems(ctx, order.AmazonOrderID)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
						cancel()
					}
					mu.Unlock()
					continue
				}
				results[order.AmazonOrderID] = items
				mu.Unlock()
			}
		}()
	}

	for _, order := range orders {
		select {
		case jobs <- order:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// runCashflowSync pulls financial events for the window, extracts and
// classifies every monetary line and persists them as cashflow facts.
func (s *syncServiceImpl) runCashflowSync(ctx context.Context, run *models.SyncRun, req SyncRequest) ([]string, error) {
	events, err := s.api.ListAllFinancialEvents(ctx, req.StartDate, req.EndDate, s.financesPageBudget)
	if err != nil {
		return nil, err
	}

	entries := s.extractor.Extract(events)
	entries, warnings := s.classifier.ClassifyAll(entries)

	run.RowsFetched = len(entries)
	if err := s.backend.UpdateRun(run); err != nil {
		return warnings, err
	}

	var facts []map[string]any
	for _, e := range entries {
		heuristic := 0
		if e.Heuristic {
			heuristic = 1
		}
		postedAt := ""
		if !e.PostedAt.IsZero() {
			postedAt = e.PostedAt.UTC().Format(time.RFC3339)
		}
		facts = append(facts, map[string]any{
			"company_id":         req.CompanyID,
			"marketplace_id":     req.MarketplaceID,
			"group_id":           e.GroupID,
			"order_id":           e.OrderID,
			"posted_at":          postedAt,
			"event_type":         e.EventType,
			"path":               e.Path,
			"amount_type":        e.AmountType,
			"amount_description": e.AmountDescription,
			"bucket":             string(e.Bucket),
			"heuristic":          heuristic,
			"amount":             e.Amount,
			"currency":           e.Currency,
		})
	}

	written, err := s.backend.UpsertFacts("cashflow_entries", facts,
		[]string{"company_id", "marketplace_id", "group_id", "path"})
	run.RowsUpserted = written
	if err != nil {
		return warnings, err
	}
	return warnings, s.backend.UpdateRun(run)
}
