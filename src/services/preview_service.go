package services

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/sellersync/backend/src/logger"
	"github.com/username/sellersync/backend/src/models"
	"github.com/username/sellersync/backend/src/parsers"
	"github.com/username/sellersync/backend/src/processors"
)

const (
	// PreviewRowLimit caps how many parsed rows a preview response carries.
	PreviewRowLimit = 200

	ckSettlementPreview = "preview_settlement_%s_%s"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type previewServiceImpl struct {
	api        MarketplaceAPI
	parser     *parsers.ReportParser
	classifier *processors.Classifier
	cache      *cache.Cache
}

func NewPreviewService(api MarketplaceAPI, parser *parsers.ReportParser, classifier *processors.Classifier, c *cache.Cache) PreviewService {
	return &previewServiceImpl{
		api:        api,
		parser:     parser,
		classifier: classifier,
		cache:      c,
	}
}

// GetSettlementPreview resolves an already-submitted settlement report,
// parses it and returns the capped row view plus per-currency totals.
// Results are cached per company and report.
func (s *previewServiceImpl) GetSettlementPreview(ctx context.Context, companyID, reportID string) (*SettlementPreview, error) {
	cacheKey := fmt.Sprintf(ckSettlementPreview, companyID, reportID)
	if cached, found := s.cache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for settlement preview", "companyId", companyID, "reportId", reportID)
		return cached.(*SettlementPreview), nil
	}

	status, documentID, err := s.api.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if status != models.ReportStatusDone || documentID == "" {
		return nil, fmt.Errorf("%w: report %s has status %s", ErrReportNotReady, reportID, status)
	}

	doc, err := s.api.GetReportDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	text, err := s.api.FetchDocument(ctx, doc)
	if err != nil {
		return nil, err
	}

	table, err := s.parser.Parse(text, models.ReportTypeSettlements)
	if err != nil {
		return nil, err
	}

	var entries []models.FinancialEntry
	var warnings []string
	for _, row := range table.Rows {
		amount, ok := parsers.ParseAmount(row[parsers.FieldAmount])
		if !ok {
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
		entry.Bucket = bucket
		entry.Heuristic = heuristic
		if heuristic {
			warnings = append(warnings, fmt.Sprintf(
				"heuristic classification used for settlement line %q / %q",
				entry.AmountType, entry.AmountDescription))
		}
		entries = append(entries, entry)
	}

	totals, breakdown := processors.Aggregate(entries)

	previewRows := table.Rows
	if len(previewRows) > PreviewRowLimit {
		previewRows = previewRows[:PreviewRowLimit]
	}

	preview := &SettlementPreview{
		Header:    table.Header,
		Columns:   table.Columns,
		Rows:      previewRows,
		RowCount:  len(table.Rows),
		Totals:    totals,
		Breakdown: breakdown,
		Warnings:  warnings,
	}
	s.cache.Set(cacheKey, preview, DefaultCacheExpiration)
	return preview, nil
}
