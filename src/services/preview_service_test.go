package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/sellersync/backend/src/models"
	"github.com/username/sellersync/backend/src/parsers"
	"github.com/username/sellersync/backend/src/processors"
)

// previewAPI scripts the report lookup for preview tests and counts fetches.
type previewAPI struct {
	fakeAPI
	status     models.ReportStatus
	documentID string
	fetches    int
}

func (p *previewAPI) GetReport(ctx context.Context, reportID string) (models.ReportStatus, string, error) {
	return p.status, p.documentID, nil
}

func (p *previewAPI) FetchDocument(ctx context.Context, doc *models.ReportDocument) (string, error) {
	p.fetches++
	return p.reportText, nil
}

func newPreviewService(api MarketplaceAPI) PreviewService {
	return NewPreviewService(api,
		parsers.NewReportParser(),
		processors.NewClassifier(),
		cache.New(time.Minute, time.Minute))
}

func TestGetSettlementPreview(t *testing.T) {
	api := &previewAPI{
		status:     models.ReportStatusDone,
		documentID: "DOC-1",
	}
	api.reportText = strings.Join([]string{
		"settlement-id\torder-id\tamount-type\tamount-description\tamount\tcurrency",
		"8123\t111-222\tItemPrice\tPrincipal\t19.99\tEUR",
		"8123\t111-222\tItemFees\tCommission\t-2.99\tEUR",
	}, "\n")

	preview, err := newPreviewService(api).GetSettlementPreview(context.Background(), "co-1", "R-1")
	if err != nil {
		t.Fatalf("GetSettlementPreview failed: %v", err)
	}
	if preview.RowCount != 2 || len(preview.Rows) != 2 {
		t.Fatalf("rows = %d/%d, want 2/2", preview.RowCount, len(preview.Rows))
	}
	if len(preview.Totals) != 1 || preview.Totals[0].Currency != "EUR" {
		t.Fatalf("totals = %+v, want one EUR entry", preview.Totals)
	}
	if preview.Totals[0].GrossSales != 19.99 || preview.Totals[0].Fees != -2.99 {
		t.Fatalf("totals = %+v, want gross 19.99 fees -2.99", preview.Totals[0])
	}
	if len(preview.Breakdown) != 2 {
		t.Fatalf("breakdown = %d lines, want 2", len(preview.Breakdown))
	}
}

func TestGetSettlementPreviewCaches(t *testing.T) {
	api := &previewAPI{
		status:     models.ReportStatusDone,
		documentID: "DOC-1",
	}
	api.reportText = "settlement-id\torder-id\tamount-type\tamount-description\tamount\tcurrency\n" +
		"8123\t111-222\tItemPrice\tPrincipal\t19.99\tEUR"

	svc := newPreviewService(api)
	if _, err := svc.GetSettlementPreview(context.Background(), "co-1", "R-1"); err != nil {
		t.Fatalf("first preview failed: %v", err)
	}
	if _, err := svc.GetSettlementPreview(context.Background(), "co-1", "R-1"); err != nil {
		t.Fatalf("second preview failed: %v", err)
	}
	if api.fetches != 1 {
		t.Fatalf("document fetched %d times, want 1 (second call served from cache)", api.fetches)
	}
}

func TestGetSettlementPreviewCapsRows(t *testing.T) {
	var b strings.Builder
	b.WriteString("settlement-id\torder-id\tamount-type\tamount-description\tamount\tcurrency\n")
	for i := 0; i < PreviewRowLimit+50; i++ {
		b.WriteString("8123\t111-222\tItemPrice\tPrincipal\t1.00\tEUR\n")
	}
	api := &previewAPI{status: models.ReportStatusDone, documentID: "DOC-1"}
	api.reportText = b.String()

	preview, err := newPreviewService(api).GetSettlementPreview(context.Background(), "co-1", "R-2")
	if err != nil {
		t.Fatalf("GetSettlementPreview failed: %v", err)
	}
	if len(preview.Rows) != PreviewRowLimit {
		t.Fatalf("rows = %d, want cap %d", len(preview.Rows), PreviewRowLimit)
	}
	if preview.RowCount != PreviewRowLimit+50 {
		t.Fatalf("rowCount = %d, want full count %d", preview.RowCount, PreviewRowLimit+50)
	}
	// Totals cover every row, not just the capped view.
	if preview.Totals[0].GrossSales != float64(PreviewRowLimit+50) {
		t.Fatalf("grossSales = %v, want %d", preview.Totals[0].GrossSales, PreviewRowLimit+50)
	}
}

func TestGetSettlementPreviewNotReady(t *testing.T) {
	api := &previewAPI{status: models.ReportStatusProcessing}

	_, err := newPreviewService(api).GetSettlementPreview(context.Background(), "co-1", "R-3")
	if !errors.Is(err, ErrReportNotReady) {
		t.Fatalf("error = %v, want ErrReportNotReady", err)
	}
}
