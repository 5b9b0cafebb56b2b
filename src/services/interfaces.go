package services

import (
	"context"
	"errors"
	"time"

	"github.com/username/sellersync/backend/src/models"
	"github.com/username/sellersync/backend/src/spapi"
)

var (
	ErrUnknownSyncKind = errors.New("services: unknown sync kind")
	ErrReportNotReady  = errors.New("services: report is not in a downloadable state")
)

// MarketplaceAPI is the slice of the marketplace client the orchestrators
// depend on, kept as an interface so sync runs are testable against a fake.
type MarketplaceAPI interface {
	RunReport(ctx context.Context, job *models.ReportJob) (*models.ReportDocument, error)
	GetReport(ctx context.Context, reportID string) (models.ReportStatus, string, error)
	GetReportDocument(ctx context.Context, documentID string) (*models.ReportDocument, error)
	FetchDocument(ctx context.Context, doc *models.ReportDocument) (string, error)
	ListAllFinancialEvents(ctx context.Context, postedAfter, postedBefore time.Time, pageBudget time.Duration) (map[string][]any, error)
	ListOrders(ctx context.Context, marketplaceID string, createdAfter, createdBefore time.Time, nextToken string) ([]spapi.Order, string, error)
	ListOrderItems(ctx context.Context, orderID string) ([]spapi.OrderItem, error)
}

// Backend is the persistence collaborator: append-only run records and
// idempotent fact upserts keyed by natural keys. The relational backend's
// business rules stay opaque behind it.
type Backend interface {
	AppendRun(run *models.SyncRun) error
	UpdateRun(run *models.SyncRun) error
	GetRun(id int64) (*models.SyncRun, error)
	ListRuns(companyID string) ([]models.SyncRun, error)
	UpsertFacts(table string, rows []map[string]any, conflictKey []string) (int, error)
}

// SyncRequest identifies one sync window for one company and marketplace.
type SyncRequest struct {
	CompanyID     string    `json:"companyId"`
	MarketplaceID string    `json:"marketplaceId"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
}

// SyncResult is the terminal outcome of a sync run: an explicit status and
// whatever row counts were produced, never a silent empty success.
type SyncResult struct {
	RunID        int64    `json:"runId"`
	Status       string   `json:"status"`
	RowsFetched  int      `json:"rowsFetched"`
	RowsUpserted int      `json:"rowsUpserted"`
	Warnings     []string `json:"warnings,omitempty"`
}

// SyncService runs end-to-end sync pipelines. A run is sequential inside;
// distinct kinds may run concurrently.
type SyncService interface {
	RunSync(ctx context.Context, kind string, req SyncRequest) (*SyncResult, error)
	GetRun(id int64) (*models.SyncRun, error)
	ListRuns(companyID string) ([]models.SyncRun, error)
}

// SettlementPreview is the operator-facing parsed view of one settlement
// report, capped at a preview row limit.
type SettlementPreview struct {
	Header    []string                `json:"header"`
	Columns   map[string]int          `json:"columns"`
	Rows      []map[string]string     `json:"rows"`
	RowCount  int                     `json:"rowCount"`
	Totals    []models.CurrencyTotals `json:"totals"`
	Breakdown []models.BreakdownLine  `json:"breakdown"`
	Warnings  []string                `json:"warnings,omitempty"`
}

// PreviewService resolves and parses a settlement report for display without
// writing anything.
type PreviewService interface {
	GetSettlementPreview(ctx context.Context, companyID, reportID string) (*SettlementPreview, error)
}

// EmailService notifies operators when a sync run fails.
type EmailService interface {
	SendSyncFailureAlert(companyID string, kind string, runID int64, errMsg string) error
}
