package models

import "time"

// ReportType enumerates the bulk report families the marketplace platform
// can generate for us. Anything else is rejected before a job is created.
type ReportType string

const (
	ReportTypeOrders      ReportType = "GET_FLAT_FILE_ALL_ORDERS_DATA_BY_ORDER_DATE_GENERAL"
	ReportTypeInventory   ReportType = "GET_FBA_MYI_UNSUPPRESSED_INVENTORY_DATA"
	ReportTypeSettlements ReportType = "GET_V2_SETTLEMENT_REPORT_DATA_FLAT_FILE_V2"
	ReportTypeReturns     ReportType = "GET_FBA_FULFILLMENT_CUSTOMER_RETURNS_DATA"
)

// ReportStatus is the lifecycle status of an asynchronous report job as
// reported by the marketplace. A job never leaves a terminal status.
type ReportStatus string

const (
	ReportStatusRequested  ReportStatus = "REQUESTED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusDone       ReportStatus = "DONE"
	ReportStatusDoneNoData ReportStatus = "DONE_NO_DATA"
	ReportStatusFatal      ReportStatus = "FATAL"
	ReportStatusCancelled  ReportStatus = "CANCELLED"
	ReportStatusError      ReportStatus = "ERROR"
)

// IsTerminal reports whether the status ends the job's lifecycle.
func (s ReportStatus) IsTerminal() bool {
	switch s {
	case ReportStatusDone, ReportStatusDoneNoData, ReportStatusFatal, ReportStatusCancelled, ReportStatusError:
		return true
	}
	return false
}

// IsSuccess reports whether the terminal status carries (or legitimately
// omits) a downloadable document.
func (s ReportStatus) IsSuccess() bool {
	return s == ReportStatusDone || s == ReportStatusDoneNoData
}

// ReportJob tracks one bulk report request through its remote lifecycle.
// Created by an orchestrator, mutated only by the poller.
type ReportJob struct {
	Type          ReportType
	MarketplaceID string
	StartDate     time.Time
	EndDate       time.Time
	Status        ReportStatus
	ReportID      string
	DocumentID    string // set once the job reaches DONE
}

// ReportDocument is the resolved download handle for a finished report.
// Fetched once per job and discarded.
type ReportDocument struct {
	DocumentID  string
	URL         string
	Compression string // "GZIP" or empty
}

// ParsedTable is the output of the delimited report parser: the raw header
// cells as found in the file, the index of the detected header row, and the
// data rows keyed by canonical field name where a mapping exists.
type ParsedTable struct {
	Header      []string
	HeaderIndex int
	Columns     map[string]int // canonical field -> column index; absent if unmapped
	Rows        []map[string]string
}

// Bucket is one of the fixed accounting categories a monetary line item is
// classified into.
type Bucket string

const (
	BucketRevenue          Bucket = "revenue"
	BucketRefunds          Bucket = "refunds"
	BucketFees             Bucket = "fees"
	BucketWithholdings     Bucket = "withholdings"
	BucketOtherAdjustments Bucket = "otherAdjustments"
	BucketExcluded         Bucket = "excluded"
)

// FinancialEntry is a single monetary amount extracted from a nested
// financial event, together with everything needed to explain where it came
// from and how it was bucketed. Classification is a pure function of these
// fields.
type FinancialEntry struct {
	PostedAt          time.Time `json:"postedAt"`
	GroupID           string    `json:"groupId"`
	OrderID           string    `json:"orderId,omitempty"`
	EventType         string    `json:"eventType"`
	Path              string    `json:"path"`
	AmountType        string    `json:"amountType"`
	AmountDescription string    `json:"amountDescription"`
	Amount            float64   `json:"amount"`
	Currency          string    `json:"currency"`
	Bucket            Bucket    `json:"bucket"`
	Heuristic         bool      `json:"heuristic"` // true when the sign fallback decided the bucket
}

// Label is the human-readable bucket key used in breakdown tables.
func (e FinancialEntry) Label() string {
	return e.AmountType + " • " + e.AmountDescription
}

// CurrencyTotals accumulates bucket sums for one currency. Derived data,
// recomputed per request, never persisted as source of truth.
type CurrencyTotals struct {
	Currency         string  `json:"currency"`
	GrossSales       float64 `json:"grossSales"`
	Refunds          float64 `json:"refunds"`
	NetSales         float64 `json:"netSales"`
	Fees             float64 `json:"fees"`
	Withholdings     float64 `json:"withholdings"`
	OtherAdjustments float64 `json:"otherAdjustments"`
	NetCashflow      float64 `json:"netCashflow"`
}

// BreakdownLine groups entries sharing a "{amountType} • {amountDescription}"
// label for operator-facing drill-down.
type BreakdownLine struct {
	Label    string  `json:"label"`
	Bucket   Bucket  `json:"bucket"`
	Currency string  `json:"currency"`
	Count    int     `json:"count"`
	Total    float64 `json:"total"`
}

// SyncRun is the audit record of one orchestrated sync job. Created at
// submission, updated at every phase transition, terminal at completion or
// failure. It is an audit trail, not a cache.
type SyncRun struct {
	ID            int64      `json:"id"`
	CompanyID     string     `json:"companyId"`
	Channel       string     `json:"channel"`
	ReportType    ReportType `json:"reportType"`
	MarketplaceID string     `json:"marketplaceId"`
	StartDate     string     `json:"startDate"`
	EndDate       string     `json:"endDate"`
	Status        string     `json:"status"` // "processing", "completed", "failed: <message>"
	RowsFetched   int        `json:"rowsFetched"`
	RowsUpserted  int        `json:"rowsUpserted"`
	LastError     string     `json:"lastError,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}
