package database

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/username/sellersync/backend/src/logger"
	"github.com/username/sellersync/backend/src/models"
)

// factTables whitelists the tables UpsertFacts may write. Table and column
// names are interpolated into SQL, so only known names are allowed through.
var factTables = map[string]bool{
	"settlement_entries": true,
	"marketplace_orders": true,
	"inventory_levels":   true,
	"return_events":      true,
	"cashflow_entries":   true,
}

// Store is the persistence collaborator for the sync pipeline: append-only
// run records plus idempotent fact upserts keyed by natural keys.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// AppendRun inserts a new run record and fills in its id and timestamps.
func (s *Store) AppendRun(run *models.SyncRun) error {
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now

	res, err := s.db.Exec(`INSERT INTO sync_runs
		(company_id, channel, report_type, marketplace_id, start_date, end_date, status, rows_fetched, rows_upserted, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.CompanyID, run.Channel, run.ReportType, run.MarketplaceID,
		run.StartDate, run.EndDate, run.Status, run.RowsFetched, run.RowsUpserted,
		run.LastError, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error inserting sync run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("error reading sync run id: %w", err)
	}
	run.ID = id
	return nil
}

// UpdateRun persists the current phase state of a run. The run record has a
// single writer (the orchestrator executing it), so last-write-wins is safe.
func (s *Store) UpdateRun(run *models.SyncRun) error {
	run.UpdatedAt = time.Now().UTC()
	_, err := s.db.Exec(`UPDATE sync_runs
		SET status = ?, rows_fetched = ?, rows_upserted = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		run.Status, run.RowsFetched, run.RowsUpserted, run.LastError, run.UpdatedAt, run.ID)
	if err != nil {
		return fmt.Errorf("error updating sync run %d: %w", run.ID, err)
	}
	return nil
}

func (s *Store) GetRun(id int64) (*models.SyncRun, error) {
	row := s.db.QueryRow(`SELECT id, company_id, channel, report_type, marketplace_id, start_date, end_date, status, rows_fetched, rows_upserted, last_error, created_at, updated_at
		FROM sync_runs WHERE id = ?`, id)
	var run models.SyncRun
	var lastError sql.NullString
	if err := row.Scan(&run.ID, &run.CompanyID, &run.Channel, &run.ReportType, &run.MarketplaceID,
		&run.StartDate, &run.EndDate, &run.Status, &run.RowsFetched, &run.RowsUpserted,
		&lastError, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, fmt.Errorf("error fetching sync run %d: %w", id, err)
	}
	run.LastError = lastError.String
	return &run, nil
}

func (s *Store) ListRuns(companyID string) ([]models.SyncRun, error) {
	rows, err := s.db.Query(`SELECT id, company_id, channel, report_type, marketplace_id, start_date, end_date, status, rows_fetched, rows_upserted, last_error, created_at, updated_at
		FROM sync_runs WHERE company_id = ? ORDER BY created_at DESC, id DESC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("error querying sync runs for company %s: %w", companyID, err)
	}
	defer rows.Close()

	var runs []models.SyncRun
	for rows.Next() {
		var run models.SyncRun
		var lastError sql.NullString
		if err := rows.Scan(&run.ID, &run.CompanyID, &run.Channel, &run.ReportType, &run.MarketplaceID,
			&run.StartDate, &run.EndDate, &run.Status, &run.RowsFetched, &run.RowsUpserted,
			&lastError, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning sync run: %w", err)
		}
		run.LastError = lastError.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync runs: %w", err)
	}
	return runs, nil
}

// UpsertFacts writes rows into a fact table, resolving conflicts on the
// natural key so retried orchestrations cannot double-count. Returns the
// number of rows written.
func (s *Store) UpsertFacts(table string, rows []map[string]any, conflictKey []string) (int, error) {
	if !factTables[table] {
		return 0, fmt.Errorf("unknown fact table %q", table)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	// Columns come from the first row; every row must provide the same set.
	columns := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	keySet := make(map[string]bool, len(conflictKey))
	for _, k := range conflictKey {
		keySet[k] = true
	}

	var updates []string
	for _, col := range columns {
		if !keySet[col] {
			updates = append(updates, col+" = excluded."+col)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		table,
		strings.Join(columns, ", "),
		placeholders,
		strings.Join(conflictKey, ", "),
		strings.Join(updates, ", "))

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("error beginning upsert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return 0, fmt.Errorf("error preparing upsert for %s: %w", table, err)
	}
	defer stmt.Close()

	written := 0
	for _, row := range rows {
		args := make([]any, len(columns))
		for i, col := range columns {
			args[i] = row[col]
		}
		if _, err := stmt.Exec(args...); err != nil {
			return written, fmt.Errorf("error upserting into %s: %w", table, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing upsert into %s: %w", table, err)
	}

	logger.L.Debug("Fact rows upserted", "table", table, "rows", written)
	return written, nil
}
