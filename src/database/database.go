package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/sellersync/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if err := CreateTables(DB); err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// CreateTables ensures the run-record table and the fact tables exist. Every
// fact table carries a UNIQUE natural key so repeated upserts from a retried
// or resumed sync cannot double-count.
func CreateTables(db *sql.DB) error {
	createTableStatement := `
	CREATE TABLE IF NOT EXISTS sync_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id TEXT NOT NULL,
		channel TEXT NOT NULL,
		report_type TEXT NOT NULL,
		marketplace_id TEXT NOT NULL,
		start_date TEXT,
		end_date TEXT,
		status TEXT NOT NULL,
		rows_fetched INTEGER DEFAULT 0,
		rows_upserted INTEGER DEFAULT 0,
		last_error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settlement_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id TEXT NOT NULL,
		marketplace_id TEXT NOT NULL,
		settlement_id TEXT NOT NULL,
		order_id TEXT,
		posted_at TEXT,
		amount_type TEXT,
		amount_description TEXT,
		bucket TEXT,
		amount REAL,
		currency TEXT,
		UNIQUE(company_id, marketplace_id, settlement_id, order_id, posted_at, amount_type, amount_description)
	);

	CREATE TABLE IF NOT EXISTS marketplace_orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id TEXT NOT NULL,
		marketplace_id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		purchase_date TEXT,
		order_status TEXT,
		sku TEXT,
		asin TEXT,
		quantity INTEGER,
		amount REAL,
		currency TEXT,
		UNIQUE(company_id, marketplace_id, order_id, sku)
	);

	CREATE TABLE IF NOT EXISTS inventory_levels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id TEXT NOT NULL,
		marketplace_id TEXT NOT NULL,
		sku TEXT NOT NULL,
		asin TEXT,
		fnsku TEXT,
		description TEXT,
		condition TEXT,
		quantity INTEGER,
		price REAL,
		currency TEXT,
		UNIQUE(company_id, marketplace_id, sku)
	);

	CREATE TABLE IF NOT EXISTS return_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id TEXT NOT NULL,
		marketplace_id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		sku TEXT,
		return_date TEXT,
		reason TEXT,
		status TEXT,
		quantity INTEGER,
		UNIQUE(company_id, marketplace_id, order_id, sku, return_date)
	);

	CREATE TABLE IF NOT EXISTS cashflow_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id TEXT NOT NULL,
		marketplace_id TEXT NOT NULL,
		group_id TEXT,
		order_id TEXT,
		posted_at TEXT,
		event_type TEXT,
		path TEXT NOT NULL,
		amount_type TEXT,
		amount_description TEXT,
		bucket TEXT,
		heuristic INTEGER DEFAULT 0,
		amount REAL,
		currency TEXT,
		UNIQUE(company_id, marketplace_id, group_id, path)
	);
	`
	_, err := db.Exec(createTableStatement)
	return err
}
