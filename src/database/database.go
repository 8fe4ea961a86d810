package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/shareledger/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		year INTEGER,
		month INTEGER,
		day INTEGER,
		account_number TEXT NOT NULL,
		description TEXT NOT NULL,
		share_name TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		quantity NUMERIC NOT NULL,
		value NUMERIC NOT NULL,
		value_per_share NUMERIC,
		value_calculated NUMERIC,
		dividend_ttm NUMERIC,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date);
	CREATE INDEX IF NOT EXISTS idx_transactions_year_month ON transactions(year, month);

	CREATE TABLE IF NOT EXISTS portfolio_holdings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		year INTEGER,
		month INTEGER,
		day INTEGER,
		company TEXT NOT NULL,
		share_code TEXT NOT NULL DEFAULT '',
		quantity NUMERIC NOT NULL,
		currency TEXT NOT NULL DEFAULT 'ZAR',
		unit_cost NUMERIC NOT NULL,
		total_cost NUMERIC NOT NULL,
		price NUMERIC NOT NULL,
		total_value NUMERIC NOT NULL,
		exchange_rate NUMERIC,
		move_percent NUMERIC,
		portfolio_percent NUMERIC,
		profit_loss NUMERIC,
		annual_income NUMERIC,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_holdings_date_company ON portfolio_holdings(date, company);
	CREATE INDEX IF NOT EXISTS idx_holdings_share_code ON portfolio_holdings(share_code);
	CREATE INDEX IF NOT EXISTS idx_holdings_year_month ON portfolio_holdings(year, month);

	CREATE TABLE IF NOT EXISTS share_name_mappings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		share_name TEXT NOT NULL UNIQUE,
		company TEXT NOT NULL DEFAULT '',
		share_code TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_mappings_share_code ON share_name_mappings(share_code);

	CREATE TABLE IF NOT EXISTS share_monthly_performance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		share_name TEXT NOT NULL,
		date TEXT NOT NULL,
		year INTEGER,
		month INTEGER,
		dividend_type TEXT NOT NULL,
		account TEXT NOT NULL DEFAULT '',
		dividend_ttm NUMERIC NOT NULL,
		closing_price NUMERIC,
		quantity NUMERIC,
		market_value NUMERIC,
		dividend_yield NUMERIC,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(share_name, date, dividend_type)
	);
	CREATE INDEX IF NOT EXISTS idx_performance_share_date ON share_monthly_performance(share_name, date);
	CREATE INDEX IF NOT EXISTS idx_performance_year_month ON share_monthly_performance(year, month);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}

	migrateTransactionsTable()

	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// migrateTransactionsTable adds columns introduced after the first release to
// databases created before them. dividend_ttm arrived with the monthly
// performance reporting.
func migrateTransactionsTable() {
	rows, err := DB.Query("PRAGMA table_info(transactions)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error reading transactions table info", "error", err)
		} else {
			stdlog.Printf("Error reading transactions table info: %v", err)
		}
		return
	}
	defer rows.Close()

	hasDividendTTM := false
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			continue
		}
		if name == "dividend_ttm" {
			hasDividendTTM = true
		}
	}

	if !hasDividendTTM {
		if _, err := DB.Exec("ALTER TABLE transactions ADD COLUMN dividend_ttm NUMERIC"); err != nil {
			if logger.L != nil {
				logger.L.Error("Failed to add dividend_ttm column", "error", err)
			} else {
				stdlog.Printf("Failed to add dividend_ttm column: %v", err)
			}
			return
		}
		if logger.L != nil {
			logger.L.Info("Added dividend_ttm column to transactions table.")
		}
	}
}
