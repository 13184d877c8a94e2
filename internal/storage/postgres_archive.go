package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/me2resh/me2resh-daily/internal/logger"
	"github.com/me2resh/me2resh-daily/internal/report"
)

// PostgresArchive stores finished reports in a reports table, one row per
// scan date. A rerun for the same date replaces the stored document.
type PostgresArchive struct {
	db *sql.DB
}

func NewPostgresArchive(dsn string) (*PostgresArchive, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pa := &PostgresArchive{db: db}
	if err := pa.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("storage: postgres archive connected")
	return pa, nil
}

func (pa *PostgresArchive) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id SERIAL PRIMARY KEY,
		scan_date DATE UNIQUE NOT NULL,
		timezone VARCHAR(64) NOT NULL,
		document JSONB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_reports_scan_date ON reports(scan_date);
	`

	if _, err := pa.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Store upserts the report document for its scan date.
func (pa *PostgresArchive) Store(result report.ScanResult) error {
	document, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `
		INSERT INTO reports (scan_date, timezone, document, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (scan_date) DO UPDATE SET
			document = EXCLUDED.document,
			timezone = EXCLUDED.timezone,
			updated_at = NOW()
	`

	if _, err := pa.db.Exec(query, result.Date, result.Timezone, document); err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}
	return nil
}

// Load reads an archived report by scan date ("2006-01-02").
func (pa *PostgresArchive) Load(date string) (report.ScanResult, error) {
	var result report.ScanResult
	var document []byte

	err := pa.db.QueryRow(`SELECT document FROM reports WHERE scan_date = $1`, date).Scan(&document)
	if err != nil {
		if err == sql.ErrNoRows {
			return result, fmt.Errorf("no report archived for %s", date)
		}
		return result, fmt.Errorf("failed to load report: %w", err)
	}

	if err := json.Unmarshal(document, &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return result, nil
}

// RecentDates lists the most recent archived scan dates, newest first.
func (pa *PostgresArchive) RecentDates(limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := pa.db.Query(`SELECT scan_date::text FROM reports ORDER BY scan_date DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			logger.Warn("storage: error scanning row", "error", err)
			continue
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// Close closes the database connection.
func (pa *PostgresArchive) Close() error {
	if pa.db != nil {
		return pa.db.Close()
	}
	return nil
}
