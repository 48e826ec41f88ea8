// Package feedstore persists the live UPI feed in SQLite. The simulator
// writes rows through Insert; the analysis service re-materializes the
// whole table through Snapshot on every refresh. The table intentionally
// mirrors the exporter's column set, which carries no payment_mode.
package feedstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spendlens/spendlens-go/internal/domain"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the feed database at dbPath and runs
// migrations.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Insert appends one transaction to the feed. The timestamp is split into
// the date and time columns the exporter uses.
func (s *Store) Insert(ctx context.Context, t domain.Transaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (transaction_id, date, time, amount, merchant, txn_type, category, city)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.Timestamp.UTC().Format(dateLayout),
		t.Timestamp.UTC().Format(timeLayout),
		t.Amount,
		t.Merchant,
		t.TxnType,
		t.Category,
		t.City,
	)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", t.ID, err)
	}
	return nil
}

// Snapshot returns the entire feed ordered by instant. Rows with a
// malformed date or time fail the snapshot; a partial feed would skew
// every detector downstream.
func (s *Store) Snapshot(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT transaction_id, date, time, amount, merchant, txn_type, category, city
		 FROM transactions ORDER BY date, time`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var dateStr, timeStr string
		if err := rows.Scan(&t.ID, &dateStr, &timeStr, &t.Amount, &t.Merchant, &t.TxnType, &t.Category, &t.City); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		ts, err := time.Parse(dateLayout+" "+timeLayout, dateStr+" "+timeStr)
		if err != nil {
			return nil, &domain.ErrParse{Field: "date", Value: dateStr + " " + timeStr, Err: err}
		}
		t.Timestamp = ts
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txns, nil
}

// Count returns the number of rows in the feed.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}
