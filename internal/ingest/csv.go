// Package ingest normalizes external row sources into the canonical
// Transaction slice every detector reads. The CSV path handles user
// uploads; the live feed has its own adapter in infra/feedstore.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spendlens/spendlens-go/internal/domain"
)

// Required upload columns. payment_mode and transaction_id are optional:
// some export paths omit them.
var requiredColumns = []string{"date", "time", "amount", "merchant", "category", "city", "txn_type"}

const (
	dateLayout      = "2006-01-02"
	timeLayout      = "15:04:05"
	timeLayoutShort = "15:04"
)

// ReadCSV parses an uploaded ledger into transactions. The header is
// validated first: every missing required column is reported in one
// ErrSchema. A row whose date, time or amount does not parse fails the
// whole cycle with an ErrParse carrying the row number; values are never
// coerced to sentinels. date and time are combined into the Timestamp the
// detectors consume, and a uuid is synthesized when the source has no
// transaction_id column.
func ReadCSV(r io.Reader) ([]domain.Transaction, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &domain.ErrSchema{Missing: requiredColumns}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.ToLower(name))] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.ErrSchema{Missing: missing}
	}

	modeIdx, hasMode := index["payment_mode"]
	idIdx, hasID := index["transaction_id"]

	var txns []domain.Transaction
	row := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row+1, err)
		}
		row++

		field := func(i int) string {
			if i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		ts, err := parseTimestamp(field(index["date"]), field(index["time"]))
		if err != nil {
			perr := err.(*domain.ErrParse)
			perr.Row = row
			return nil, perr
		}

		amountStr := field(index["amount"])
		amount, err := strconv.ParseFloat(amountStr, 64)
		if err != nil {
			return nil, &domain.ErrParse{Row: row, Field: "amount", Value: amountStr, Err: err}
		}
		if amount < 0 {
			return nil, &domain.ErrParse{Row: row, Field: "amount", Value: amountStr, Err: fmt.Errorf("amount must be non-negative")}
		}

		t := domain.Transaction{
			Timestamp: ts,
			Amount:    amount,
			Merchant:  field(index["merchant"]),
			Category:  field(index["category"]),
			City:      field(index["city"]),
			TxnType:   field(index["txn_type"]),
		}
		if hasMode {
			t.PaymentMode = field(modeIdx)
		}
		if hasID {
			t.ID = field(idIdx)
		}
		if t.ID == "" {
			t.ID = uuid.New().String()
		}

		txns = append(txns, t)
	}

	return txns, nil
}

// parseTimestamp combines the date and time columns into one instant.
// Seconds are optional in the time column. The returned ErrParse still
// needs its Row filled in by the caller.
func parseTimestamp(dateStr, timeStr string) (time.Time, error) {
	d, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return time.Time{}, &domain.ErrParse{Field: "date", Value: dateStr, Err: err}
	}

	layout := timeLayout
	if strings.Count(timeStr, ":") == 1 {
		layout = timeLayoutShort
	}
	tod, err := time.Parse(layout, timeStr)
	if err != nil {
		return time.Time{}, &domain.ErrParse{Field: "time", Value: timeStr, Err: err}
	}

	return time.Date(d.Year(), d.Month(), d.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, time.UTC), nil
}
