package bigquery

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/rcoelho/finbot/internal/domain"
)

// TransactionRow is the analytical archive schema for finance.transactions.
// The spreadsheet remains the operational store; rows land here in batches
// for reporting queries that would be slow against the sheet.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	RecordedTS      time.Time  `bigquery:"recorded_ts"`      // REQUIRED

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC, signed
	Currency string   `bigquery:"currency"` // REQUIRED STRING

	Category    string              `bigquery:"category"`    // REQUIRED
	Description bigquery.NullString `bigquery:"description"` // NULLABLE
	SourceText  bigquery.NullString `bigquery:"source_text"` // NULLABLE

	IsIncome bool `bigquery:"is_income"`

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED (default CURRENT_TIMESTAMP)
}

// RowFromTransaction converts a ledger transaction into its archive row.
func RowFromTransaction(tx *domain.Transaction) *TransactionRow {
	row := &TransactionRow{
		TransactionID:   tx.ID,
		UserID:          tx.UserID,
		TransactionDate: civil.DateOf(tx.Timestamp),
		RecordedTS:      tx.Timestamp,
		Amount:          new(big.Rat).SetFloat64(tx.Amount),
		Currency:        "BRL",
		Category:        tx.Category,
		IsIncome:        tx.IsIncome(),
		CreatedTS:       time.Now(),
	}
	if tx.Description != "" {
		row.Description = bigquery.NullString{StringVal: tx.Description, Valid: true}
	}
	if tx.SourceText != "" {
		row.SourceText = bigquery.NullString{StringVal: tx.SourceText, Valid: true}
	}
	return row
}

// RenderHistory renders archive rows as one text line per transaction,
// oldest first, for CLI output.
func RenderHistory(rows []*TransactionRow) string {
	var b strings.Builder
	for _, r := range rows {
		kind := "Despesa"
		if r.IsIncome {
			kind = "Receita"
		}
		fmt.Fprintf(&b, "%s  %-7s  R$ %s  %s", r.TransactionDate, kind, r.Amount.FloatString(2), r.Category)
		if r.Description.Valid {
			fmt.Fprintf(&b, "  %s", r.Description.StringVal)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
