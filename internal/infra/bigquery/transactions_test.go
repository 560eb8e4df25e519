package bigquery

import (
	"strings"
	"testing"
	"time"

	"github.com/rcoelho/finbot/internal/domain"
)

func TestRowFromTransaction(t *testing.T) {
	tx := &domain.Transaction{
		ID:          "tx-1",
		UserID:      "user-1",
		Timestamp:   time.Date(2025, 11, 28, 12, 30, 0, 0, time.UTC),
		Amount:      -50.5,
		Category:    "food",
		Description: "almoco",
		SourceText:  "gastei 50,50 no almoco",
	}

	row := RowFromTransaction(tx)

	if row.TransactionID != "tx-1" || row.UserID != "user-1" {
		t.Errorf("identity fields mismatch: %+v", row)
	}
	if row.TransactionDate.Year != 2025 || row.TransactionDate.Month != time.November || row.TransactionDate.Day != 28 {
		t.Errorf("unexpected transaction date: %v", row.TransactionDate)
	}
	if got, _ := row.Amount.Float64(); got != -50.5 {
		t.Errorf("expected amount -50.5, got %v", got)
	}
	if row.Currency != "BRL" {
		t.Errorf("expected BRL, got %s", row.Currency)
	}
	if row.IsIncome {
		t.Error("expense row flagged as income")
	}
	if !row.Description.Valid || row.Description.StringVal != "almoco" {
		t.Errorf("unexpected description: %+v", row.Description)
	}
	if !row.SourceText.Valid {
		t.Error("expected source text to be set")
	}
}

func TestRowFromTransactionOmitsEmptyOptionalFields(t *testing.T) {
	tx := &domain.Transaction{
		ID:        "tx-2",
		UserID:    "user-1",
		Timestamp: time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC),
		Amount:    3000,
		Category:  "salary",
	}

	row := RowFromTransaction(tx)

	if !row.IsIncome {
		t.Error("income row not flagged as income")
	}
	if row.Description.Valid || row.SourceText.Valid {
		t.Error("expected optional fields to be null")
	}
}

func TestRenderHistory(t *testing.T) {
	rows := []*TransactionRow{
		RowFromTransaction(&domain.Transaction{
			ID:          "tx-1",
			UserID:      "user-1",
			Timestamp:   time.Date(2025, 10, 3, 12, 0, 0, 0, time.UTC),
			Amount:      -50.5,
			Category:    "food",
			Description: "almoco",
		}),
		RowFromTransaction(&domain.Transaction{
			ID:        "tx-2",
			UserID:    "user-1",
			Timestamp: time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC),
			Amount:    3000,
			Category:  "salary",
		}),
	}

	out := RenderHistory(rows)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), out)
	}
	if !strings.Contains(lines[0], "2025-10-03") || !strings.Contains(lines[0], "Despesa") || !strings.Contains(lines[0], "R$ -50.50") || !strings.Contains(lines[0], "almoco") {
		t.Errorf("unexpected expense line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "Receita") || !strings.Contains(lines[1], "R$ 3000.00") {
		t.Errorf("unexpected income line: %q", lines[1])
	}
	if RenderHistory(nil) != "" {
		t.Error("expected empty output for no rows")
	}
}
