// Package sheets implements the durable row store on top of a Google
// Spreadsheet. Each transaction is one row on a single worksheet; the
// in-memory ledger remains the authority for ordering and deduplication.
package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/rcoelho/finbot/internal/domain"
	"github.com/rcoelho/finbot/internal/ledger"
)

// Row layout, one transaction per row:
//
//	A: date (dd/mm/yyyy hh:mm)
//	B: description
//	C: category
//	D: amount (signed, comma decimal)
//	E: type (Receita | Despesa)
//	F: transaction id
//	G: user id
const (
	rowDateFormat = "02/01/2006 15:04"
	typeIncome    = "Receita"
	typeExpense   = "Despesa"
)

// Store appends and reads transaction rows on one spreadsheet.
type Store struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	sheetName     string
}

// NewStore creates a Store backed by the given spreadsheet. Credentials
// come from the ambient environment (application default credentials).
func NewStore(ctx context.Context, spreadsheetID, sheetName string, opts ...option.ClientOption) (*Store, error) {
	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewStore: sheets service: %w", err)
	}
	if spreadsheetID == "" {
		return nil, fmt.Errorf("NewStore: spreadsheet ID is required")
	}
	if sheetName == "" {
		sheetName = "Transacoes"
	}
	return &Store{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

// AppendRow implements the ledger.Store interface. The append is keyed by
// the transaction ID in column F, so a retried job at worst duplicates a
// row that hydration later skips.
func (s *Store) AppendRow(ctx context.Context, userID string, tx *domain.Transaction) error {
	values := &sheetsapi.ValueRange{
		Values: [][]interface{}{encodeRow(userID, tx)},
	}

	_, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, s.sheetName+"!A:G", values).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("AppendRow: appending values: %w", err)
	}
	return nil
}

// ReadRows implements the ledger.Store interface. It scans the worksheet
// and returns the rows belonging to userID whose timestamp falls in the
// period. Rows that do not decode are skipped; a spreadsheet edited by
// hand must not take the bot down.
func (s *Store) ReadRows(ctx context.Context, userID string, period domain.Period) ([]*domain.Transaction, error) {
	resp, err := s.svc.Spreadsheets.Values.
		Get(s.spreadsheetID, s.sheetName+"!A:G").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("ReadRows: reading values: %w", err)
	}

	var out []*domain.Transaction
	for _, row := range resp.Values {
		tx, rowUser, err := decodeRow(row)
		if err != nil {
			continue
		}
		if rowUser != userID {
			continue
		}
		if !period.Contains(tx.Timestamp) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func encodeRow(userID string, tx *domain.Transaction) []interface{} {
	kind := typeExpense
	if tx.IsIncome() {
		kind = typeIncome
	}
	return []interface{}{
		tx.Timestamp.Format(rowDateFormat),
		tx.Description,
		tx.Category,
		formatAmount(tx.Amount),
		kind,
		tx.ID,
		userID,
	}
}

func decodeRow(row []interface{}) (*domain.Transaction, string, error) {
	if len(row) < 7 {
		return nil, "", fmt.Errorf("decodeRow: want 7 cells, got %d", len(row))
	}

	cells := make([]string, 7)
	for i := 0; i < 7; i++ {
		s, ok := row[i].(string)
		if !ok {
			return nil, "", fmt.Errorf("decodeRow: cell %d is not a string", i)
		}
		cells[i] = strings.TrimSpace(s)
	}

	ts, err := time.Parse(rowDateFormat, cells[0])
	if err != nil {
		return nil, "", fmt.Errorf("decodeRow: parsing date %q: %w", cells[0], err)
	}

	amount, err := parseAmount(cells[3])
	if err != nil {
		return nil, "", fmt.Errorf("decodeRow: parsing amount %q: %w", cells[3], err)
	}

	// The type column is authoritative for the sign; older rows written
	// by hand sometimes carry unsigned expense amounts.
	switch cells[4] {
	case typeExpense:
		if amount > 0 {
			amount = -amount
		}
	case typeIncome:
		if amount < 0 {
			amount = -amount
		}
	default:
		return nil, "", fmt.Errorf("decodeRow: unknown type %q", cells[4])
	}

	if cells[5] == "" {
		return nil, "", fmt.Errorf("decodeRow: missing transaction id")
	}

	return &domain.Transaction{
		ID:          cells[5],
		UserID:      cells[6],
		Timestamp:   ts,
		Amount:      amount,
		Category:    cells[2],
		Description: cells[1],
	}, cells[6], nil
}

func formatAmount(v float64) string {
	return strings.Replace(fmt.Sprintf("%.2f", v), ".", ",", 1)
}

func parseAmount(s string) (float64, error) {
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	var v float64
	if _, err := fmt.Sscanf(s, "%f", &v); err != nil {
		return 0, err
	}
	return v, nil
}

// Ensure Store implements the ledger.Store interface.
var _ ledger.Store = (*Store)(nil)
