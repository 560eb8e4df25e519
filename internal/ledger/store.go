package ledger

import (
	"context"

	"github.com/rcoelho/finbot/internal/domain"
)

// Store is the durable row store backing the in-memory ledgers. The
// Google Sheets implementation lives in internal/infra/sheets. The store
// may be eventually consistent: a just-appended row is not guaranteed to
// be visible to an immediate ReadRows, which is why the in-memory ledger
// remains the authority for aggregation.
type Store interface {
	// AppendRow durably records one transaction for the user.
	AppendRow(ctx context.Context, userID string, tx *domain.Transaction) error

	// ReadRows returns the user's transactions whose timestamps fall in
	// the half-open period, in ledger order.
	ReadRows(ctx context.Context, userID string, period domain.Period) ([]*domain.Transaction, error)
}
