package domain

import (
	"time"
)

// Transaction represents one financial event owned by a single user.
// Amount is signed: positive for income, negative for expense. Once a
// transaction has been appended to a ledger, Amount, Timestamp and
// Category never change; corrections are made by appending a reversing
// transaction followed by a corrected one.
type Transaction struct {
	ID     string `json:"transaction_id"`
	UserID string `json:"user_id"`

	Timestamp time.Time `json:"timestamp"`
	Amount    float64   `json:"amount"`
	Category  string    `json:"category"`

	Description string `json:"description"`

	// SourceText is the raw inbound message this transaction was parsed
	// from, retained for auditability.
	SourceText string `json:"source_text,omitempty"`
}

// IsIncome reports whether the transaction carries a positive amount.
func (t *Transaction) IsIncome() bool {
	return t.Amount > 0
}

// Reversal returns a new transaction that cancels t out: same category and
// description, negated amount. The caller assigns ID and timestamp.
func (t *Transaction) Reversal() *Transaction {
	return &Transaction{
		UserID:      t.UserID,
		Amount:      -t.Amount,
		Category:    t.Category,
		Description: "estorno: " + t.Description,
	}
}
