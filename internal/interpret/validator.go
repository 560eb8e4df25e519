package interpret

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rcoelho/finbot/internal/config"
	"github.com/rcoelho/finbot/internal/domain"
)

var (
	// ErrZeroAmount rejects candidates whose amount is exactly zero.
	ErrZeroAmount = errors.New("transaction amount must be non-zero")

	// ErrFutureDated rejects timestamps beyond the configured tolerance
	// window. This guards against parser misfires, not business policy.
	ErrFutureDated = errors.New("transaction timestamp is too far in the future")
)

// Validator turns a TransactionCandidate into a domain.Transaction,
// enforcing field invariants and assigning identity. It is a pure
// function of (candidate, user, receipt time); persistence is the
// orchestrator's job.
type Validator struct {
	cfg *config.Config
}

// NewValidator creates a validator over the configured taxonomy.
func NewValidator(cfg *config.Config) *Validator {
	return &Validator{cfg: cfg}
}

// Validate checks the candidate and materializes a Transaction with a
// fresh unique ID. receivedAt fills in the timestamp when the parser
// extracted none.
func (v *Validator) Validate(c *TransactionCandidate, userID string, receivedAt time.Time) (*domain.Transaction, error) {
	if c == nil {
		return nil, fmt.Errorf("Validate: nil candidate")
	}
	if c.Amount == 0 {
		return nil, ErrZeroAmount
	}

	ts := c.Timestamp
	if ts.IsZero() {
		ts = receivedAt
	}
	if ts.After(receivedAt.Add(v.cfg.FutureDatedTolerance)) {
		return nil, fmt.Errorf("%w: %s", ErrFutureDated, ts.Format(time.RFC3339))
	}

	category := c.Category
	if _, ok := v.cfg.Categories[category]; !ok {
		category = v.cfg.DefaultCategory
	}

	return &domain.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Timestamp:   ts,
		Amount:      c.Amount,
		Category:    category,
		Description: c.Description,
		SourceText:  c.SourceText,
	}, nil
}
