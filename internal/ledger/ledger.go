package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rcoelho/finbot/internal/domain"
)

// Ledger is the append-only, totally ordered transaction history of one
// user. Entries are ordered by (timestamp, id) so aggregation tie-breaks
// are deterministic. All methods are safe for concurrent use; each call
// is one critical section, so an aggregation pass never observes a
// partially appended transaction.
type Ledger struct {
	mu     sync.Mutex
	userID string
	txs    []*domain.Transaction
	ids    map[string]struct{}
}

func newLedger(userID string) *Ledger {
	return &Ledger{
		userID: userID,
		ids:    make(map[string]struct{}),
	}
}

// UserID returns the owning user.
func (l *Ledger) UserID() string {
	return l.userID
}

// Append adds the transaction in order. A transaction whose ID is already
// present is rejected with ErrDuplicateID and the ledger is unchanged.
func (l *Ledger) Append(tx *domain.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("Append: transaction has no id")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.ids[tx.ID]; ok {
		return fmt.Errorf("Append: %w: %s", ErrDuplicateID, tx.ID)
	}

	cp := *tx
	i := sort.Search(len(l.txs), func(i int) bool {
		return !before(l.txs[i], &cp)
	})
	l.txs = append(l.txs, nil)
	copy(l.txs[i+1:], l.txs[i:])
	l.txs[i] = &cp
	l.ids[cp.ID] = struct{}{}
	return nil
}

// Query returns copies of the transactions with timestamps inside the
// half-open period, in ledger order.
func (l *Ledger) Query(period domain.Period) []*domain.Transaction {
	return l.filter(func(tx *domain.Transaction) bool {
		return period.Contains(tx.Timestamp)
	})
}

// QueryByCategory restricts Query to one category.
func (l *Ledger) QueryByCategory(category string, period domain.Period) []*domain.Transaction {
	return l.filter(func(tx *domain.Transaction) bool {
		return tx.Category == category && period.Contains(tx.Timestamp)
	})
}

// Last returns copies of the most recent n transactions in ledger order.
func (l *Ledger) Last(n int) []*domain.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || len(l.txs) == 0 {
		return nil
	}
	if n > len(l.txs) {
		n = len(l.txs)
	}
	out := make([]*domain.Transaction, 0, n)
	for _, tx := range l.txs[len(l.txs)-n:] {
		cp := *tx
		out = append(out, &cp)
	}
	return out
}

// Newest returns a copy of the most recent transaction, or false when the
// ledger is empty.
func (l *Ledger) Newest() (*domain.Transaction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.txs) == 0 {
		return nil, false
	}
	cp := *l.txs[len(l.txs)-1]
	return &cp, true
}

// Len returns the number of transactions held.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.txs)
}

func (l *Ledger) filter(keep func(*domain.Transaction) bool) []*domain.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*domain.Transaction
	for _, tx := range l.txs {
		if keep(tx) {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out
}

// before orders transactions by (timestamp, id).
func before(a, b *domain.Transaction) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

// Manager owns one Ledger per user key. Ledgers are created on first
// use and never deleted; operations on different users' ledgers proceed
// independently.
type Manager struct {
	mu      sync.Mutex
	ledgers map[string]*Ledger

	store Store // optional durable backing used for hydration
}

// NewManager creates a manager. store may be nil for purely in-memory
// operation (tests, CLI dry runs).
func NewManager(store Store) *Manager {
	return &Manager{
		ledgers: make(map[string]*Ledger),
		store:   store,
	}
}

// ForUser returns the user's ledger, creating it on first use.
func (m *Manager) ForUser(userID string) *Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.ledgers[userID]
	if !ok {
		l = newLedger(userID)
		m.ledgers[userID] = l
	}
	return l
}

// Hydrate merges durable rows for the period into the user's ledger.
// Rows whose IDs are already present in memory are skipped, so recently
// appended transactions not yet visible in the store are preserved.
func (m *Manager) Hydrate(ctx context.Context, userID string, period domain.Period) error {
	if m.store == nil {
		return nil
	}

	rows, err := m.store.ReadRows(ctx, userID, period)
	if err != nil {
		return fmt.Errorf("Hydrate: read rows for %s: %w", userID, err)
	}

	l := m.ForUser(userID)
	for _, row := range rows {
		if err := l.Append(row); err != nil {
			if errors.Is(err, ErrDuplicateID) {
				continue
			}
			return fmt.Errorf("Hydrate: append row %s: %w", row.ID, err)
		}
	}
	return nil
}

// HydrateRecent hydrates a window ending now and reaching back the given
// duration, the common case before listing or undoing recent entries.
func (m *Manager) HydrateRecent(ctx context.Context, userID string, now time.Time, back time.Duration) error {
	return m.Hydrate(ctx, userID, domain.Period{Start: now.Add(-back), End: now.Add(time.Second)})
}
