package metrics

import (
	"fmt"
	"sort"

	"github.com/rcoelho/finbot/internal/domain"
	"github.com/rcoelho/finbot/internal/ledger"
)

// Aggregator computes MetricsSnapshots from a ledger. It is deterministic:
// the same ledger contents and period always produce the same snapshot,
// including trend-flag order.
type Aggregator struct {
	// spikeThreshold is the relative increase over the prior period that
	// raises trend flags (0.20 = 20%).
	spikeThreshold float64
}

// NewAggregator creates an aggregator with the configured spike threshold.
func NewAggregator(spikeThreshold float64) *Aggregator {
	return &Aggregator{spikeThreshold: spikeThreshold}
}

// Aggregate runs a single pass over the period's transactions, and one
// more over the immediately preceding period of equal length for trend
// detection.
func (a *Aggregator) Aggregate(l *ledger.Ledger, period domain.Period) *domain.MetricsSnapshot {
	snap := &domain.MetricsSnapshot{
		UserID:     l.UserID(),
		Period:     period,
		ByCategory: make(map[string]float64),
	}

	for _, tx := range l.Query(period) {
		snap.TransactionCount++
		if tx.Amount > 0 {
			snap.TotalIncome += tx.Amount
		} else {
			snap.TotalExpense += -tx.Amount
		}
		snap.ByCategory[tx.Category] += tx.Amount
	}
	snap.Net = snap.TotalIncome - snap.TotalExpense
	if snap.TotalIncome != 0 {
		snap.SavingsRatePct = snap.Net / snap.TotalIncome * 100
	}

	// Categories whose entries cancel to zero net activity are omitted.
	for cat, sum := range snap.ByCategory {
		if sum == 0 {
			delete(snap.ByCategory, cat)
		}
	}

	snap.TrendFlags = a.trendFlags(l, snap)
	return snap
}

// trendFlags compares the snapshot's expenses against the preceding
// period of equal length. Flags are sorted so snapshots compare equal
// across runs.
func (a *Aggregator) trendFlags(l *ledger.Ledger, snap *domain.MetricsSnapshot) []string {
	prior := snap.Period.Previous()

	var priorExpense float64
	priorByCategory := make(map[string]float64)
	for _, tx := range l.Query(prior) {
		if tx.Amount < 0 {
			priorExpense += -tx.Amount
			priorByCategory[tx.Category] += -tx.Amount
		}
	}

	var flags []string
	if exceeds(snap.TotalExpense, priorExpense, a.spikeThreshold) {
		flags = append(flags, domain.FlagOverspendVsPriorPeriod)
	}
	for cat, sum := range snap.ByCategory {
		if sum >= 0 {
			continue
		}
		if exceeds(-sum, priorByCategory[cat], a.spikeThreshold) {
			flags = append(flags, domain.FlagCategorySpikePrefix+cat)
		}
	}

	sort.Strings(flags)
	return flags
}

// exceeds reports whether current is more than (1+threshold) times prior.
// A zero prior never flags: with no baseline any spend would be an
// infinite increase, which is noise for a new user.
func exceeds(current, prior, threshold float64) bool {
	if prior <= 0 {
		return false
	}
	return current > prior*(1+threshold)
}

// TopExpenseCategories returns the snapshot's expense categories sorted
// by descending absolute spend, for rendering summaries.
func TopExpenseCategories(snap *domain.MetricsSnapshot) []string {
	var cats []string
	for cat, sum := range snap.ByCategory {
		if sum < 0 {
			cats = append(cats, cat)
		}
	}
	sort.Slice(cats, func(i, j int) bool {
		si, sj := snap.ByCategory[cats[i]], snap.ByCategory[cats[j]]
		if si != sj {
			return si < sj // more negative = bigger spend
		}
		return cats[i] < cats[j]
	})
	return cats
}

// FormatBRL renders an amount the way the assistant displays money.
func FormatBRL(v float64) string {
	return fmt.Sprintf("R$ %.2f", v)
}
