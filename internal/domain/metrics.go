package domain

// Trend flag names produced by the aggregator. Category spikes are
// rendered as FlagCategorySpikePrefix + category name.
const (
	FlagOverspendVsPriorPeriod = "overspend_vs_prior_period"
	FlagCategorySpikePrefix    = "category_spike:"
)

// MetricsSnapshot is the derived, ephemeral aggregate over one ledger
// period. It is recomputed on every diagnosis request and never cached.
type MetricsSnapshot struct {
	UserID string `json:"user_id"`
	Period Period `json:"period"`

	TotalIncome  float64 `json:"total_income"`
	TotalExpense float64 `json:"total_expense"`
	Net          float64 `json:"net"`

	// SavingsRatePct is Net over TotalIncome as a percentage; zero when
	// the period has no income.
	SavingsRatePct float64 `json:"savings_rate_pct"`

	// ByCategory maps category name to the signed sum of its amounts.
	// Categories with no activity in the period are absent.
	ByCategory map[string]float64 `json:"by_category"`

	// TrendFlags holds anomaly indicators relative to the preceding
	// period of equal length.
	TrendFlags []string `json:"trend_flags,omitempty"`

	TransactionCount int `json:"transaction_count"`
}

// HasFlag reports whether the snapshot carries the given trend flag.
func (s *MetricsSnapshot) HasFlag(flag string) bool {
	for _, f := range s.TrendFlags {
		if f == flag {
			return true
		}
	}
	return false
}
