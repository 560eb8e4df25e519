package insight

import (
	"fmt"
	"strings"

	"github.com/rcoelho/finbot/internal/domain"
	"github.com/rcoelho/finbot/internal/metrics"
)

// ComposeRequest serializes a snapshot into the request handed to the
// external summarizer. Pure and deterministic.
func ComposeRequest(snap *domain.MetricsSnapshot) *domain.DiagnosisRequest {
	return &domain.DiagnosisRequest{
		Snapshot: snap,
		Prompt:   buildDiagnosisPrompt(snap),
	}
}

// InterpretResult turns a summarizer result into the display text for the
// user. When the summarizer failed, reported itself unavailable, or
// returned nothing, it falls back to the deterministic templated summary
// so the user never goes without a response.
func InterpretResult(snap *domain.MetricsSnapshot, result *domain.DiagnosisResult, err error) string {
	if err != nil || result == nil || !result.Available || strings.TrimSpace(result.Text) == "" {
		return FallbackSummary(snap)
	}
	return strings.TrimSpace(result.Text)
}

// FallbackSummary is the deterministic diagnosis used when the AI
// summarizer is unavailable: the snapshot rendered as plain text.
func FallbackSummary(snap *domain.MetricsSnapshot) string {
	var b strings.Builder

	b.WriteString("Relatório automático:\n\n")
	b.WriteString(RenderSummary(snap))
	b.WriteString("\n(O diagnóstico detalhado está temporariamente indisponível.)")
	return b.String()
}

// RenderSummary renders the snapshot for the /summary command and as the
// body of the fallback diagnosis.
func RenderSummary(snap *domain.MetricsSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Resumo financeiro (%s)\n", snap.Period)
	fmt.Fprintf(&b, "Receitas: %s\n", metrics.FormatBRL(snap.TotalIncome))
	fmt.Fprintf(&b, "Despesas: %s\n", metrics.FormatBRL(snap.TotalExpense))
	fmt.Fprintf(&b, "Saldo: %s\n", metrics.FormatBRL(snap.Net))
	fmt.Fprintf(&b, "Taxa de poupança: %.2f%%\n", snap.SavingsRatePct)

	if cats := metrics.TopExpenseCategories(snap); len(cats) > 0 {
		b.WriteString("Despesas por categoria:\n")
		for _, cat := range cats {
			fmt.Fprintf(&b, " - %s: %s\n", cat, metrics.FormatBRL(-snap.ByCategory[cat]))
		}
	}

	for _, flag := range snap.TrendFlags {
		switch {
		case flag == domain.FlagOverspendVsPriorPeriod:
			b.WriteString("⚠ Gastos acima do período anterior.\n")
		case strings.HasPrefix(flag, domain.FlagCategorySpikePrefix):
			cat := strings.TrimPrefix(flag, domain.FlagCategorySpikePrefix)
			fmt.Fprintf(&b, "⚠ Aumento expressivo na categoria %s.\n", cat)
		}
	}

	return b.String()
}
