package insight

import (
	"fmt"
	"strings"

	"github.com/rcoelho/finbot/internal/domain"
	"github.com/rcoelho/finbot/internal/metrics"
)

// buildDiagnosisPrompt renders the instruction handed to the summarizer.
// It is deterministic: categories appear in descending-spend order, so
// the same snapshot always produces the same prompt.
func buildDiagnosisPrompt(snap *domain.MetricsSnapshot) string {
	var b strings.Builder

	b.WriteString("Você é um especialista em finanças pessoais. Analise o resumo financeiro\n")
	b.WriteString("abaixo e gere um relatório de diagnóstico completo, claro e motivador.\n")
	b.WriteString("Divida o relatório em: Visão geral, Principais pontos de atenção,\n")
	b.WriteString("Oportunidades de economia e Plano de ação (3 a 5 passos).\n")
	b.WriteString("Seja prático e dê números concretos (valores em reais e percentuais).\n")
	b.WriteString("Responda em texto simples, sem Markdown.\n\n")

	b.WriteString("Resumo financeiro (auto-gerado):\n")
	fmt.Fprintf(&b, "- Período: %s\n", snap.Period)
	fmt.Fprintf(&b, "- Receitas totais: %s\n", metrics.FormatBRL(snap.TotalIncome))
	fmt.Fprintf(&b, "- Despesas totais: %s\n", metrics.FormatBRL(snap.TotalExpense))
	fmt.Fprintf(&b, "- Saldo: %s\n", metrics.FormatBRL(snap.Net))
	fmt.Fprintf(&b, "- Taxa de poupança (%% sobre a receita): %.2f%%\n", snap.SavingsRatePct)

	if cats := metrics.TopExpenseCategories(snap); len(cats) > 0 {
		b.WriteString("- Despesas por categoria:\n")
		for _, cat := range cats {
			fmt.Fprintf(&b, "    %s: %s\n", cat, metrics.FormatBRL(-snap.ByCategory[cat]))
		}
	}

	if len(snap.TrendFlags) > 0 {
		b.WriteString("- Alertas detectados automaticamente:\n")
		for _, flag := range snap.TrendFlags {
			fmt.Fprintf(&b, "    %s\n", flag)
		}
	}

	b.WriteString("\nDê recomendações específicas com valores (ex.: \"reduza X na categoria Y,\n")
	b.WriteString("isso economiza R$ Z por mês\") e proponha metas concretas.\n")

	return b.String()
}
