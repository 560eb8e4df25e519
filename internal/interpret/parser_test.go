package interpret

import (
	"testing"
	"time"

	"github.com/rcoelho/finbot/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	return cfg
}

var parseNow = time.Date(2025, time.November, 28, 12, 0, 0, 0, time.UTC)

func TestParseFreeText(t *testing.T) {
	p := NewParser(testConfig(t))

	tests := []struct {
		name         string
		input        string
		wantAmount   float64
		wantCategory string
	}{
		{
			name:         "expense with food keyword",
			input:        "gastei 50 no almoço",
			wantAmount:   -50,
			wantCategory: "food",
		},
		{
			name:         "income via salary keyword",
			input:        "recebi salario 3000",
			wantAmount:   3000,
			wantCategory: "salary",
		},
		{
			name:         "no keyword defaults to expense",
			input:        "25,90 padaria",
			wantAmount:   -25.90,
			wantCategory: "food",
		},
		{
			name:         "income verb without category",
			input:        "ganhei 120 de presente",
			wantAmount:   120,
			wantCategory: "",
		},
		{
			name:         "thousands separator",
			input:        "paguei 1.250,00 de aluguel",
			wantAmount:   -1250,
			wantCategory: "housing",
		},
		{
			name:         "transport keyword with accents stripped",
			input:        "gastei 8 no metrô",
			wantAmount:   -8,
			wantCategory: "transport",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := p.Parse(tt.input, parseNow)
			if intent.Kind != IntentTransaction {
				t.Fatalf("Parse(%q).Kind = %v (%s), want transaction", tt.input, intent.Kind, intent.Reason)
			}
			if intent.Candidate.Amount != tt.wantAmount {
				t.Errorf("Amount = %v, want %v", intent.Candidate.Amount, tt.wantAmount)
			}
			if intent.Candidate.Category != tt.wantCategory {
				t.Errorf("Category = %q, want %q", intent.Candidate.Category, tt.wantCategory)
			}
			if intent.Candidate.SourceText != tt.input {
				t.Errorf("SourceText = %q, want original input", intent.Candidate.SourceText)
			}
		})
	}
}

func TestParseFreeTextIncomeCategoriesFromConfig(t *testing.T) {
	cfg := &config.Config{
		Categories: map[string][]string{
			"earnings": {"freela"},
			"bills":    {"aluguel"},
			"other":    {},
		},
		DefaultCategory:  "other",
		IncomeCategories: []string{"earnings"},
	}
	p := NewParser(cfg)

	intent := p.Parse("freela 2000", parseNow)
	if intent.Kind != IntentTransaction {
		t.Fatalf("Kind = %v (%s), want transaction", intent.Kind, intent.Reason)
	}
	if intent.Candidate.Category != "earnings" {
		t.Errorf("Category = %q, want earnings", intent.Candidate.Category)
	}
	if intent.Candidate.Amount != 2000 {
		t.Errorf("Amount = %v, want 2000 (configured income category must flip the sign)", intent.Candidate.Amount)
	}

	intent = p.Parse("aluguel 800", parseNow)
	if intent.Candidate.Amount != -800 {
		t.Errorf("Amount = %v, want -800 (non-income category stays an expense)", intent.Candidate.Amount)
	}
}

func TestParseFreeTextDate(t *testing.T) {
	p := NewParser(testConfig(t))

	intent := p.Parse("gastei 30 no mercado 15/11/2025", parseNow)
	if intent.Kind != IntentTransaction {
		t.Fatalf("Kind = %v, want transaction", intent.Kind)
	}
	want := time.Date(2025, time.November, 15, 0, 0, 0, 0, time.UTC)
	if !intent.Candidate.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", intent.Candidate.Timestamp, want)
	}
	if intent.Candidate.Amount != -30 {
		t.Errorf("Amount = %v, want -30 (date digits must not be read as amount)", intent.Candidate.Amount)
	}
}

func TestParseSaveCommand(t *testing.T) {
	p := NewParser(testConfig(t))

	tests := []struct {
		name         string
		input        string
		wantKind     IntentKind
		wantAmount   float64
		wantCategory string
	}{
		{
			name:         "full save form",
			input:        "/save 50,00/Alimentação/Despesa/Jantar com amigos",
			wantKind:     IntentTransaction,
			wantAmount:   -50,
			wantCategory: "food",
		},
		{
			name:         "income save without description",
			input:        "/save 3000/salario/Receita",
			wantKind:     IntentTransaction,
			wantAmount:   3000,
			wantCategory: "salary",
		},
		{
			name:     "too few fields",
			input:    "/save 50/comida",
			wantKind: IntentUnrecognized,
		},
		{
			name:     "non numeric value",
			input:    "/save cinquenta/comida/Despesa",
			wantKind: IntentUnrecognized,
		},
		{
			name:     "invalid type",
			input:    "/save 50/comida/Emprestimo",
			wantKind: IntentUnrecognized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := p.Parse(tt.input, parseNow)
			if intent.Kind != tt.wantKind {
				t.Fatalf("Kind = %v (%s), want %v", intent.Kind, intent.Reason, tt.wantKind)
			}
			if tt.wantKind != IntentTransaction {
				if intent.Reason == "" {
					t.Error("unrecognized intent must carry a reason")
				}
				return
			}
			if intent.Candidate.Amount != tt.wantAmount {
				t.Errorf("Amount = %v, want %v", intent.Candidate.Amount, tt.wantAmount)
			}
			if intent.Candidate.Category != tt.wantCategory {
				t.Errorf("Category = %q, want %q", intent.Candidate.Category, tt.wantCategory)
			}
		})
	}
}

func TestParseOtherCommands(t *testing.T) {
	p := NewParser(testConfig(t))

	t.Run("last default", func(t *testing.T) {
		intent := p.Parse("/last", parseNow)
		if intent.Kind != IntentLast || intent.N != 5 {
			t.Errorf("got kind=%v n=%d, want last n=5", intent.Kind, intent.N)
		}
	})

	t.Run("last with count", func(t *testing.T) {
		intent := p.Parse("/last 12", parseNow)
		if intent.Kind != IntentLast || intent.N != 12 {
			t.Errorf("got kind=%v n=%d, want last n=12", intent.Kind, intent.N)
		}
	})

	t.Run("summary defaults to current month", func(t *testing.T) {
		intent := p.Parse("/summary", parseNow)
		if intent.Kind != IntentSummary || intent.Month != time.November || intent.Year != 2025 {
			t.Errorf("got %v %v/%d, want summary 11/2025", intent.Kind, intent.Month, intent.Year)
		}
	})

	t.Run("diagnostic with month and year", func(t *testing.T) {
		intent := p.Parse("/diagnostic 7 2024", parseNow)
		if intent.Kind != IntentDiagnosis || intent.Month != time.July || intent.Year != 2024 {
			t.Errorf("got %v %v/%d, want diagnosis 7/2024", intent.Kind, intent.Month, intent.Year)
		}
	})

	t.Run("diagnostic rejects bad month", func(t *testing.T) {
		intent := p.Parse("/diagnostic 13", parseNow)
		if intent.Kind != IntentUnrecognized {
			t.Errorf("got %v, want unrecognized", intent.Kind)
		}
	})

	t.Run("calc", func(t *testing.T) {
		intent := p.Parse("/calc 10 + 2 * 3", parseNow)
		if intent.Kind != IntentCalc || intent.Expression != "10 + 2 * 3" {
			t.Errorf("got %v %q", intent.Kind, intent.Expression)
		}
	})

	t.Run("undo", func(t *testing.T) {
		if intent := p.Parse("/undo", parseNow); intent.Kind != IntentUndo {
			t.Errorf("got %v, want undo", intent.Kind)
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		intent := p.Parse("/delete 3", parseNow)
		if intent.Kind != IntentUnrecognized {
			t.Errorf("got %v, want unrecognized", intent.Kind)
		}
	})
}

func TestParseUnrecognized(t *testing.T) {
	p := NewParser(testConfig(t))

	for _, input := range []string{"", "   ", "bom dia", "gastei muito hoje"} {
		intent := p.Parse(input, parseNow)
		if intent.Kind != IntentUnrecognized {
			t.Errorf("Parse(%q).Kind = %v, want unrecognized", input, intent.Kind)
		}
		if intent.Reason == "" {
			t.Errorf("Parse(%q) must carry a reason", input)
		}
	}
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"50", 50, true},
		{"50,00", 50, true},
		{"1.250,75", 1250.75, true},
		{"3.5", 3.5, true},
		{"-12,5", -12.5, true},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseDecimal(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseDecimal(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestFold(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Alimentação", "alimentacao"},
		{"  SALÁRIO ", "salario"},
		{"metrô", "metro"},
		{"simples", "simples"},
	}

	for _, tt := range tests {
		if got := fold(tt.input); got != tt.want {
			t.Errorf("fold(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
