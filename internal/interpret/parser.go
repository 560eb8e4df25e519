package interpret

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rcoelho/finbot/internal/config"
)

// Parser turns raw inbound text into a ParsedIntent. It recognizes the
// explicit command forms (/save, /last, /summary, /diagnostic, /calc,
// /undo, /start, /help) and a loose natural-language form carrying an
// amount, optional category keywords and optional dd/mm/yyyy date.
// Parse never fails: malformed input yields IntentUnrecognized with a
// reason the orchestrator echoes back.
type Parser struct {
	cfg *config.Config

	// folded category name -> canonical name
	categoryByName map[string]string
	// folded keyword -> canonical category name
	categoryByKeyword map[string]string
	// canonical names of categories that imply income
	incomeCategories map[string]bool
}

// NewParser builds a parser over the configured category taxonomy.
func NewParser(cfg *config.Config) *Parser {
	p := &Parser{
		cfg:               cfg,
		categoryByName:    make(map[string]string),
		categoryByKeyword: make(map[string]string),
		incomeCategories:  make(map[string]bool),
	}
	for name, keywords := range cfg.Categories {
		p.categoryByName[fold(name)] = name
		for _, kw := range keywords {
			p.categoryByKeyword[fold(kw)] = name
		}
	}
	for _, name := range cfg.IncomeCategories {
		p.incomeCategories[name] = true
	}
	return p
}

var (
	dateRe   = regexp.MustCompile(`\b(\d{2})/(\d{2})/(\d{4})\b`)
	amountRe = regexp.MustCompile(`-?\d+(?:\.\d{3})+(?:,\d+)?|-?\d+[.,]\d+|-?\d+`)

	incomeWords  = []string{"recebi", "ganhei", "receita", "rendimento", "entrou", "caiu"}
	expenseWords = []string{"gastei", "paguei", "comprei", "despesa", "torrei"}
)

// Parse interprets one inbound message. now is the message receipt time,
// used only to resolve relative date defaults for command arguments.
func (p *Parser) Parse(raw string, now time.Time) ParsedIntent {
	text := strings.TrimSpace(raw)
	if text == "" {
		return unrecognized("mensagem vazia; envie um lançamento ou um comando (use /help)")
	}

	if strings.HasPrefix(text, "/") {
		return p.parseCommand(text, now)
	}
	return p.parseFreeText(text, now)
}

func (p *Parser) parseCommand(text string, now time.Time) ParsedIntent {
	name, args, _ := strings.Cut(text[1:], " ")
	args = strings.TrimSpace(args)

	switch fold(name) {
	case "start":
		return ParsedIntent{Kind: IntentStart}
	case "help", "ajuda":
		return ParsedIntent{Kind: IntentHelp}
	case "save", "salvar":
		return p.parseSave(text, args)
	case "last", "ultimas":
		n := 5
		if args != "" {
			v, err := strconv.Atoi(args)
			if err != nil || v <= 0 {
				return unrecognized("quantidade inválida; use /last [n] com n inteiro positivo")
			}
			n = v
		}
		return ParsedIntent{Kind: IntentLast, N: n}
	case "summary", "resumo":
		return p.parsePeriodCommand(IntentSummary, args, now)
	case "diagnostic", "diagnostico":
		return p.parsePeriodCommand(IntentDiagnosis, args, now)
	case "calc":
		if args == "" {
			return unrecognized("informe uma expressão; exemplo: /calc 120,50 + 33")
		}
		return ParsedIntent{Kind: IntentCalc, Expression: args}
	case "undo", "desfazer":
		return ParsedIntent{Kind: IntentUndo}
	default:
		return unrecognized("comando desconhecido: /" + name + " (use /help)")
	}
}

// parseSave handles the strict form: /save valor/categoria/tipo/descrição.
// Description is optional; tipo is Receita or Despesa.
func (p *Parser) parseSave(source, args string) ParsedIntent {
	if args == "" {
		return unrecognized("use /save valor/categoria/tipo/descrição (descrição opcional)")
	}

	parts := strings.SplitN(args, "/", 4)
	if len(parts) < 3 {
		return unrecognized("formato inválido; use /save valor/categoria/tipo/descrição")
	}

	amount, ok := parseDecimal(strings.TrimSpace(parts[0]))
	if !ok {
		return unrecognized("o valor deve ser um número; exemplo: /save 50,00/Alimentação/Despesa")
	}

	var sign float64
	switch fold(parts[2]) {
	case "despesa", "gasto":
		sign = -1
	case "receita", "renda":
		sign = 1
	default:
		return unrecognized("o tipo deve ser 'Despesa' ou 'Receita'")
	}

	desc := ""
	if len(parts) == 4 {
		desc = strings.TrimSpace(parts[3])
	}

	return ParsedIntent{
		Kind: IntentTransaction,
		Candidate: &TransactionCandidate{
			Amount:      sign * abs(amount),
			Category:    p.resolveCategory(parts[1]),
			Description: desc,
			SourceText:  source,
		},
	}
}

func (p *Parser) parsePeriodCommand(kind IntentKind, args string, now time.Time) ParsedIntent {
	intent := ParsedIntent{Kind: kind, Month: now.Month(), Year: now.Year()}
	if args == "" {
		return intent
	}

	fields := strings.Fields(args)
	month, err := strconv.Atoi(fields[0])
	if err != nil || month < 1 || month > 12 {
		return unrecognized("mês inválido; use um número de 1 a 12")
	}
	intent.Month = time.Month(month)

	if len(fields) > 1 {
		year, err := strconv.Atoi(fields[1])
		if err != nil || year < 1000 {
			return unrecognized("ano inválido; use quatro dígitos, por exemplo 2025")
		}
		intent.Year = year
	}
	return intent
}

// parseFreeText handles the loose natural-language form: an amount plus
// optional category keywords, optional date and free description, in any
// order. Example: "gastei 50 no almoço".
func (p *Parser) parseFreeText(text string, now time.Time) ParsedIntent {
	remainder := text

	var ts time.Time
	if m := dateRe.FindStringSubmatch(remainder); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		parsed := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
		// Reject impossible dates like 31/02 that time.Date normalizes.
		if parsed.Day() == day && int(parsed.Month()) == month {
			ts = parsed
			remainder = strings.Replace(remainder, m[0], " ", 1)
		}
	}

	amountToken := amountRe.FindString(remainder)
	if amountToken == "" {
		return unrecognized("não encontrei um valor na mensagem; exemplo: 'gastei 50 no almoço'")
	}
	amount, ok := parseDecimal(amountToken)
	if !ok || amount == 0 {
		return unrecognized("não consegui interpretar o valor '" + amountToken + "'")
	}
	remainder = strings.Replace(remainder, amountToken, " ", 1)

	category := p.matchCategory(remainder)

	sign := -1.0 // absent a keyword, default to expense
	folded := fold(text)
	if containsAny(folded, incomeWords) || p.incomeCategories[category] {
		sign = 1.0
	}
	if containsAny(folded, expenseWords) {
		sign = -1.0
	}

	return ParsedIntent{
		Kind: IntentTransaction,
		Candidate: &TransactionCandidate{
			Amount:      sign * abs(amount),
			Category:    category,
			Description: collapseSpaces(remainder),
			Timestamp:   ts,
			SourceText:  text,
		},
	}
}

// resolveCategory maps an explicit user label to a configured category:
// first by name, then by keyword. Unknown labels return the folded label
// itself; the validator defaults those.
func (p *Parser) resolveCategory(label string) string {
	key := fold(label)
	if name, ok := p.categoryByName[key]; ok {
		return name
	}
	if name, ok := p.categoryByKeyword[key]; ok {
		return name
	}
	return key
}

// matchCategory scans free text for the first configured keyword or
// category name. No match returns "".
func (p *Parser) matchCategory(text string) string {
	for _, word := range strings.Fields(fold(text)) {
		word = strings.Trim(word, ".,;:!?")
		if name, ok := p.categoryByKeyword[word]; ok {
			return name
		}
		if name, ok := p.categoryByName[word]; ok {
			return name
		}
	}
	return ""
}

// parseDecimal accepts pt-BR decimals: comma decimal separator, optional
// dot thousands separators. Plain dot decimals are accepted too.
func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func containsAny(folded string, words []string) bool {
	for _, w := range words {
		if strings.Contains(folded, w) {
			return true
		}
	}
	return false
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
