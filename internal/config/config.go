package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the assistant. Values come
// from environment variables with sensible defaults; cmd binaries may
// override individual fields through flags.
type Config struct {
	// Categories maps each recognized category name to the lowercase,
	// accent-folded keywords that select it during parsing.
	Categories map[string][]string

	// DefaultCategory receives transactions whose text matches no
	// category keyword.
	DefaultCategory string

	// IncomeCategories names the categories whose transactions count as
	// income when the text carries no explicit income or expense keyword.
	IncomeCategories []string

	// SpikeThreshold is the relative increase over the prior period that
	// raises overspend / category-spike flags (0.20 = 20%).
	SpikeThreshold float64

	// FutureDatedTolerance bounds how far in the future a transaction
	// timestamp may lie before validation rejects it.
	FutureDatedTolerance time.Duration

	// SummarizerModel and SummarizerTimeout configure the Gemini call
	// that produces the diagnosis text.
	SummarizerModel   string
	SummarizerTimeout time.Duration

	// SpreadsheetID selects the Google Sheet backing the ledger;
	// SheetName is the tab holding transaction rows.
	SpreadsheetID string
	SheetName     string

	// BigQueryProject and BigQueryDataset locate the analytical archive.
	BigQueryProject string
	BigQueryDataset string

	// ReportBucket is the GCS bucket where diagnosis reports are
	// archived. Empty disables archiving.
	ReportBucket string

	// WebhookToken, when set, must match the X-Auth-Token header of
	// inbound webhook requests.
	WebhookToken string

	// Port is the HTTP listen port for the webhook server.
	Port string
}

// Default category taxonomy. Keywords are matched accent-folded and
// case-insensitive against the message text.
var defaultCategories = map[string][]string{
	"food":      {"almoco", "jantar", "cafe", "lanche", "mercado", "comida", "restaurante", "ifood", "padaria", "alimentacao"},
	"transport": {"uber", "taxi", "onibus", "metro", "gasolina", "combustivel", "estacionamento", "passagem", "transporte"},
	"housing":   {"aluguel", "condominio", "luz", "agua", "energia", "internet", "gas", "iptu", "moradia"},
	"salary":    {"salario", "pagamento", "freela", "freelance", "bonus", "renda"},
	"other":     {},
}

// Load builds a Config from the environment, falling back to defaults for
// anything unset. It returns an error only for values that are present
// but unparseable.
func Load() (*Config, error) {
	cfg := &Config{
		Categories:           defaultCategories,
		DefaultCategory:      "other",
		IncomeCategories:     []string{"salary"},
		SpikeThreshold:       0.20,
		FutureDatedTolerance: 24 * time.Hour,
		SummarizerModel:      getEnv("FINBOT_MODEL", "gemini-2.5-flash"),
		SummarizerTimeout:    30 * time.Second,
		SpreadsheetID:        os.Getenv("FINBOT_SPREADSHEET_ID"),
		SheetName:            getEnv("FINBOT_SHEET_NAME", "Transacoes"),
		BigQueryProject:      os.Getenv("FINBOT_BQ_PROJECT"),
		BigQueryDataset:      getEnv("FINBOT_BQ_DATASET", "finance"),
		ReportBucket:         os.Getenv("FINBOT_REPORT_BUCKET"),
		WebhookToken:         os.Getenv("FINBOT_WEBHOOK_TOKEN"),
		Port:                 getEnv("PORT", "8080"),
	}

	if raw := os.Getenv("FINBOT_CATEGORIES"); raw != "" {
		var cats map[string][]string
		if err := json.Unmarshal([]byte(raw), &cats); err != nil {
			return nil, fmt.Errorf("config.Load: parse FINBOT_CATEGORIES: %w", err)
		}
		if len(cats) == 0 {
			return nil, fmt.Errorf("config.Load: FINBOT_CATEGORIES must name at least one category")
		}
		cfg.Categories = cats
	}

	if raw := os.Getenv("FINBOT_INCOME_CATEGORIES"); raw != "" {
		var names []string
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
		cfg.IncomeCategories = names
	}

	if raw := os.Getenv("FINBOT_SPIKE_THRESHOLD"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("config.Load: parse FINBOT_SPIKE_THRESHOLD: %w", err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("config.Load: FINBOT_SPIKE_THRESHOLD must be positive, got %v", v)
		}
		cfg.SpikeThreshold = v
	}

	if raw := os.Getenv("FINBOT_FUTURE_TOLERANCE"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("config.Load: parse FINBOT_FUTURE_TOLERANCE: %w", err)
		}
		cfg.FutureDatedTolerance = d
	}

	if raw := os.Getenv("FINBOT_SUMMARIZER_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("config.Load: parse FINBOT_SUMMARIZER_TIMEOUT: %w", err)
		}
		cfg.SummarizerTimeout = d
	}

	if _, ok := cfg.Categories[cfg.DefaultCategory]; !ok {
		cfg.Categories[cfg.DefaultCategory] = nil
	}

	return cfg, nil
}

// CategoryNames returns the configured category names. Order is not
// defined; callers that need determinism sort the result.
func (c *Config) CategoryNames() []string {
	names := make([]string, 0, len(c.Categories))
	for name := range c.Categories {
		names = append(names, name)
	}
	return names
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
