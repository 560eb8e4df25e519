package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcoelho/finbot/internal/config"
	"github.com/rcoelho/finbot/internal/domain"
	infraBQ "github.com/rcoelho/finbot/internal/infra/bigquery"
	"github.com/rcoelho/finbot/internal/infra/sheets"
	"github.com/rcoelho/finbot/internal/insight"
	"github.com/rcoelho/finbot/internal/interpret"
	"github.com/rcoelho/finbot/internal/ledger"
	"github.com/rcoelho/finbot/internal/logger"
	"github.com/rcoelho/finbot/internal/orchestrator"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "send":
		runSend(log)
	case "diagnose":
		runDiagnose(log)
	case "export":
		runExport(log)
	case "history":
		runHistory(log)
	case "calc":
		runCalc(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finbot CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  send      Send one message through the session pipeline and print the reply")
	fmt.Println("  diagnose  Run a financial diagnosis for a user and month")
	fmt.Println("  export    Copy a month of spreadsheet rows into the BigQuery archive")
	fmt.Println("  history   List a user's archived transactions over a date range")
	fmt.Println("  calc      Evaluate an arithmetic expression")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// buildOrchestrator wires an orchestrator against the configured
// spreadsheet, without job queue or report archive.
func buildOrchestrator(ctx context.Context, log zerolog.Logger, cfg *config.Config, withSummarizer bool) *orchestrator.Orchestrator {
	var store ledger.Store
	if cfg.SpreadsheetID != "" {
		sheetStore, err := sheets.NewStore(ctx, cfg.SpreadsheetID, cfg.SheetName)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create sheet store")
		}
		store = sheetStore
	}

	var summarizer insight.Summarizer
	if withSummarizer {
		summarizer = insight.NewGeminiSummarizer(cfg.SummarizerModel)
	}

	return orchestrator.New(cfg, orchestrator.Options{
		Store:      store,
		Summarizer: summarizer,
		Logger:     log,
	})
}

func runSend(log zerolog.Logger) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	userID := fs.String("user", "", "User ID owning the session")
	text := fs.String("text", "", "Message text")
	fs.Parse(os.Args[2:])

	if *userID == "" || *text == "" {
		log.Fatal().Msg("Usage: cli send -user ID -text MESSAGE")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	orch := buildOrchestrator(ctx, log, cfg, false)
	fmt.Println(orch.HandleMessage(ctx, *userID, *text, time.Now()))
}

func runDiagnose(log zerolog.Logger) {
	fs := flag.NewFlagSet("diagnose", flag.ExitOnError)
	userID := fs.String("user", "", "User ID to diagnose")
	month := fs.Int("month", 0, "Month (1-12, defaults to current)")
	year := fs.Int("year", 0, "Year (defaults to current)")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	now := time.Now()
	m := now.Month()
	y := now.Year()
	if *month != 0 {
		if *month < 1 || *month > 12 {
			log.Fatal().Msg("Error: --month must be between 1 and 12")
		}
		m = time.Month(*month)
	}
	if *year != 0 {
		y = *year
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	orch := buildOrchestrator(ctx, log, cfg, true)
	fmt.Println(orch.Diagnose(ctx, *userID, m, y, now))
}

// runExport copies one month of spreadsheet rows into the BigQuery
// archive, where reporting queries are cheap.
func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	userID := fs.String("user", "", "User ID whose rows to export")
	month := fs.Int("month", 0, "Month (1-12, defaults to current)")
	year := fs.Int("year", 0, "Year (defaults to current)")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.SpreadsheetID == "" {
		log.Fatal().Msg("Error: FINBOT_SPREADSHEET_ID is required for export")
	}
	if cfg.BigQueryProject == "" {
		log.Fatal().Msg("Error: FINBOT_BQ_PROJECT is required for export")
	}

	now := time.Now()
	m := now.Month()
	y := now.Year()
	if *month != 0 {
		m = time.Month(*month)
	}
	if *year != 0 {
		y = *year
	}
	period := domain.MonthPeriod(y, m, now.Location())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	sheetStore, err := sheets.NewStore(ctx, cfg.SpreadsheetID, cfg.SheetName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sheet store")
	}

	txs, err := sheetStore.ReadRows(ctx, *userID, period)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read spreadsheet rows")
	}
	if len(txs) == 0 {
		fmt.Printf("No rows for %s in %s.\n", *userID, period)
		return
	}

	archive, err := infraBQ.NewArchive(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery archive")
	}
	defer archive.Close()

	rows := make([]*infraBQ.TransactionRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, infraBQ.RowFromTransaction(tx))
	}

	if err := archive.InsertTransactions(ctx, rows); err != nil {
		log.Fatal().Err(err).Msg("Failed to insert archive rows")
	}

	fmt.Printf("Exported %d rows for %s (%s) to %s.%s.\n", len(rows), *userID, period, cfg.BigQueryProject, cfg.BigQueryDataset)
}

// runHistory reads a user's rows from the BigQuery archive, covering
// ranges that left the active sheet long ago.
func runHistory(log zerolog.Logger) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	userID := fs.String("user", "", "User ID whose archive rows to read")
	from := fs.String("from", "", "Start date (YYYY-MM-DD, defaults to one year ago)")
	to := fs.String("to", "", "End date (YYYY-MM-DD inclusive, defaults to today)")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.BigQueryProject == "" {
		log.Fatal().Msg("Error: FINBOT_BQ_PROJECT is required for history")
	}

	now := time.Now()
	start := now.AddDate(-1, 0, 0)
	end := now
	if *from != "" {
		start, err = time.Parse("2006-01-02", *from)
		if err != nil {
			log.Fatal().Err(err).Msg("Error: --from must be YYYY-MM-DD")
		}
	}
	if *to != "" {
		end, err = time.Parse("2006-01-02", *to)
		if err != nil {
			log.Fatal().Err(err).Msg("Error: --to must be YYYY-MM-DD")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	archive, err := infraBQ.NewArchive(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery archive")
	}
	defer archive.Close()

	rows, err := archive.QueryTransactionsByDateRange(ctx, *userID, start, end)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to query archive rows")
	}
	if len(rows) == 0 {
		fmt.Printf("No archived rows for %s between %s and %s.\n", *userID, start.Format("2006-01-02"), end.Format("2006-01-02"))
		return
	}

	fmt.Println(infraBQ.RenderHistory(rows))
}

func runCalc(log zerolog.Logger) {
	fs := flag.NewFlagSet("calc", flag.ExitOnError)
	expr := fs.String("expr", "", "Arithmetic expression, comma decimals allowed")
	fs.Parse(os.Args[2:])

	if *expr == "" {
		log.Fatal().Msg("Usage: cli calc -expr \"120,50 + 33\"")
	}

	v, err := interpret.Evaluate(*expr)
	if err != nil {
		log.Fatal().Err(err).Msg("Evaluation failed")
	}
	fmt.Printf("%g\n", v)
}
