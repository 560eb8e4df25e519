package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rcoelho/finbot/internal/api/handlers"
	"github.com/rcoelho/finbot/internal/api/middleware"
	"github.com/rcoelho/finbot/internal/config"
	"github.com/rcoelho/finbot/internal/infra/sheets"
	"github.com/rcoelho/finbot/internal/insight"
	"github.com/rcoelho/finbot/internal/jobs/inmemory"
	"github.com/rcoelho/finbot/internal/ledger"
	"github.com/rcoelho/finbot/internal/logger"
	"github.com/rcoelho/finbot/internal/orchestrator"
	"github.com/rcoelho/finbot/internal/reportstore"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()

	// Durable row store. Without a spreadsheet the ledger is memory-only,
	// which is fine for local development.
	var store ledger.Store
	if cfg.SpreadsheetID != "" {
		sheetStore, err := sheets.NewStore(ctx, cfg.SpreadsheetID, cfg.SheetName)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create sheet store")
		}
		store = sheetStore
	} else {
		log.Warn().Msg("No spreadsheet configured - transactions will not be persisted")
	}

	// Summarizer. Without an API key diagnosis always falls back to the
	// deterministic report.
	var summarizer insight.Summarizer
	if os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("GOOGLE_API_KEY") != "" {
		summarizer = insight.NewGeminiSummarizer(cfg.SummarizerModel)
	} else {
		log.Warn().Msg("No Gemini API key configured - diagnosis will use the deterministic fallback")
	}

	// Diagnosis report archive.
	var reports orchestrator.ReportArchiver
	if cfg.ReportBucket != "" {
		reportStore, err := reportstore.NewStore(ctx, cfg.ReportBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create report store")
		}
		defer reportStore.Close()
		reports = reportStore
	}

	// Job infrastructure for durable writes.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	orch := orchestrator.New(cfg, orchestrator.Options{
		Store:      store,
		Summarizer: summarizer,
		Publisher:  jobQueue,
		Reports:    reports,
		Logger:     log,
	})

	// Start worker in background to process durable writes.
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Msg("Starting durable-write worker")
		if err := jobQueue.Start(workerCtx, orch.PersistJob); err != nil {
			log.Error().Err(err).Msg("Durable-write worker stopped with error")
		}
	}()

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(orch, log)
	transactionsHandler := handlers.NewTransactionsHandler(orch, log)
	diagnosisHandler := handlers.NewDiagnosisHandler(orch, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/webhook", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			webhookHandler.HandleMessage(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.ListTransactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/diagnosis", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			diagnosisHandler.CreateDiagnosis(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.WebhookAuth(cfg.WebhookToken)(mux),
				),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting bot server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight durable writes
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
