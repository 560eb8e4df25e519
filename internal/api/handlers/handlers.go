package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcoelho/finbot/internal/api/middleware"
	"github.com/rcoelho/finbot/internal/domain"
	"github.com/rcoelho/finbot/internal/jobs"
	"github.com/rcoelho/finbot/internal/orchestrator"
)

// WebhookHandler receives inbound chat messages and replies with the
// session's response text.
type WebhookHandler struct {
	orch *orchestrator.Orchestrator
	log  zerolog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(orch *orchestrator.Orchestrator, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{orch: orch, log: log}
}

// webhookRequest is one inbound message. ReceivedAt is optional; absent
// means the server receipt time.
type webhookRequest struct {
	UserID     string     `json:"user_id"`
	Text       string     `json:"text"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`
}

// HandleMessage handles POST /webhook
func (h *WebhookHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.UserID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Text == "" {
		middleware.WriteError(w, http.StatusBadRequest, "text is required")
		return
	}

	receivedAt := time.Now()
	if req.ReceivedAt != nil {
		receivedAt = *req.ReceivedAt
	}

	reply := h.orch.HandleMessage(r.Context(), req.UserID, req.Text, receivedAt)

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"user_id": req.UserID,
		"text":    reply,
	})
}

// TransactionsHandler serves read access to a user's ledger.
type TransactionsHandler struct {
	orch *orchestrator.Orchestrator
	log  zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(orch *orchestrator.Orchestrator, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{orch: orch, log: log}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	userID := query.Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	period, ok := periodFromQuery(query.Get("start_date"), query.Get("end_date"), time.Now())
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date or end_date format")
		return
	}

	txs := h.orch.Transactions(r.Context(), userID, period)

	// Return array directly for frontend compatibility
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, txs)
}

// DiagnosisHandler triggers an on-demand financial diagnosis.
type DiagnosisHandler struct {
	orch *orchestrator.Orchestrator
	log  zerolog.Logger
}

// NewDiagnosisHandler creates a new diagnosis handler.
func NewDiagnosisHandler(orch *orchestrator.Orchestrator, log zerolog.Logger) *DiagnosisHandler {
	return &DiagnosisHandler{orch: orch, log: log}
}

// CreateDiagnosis handles POST /api/diagnosis
func (h *DiagnosisHandler) CreateDiagnosis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Month  int    `json:"month,omitempty"`
		Year   int    `json:"year,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	now := time.Now()
	month := now.Month()
	year := now.Year()
	if req.Month != 0 {
		if req.Month < 1 || req.Month > 12 {
			middleware.WriteError(w, http.StatusBadRequest, "month must be between 1 and 12")
			return
		}
		month = time.Month(req.Month)
	}
	if req.Year != 0 {
		year = req.Year
	}

	text := h.orch.Diagnose(r.Context(), req.UserID, month, year, now)

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"user_id": req.UserID,
		"text":    text,
	})
}

// JobsHandler serves status of durable-write jobs.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: query.Get("user_id"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// periodFromQuery resolves optional start_date/end_date parameters
// (2006-01-02) to a half-open period, defaulting to the last year. The
// end date is inclusive in the query string, so one day is added.
func periodFromQuery(startStr, endStr string, now time.Time) (domain.Period, bool) {
	start := now.AddDate(-1, 0, 0)
	end := now

	if startStr != "" {
		t, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return domain.Period{}, false
		}
		start = t
	}
	if endStr != "" {
		t, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return domain.Period{}, false
		}
		end = t.AddDate(0, 0, 1)
	}

	return domain.Period{Start: start, End: end}, true
}
