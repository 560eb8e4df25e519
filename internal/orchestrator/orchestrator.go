// Package orchestrator drives one conversational session per user: it
// routes inbound messages through parsing, validation, the ledger and
// the insight pipeline, and renders the reply text.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rcoelho/finbot/internal/config"
	"github.com/rcoelho/finbot/internal/domain"
	"github.com/rcoelho/finbot/internal/insight"
	"github.com/rcoelho/finbot/internal/interpret"
	"github.com/rcoelho/finbot/internal/jobs"
	"github.com/rcoelho/finbot/internal/ledger"
	"github.com/rcoelho/finbot/internal/logger"
	"github.com/rcoelho/finbot/internal/metrics"
	"github.com/rcoelho/finbot/internal/reportstore"
)

// ReportArchiver persists diagnosis reports for later retrieval.
type ReportArchiver interface {
	Save(ctx context.Context, report *reportstore.Report) (string, error)
}

// Orchestrator owns the per-user sessions. All collaborators are set at
// construction; Summarizer, Publisher and Reports may be nil, in which
// case diagnosis falls back to the deterministic summary, durable writes
// are skipped and reports are not archived.
type Orchestrator struct {
	cfg        *config.Config
	parser     *interpret.Parser
	validator  *interpret.Validator
	ledgers    *ledger.Manager
	store      ledger.Store
	aggregator *metrics.Aggregator
	summarizer insight.Summarizer
	publisher  jobs.Publisher
	reports    ReportArchiver
	log        zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// session serializes message handling for one user. cancelDiagnosis
// aborts an in-flight summarizer call when a newer message supersedes it;
// it has its own lock so cancellation can happen while mu is held by the
// superseded handler.
type session struct {
	mu sync.Mutex

	cancelMu        sync.Mutex
	cancelDiagnosis context.CancelFunc
}

func (s *session) setCancel(c context.CancelFunc) {
	s.cancelMu.Lock()
	s.cancelDiagnosis = c
	s.cancelMu.Unlock()
}

func (s *session) cancelInflight() {
	s.cancelMu.Lock()
	if s.cancelDiagnosis != nil {
		s.cancelDiagnosis()
		s.cancelDiagnosis = nil
	}
	s.cancelMu.Unlock()
}

// Options carries the optional collaborators.
type Options struct {
	Store      ledger.Store
	Summarizer insight.Summarizer
	Publisher  jobs.Publisher
	Reports    ReportArchiver
	Logger     zerolog.Logger
}

// New creates an Orchestrator.
func New(cfg *config.Config, opts Options) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		parser:     interpret.NewParser(cfg),
		validator:  interpret.NewValidator(cfg),
		ledgers:    ledger.NewManager(opts.Store),
		store:      opts.Store,
		aggregator: metrics.NewAggregator(cfg.SpikeThreshold),
		summarizer: opts.Summarizer,
		publisher:  opts.Publisher,
		reports:    opts.Reports,
		log:        opts.Logger,
		sessions:   make(map[string]*session),
	}
}

// HandleMessage processes one inbound message and returns the reply text.
// It never returns an error to the transport: failures inside a session
// become an apologetic reply, and a panic in a handler is recovered so one
// bad message cannot take the session loop down.
func (o *Orchestrator) HandleMessage(ctx context.Context, userID, text string, receivedAt time.Time) (reply string) {
	log := logger.WithUser(o.log, userID)
	ctx = logger.WithContext(ctx, log)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("text", text).Msg("recovered panic while handling message")
			reply = "Desculpe, algo deu errado ao processar sua mensagem. Tente novamente."
		}
	}()

	sess := o.session(userID)
	sess.cancelInflight()
	sess.mu.Lock()
	defer sess.mu.Unlock()

	intent := o.parser.Parse(text, receivedAt)
	log.Debug().Str("intent", string(intent.Kind)).Msg("message parsed")

	switch intent.Kind {
	case interpret.IntentStart:
		return startText
	case interpret.IntentHelp:
		return helpText
	case interpret.IntentTransaction:
		return o.recordTransaction(ctx, userID, intent.Candidate, receivedAt)
	case interpret.IntentUndo:
		return o.undo(ctx, userID, receivedAt)
	case interpret.IntentLast:
		return o.lastEntries(ctx, userID, intent.N, receivedAt)
	case interpret.IntentSummary:
		return o.summary(ctx, userID, intent, receivedAt)
	case interpret.IntentDiagnosis:
		return o.diagnosis(ctx, sess, userID, intent, receivedAt)
	case interpret.IntentCalc:
		return o.calc(intent.Expression)
	default:
		return "Não entendi: " + intent.Reason
	}
}

// recordTransaction validates the candidate, appends it to the in-memory
// ledger and schedules the durable write. The reply confirms what was
// understood so the user can /undo a misread immediately.
func (o *Orchestrator) recordTransaction(ctx context.Context, userID string, c *interpret.TransactionCandidate, receivedAt time.Time) string {
	log := logger.FromContext(ctx)

	tx, err := o.validator.Validate(c, userID, receivedAt)
	if err != nil {
		switch {
		case errors.Is(err, interpret.ErrZeroAmount):
			return "O valor do lançamento não pode ser zero."
		case errors.Is(err, interpret.ErrFutureDated):
			return "A data do lançamento está no futuro; confira o dia informado."
		default:
			log.Error().Err(err).Msg("transaction validation failed")
			return "Não consegui validar o lançamento: " + err.Error()
		}
	}

	if err := o.ledgers.ForUser(userID).Append(tx); err != nil {
		log.Error().Err(err).Str("transaction_id", tx.ID).Msg("ledger append failed")
		return "Não consegui registrar o lançamento. Tente novamente."
	}

	o.schedulePersist(ctx, tx)

	kind := "Despesa"
	if tx.IsIncome() {
		kind = "Receita"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Anotado! %s de %s em %q", kind, metrics.FormatBRL(abs(tx.Amount)), tx.Category)
	if tx.Description != "" {
		fmt.Fprintf(&b, ": %s", tx.Description)
	}
	b.WriteString("\nSe eu entendi errado, envie /undo.")
	return b.String()
}

// recentWindow is how far back /last and /undo look in the durable store
// when the in-memory ledger may not hold the user's history yet.
const recentWindow = 90 * 24 * time.Hour

// undo appends a reversing transaction for the newest entry.
func (o *Orchestrator) undo(ctx context.Context, userID string, receivedAt time.Time) string {
	log := logger.FromContext(ctx)

	o.hydrateRecent(ctx, userID, receivedAt)

	l := o.ledgers.ForUser(userID)
	newest, ok := l.Newest()
	if !ok {
		return "Não há lançamentos para desfazer."
	}

	rev := newest.Reversal()
	rev.ID = uuid.NewString()
	rev.Timestamp = receivedAt

	if err := l.Append(rev); err != nil {
		log.Error().Err(err).Str("transaction_id", rev.ID).Msg("reversal append failed")
		return "Não consegui desfazer o lançamento. Tente novamente."
	}

	o.schedulePersist(ctx, rev)

	return fmt.Sprintf("Desfeito: %s (%s).", describe(newest), metrics.FormatBRL(newest.Amount))
}

// lastEntries renders the n most recent transactions, oldest first.
func (o *Orchestrator) lastEntries(ctx context.Context, userID string, n int, receivedAt time.Time) string {
	o.hydrateRecent(ctx, userID, receivedAt)

	txs := o.ledgers.ForUser(userID).Last(n)
	if len(txs) == 0 {
		return "Ainda não há lançamentos registrados."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Últimos %d lançamentos:\n", len(txs))
	for _, tx := range txs {
		fmt.Fprintf(&b, "• %s  %s  %s\n", tx.Timestamp.Format("02/01"), metrics.FormatBRL(tx.Amount), describe(tx))
	}
	return strings.TrimRight(b.String(), "\n")
}

// summary renders the deterministic metrics report for the requested month.
func (o *Orchestrator) summary(ctx context.Context, userID string, intent interpret.ParsedIntent, receivedAt time.Time) string {
	snap := o.snapshot(ctx, userID, intent, receivedAt)
	if snap.TransactionCount == 0 {
		return fmt.Sprintf("Sem lançamentos no período %s.", snap.Period)
	}
	return insight.RenderSummary(snap)
}

// diagnosis runs the metrics snapshot through the summarizer, falling back
// to the deterministic report when the model is unavailable. A newer
// diagnosis request for the same user cancels the one in flight.
func (o *Orchestrator) diagnosis(ctx context.Context, sess *session, userID string, intent interpret.ParsedIntent, receivedAt time.Time) string {
	log := logger.FromContext(ctx)

	snap := o.snapshot(ctx, userID, intent, receivedAt)
	if snap.TransactionCount == 0 {
		return fmt.Sprintf("Sem lançamentos no período %s para diagnosticar.", snap.Period)
	}

	req := insight.ComposeRequest(snap)

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.SummarizerTimeout)
	sess.setCancel(cancel)
	defer func() {
		cancel()
		sess.setCancel(nil)
	}()

	var result *domain.DiagnosisResult
	var sumErr error
	if o.summarizer != nil {
		result, sumErr = o.summarizer.Summarize(callCtx, req)
		if sumErr != nil {
			log.Warn().Err(sumErr).Msg("summarizer unavailable, using fallback")
		}
	} else {
		sumErr = insight.ErrUnavailable
	}

	text := insight.InterpretResult(snap, result, sumErr)
	o.archiveReport(ctx, userID, req, result, text, snap)
	return text
}

func (o *Orchestrator) calc(expr string) string {
	v, err := interpret.Evaluate(expr)
	if err != nil {
		return "Não consegui calcular: " + err.Error()
	}
	return fmt.Sprintf("Resultado: %s", strings.Replace(fmt.Sprintf("%g", v), ".", ",", 1))
}

// hydrateRecent merges the recent durable rows into the user's in-memory
// ledger so /last and /undo see entries recorded before this process
// started. Failures degrade to the in-memory rows.
func (o *Orchestrator) hydrateRecent(ctx context.Context, userID string, now time.Time) {
	if o.store == nil {
		return
	}
	if err := o.ledgers.HydrateRecent(ctx, userID, now, recentWindow); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("ledger hydration failed, using in-memory rows only")
	}
}

// snapshot hydrates the requested month plus its predecessor (the trend
// baseline) and aggregates. Hydration failures degrade to whatever the
// in-memory ledger already holds.
func (o *Orchestrator) snapshot(ctx context.Context, userID string, intent interpret.ParsedIntent, receivedAt time.Time) *domain.MetricsSnapshot {
	log := logger.FromContext(ctx)

	period := domain.MonthPeriod(intent.Year, intent.Month, receivedAt.Location())
	hydrateSpan := domain.Period{Start: period.Previous().Start, End: period.End}

	if o.store != nil {
		if err := o.ledgers.Hydrate(ctx, userID, hydrateSpan); err != nil {
			log.Warn().Err(err).Msg("ledger hydration failed, using in-memory rows only")
		}
	}

	return o.aggregator.Aggregate(o.ledgers.ForUser(userID), period)
}

// schedulePersist hands the transaction to the durable-write queue. The
// in-memory append already succeeded, so a publish failure only delays
// durability and is logged rather than surfaced to the user.
func (o *Orchestrator) schedulePersist(ctx context.Context, tx *domain.Transaction) {
	if o.publisher == nil {
		return
	}
	job := &jobs.PersistTransactionJob{Transaction: tx}
	if err := o.publisher.PublishPersistTransaction(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to schedule durable write")
	}
}

// PersistJob is the queue handler for durable writes. Returning an error
// lets the queue retry with backoff.
func (o *Orchestrator) PersistJob(ctx context.Context, job jobs.Job) error {
	pj, ok := job.(*jobs.PersistTransactionJob)
	if !ok {
		return fmt.Errorf("PersistJob: unexpected job type %s", job.GetType())
	}
	if pj.Transaction == nil {
		return fmt.Errorf("PersistJob: job %s carries no transaction", pj.JobID)
	}
	if o.store == nil {
		return nil
	}
	if err := o.store.AppendRow(ctx, pj.Transaction.UserID, pj.Transaction); err != nil {
		return fmt.Errorf("PersistJob: appending row: %w", err)
	}
	return nil
}

func (o *Orchestrator) archiveReport(ctx context.Context, userID string, req *domain.DiagnosisRequest, result *domain.DiagnosisResult, text string, snap *domain.MetricsSnapshot) {
	if o.reports == nil {
		return
	}
	report := &reportstore.Report{
		UserID:      userID,
		GeneratedAt: time.Now(),
		Fallback:    result == nil || !result.Available,
		Prompt:      req.Prompt,
		Text:        text,
		Snapshot:    snap,
	}
	if result != nil {
		report.Model = result.Model
	}
	log := logger.FromContext(ctx)
	if uri, err := o.reports.Save(ctx, report); err != nil {
		log.Warn().Err(err).Msg("failed to archive diagnosis report")
	} else {
		log.Info().Str("uri", uri).Msg("diagnosis report archived")
	}
}

// Diagnose runs the diagnosis flow directly, bypassing message parsing.
// It serializes with the user's session like any inbound message.
func (o *Orchestrator) Diagnose(ctx context.Context, userID string, month time.Month, year int, now time.Time) string {
	log := logger.WithUser(o.log, userID)
	ctx = logger.WithContext(ctx, log)

	sess := o.session(userID)
	sess.cancelInflight()
	sess.mu.Lock()
	defer sess.mu.Unlock()

	return o.diagnosis(ctx, sess, userID, interpret.ParsedIntent{Kind: interpret.IntentDiagnosis, Month: month, Year: year}, now)
}

// Transactions hydrates and returns one user's transactions in the period,
// oldest first.
func (o *Orchestrator) Transactions(ctx context.Context, userID string, period domain.Period) []*domain.Transaction {
	log := logger.WithUser(o.log, userID)

	if o.store != nil {
		if err := o.ledgers.Hydrate(ctx, userID, period); err != nil {
			log.Warn().Err(err).Msg("ledger hydration failed, using in-memory rows only")
		}
	}
	return o.ledgers.ForUser(userID).Query(period)
}

// Ledgers exposes the ledger manager for read-only API handlers.
func (o *Orchestrator) Ledgers() *ledger.Manager {
	return o.ledgers
}

func (o *Orchestrator) session(userID string) *session {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[userID]
	if !ok {
		s = &session{}
		o.sessions[userID] = s
	}
	return s
}

func describe(tx *domain.Transaction) string {
	if tx.Description != "" {
		return tx.Description
	}
	return tx.Category
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

const startText = `Olá! Sou seu assistente financeiro.

Envie um lançamento em linguagem natural, por exemplo:
  "gastei 50 no almoço"
  "recebi salário 3000"

Ou use /help para ver todos os comandos.`

const helpText = `Comandos disponíveis:

/save valor/categoria/tipo/descrição — registra um lançamento
/last [n] — mostra os últimos n lançamentos (padrão 5)
/summary [mês] [ano] — resumo do período
/diagnostic [mês] [ano] — diagnóstico financeiro
/calc expressão — calculadora (ex.: /calc 120,50 + 33)
/undo — desfaz o último lançamento

Você também pode enviar texto livre, como "gastei 50 no almoço".`
