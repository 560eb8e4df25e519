package orchestrator

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rcoelho/finbot/internal/config"
	"github.com/rcoelho/finbot/internal/domain"
	"github.com/rcoelho/finbot/internal/insight"
	"github.com/rcoelho/finbot/internal/jobs"
	"github.com/rcoelho/finbot/internal/logger"
	"github.com/rcoelho/finbot/internal/reportstore"
)

var testNow = time.Date(2025, 11, 28, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Categories: map[string][]string{
			"food":      {"almoco", "mercado", "comida"},
			"transport": {"uber", "metro"},
			"salary":    {"salario", "renda"},
			"other":     {},
		},
		DefaultCategory:      "other",
		SpikeThreshold:       0.20,
		FutureDatedTolerance: 24 * time.Hour,
		SummarizerModel:      "test-model",
		SummarizerTimeout:    time.Second,
	}
}

type fakeStore struct {
	mu       sync.Mutex
	appended []*domain.Transaction
	rows     []*domain.Transaction
	readErr  error
}

func (s *fakeStore) AppendRow(ctx context.Context, userID string, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended = append(s.appended, tx)
	return nil
}

func (s *fakeStore) ReadRows(ctx context.Context, userID string, period domain.Period) ([]*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	var out []*domain.Transaction
	for _, tx := range s.rows {
		if tx.UserID == userID && period.Contains(tx.Timestamp) {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	jobs []*jobs.PersistTransactionJob
}

func (p *fakePublisher) PublishPersistTransaction(ctx context.Context, job *jobs.PersistTransactionJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

type fakeSummarizer struct {
	result *domain.DiagnosisResult
	err    error
	panics bool
}

func (s *fakeSummarizer) Summarize(ctx context.Context, req *domain.DiagnosisRequest) (*domain.DiagnosisResult, error) {
	if s.panics {
		panic("summarizer exploded")
	}
	return s.result, s.err
}

// blockingSummarizer holds its call open until the context is cancelled,
// then reports the cancellation cause.
type blockingSummarizer struct {
	started chan struct{}
	ctxErr  chan error
}

func (s *blockingSummarizer) Summarize(ctx context.Context, req *domain.DiagnosisRequest) (*domain.DiagnosisResult, error) {
	close(s.started)
	<-ctx.Done()
	s.ctxErr <- ctx.Err()
	return nil, ctx.Err()
}

type fakeArchiver struct {
	mu      sync.Mutex
	reports []*reportstore.Report
}

func (a *fakeArchiver) Save(ctx context.Context, report *reportstore.Report) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reports = append(a.reports, report)
	return "gs://test/" + report.UserID, nil
}

func newTestOrchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	opts.Logger = logger.NewWithWriter(io.Discard)
	return New(testConfig(), opts)
}

func TestHandleMessageRecordsFreeTextExpense(t *testing.T) {
	pub := &fakePublisher{}
	o := newTestOrchestrator(t, Options{Store: &fakeStore{}, Publisher: pub})

	reply := o.HandleMessage(context.Background(), "user-1", "gastei 50 no almoco", testNow)

	if !strings.Contains(reply, "Anotado") {
		t.Errorf("expected confirmation, got %q", reply)
	}
	if !strings.Contains(reply, "food") {
		t.Errorf("expected category in reply, got %q", reply)
	}

	l := o.Ledgers().ForUser("user-1")
	if l.Len() != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", l.Len())
	}
	newest, _ := l.Newest()
	if newest.Amount != -50 {
		t.Errorf("expected amount -50, got %v", newest.Amount)
	}
	if pub.count() != 1 {
		t.Errorf("expected 1 durable-write job, got %d", pub.count())
	}
}

func TestHandleMessageRejectsZeroAmount(t *testing.T) {
	o := newTestOrchestrator(t, Options{Store: &fakeStore{}})

	reply := o.HandleMessage(context.Background(), "user-1", "/save 0/food/Despesa/nada", testNow)

	if !strings.Contains(reply, "zero") {
		t.Errorf("expected zero-amount rejection, got %q", reply)
	}
	if o.Ledgers().ForUser("user-1").Len() != 0 {
		t.Error("rejected transaction must not reach the ledger")
	}
}

func TestHandleMessageUndo(t *testing.T) {
	o := newTestOrchestrator(t, Options{Store: &fakeStore{}})
	ctx := context.Background()

	if reply := o.HandleMessage(ctx, "user-1", "/undo", testNow); !strings.Contains(reply, "Não há lançamentos") {
		t.Errorf("expected empty-ledger reply, got %q", reply)
	}

	o.HandleMessage(ctx, "user-1", "gastei 80 no mercado", testNow)
	reply := o.HandleMessage(ctx, "user-1", "/undo", testNow.Add(time.Minute))

	if !strings.Contains(reply, "Desfeito") {
		t.Errorf("expected undo confirmation, got %q", reply)
	}

	l := o.Ledgers().ForUser("user-1")
	if l.Len() != 2 {
		t.Fatalf("undo must append a reversal, got %d entries", l.Len())
	}
	newest, _ := l.Newest()
	if newest.Amount != 80 {
		t.Errorf("expected reversal amount 80, got %v", newest.Amount)
	}
	if !strings.HasPrefix(newest.Description, "estorno") {
		t.Errorf("expected reversal description, got %q", newest.Description)
	}
}

func TestHandleMessageLastEntries(t *testing.T) {
	o := newTestOrchestrator(t, Options{Store: &fakeStore{}})
	ctx := context.Background()

	if reply := o.HandleMessage(ctx, "user-1", "/last", testNow); !strings.Contains(reply, "Ainda não há") {
		t.Errorf("expected empty reply, got %q", reply)
	}

	o.HandleMessage(ctx, "user-1", "gastei 50 no almoco", testNow)
	o.HandleMessage(ctx, "user-1", "recebi salario 3000", testNow.Add(time.Minute))

	reply := o.HandleMessage(ctx, "user-1", "/last 2", testNow.Add(2*time.Minute))
	if !strings.Contains(reply, "Últimos 2 lançamentos") {
		t.Errorf("expected header, got %q", reply)
	}
	if !strings.Contains(reply, "R$ 3000.00") {
		t.Errorf("expected income line, got %q", reply)
	}
}

func TestHandleMessageLastEntriesHydratesFromStore(t *testing.T) {
	store := &fakeStore{rows: []*domain.Transaction{{
		ID:          "tx-durable",
		UserID:      "user-1",
		Timestamp:   testNow.Add(-48 * time.Hour),
		Amount:      -120,
		Category:    "food",
		Description: "mercado da esquina",
	}}}
	o := newTestOrchestrator(t, Options{Store: store})

	reply := o.HandleMessage(context.Background(), "user-1", "/last", testNow)

	if !strings.Contains(reply, "mercado da esquina") {
		t.Errorf("expected persisted row in /last, got %q", reply)
	}
}

func TestHandleMessageUndoHydratesFromStore(t *testing.T) {
	store := &fakeStore{rows: []*domain.Transaction{{
		ID:          "tx-durable",
		UserID:      "user-1",
		Timestamp:   testNow.Add(-48 * time.Hour),
		Amount:      -120,
		Category:    "food",
		Description: "mercado da esquina",
	}}}
	o := newTestOrchestrator(t, Options{Store: store})

	reply := o.HandleMessage(context.Background(), "user-1", "/undo", testNow)

	if !strings.Contains(reply, "Desfeito") {
		t.Fatalf("expected undo of persisted row, got %q", reply)
	}
	newest, ok := o.Ledgers().ForUser("user-1").Newest()
	if !ok || newest.Amount != 120 {
		t.Errorf("expected reversal of the persisted row, got %+v", newest)
	}
}

func TestHandleMessageSummary(t *testing.T) {
	o := newTestOrchestrator(t, Options{Store: &fakeStore{}})
	ctx := context.Background()

	if reply := o.HandleMessage(ctx, "user-1", "/summary", testNow); !strings.Contains(reply, "Sem lançamentos") {
		t.Errorf("expected empty-period reply, got %q", reply)
	}

	o.HandleMessage(ctx, "user-1", "recebi salario 3000", testNow)
	o.HandleMessage(ctx, "user-1", "gastei 900 no mercado", testNow)

	reply := o.HandleMessage(ctx, "user-1", "/summary", testNow)
	if !strings.Contains(reply, "Resumo financeiro") {
		t.Errorf("expected summary header, got %q", reply)
	}
	if !strings.Contains(reply, "70.00%") {
		t.Errorf("expected savings rate, got %q", reply)
	}
}

func TestHandleMessageDiagnosisUsesModelText(t *testing.T) {
	sum := &fakeSummarizer{result: &domain.DiagnosisResult{Text: "análise personalizada", Available: true, Model: "test-model"}}
	arch := &fakeArchiver{}
	o := newTestOrchestrator(t, Options{Store: &fakeStore{}, Summarizer: sum, Reports: arch})
	ctx := context.Background()

	o.HandleMessage(ctx, "user-1", "gastei 50 no almoco", testNow)
	reply := o.HandleMessage(ctx, "user-1", "/diagnostic", testNow)

	if reply != "análise personalizada" {
		t.Errorf("expected model text, got %q", reply)
	}
	if len(arch.reports) != 1 {
		t.Fatalf("expected 1 archived report, got %d", len(arch.reports))
	}
	if arch.reports[0].Fallback {
		t.Error("model-backed report must not be flagged as fallback")
	}
}

func TestHandleMessageDiagnosisFallsBack(t *testing.T) {
	sum := &fakeSummarizer{err: insight.ErrUnavailable}
	o := newTestOrchestrator(t, Options{Store: &fakeStore{}, Summarizer: sum})
	ctx := context.Background()

	o.HandleMessage(ctx, "user-1", "gastei 50 no almoco", testNow)
	reply := o.HandleMessage(ctx, "user-1", "/diagnostic", testNow)

	if !strings.Contains(reply, "Relatório automático") {
		t.Errorf("expected deterministic fallback, got %q", reply)
	}
}

func TestHandleMessageDiagnosisWithoutSummarizer(t *testing.T) {
	o := newTestOrchestrator(t, Options{Store: &fakeStore{}})
	ctx := context.Background()

	o.HandleMessage(ctx, "user-1", "gastei 50 no almoco", testNow)
	reply := o.HandleMessage(ctx, "user-1", "/diagnostic", testNow)

	if !strings.Contains(reply, "Relatório automático") {
		t.Errorf("expected fallback without summarizer, got %q", reply)
	}
}

func TestNewerMessageCancelsInflightDiagnosis(t *testing.T) {
	sum := &blockingSummarizer{started: make(chan struct{}), ctxErr: make(chan error, 1)}
	o := newTestOrchestrator(t, Options{Store: &fakeStore{}, Summarizer: sum})
	ctx := context.Background()

	o.HandleMessage(ctx, "user-1", "gastei 50 no almoco", testNow)

	first := make(chan string, 1)
	go func() {
		first <- o.HandleMessage(ctx, "user-1", "/diagnostic", testNow)
	}()
	<-sum.started

	// A newer message for the same user aborts the in-flight model call.
	second := o.HandleMessage(ctx, "user-1", "/help", testNow)

	select {
	case err := <-sum.ctxErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight summarizer call was never cancelled")
	}

	if reply := <-first; !strings.Contains(reply, "Relatório automático") {
		t.Errorf("superseded diagnosis must fall back, got %q", reply)
	}
	if !strings.Contains(second, "/undo") {
		t.Errorf("unexpected reply to superseding message: %q", second)
	}
}

func TestHandleMessageRecoversFromPanic(t *testing.T) {
	sum := &fakeSummarizer{panics: true}
	o := newTestOrchestrator(t, Options{Store: &fakeStore{}, Summarizer: sum})
	ctx := context.Background()

	o.HandleMessage(ctx, "user-1", "gastei 50 no almoco", testNow)
	reply := o.HandleMessage(ctx, "user-1", "/diagnostic", testNow)

	if !strings.Contains(reply, "algo deu errado") {
		t.Errorf("expected recovery reply, got %q", reply)
	}

	// The session must stay usable afterwards.
	if reply := o.HandleMessage(ctx, "user-1", "/last", testNow); !strings.Contains(reply, "lançamento") {
		t.Errorf("session unusable after panic: %q", reply)
	}
}

func TestHandleMessageCalc(t *testing.T) {
	o := newTestOrchestrator(t, Options{})
	ctx := context.Background()

	reply := o.HandleMessage(ctx, "user-1", "/calc 120,50 + 33", testNow)
	if !strings.Contains(reply, "Resultado: 153,5") {
		t.Errorf("unexpected calc reply: %q", reply)
	}

	reply = o.HandleMessage(ctx, "user-1", "/calc 10 / 0", testNow)
	if !strings.Contains(reply, "Não consegui calcular") {
		t.Errorf("expected calc error reply, got %q", reply)
	}
}

func TestHandleMessageStartHelpUnrecognized(t *testing.T) {
	o := newTestOrchestrator(t, Options{})
	ctx := context.Background()

	if reply := o.HandleMessage(ctx, "user-1", "/start", testNow); !strings.Contains(reply, "assistente financeiro") {
		t.Errorf("unexpected start reply: %q", reply)
	}
	if reply := o.HandleMessage(ctx, "user-1", "/help", testNow); !strings.Contains(reply, "/undo") {
		t.Errorf("unexpected help reply: %q", reply)
	}
	if reply := o.HandleMessage(ctx, "user-1", "/delete 3", testNow); !strings.Contains(reply, "Não entendi") {
		t.Errorf("unexpected reply for unknown command: %q", reply)
	}
}

func TestPersistJobWritesToStore(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(t, Options{Store: store})

	tx := &domain.Transaction{ID: "tx-1", UserID: "user-1", Timestamp: testNow, Amount: -10, Category: "food"}
	job := &jobs.PersistTransactionJob{JobID: "job-1", Transaction: tx}

	if err := o.PersistJob(context.Background(), job); err != nil {
		t.Fatalf("PersistJob failed: %v", err)
	}
	if len(store.appended) != 1 || store.appended[0].ID != "tx-1" {
		t.Errorf("expected appended row, got %v", store.appended)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	o := newTestOrchestrator(t, Options{Store: &fakeStore{}})
	ctx := context.Background()

	o.HandleMessage(ctx, "user-1", "gastei 50 no almoco", testNow)

	if o.Ledgers().ForUser("user-2").Len() != 0 {
		t.Error("another user's ledger picked up the transaction")
	}
	if reply := o.HandleMessage(ctx, "user-2", "/last", testNow); !strings.Contains(reply, "Ainda não há") {
		t.Errorf("expected empty ledger for user-2, got %q", reply)
	}
}
