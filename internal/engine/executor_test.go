package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/RealZimboGuy/onboardflow/internal/normalizer"
	"github.com/RealZimboGuy/onboardflow/internal/workers"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/core"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/domain"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

// MockSender records sends and fails when Err is set.
type MockSender struct {
	Sent []workers.Email
	Err  error
}

func (m *MockSender) Send(_ context.Context, msg workers.Email) (workers.Receipt, error) {
	if m.Err != nil {
		return workers.Receipt{}, m.Err
	}
	m.Sent = append(m.Sent, msg)
	return workers.Receipt{MessageID: "msg-1"}, nil
}

// recordingWorker answers with a fixed text and remembers the queries.
type recordingWorker struct {
	raw     string
	err     error
	queries []workers.Query
}

func (w *recordingWorker) Invoke(_ context.Context, q workers.Query) (string, error) {
	w.queries = append(w.queries, q)
	return w.raw, w.err
}

func newTestExecutor(reg *workers.Registry, sender workers.Sender) *StepExecutor {
	return NewStepExecutor(reg, sender, WithClock(core.FixedClock{At: testNow}))
}

func caseAt(status models.CaseStatus) *domain.Case {
	return &domain.Case{
		ID:                1,
		Status:            status,
		BusinessName:      "Acme Widgets LLC",
		OwnerName:         "Dana Reyes",
		SourceDocumentRef: "/tmp/acme.txt",
		AuditLog:          []string{"New application started for Acme Widgets LLC."},
		ExtractionResult: &models.ExtractionResult{ExtractedData: map[string]any{
			models.FieldEmail:         "dana@acme.test",
			models.FieldAnnualRevenue: "$1,000,000",
			models.FieldNetIncome:     200000.0,
			models.FieldTotalDebt:     100000.0,
			models.FieldTotalAssets:   500000.0,
		}},
	}
}

func TestAdvance_RiskGrayZoneEntersReview(t *testing.T) {
	risk := &recordingWorker{raw: `{"credit_score":65,"next_state":"awaiting_review","hitl_reason":"gray zone"}`}
	reg := workers.NewRegistry().Register(workers.KindRisk, risk)
	store := NewCaseStore(caseAt(models.StatusCreditAnalysis))

	got, err := newTestExecutor(reg, &MockSender{}).Advance(context.Background(), store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.StatusAwaitingReview {
		t.Fatalf("status = %s, want AWAITING_REVIEW", got.Status)
	}
	if got.ReviewTriggerState != models.StatusCreditAnalysis {
		t.Errorf("trigger = %s, want CREDIT_ANALYSIS", got.ReviewTriggerState)
	}
	if got.ReviewReason != "gray zone" {
		t.Errorf("reason = %q, want gray zone", got.ReviewReason)
	}
	if got.RiskResult == nil || got.RiskResult.CreditScore != 65 {
		t.Errorf("risk result not stored: %+v", got.RiskResult)
	}
	in, ok := risk.queries[0].Input.(workers.RiskInput)
	if !ok || in.Revenue != 1000000 || in.TotalAssets != 500000 {
		t.Errorf("risk input built from extraction = %+v", risk.queries[0].Input)
	}
}

func TestAdvance_MatchingApproves(t *testing.T) {
	raw := `{"recommended_products":[{"product_id":"B-CHK-002","name":"Business Growth Checking"}],"next_state":"approved","reasoning":"ok"}`
	reg := workers.NewRegistry().Register(workers.KindMatching, workers.Static(raw))
	c := caseAt(models.StatusProductRecommendation)
	c.RiskResult = &models.RiskResult{CreditScore: 82}
	store := NewCaseStore(c)

	got, err := newTestExecutor(reg, &MockSender{}).Advance(context.Background(), store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.StatusApproved {
		t.Fatalf("status = %s, want APPROVED", got.Status)
	}
	if got.FinalDecision == nil || got.FinalDecision.Source != models.SourceAutomated || got.FinalDecision.Outcome != models.StatusApproved {
		t.Errorf("final decision = %+v", got.FinalDecision)
	}
	if last := got.AuditLog[len(got.AuditLog)-1]; last != "Product Agent: ok" {
		t.Errorf("last audit line = %q", last)
	}
}

func TestAdvance_PendingFlipsWithoutWork(t *testing.T) {
	reg := workers.NewRegistry()
	got, err := newTestExecutor(reg, &MockSender{}).Advance(context.Background(), NewCaseStore(caseAt(models.StatusPending)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.StatusDocVerification {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestAdvance_GatedAndTerminalAreNoOps(t *testing.T) {
	tests := []struct {
		status models.CaseStatus
		want   error
	}{
		{models.StatusAwaitingReview, ErrGated},
		{models.StatusAwaitingCustomer, ErrGated},
		{models.StatusCompleted, ErrTerminal},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			c := caseAt(tt.status)
			if tt.status == models.StatusAwaitingReview {
				c.ReviewTriggerState = models.StatusKYCChecks
			}
			got, err := newTestExecutor(workers.NewRegistry(), &MockSender{}).Advance(context.Background(), NewCaseStore(c))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if got.Status != tt.status || len(got.AuditLog) != len(c.AuditLog) {
				t.Errorf("case changed: status %s, %d audit lines", got.Status, len(got.AuditLog))
			}
		})
	}
}

func TestAdvance_NoJSONLeavesStatus(t *testing.T) {
	reg := workers.NewRegistry().Register(workers.KindScreening, workers.Static("I am unable to help with that."))
	c := caseAt(models.StatusKYCChecks)
	got, err := newTestExecutor(reg, &MockSender{}).Advance(context.Background(), NewCaseStore(c))

	if !errors.Is(err, normalizer.ErrNoJSONFound) || !errors.Is(err, ErrNormalization) {
		t.Fatalf("err = %v, want NoJSONFound normalization error", err)
	}
	var se *StepError
	if !errors.As(err, &se) || se.State != models.StatusKYCChecks {
		t.Fatalf("expected StepError for KYC_CHECKS, got %v", err)
	}
	if got.Status != models.StatusKYCChecks {
		t.Errorf("status = %s, want KYC_CHECKS", got.Status)
	}
	if got.ScreeningResult != nil {
		t.Errorf("screening result must not be set on failure")
	}
	if len(got.AuditLog) != len(c.AuditLog)+1 || !strings.HasPrefix(got.AuditLog[len(got.AuditLog)-1], "ERROR: ") {
		t.Errorf("audit log = %v", got.AuditLog)
	}
}

func TestAdvance_WorkerFailures(t *testing.T) {
	tests := []struct {
		name   string
		worker workers.Worker
		reg    bool
		want   error
	}{
		{"invocation error", workers.WorkerFunc(func(context.Context, workers.Query) (string, error) {
			return "", errors.New("503 service unavailable")
		}), true, ErrWorkerInvocation},
		{"panicking worker", workers.WorkerFunc(func(context.Context, workers.Query) (string, error) {
			panic("boom")
		}), true, ErrWorkerInvocation},
		{"worker reports error", workers.Static(`{"error":"File not found"}`), true, ErrWorkerInvocation},
		{"missing worker", nil, false, workers.ErrNotRegistered},
		{"malformed", workers.Static(`{"next_state": "REJECTED",}`), true, normalizer.ErrMalformedJSON},
		{"wrong field type", workers.Static(`{"credit_score":"high"}`), true, ErrNormalization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := workers.NewRegistry()
			if tt.reg {
				reg.Register(workers.KindRisk, tt.worker)
			}
			c := caseAt(models.StatusCreditAnalysis)
			got, err := newTestExecutor(reg, &MockSender{}).Advance(context.Background(), NewCaseStore(c))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if got.Status != models.StatusCreditAnalysis {
				t.Errorf("status = %s", got.Status)
			}
			if len(got.AuditLog) != len(c.AuditLog)+1 {
				t.Errorf("expected one error line, got %v", got.AuditLog)
			}
		})
	}
}

func TestAdvance_UnrecognizedRoutesToErrorAndRetries(t *testing.T) {
	screening := &recordingWorker{raw: `{"summary":{"findings":"odd"},"recommendation":{"next_state":"MAYBE_LATER"}}`}
	reg := workers.NewRegistry().Register(workers.KindScreening, screening)
	exec := newTestExecutor(reg, &MockSender{})
	store := NewCaseStore(caseAt(models.StatusKYCChecks))

	got, err := exec.Advance(context.Background(), store)
	if !errors.Is(err, ErrTransitionUnrecognized) {
		t.Fatalf("err = %v", err)
	}
	if got.Status != models.StatusError || got.ErrorOrigin != models.StatusKYCChecks {
		t.Fatalf("status = %s origin = %s", got.Status, got.ErrorOrigin)
	}

	// retrying from ERROR with the same answer lands in the same place
	again, err := exec.Advance(context.Background(), store)
	if !errors.Is(err, ErrTransitionUnrecognized) || again.Status != got.Status || again.ErrorOrigin != got.ErrorOrigin {
		t.Fatalf("retry gave %s/%s err=%v", again.Status, again.ErrorOrigin, err)
	}
	if len(screening.queries) != 2 {
		t.Errorf("worker invoked %d times, want 2", len(screening.queries))
	}

	screening.raw = `{"summary":{"findings":"clear"},"recommendation":{"next_state":"CREDIT_ANALYSIS","reason":"ok"}}`
	fixed, err := exec.Advance(context.Background(), store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fixed.Status != models.StatusCreditAnalysis || fixed.ErrorOrigin != "" {
		t.Errorf("status = %s origin = %s", fixed.Status, fixed.ErrorOrigin)
	}
}

func TestAdvance_ErrorWithoutOrigin(t *testing.T) {
	got, err := newTestExecutor(workers.NewRegistry(), &MockSender{}).Advance(context.Background(), NewCaseStore(caseAt(models.StatusError)))
	if !errors.Is(err, ErrNoRetryOrigin) {
		t.Fatalf("err = %v", err)
	}
	if got.Status != models.StatusError {
		t.Errorf("status = %s", got.Status)
	}
	if n := len(got.AuditLog); n == 0 || got.AuditLog[n-1] != "ERROR: "+ErrNoRetryOrigin.Error() {
		t.Errorf("audit log = %v", got.AuditLog)
	}
}

func TestAdvance_ExtractionBackfillsOwner(t *testing.T) {
	raw := "Here you go:\n```json\n{\"extracted_data\":{\"Full Name\":\"Sam Lee\"},\"state_recommendation\":\"KYC_CHECKS\",\"reasoning\":\"complete\"}\n```"
	extraction := &recordingWorker{raw: raw}
	reg := workers.NewRegistry().Register(workers.KindExtraction, extraction)
	c := caseAt(models.StatusDocVerification)
	c.ExtractionResult = nil

	got, err := newTestExecutor(reg, &MockSender{}).Advance(context.Background(), NewCaseStore(c))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.OwnerName != "Sam Lee" || got.Status != models.StatusKYCChecks {
		t.Errorf("owner = %q status = %s", got.OwnerName, got.Status)
	}
	if in := extraction.queries[0].Input.(workers.ExtractionInput); in.DocumentRef != "/tmp/acme.txt" {
		t.Errorf("document ref = %q", in.DocumentRef)
	}
}

func TestAdvance_NotificationSendsAndCompletes(t *testing.T) {
	comm := &recordingWorker{raw: `{"to_email":"dana@acme.test","subject":"Welcome","body":"Hello"}`}
	reg := workers.NewRegistry().Register(workers.KindNotification, comm)
	sender := &MockSender{}
	c := caseAt(models.StatusApproved)
	c.MatchingResult = &models.MatchingResult{RecommendedProducts: []models.Product{{ProductID: "B-CHK-002", Name: "Business Growth Checking"}}}
	c.FinalDecision = &models.Verdict{Source: models.SourceAutomated, Outcome: models.StatusApproved}

	got, err := newTestExecutor(reg, sender).Advance(context.Background(), NewCaseStore(c))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.StatusCompleted {
		t.Fatalf("status = %s", got.Status)
	}
	if len(sender.Sent) != 1 || sender.Sent[0].To != "dana@acme.test" {
		t.Fatalf("sent = %+v", sender.Sent)
	}
	if got.FinalNotification == nil || got.FinalNotification.MessageID != "msg-1" || got.FinalNotification.Task != workers.TaskSendApproval {
		t.Errorf("final notification = %+v", got.FinalNotification)
	}
	in := comm.queries[0].Input.(workers.NotificationInput)
	if in.Reason != "APPROVED (Auto)" || len(in.Products) != 1 || in.Customer.Email != "dana@acme.test" {
		t.Errorf("notification input = %+v", in)
	}
}

func TestAdvance_NotificationUnparseableDoesNotSend(t *testing.T) {
	reg := workers.NewRegistry().Register(workers.KindNotification, workers.Static("Dear customer, welcome aboard!"))
	sender := &MockSender{}
	c := caseAt(models.StatusRejected)
	c.ExtractionResult = nil

	got, err := newTestExecutor(reg, sender).Advance(context.Background(), NewCaseStore(c))
	if !errors.Is(err, ErrNormalization) {
		t.Fatalf("err = %v", err)
	}
	if got.Status != models.StatusRejected {
		t.Errorf("status = %s, want REJECTED", got.Status)
	}
	if len(sender.Sent) != 0 {
		t.Errorf("no send expected, got %d", len(sender.Sent))
	}
	if !strings.HasPrefix(got.AuditLog[len(got.AuditLog)-1], "ERROR: ") {
		t.Errorf("missing error line: %v", got.AuditLog)
	}
	if got.FinalNotification != nil {
		t.Errorf("final notification must stay empty")
	}
}

func TestAdvance_SendFailureKeepsStatus(t *testing.T) {
	comm := &recordingWorker{raw: `{"subject":"Update","body":"Sorry"}`}
	reg := workers.NewRegistry().Register(workers.KindNotification, comm)
	c := caseAt(models.StatusRejected)
	c.ExtractionResult = nil
	exec := NewStepExecutor(reg, &MockSender{Err: errors.New("smtp down")}, WithDefaultEmail("ops@bank.test"))

	got, err := exec.Advance(context.Background(), NewCaseStore(c))
	if !errors.Is(err, ErrSendFailure) {
		t.Fatalf("err = %v", err)
	}
	if got.Status != models.StatusRejected || got.FinalDecision != nil {
		t.Errorf("status = %s decision = %+v", got.Status, got.FinalDecision)
	}
	in := comm.queries[0].Input.(workers.NotificationInput)
	if in.Customer.Email != "ops@bank.test" || in.Task != workers.TaskSendRejection || in.Reason != "REJECTED (Auto)" {
		t.Errorf("notification input = %+v", in)
	}
}

func TestAdvance_HumanApprovalVerdict(t *testing.T) {
	reg := workers.NewRegistry().Register(workers.KindMatching, workers.Static(`{"recommended_products":[],"next_state":"APPROVED"}`))
	c := caseAt(models.StatusProductRecommendation)
	c.LastReview = &models.ReviewRecord{Decision: models.DecisionFinalApprove, Analyst: "alice", Justification: "strong collateral"}

	got, err := newTestExecutor(reg, &MockSender{}).Advance(context.Background(), NewCaseStore(c))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := got.FinalDecision
	if v == nil || v.Source != models.SourceHuman || v.Analyst != "alice" {
		t.Fatalf("verdict = %+v", v)
	}
	if v.String() != "APPROVED (Human Analyst: strong collateral)" {
		t.Errorf("verdict text = %q", v.String())
	}
}

func TestAdvance_RecordsSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	reg := workers.NewRegistry().Register(workers.KindScreening, workers.Static("nothing"))
	exec := NewStepExecutor(reg, &MockSender{}, WithTracer(tp.Tracer("test")))

	_, _ = exec.Advance(context.Background(), NewCaseStore(caseAt(models.StatusKYCChecks)))

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "onboardflow.case.step" {
		t.Errorf("span name = %q", spans[0].Name())
	}
	if len(spans[0].Events()) == 0 {
		t.Errorf("expected the step error to be recorded on the span")
	}
}
