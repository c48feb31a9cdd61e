package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/RealZimboGuy/onboardflow/internal/normalizer"
	"github.com/RealZimboGuy/onboardflow/internal/workers"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/core"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/domain"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

const tracerName = "github.com/RealZimboGuy/onboardflow/engine"

const DefaultCustomerEmail = "customer@example.com"

// StepExecutor performs one state-machine transition per call.
type StepExecutor struct {
	workers      *workers.Registry
	sender       workers.Sender
	clock        core.Clock
	tracer       trace.Tracer
	defaultEmail string
}

type ExecutorOption func(*StepExecutor)

func WithTracer(t trace.Tracer) ExecutorOption {
	return func(e *StepExecutor) { e.tracer = t }
}

func WithClock(c core.Clock) ExecutorOption {
	return func(e *StepExecutor) { e.clock = c }
}

// WithDefaultEmail sets the recipient used when extraction found no email.
func WithDefaultEmail(email string) ExecutorOption {
	return func(e *StepExecutor) {
		if strings.TrimSpace(email) != "" {
			e.defaultEmail = strings.TrimSpace(email)
		}
	}
}

func NewStepExecutor(reg *workers.Registry, sender workers.Sender, opts ...ExecutorOption) *StepExecutor {
	e := &StepExecutor{
		workers:      reg,
		sender:       sender,
		clock:        core.NewRealClock(),
		tracer:       otel.Tracer(tracerName),
		defaultEmail: DefaultCustomerEmail,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Advance runs the step bound to the current status of the case held by
// store and returns the resulting snapshot. A failed step leaves the status
// where it was and appends an "ERROR:" line to the audit log; the returned
// error says why.
func (e *StepExecutor) Advance(ctx context.Context, store *CaseStore) (*domain.Case, error) {
	var stepErr error
	err := store.Apply(func(c *domain.Case) error {
		stepErr = e.step(ctx, c)
		return nil
	})
	if err != nil {
		return store.Get(), err
	}
	return store.Get(), stepErr
}

func (e *StepExecutor) step(ctx context.Context, c *domain.Case) (err error) {
	from := c.Status
	ctx, span := e.tracer.Start(ctx, "onboardflow.case.step",
		trace.WithAttributes(
			attribute.Int64("onboardflow.case.id", c.ID),
			attribute.String("onboardflow.case.status", string(from)),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer func() {
		span.SetAttributes(attribute.String("onboardflow.case.next", string(c.Status)))
		if err != nil && !errors.Is(err, ErrGated) && !errors.Is(err, ErrTerminal) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	switch from {
	case models.StatusCompleted:
		return ErrTerminal
	case models.StatusAwaitingReview, models.StatusAwaitingCustomer:
		return fmt.Errorf("%w: %s", ErrGated, from)
	case models.StatusPending:
		c.Status = models.StatusDocVerification
		c.Log("Orchestrator: Moving to " + string(models.StatusDocVerification) + ".")
		c.Modified = e.clock.Now()
		slog.InfoContext(ctx, "Transitioning case", "case_id", c.ID, "from", from, "to", c.Status)
		return nil
	}

	target := from
	if from == models.StatusError {
		if c.ErrorOrigin == "" {
			c.Log("ERROR: " + ErrNoRetryOrigin.Error())
			c.Modified = e.clock.Now()
			slog.ErrorContext(ctx, "Step failed", "case_id", c.ID, "state", from, "error", ErrNoRetryOrigin)
			return ErrNoRetryOrigin
		}
		target = c.ErrorOrigin
		slog.InfoContext(ctx, "Retrying step", "case_id", c.ID, "state", target)
	}

	work := c.Clone()
	switch target {
	case models.StatusApproved, models.StatusRejected:
		err = e.notify(ctx, work, target)
	case models.StatusDocVerification, models.StatusKYCChecks, models.StatusCreditAnalysis, models.StatusProductRecommendation:
		err = e.runWorker(ctx, work, target)
	default:
		err = fmt.Errorf("no step is bound to %s", target)
	}

	switch {
	case err == nil:
		*c = *work
		slog.InfoContext(ctx, "Transitioning case", "case_id", c.ID, "from", from, "to", c.Status)
	case errors.Is(err, ErrTransitionUnrecognized):
		// routing to ERROR is itself the committed outcome
		*c = *work
		slog.ErrorContext(ctx, "Unrecognized transition", "case_id", c.ID, "state", target, "error", err)
	default:
		c.Log("ERROR: " + err.Error())
		slog.ErrorContext(ctx, "Step failed", "case_id", c.ID, "state", target, "error", err)
	}
	c.Modified = e.clock.Now()
	return err
}

func (e *StepExecutor) runWorker(ctx context.Context, c *domain.Case, state models.CaseStatus) error {
	name := WorkerName(state)
	kind, input := buildQuery(c, state)

	raw, err := e.invoke(ctx, kind, input)
	if err != nil {
		return &StepError{State: state, Worker: name, Kind: KindWorkerInvocation, Err: err}
	}
	result := newResult(state)
	if err := decodeRecord(raw, result); err != nil {
		return stepErrorFor(state, name, err)
	}
	storeResult(c, result)

	out := Transition(state, result)
	c.Log(out.AuditLine)
	switch {
	case out.Unrecognized:
		c.Status = models.StatusError
		c.ErrorOrigin = state
		c.Log(fmt.Sprintf("ERROR: %s recommended unrecognized state %q.", name, out.Recommended))
		return &StepError{State: state, Worker: name, Kind: KindTransitionUnrecognized,
			Err: fmt.Errorf("%q is not reachable from %s", out.Recommended, state)}
	case out.Next == models.StatusError:
		c.Status = models.StatusError
		c.ErrorOrigin = state
	case out.Next == models.StatusAwaitingReview:
		c.ErrorOrigin = ""
		c.EnterReview(state, out.ReviewReason)
	default:
		c.ErrorOrigin = ""
		c.Status = out.Next
	}
	if c.Status == models.StatusApproved || c.Status == models.StatusRejected {
		recordVerdict(c, c.Status)
	}
	return nil
}

// notify is the combined APPROVED/REJECTED step: compose, send, complete.
func (e *StepExecutor) notify(ctx context.Context, c *domain.Case, state models.CaseStatus) error {
	name := WorkerName(state)
	task := workers.TaskSendApproval
	if state == models.StatusRejected {
		task = workers.TaskSendRejection
	}
	recordVerdict(c, state)

	email := c.Email()
	if email == "" {
		email = e.defaultEmail
	}
	in := workers.NotificationInput{
		Task:     task,
		Customer: workers.Customer{Name: c.BusinessName, Email: email},
		Reason:   c.FinalDecision.String(),
	}
	if c.MatchingResult != nil {
		in.Products = c.MatchingResult.RecommendedProducts
	}

	raw, err := e.invoke(ctx, workers.KindNotification, in)
	if err != nil {
		return &StepError{State: state, Worker: name, Kind: KindWorkerInvocation, Err: err}
	}
	var draft models.NotificationDraft
	if err := decodeRecord(raw, &draft); err != nil {
		return stepErrorFor(state, name, err)
	}

	msg := workers.Email{
		To:      orDefault(draft.ToEmail, email),
		Subject: orDefault(draft.Subject, "No subject generated."),
		Body:    orDefault(draft.Body, "No body generated."),
	}
	receipt, err := e.sender.Send(ctx, msg)
	if err != nil {
		return &StepError{State: state, Worker: name, Kind: KindSendFailure, Err: err}
	}
	slog.InfoContext(ctx, "Notification sent", "case_id", c.ID, "task", task, "message_id", receipt.MessageID)

	c.FinalNotification = &models.SentNotification{
		ToEmail:   msg.To,
		Subject:   msg.Subject,
		Body:      msg.Body,
		MessageID: receipt.MessageID,
		Task:      task,
	}
	c.Status = models.StatusCompleted
	c.Log(fmt.Sprintf("%s: Email drafted for %s.", name, task))
	return nil
}

func (e *StepExecutor) invoke(ctx context.Context, kind workers.Kind, in workers.Input) (raw string, err error) {
	w, err := e.workers.Get(kind)
	if err != nil {
		return "", err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s worker panicked: %v", kind, r)
		}
	}()
	return w.Invoke(ctx, workers.Query{Kind: kind, Input: in})
}

func buildQuery(c *domain.Case, state models.CaseStatus) (workers.Kind, workers.Input) {
	switch state {
	case models.StatusDocVerification:
		return workers.KindExtraction, workers.ExtractionInput{DocumentRef: c.SourceDocumentRef}
	case models.StatusKYCChecks:
		return workers.KindScreening, workers.ScreeningInput{BusinessName: c.BusinessName, OwnerName: c.OwnerName}
	case models.StatusCreditAnalysis:
		x := c.ExtractionResult
		return workers.KindRisk, workers.RiskInput{
			Revenue:     x.Number(models.FieldAnnualRevenue),
			NetIncome:   x.Number(models.FieldNetIncome),
			TotalDebt:   x.Number(models.FieldTotalDebt),
			TotalAssets: x.Number(models.FieldTotalAssets),
		}
	case models.StatusProductRecommendation:
		score := 700.0
		if c.RiskResult != nil {
			score = c.RiskResult.CreditScore
		}
		return workers.KindMatching, workers.MatchingInput{BusinessName: c.BusinessName, CreditScore: score}
	}
	return "", nil
}

func newResult(state models.CaseStatus) models.StepResult {
	switch state {
	case models.StatusDocVerification:
		return &models.ExtractionResult{}
	case models.StatusKYCChecks:
		return &models.ScreeningResult{}
	case models.StatusCreditAnalysis:
		return &models.RiskResult{}
	case models.StatusProductRecommendation:
		return &models.MatchingResult{}
	}
	return nil
}

func storeResult(c *domain.Case, result models.StepResult) {
	switch r := result.(type) {
	case *models.ExtractionResult:
		c.ExtractionResult = r
		if owner := r.Text(models.FieldFullName); owner != "" {
			c.OwnerName = owner
		}
	case *models.ScreeningResult:
		c.ScreeningResult = r
	case *models.RiskResult:
		c.RiskResult = r
	case *models.MatchingResult:
		c.MatchingResult = r
	}
}

// errWorkerReported is a worker answering with {"error": ...}.
var errWorkerReported = errors.New("worker reported an error")

func decodeRecord(raw string, out any) error {
	rec, err := normalizer.Normalize(raw)
	if err != nil {
		return err
	}
	var probe struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(rec, &probe) == nil && len(probe.Error) > 0 && string(probe.Error) != "null" {
		var msg string
		if json.Unmarshal(probe.Error, &msg) != nil {
			msg = string(probe.Error)
		}
		return fmt.Errorf("%w: %s", errWorkerReported, msg)
	}
	return normalizer.Unmarshal(rec, out)
}

func stepErrorFor(state models.CaseStatus, name string, err error) *StepError {
	kind := KindNormalization
	if errors.Is(err, errWorkerReported) {
		kind = KindWorkerInvocation
	}
	return &StepError{State: state, Worker: name, Kind: kind, Err: err}
}

// recordVerdict sets the final decision once. The verdict is the analyst's
// when the last accepted review chose this outcome.
func recordVerdict(c *domain.Case, outcome models.CaseStatus) {
	if c.FinalDecision != nil {
		return
	}
	v := &models.Verdict{Source: models.SourceAutomated, Outcome: outcome}
	if r := c.LastReview; r != nil {
		if (outcome == models.StatusApproved && r.Decision == models.DecisionFinalApprove) ||
			(outcome == models.StatusRejected && r.Decision == models.DecisionReject) {
			v.Source = models.SourceHuman
			v.Analyst = r.Analyst
			v.Note = r.Justification
		}
	}
	c.FinalDecision = v
}
