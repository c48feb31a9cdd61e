package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/RealZimboGuy/onboardflow/internal/workers"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/core"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/domain"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

// DigestFallback is shown when the summarization worker is unavailable.
const DigestFallback = "Could not generate AI summary."

// ReviewGate resolves cases parked in AWAITING_REVIEW.
type ReviewGate struct {
	workers *workers.Registry
	clock   core.Clock
	tracer  trace.Tracer
}

func NewReviewGate(reg *workers.Registry, clock core.Clock) *ReviewGate {
	if clock == nil {
		clock = core.NewRealClock()
	}
	return &ReviewGate{workers: reg, clock: clock, tracer: otel.Tracer(tracerName)}
}

// Digest asks the summarization worker for an analyst-facing summary of c.
// It never fails; any problem yields DigestFallback.
func (g *ReviewGate) Digest(ctx context.Context, c *domain.Case) (digest string) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Summarization worker panicked", "case_id", c.ID, "panic", r)
			digest = DigestFallback
		}
	}()

	snapshot, err := json.Marshal(c.View())
	if err != nil {
		return DigestFallback
	}
	w, err := g.workers.Get(workers.KindSummarization)
	if err != nil {
		slog.ErrorContext(ctx, "Error summarizing case", "case_id", c.ID, "error", err)
		return DigestFallback
	}
	out, err := w.Invoke(ctx, workers.Query{Kind: workers.KindSummarization, Input: workers.SummarizationInput{Case: snapshot}})
	if err != nil || strings.TrimSpace(out) == "" {
		slog.ErrorContext(ctx, "Error summarizing case", "case_id", c.ID, "error", err)
		return DigestFallback
	}
	return strings.TrimSpace(out)
}

// Options lists the decisions offered for a review raised by trigger.
func Options(trigger models.CaseStatus) []models.ReviewDecision {
	if trigger == models.StatusCreditAnalysis {
		return []models.ReviewDecision{models.DecisionFinalApprove, models.DecisionReject}
	}
	return []models.ReviewDecision{models.DecisionContinue, models.DecisionReject}
}

// Resolve maps a decision on a review raised by trigger to the status the
// case resumes in.
func Resolve(trigger models.CaseStatus, decision models.ReviewDecision) (models.CaseStatus, bool) {
	offered := false
	for _, o := range Options(trigger) {
		if o == decision {
			offered = true
			break
		}
	}
	if !offered {
		return "", false
	}
	var next models.CaseStatus
	switch decision {
	case models.DecisionReject:
		next = models.StatusRejected
	case models.DecisionFinalApprove:
		next = models.StatusProductRecommendation
	case models.DecisionContinue:
		switch trigger {
		case models.StatusDocVerification:
			next = models.StatusKYCChecks
		case models.StatusKYCChecks:
			next = models.StatusCreditAnalysis
		}
	}
	if next == "" || !Allowed(models.StatusAwaitingReview, next) {
		return "", false
	}
	return next, true
}

// Decide applies an analyst decision. A rejected attempt leaves the case
// untouched, audit log included.
func (g *ReviewGate) Decide(ctx context.Context, store *CaseStore, decision models.ReviewDecision, justification, analyst string) (*domain.Case, error) {
	ctx, span := g.tracer.Start(ctx, "onboardflow.case.review",
		trace.WithAttributes(attribute.String("onboardflow.review.decision", string(decision))),
	)
	defer span.End()

	err := store.Apply(func(c *domain.Case) error {
		span.SetAttributes(attribute.Int64("onboardflow.case.id", c.ID))
		if c.Status != models.StatusAwaitingReview {
			return fmt.Errorf("%w: status is %s", ErrNotUnderReview, c.Status)
		}
		note := strings.TrimSpace(justification)
		if note == "" {
			return ErrJustificationRequired
		}
		trigger := c.ReviewTriggerState
		next, ok := Resolve(trigger, decision)
		if !ok {
			return fmt.Errorf("%w: %s after %s", ErrDecisionNotOffered, decision, trigger)
		}

		c.LastReview = &models.ReviewRecord{
			Decision:      decision,
			TriggerState:  trigger,
			ResolvedState: next,
			Analyst:       analyst,
			Justification: note,
		}
		line := fmt.Sprintf("Human decision: %s. Justification: %s", decision, note)
		if analyst != "" {
			line = fmt.Sprintf("Human decision by %s: %s. Justification: %s", analyst, decision, note)
		}
		c.Log(line)
		c.ClearReview(next)
		if next == models.StatusRejected {
			recordVerdict(c, next)
		}
		c.Modified = g.clock.Now()
		slog.InfoContext(ctx, "Review decided", "case_id", c.ID, "decision", decision, "trigger", trigger, "to", next, "analyst", analyst)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return store.Get(), err
	}
	span.SetStatus(codes.Ok, "")
	return store.Get(), nil
}
