package engine

import (
	"fmt"
	"strings"

	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

// StateTransitions is the fixed onboarding graph. AWAITING_REVIEW edges are
// taken only through a review decision, ERROR edges only by retrying the
// step that failed.
var StateTransitions = map[models.CaseStatus][]models.CaseStatus{
	models.StatusPending:               {models.StatusDocVerification},
	models.StatusDocVerification:       {models.StatusKYCChecks, models.StatusAwaitingReview, models.StatusAwaitingCustomer, models.StatusError},
	models.StatusAwaitingCustomer:      {models.StatusDocVerification},
	models.StatusKYCChecks:             {models.StatusCreditAnalysis, models.StatusAwaitingReview, models.StatusError},
	models.StatusCreditAnalysis:        {models.StatusProductRecommendation, models.StatusAwaitingReview, models.StatusRejected, models.StatusError},
	models.StatusProductRecommendation: {models.StatusApproved, models.StatusError},
	models.StatusApproved:              {models.StatusCompleted},
	models.StatusRejected:              {models.StatusCompleted},
	models.StatusAwaitingReview:        {models.StatusKYCChecks, models.StatusCreditAnalysis, models.StatusProductRecommendation, models.StatusRejected},
	models.StatusError:                 {models.StatusDocVerification, models.StatusKYCChecks, models.StatusCreditAnalysis, models.StatusProductRecommendation},
	models.StatusCompleted:             {},
}

// Allowed reports whether from -> to is an edge of the graph.
func Allowed(from, to models.CaseStatus) bool {
	for _, s := range StateTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// WorkerName is the display name used in audit lines for the worker of a step.
func WorkerName(state models.CaseStatus) string {
	switch state {
	case models.StatusDocVerification:
		return "Document Agent"
	case models.StatusKYCChecks:
		return "KYC Agent"
	case models.StatusCreditAnalysis:
		return "Credit Agent"
	case models.StatusProductRecommendation:
		return "Product Agent"
	case models.StatusApproved, models.StatusRejected:
		return "Communication Agent"
	case models.StatusAwaitingReview:
		return "Human Review Agent"
	}
	return "Orchestrator"
}

// Outcome is what the transition table decided for one worker record.
type Outcome struct {
	Next         models.CaseStatus
	Recommended  string
	AuditLine    string
	ReviewReason string
	// Unrecognized is set when the recommendation was not a state reachable
	// from the current one; Next is then ERROR.
	Unrecognized bool
}

// Transition maps the record produced in state from to the next state.
// It is pure: the caller applies the outcome.
func Transition(from models.CaseStatus, result models.StepResult) Outcome {
	name := WorkerName(from)
	if result == nil || result.Step() != from {
		return Outcome{
			Next:         models.StatusError,
			AuditLine:    fmt.Sprintf("%s: no result for %s.", name, from),
			Unrecognized: true,
		}
	}

	var recommended, summary, reason string
	switch r := result.(type) {
	case *models.ExtractionResult:
		recommended = r.StateRecommendation
		summary = orDefault(r.Reasoning, "No reasoning.")
		reason = r.Reasoning
	case *models.ScreeningResult:
		recommended = r.Recommendation.NextState
		summary = orDefault(r.Summary.Findings, "No findings.")
		reason = r.Recommendation.Reason
	case *models.RiskResult:
		recommended = r.NextState
		summary = orDefault(r.Reasoning, "No reasoning provided.")
		reason = r.HITLReason
	case *models.MatchingResult:
		recommended = r.NextState
		summary = orDefault(r.Reasoning, "No reasoning provided.")
	}

	out := Outcome{
		Recommended: recommended,
		AuditLine:   name + ": " + summary,
	}
	next, ok := models.ParseCaseStatus(recommended)
	if !ok || !Allowed(from, next) {
		out.Next = models.StatusError
		out.Unrecognized = true
		return out
	}
	out.Next = next
	if next == models.StatusAwaitingReview {
		out.ReviewReason = orDefault(reason, name+" flagged for review.")
	}
	return out
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}
