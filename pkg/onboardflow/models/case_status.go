package models

import "strings"

// CaseStatus is the position of a case in the onboarding state machine.
type CaseStatus string

const (
	StatusPending               CaseStatus = "PENDING"
	StatusDocVerification       CaseStatus = "DOC_VERIFICATION"
	StatusAwaitingCustomer      CaseStatus = "AWAITING_CUSTOMER"
	StatusKYCChecks             CaseStatus = "KYC_CHECKS"
	StatusCreditAnalysis        CaseStatus = "CREDIT_ANALYSIS"
	StatusProductRecommendation CaseStatus = "PRODUCT_RECOMMENDATION"
	StatusAwaitingReview        CaseStatus = "AWAITING_REVIEW"
	StatusApproved              CaseStatus = "APPROVED"
	StatusRejected              CaseStatus = "REJECTED"
	StatusCompleted             CaseStatus = "COMPLETED"
	StatusError                 CaseStatus = "ERROR"
)

// reviewLabel is how the workers spell the review state in their output.
const reviewLabel = "AWAITING_REVIEW (HITL)"

// AllStatuses lists every status in graph order.
var AllStatuses = []CaseStatus{
	StatusPending,
	StatusDocVerification,
	StatusAwaitingCustomer,
	StatusKYCChecks,
	StatusCreditAnalysis,
	StatusProductRecommendation,
	StatusAwaitingReview,
	StatusApproved,
	StatusRejected,
	StatusCompleted,
	StatusError,
}

// Phase groups statuses; every status belongs to exactly one phase.
type Phase string

const (
	PhaseInProgress    Phase = "IN_PROGRESS"
	PhaseReviewPending Phase = "REVIEW_PENDING"
	PhaseTerminal      Phase = "TERMINAL"
)

// ParseCaseStatus reads a status the way workers and clients write it:
// case-insensitive, surrounding whitespace ignored, and the "(HITL)" review
// label accepted.
func ParseCaseStatus(s string) (CaseStatus, bool) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == reviewLabel {
		return StatusAwaitingReview, true
	}
	for _, st := range AllStatuses {
		if string(st) == v {
			return st, true
		}
	}
	return "", false
}

func (s CaseStatus) Valid() bool {
	for _, st := range AllStatuses {
		if st == s {
			return true
		}
	}
	return false
}

func (s CaseStatus) Phase() Phase {
	switch s {
	case StatusCompleted:
		return PhaseTerminal
	case StatusAwaitingReview:
		return PhaseReviewPending
	default:
		return PhaseInProgress
	}
}

// Gated reports whether automatic progression is suspended until someone
// outside the executor acts (an analyst or the customer).
func (s CaseStatus) Gated() bool {
	return s == StatusAwaitingReview || s == StatusAwaitingCustomer
}

func (s CaseStatus) String() string {
	return string(s)
}
