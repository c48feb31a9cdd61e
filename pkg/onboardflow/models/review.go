package models

import (
	"fmt"
	"strings"
)

// ReviewDecision is what an analyst may choose at the review gate.
type ReviewDecision string

const (
	DecisionContinue     ReviewDecision = "CONTINUE"
	DecisionFinalApprove ReviewDecision = "FINAL_APPROVE"
	DecisionReject       ReviewDecision = "REJECT"
)

func ParseReviewDecision(s string) (ReviewDecision, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CONTINUE", "CONTINUE_TO_KYC", "CONTINUE_TO_CREDIT":
		return DecisionContinue, true
	case "FINAL_APPROVE", "APPROVE":
		return DecisionFinalApprove, true
	case "REJECT", "REJECTED":
		return DecisionReject, true
	}
	return "", false
}

// VerdictSource tells automated outcomes apart from analyst outcomes.
type VerdictSource string

const (
	SourceAutomated VerdictSource = "automated"
	SourceHuman     VerdictSource = "human"
)

// Verdict is the terminal outcome of a case.
type Verdict struct {
	Source  VerdictSource `json:"source"`
	Outcome CaseStatus    `json:"outcome"`
	Analyst string        `json:"analyst,omitempty"`
	Note    string        `json:"note,omitempty"`
}

// String renders the verdict the way it is quoted to the customer
// notification worker, e.g. "APPROVED (Auto)".
func (v Verdict) String() string {
	if v.Source == SourceHuman {
		if v.Note != "" {
			return fmt.Sprintf("%s (Human Analyst: %s)", v.Outcome, v.Note)
		}
		return fmt.Sprintf("%s (Human Analyst)", v.Outcome)
	}
	return fmt.Sprintf("%s (Auto)", v.Outcome)
}

// ReviewRecord is an accepted analyst decision.
type ReviewRecord struct {
	Decision      ReviewDecision `json:"decision"`
	TriggerState  CaseStatus     `json:"trigger_state"`
	ResolvedState CaseStatus     `json:"resolved_state"`
	Analyst       string         `json:"analyst,omitempty"`
	Justification string         `json:"justification"`
}
