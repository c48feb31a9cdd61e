package models

import "time"

// ManualIntakeRequest is the payload of the manual application form.
type ManualIntakeRequest struct {
	BusinessName    string  `json:"businessName"`
	DBA             string  `json:"dba,omitempty"`
	Industry        string  `json:"industry"`
	BusinessAddress string  `json:"businessAddress,omitempty"`
	OwnerName       string  `json:"ownerName"`
	OwnerTitle      string  `json:"ownerTitle,omitempty"`
	OwnerEmail      string  `json:"ownerEmail"`
	AnnualRevenue   float64 `json:"annualRevenue"`
	NetIncome       float64 `json:"netIncome"`
	TotalDebt       float64 `json:"totalDebt"`
	TotalAssets     float64 `json:"totalAssets"`
	SignedFor       string  `json:"signedFor"`
	Attested        bool    `json:"attested"`
}

// DocumentIntakeRequest starts a case from an uploaded document.
type DocumentIntakeRequest struct {
	BusinessName string `json:"businessName"`
	DocumentRef  string `json:"documentRef"`
}

type CreateCaseResponse struct {
	ID         int64      `json:"id"`
	ExternalID string     `json:"externalId"`
	Status     CaseStatus `json:"status"`
}

type ResubmitDocumentRequest struct {
	DocumentRef string `json:"documentRef"`
}

type ReviewDecisionRequest struct {
	Decision      string `json:"decision"`
	Justification string `json:"justification"`
}

// ReviewView is what the review dashboard renders for a gated case.
type ReviewView struct {
	CaseID       int64            `json:"caseId"`
	Reason       string           `json:"reason"`
	TriggerState CaseStatus       `json:"triggerState"`
	Digest       string           `json:"digest"`
	Options      []ReviewDecision `json:"options"`
}

// StepResponse reports the outcome of one "run next step" action.
type StepResponse struct {
	ID       int64      `json:"id"`
	From     CaseStatus `json:"from"`
	Status   CaseStatus `json:"status"`
	AuditLog []string   `json:"auditLog"`
	Error    string     `json:"error,omitempty"`
}

type SearchCasesRequest struct {
	Status       string `json:"status"`
	BusinessName string `json:"businessName"`
	Limit        int64  `json:"limit"`
	Offset       int64  `json:"offset"`
}

// CaseApiResponse is the external view of a case.
type CaseApiResponse struct {
	ID                 int64             `json:"id"`
	ExternalID         string            `json:"externalId"`
	Status             CaseStatus        `json:"status"`
	Phase              Phase             `json:"phase"`
	BusinessName       string            `json:"businessName"`
	OwnerName          string            `json:"ownerName"`
	SourceDocumentRef  string            `json:"sourceDocumentRef,omitempty"`
	ExtractionResult   *ExtractionResult `json:"extractionResult,omitempty"`
	ScreeningResult    *ScreeningResult  `json:"screeningResult,omitempty"`
	RiskResult         *RiskResult       `json:"riskResult,omitempty"`
	MatchingResult     *MatchingResult   `json:"matchingResult,omitempty"`
	AuditLog           []string          `json:"auditLog"`
	FinalDecision      *Verdict          `json:"finalDecision,omitempty"`
	ReviewReason       string            `json:"reviewReason,omitempty"`
	ReviewTriggerState CaseStatus        `json:"reviewTriggerState,omitempty"`
	ErrorOrigin        CaseStatus        `json:"errorOrigin,omitempty"`
	LastReview         *ReviewRecord     `json:"lastReview,omitempty"`
	FinalNotification  *SentNotification `json:"finalNotification,omitempty"`
	Version            int64             `json:"version"`
	Created            time.Time         `json:"created"`
	Modified           time.Time         `json:"modified"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	ApiKey   string `json:"apiKey,omitempty"`
}
