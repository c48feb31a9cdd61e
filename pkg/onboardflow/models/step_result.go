package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// StepResult is the decoded record produced by the worker bound to a step.
// Each variant keeps the schema its worker emits; the field holding the
// recommended next state differs per variant.
type StepResult interface {
	// Step is the status whose worker produces this record.
	Step() CaseStatus
	isStepResult()
}

// Keys used by the extraction worker inside extracted_data.
const (
	FieldLegalBusinessName = "Legal Business Name"
	FieldDBA               = "Doing Business As (DBA)"
	FieldIndustry          = "Industry"
	FieldBusinessAddress   = "Business Address"
	FieldFullName          = "Full Name"
	FieldTitle             = "Title"
	FieldEmail             = "Email"
	FieldAnnualRevenue     = "Annual Revenue"
	FieldNetIncome         = "Net Income"
	FieldTotalDebt         = "Total Business Debt"
	FieldTotalAssets       = "Total Business Assets"
	FieldSignedFor         = "Signed For (Company)"
)

type ValidationCheck struct {
	Check   string `json:"check"`
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

// ExtractionResult is emitted for DOC_VERIFICATION.
type ExtractionResult struct {
	ExtractedData       map[string]any    `json:"extracted_data"`
	ValidationSummary   []ValidationCheck `json:"validation_summary"`
	StateRecommendation string            `json:"state_recommendation"`
	Reasoning           string            `json:"reasoning"`
}

func (*ExtractionResult) Step() CaseStatus { return StatusDocVerification }
func (*ExtractionResult) isStepResult()    {}

// Text returns an extracted field as a trimmed string, "" when absent.
func (r *ExtractionResult) Text(key string) string {
	if r == nil || r.ExtractedData == nil {
		return ""
	}
	switch v := r.ExtractedData[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// Number returns an extracted numeric field. Workers sometimes quote numbers
// or write them with currency formatting, so "$750,000" reads as 750000.
// Missing or unreadable values are 0.
func (r *ExtractionResult) Number(key string) float64 {
	if r == nil || r.ExtractedData == nil {
		return 0
	}
	switch v := r.ExtractedData[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(v)
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

type ScreeningSummary struct {
	ChecksPerformed []string `json:"checks_performed,omitempty"`
	RiskScore       string   `json:"risk_score,omitempty"`
	Findings        string   `json:"findings"`
}

type ScreeningRecommendation struct {
	NextState string `json:"next_state"`
	Reason    string `json:"reason"`
}

// ScreeningResult is emitted for KYC_CHECKS. Its schema is nested.
type ScreeningResult struct {
	Summary        ScreeningSummary        `json:"summary"`
	Recommendation ScreeningRecommendation `json:"recommendation"`
}

func (*ScreeningResult) Step() CaseStatus { return StatusKYCChecks }
func (*ScreeningResult) isStepResult()    {}

// RiskResult is emitted for CREDIT_ANALYSIS. Its schema is flat.
type RiskResult struct {
	CreditScore float64 `json:"credit_score"`
	NextState   string  `json:"next_state"`
	Reasoning   string  `json:"reasoning"`
	HITLReason  string  `json:"hitl_reason,omitempty"`
}

func (*RiskResult) Step() CaseStatus { return StatusCreditAnalysis }
func (*RiskResult) isStepResult()    {}

type Product struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
}

// UnmarshalJSON also accepts a bare product name.
func (p *Product) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*p = Product{Name: name}
		return nil
	}
	type plain Product
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Product(v)
	return nil
}

// MatchingResult is emitted for PRODUCT_RECOMMENDATION.
type MatchingResult struct {
	RecommendedProducts []Product `json:"recommended_products"`
	NextState           string    `json:"next_state"`
	Reasoning           string    `json:"reasoning"`
}

func (*MatchingResult) Step() CaseStatus { return StatusProductRecommendation }
func (*MatchingResult) isStepResult()    {}

// NotificationDraft is the message the notification worker composes.
type NotificationDraft struct {
	ToEmail string `json:"to_email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SentNotification records a message that the send action confirmed.
type SentNotification struct {
	ToEmail   string `json:"to_email"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	MessageID string `json:"message_id"`
	Task      string `json:"task"`
}
