package domain

import (
	"encoding/json"
	"time"

	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

// Case is one onboarding application and everything the workers produced for it.
type Case struct {
	ID                 int64
	ExternalID         string
	Status             models.CaseStatus
	BusinessName       string
	OwnerName          string
	SourceDocumentRef  string
	ExtractionResult   *models.ExtractionResult
	ScreeningResult    *models.ScreeningResult
	RiskResult         *models.RiskResult
	MatchingResult     *models.MatchingResult
	AuditLog           []string
	FinalDecision      *models.Verdict
	ReviewReason       string
	ReviewTriggerState models.CaseStatus
	ErrorOrigin        models.CaseStatus
	LastReview         *models.ReviewRecord
	FinalNotification  *models.SentNotification
	Version            int64
	Created            time.Time
	Modified           time.Time
}

// Clone returns a deep copy, so a step can work on the copy and commit it
// only if everything succeeded.
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	out := *c
	out.AuditLog = append([]string(nil), c.AuditLog...)
	out.ExtractionResult = cloneJSON(c.ExtractionResult)
	out.ScreeningResult = cloneJSON(c.ScreeningResult)
	out.RiskResult = cloneJSON(c.RiskResult)
	out.MatchingResult = cloneJSON(c.MatchingResult)
	out.FinalDecision = clonePtr(c.FinalDecision)
	out.LastReview = clonePtr(c.LastReview)
	out.FinalNotification = clonePtr(c.FinalNotification)
	return &out
}

// Log appends one line to the audit log.
func (c *Case) Log(line string) {
	c.AuditLog = append(c.AuditLog, line)
}

// EnterReview moves the case into AWAITING_REVIEW raised by trigger.
func (c *Case) EnterReview(trigger models.CaseStatus, reason string) {
	c.Status = models.StatusAwaitingReview
	c.ReviewTriggerState = trigger
	c.ReviewReason = reason
}

// ClearReview drops the review metadata together with the gated status.
func (c *Case) ClearReview(next models.CaseStatus) {
	c.Status = next
	c.ReviewTriggerState = ""
	c.ReviewReason = ""
}

// Email is the customer contact extracted from the application, if any.
func (c *Case) Email() string {
	return c.ExtractionResult.Text(models.FieldEmail)
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

// cloneJSON copies records holding maps and slices through a JSON round trip.
func cloneJSON[T any](v *T) *T {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return clonePtr(v)
	}
	out := new(T)
	if err := json.Unmarshal(b, out); err != nil {
		return clonePtr(v)
	}
	return out
}

// View is the external representation of the case.
func (c *Case) View() models.CaseApiResponse {
	audit := c.AuditLog
	if audit == nil {
		audit = []string{}
	}
	return models.CaseApiResponse{
		ID:                 c.ID,
		ExternalID:         c.ExternalID,
		Status:             c.Status,
		Phase:              c.Status.Phase(),
		BusinessName:       c.BusinessName,
		OwnerName:          c.OwnerName,
		SourceDocumentRef:  c.SourceDocumentRef,
		ExtractionResult:   c.ExtractionResult,
		ScreeningResult:    c.ScreeningResult,
		RiskResult:         c.RiskResult,
		MatchingResult:     c.MatchingResult,
		AuditLog:           audit,
		FinalDecision:      c.FinalDecision,
		ReviewReason:       c.ReviewReason,
		ReviewTriggerState: c.ReviewTriggerState,
		ErrorOrigin:        c.ErrorOrigin,
		LastReview:         c.LastReview,
		FinalNotification:  c.FinalNotification,
		Version:            c.Version,
		Created:            c.Created,
		Modified:           c.Modified,
	}
}
