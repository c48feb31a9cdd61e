package engine

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/domain"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

// NewManualCase opens a case from the manual application form. The form
// already is the extraction, so a consistent application starts at
// KYC_CHECKS and an inconsistent one goes straight to review.
func NewManualCase(req models.ManualIntakeRequest, now time.Time) (*domain.Case, error) {
	var missing []string
	for label, v := range map[string]string{
		"businessName": req.BusinessName,
		"industry":     req.Industry,
		"ownerName":    req.OwnerName,
		"ownerEmail":   req.OwnerEmail,
		"signedFor":    req.SignedFor,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, label)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("%w: missing required fields %s", ErrInvalidIntake, strings.Join(missing, ", "))
	}
	if !req.Attested {
		return nil, fmt.Errorf("%w: attestation is required", ErrInvalidIntake)
	}

	consistent := strings.EqualFold(strings.TrimSpace(req.BusinessName), strings.TrimSpace(req.SignedFor))
	status := models.StatusKYCChecks
	check := "PASS"
	reasoning := "Data provided via manual form. Consistency check passed."
	if !consistent {
		status = models.StatusAwaitingReview
		check = "FAIL"
		reasoning = fmt.Sprintf("Manual entry inconsistent: Legal Name ('%s') does not match Attestation Name ('%s').", req.BusinessName, req.SignedFor)
	}

	c := newCase(req.BusinessName, now)
	c.OwnerName = strings.TrimSpace(req.OwnerName)
	c.ExtractionResult = &models.ExtractionResult{
		ExtractedData: map[string]any{
			models.FieldLegalBusinessName: req.BusinessName,
			models.FieldDBA:               req.DBA,
			models.FieldIndustry:          req.Industry,
			models.FieldBusinessAddress:   req.BusinessAddress,
			models.FieldFullName:          req.OwnerName,
			models.FieldTitle:             req.OwnerTitle,
			models.FieldEmail:             req.OwnerEmail,
			models.FieldAnnualRevenue:     req.AnnualRevenue,
			models.FieldNetIncome:         req.NetIncome,
			models.FieldTotalDebt:         req.TotalDebt,
			models.FieldTotalAssets:       req.TotalAssets,
			models.FieldSignedFor:         req.SignedFor,
		},
		ValidationSummary:   []models.ValidationCheck{{Check: "Data Consistency", Status: check, Details: reasoning}},
		StateRecommendation: string(status),
		Reasoning:           reasoning,
	}
	c.Log("New manual application started for " + c.BusinessName + ".")
	c.Log(reasoning)
	if consistent {
		c.Status = status
	} else {
		c.EnterReview(models.StatusDocVerification, reasoning)
	}
	return c, nil
}

// NewDocumentCase opens a case that starts with document extraction.
func NewDocumentCase(req models.DocumentIntakeRequest, now time.Time) (*domain.Case, error) {
	if strings.TrimSpace(req.BusinessName) == "" || strings.TrimSpace(req.DocumentRef) == "" {
		return nil, fmt.Errorf("%w: business name and document are required", ErrInvalidIntake)
	}
	c := newCase(req.BusinessName, now)
	c.SourceDocumentRef = strings.TrimSpace(req.DocumentRef)
	c.Status = models.StatusPending
	c.Log("New application started for " + c.BusinessName + ".")
	return c, nil
}

// Resubmit attaches a new document to a case waiting on the customer and
// sends it back to extraction.
func Resubmit(store *CaseStore, documentRef string, now time.Time) (*domain.Case, error) {
	ref := strings.TrimSpace(documentRef)
	if ref == "" {
		return store.Get(), fmt.Errorf("%w: document is required", ErrInvalidIntake)
	}
	err := store.Apply(func(c *domain.Case) error {
		if c.Status != models.StatusAwaitingCustomer {
			return fmt.Errorf("%w: status is %s", ErrNotAwaitingCustomer, c.Status)
		}
		c.SourceDocumentRef = ref
		c.Status = models.StatusDocVerification
		c.Log("Customer resubmitted document " + filepath.Base(ref) + ".")
		c.Modified = now
		return nil
	})
	return store.Get(), err
}

func newCase(businessName string, now time.Time) *domain.Case {
	return &domain.Case{
		ExternalID:   uuid.NewString(),
		BusinessName: strings.TrimSpace(businessName),
		AuditLog:     []string{},
		Created:      now,
		Modified:     now,
	}
}
