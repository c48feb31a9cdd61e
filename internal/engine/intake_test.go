package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

func manualRequest() models.ManualIntakeRequest {
	return models.ManualIntakeRequest{
		BusinessName:  "Acme Widgets LLC",
		Industry:      "retail",
		OwnerName:     "Dana Reyes",
		OwnerEmail:    "dana@acme.test",
		AnnualRevenue: 1000000,
		NetIncome:     200000,
		TotalDebt:     100000,
		TotalAssets:   500000,
		SignedFor:     "  acme widgets llc ",
		Attested:      true,
	}
}

func TestNewManualCase_ConsistentGoesToKYC(t *testing.T) {
	c, err := NewManualCase(manualRequest(), testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Status != models.StatusKYCChecks {
		t.Fatalf("status = %s", c.Status)
	}
	if c.ExternalID == "" || !c.Created.Equal(testNow) {
		t.Errorf("identity not set: %q %v", c.ExternalID, c.Created)
	}
	if c.ExtractionResult.Number(models.FieldTotalAssets) != 500000 || c.Email() != "dana@acme.test" {
		t.Errorf("extraction not synthesized: %+v", c.ExtractionResult)
	}
	if len(c.AuditLog) != 2 || !strings.Contains(c.AuditLog[1], "Consistency check passed") {
		t.Errorf("audit log = %v", c.AuditLog)
	}
	if c.ReviewTriggerState != "" {
		t.Errorf("trigger set without review")
	}
}

func TestNewManualCase_InconsistentGoesToReview(t *testing.T) {
	req := manualRequest()
	req.SignedFor = "Acme Holdings Inc"
	c, err := NewManualCase(req, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Status != models.StatusAwaitingReview || c.ReviewTriggerState != models.StatusDocVerification {
		t.Fatalf("status = %s trigger = %s", c.Status, c.ReviewTriggerState)
	}
	if !strings.Contains(c.ReviewReason, "does not match") {
		t.Errorf("reason = %q", c.ReviewReason)
	}
	if got := c.ExtractionResult.ValidationSummary[0].Status; got != "FAIL" {
		t.Errorf("validation status = %s", got)
	}
}

func TestNewManualCase_Validation(t *testing.T) {
	req := manualRequest()
	req.OwnerEmail = ""
	req.Industry = " "
	_, err := NewManualCase(req, testNow)
	if !errors.Is(err, ErrInvalidIntake) || !strings.Contains(err.Error(), "industry, ownerEmail") {
		t.Errorf("err = %v", err)
	}

	req = manualRequest()
	req.Attested = false
	if _, err := NewManualCase(req, testNow); !errors.Is(err, ErrInvalidIntake) {
		t.Errorf("err = %v", err)
	}
}

func TestNewDocumentCase(t *testing.T) {
	c, err := NewDocumentCase(models.DocumentIntakeRequest{BusinessName: "Acme", DocumentRef: "/uploads/acme.txt"}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Status != models.StatusPending || c.SourceDocumentRef != "/uploads/acme.txt" || len(c.AuditLog) != 1 {
		t.Errorf("case = %+v", c)
	}
	if _, err := NewDocumentCase(models.DocumentIntakeRequest{BusinessName: "Acme"}, testNow); !errors.Is(err, ErrInvalidIntake) {
		t.Errorf("err = %v", err)
	}
}

func TestResubmit(t *testing.T) {
	store := NewCaseStore(caseAt(models.StatusAwaitingCustomer))
	got, err := Resubmit(store, "/uploads/acme-v2.txt", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.StatusDocVerification || got.SourceDocumentRef != "/uploads/acme-v2.txt" {
		t.Errorf("case = %s %s", got.Status, got.SourceDocumentRef)
	}

	store = NewCaseStore(caseAt(models.StatusKYCChecks))
	if _, err := Resubmit(store, "/uploads/x.txt", testNow); !errors.Is(err, ErrNotAwaitingCustomer) {
		t.Errorf("err = %v", err)
	}
}
