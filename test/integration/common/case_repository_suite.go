package common

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/RealZimboGuy/onboardflow/internal/repository"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/domain"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
	"github.com/RealZimboGuy/onboardflow/test/integration"
)

// fullCase fills every persisted field so a round trip can compare all of them.
func fullCase(clock *integration.FakeClock, externalID string) *domain.Case {
	return &domain.Case{
		ExternalID:        externalID,
		Status:            models.StatusAwaitingReview,
		BusinessName:      "Acme Widgets LLC",
		OwnerName:         "Dana Reyes",
		SourceDocumentRef: "uploads/acme.pdf",
		ExtractionResult: &models.ExtractionResult{
			ExtractedData:       map[string]any{models.FieldEmail: "dana@acme.test", models.FieldAnnualRevenue: 1000000.0},
			ValidationSummary:   []models.ValidationCheck{{Check: "signature", Status: "PASS"}},
			StateRecommendation: "KYC_CHECKS",
			Reasoning:           "complete",
		},
		ScreeningResult: &models.ScreeningResult{
			Summary:        models.ScreeningSummary{Findings: "clear", ChecksPerformed: []string{"sanctions"}},
			Recommendation: models.ScreeningRecommendation{NextState: "CREDIT_ANALYSIS", Reason: "ok"},
		},
		RiskResult:         &models.RiskResult{CreditScore: 61, NextState: "AWAITING_REVIEW (HITL)", Reasoning: "thin", HITLReason: "Needs a look."},
		MatchingResult:     &models.MatchingResult{RecommendedProducts: []models.Product{{ProductID: "P1", Name: "Business Checking"}}, NextState: "APPROVED"},
		AuditLog:           []string{"Intake: manual form", "Risk Analyst: flagged"},
		FinalDecision:      &models.Verdict{Source: models.SourceHuman, Outcome: models.StatusApproved, Analyst: "alice", Note: "fine"},
		ReviewReason:       "Needs a look.",
		ReviewTriggerState: models.StatusCreditAnalysis,
		ErrorOrigin:        models.StatusKYCChecks,
		LastReview:         &models.ReviewRecord{
			Decision:      models.DecisionFinalApprove,
			TriggerState:  models.StatusCreditAnalysis,
			ResolvedState: models.StatusProductRecommendation,
			Analyst:       "alice",
			Justification: "fine",
		},
		FinalNotification: &models.SentNotification{ToEmail: "dana@acme.test", Subject: "Welcome", Body: "Hi", MessageID: "m-1", Task: "approved"},
		Created:           clock.Now(),
	}
}

// RunCaseRepositorySuite exercises the repositories against a migrated database.
func RunCaseRepositorySuite(t *testing.T, db *sql.DB) {
	clock := integration.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	cases := repository.NewCaseRepository(db, clock)
	actions := repository.NewCaseActionRepository(db, clock)
	users := repository.NewUserRepository(db, clock)

	t.Run("RoundTrip", func(t *testing.T) {
		c := fullCase(clock, "ext-round-trip")
		id, err := cases.Save(c)
		if err != nil {
			t.Fatalf("Failed to save case: %v", err)
		}
		if id == 0 || c.Version != 1 {
			t.Fatalf("Expected id and version 1, got id=%d version=%d", id, c.Version)
		}

		got, err := cases.FindByID(id)
		if err != nil || got == nil {
			t.Fatalf("Failed to load case %d: %v", id, err)
		}
		if got.Status != c.Status || got.ReviewTriggerState != c.ReviewTriggerState || got.ErrorOrigin != c.ErrorOrigin {
			t.Errorf("Status fields differ: %+v", got)
		}
		if got.ExtractionResult == nil || got.ExtractionResult.Text(models.FieldEmail) != "dana@acme.test" {
			t.Errorf("Extraction result lost: %+v", got.ExtractionResult)
		}
		if got.ScreeningResult == nil || got.ScreeningResult.Recommendation.NextState != "CREDIT_ANALYSIS" {
			t.Errorf("Screening result lost: %+v", got.ScreeningResult)
		}
		if got.RiskResult == nil || got.RiskResult.HITLReason != "Needs a look." {
			t.Errorf("Risk result lost: %+v", got.RiskResult)
		}
		if got.MatchingResult == nil || len(got.MatchingResult.RecommendedProducts) != 1 {
			t.Errorf("Matching result lost: %+v", got.MatchingResult)
		}
		if len(got.AuditLog) != 2 || got.AuditLog[1] != "Risk Analyst: flagged" {
			t.Errorf("Audit log lost: %v", got.AuditLog)
		}
		if got.FinalDecision == nil || got.FinalDecision.String() != c.FinalDecision.String() {
			t.Errorf("Verdict lost: %+v", got.FinalDecision)
		}
		if got.LastReview == nil || got.LastReview.Justification != "fine" {
			t.Errorf("Last review lost: %+v", got.LastReview)
		}
		if got.FinalNotification == nil || got.FinalNotification.MessageID != "m-1" {
			t.Errorf("Notification lost: %+v", got.FinalNotification)
		}
		if !got.Created.Equal(c.Created) {
			t.Errorf("Expected created %v, got %v", c.Created, got.Created)
		}

		byExternal, err := cases.FindByExternalID("ext-round-trip")
		if err != nil || byExternal == nil || byExternal.ID != id {
			t.Errorf("FindByExternalID returned %+v, %v", byExternal, err)
		}
	})

	t.Run("EmptyResultsStayNil", func(t *testing.T) {
		c := &domain.Case{ExternalID: "ext-empty", Status: models.StatusPending, BusinessName: "Globex"}
		id, err := cases.Save(c)
		if err != nil {
			t.Fatalf("Failed to save case: %v", err)
		}
		got, err := cases.FindByID(id)
		if err != nil || got == nil {
			t.Fatalf("Failed to load case: %v", err)
		}
		if got.ExtractionResult != nil || got.FinalDecision != nil || got.LastReview != nil {
			t.Errorf("Expected nil results, got %+v", got)
		}
		if len(got.AuditLog) != 0 {
			t.Errorf("Expected empty audit log, got %v", got.AuditLog)
		}
	})

	t.Run("OptimisticUpdate", func(t *testing.T) {
		c := &domain.Case{ExternalID: "ext-update", Status: models.StatusKYCChecks, BusinessName: "Initech"}
		id, err := cases.Save(c)
		if err != nil {
			t.Fatalf("Failed to save case: %v", err)
		}
		first, _ := cases.FindByID(id)
		second, _ := cases.FindByID(id)

		clock.Add(time.Minute)
		first.Status = models.StatusCreditAnalysis
		first.Log("Compliance Officer: clear")
		if err := cases.Update(first); err != nil {
			t.Fatalf("Failed to update case: %v", err)
		}
		if first.Version != 2 {
			t.Errorf("Expected version 2, got %d", first.Version)
		}

		second.Status = models.StatusError
		if err := cases.Update(second); !errors.Is(err, repository.ErrStaleCase) {
			t.Errorf("Expected ErrStaleCase, got %v", err)
		}

		got, _ := cases.FindByID(id)
		if got.Status != models.StatusCreditAnalysis || got.Version != 2 {
			t.Errorf("Expected CREDIT_ANALYSIS v2, got %s v%d", got.Status, got.Version)
		}
	})

	t.Run("SearchAndCount", func(t *testing.T) {
		res, err := cases.Search(models.SearchCasesRequest{Status: "pending"})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(*res) != 1 || (*res)[0].BusinessName != "Globex" {
			t.Errorf("Expected only Globex, got %d cases", len(*res))
		}
		res, err = cases.Search(models.SearchCasesRequest{BusinessName: "widgets", Limit: 10})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(*res) != 1 || (*res)[0].ExternalID != "ext-round-trip" {
			t.Errorf("Expected the Acme case, got %d cases", len(*res))
		}

		counts, err := cases.CountByStatus()
		if err != nil {
			t.Fatalf("CountByStatus failed: %v", err)
		}
		if counts[models.StatusPending] != 1 || counts[models.StatusCreditAnalysis] != 1 || counts[models.StatusAwaitingReview] != 1 {
			t.Errorf("Unexpected counts %v", counts)
		}
	})

	t.Run("Actions", func(t *testing.T) {
		c, _ := cases.FindByExternalID("ext-update")
		for i, text := range []string{"Intake", "Compliance Officer: clear"} {
			_, err := actions.Save(&domain.CaseAction{CaseID: c.ID, Seq: i, Type: domain.ActionLog, Name: string(models.StatusKYCChecks), Text: text, Actor: "system"})
			if err != nil {
				t.Fatalf("Failed to save action: %v", err)
			}
		}
		list, err := actions.FindAllByCaseID(c.ID)
		if err != nil {
			t.Fatalf("FindAllByCaseID failed: %v", err)
		}
		if len(*list) != 2 || (*list)[0].Seq != 1 {
			t.Errorf("Expected two actions newest first, got %+v", *list)
		}
		if !(*list)[0].DateTime.Equal(clock.Now()) {
			t.Errorf("Expected action time %v, got %v", clock.Now(), (*list)[0].DateTime)
		}
	})

	t.Run("Users", func(t *testing.T) {
		u := &domain.User{Username: "alice", Password: "hash", ApiKey: sql.NullString{String: "key-1", Valid: true}}
		id, err := users.Save(u)
		if err != nil {
			t.Fatalf("Failed to save user: %v", err)
		}
		got, err := users.FindByApiKey("key-1")
		if err != nil || got == nil || got.ID != id {
			t.Fatalf("FindByApiKey returned %+v, %v", got, err)
		}

		expiry := clock.Now().Add(time.Hour)
		if err := users.UpdateSession(id, "sess-1", expiry); err != nil {
			t.Fatalf("UpdateSession failed: %v", err)
		}
		if got, _ := users.FindBySessionID("sess-1", clock.Now()); got == nil {
			t.Errorf("Expected a live session")
		}
		if got, _ := users.FindBySessionID("sess-1", expiry.Add(time.Minute)); got != nil {
			t.Errorf("Expected the session to have expired")
		}
		if err := users.ClearSessionBySessionID("sess-1"); err != nil {
			t.Fatalf("ClearSessionBySessionID failed: %v", err)
		}
		if got, _ := users.FindBySessionID("sess-1", clock.Now()); got != nil {
			t.Errorf("Expected the session to be cleared")
		}
	})
}
