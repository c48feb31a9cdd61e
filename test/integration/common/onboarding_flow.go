package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/RealZimboGuy/onboardflow/internal/controllers"
	"github.com/RealZimboGuy/onboardflow/internal/util"
	"github.com/RealZimboGuy/onboardflow/internal/workers"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
	"github.com/RealZimboGuy/onboardflow/test/integration"
)

const ApiKey = "b5f0e8c4-daa6-465c-bded-50ca22b798b2"

// ScriptedRegistry answers every worker with a fixed record that walks a
// case from KYC checks through a credit review to completion.
func ScriptedRegistry() *workers.Registry {
	return workers.NewRegistry().
		Register(workers.KindScreening, workers.Static(`{"summary":{"findings":"clear"},"recommendation":{"next_state":"CREDIT_ANALYSIS","reason":"low risk"}}`)).
		Register(workers.KindRisk, workers.Static("```json\n{\"credit_score\": 58, \"next_state\": \"AWAITING_REVIEW (HITL)\", \"reasoning\": \"thin margins\", \"hitl_reason\": \"Score below threshold.\"}\n```")).
		Register(workers.KindMatching, workers.Static(`{"recommended_products":["Business Checking"],"next_state":"APPROVED","reasoning":"fits"}`)).
		Register(workers.KindNotification, workers.Static(`{"to_email":"dana@acme.test","subject":"Welcome","body":"Your account is open."}`)).
		Register(workers.KindSummarization, workers.Static("Credit score 58 with thin margins."))
}

// StartApp wires the app on port with scripted workers, seeds an analyst
// with ApiKey and serves until the test ends.
func StartApp(t *testing.T, port int) *onboardflow.App {
	clock := integration.NewFakeClock(time.Now().UTC())
	app, err := onboardflow.Setup(onboardflow.WithRegistry(ScriptedRegistry()), onboardflow.WithClock(clock))
	if err != nil {
		t.Fatalf("Failed to set up app: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	app.Addr = fmt.Sprintf(":%d", port)

	if _, _, err := controllers.CreateUser(app.Users, models.CreateUserRequest{Username: "alice", Password: "secret", ApiKey: ApiKey}); err != nil {
		t.Fatalf("Failed to create analyst: %v", err)
	}

	go func() {
		if err := app.Run(t.Context()); err != nil {
			slog.Error("Engine exited with error", "error", err)
		}
	}()
	waitForServer(t, port)
	return app
}

func waitForServer(t *testing.T, port int) {
	client := &http.Client{Timeout: time.Second}
	url := fmt.Sprintf("http://localhost:%d/api/cases/overview", port)
	for i := 0; i < 50; i++ {
		if resp, err := client.Get(url); err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("Server on port %d did not start", port)
}

func call(t *testing.T, method, url string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", ApiKey)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to %s %s: %v", method, url, err)
	}
	return resp
}

// Step runs one step and fails the test unless the case lands in want.
func Step(t *testing.T, port int, id int64, want models.CaseStatus) {
	resp := call(t, "POST", fmt.Sprintf("http://localhost:%d/api/cases/%d/step", port, id), nil)
	step, err := util.DecodeJSONBodyResponse[models.StepResponse](resp)
	if err != nil {
		t.Fatalf("Failed to decode step response: %v", err)
	}
	if resp.StatusCode != http.StatusOK || step.Status != want {
		t.Fatalf("Expected step to %s, got %d %+v", want, resp.StatusCode, step)
	}
}

// GetCaseAndExpectStatus loads a case over the API and checks its status.
func GetCaseAndExpectStatus(t *testing.T, port int, id int64, status models.CaseStatus) models.CaseApiResponse {
	resp := call(t, "GET", fmt.Sprintf("http://localhost:%d/api/cases/%d", port, id), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 OK, got %d", resp.StatusCode)
	}
	view, _ := util.DecodeJSONBodyResponse[models.CaseApiResponse](resp)
	if view.Status != status {
		t.Errorf("Expected case status to be %s, got %s", status, view.Status)
	}
	return view
}

// RunOnboardingFlow drives a manual application through every phase over HTTP.
func RunOnboardingFlow(t *testing.T, port int) {
	base := fmt.Sprintf("http://localhost:%d/api/cases", port)

	resp := call(t, "POST", base, models.ManualIntakeRequest{
		BusinessName:  "Acme Widgets LLC",
		Industry:      "retail",
		OwnerName:     "Dana Reyes",
		OwnerEmail:    "dana@acme.test",
		AnnualRevenue: 1000000,
		NetIncome:     20000,
		TotalDebt:     400000,
		TotalAssets:   500000,
		SignedFor:     "Acme Widgets LLC",
		Attested:      true,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 Created, got %d", resp.StatusCode)
	}
	created, _ := util.DecodeJSONBodyResponse[models.CreateCaseResponse](resp)
	if created.Status != models.StatusKYCChecks {
		t.Fatalf("Expected KYC_CHECKS after intake, got %s", created.Status)
	}

	Step(t, port, created.ID, models.StatusCreditAnalysis)
	Step(t, port, created.ID, models.StatusAwaitingReview)

	resp = call(t, "POST", fmt.Sprintf("%s/%d/step", base, created.ID), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for a gated case, got %d", resp.StatusCode)
	}

	resp = call(t, "GET", fmt.Sprintf("%s/%d/review", base, created.ID), nil)
	review, _ := util.DecodeJSONBodyResponse[models.ReviewView](resp)
	if review.Reason != "Score below threshold." || review.TriggerState != models.StatusCreditAnalysis {
		t.Errorf("Unexpected review view %+v", review)
	}
	if review.Digest != "Credit score 58 with thin margins." {
		t.Errorf("Unexpected digest %q", review.Digest)
	}

	resp = call(t, "POST", fmt.Sprintf("%s/%d/review", base, created.ID), models.ReviewDecisionRequest{Decision: "CONTINUE", Justification: "looks fine"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for a decision not offered, got %d", resp.StatusCode)
	}

	resp = call(t, "POST", fmt.Sprintf("%s/%d/review", base, created.ID), models.ReviewDecisionRequest{Decision: "FINAL_APPROVE", Justification: "Collateral covers the debt"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 OK for the review, got %d", resp.StatusCode)
	}

	Step(t, port, created.ID, models.StatusApproved)
	Step(t, port, created.ID, models.StatusCompleted)

	view := GetCaseAndExpectStatus(t, port, created.ID, models.StatusCompleted)
	if view.FinalDecision == nil || view.FinalDecision.Source != models.SourceHuman || view.FinalDecision.Analyst != "alice" {
		t.Errorf("Expected a human verdict by alice, got %+v", view.FinalDecision)
	}
	if view.FinalNotification == nil || view.FinalNotification.MessageID == "" {
		t.Errorf("Expected a sent notification, got %+v", view.FinalNotification)
	}

	resp = call(t, "GET", fmt.Sprintf("http://localhost:%d/api/actions/byCaseId/%d", port, created.ID), nil)
	actions, _ := util.DecodeJSONBodyResponse[[]map[string]any](resp)
	if len(actions) <= len(view.AuditLog) {
		t.Errorf("Expected audit lines plus transitions as actions, got %d actions for %d lines", len(actions), len(view.AuditLog))
	}
}
