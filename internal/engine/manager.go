package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/core"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/domain"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

const systemActor = "system"

// CaseManager is the entry point used by the HTTP API and the CLI. It loads
// a case, runs exactly one action on it and persists the result, allowing
// one action per case at a time.
type CaseManager struct {
	CaseRepo       CaseRepo
	CaseActionRepo CaseActionRepo
	executor       *StepExecutor
	gate           *ReviewGate
	clock          core.Clock

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

func NewCaseManager(caseRepo CaseRepo, caseActionRepo CaseActionRepo, executor *StepExecutor, gate *ReviewGate, clock core.Clock) *CaseManager {
	if clock == nil {
		clock = core.NewRealClock()
	}
	return &CaseManager{
		CaseRepo:       caseRepo,
		CaseActionRepo: caseActionRepo,
		executor:       executor,
		gate:           gate,
		clock:          clock,
		inFlight:       make(map[int64]struct{}),
	}
}

func (cm *CaseManager) acquire(id int64) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, busy := cm.inFlight[id]; busy {
		return fmt.Errorf("%w: %d", ErrCaseBusy, id)
	}
	cm.inFlight[id] = struct{}{}
	return nil
}

func (cm *CaseManager) release(id int64) {
	cm.mu.Lock()
	delete(cm.inFlight, id)
	cm.mu.Unlock()
}

// CreateManual opens a case from the manual form.
func (cm *CaseManager) CreateManual(ctx context.Context, req models.ManualIntakeRequest) (*domain.Case, error) {
	c, err := NewManualCase(req, cm.clock.Now())
	if err != nil {
		return nil, err
	}
	return cm.create(ctx, c)
}

// CreateFromDocument opens a case from an uploaded document.
func (cm *CaseManager) CreateFromDocument(ctx context.Context, req models.DocumentIntakeRequest) (*domain.Case, error) {
	c, err := NewDocumentCase(req, cm.clock.Now())
	if err != nil {
		return nil, err
	}
	return cm.create(ctx, c)
}

func (cm *CaseManager) create(ctx context.Context, c *domain.Case) (*domain.Case, error) {
	id, err := cm.CaseRepo.Save(c)
	if err != nil {
		slog.ErrorContext(ctx, "Error saving case", "error", err)
		return nil, err
	}
	c.ID = id
	slog.InfoContext(ctx, "Case created", "case_id", id, "external_id", c.ExternalID, "status", c.Status)
	cm.recordActions(ctx, &domain.Case{ID: id, Status: models.StatusPending}, c, domain.ActionIntake)
	return c, nil
}

// Get loads a case by id.
func (cm *CaseManager) Get(id int64) (*domain.Case, error) {
	c, err := cm.CaseRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %d", ErrCaseNotFound, id)
	}
	return c, nil
}

func (cm *CaseManager) GetByExternalID(externalID string) (*domain.Case, error) {
	c, err := cm.CaseRepo.FindByExternalID(externalID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, externalID)
	}
	return c, nil
}

func (cm *CaseManager) Search(req models.SearchCasesRequest) (*[]domain.Case, error) {
	return cm.CaseRepo.Search(req)
}

// Overview counts cases per status for the dashboard.
func (cm *CaseManager) Overview() (map[models.CaseStatus]int64, error) {
	return cm.CaseRepo.CountByStatus()
}

// Actions returns the recorded actions of a case.
func (cm *CaseManager) Actions(caseID int64) (*[]domain.CaseAction, error) {
	return cm.CaseActionRepo.FindAllByCaseID(caseID)
}

// Step runs the next step of a case. The returned case reflects what was
// persisted, also when the step itself failed.
func (cm *CaseManager) Step(ctx context.Context, id int64) (*domain.Case, error) {
	return cm.withCase(ctx, id, domain.ActionLog, func(store *CaseStore) (*domain.Case, error) {
		return cm.executor.Advance(ctx, store)
	})
}

// ReviewView loads the digest and decision options for a gated case.
func (cm *CaseManager) ReviewView(ctx context.Context, id int64) (*models.ReviewView, error) {
	c, err := cm.Get(id)
	if err != nil {
		return nil, err
	}
	if c.Status != models.StatusAwaitingReview {
		return nil, fmt.Errorf("%w: status is %s", ErrNotUnderReview, c.Status)
	}
	return &models.ReviewView{
		CaseID:       c.ID,
		Reason:       c.ReviewReason,
		TriggerState: c.ReviewTriggerState,
		Digest:       cm.gate.Digest(ctx, c),
		Options:      Options(c.ReviewTriggerState),
	}, nil
}

// Review applies an analyst decision.
func (cm *CaseManager) Review(ctx context.Context, id int64, req models.ReviewDecisionRequest) (*domain.Case, error) {
	decision, ok := models.ParseReviewDecision(req.Decision)
	if !ok {
		return nil, fmt.Errorf("%w: unknown decision %q", ErrDecisionNotOffered, req.Decision)
	}
	return cm.withCase(ctx, id, domain.ActionReview, func(store *CaseStore) (*domain.Case, error) {
		return cm.gate.Decide(ctx, store, decision, req.Justification, actor(ctx))
	})
}

// ResubmitDocument hands a new document to a case waiting on the customer.
func (cm *CaseManager) ResubmitDocument(ctx context.Context, id int64, documentRef string) (*domain.Case, error) {
	return cm.withCase(ctx, id, domain.ActionIntake, func(store *CaseStore) (*domain.Case, error) {
		return Resubmit(store, documentRef, cm.clock.Now())
	})
}

// withCase serializes fn per case, persists whatever fn committed to the
// store and records the new audit lines as actions.
func (cm *CaseManager) withCase(ctx context.Context, id int64, actionType string, fn func(store *CaseStore) (*domain.Case, error)) (*domain.Case, error) {
	if err := cm.acquire(id); err != nil {
		return nil, err
	}
	defer cm.release(id)

	before, err := cm.Get(id)
	if err != nil {
		return nil, err
	}
	store := NewCaseStore(before)
	after, actErr := fn(store)
	if after == nil {
		after = store.Get()
	}

	if after.Status == before.Status && len(after.AuditLog) == len(before.AuditLog) {
		return after, actErr
	}
	if err := cm.CaseRepo.Update(after); err != nil {
		slog.ErrorContext(ctx, "Error saving case", "case_id", id, "error", err)
		return before, err
	}
	cm.recordActions(ctx, before, after, actionType)
	return after, actErr
}

func (cm *CaseManager) recordActions(ctx context.Context, before, after *domain.Case, actionType string) {
	now := cm.clock.Now()
	who := actor(ctx)
	for i := len(before.AuditLog); i < len(after.AuditLog); i++ {
		line := after.AuditLog[i]
		t := actionType
		if strings.HasPrefix(line, "ERROR:") {
			t = domain.ActionError
		}
		cm.saveAction(ctx, &domain.CaseAction{CaseID: after.ID, Seq: i, Type: t, Name: string(before.Status), Text: line, Actor: who, DateTime: now})
	}
	if before.FinalNotification == nil && after.FinalNotification != nil {
		n := after.FinalNotification
		cm.saveAction(ctx, &domain.CaseAction{CaseID: after.ID, Seq: len(after.AuditLog), Type: domain.ActionNotification, Name: string(before.Status),
			Text: fmt.Sprintf("Sent %s to %s (message %s)", n.Task, n.ToEmail, n.MessageID), Actor: who, DateTime: now})
	}
	if before.Status != after.Status {
		cm.saveAction(ctx, &domain.CaseAction{CaseID: after.ID, Seq: len(after.AuditLog), Type: domain.ActionTransition, Name: string(before.Status),
			Text: "From " + string(before.Status) + " to " + string(after.Status), Actor: who, DateTime: now})
	}
}

func (cm *CaseManager) saveAction(ctx context.Context, a *domain.CaseAction) {
	if cm.CaseActionRepo == nil {
		return
	}
	if _, err := cm.CaseActionRepo.Save(a); err != nil {
		slog.ErrorContext(ctx, "Error saving case action", "case_id", a.CaseID, "type", a.Type, "error", err)
	}
}

func actor(ctx context.Context) string {
	if u := core.Username(ctx); u != "" {
		return u
	}
	return systemActor
}
