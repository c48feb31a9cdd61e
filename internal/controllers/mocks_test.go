package controllers

import (
	"sync"

	"github.com/RealZimboGuy/onboardflow/internal/engine"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/domain"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

// MockCaseRepo implements engine.CaseRepo in memory.
type MockCaseRepo struct {
	mu     sync.Mutex
	cases  map[int64]*domain.Case
	nextID int64
}

func (m *MockCaseRepo) Save(c *domain.Case) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cases == nil {
		m.cases = map[int64]*domain.Case{}
	}
	m.nextID++
	c.ID = m.nextID
	c.Version = 1
	m.cases[c.ID] = c.Clone()
	return c.ID, nil
}

func (m *MockCaseRepo) FindByID(id int64) (*domain.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cases[id]; ok {
		return c.Clone(), nil
	}
	return nil, nil
}

func (m *MockCaseRepo) FindByExternalID(externalID string) (*domain.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cases {
		if c.ExternalID == externalID {
			return c.Clone(), nil
		}
	}
	return nil, nil
}

func (m *MockCaseRepo) Update(c *domain.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.cases[c.ID]
	if !ok || stored.Version != c.Version {
		return engine.ErrStaleCase
	}
	c.Version++
	m.cases[c.ID] = c.Clone()
	return nil
}

func (m *MockCaseRepo) Search(req models.SearchCasesRequest) (*[]domain.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Case{}
	for _, c := range m.cases {
		if req.Status == "" || string(c.Status) == req.Status {
			out = append(out, *c.Clone())
		}
	}
	return &out, nil
}

func (m *MockCaseRepo) CountByStatus() (map[models.CaseStatus]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[models.CaseStatus]int64{}
	for _, c := range m.cases {
		out[c.Status]++
	}
	return out, nil
}

// MockCaseActionRepo implements engine.CaseActionRepo for testing.
type MockCaseActionRepo struct {
	FindAllByCaseIDFunc func(caseID int64) (*[]domain.CaseAction, error)

	mu    sync.Mutex
	saved []domain.CaseAction
}

func (m *MockCaseActionRepo) Save(a *domain.CaseAction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, *a)
	a.ID = int64(len(m.saved))
	return a.ID, nil
}

func (m *MockCaseActionRepo) FindAllByCaseID(caseID int64) (*[]domain.CaseAction, error) {
	if m.FindAllByCaseIDFunc != nil {
		return m.FindAllByCaseIDFunc(caseID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.CaseAction{}
	for _, a := range m.saved {
		if a.CaseID == caseID {
			out = append(out, a)
		}
	}
	return &out, nil
}
