package engine

import (
	"sync"

	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/domain"
)

// CaseStore holds the authoritative record of one case. Readers get clones;
// writers go through Apply, one at a time.
type CaseStore struct {
	mu      sync.RWMutex
	applyMu sync.Mutex
	c       *domain.Case
}

func NewCaseStore(c *domain.Case) *CaseStore {
	return &CaseStore{c: c.Clone()}
}

// Get returns a snapshot that callers may modify freely.
func (s *CaseStore) Get() *domain.Case {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.Clone()
}

// Apply runs mutate against a copy of the case and installs the copy only if
// mutate returns nil. A second Apply while one is running fails with
// ErrStoreBusy instead of waiting.
func (s *CaseStore) Apply(mutate func(c *domain.Case) error) error {
	if !s.applyMu.TryLock() {
		return ErrStoreBusy
	}
	defer s.applyMu.Unlock()

	work := s.Get()
	if err := mutate(work); err != nil {
		return err
	}

	s.mu.Lock()
	s.c = work
	s.mu.Unlock()
	return nil
}
