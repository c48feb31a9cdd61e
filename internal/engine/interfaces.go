package engine

import (
	"database/sql"
	"time"

	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/domain"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

// CaseRepo defines the interface for case persistence, matching repository.CaseRepository.
type CaseRepo interface {
	Save(c *domain.Case) (int64, error)
	FindByID(id int64) (*domain.Case, error)
	FindByExternalID(externalID string) (*domain.Case, error)
	// Update writes c if its Version is still current and bumps Version.
	Update(c *domain.Case) error
	Search(req models.SearchCasesRequest) (*[]domain.Case, error)
	CountByStatus() (map[models.CaseStatus]int64, error)
}

// CaseActionRepo defines the interface for case action persistence.
type CaseActionRepo interface {
	Save(a *domain.CaseAction) (int64, error)
	FindAllByCaseID(caseID int64) (*[]domain.CaseAction, error)
}

// UserRepo defines the interface for user persistence.
type UserRepo interface {
	FindBySessionID(sessionID string, now time.Time) (*domain.User, error)
	FindByApiKey(apiKey string) (*domain.User, error)
	FindAll() (*[]domain.User, error)
	Save(user *domain.User) (int64, error)
	FindById(id int64) (*domain.User, error)
	DeleteById(id int64) error
	FindByUsername(username string) (*domain.User, error)
	UpdateSession(userID int64, sessionID string, expiry time.Time) error
	ClearSessionBySessionID(sessionID string) error
	UpdateUser(id int64, username string, apiKey sql.NullString, enabled sql.NullBool) error
}
