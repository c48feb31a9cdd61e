package repository

import (
	"database/sql"
	"log/slog"

	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/core"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/domain"
)

// CaseActionRepository provides methods to persist and query case action records.
type CaseActionRepository struct {
	db    *sql.DB
	clock core.Clock
}

func NewCaseActionRepository(db *sql.DB, clock core.Clock) *CaseActionRepository {
	return &CaseActionRepository{db: db, clock: clock}
}

// Save inserts a new case action and returns its ID.
// It expects the following table schema (PostgreSQL):
//
//	case_actions(id BIGSERIAL PK, case_id BIGINT, seq INT, type TEXT, name TEXT,
//	             text TEXT, actor TEXT, date_time TIMESTAMP)
func (r *CaseActionRepository) Save(a *domain.CaseAction) (int64, error) {
	if a.DateTime.IsZero() {
		a.DateTime = r.clock.Now()
	}
	base := `
		INSERT INTO case_actions (
			case_id, seq, type, name, text, actor, date_time
		) VALUES (` + placeholders(1, 7) + `)`
	vals := []any{a.CaseID, a.Seq, a.Type, a.Name, a.Text, a.Actor, formatDateInDatabase(a.DateTime)}

	var err error
	if supportsReturning() {
		err = r.db.QueryRow(base+" RETURNING id", vals...).Scan(&a.ID)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				a.ID = id
			}
		}
	}

	if err != nil {
		slog.Error("Failed to save case action", "case_id", a.CaseID, "error", err)
	}

	return a.ID, err
}

// FindByID fetches a single case action by its ID. Returns (nil, nil) if not found.
func (r *CaseActionRepository) FindByID(id int64) (*domain.CaseAction, error) {
	query := `
		SELECT id, case_id, seq, type, name, text, actor, date_time
		FROM case_actions
		WHERE id = ` + placeholder(1)
	var a domain.CaseAction
	err := r.db.QueryRow(query, id).Scan(
		&a.ID,
		&a.CaseID,
		&a.Seq,
		&a.Type,
		&a.Name,
		&a.Text,
		&a.Actor,
		&a.DateTime,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindAllByCaseID returns all actions for a case, newest first.
func (r *CaseActionRepository) FindAllByCaseID(caseID int64) (*[]domain.CaseAction, error) {
	query := `
		SELECT id, case_id, seq, type, name, text, actor, date_time
		FROM case_actions
		WHERE case_id = ` + placeholder(1) + `
		ORDER BY id DESC
	`
	rows, err := r.db.Query(query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	actions := make([]domain.CaseAction, 0)
	for rows.Next() {
		var a domain.CaseAction
		if err := rows.Scan(
			&a.ID,
			&a.CaseID,
			&a.Seq,
			&a.Type,
			&a.Name,
			&a.Text,
			&a.Actor,
			&a.DateTime,
		); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &actions, nil
}
