package repository

import (
	"database/sql"
	"time"

	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/core"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/domain"
)

// UserRepository provides persistence methods for the users table.
type UserRepository struct {
	db    *sql.DB
	clock core.Clock
}

const USER_COLUMNS = ` id, username, password, session_id, api_key, sessionExpiry, created, enabled `

func NewUserRepository(db *sql.DB, clock core.Clock) *UserRepository {
	return &UserRepository{db: db, clock: clock}
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Password,
		&u.SessionID,
		&u.ApiKey,
		&u.SessionExpiry,
		&u.Created,
		&u.Enabled,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// findOne runs a single-row user query. Returns (nil, nil) if not found.
func (r *UserRepository) findOne(query string, args ...any) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// Save inserts a new user and returns its generated id.
// It will set Created to now if it's not provided (null or zero).
func (r *UserRepository) Save(u *domain.User) (int64, error) {
	if !u.Created.Valid {
		u.Created = sql.NullTime{Time: r.clock.Now().UTC(), Valid: true}
	}
	if !u.Enabled.Valid {
		u.Enabled = sql.NullBool{Bool: true, Valid: true}
	}

	base := `
        INSERT INTO users (username, password, session_id, api_key, sessionExpiry, created, enabled)
        VALUES (` + placeholders(1, 7) + `)
    `
	vals := []any{
		u.Username,
		u.Password,
		u.SessionID,
		u.ApiKey,
		u.SessionExpiry,
		formatDateInDatabase(u.Created.Time),
		u.Enabled,
	}

	var id int64
	var err error
	if supportsReturning() {
		err = r.db.QueryRow(base+" RETURNING id", vals...).Scan(&id)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			newID, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				id = newID
			}
		}
	}
	if err != nil {
		return 0, err
	}
	u.ID = id
	return id, nil
}

// FindByUsername fetches a user by exact username. Returns (nil, nil) if not found.
func (r *UserRepository) FindByUsername(username string) (*domain.User, error) {
	return r.findOne(`
        SELECT `+USER_COLUMNS+`
        FROM users
        WHERE username = `+placeholder(1)+`
        LIMIT 1
    `, username)
}

func (r *UserRepository) FindById(id int64) (*domain.User, error) {
	return r.findOne(`
        SELECT `+USER_COLUMNS+`
        FROM users
        WHERE id = `+placeholder(1), id)
}

// FindBySessionID fetches a user by session_id and ensures sessionExpiry is in the future.
func (r *UserRepository) FindBySessionID(sessionID string, now time.Time) (*domain.User, error) {
	return r.findOne(`
        SELECT `+USER_COLUMNS+`
        FROM users
        WHERE session_id = `+placeholder(1)+` AND sessionExpiry > `+placeholder(2)+`
        LIMIT 1
    `, sessionID, formatDateInDatabase(now))
}

// FindByApiKey fetches a user by api_key (exact match). Returns (nil, nil) if not found.
func (r *UserRepository) FindByApiKey(apiKey string) (*domain.User, error) {
	return r.findOne(`
        SELECT `+USER_COLUMNS+`
        FROM users
        WHERE api_key = `+placeholder(1)+`
        LIMIT 1
    `, apiKey)
}

// UpdateSession sets session_id and sessionExpiry for a user by id.
func (r *UserRepository) UpdateSession(userID int64, sessionID string, expiry time.Time) error {
	query := `
        UPDATE users
        SET session_id = ` + placeholder(1) + `, sessionExpiry = ` + placeholder(2) + `
        WHERE id = ` + placeholder(3) + `
    `
	_, err := r.db.Exec(query, sessionID, formatDateInDatabase(expiry), userID)
	return err
}

// ClearSessionBySessionID nulls session_id and sessionExpiry for the user with the given current session_id.
func (r *UserRepository) ClearSessionBySessionID(sessionID string) error {
	query := `
        UPDATE users
        SET session_id = NULL, sessionExpiry = NULL
        WHERE session_id = ` + placeholder(1) + `
    `
	_, err := r.db.Exec(query, sessionID)
	return err
}

func (r *UserRepository) UpdateUser(id int64, username string, apiKey sql.NullString, enabled sql.NullBool) error {
	query := `
        UPDATE users
        SET username = ` + placeholder(1) + `, api_key = ` + placeholder(2) + `, enabled = ` + placeholder(3) + `
        WHERE id = ` + placeholder(4) + `
    `
	_, err := r.db.Exec(query, username, apiKey, enabled, id)
	return err
}

func (r *UserRepository) DeleteById(id int64) error {
	_, err := r.db.Exec(`DELETE FROM users WHERE id = `+placeholder(1), id)
	return err
}

// FindAll returns all users ordered by id ascending.
func (r *UserRepository) FindAll() (*[]domain.User, error) {
	rows, err := r.db.Query(`
        SELECT ` + USER_COLUMNS + `
        FROM users
        ORDER BY id ASC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &users, nil
}
