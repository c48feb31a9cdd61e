package domain

import (
	"database/sql"
)

// User is an analyst account allowed to drive cases and decide reviews.
type User struct {
	ID            int64          `json:"id"`
	Username      string         `json:"username"`
	Password      string         `json:"-"`
	SessionID     sql.NullString `json:"-"`
	ApiKey        sql.NullString `json:"-"`
	SessionExpiry sql.NullTime   `json:"sessionExpiry"`
	Created       sql.NullTime   `json:"created"`
	Enabled       sql.NullBool   `json:"enabled"`
}
