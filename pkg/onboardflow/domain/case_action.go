package domain

import "time"

// Action types written to case_actions.
const (
	ActionIntake       = "INTAKE"
	ActionTransition   = "TRANSITION"
	ActionLog          = "LOG"
	ActionError        = "ERROR"
	ActionReview       = "REVIEW"
	ActionNotification = "NOTIFICATION"
)

type CaseAction struct {
	ID       int64     // BIGSERIAL
	CaseID   int64     // BIGINT (foreign key)
	Seq      int       // INT position in the case audit log
	Type     string    // TEXT
	Name     string    // TEXT state the action ran in
	Text     string    // TEXT
	Actor    string    // TEXT analyst username or executor
	DateTime time.Time // TIMESTAMP
}
