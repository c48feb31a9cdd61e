package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/core"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/domain"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

// ErrStaleCase is returned by Update when the stored version moved on since
// the case was loaded.
var ErrStaleCase = errors.New("case was modified concurrently")

type CaseRepository struct {
	db    *sql.DB
	clock core.Clock
}

const CASE_COLUMNS = ` id, external_id, status, business_name, owner_name, source_document_ref,
		       extraction_result, screening_result, risk_result, matching_result,
		       audit_log, final_decision, review_reason, review_trigger_state, error_origin,
		       last_review, final_notification, version, created, modified `

func NewCaseRepository(db *sql.DB, clock core.Clock) *CaseRepository {
	return &CaseRepository{db: db, clock: clock}
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// caseColumns holds the raw column values of one onboarding_case row.
type caseColumns struct {
	extraction, screening, risk, matching sql.NullString
	auditLog                              string
	verdict, lastReview, notification     sql.NullString
	status, trigger, errorOrigin          string
}

func scanCase(row rowScanner) (*domain.Case, error) {
	var c domain.Case
	var cols caseColumns
	err := row.Scan(
		&c.ID,
		&c.ExternalID,
		&cols.status,
		&c.BusinessName,
		&c.OwnerName,
		&c.SourceDocumentRef,
		&cols.extraction,
		&cols.screening,
		&cols.risk,
		&cols.matching,
		&cols.auditLog,
		&cols.verdict,
		&c.ReviewReason,
		&cols.trigger,
		&cols.errorOrigin,
		&cols.lastReview,
		&cols.notification,
		&c.Version,
		&c.Created,
		&c.Modified,
	)
	if err != nil {
		return nil, err
	}
	c.Status = models.CaseStatus(cols.status)
	c.ReviewTriggerState = models.CaseStatus(cols.trigger)
	c.ErrorOrigin = models.CaseStatus(cols.errorOrigin)
	if err := json.Unmarshal([]byte(cols.auditLog), &c.AuditLog); err != nil {
		return nil, fmt.Errorf("case %d audit_log: %w", c.ID, err)
	}
	if c.ExtractionResult, err = fromJSON[models.ExtractionResult](cols.extraction); err != nil {
		return nil, fmt.Errorf("case %d extraction_result: %w", c.ID, err)
	}
	if c.ScreeningResult, err = fromJSON[models.ScreeningResult](cols.screening); err != nil {
		return nil, fmt.Errorf("case %d screening_result: %w", c.ID, err)
	}
	if c.RiskResult, err = fromJSON[models.RiskResult](cols.risk); err != nil {
		return nil, fmt.Errorf("case %d risk_result: %w", c.ID, err)
	}
	if c.MatchingResult, err = fromJSON[models.MatchingResult](cols.matching); err != nil {
		return nil, fmt.Errorf("case %d matching_result: %w", c.ID, err)
	}
	if c.FinalDecision, err = fromJSON[models.Verdict](cols.verdict); err != nil {
		return nil, fmt.Errorf("case %d final_decision: %w", c.ID, err)
	}
	if c.LastReview, err = fromJSON[models.ReviewRecord](cols.lastReview); err != nil {
		return nil, fmt.Errorf("case %d last_review: %w", c.ID, err)
	}
	if c.FinalNotification, err = fromJSON[models.SentNotification](cols.notification); err != nil {
		return nil, fmt.Errorf("case %d final_notification: %w", c.ID, err)
	}
	return &c, nil
}

// caseValues returns the mutable columns of c in CASE_COLUMNS order, starting at status.
func caseValues(c *domain.Case) ([]any, error) {
	audit := c.AuditLog
	if audit == nil {
		audit = []string{}
	}
	auditJSON, err := json.Marshal(audit)
	if err != nil {
		return nil, err
	}
	structured := []any{c.ExtractionResult, c.ScreeningResult, c.RiskResult, c.MatchingResult}
	vals := []any{string(c.Status), c.BusinessName, c.OwnerName, c.SourceDocumentRef}
	for _, v := range structured {
		ns, err := toJSON(v)
		if err != nil {
			return nil, err
		}
		vals = append(vals, ns)
	}
	verdict, err := toJSON(c.FinalDecision)
	if err != nil {
		return nil, err
	}
	lastReview, err := toJSON(c.LastReview)
	if err != nil {
		return nil, err
	}
	notification, err := toJSON(c.FinalNotification)
	if err != nil {
		return nil, err
	}
	vals = append(vals,
		string(auditJSON),
		verdict,
		c.ReviewReason,
		string(c.ReviewTriggerState),
		string(c.ErrorOrigin),
		lastReview,
		notification,
	)
	return vals, nil
}

// toJSON stores nil pointers as NULL.
func toJSON(v any) (sql.NullString, error) {
	if v == nil || isNilPointer(v) {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

func fromJSON[T any](ns sql.NullString) (*T, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	out := new(T)
	if err := json.Unmarshal([]byte(ns.String), out); err != nil {
		return nil, err
	}
	return out, nil
}

// Save inserts a new case at version 1 and returns its generated id.
func (r *CaseRepository) Save(c *domain.Case) (int64, error) {
	now := r.clock.Now()
	if c.Created.IsZero() {
		c.Created = now
	}
	c.Modified = now
	c.Version = 1

	rest, err := caseValues(c)
	if err != nil {
		return 0, err
	}
	vals := append([]any{c.ExternalID}, rest...)
	vals = append(vals, c.Version, formatDateInDatabase(c.Created), formatDateInDatabase(c.Modified))

	base := `INSERT INTO onboarding_case (
		external_id, status, business_name, owner_name, source_document_ref,
		extraction_result, screening_result, risk_result, matching_result,
		audit_log, final_decision, review_reason, review_trigger_state, error_origin,
		last_review, final_notification, version, created, modified
	) VALUES (` + placeholders(1, len(vals)) + `)`

	if supportsReturning() {
		err = r.db.QueryRow(base+" RETURNING id", vals...).Scan(&c.ID)
	} else {
		res, e := r.db.Exec(base, vals...)
		if e != nil {
			err = e
		} else {
			id, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				c.ID = id
			}
		}
	}
	return c.ID, err
}

// FindByID returns (nil, nil) when no case has the id.
func (r *CaseRepository) FindByID(id int64) (*domain.Case, error) {
	query := `
		SELECT ` + CASE_COLUMNS + `
		FROM onboarding_case WHERE id = ` + placeholder(1)
	c, err := scanCase(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (r *CaseRepository) FindByExternalID(externalID string) (*domain.Case, error) {
	query := `
		SELECT ` + CASE_COLUMNS + `
		FROM onboarding_case WHERE external_id = ` + placeholder(1)
	c, err := scanCase(r.db.QueryRow(query, externalID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// Update writes every mutable column of c when the stored version still
// equals c.Version, then bumps c.Version. A lost race is ErrStaleCase.
func (r *CaseRepository) Update(c *domain.Case) error {
	vals, err := caseValues(c)
	if err != nil {
		return err
	}
	modified := r.clock.Now()
	n := len(vals)
	vals = append(vals, formatDateInDatabase(modified), c.ID, c.Version)

	query := `
		UPDATE onboarding_case SET
			status = ` + placeholder(1) + `,
			business_name = ` + placeholder(2) + `,
			owner_name = ` + placeholder(3) + `,
			source_document_ref = ` + placeholder(4) + `,
			extraction_result = ` + placeholder(5) + `,
			screening_result = ` + placeholder(6) + `,
			risk_result = ` + placeholder(7) + `,
			matching_result = ` + placeholder(8) + `,
			audit_log = ` + placeholder(9) + `,
			final_decision = ` + placeholder(10) + `,
			review_reason = ` + placeholder(11) + `,
			review_trigger_state = ` + placeholder(12) + `,
			error_origin = ` + placeholder(13) + `,
			last_review = ` + placeholder(14) + `,
			final_notification = ` + placeholder(15) + `,
			version = version + 1,
			modified = ` + placeholder(n+1) + `
		WHERE id = ` + placeholder(n+2) + ` AND version = ` + placeholder(n+3)

	result, err := r.db.Exec(query, vals...)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected != 1 {
		return ErrStaleCase
	}
	c.Version++
	c.Modified = modified
	return nil
}

func (r *CaseRepository) Search(req models.SearchCasesRequest) (*[]domain.Case, error) {
	whereClause, args := buildWhereClause(req)

	query := `
		SELECT ` + CASE_COLUMNS + `
		FROM onboarding_case
		` + whereClause +
		` ORDER BY id DESC
	` + buildLimitsAndOffset(req)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cases := make([]domain.Case, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &cases, nil
}

// CountByStatus returns the number of cases per status; statuses with no
// cases are absent.
func (r *CaseRepository) CountByStatus() (map[models.CaseStatus]int64, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM onboarding_case GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[models.CaseStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[models.CaseStatus(status)] = n
	}
	return out, rows.Err()
}

func buildLimitsAndOffset(req models.SearchCasesRequest) string {
	if req.Limit > 0 {
		return fmt.Sprintf(" LIMIT %d OFFSET %d", req.Limit, req.Offset)
	}
	return ""
}

func buildWhereClause(req models.SearchCasesRequest) (string, []interface{}) {
	var andClauses []string
	var args []interface{}

	if req.Status != "" {
		args = append(args, strings.ToUpper(strings.TrimSpace(req.Status)))
		andClauses = append(andClauses, fmt.Sprintf("status = %s", placeholder(len(args))))
	}
	if req.BusinessName != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(req.BusinessName))+"%")
		andClauses = append(andClauses, fmt.Sprintf("LOWER(business_name) LIKE %s", placeholder(len(args))))
	}

	if len(andClauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(andClauses, " AND "), args
}
