package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/glimt-hq/friktion/internal/models"
	"github.com/glimt-hq/friktion/internal/services"
)

// SQLiteStore implements every service store interface on top of a single
// relational database, which is also the only synchronization point between
// the request path and the background scan loop.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

func NewSQLiteStore(sqlDB *sql.DB, log *zap.Logger) (*SQLiteStore, error) {
	if sqlDB == nil {
		return nil, errors.New("nil db")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLiteStore{db: sqlDB, log: log}, nil
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func int64ToBool(v int64) bool { return v != 0 }

func toUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromUnix(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}

func isConstraintErr(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

// isUniqueErr reports a primary-key or unique-index violation specifically,
// as opposed to a foreign-key or check constraint failure.
func isUniqueErr(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) &&
		(se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique)
}

// --- organizational units ---

// InsertUnit exists for the external org-hierarchy collaborator and tests;
// this core itself never creates units.
func (s *SQLiteStore) InsertUnit(u *models.OrganizationalUnit) error {
	parent := sql.NullString{String: u.ParentID, Valid: u.ParentID != ""}
	_, err := s.db.Exec(`INSERT INTO organizational_units (id, customer_id, parent_id, name, path, depth)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.CustomerID, parent, u.Name, u.Path, u.Depth)
	if err != nil {
		return fmt.Errorf("insert unit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUnit(customerID, id string) (*models.OrganizationalUnit, error) {
	var u models.OrganizationalUnit
	var parent sql.NullString
	err := s.db.QueryRow(`SELECT id, customer_id, parent_id, name, path, depth
		FROM organizational_units WHERE id = ? AND customer_id = ?`, id, customerID).
		Scan(&u.ID, &u.CustomerID, &parent, &u.Name, &u.Path, &u.Depth)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get unit: %w", err)
	}
	u.ParentID = parent.String
	return &u, nil
}

// --- questions ---

func (s *SQLiteStore) queryQuestions(query string, args ...any) ([]*models.Question, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []*models.Question
	for rows.Next() {
		var q models.Question
		var reverse, isDefault, active int64
		if err := rows.Scan(&q.ID, &q.CustomerID, &q.Field, &q.Text, &reverse, &q.Sequence, &isDefault, &active); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.ReverseScored = int64ToBool(reverse)
		q.IsDefault = int64ToBool(isDefault)
		q.Active = int64ToBool(active)
		out = append(out, &q)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListActiveQuestions(customerID string) ([]*models.Question, error) {
	return s.queryQuestions(`SELECT id, customer_id, field, text, reverse_scored, sequence, is_default, active
		FROM questions WHERE active = 1 AND (customer_id = '' OR customer_id = ?)
		ORDER BY sequence, id`, customerID)
}

func (s *SQLiteStore) ListQuestions(customerID string) ([]*models.Question, error) {
	return s.queryQuestions(`SELECT id, customer_id, field, text, reverse_scored, sequence, is_default, active
		FROM questions WHERE customer_id = '' OR customer_id = ?
		ORDER BY sequence, id`, customerID)
}

func (s *SQLiteStore) InsertQuestion(q *models.Question) error {
	_, err := s.db.Exec(`INSERT INTO questions (id, customer_id, field, text, reverse_scored, sequence, is_default, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.CustomerID, string(q.Field), q.Text, boolToInt64(q.ReverseScored), q.Sequence,
		boolToInt64(q.IsDefault), boolToInt64(q.Active))
	if err != nil {
		if isUniqueErr(err) {
			return services.NewConflictError("question id already exists")
		}
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeactivateQuestion(customerID, id string) (bool, error) {
	res, err := s.db.Exec(`UPDATE questions SET active = 0
		WHERE id = ? AND customer_id = ? AND active = 1`, id, customerID)
	if err != nil {
		return false, fmt.Errorf("deactivate question: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- assessments ---

const assessmentColumns = `id, customer_id, unit_id, name, period, status, scheduled_at, sent_at,
	include_leader_assessment, min_responses, last_send_error, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (*models.Assessment, error) {
	var a models.Assessment
	var scheduledAt, sentAt sql.NullInt64
	var includeLeader, createdAt int64
	err := row.Scan(&a.ID, &a.CustomerID, &a.UnitID, &a.Name, &a.Period, &a.Status,
		&scheduledAt, &sentAt, &includeLeader, &a.MinResponses, &a.LastSendError, &createdAt)
	if err != nil {
		return nil, err
	}
	a.ScheduledAt = fromUnix(scheduledAt)
	a.SentAt = fromUnix(sentAt)
	a.IncludeLeaderAssessment = int64ToBool(includeLeader)
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &a, nil
}

func (s *SQLiteStore) InsertAssessment(a *models.Assessment) error {
	_, err := s.db.Exec(`INSERT INTO assessments (`+assessmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CustomerID, a.UnitID, a.Name, a.Period, string(a.Status),
		toUnix(a.ScheduledAt), toUnix(a.SentAt), boolToInt64(a.IncludeLeaderAssessment),
		a.MinResponses, a.LastSendError, a.CreatedAt.Unix())
	if err != nil {
		if isUniqueErr(err) {
			return services.NewConflictError("assessment id already exists")
		}
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getAssessment(where string, args ...any) (*models.Assessment, error) {
	a, err := scanAssessment(s.db.QueryRow(`SELECT `+assessmentColumns+` FROM assessments WHERE `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) GetAssessment(customerID, id string) (*models.Assessment, error) {
	return s.getAssessment(`id = ? AND customer_id = ?`, id, customerID)
}

func (s *SQLiteStore) GetAssessmentByID(id string) (*models.Assessment, error) {
	return s.getAssessment(`id = ?`, id)
}

func (s *SQLiteStore) MarkScheduled(customerID, id string, at time.Time) (bool, error) {
	res, err := s.db.Exec(`UPDATE assessments SET status = ?, scheduled_at = ?, last_send_error = ''
		WHERE id = ? AND customer_id = ? AND status IN (?, ?)`,
		string(models.StatusScheduled), at.Unix(), id, customerID,
		string(models.StatusDraft), string(models.StatusScheduled))
	if err != nil {
		return false, fmt.Errorf("mark scheduled: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) CancelScheduled(customerID, id string) (bool, error) {
	res, err := s.db.Exec(`UPDATE assessments SET status = ?
		WHERE id = ? AND customer_id = ? AND status = ?`,
		string(models.StatusCancelled), id, customerID, string(models.StatusScheduled))
	if err != nil {
		return false, fmt.Errorf("cancel assessment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) queryAssessments(query string, args ...any) ([]*models.Assessment, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query assessments: %w", err)
	}
	defer rows.Close()

	var out []*models.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListAssessments(customerID string) ([]*models.Assessment, error) {
	return s.queryAssessments(`SELECT `+assessmentColumns+` FROM assessments
		WHERE customer_id = ? ORDER BY created_at DESC, id`, customerID)
}

func (s *SQLiteStore) ListScheduled(customerID string) ([]*models.Assessment, error) {
	return s.queryAssessments(`SELECT `+assessmentColumns+` FROM assessments
		WHERE customer_id = ? AND status = ? ORDER BY scheduled_at, id`,
		customerID, string(models.StatusScheduled))
}

func (s *SQLiteStore) DueAssessments(now time.Time) ([]*models.Assessment, error) {
	return s.queryAssessments(`SELECT `+assessmentColumns+` FROM assessments
		WHERE status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?
		ORDER BY scheduled_at, id`,
		string(models.StatusScheduled), now.Unix())
}

func (s *SQLiteStore) MarkSent(id string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE assessments SET status = ?, sent_at = ?, last_send_error = ''
		WHERE id = ?`, string(models.StatusSent), at.Unix(), id)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordSendError(id, reason string) error {
	_, err := s.db.Exec(`UPDATE assessments SET last_send_error = ? WHERE id = ?`, reason, id)
	if err != nil {
		return fmt.Errorf("record send error: %w", err)
	}
	return nil
}

// --- tokens ---

func (s *SQLiteStore) TokensIssued(assessmentID, unitID string) (bool, error) {
	var exists int
	err := s.db.QueryRow(`SELECT EXISTS (SELECT 1 FROM tokens WHERE assessment_id = ? AND unit_id = ?)`,
		assessmentID, unitID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check issued tokens: %w", err)
	}
	return exists == 1, nil
}

func (s *SQLiteStore) InsertTokens(tokens []*models.Token) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert tokens: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range tokens {
		_, err := tx.Exec(`INSERT INTO tokens (token, assessment_id, unit_id, respondent_type, is_used, used_at, created_at)
			VALUES (?, ?, ?, ?, 0, NULL, ?)`,
			t.Value, t.AssessmentID, t.UnitID, string(t.Respondent), t.CreatedAt.Unix())
		if err != nil {
			if isUniqueErr(err) {
				s.log.Warn("token insert hit a constraint, caller will regenerate values",
					zap.String("assessment_id", t.AssessmentID))
				return services.NewConflictError("token value collision")
			}
			return fmt.Errorf("insert token: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetToken(value string) (*models.Token, error) {
	var t models.Token
	var isUsed, createdAt int64
	var usedAt sql.NullInt64
	err := s.db.QueryRow(`SELECT token, assessment_id, unit_id, respondent_type, is_used, used_at, created_at
		FROM tokens WHERE token = ?`, value).
		Scan(&t.Value, &t.AssessmentID, &t.UnitID, &t.Respondent, &isUsed, &usedAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	t.IsUsed = int64ToBool(isUsed)
	t.UsedAt = fromUnix(usedAt)
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &t, nil
}

// RedeemToken flips the used flag and writes the response batch in a single
// transaction. The conditional update is the compare-and-set that makes
// concurrent redemptions of one token resolve to exactly one winner.
func (s *SQLiteStore) RedeemToken(value string, usedAt time.Time, responses []*models.Response) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin redeem: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`UPDATE tokens SET is_used = 1, used_at = ?
		WHERE token = ? AND is_used = 0`, usedAt.Unix(), value)
	if err != nil {
		return fmt.Errorf("mark token used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var used int64
		err := tx.QueryRow(`SELECT is_used FROM tokens WHERE token = ?`, value).Scan(&used)
		if errors.Is(err, sql.ErrNoRows) {
			return services.ErrTokenNotFound
		}
		if err != nil {
			return fmt.Errorf("inspect token: %w", err)
		}
		return services.ErrTokenAlreadyUsed
	}

	for _, r := range responses {
		_, err := tx.Exec(`INSERT INTO responses (assessment_id, unit_id, question_id, respondent_type, score, comment, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.AssessmentID, r.UnitID, r.QuestionID, string(r.Respondent), r.Score, r.Comment, r.CreatedAt.Unix())
		if err != nil {
			if isConstraintErr(err) {
				return services.NewInvalidError("response violates storage constraints")
			}
			return fmt.Errorf("insert response: %w", err)
		}
	}
	return tx.Commit()
}

// CountUsedTokens is the sole basis for response-count reporting; responses
// are never correlated back to individual tokens.
func (s *SQLiteStore) CountUsedTokens(assessmentID string) (map[models.RespondentType]int, error) {
	rows, err := s.db.Query(`SELECT respondent_type, COUNT(*) FROM tokens
		WHERE assessment_id = ? AND is_used = 1 GROUP BY respondent_type`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("count used tokens: %w", err)
	}
	defer rows.Close()

	out := map[models.RespondentType]int{}
	for rows.Next() {
		var rt models.RespondentType
		var n int
		if err := rows.Scan(&rt, &n); err != nil {
			return nil, fmt.Errorf("scan token count: %w", err)
		}
		out[rt] = n
	}
	return out, rows.Err()
}

// --- responses ---

func (s *SQLiteStore) ListResponses(assessmentID string) ([]*models.Response, error) {
	rows, err := s.db.Query(`SELECT id, assessment_id, unit_id, question_id, respondent_type, score, comment, created_at
		FROM responses WHERE assessment_id = ? ORDER BY id`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	var out []*models.Response
	for rows.Next() {
		var r models.Response
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.AssessmentID, &r.UnitID, &r.QuestionID, &r.Respondent, &r.Score, &r.Comment, &createdAt); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, &r)
	}
	return out, rows.Err()
}

var (
	_ services.QuestionStore   = (*SQLiteStore)(nil)
	_ services.TokenStore      = (*SQLiteStore)(nil)
	_ services.AssessmentStore = (*SQLiteStore)(nil)
	_ services.ReportStore     = (*SQLiteStore)(nil)
)
