// ABOUTME: Join request store methods covering the full moderation lifecycle
// ABOUTME: All state transitions are guarded updates so racing writers cannot double-decide

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// joinRequestColumns is the canonical column list shared by every SELECT
const joinRequestColumns = `id, chat_id, user_id, user_chat_id, username, first_name, last_name,
	submitted_at, status, is_flagged, estimated_age_days, risk_score, risk_reasons,
	captcha_question, captcha_answer, captcha_attempts, captcha_max_attempts, captcha_difficulty,
	decided_by, decided_at, decision_note`

const upsertJoinRequestQuery = `
	INSERT INTO join_requests (chat_id, user_id, user_chat_id, username, first_name, last_name, submitted_at, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, 'new')
	ON CONFLICT(chat_id, user_id) DO UPDATE SET
		user_chat_id = excluded.user_chat_id,
		username = excluded.username,
		first_name = excluded.first_name,
		last_name = excluded.last_name,
		submitted_at = excluded.submitted_at,
		status = 'new',
		is_flagged = 0,
		estimated_age_days = NULL,
		risk_score = 0,
		risk_reasons = NULL,
		captcha_question = NULL,
		captcha_answer = NULL,
		captcha_attempts = 0,
		captcha_max_attempts = 3,
		captcha_difficulty = 'normal',
		decided_by = NULL,
		decided_at = NULL,
		decision_note = NULL
	RETURNING id
`

// UpsertJoinRequest records a new application or resets an existing one.
// A repeat application from the same user wipes all prior assessment,
// challenge and decision state and starts the lifecycle over at StatusNew.
func (s *SQLiteStore) UpsertJoinRequest(ctx context.Context, req *JoinRequest) (*JoinRequest, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, upsertJoinRequestQuery,
		req.ChatID,
		req.UserID,
		req.UserChatID,
		nullString(req.Username),
		req.FirstName,
		nullString(req.LastName),
		formatTime(req.SubmittedAt),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("upserting join request: %w", err)
	}

	s.logger.Debug("upserted join request", "id", id, "chat_id", req.ChatID, "user_id", req.UserID)
	return s.GetJoinRequest(ctx, id)
}

// GetJoinRequest retrieves a join request by ID.
// Returns ErrNotFound if no such request exists.
func (s *SQLiteStore) GetJoinRequest(ctx context.Context, id int64) (*JoinRequest, error) {
	query := `SELECT ` + joinRequestColumns + ` FROM join_requests WHERE id = ?`

	req, err := scanJoinRequest(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// SetRiskProfile stores the outcome of a risk assessment on an unrouted request.
// Returns ErrStateConflict if the request already left StatusNew.
func (s *SQLiteStore) SetRiskProfile(ctx context.Context, id int64, ageDays *int, score int, reasons []string) error {
	reasonsJSON, err := marshalReasons(reasons)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE join_requests
		SET estimated_age_days = ?, risk_score = ?, risk_reasons = ?
		WHERE id = ? AND status = ?
	`, nullInt(ageDays), score, reasonsJSON, id, StatusNew)
	if err != nil {
		return fmt.Errorf("setting risk profile: %w", err)
	}
	return s.checkGuarded(ctx, result, id)
}

// MarkPendingAdmin routes an unrouted request to human review.
// The note records why the request was routed this way and is shown to
// reviewers until a decision replaces it.
func (s *SQLiteStore) MarkPendingAdmin(ctx context.Context, id int64, note string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE join_requests
		SET status = ?, is_flagged = 1, decision_note = ?
		WHERE id = ? AND status = ?
	`, StatusPendingAdmin, note, id, StatusNew)
	if err != nil {
		return fmt.Errorf("marking pending admin: %w", err)
	}
	if err := s.checkGuarded(ctx, result, id); err != nil {
		return err
	}

	s.logger.Debug("routed to admin review", "id", id)
	return nil
}

// MarkPendingCaptcha routes an unrouted request to the arithmetic challenge.
// The flagged bit marks hard challenges so reviewers can spot risky applicants
// in the decision history.
func (s *SQLiteStore) MarkPendingCaptcha(ctx context.Context, id int64, question string, answer int64, maxAttempts int, difficulty string, flagged bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE join_requests
		SET status = ?,
			is_flagged = ?,
			captcha_question = ?,
			captcha_answer = ?,
			captcha_attempts = 0,
			captcha_max_attempts = ?,
			captcha_difficulty = ?,
			decision_note = NULL
		WHERE id = ? AND status = ?
	`, StatusPendingCaptcha, flagged, question, answer, maxAttempts, difficulty, id, StatusNew)
	if err != nil {
		return fmt.Errorf("marking pending captcha: %w", err)
	}
	if err := s.checkGuarded(ctx, result, id); err != nil {
		return err
	}

	s.logger.Debug("routed to captcha", "id", id, "difficulty", difficulty)
	return nil
}

// ReplaceChallenge swaps in a fresh question after a failed attempt.
// Attempt counters are left untouched.
func (s *SQLiteStore) ReplaceChallenge(ctx context.Context, id int64, question string, answer int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE join_requests
		SET captcha_question = ?, captcha_answer = ?
		WHERE id = ? AND status = ?
	`, question, answer, id, StatusPendingCaptcha)
	if err != nil {
		return fmt.Errorf("replacing challenge: %w", err)
	}
	return s.checkGuarded(ctx, result, id)
}

// ConsumeAttempt burns one challenge attempt and reports the new tally.
// The counter never exceeds the allowance even if callers race.
// Returns ErrStateConflict if the request is not awaiting a challenge answer.
func (s *SQLiteStore) ConsumeAttempt(ctx context.Context, id int64) (used, allowed int, err error) {
	err = s.db.QueryRowContext(ctx, `
		UPDATE join_requests
		SET captcha_attempts = MIN(captcha_attempts + 1, captcha_max_attempts)
		WHERE id = ? AND status = ?
		RETURNING captcha_attempts, captcha_max_attempts
	`, id, StatusPendingCaptcha).Scan(&used, &allowed)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, s.conflictOrMissing(ctx, id)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("consuming attempt: %w", err)
	}
	return used, allowed, nil
}

// CompleteJoinRequest finalizes a request with a compare-and-swap on status.
// Only the caller whose expected `from` state still matches wins; everyone
// else gets ErrStateConflict. decidedBy is nil for system decisions.
func (s *SQLiteStore) CompleteJoinRequest(ctx context.Context, id int64, from, to Status, decidedBy *int64, note string) error {
	if !to.Terminal() {
		return fmt.Errorf("cannot complete to non-terminal status %q", to)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE join_requests
		SET status = ?, decided_by = ?, decided_at = ?, decision_note = ?
		WHERE id = ? AND status = ?
	`, to, nullInt64(decidedBy), formatTime(time.Now()), note, id, from)
	if err != nil {
		return fmt.Errorf("completing join request: %w", err)
	}
	if err := s.checkGuarded(ctx, result, id); err != nil {
		return err
	}

	s.logger.Info("completed join request", "id", id, "status", to, "note", note)
	return nil
}

// ListPendingReview returns requests awaiting a human decision, oldest first
func (s *SQLiteStore) ListPendingReview(ctx context.Context, limit int) ([]*JoinRequest, error) {
	query := `SELECT ` + joinRequestColumns + `
		FROM join_requests
		WHERE status = ?
		ORDER BY submitted_at ASC, id ASC
		LIMIT ?`

	return s.queryJoinRequests(ctx, query, StatusPendingAdmin, limit)
}

// ListRecentDecisions returns finalized requests, newest decision first
func (s *SQLiteStore) ListRecentDecisions(ctx context.Context, limit int) ([]*JoinRequest, error) {
	query := `SELECT ` + joinRequestColumns + `
		FROM join_requests
		WHERE status IN (?, ?)
		ORDER BY decided_at DESC, id DESC
		LIMIT ?`

	return s.queryJoinRequests(ctx, query, StatusApproved, StatusDeclined, limit)
}

// CountByStatusSince tallies requests submitted at or after the given time,
// grouped by lifecycle state
func (s *SQLiteStore) CountByStatusSince(ctx context.Context, since time.Time) (StatusCounts, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM join_requests
		WHERE submitted_at >= ?
		GROUP BY status
	`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("counting by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := StatusCounts{}
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status counts: %w", err)
	}
	return counts, nil
}

// ListStalePending returns pending requests submitted before the cutoff,
// oldest first. Used by the retention sweeper to expire abandoned requests.
func (s *SQLiteStore) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*JoinRequest, error) {
	query := `SELECT ` + joinRequestColumns + `
		FROM join_requests
		WHERE status IN (?, ?) AND submitted_at < ?
		ORDER BY submitted_at ASC, id ASC
		LIMIT ?`

	return s.queryJoinRequests(ctx, query, StatusPendingAdmin, StatusPendingCaptcha, formatTime(cutoff), limit)
}

// DeleteDecidedBefore removes finalized requests decided before the cutoff.
// Returns the number of rows removed.
func (s *SQLiteStore) DeleteDecidedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM join_requests
		WHERE status IN (?, ?) AND decided_at < ?
	`, StatusApproved, StatusDeclined, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deleting decided requests: %w", err)
	}

	removed, _ := result.RowsAffected()
	if removed > 0 {
		s.logger.Info("purged decided requests", "count", removed)
	}
	return removed, nil
}

// queryJoinRequests runs a SELECT over joinRequestColumns and scans every row
func (s *SQLiteStore) queryJoinRequests(ctx context.Context, query string, args ...any) ([]*JoinRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying join requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var requests []*JoinRequest
	for rows.Next() {
		req, err := scanJoinRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating join requests: %w", err)
	}
	return requests, nil
}

// checkGuarded maps a zero-row guarded UPDATE to the right sentinel
func (s *SQLiteStore) checkGuarded(ctx context.Context, result sql.Result, id int64) error {
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}
	return s.conflictOrMissing(ctx, id)
}

// conflictOrMissing distinguishes a lost race from a missing row
func (s *SQLiteStore) conflictOrMissing(ctx context.Context, id int64) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM join_requests WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking join request: %w", err)
	}
	return ErrStateConflict
}

// scanJoinRequest scans a row into a JoinRequest
func scanJoinRequest(scanner interface{ Scan(dest ...any) error }) (*JoinRequest, error) {
	var req JoinRequest
	var statusStr, submittedAt string
	var username, lastName sql.NullString
	var ageDays, captchaAnswer, decidedBy sql.NullInt64
	var reasonsJSON, question, decidedAt, note sql.NullString

	if err := scanner.Scan(
		&req.ID,
		&req.ChatID,
		&req.UserID,
		&req.UserChatID,
		&username,
		&req.FirstName,
		&lastName,
		&submittedAt,
		&statusStr,
		&req.IsFlagged,
		&ageDays,
		&req.RiskScore,
		&reasonsJSON,
		&question,
		&captchaAnswer,
		&req.CaptchaAttempts,
		&req.CaptchaMaxAttempts,
		&req.CaptchaDifficulty,
		&decidedBy,
		&decidedAt,
		&note,
	); err != nil {
		return nil, err
	}

	req.Status = Status(statusStr)
	req.Username = username.String
	req.LastName = lastName.String
	req.CaptchaQuestion = question.String
	req.CaptchaAnswer = captchaAnswer.Int64
	req.DecisionNote = note.String

	var err error
	req.SubmittedAt, err = parseTime(submittedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing submitted_at: %w", err)
	}

	if ageDays.Valid {
		v := int(ageDays.Int64)
		req.AgeDays = &v
	}
	if decidedBy.Valid {
		v := decidedBy.Int64
		req.DecidedBy = &v
	}
	if decidedAt.Valid {
		t, err := parseTime(decidedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing decided_at: %w", err)
		}
		req.DecidedAt = &t
	}
	if reasonsJSON.Valid {
		if err := json.Unmarshal([]byte(reasonsJSON.String), &req.RiskReasons); err != nil {
			return nil, fmt.Errorf("unmarshaling risk reasons: %w", err)
		}
	}

	return &req, nil
}

// marshalReasons serializes risk reasons to JSON, nil when empty
func marshalReasons(reasons []string) (*string, error) {
	if len(reasons) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(reasons)
	if err != nil {
		return nil, fmt.Errorf("marshaling risk reasons: %w", err)
	}
	str := string(data)
	return &str, nil
}

// nullInt returns nil for a nil pointer, otherwise the int value
func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// nullInt64 returns nil for a nil pointer, otherwise the int64 value
func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
