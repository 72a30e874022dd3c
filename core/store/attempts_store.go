package store

import (
	"context"
	"database/sql"
	"time"
)

// LoginAttemptsStore records every verification attempt, including ones
// against unknown addresses where identity_id stays null.
type LoginAttemptsStore interface {
	Record(ctx context.Context, attempt *LoginAttempt) error
	CountFailuresByIPSince(ctx context.Context, ip string, since time.Time) (int, error)
	ListByIdentity(ctx context.Context, identityID string, limit int) ([]LoginAttempt, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type loginAttemptsStore struct {
	db *sql.DB
}

func NewLoginAttemptsStore(db *sql.DB) LoginAttemptsStore {
	return &loginAttemptsStore{db: db}
}

func (s *loginAttemptsStore) Record(ctx context.Context, attempt *LoginAttempt) error {
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO login_attempts(identity_id, email, ip, user_agent, success, reason, mfa_required, mfa_success, created_at)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		nullableString(attempt.IdentityID), attempt.Email, attempt.IP, attempt.UserAgent,
		boolToInt(attempt.Success), attempt.Reason,
		boolToInt(attempt.MFARequired), boolToInt(attempt.MFASuccess), attempt.CreatedAt)
	return err
}

func (s *loginAttemptsStore) CountFailuresByIPSince(ctx context.Context, ip string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM login_attempts
		WHERE ip=? AND success=0
			AND reason IN ('invalid_credentials','invalid_mfa')
			AND created_at >= ?`, ip, since).Scan(&n)
	return n, err
}

func (s *loginAttemptsStore) ListByIdentity(ctx context.Context, identityID string, limit int) ([]LoginAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity_id, email, ip, user_agent, success, reason, mfa_required, mfa_success, created_at
		FROM login_attempts WHERE identity_id=? ORDER BY created_at DESC LIMIT ?`, identityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LoginAttempt
	for rows.Next() {
		var a LoginAttempt
		var identID sql.NullString
		var success, mfaRequired, mfaSuccess int
		if err := rows.Scan(&a.ID, &identID, &a.Email, &a.IP, &a.UserAgent, &success, &a.Reason, &mfaRequired, &mfaSuccess, &a.CreatedAt); err != nil {
			return nil, err
		}
		if identID.Valid {
			a.IdentityID = &identID.String
		}
		a.Success = success == 1
		a.MFARequired = mfaRequired == 1
		a.MFASuccess = mfaSuccess == 1
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *loginAttemptsStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
