package store

import (
	"context"
	"database/sql"
	"time"
)

type SessionsStore interface {
	Save(ctx context.Context, sess *Session) error
	GetByKeyHash(ctx context.Context, keyHash string) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	ListByIdentity(ctx context.Context, identityID string) ([]Session, error)
	Revoke(ctx context.Context, id string, by string) error
	RevokeAllForIdentity(ctx context.Context, identityID string, by string) error
	RevokeAllForIdentityExcept(ctx context.Context, identityID, keepID, by string) error
	UpdateActivity(ctx context.Context, id string, now time.Time) error
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type sessionsStore struct {
	db *sql.DB
}

func NewSessionsStore(db *sql.DB) SessionsStore {
	return &sessionsStore{db: db}
}

const sessionColumns = `id, identity_id, key_hash, ip, user_agent, created_at, last_seen_at, expires_at, revoked, revoked_at, revoked_by`

func (s *sessionsStore) Save(ctx context.Context, sess *Session) error {
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.LastSeenAt.IsZero() {
		sess.LastSeenAt = sess.CreatedAt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions(`+sessionColumns+`)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		sess.ID, sess.IdentityID, sess.KeyHash, sess.IP, sess.UserAgent,
		sess.CreatedAt, sess.LastSeenAt, sess.ExpiresAt,
		boolToInt(sess.Revoked), nullableTime(sess.RevokedAt), sess.RevokedBy)
	return err
}

// GetByKeyHash returns nil for revoked or expired sessions; expired
// rows are revoked on sight.
func (s *sessionsStore) GetByKeyHash(ctx context.Context, keyHash string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE key_hash=?`, keyHash)
	return s.scanLive(ctx, row)
}

func (s *sessionsStore) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id=?`, id)
	return s.scanLive(ctx, row)
}

func (s *sessionsStore) scanLive(ctx context.Context, row *sql.Row) (*Session, error) {
	sess, err := scanSession(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if sess.Revoked {
		return nil, nil
	}
	if time.Now().After(sess.ExpiresAt) {
		_ = s.Revoke(ctx, sess.ID, "system")
		return nil, nil
	}
	return sess, nil
}

func scanSession(scan func(dest ...any) error) (*Session, error) {
	var sess Session
	var revoked int
	var revokedAt sql.NullTime
	if err := scan(
		&sess.ID, &sess.IdentityID, &sess.KeyHash, &sess.IP, &sess.UserAgent,
		&sess.CreatedAt, &sess.LastSeenAt, &sess.ExpiresAt,
		&revoked, &revokedAt, &sess.RevokedBy); err != nil {
		return nil, err
	}
	sess.Revoked = revoked == 1
	if revokedAt.Valid {
		sess.RevokedAt = &revokedAt.Time
	}
	return &sess, nil
}

func (s *sessionsStore) ListByIdentity(ctx context.Context, identityID string) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE identity_id=? AND revoked=0 AND expires_at > ?
		ORDER BY last_seen_at DESC`, identityID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

func (s *sessionsStore) Revoke(ctx context.Context, id string, by string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET revoked=1, revoked_at=?, revoked_by=? WHERE id=? AND revoked=0`,
		now, by, id)
	return err
}

func (s *sessionsStore) RevokeAllForIdentity(ctx context.Context, identityID string, by string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET revoked=1, revoked_at=?, revoked_by=? WHERE identity_id=? AND revoked=0`,
		now, by, identityID)
	return err
}

func (s *sessionsStore) RevokeAllForIdentityExcept(ctx context.Context, identityID, keepID, by string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET revoked=1, revoked_at=?, revoked_by=?
		WHERE identity_id=? AND id<>? AND revoked=0`,
		now, by, identityID, keepID)
	return err
}

func (s *sessionsStore) UpdateActivity(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_seen_at=? WHERE id=? AND revoked=0`, now, id)
	return err
}

func (s *sessionsStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ? OR (revoked=1 AND revoked_at < ?)`, cutoff, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
