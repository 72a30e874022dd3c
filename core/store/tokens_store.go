package store

import (
	"context"
	"database/sql"
	"time"
)

// AccessTokensStore keeps at most one token row per identity.
type AccessTokensStore interface {
	Replace(ctx context.Context, token *AccessToken) error
	GetByHash(ctx context.Context, tokenHash string) (*AccessToken, error)
	DeleteByIdentity(ctx context.Context, identityID string) error
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type accessTokensStore struct {
	db *sql.DB
}

func NewAccessTokensStore(db *sql.DB) AccessTokensStore {
	return &accessTokensStore{db: db}
}

// Replace drops the identity's previous token, if any, and inserts the
// new one in the same transaction.
func (s *accessTokensStore) Replace(ctx context.Context, token *AccessToken) error {
	if token.IssuedAt.IsZero() {
		token.IssuedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM access_tokens WHERE identity_id=?`, token.IdentityID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO access_tokens(identity_id, session_id, token_hash, issued_at, expires_at)
		VALUES(?,?,?,?,?)`,
		token.IdentityID, token.SessionID, token.TokenHash, token.IssuedAt, token.ExpiresAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *accessTokensStore) GetByHash(ctx context.Context, tokenHash string) (*AccessToken, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT identity_id, session_id, token_hash, issued_at, expires_at
		FROM access_tokens WHERE token_hash=?`, tokenHash)
	var t AccessToken
	if err := row.Scan(&t.IdentityID, &t.SessionID, &t.TokenHash, &t.IssuedAt, &t.ExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *accessTokensStore) DeleteByIdentity(ctx context.Context, identityID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE identity_id=?`, identityID)
	return err
}

func (s *accessTokensStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE expires_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
