package store

import (
	"context"
	"database/sql"
	"time"
)

// PermissionOverridesStore holds one row per (identity, permission, kind).
// Replace swaps the full set for an identity in one transaction.
type PermissionOverridesStore interface {
	ListByIdentity(ctx context.Context, identityID string) ([]PermissionOverride, error)
	Replace(ctx context.Context, identityID string, entries []PermissionOverride) error
	Delete(ctx context.Context, identityID string) error
}

type permissionOverridesStore struct {
	db *sql.DB
}

func NewPermissionOverridesStore(db *sql.DB) PermissionOverridesStore {
	return &permissionOverridesStore{db: db}
}

func (s *permissionOverridesStore) ListByIdentity(ctx context.Context, identityID string) ([]PermissionOverride, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity_id, permission, kind, granted_by, justification, expires_at, created_at
		FROM permission_overrides WHERE identity_id=? ORDER BY permission, kind`, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PermissionOverride
	for rows.Next() {
		var ov PermissionOverride
		var expiresAt sql.NullTime
		if err := rows.Scan(&ov.IdentityID, &ov.Permission, &ov.Kind, &ov.GrantedBy,
			&ov.Justification, &expiresAt, &ov.CreatedAt); err != nil {
			return nil, err
		}
		if expiresAt.Valid {
			ov.ExpiresAt = &expiresAt.Time
		}
		out = append(out, ov)
	}
	return out, rows.Err()
}

func (s *permissionOverridesStore) Replace(ctx context.Context, identityID string, entries []PermissionOverride) error {
	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM permission_overrides WHERE identity_id=?`, identityID); err != nil {
		return err
	}
	for i := range entries {
		ov := &entries[i]
		if ov.CreatedAt.IsZero() {
			ov.CreatedAt = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO permission_overrides(identity_id, permission, kind, granted_by, justification, expires_at, created_at)
			VALUES(?,?,?,?,?,?,?)`,
			identityID, ov.Permission, ov.Kind, ov.GrantedBy, ov.Justification,
			nullableTime(ov.ExpiresAt), ov.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *permissionOverridesStore) Delete(ctx context.Context, identityID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM permission_overrides WHERE identity_id=?`, identityID)
	return err
}
