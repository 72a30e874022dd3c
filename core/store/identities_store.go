package store

import (
	"context"
	"database/sql"
	"sort"
	"time"
)

type IdentitiesStore interface {
	FindByEmail(ctx context.Context, email string) (*Identity, []string, error)
	Get(ctx context.Context, id string) (*Identity, []string, error)
	Create(ctx context.Context, identity *Identity, roles []string) error
	Update(ctx context.Context, identity *Identity) error
	SetRoles(ctx context.Context, id string, roles []string) error
	SetActive(ctx context.Context, id string, active bool) error
	UpdatePassword(ctx context.Context, id string, hash, salt string, changedAt time.Time) error
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
	RecordLoginFailure(ctx context.Context, id string, failures int, at time.Time) error
	SetLock(ctx context.Context, id string, until time.Time, reason string) error
	ClearLock(ctx context.Context, id string) error
	List(ctx context.Context) ([]IdentityWithRoles, error)
}

type identitiesStore struct {
	db *sql.DB
}

func NewIdentitiesStore(db *sql.DB) IdentitiesStore {
	return &identitiesStore{db: db}
}

const identityColumns = `id, email, full_name, department, password_hash, salt, active, mfa_enforced, failed_attempts, locked_until, lock_reason, last_login_at, last_failed_at, password_changed_at, created_at, updated_at`

func (s *identitiesStore) FindByEmail(ctx context.Context, email string) (*Identity, []string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE email=?`, email)
	return s.scanIdentity(ctx, row)
}

func (s *identitiesStore) Get(ctx context.Context, id string) (*Identity, []string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE id=?`, id)
	return s.scanIdentity(ctx, row)
}

func (s *identitiesStore) scanIdentity(ctx context.Context, row *sql.Row) (*Identity, []string, error) {
	var ident Identity
	var active, enforced int
	var locked, lastLogin, lastFailed, pwChanged sql.NullTime
	if err := row.Scan(
		&ident.ID, &ident.Email, &ident.FullName, &ident.Department,
		&ident.PasswordHash, &ident.Salt, &active, &enforced,
		&ident.FailedAttempts, &locked, &ident.LockReason,
		&lastLogin, &lastFailed, &pwChanged,
		&ident.CreatedAt, &ident.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	ident.Active = active == 1
	ident.MFAEnforced = enforced == 1
	if locked.Valid {
		ident.LockedUntil = &locked.Time
	}
	if lastLogin.Valid {
		ident.LastLoginAt = &lastLogin.Time
	}
	if lastFailed.Valid {
		ident.LastFailedAt = &lastFailed.Time
	}
	if pwChanged.Valid {
		ident.PasswordChangedAt = &pwChanged.Time
	}
	roles, err := s.rolesFor(ctx, ident.ID)
	if err != nil {
		return nil, nil, err
	}
	return &ident, roles, nil
}

func (s *identitiesStore) rolesFor(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role FROM identity_roles WHERE identity_id=?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles, rows.Err()
}

func (s *identitiesStore) Create(ctx context.Context, identity *Identity, roles []string) error {
	now := time.Now().UTC()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = now
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO identities(`+identityColumns+`)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		identity.ID, identity.Email, identity.FullName, identity.Department,
		identity.PasswordHash, identity.Salt, boolToInt(identity.Active), boolToInt(identity.MFAEnforced),
		identity.FailedAttempts, nullableTime(identity.LockedUntil), identity.LockReason,
		nullableTime(identity.LastLoginAt), nullableTime(identity.LastFailedAt), nullableTime(identity.PasswordChangedAt),
		identity.CreatedAt, identity.UpdatedAt); err != nil {
		return err
	}
	for _, role := range roles {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO identity_roles(identity_id, role) VALUES(?,?)`, identity.ID, role); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *identitiesStore) Update(ctx context.Context, identity *Identity) error {
	identity.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE identities SET email=?, full_name=?, department=?, mfa_enforced=?, updated_at=?
		WHERE id=?`,
		identity.Email, identity.FullName, identity.Department, boolToInt(identity.MFAEnforced), identity.UpdatedAt, identity.ID)
	return err
}

func (s *identitiesStore) SetRoles(ctx context.Context, id string, roles []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM identity_roles WHERE identity_id=?`, id); err != nil {
		return err
	}
	for _, role := range roles {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO identity_roles(identity_id, role) VALUES(?,?)`, id, role); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE identities SET updated_at=? WHERE id=?`, time.Now().UTC(), id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *identitiesStore) SetActive(ctx context.Context, id string, active bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE identities SET active=?, updated_at=? WHERE id=?`,
		boolToInt(active), time.Now().UTC(), id)
	return err
}

func (s *identitiesStore) UpdatePassword(ctx context.Context, id string, hash, salt string, changedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE identities SET password_hash=?, salt=?, password_changed_at=?, updated_at=?
		WHERE id=?`, hash, salt, changedAt, time.Now().UTC(), id)
	return err
}

func (s *identitiesStore) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE identities SET failed_attempts=0, locked_until=NULL, lock_reason='', last_login_at=?, updated_at=?
		WHERE id=?`, at, time.Now().UTC(), id)
	return err
}

// RecordLoginFailure writes an explicit counter value so the caller can
// restart the count after a success or a stale window.
func (s *identitiesStore) RecordLoginFailure(ctx context.Context, id string, failures int, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE identities SET failed_attempts=?, last_failed_at=?, updated_at=?
		WHERE id=?`, failures, at, time.Now().UTC(), id)
	return err
}

func (s *identitiesStore) SetLock(ctx context.Context, id string, until time.Time, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE identities SET locked_until=?, lock_reason=?, updated_at=? WHERE id=?`,
		until, reason, time.Now().UTC(), id)
	return err
}

func (s *identitiesStore) ClearLock(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE identities SET locked_until=NULL, lock_reason='', failed_attempts=0, updated_at=?
		WHERE id=?`, time.Now().UTC(), id)
	return err
}

func (s *identitiesStore) List(ctx context.Context) ([]IdentityWithRoles, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []IdentityWithRoles
	for rows.Next() {
		var ident Identity
		var active, enforced int
		var locked, lastLogin, lastFailed, pwChanged sql.NullTime
		if err := rows.Scan(
			&ident.ID, &ident.Email, &ident.FullName, &ident.Department,
			&ident.PasswordHash, &ident.Salt, &active, &enforced,
			&ident.FailedAttempts, &locked, &ident.LockReason,
			&lastLogin, &lastFailed, &pwChanged,
			&ident.CreatedAt, &ident.UpdatedAt); err != nil {
			return nil, err
		}
		ident.Active = active == 1
		ident.MFAEnforced = enforced == 1
		if locked.Valid {
			ident.LockedUntil = &locked.Time
		}
		if lastLogin.Valid {
			ident.LastLoginAt = &lastLogin.Time
		}
		if lastFailed.Valid {
			ident.LastFailedAt = &lastFailed.Time
		}
		if pwChanged.Valid {
			ident.PasswordChangedAt = &pwChanged.Time
		}
		out = append(out, IdentityWithRoles{Identity: ident})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		roles, err := s.rolesFor(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Roles = roles
	}
	return out, nil
}
