package store

import (
	"context"
	"database/sql"
	"time"
)

type MFADevicesStore interface {
	Create(ctx context.Context, device *MFADevice) error
	Get(ctx context.Context, id string) (*MFADevice, error)
	ListByIdentity(ctx context.Context, identityID string) ([]MFADevice, error)
	ListActiveByIdentity(ctx context.Context, identityID string) ([]MFADevice, error)
	Activate(ctx context.Context, id string, at time.Time) error
	SetLastUsed(ctx context.Context, id string, at time.Time) error
	SetPendingCode(ctx context.Context, id string, code string, issuedAt time.Time) error
	ClearPendingCode(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type mfaDevicesStore struct {
	db *sql.DB
}

func NewMFADevicesStore(db *sql.DB) MFADevicesStore {
	return &mfaDevicesStore{db: db}
}

const mfaDeviceColumns = `id, identity_id, kind, label, secret_sealed, phone, status, pending_code, code_issued_at, created_at, activated_at, last_used_at`

func (s *mfaDevicesStore) Create(ctx context.Context, device *MFADevice) error {
	if device.CreatedAt.IsZero() {
		device.CreatedAt = time.Now().UTC()
	}
	if device.Status == "" {
		device.Status = MFAStatusPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mfa_devices(`+mfaDeviceColumns+`)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		device.ID, device.IdentityID, device.Kind, device.Label,
		device.SecretSealed, device.Phone, device.Status,
		device.PendingCode, nullableTime(device.CodeIssuedAt),
		device.CreatedAt, nullableTime(device.ActivatedAt), nullableTime(device.LastUsedAt))
	return err
}

func (s *mfaDevicesStore) Get(ctx context.Context, id string) (*MFADevice, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mfaDeviceColumns+` FROM mfa_devices WHERE id=?`, id)
	d, err := scanMFADevice(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func scanMFADevice(scan func(dest ...any) error) (*MFADevice, error) {
	var d MFADevice
	var codeIssued, activated, lastUsed sql.NullTime
	if err := scan(
		&d.ID, &d.IdentityID, &d.Kind, &d.Label,
		&d.SecretSealed, &d.Phone, &d.Status,
		&d.PendingCode, &codeIssued,
		&d.CreatedAt, &activated, &lastUsed); err != nil {
		return nil, err
	}
	if codeIssued.Valid {
		d.CodeIssuedAt = &codeIssued.Time
	}
	if activated.Valid {
		d.ActivatedAt = &activated.Time
	}
	if lastUsed.Valid {
		d.LastUsedAt = &lastUsed.Time
	}
	return &d, nil
}

func (s *mfaDevicesStore) ListByIdentity(ctx context.Context, identityID string) ([]MFADevice, error) {
	return s.list(ctx, `SELECT `+mfaDeviceColumns+` FROM mfa_devices WHERE identity_id=? ORDER BY created_at`, identityID)
}

func (s *mfaDevicesStore) ListActiveByIdentity(ctx context.Context, identityID string) ([]MFADevice, error) {
	return s.list(ctx, `SELECT `+mfaDeviceColumns+` FROM mfa_devices WHERE identity_id=? AND status=? ORDER BY created_at`, identityID, MFAStatusActive)
}

func (s *mfaDevicesStore) list(ctx context.Context, query string, args ...any) ([]MFADevice, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MFADevice
	for rows.Next() {
		d, err := scanMFADevice(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *mfaDevicesStore) Activate(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mfa_devices SET status=?, activated_at=?, pending_code='', code_issued_at=NULL
		WHERE id=?`, MFAStatusActive, at, id)
	return err
}

func (s *mfaDevicesStore) SetLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE mfa_devices SET last_used_at=? WHERE id=?`, at, id)
	return err
}

func (s *mfaDevicesStore) SetPendingCode(ctx context.Context, id string, code string, issuedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE mfa_devices SET pending_code=?, code_issued_at=? WHERE id=?`, code, issuedAt, id)
	return err
}

func (s *mfaDevicesStore) ClearPendingCode(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE mfa_devices SET pending_code='', code_issued_at=NULL WHERE id=?`, id)
	return err
}

func (s *mfaDevicesStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM mfa_devices WHERE id=?`, id)
	return err
}

type RecoveryCodesStore interface {
	Replace(ctx context.Context, identityID string, hashes []RecoveryCode) error
	ListUnused(ctx context.Context, identityID string) ([]RecoveryCode, error)
	MarkUsed(ctx context.Context, id int64, at time.Time) error
	CountUnused(ctx context.Context, identityID string) (int, error)
}

type recoveryCodesStore struct {
	db *sql.DB
}

func NewRecoveryCodesStore(db *sql.DB) RecoveryCodesStore {
	return &recoveryCodesStore{db: db}
}

func (s *recoveryCodesStore) Replace(ctx context.Context, identityID string, hashes []RecoveryCode) error {
	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM recovery_codes WHERE identity_id=?`, identityID); err != nil {
		return err
	}
	for _, h := range hashes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO recovery_codes(identity_id, code_hash, salt, created_at)
			VALUES(?,?,?,?)`, identityID, h.CodeHash, h.Salt, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *recoveryCodesStore) ListUnused(ctx context.Context, identityID string) ([]RecoveryCode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity_id, code_hash, salt, used_at, created_at
		FROM recovery_codes WHERE identity_id=? AND used_at IS NULL`, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RecoveryCode
	for rows.Next() {
		var rc RecoveryCode
		var usedAt sql.NullTime
		if err := rows.Scan(&rc.ID, &rc.IdentityID, &rc.CodeHash, &rc.Salt, &usedAt, &rc.CreatedAt); err != nil {
			return nil, err
		}
		if usedAt.Valid {
			rc.UsedAt = &usedAt.Time
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

func (s *recoveryCodesStore) MarkUsed(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE recovery_codes SET used_at=? WHERE id=? AND used_at IS NULL`, at, id)
	return err
}

func (s *recoveryCodesStore) CountUnused(ctx context.Context, identityID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM recovery_codes WHERE identity_id=? AND used_at IS NULL`, identityID).Scan(&n)
	return n, err
}
