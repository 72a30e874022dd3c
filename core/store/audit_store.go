package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

type AuditStore interface {
	Insert(ctx context.Context, entry *AuditEntry) error
	List(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type auditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) AuditStore {
	return &auditStore{db: db}
}

func (s *auditStore) Insert(ctx context.Context, entry *AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Detail == "" {
		entry.Detail = "{}"
	}
	if entry.RiskLevel == "" {
		entry.RiskLevel = "low"
	}
	roles, _ := json.Marshal(entry.ActorRoles)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log(id, correlation_id, identity_id, actor, action, ip, user_agent, actor_roles, resource_type, resource_id, risk_level, detail, created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		entry.ID, entry.CorrelationID, nullableString(entry.IdentityID),
		entry.Actor, entry.Action, entry.IP, entry.UserAgent,
		string(roles), entry.ResourceType, entry.ResourceID, entry.RiskLevel,
		entry.Detail, entry.CreatedAt)
	return err
}

func (s *auditStore) List(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	var where []string
	var args []any
	if f.IdentityID != "" {
		where = append(where, "identity_id=?")
		args = append(args, f.IdentityID)
	}
	if f.Action != "" {
		where = append(where, "action=?")
		args = append(args, f.Action)
	}
	if f.ResourceType != "" {
		where = append(where, "resource_type=?")
		args = append(args, f.ResourceType)
	}
	if f.ResourceID != "" {
		where = append(where, "resource_id=?")
		args = append(args, f.ResourceID)
	}
	if f.RiskLevel != "" {
		where = append(where, "risk_level=?")
		args = append(args, f.RiskLevel)
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since)
	}
	if !f.Until.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, f.Until)
	}
	q := `SELECT id, correlation_id, identity_id, actor, action, ip, user_agent, actor_roles, resource_type, resource_id, risk_level, detail, created_at FROM audit_log`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC"
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var identID sql.NullString
		var roles string
		if err := rows.Scan(&e.ID, &e.CorrelationID, &identID, &e.Actor, &e.Action, &e.IP, &e.UserAgent, &roles, &e.ResourceType, &e.ResourceID, &e.RiskLevel, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		if identID.Valid {
			e.IdentityID = &identID.String
		}
		_ = json.Unmarshal([]byte(roles), &e.ActorRoles)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *auditStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
