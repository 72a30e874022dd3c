package identity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"medrota-iam/core/store"
	"medrota-iam/core/utils"
)

const tokenBytes = 32

// SessionManager issues two opaque credentials: a session key that
// names one concurrent session, and an access token of which each
// identity holds exactly one, replaced on every issue. Only SHA-256
// digests are stored; plaintexts exist once, in the issue response.
type SessionManager struct {
	sessions store.SessionsStore
	tokens   store.AccessTokensStore
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionManager(sessions store.SessionsStore, tokens store.AccessTokensStore, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SessionManager{sessions: sessions, tokens: tokens, ttl: ttl, now: time.Now}
}

func (m *SessionManager) Issue(ctx context.Context, identityID, ip, userAgent string) (*store.Session, string, error) {
	key, err := utils.RandToken(tokenBytes)
	if err != nil {
		return nil, "", err
	}
	now := m.now().UTC()
	sess := &store.Session{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		KeyHash:    utils.Sha256Hex([]byte(key)),
		IP:         ip,
		UserAgent:  userAgent,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(m.ttl),
	}
	if err := m.sessions.Save(ctx, sess); err != nil {
		return nil, "", err
	}
	return sess, key, nil
}

// IssueToken mints the identity's access token bound to sessionID. Any
// previous token of the identity stops working when the row is
// replaced.
func (m *SessionManager) IssueToken(ctx context.Context, identityID, sessionID string) (string, error) {
	token, err := utils.RandToken(tokenBytes)
	if err != nil {
		return "", err
	}
	now := m.now().UTC()
	rec := &store.AccessToken{
		IdentityID: identityID,
		SessionID:  sessionID,
		TokenHash:  utils.Sha256Hex([]byte(token)),
		IssuedAt:   now,
		ExpiresAt:  now.Add(m.ttl),
	}
	if err := m.tokens.Replace(ctx, rec); err != nil {
		return "", err
	}
	return token, nil
}

// ResolveKey maps a presented session key to its live session.
func (m *SessionManager) ResolveKey(ctx context.Context, key string) (*store.Session, error) {
	if key == "" {
		return nil, ErrSessionExpired
	}
	sess, err := m.sessions.GetByKeyHash(ctx, utils.Sha256Hex([]byte(key)))
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionExpired
	}
	return sess, nil
}

// ResolveToken maps an access token to the session it is bound to. The
// token dies with its session, with its own expiry, or when a newer
// token replaces it.
func (m *SessionManager) ResolveToken(ctx context.Context, token string) (*store.Session, error) {
	if token == "" {
		return nil, ErrSessionExpired
	}
	rec, err := m.tokens.GetByHash(ctx, utils.Sha256Hex([]byte(token)))
	if err != nil {
		return nil, err
	}
	if rec == nil || m.now().After(rec.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	sess, err := m.sessions.Get(ctx, rec.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionExpired
	}
	return sess, nil
}

func (m *SessionManager) DeleteToken(ctx context.Context, identityID string) error {
	return m.tokens.DeleteByIdentity(ctx, identityID)
}

func (m *SessionManager) Revoke(ctx context.Context, sessionID, by string) error {
	return m.sessions.Revoke(ctx, sessionID, by)
}

func (m *SessionManager) RevokeAll(ctx context.Context, identityID, by string) error {
	if err := m.tokens.DeleteByIdentity(ctx, identityID); err != nil {
		return err
	}
	return m.sessions.RevokeAllForIdentity(ctx, identityID, by)
}

func (m *SessionManager) RevokeOthers(ctx context.Context, identityID, keepID, by string) error {
	return m.sessions.RevokeAllForIdentityExcept(ctx, identityID, keepID, by)
}

func (m *SessionManager) List(ctx context.Context, identityID string) ([]store.Session, error) {
	return m.sessions.ListByIdentity(ctx, identityID)
}

func (m *SessionManager) Touch(ctx context.Context, sessionID string) error {
	return m.sessions.UpdateActivity(ctx, sessionID, m.now().UTC())
}
