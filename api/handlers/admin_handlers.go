package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"medrota-iam/core/identity"
	"medrota-iam/core/rbac"
	"medrota-iam/core/store"
	"medrota-iam/core/utils"
)

// AdminHandler exposes staff account administration and the audit trail.
// Every route checks the caller's effective permissions before acting.
type AdminHandler struct {
	auth       *identity.Authenticator
	identities store.IdentitiesStore
	audit      store.AuditStore
	logger     *utils.Logger
}

func NewAdminHandler(auth *identity.Authenticator, identities store.IdentitiesStore, audit store.AuditStore, logger *utils.Logger) *AdminHandler {
	return &AdminHandler{auth: auth, identities: identities, audit: audit, logger: logger}
}

func (h *AdminHandler) require(w http.ResponseWriter, r *http.Request, perm rbac.Permission) *identity.Principal {
	p := PrincipalFrom(r.Context())
	if err := h.auth.Require(r.Context(), p, perm); err != nil {
		WriteAuthError(w, err)
		return nil
	}
	return p
}

type identityAdminView struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	Department  string     `json:"department"`
	Roles       []string   `json:"roles"`
	Active      bool       `json:"active"`
	MFAEnforced bool       `json:"mfa_enforced"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toIdentityAdminView(ident *store.Identity, roles []string) identityAdminView {
	if roles == nil {
		roles = []string{}
	}
	return identityAdminView{
		ID:          ident.ID,
		Email:       ident.Email,
		FullName:    ident.FullName,
		Department:  ident.Department,
		Roles:       roles,
		Active:      ident.Active,
		MFAEnforced: ident.MFAEnforced,
		LockedUntil: ident.LockedUntil,
		LastLoginAt: ident.LastLoginAt,
		CreatedAt:   ident.CreatedAt,
	}
}

func (h *AdminHandler) ListIdentities(w http.ResponseWriter, r *http.Request) {
	if h.require(w, r, rbac.PermAccountsView) == nil {
		return
	}
	list, err := h.identities.List(r.Context())
	if err != nil {
		WriteAuthError(w, err)
		return
	}
	out := make([]identityAdminView, 0, len(list))
	for i := range list {
		out = append(out, toIdentityAdminView(&list[i].Identity, list[i].Roles))
	}
	writeJSON(w, http.StatusOK, map[string]any{"identities": out})
}

type createIdentityRequest struct {
	Email       string   `json:"email"`
	FullName    string   `json:"full_name"`
	Department  string   `json:"department"`
	Password    string   `json:"password"`
	Roles       []string `json:"roles"`
	MFAEnforced bool     `json:"mfa_enforced"`
}

func (h *AdminHandler) CreateIdentity(w http.ResponseWriter, r *http.Request) {
	if h.require(w, r, rbac.PermAccountsManage) == nil {
		return
	}
	var req createIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	ident, err := h.auth.CreateIdentity(r.Context(), identity.CreateIdentityInput{
		Email:       req.Email,
		FullName:    req.FullName,
		Department:  req.Department,
		Password:    req.Password,
		Roles:       req.Roles,
		MFAEnforced: req.MFAEnforced,
	})
	if err != nil {
		WriteAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIdentityAdminView(ident, req.Roles))
}

type setRolesRequest struct {
	Roles []string `json:"roles"`
}

func (h *AdminHandler) SetRoles(w http.ResponseWriter, r *http.Request) {
	p := h.require(w, r, rbac.PermRolesManage)
	if p == nil {
		return
	}
	var req setRolesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.auth.SetRoles(r.Context(), id, req.Roles, p.Identity.Email); err != nil {
		WriteAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type overrideEntry struct {
	Permission    string     `json:"permission"`
	Kind          string     `json:"kind"`
	Justification string     `json:"justification,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type setOverridesRequest struct {
	Overrides []overrideEntry `json:"overrides"`
}

func (h *AdminHandler) SetOverrides(w http.ResponseWriter, r *http.Request) {
	p := h.require(w, r, rbac.PermRolesManage)
	if p == nil {
		return
	}
	var req setOverridesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	entries := make([]identity.OverrideInput, 0, len(req.Overrides))
	for _, e := range req.Overrides {
		entries = append(entries, identity.OverrideInput{
			Permission:    e.Permission,
			Kind:          e.Kind,
			Justification: e.Justification,
			ExpiresAt:     e.ExpiresAt,
		})
	}
	id := chi.URLParam(r, "id")
	if err := h.auth.SetOverrides(r.Context(), id, entries, p.Identity.Email); err != nil {
		WriteAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (h *AdminHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	p := h.require(w, r, rbac.PermAccountsManage)
	if p == nil {
		return
	}
	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.auth.SetActive(r.Context(), id, req.Active, p.Identity.Email); err != nil {
		WriteAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	p := h.require(w, r, rbac.PermAccountsManage)
	if p == nil {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.auth.Unlock(r.Context(), id, p.Identity.Email); err != nil {
		WriteAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) RevokeSessions(w http.ResponseWriter, r *http.Request) {
	p := h.require(w, r, rbac.PermSessionsManage)
	if p == nil {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.auth.RevokeSessions(r.Context(), id, p.Identity.Email); err != nil {
		WriteAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type auditEntryView struct {
	ID            string          `json:"id"`
	CorrelationID string          `json:"correlation_id"`
	IdentityID    *string         `json:"identity_id"`
	Actor         string          `json:"actor"`
	Action        string          `json:"action"`
	IP            string          `json:"ip"`
	UserAgent     string          `json:"user_agent"`
	ActorRoles    []string        `json:"actor_roles"`
	ResourceType  string          `json:"resource_type"`
	ResourceID    string          `json:"resource_id"`
	RiskLevel     string          `json:"risk_level"`
	Detail        json.RawMessage `json:"detail"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (h *AdminHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	if h.require(w, r, rbac.PermAuditView) == nil {
		return
	}
	f := store.AuditFilter{
		IdentityID:   r.URL.Query().Get("identity_id"),
		Action:       r.URL.Query().Get("action"),
		ResourceType: r.URL.Query().Get("resource_type"),
		ResourceID:   r.URL.Query().Get("resource_id"),
		RiskLevel:    r.URL.Query().Get("risk_level"),
	}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_since")
			return
		}
		f.Since = t
	}
	if v := r.URL.Query().Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_until")
			return
		}
		f.Until = t
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_limit")
			return
		}
		f.Limit = n
	}
	entries, err := h.audit.List(r.Context(), f)
	if err != nil {
		WriteAuthError(w, err)
		return
	}
	out := make([]auditEntryView, 0, len(entries))
	for _, e := range entries {
		roles := e.ActorRoles
		if roles == nil {
			roles = []string{}
		}
		out = append(out, auditEntryView{
			ID:            e.ID,
			CorrelationID: e.CorrelationID,
			IdentityID:    e.IdentityID,
			Actor:         e.Actor,
			Action:        e.Action,
			IP:            e.IP,
			UserAgent:     e.UserAgent,
			ActorRoles:    roles,
			ResourceType:  e.ResourceType,
			ResourceID:    e.ResourceID,
			RiskLevel:     e.RiskLevel,
			Detail:        json.RawMessage(e.Detail),
			CreatedAt:     e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}
