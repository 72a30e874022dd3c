package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"medrota-iam/core/identity"
	"medrota-iam/core/rbac"
	"medrota-iam/core/utils"
)

// AccountHandler serves the authenticated identity's own profile,
// permissions, password and sessions.
type AccountHandler struct {
	auth   *identity.Authenticator
	logger *utils.Logger
}

func NewAccountHandler(auth *identity.Authenticator, logger *utils.Logger) *AccountHandler {
	return &AccountHandler{auth: auth, logger: logger}
}

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         p.Identity.ID,
		"email":      p.Identity.Email,
		"full_name":  p.Identity.FullName,
		"department": p.Identity.Department,
		"roles":      p.Roles,
	})
}

type permissionView struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Level       string `json:"level"`
	Sensitive   bool   `json:"sensitive"`
	RequiresMFA bool   `json:"requires_mfa"`
}

func (h *AccountHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	perms, err := h.auth.EffectivePermissions(r.Context(), p.Identity.ID, p.Roles)
	if err != nil {
		WriteAuthError(w, err)
		return
	}
	views := make([]permissionView, 0, len(perms))
	byCategory := map[string][]string{}
	for _, perm := range perms {
		info, ok := rbac.InfoFor(perm)
		if !ok {
			continue
		}
		views = append(views, permissionView{
			Code:        string(info.Code),
			Name:        info.Name,
			Category:    info.Category,
			Level:       string(info.Level),
			Sensitive:   info.Sensitive,
			RequiresMFA: info.RequiresMFA,
		})
		byCategory[info.Category] = append(byCategory[info.Category], string(info.Code))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"permissions": views,
		"by_category": byCategory,
	})
}

type changePasswordRequest struct {
	Current string `json:"current_password"`
	Next    string `json:"new_password"`
}

func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	p := PrincipalFrom(r.Context())
	if err := h.auth.ChangePassword(r.Context(), p, req.Current, req.Next); err != nil {
		WriteAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionView struct {
	ID         string    `json:"id"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"user_agent"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Current    bool      `json:"current"`
}

func (h *AccountHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	sessions, err := h.auth.Sessions().List(r.Context(), p.Identity.ID)
	if err != nil {
		WriteAuthError(w, err)
		return
	}
	out := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionView{
			ID:         s.ID,
			IP:         s.IP,
			UserAgent:  s.UserAgent,
			CreatedAt:  s.CreatedAt,
			LastSeenAt: s.LastSeenAt,
			ExpiresAt:  s.ExpiresAt,
			Current:    s.ID == p.SessionID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (h *AccountHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	id := chi.URLParam(r, "id")
	sessions, err := h.auth.Sessions().List(r.Context(), p.Identity.ID)
	if err != nil {
		WriteAuthError(w, err)
		return
	}
	owned := false
	for _, s := range sessions {
		if s.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err := h.auth.Sessions().Revoke(r.Context(), id, p.Identity.Email); err != nil {
		WriteAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
