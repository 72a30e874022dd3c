package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"medrota-iam/core/identity"
	"medrota-iam/core/utils"
)

type AuthHandler struct {
	auth   *identity.Authenticator
	logger *utils.Logger
}

func NewAuthHandler(auth *identity.Authenticator, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFACode  string `json:"mfa_code,omitempty"`
}

type sessionResponse struct {
	Token      string       `json:"token"`
	SessionKey string       `json:"session_key,omitempty"`
	ExpiresAt  time.Time    `json:"expires_at"`
	Identity   identityView `json:"identity"`
}

type identityView struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Roles    []string `json:"roles"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	res, err := h.auth.Login(r.Context(), identity.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		MFACode:   req.MFACode,
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		WriteAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:      res.Token,
		SessionKey: res.SessionKey,
		ExpiresAt:  res.Session.ExpiresAt,
		Identity: identityView{
			ID:       res.Identity.ID,
			Email:    res.Identity.Email,
			FullName: res.Identity.FullName,
			Roles:    res.Roles,
		},
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := BearerToken(r)
	res, err := h.auth.Refresh(r.Context(), token, ClientIP(r), r.UserAgent())
	if err != nil {
		WriteAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:     res.Token,
		ExpiresAt: res.Session.ExpiresAt,
		Identity: identityView{
			ID:       res.Identity.ID,
			Email:    res.Identity.Email,
			FullName: res.Identity.FullName,
			Roles:    res.Roles,
		},
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), BearerToken(r), ClientIP(r), r.UserAgent()); err != nil {
		WriteAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
