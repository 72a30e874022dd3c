package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"medrota-iam/core/identity"
	"medrota-iam/core/store"
	"medrota-iam/core/utils"
)

// MFAHandler manages the caller's second-factor devices and recovery codes.
type MFAHandler struct {
	auth   *identity.Authenticator
	logger *utils.Logger
}

func NewMFAHandler(auth *identity.Authenticator, logger *utils.Logger) *MFAHandler {
	return &MFAHandler{auth: auth, logger: logger}
}

type enrollRequest struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
	Phone string `json:"phone"`
}

type enrollResponse struct {
	Device          deviceView `json:"device"`
	Secret          string     `json:"secret,omitempty"`
	ProvisioningURI string     `json:"provisioning_uri,omitempty"`
	QRPNG           string     `json:"qr_png,omitempty"`
}

type deviceView struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Label       string     `json:"label"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

func toDeviceView(d *store.MFADevice) deviceView {
	return deviceView{
		ID:          d.ID,
		Kind:        d.Kind,
		Label:       d.Label,
		Status:      d.Status,
		CreatedAt:   d.CreatedAt,
		ActivatedAt: d.ActivatedAt,
		LastUsedAt:  d.LastUsedAt,
	}
}

func (h *MFAHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	p := PrincipalFrom(r.Context())

	var (
		res *identity.EnrollmentResult
		err error
	)
	switch req.Kind {
	case store.MFAKindTOTP:
		res, err = h.auth.MFA().EnrollTOTP(r.Context(), &p.Identity, req.Label)
	case store.MFAKindSMS:
		res, err = h.auth.MFA().EnrollSMS(r.Context(), &p.Identity, req.Phone)
	default:
		writeError(w, http.StatusBadRequest, "unknown_mfa_kind")
		return
	}
	if err != nil {
		WriteAuthError(w, err)
		return
	}

	out := enrollResponse{Device: toDeviceView(res.Device)}
	if req.Kind == store.MFAKindTOTP {
		out.Secret = res.Secret
		out.ProvisioningURI = res.ProvisioningURI
		out.QRPNG = base64.StdEncoding.EncodeToString(res.QRPNG)
	}
	writeJSON(w, http.StatusCreated, out)
}

type verifyDeviceRequest struct {
	Code string `json:"code"`
}

// VerifyDevice confirms possession of a device. A pending device becomes
// active on the first successful verification.
func (h *MFAHandler) VerifyDevice(w http.ResponseWriter, r *http.Request) {
	var req verifyDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	p := PrincipalFrom(r.Context())
	device, err := h.ownedDevice(w, r, p)
	if device == nil {
		if err != nil {
			WriteAuthError(w, err)
		}
		return
	}
	ok, err := h.auth.MFA().VerifyDevice(r.Context(), device, req.Code)
	if err != nil {
		WriteAuthError(w, err)
		return
	}
	if !ok {
		WriteAuthError(w, identity.ErrInvalidMFAToken)
		return
	}
	refreshed, err := h.auth.MFA().Device(r.Context(), device.ID)
	if err != nil {
		WriteAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeviceView(refreshed))
}

func (h *MFAHandler) Devices(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	devices, err := h.auth.MFA().Devices(r.Context(), p.Identity.ID)
	if err != nil {
		WriteAuthError(w, err)
		return
	}
	out := make([]deviceView, 0, len(devices))
	for i := range devices {
		out = append(out, toDeviceView(&devices[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": out})
}

func (h *MFAHandler) RemoveDevice(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	device, err := h.ownedDevice(w, r, p)
	if device == nil {
		if err != nil {
			WriteAuthError(w, err)
		}
		return
	}
	if err := h.auth.RemoveMFADevice(r.Context(), p, device); err != nil {
		WriteAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MFAHandler) RegenerateRecoveryCodes(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	codes, err := h.auth.MFA().RegenerateRecoveryCodes(r.Context(), p.Identity.ID)
	if err != nil {
		WriteAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recovery_codes": codes})
}

// ownedDevice loads the device from the id path param and hides devices
// belonging to other identities behind a 404.
func (h *MFAHandler) ownedDevice(w http.ResponseWriter, r *http.Request, p *identity.Principal) (*store.MFADevice, error) {
	id := chi.URLParam(r, "id")
	device, err := h.auth.MFA().Device(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if device == nil || device.IdentityID != p.Identity.ID {
		writeError(w, http.StatusNotFound, "not_found")
		return nil, nil
	}
	return device, nil
}
