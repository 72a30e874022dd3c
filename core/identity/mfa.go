package identity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"medrota-iam/core/auth"
	"medrota-iam/core/store"
	"medrota-iam/core/utils"
)

// SMSSender delivers one-time codes. The send runs outside the request
// path, so implementations own their timeout.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

type EnrollmentResult struct {
	Device *store.MFADevice
	// TOTP only; shown exactly once.
	Secret          string
	ProvisioningURI string
	QRPNG           []byte
}

// MFAEngine handles enrollment and verification across device kinds.
// A pending device becomes active on its first successful verification.
type MFAEngine struct {
	devices  store.MFADevicesStore
	recovery store.RecoveryCodesStore
	cipher   *auth.SeedCipher
	sender   SMSSender
	issuer   string
	pepper   string
	totpCfg  auth.TOTPConfig
	now      func() time.Time
}

func NewMFAEngine(devices store.MFADevicesStore, recovery store.RecoveryCodesStore, cipher *auth.SeedCipher, sender SMSSender, issuer, pepper string) *MFAEngine {
	return &MFAEngine{
		devices:  devices,
		recovery: recovery,
		cipher:   cipher,
		sender:   sender,
		issuer:   issuer,
		pepper:   pepper,
		totpCfg:  auth.DefaultTOTPConfig(),
		now:      time.Now,
	}
}

func (e *MFAEngine) EnrollTOTP(ctx context.Context, ident *store.Identity, label string) (*EnrollmentResult, error) {
	secret, err := auth.GenerateTOTPSecret()
	if err != nil {
		return nil, err
	}
	sealed, err := e.cipher.SealSecret(secret)
	if err != nil {
		return nil, err
	}
	device := &store.MFADevice{
		ID:           uuid.NewString(),
		IdentityID:   ident.ID,
		Kind:         store.MFAKindTOTP,
		Label:        label,
		SecretSealed: sealed,
	}
	if err := e.devices.Create(ctx, device); err != nil {
		return nil, err
	}
	qr, err := auth.ProvisioningQR(e.issuer, ident.Email, secret, e.totpCfg)
	if err != nil {
		return nil, err
	}
	return &EnrollmentResult{
		Device:          device,
		Secret:          secret,
		ProvisioningURI: auth.ProvisioningURI(e.issuer, ident.Email, secret, e.totpCfg),
		QRPNG:           qr,
	}, nil
}

func (e *MFAEngine) EnrollSMS(ctx context.Context, ident *store.Identity, phone string) (*EnrollmentResult, error) {
	if err := utils.ValidatePhone(phone); err != nil {
		return nil, &ValidationError{Field: "phone", Msg: err.Error()}
	}
	device := &store.MFADevice{
		ID:         uuid.NewString(),
		IdentityID: ident.ID,
		Kind:       store.MFAKindSMS,
		Label:      utils.MaskPhone(phone),
		Phone:      phone,
	}
	if err := e.devices.Create(ctx, device); err != nil {
		return nil, err
	}
	if err := e.Challenge(ctx, device); err != nil {
		return nil, err
	}
	return &EnrollmentResult{Device: device}, nil
}

// Challenge issues a fresh one-time code for an SMS device.
func (e *MFAEngine) Challenge(ctx context.Context, device *store.MFADevice) error {
	if device.Kind != store.MFAKindSMS {
		return nil
	}
	code, err := auth.GenerateSMSCode()
	if err != nil {
		return err
	}
	issued := e.now().UTC()
	if err := e.devices.SetPendingCode(ctx, device.ID, code, issued); err != nil {
		return err
	}
	if e.sender != nil {
		return e.sender.Send(ctx, device.Phone, "Your verification code is "+code)
	}
	return nil
}

// ChallengeAll issues codes on every active SMS device for a login.
func (e *MFAEngine) ChallengeAll(ctx context.Context, identityID string) error {
	devices, err := e.devices.ListActiveByIdentity(ctx, identityID)
	if err != nil {
		return err
	}
	for i := range devices {
		if devices[i].Kind != store.MFAKindSMS {
			continue
		}
		if err := e.Challenge(ctx, &devices[i]); err != nil {
			return err
		}
	}
	return nil
}

// VerifyDevice checks one code against one device. A pending device
// that verifies becomes active.
func (e *MFAEngine) VerifyDevice(ctx context.Context, device *store.MFADevice, code string) (bool, error) {
	now := e.now().UTC()
	var ok bool
	switch device.Kind {
	case store.MFAKindTOTP:
		secret, err := e.cipher.OpenSecret(device.SecretSealed)
		if err != nil {
			return false, err
		}
		ok, err = auth.VerifyTOTP(secret, code, now, e.totpCfg)
		if err != nil {
			return false, err
		}
	case store.MFAKindSMS:
		issuedAt := time.Time{}
		if device.CodeIssuedAt != nil {
			issuedAt = *device.CodeIssuedAt
		}
		ok = auth.VerifySMSCode(code, device.PendingCode, issuedAt, now)
		if ok {
			if err := e.devices.ClearPendingCode(ctx, device.ID); err != nil {
				return false, err
			}
		}
	default:
		return false, nil
	}
	if !ok {
		return false, nil
	}
	if device.Status == store.MFAStatusPending {
		if err := e.devices.Activate(ctx, device.ID, now); err != nil {
			return false, err
		}
		device.Status = store.MFAStatusActive
	}
	if err := e.devices.SetLastUsed(ctx, device.ID, now); err != nil {
		return false, err
	}
	return true, nil
}

// Verify tries the code against every active device, then against
// unused recovery codes.
func (e *MFAEngine) Verify(ctx context.Context, identityID, code string) (bool, error) {
	devices, err := e.devices.ListActiveByIdentity(ctx, identityID)
	if err != nil {
		return false, err
	}
	for i := range devices {
		ok, err := e.VerifyDevice(ctx, &devices[i], code)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return e.verifyRecoveryCode(ctx, identityID, code)
}

func (e *MFAEngine) verifyRecoveryCode(ctx context.Context, identityID, code string) (bool, error) {
	if _, err := auth.NormalizeRecoveryCode(code); err != nil {
		return false, nil
	}
	unused, err := e.recovery.ListUnused(ctx, identityID)
	if err != nil {
		return false, err
	}
	for _, rc := range unused {
		stored, err := auth.ParsePasswordHash(rc.CodeHash, rc.Salt)
		if err != nil {
			continue
		}
		ok, err := auth.VerifyRecoveryCode(code, e.pepper, stored)
		if err != nil {
			return false, err
		}
		if ok {
			if err := e.recovery.MarkUsed(ctx, rc.ID, e.now().UTC()); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// RegenerateRecoveryCodes replaces the identity's recovery set and
// returns the plaintext codes for one-time display.
func (e *MFAEngine) RegenerateRecoveryCodes(ctx context.Context, identityID string) ([]string, error) {
	codes, err := auth.GenerateRecoveryCodes()
	if err != nil {
		return nil, err
	}
	hashes := make([]store.RecoveryCode, 0, len(codes))
	for _, code := range codes {
		h, err := auth.HashRecoveryCode(code, e.pepper)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, store.RecoveryCode{CodeHash: h.Hash, Salt: h.Salt})
	}
	if err := e.recovery.Replace(ctx, identityID, hashes); err != nil {
		return nil, err
	}
	return codes, nil
}

// HasActive reports whether the identity must complete a second factor.
func (e *MFAEngine) HasActive(ctx context.Context, identityID string) (bool, error) {
	devices, err := e.devices.ListActiveByIdentity(ctx, identityID)
	if err != nil {
		return false, err
	}
	return len(devices) > 0, nil
}

// ActiveLabels lists the display labels of the identity's active
// devices. SMS labels carry the masked phone number from enrollment.
func (e *MFAEngine) ActiveLabels(ctx context.Context, identityID string) ([]string, error) {
	devices, err := e.devices.ListActiveByIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(devices))
	for _, d := range devices {
		labels = append(labels, d.Label)
	}
	return labels, nil
}

func (e *MFAEngine) Devices(ctx context.Context, identityID string) ([]store.MFADevice, error) {
	return e.devices.ListByIdentity(ctx, identityID)
}

func (e *MFAEngine) RemoveDevice(ctx context.Context, deviceID string) error {
	return e.devices.Delete(ctx, deviceID)
}

func (e *MFAEngine) Device(ctx context.Context, deviceID string) (*store.MFADevice, error) {
	return e.devices.Get(ctx, deviceID)
}
