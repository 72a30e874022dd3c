package auth

import (
	"fmt"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

// ProvisioningURI builds the otpauth URL an authenticator app enrolls from.
func ProvisioningURI(issuer, account, secretBase32 string, cfg TOTPConfig) string {
	label := url.PathEscape(issuer) + ":" + url.PathEscape(account)
	q := url.Values{}
	q.Set("secret", secretBase32)
	q.Set("issuer", issuer)
	q.Set("algorithm", "SHA1")
	q.Set("digits", fmt.Sprintf("%d", cfg.Digits))
	q.Set("period", fmt.Sprintf("%d", cfg.PeriodSec))
	return "otpauth://totp/" + label + "?" + q.Encode()
}

// ProvisioningQR renders the otpauth URL as a PNG for enrollment screens.
func ProvisioningQR(issuer, account, secretBase32 string, cfg TOTPConfig) ([]byte, error) {
	uri := ProvisioningURI(issuer, account, secretBase32, cfg)
	return qrcode.Encode(uri, qrcode.Medium, 256)
}
