package auth

import (
	"strings"
	"testing"
	"time"
)

func TestVerifyTOTPSkewWindow(t *testing.T) {
	secret, err := GenerateTOTPSecret()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	cfg := DefaultTOTPConfig()
	now := time.Unix(1_700_000_015, 0)

	code, err := ComputeTOTPCode(secret, now, cfg)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for _, offset := range []time.Duration{0, -30 * time.Second, 30 * time.Second} {
		ok, err := VerifyTOTP(secret, code, now.Add(offset), cfg)
		if err != nil || !ok {
			t.Fatalf("offset %v: ok=%v err=%v", offset, ok, err)
		}
	}
	ok, err := VerifyTOTP(secret, code, now.Add(2*30*time.Second+15*time.Second), cfg)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("code accepted outside skew window")
	}
}

func TestVerifyTOTPRejectsMalformed(t *testing.T) {
	secret, _ := GenerateTOTPSecret()
	cfg := DefaultTOTPConfig()
	now := time.Now()
	for _, bad := range []string{"", "12345", "1234567", "abcdef"} {
		ok, err := VerifyTOTP(secret, bad, now, cfg)
		if err != nil {
			t.Fatalf("verify %q: %v", bad, err)
		}
		if ok {
			t.Fatalf("accepted malformed code %q", bad)
		}
	}
	if _, err := VerifyTOTP("", "123456", now, cfg); err == nil {
		t.Fatal("empty secret accepted")
	}
}

func TestNormalizeTOTPCode(t *testing.T) {
	if got := NormalizeTOTPCode(" 123 456 "); got != "123456" {
		t.Fatalf("normalize: %q", got)
	}
}

func TestProvisioningURI(t *testing.T) {
	uri := ProvisioningURI("Medrota", "dr.lee@clinic.example.com", "JBSWY3DPEHPK3PXP", DefaultTOTPConfig())
	if !strings.HasPrefix(uri, "otpauth://totp/Medrota:") {
		t.Fatalf("uri prefix: %q", uri)
	}
	for _, want := range []string{"secret=JBSWY3DPEHPK3PXP", "issuer=Medrota", "digits=6", "period=30"} {
		if !strings.Contains(uri, want) {
			t.Fatalf("uri missing %q: %s", want, uri)
		}
	}
}
