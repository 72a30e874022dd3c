package auth

import (
	"strings"
	"testing"
)

func TestGenerateRecoveryCodes(t *testing.T) {
	codes, err := GenerateRecoveryCodes()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(codes) != RecoveryCodeCount {
		t.Fatalf("count: %d", len(codes))
	}
	seen := map[string]bool{}
	for _, c := range codes {
		if len(c) != 11 || c[5] != '-' {
			t.Fatalf("bad format: %q", c)
		}
		if seen[c] {
			t.Fatalf("duplicate code %q", c)
		}
		seen[c] = true
	}
}

func TestRecoveryCodeVerify(t *testing.T) {
	codes, err := GenerateRecoveryCodes()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	code := codes[0]
	h, err := HashRecoveryCode(code, "pepper")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, err := VerifyRecoveryCode(strings.ToLower(code), "pepper", h)
	if err != nil || !ok {
		t.Fatalf("case-insensitive verify failed: ok=%v err=%v", ok, err)
	}
	ok, _ = VerifyRecoveryCode(codes[1], "pepper", h)
	if ok {
		t.Fatal("different code accepted")
	}
	ok, _ = VerifyRecoveryCode("not-a-code", "pepper", h)
	if ok {
		t.Fatal("malformed code accepted")
	}
}

func TestNormalizeRecoveryCode(t *testing.T) {
	got, err := NormalizeRecoveryCode(" abcde fghij ")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "ABCDE-FGHIJ" {
		t.Fatalf("got %q", got)
	}
	if _, err := NormalizeRecoveryCode("short"); err == nil {
		t.Fatal("short code accepted")
	}
}
