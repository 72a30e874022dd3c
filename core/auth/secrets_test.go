package auth

import "testing"

func TestSeedCipherRoundTrip(t *testing.T) {
	c, err := NewSeedCipher("test-pepper")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	secret, _ := GenerateTOTPSecret()
	sealed, err := c.SealSecret(secret)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if sealed == secret {
		t.Fatal("seed stored in the clear")
	}
	got, err := c.OpenSecret(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got != secret {
		t.Fatalf("round trip mismatch")
	}
	other, _ := NewSeedCipher("other-pepper")
	if _, err := other.OpenSecret(sealed); err == nil {
		t.Fatal("wrong pepper opened seed")
	}
}
