package utils

import (
	"bytes"
	"testing"
)

func TestEncryptorRoundTrip(t *testing.T) {
	enc, err := NewEncryptorFromPepper("mfa-seed", "test-pepper-value")
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}
	secret := []byte("JBSWY3DPEHPK3PXP")
	blob, err := enc.Seal(secret)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(blob, secret) {
		t.Fatal("ciphertext leaks plaintext")
	}
	got, err := enc.Open(blob)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, secret) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestEncryptorTamper(t *testing.T) {
	enc, err := NewEncryptorFromPepper("mfa-seed", "test-pepper-value")
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}
	blob, err := enc.Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	blob[len(blob)-1] ^= 0x01
	if _, err := enc.Open(blob); err == nil {
		t.Fatal("tampered blob accepted")
	}
}

func TestEncryptorKeyStability(t *testing.T) {
	a, _ := NewEncryptorFromPepper("mfa-seed", "pepper-a")
	b, _ := NewEncryptorFromPepper("mfa-seed", "pepper-a")
	blob, err := a.Seal([]byte("stable"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := b.Open(blob); err != nil {
		t.Fatalf("same pepper must open: %v", err)
	}
	c, _ := NewEncryptorFromPepper("other-prefix", "pepper-a")
	if _, err := c.Open(blob); err == nil {
		t.Fatal("different prefix must not open")
	}
}
