package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
)

// Encryptor seals small secrets (MFA seeds) with AES-256-GCM. The stored
// blob is nonce||ciphertext.
type Encryptor struct {
	aead cipher.AEAD
}

func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Encryptor{aead: aead}, nil
}

// NewEncryptorFromPepper derives a stable key from the application pepper
// so encrypted seeds survive restarts without separate key management.
func NewEncryptorFromPepper(prefix, pepper string) (*Encryptor, error) {
	if pepper == "" {
		return nil, errors.New("pepper is empty")
	}
	sum := sha256.Sum256([]byte(prefix + ":" + pepper))
	return NewEncryptor(sum[:])
}

func (e *Encryptor) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return e.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (e *Encryptor) Open(blob []byte) ([]byte, error) {
	ns := e.aead.NonceSize()
	if len(blob) < ns {
		return nil, errors.New("ciphertext too short")
	}
	return e.aead.Open(nil, blob[:ns], blob[ns:], nil)
}
