package auth

import (
	"encoding/base64"

	"medrota-iam/core/utils"
)

const seedKeyPrefix = "mfa-seed"

// SeedCipher protects TOTP seeds at rest. Enrollment stores the sealed
// form; verification opens it just long enough to compute codes.
type SeedCipher struct {
	enc *utils.Encryptor
}

func NewSeedCipher(pepper string) (*SeedCipher, error) {
	enc, err := utils.NewEncryptorFromPepper(seedKeyPrefix, pepper)
	if err != nil {
		return nil, err
	}
	return &SeedCipher{enc: enc}, nil
}

func (c *SeedCipher) SealSecret(secretBase32 string) (string, error) {
	blob, err := c.enc.Seal([]byte(secretBase32))
	if err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(blob), nil
}

func (c *SeedCipher) OpenSecret(sealed string) (string, error) {
	blob, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	plain, err := c.enc.Open(blob)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
