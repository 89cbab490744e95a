package token

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/jrsteele09/recovery-portal/internal/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Cipher seals token payloads at rest.
type Cipher interface {
	Seal(plaintext []byte) (string, error)
	Open(sealed string) ([]byte, error)
}

// AEADCipher is XChaCha20-Poly1305 keyed by HKDF-SHA256 over
// (secret, salt=origin, info=fingerprint). The same inputs always yield the same
// key, so a restarted process can still read what an earlier one stored.
type AEADCipher struct {
	aead cipher.AEAD
	aad  []byte
}

var _ Cipher = (*AEADCipher)(nil)

func NewCipher(secret []byte, origin, fingerprint string) (*AEADCipher, error) {
	info := "token-store:" + fingerprint
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, []byte(origin), []byte(info)), key); err != nil {
		return nil, fmt.Errorf("[token NewCipher] derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("[token NewCipher] %w", err)
	}
	return &AEADCipher{aead: aead, aad: []byte(origin)}, nil
}

func (c *AEADCipher) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("[token Seal] nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, c.aad)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *AEADCipher) Open(sealed string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, errors.Join(errors.ErrDecryption, err)
	}
	if len(raw) < c.aead.NonceSize() {
		return nil, errors.Wrapf(errors.ErrDecryption, "[token Open] payload too short")
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, c.aad)
	if err != nil {
		return nil, errors.Join(errors.ErrDecryption, err)
	}
	return plaintext, nil
}
