package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// MinSealKeyLength is the minimum accepted length of the sealing secret.
const MinSealKeyLength = 32

// ErrUnsealFailed is returned when a sealed value was tampered with, was sealed
// under another key, or was sealed for a different cookie name.
var ErrUnsealFailed = errors.New("unseal failed")

// Sealer encrypts cookie values with XChaCha20-Poly1305. The cookie name is
// bound as additional data so a value cannot be moved between cookies.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives an AEAD key from secret with HKDF-SHA256.
func NewSealer(secret []byte) (*Sealer, error) {
	if len(secret) < MinSealKeyLength {
		return nil, fmt.Errorf("seal key must be at least %d bytes, got %d", MinSealKeyLength, len(secret))
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("songify cookie seal v1")), key); err != nil {
		return nil, fmt.Errorf("deriving seal key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating aead: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts value for the cookie called name.
func (s *Sealer) Seal(name, value string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, []byte(value), []byte(name))
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (s *Sealer) Open(name, sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrUnsealFailed
	}
	if len(raw) < s.aead.NonceSize()+s.aead.Overhead() {
		return "", ErrUnsealFailed
	}
	nonce, ct := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ct, []byte(name))
	if err != nil {
		return "", ErrUnsealFailed
	}
	return string(plain), nil
}
