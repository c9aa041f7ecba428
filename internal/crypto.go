package internal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const (
	refreshTokenBytes = 64
	resetTokenBytes   = 20
	gcmNonceBytes     = 12
	gcmTagBytes       = 16
)

// ErrSealedPayloadInvalid is returned when an encrypted payload cannot be
// parsed or fails authentication.
var ErrSealedPayloadInvalid = errors.New("sealed payload invalid")

// NewRefreshToken returns a fresh opaque refresh token: 64 random bytes,
// hex encoded. The raw value is handed to the caller exactly once and only
// its fingerprint is ever persisted.
func NewRefreshToken() (string, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// NewResetToken returns a short opaque password-reset token.
func NewResetToken() (string, error) {
	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// Fingerprint computes the deterministic HMAC-SHA256 lookup key for a raw
// token. Keyed so a leaked database dump cannot be joined against captured
// raw tokens without the key.
func Fingerprint(key []byte, raw string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// SealSecret encrypts a secret for durable storage with AES-256-GCM.
// The payload format is nonce.tag.ciphertext, each part hex encoded.
func SealSecret(key []byte, plaintext string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcmNonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	split := len(sealed) - gcmTagBytes
	data, tag := sealed[:split], sealed[split:]

	return hex.EncodeToString(nonce) + "." + hex.EncodeToString(tag) + "." + hex.EncodeToString(data), nil
}

// OpenSecret reverses SealSecret.
func OpenSecret(key []byte, payload string) (string, error) {
	parts := strings.Split(payload, ".")
	if len(parts) != 3 {
		return "", ErrSealedPayloadInvalid
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != gcmNonceBytes {
		return "", ErrSealedPayloadInvalid
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != gcmTagBytes {
		return "", ErrSealedPayloadInvalid
	}
	data, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrSealedPayloadInvalid
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, nonce, append(data, tag...), nil)
	if err != nil {
		return "", ErrSealedPayloadInvalid
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
