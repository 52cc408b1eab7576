package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrInvalidKeyLength indicates the cipher key is not exactly 32 bytes
	ErrInvalidKeyLength = errors.New("cipher key must be exactly 32 bytes")
	// ErrCipherFormat indicates the ciphertext blob is not nonce:tag:ciphertext hex
	ErrCipherFormat = errors.New("invalid encrypted text format")
	// ErrDecryptionFailed indicates authentication failed (tampered data or wrong key)
	ErrDecryptionFailed = errors.New("decryption failed")
)

// SecretCipher encrypts and decrypts the stored Google refresh token with
// AES-256-GCM. The blob format is nonce:authTag:ciphertext, each part hex
// encoded. A fresh random nonce is drawn per encryption, so two encryptions
// of the same plaintext never produce the same blob.
type SecretCipher struct {
	aead cipher.AEAD
}

// NewSecretCipher creates a SecretCipher from a 32 byte key
func NewSecretCipher(key []byte) (*SecretCipher, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &SecretCipher{aead: aead}, nil
}

// Encrypt encrypts a plaintext and returns the nonce:authTag:ciphertext blob
func (c *SecretCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)

	// Seal appends the auth tag to the ciphertext; split it back out so the
	// blob carries the tag as its own segment
	tagStart := len(sealed) - c.aead.Overhead()
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]

	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	), nil
}

// Decrypt decrypts a nonce:authTag:ciphertext blob.
// Returns ErrCipherFormat for a malformed blob and ErrDecryptionFailed when
// the auth tag does not verify; it never returns silently-wrong plaintext.
func (c *SecretCipher) Decrypt(blob string) (string, error) {
	parts := strings.Split(blob, ":")
	if len(parts) != 3 {
		return "", ErrCipherFormat
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return "", ErrCipherFormat
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != c.aead.Overhead() {
		return "", ErrCipherFormat
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrCipherFormat
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}
