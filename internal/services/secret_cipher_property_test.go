package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func newTestCipher(t *testing.T) *SecretCipher {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	c, err := NewSecretCipher(key)
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}
	return c
}

// For any plaintext, decrypt(encrypt(p)) == p and the stored blob never
// contains the plaintext.
func TestProperty_CipherRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	cipher := newTestCipher(t)

	tokenGen := gen.SliceOfN(40, gen.AlphaChar()).Map(func(chars []rune) string {
		return "1//" + string(chars)
	})

	properties.Property("roundtrip_recovers_plaintext", prop.ForAll(
		func(plaintext string) bool {
			blob, err := cipher.Encrypt(plaintext)
			if err != nil {
				return false
			}
			decrypted, err := cipher.Decrypt(blob)
			if err != nil {
				return false
			}
			return decrypted == plaintext
		},
		tokenGen,
	))

	properties.Property("blob_is_three_hex_parts_without_plaintext", prop.ForAll(
		func(plaintext string) bool {
			blob, err := cipher.Encrypt(plaintext)
			if err != nil {
				return false
			}
			if strings.Contains(blob, plaintext) {
				return false
			}
			parts := strings.Split(blob, ":")
			if len(parts) != 3 {
				return false
			}
			for _, part := range parts {
				if _, err := hex.DecodeString(part); err != nil {
					return false
				}
			}
			return true
		},
		tokenGen,
	))

	// Fresh nonce per call: two encryptions of the same plaintext differ
	properties.Property("encryption_is_non_deterministic", prop.ForAll(
		func(plaintext string) bool {
			first, err := cipher.Encrypt(plaintext)
			if err != nil {
				return false
			}
			second, err := cipher.Encrypt(plaintext)
			if err != nil {
				return false
			}
			return first != second
		},
		tokenGen,
	))

	properties.TestingRun(t)
}

// Tampering with any segment of the blob must fail loudly, never return
// silently-wrong plaintext.
func TestProperty_CipherRejectsTampering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	cipher := newTestCipher(t)
	other := newTestCipher(t)

	tokenGen := gen.SliceOfN(32, gen.AlphaChar()).Map(func(chars []rune) string {
		return string(chars)
	})

	properties.Property("flipped_ciphertext_fails_authentication", prop.ForAll(
		func(plaintext string) bool {
			blob, err := cipher.Encrypt(plaintext)
			if err != nil {
				return false
			}

			parts := strings.Split(blob, ":")
			raw, _ := hex.DecodeString(parts[2])
			raw[0] ^= 0xff
			parts[2] = hex.EncodeToString(raw)

			_, err = cipher.Decrypt(strings.Join(parts, ":"))
			return errors.Is(err, ErrDecryptionFailed)
		},
		tokenGen,
	))

	properties.Property("wrong_key_fails_authentication", prop.ForAll(
		func(plaintext string) bool {
			blob, err := cipher.Encrypt(plaintext)
			if err != nil {
				return false
			}
			_, err = other.Decrypt(blob)
			return errors.Is(err, ErrDecryptionFailed)
		},
		tokenGen,
	))

	properties.TestingRun(t)
}

func TestSecretCipher_KeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 24, 31, 33, 64} {
		if _, err := NewSecretCipher(make([]byte, n)); !errors.Is(err, ErrInvalidKeyLength) {
			t.Errorf("key length %d: expected ErrInvalidKeyLength, got %v", n, err)
		}
	}
	if _, err := NewSecretCipher(make([]byte, 32)); err != nil {
		t.Errorf("32 byte key: unexpected error %v", err)
	}
}

func TestSecretCipher_MalformedBlob(t *testing.T) {
	cipher := newTestCipher(t)

	cases := []struct {
		name string
		blob string
	}{
		{"empty", ""},
		{"no separators", "deadbeef"},
		{"two parts", "deadbeef:deadbeef"},
		{"four parts", "aa:bb:cc:dd"},
		{"non-hex nonce", "zz:" + strings.Repeat("ab", 16) + ":abcd"},
		{"short nonce", "abcd:" + strings.Repeat("ab", 16) + ":abcd"},
		{"short tag", strings.Repeat("ab", 12) + ":abcd:abcd"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := cipher.Decrypt(tc.blob); !errors.Is(err, ErrCipherFormat) {
				t.Errorf("expected ErrCipherFormat, got %v", err)
			}
		})
	}
}
