package middleware

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// For any user identity, an issued access token verifies back to the same
// claims, and tokens of one kind never verify as the other.
func TestProperty_SessionTokenRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	tm := NewTokenManager("access-secret-for-tests", "refresh-secret-for-tests", 0, 0)

	userIDGen := gen.UIntRange(1, 1_000_000)
	emailGen := gen.SliceOfN(8, gen.AlphaLowerChar()).Map(func(chars []rune) string {
		return string(chars) + "@gmail.com"
	})

	properties.Property("access_token_roundtrip", prop.ForAll(
		func(userID uint, email string) bool {
			token, err := tm.IssueAccessToken(userID, email)
			if err != nil {
				return false
			}
			claims, err := tm.VerifyAccessToken(token)
			if err != nil {
				return false
			}
			return claims.UserID == userID && claims.Email == email
		},
		userIDGen,
		emailGen,
	))

	properties.Property("refresh_token_roundtrip", prop.ForAll(
		func(userID uint) bool {
			token, err := tm.IssueRefreshToken(userID)
			if err != nil {
				return false
			}
			claims, err := tm.VerifyRefreshToken(token)
			if err != nil {
				return false
			}
			return claims.UserID == userID
		},
		userIDGen,
	))

	// The type discriminator keeps the two kinds from standing in for each other
	properties.Property("token_kinds_are_not_interchangeable", prop.ForAll(
		func(userID uint, email string) bool {
			access, err := tm.IssueAccessToken(userID, email)
			if err != nil {
				return false
			}
			refresh, err := tm.IssueRefreshToken(userID)
			if err != nil {
				return false
			}

			if _, err := tm.VerifyRefreshToken(access); !errors.Is(err, ErrInvalidToken) {
				return false
			}
			if _, err := tm.VerifyAccessToken(refresh); !errors.Is(err, ErrInvalidToken) {
				return false
			}
			return true
		},
		userIDGen,
		emailGen,
	))

	properties.TestingRun(t)
}

// Tokens signed with one secret never verify under another
func TestProperty_SessionTokenWrongSecret(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	tm := NewTokenManager("access-secret-a", "refresh-secret-a", 0, 0)
	other := NewTokenManager("access-secret-b", "refresh-secret-b", 0, 0)

	userIDGen := gen.UIntRange(1, 1_000_000)

	properties.Property("foreign_signature_is_invalid", prop.ForAll(
		func(userID uint) bool {
			token, err := tm.IssueAccessToken(userID, "user@gmail.com")
			if err != nil {
				return false
			}
			_, err = other.VerifyAccessToken(token)
			return errors.Is(err, ErrInvalidToken)
		},
		userIDGen,
	))

	properties.TestingRun(t)
}

func TestTokenManager_ExpiredToken(t *testing.T) {
	// Negative lifetimes produce already-expired tokens
	tm := NewTokenManager("access-secret", "refresh-secret", -time.Minute, -time.Minute)

	access, err := tm.IssueAccessToken(42, "user@gmail.com")
	if err != nil {
		t.Fatalf("failed to issue access token: %v", err)
	}
	if _, err := tm.VerifyAccessToken(access); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired for access token, got %v", err)
	}

	refresh, err := tm.IssueRefreshToken(42)
	if err != nil {
		t.Fatalf("failed to issue refresh token: %v", err)
	}
	if _, err := tm.VerifyRefreshToken(refresh); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired for refresh token, got %v", err)
	}
}

func TestTokenManager_GarbageToken(t *testing.T) {
	tm := NewTokenManager("access-secret", "refresh-secret", 0, 0)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := tm.VerifyAccessToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}
