package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/moshdev2213/MailMate/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var (
	// ErrExchangeFailed indicates the provider rejected the authorization code
	ErrExchangeFailed = errors.New("failed to exchange authorization code")
	// ErrRefreshFailed indicates the provider rejected the refresh request
	ErrRefreshFailed = errors.New("failed to refresh access token")
	// ErrProfileFetchFailed indicates the userinfo request failed
	ErrProfileFetchFailed = errors.New("failed to get user information")
)

const userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleProfile is the parsed userinfo response. Every field the provider
// may omit is optional; only ID is required by callers.
type GoogleProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// TokenResponse carries the provider tokens for a single operation.
// RefreshToken is set only when the provider issued a new one; plaintext
// Google tokens are never persisted.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	TokenType    string
}

// TokenService exchanges authorization codes and refreshes Google access
// tokens. The oauth2 config is built once at construction; persistence of
// rotated refresh tokens is the caller's responsibility.
type TokenService struct {
	oauth      *oauth2.Config
	cipher     *SecretCipher
	httpClient *http.Client
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg *config.Config, cipher *SecretCipher) *TokenService {
	return &TokenService{
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleCallbackURL,
			Scopes: []string{
				"https://mail.google.com/",
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		cipher:     cipher,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthCodeURL returns the Google consent screen URL.
// Offline access with forced consent so Google issues a refresh token.
func (s *TokenService) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode performs the one-time exchange of an authorization code for
// Google tokens. Fails with ErrExchangeFailed if the provider rejects the
// code or returns no access token.
func (s *TokenService) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if token.AccessToken == "" {
		return nil, ErrExchangeFailed
	}

	return &TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    expiresIn(token),
		TokenType:    tokenType(token),
	}, nil
}

// RefreshAccessToken decrypts the stored refresh token and asks Google for a
// new access token. RefreshToken in the response is set only when the
// provider rotated it; the caller must then persist the new value.
func (s *TokenService) RefreshAccessToken(ctx context.Context, encryptedRefreshToken string) (*TokenResponse, error) {
	refreshToken, err := s.cipher.Decrypt(encryptedRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	source := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if token.AccessToken == "" {
		return nil, ErrRefreshFailed
	}

	resp := &TokenResponse{
		AccessToken: token.AccessToken,
		ExpiresIn:   expiresIn(token),
		TokenType:   tokenType(token),
	}
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		resp.RefreshToken = token.RefreshToken
	}
	return resp, nil
}

// FetchProfile fetches the Google user profile for a fresh access token
func (s *TokenService) FetchProfile(ctx context.Context, accessToken string) (*GoogleProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrProfileFetchFailed, resp.StatusCode)
	}

	var profile GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("%w: missing subject id", ErrProfileFetchFailed)
	}

	return &profile, nil
}

func expiresIn(token *oauth2.Token) int64 {
	if token.Expiry.IsZero() {
		return 3600
	}
	return int64(time.Until(token.Expiry).Seconds())
}

func tokenType(token *oauth2.Token) string {
	if token.TokenType == "" {
		return "Bearer"
	}
	return token.TokenType
}
