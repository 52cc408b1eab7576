package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/moshdev2213/MailMate/internal/database/models"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound indicates the user was not found
	ErrUserNotFound = errors.New("user not found")
	// ErrNoRefreshToken indicates the user has no stored Google refresh token
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrAccessTokenUnavailable indicates a Google access token could not be obtained
	ErrAccessTokenUnavailable = errors.New("access token unavailable")
)

// UserService is the user directory: it finds or creates local user records
// keyed by the Google subject id and owns the encrypted refresh token at rest.
type UserService struct {
	db           *gorm.DB
	cipher       *SecretCipher
	tokenService *TokenService
	logService   *LogService
}

// NewUserService creates a new UserService instance
func NewUserService(db *gorm.DB, cipher *SecretCipher, tokenService *TokenService) *UserService {
	return &UserService{
		db:           db,
		cipher:       cipher,
		tokenService: tokenService,
		logService:   NewLogService(db),
	}
}

// CreateUserInput represents the identity data from a completed OAuth callback
type CreateUserInput struct {
	GoogleID     string
	Email        string
	Name         string
	RefreshToken string // plaintext from the provider; empty when not granted
}

// FindOrCreateUser looks up a user by Google subject id, creating the row on
// first sign-in. Google only returns a refresh token when granting or
// re-granting consent, so a non-empty RefreshToken in the input always
// replaces the stored encrypted value; an empty one leaves it untouched.
func (s *UserService) FindOrCreateUser(input CreateUserInput) (*models.User, error) {
	var user models.User
	err := s.db.Where("google_id = ?", input.GoogleID).First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			GoogleID: input.GoogleID,
			Email:    input.Email,
		}
		if input.Name != "" {
			name := input.Name
			user.Name = &name
		}
		if input.RefreshToken != "" {
			encrypted, err := s.cipher.Encrypt(input.RefreshToken)
			if err != nil {
				return nil, err
			}
			user.RefreshToken = &encrypted
		}

		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}

		s.logService.LogOAuthSignIn(user.ID, user.Email, true)
		return &user, nil
	}
	if err != nil {
		return nil, err
	}

	if input.RefreshToken != "" {
		encrypted, err := s.cipher.Encrypt(input.RefreshToken)
		if err != nil {
			return nil, err
		}
		user.RefreshToken = &encrypted
		if err := s.db.Save(&user).Error; err != nil {
			return nil, err
		}
	}

	s.logService.LogOAuthSignIn(user.ID, user.Email, false)
	return &user, nil
}

// FindByID retrieves a user by ID
func (s *UserService) FindByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetAccessToken obtains a fresh Google access token for a user by
// refreshing with the stored encrypted refresh token. A rotated refresh
// token is re-encrypted and persisted before returning, so a stale token
// never remains after rotation.
func (s *UserService) GetAccessToken(ctx context.Context, userID uint) (string, error) {
	user, err := s.FindByID(userID)
	if err != nil {
		return "", err
	}

	if user.RefreshToken == nil || *user.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	resp, err := s.tokenService.RefreshAccessToken(ctx, *user.RefreshToken)
	if err != nil {
		s.logService.LogError(userID, models.LogModuleAuth, "token_refresh", "Google token refresh failed", map[string]interface{}{
			"error": err.Error(),
		})
		return "", fmt.Errorf("%w: %v", ErrAccessTokenUnavailable, err)
	}

	if resp.RefreshToken != "" {
		encrypted, err := s.cipher.Encrypt(resp.RefreshToken)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrAccessTokenUnavailable, err)
		}
		if err := s.db.Model(&models.User{}).Where("id = ?", userID).Update("refresh_token", encrypted).Error; err != nil {
			return "", fmt.Errorf("%w: %v", ErrAccessTokenUnavailable, err)
		}
	}

	return resp.AccessToken, nil
}
