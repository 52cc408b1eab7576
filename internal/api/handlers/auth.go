package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/moshdev2213/MailMate/internal/api/middleware"
	"github.com/moshdev2213/MailMate/internal/database/models"
	"github.com/moshdev2213/MailMate/internal/services"
)

// AuthHandler handles Google OAuth sign-in and session token requests
type AuthHandler struct {
	tokenService *services.TokenService
	userService  *services.UserService
	tokenManager *middleware.TokenManager
	logService   *services.LogService
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(tokenService *services.TokenService, userService *services.UserService, tokenManager *middleware.TokenManager, logService *services.LogService) *AuthHandler {
	return &AuthHandler{
		tokenService: tokenService,
		userService:  userService,
		tokenManager: tokenManager,
		logService:   logService,
	}
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func toUserResponse(user *models.User) UserResponse {
	resp := UserResponse{
		ID:    user.ID,
		Email: user.Email,
	}
	if user.Name != nil {
		resp.Name = *user.Name
	}
	return resp
}

// RefreshRequest represents the request to refresh a session access token
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// GoogleAuth redirects the client to the Google consent screen
// GET /api/auth/google
func (h *AuthHandler) GoogleAuth(c *gin.Context) {
	state, err := randomState()
	if err != nil {
		respondError(c, http.StatusInternalServerError, CodeInternalError, "Failed to initiate authentication")
		return
	}

	c.Redirect(http.StatusFound, h.tokenService.AuthCodeURL(state))
}

// GoogleCallback completes the OAuth flow: exchanges the authorization code,
// fetches the Google profile, finds or creates the user and issues the
// session token pair.
// GET /api/auth/google/callback
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		h.logService.LogWarn(0, models.LogModuleAuth, "oauth_callback", "OAuth provider returned error", map[string]interface{}{
			"error": errParam,
		})
		respondError(c, http.StatusUnauthorized, CodeAuthError, "Authentication was denied")
		return
	}

	code := c.Query("code")
	if code == "" {
		respondError(c, http.StatusBadRequest, CodeValidationError, "Authorization code is required")
		return
	}

	tokens, err := h.tokenService.ExchangeCode(c.Request.Context(), code)
	if err != nil {
		h.logService.LogError(0, models.LogModuleAuth, "oauth_callback", "Authorization code exchange failed", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(c, http.StatusUnauthorized, CodeAuthError, "Authentication failed")
		return
	}

	profile, err := h.tokenService.FetchProfile(c.Request.Context(), tokens.AccessToken)
	if err != nil {
		h.logService.LogError(0, models.LogModuleAuth, "oauth_callback", "Failed to fetch Google profile", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(c, http.StatusUnauthorized, CodeAuthError, "Authentication failed")
		return
	}

	user, err := h.userService.FindOrCreateUser(services.CreateUserInput{
		GoogleID:     profile.ID,
		Email:        profile.Email,
		Name:         profile.Name,
		RefreshToken: tokens.RefreshToken,
	})
	if err != nil {
		h.logService.LogError(0, models.LogModuleAuth, "oauth_callback", "Failed to find or create user", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(c, http.StatusInternalServerError, CodeInternalError, "Authentication failed")
		return
	}

	accessToken, err := h.tokenManager.IssueAccessToken(user.ID, user.Email)
	if err != nil {
		respondError(c, http.StatusInternalServerError, CodeInternalError, "Authentication failed")
		return
	}
	refreshToken, err := h.tokenManager.IssueRefreshToken(user.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, CodeInternalError, "Authentication failed")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"user":         toUserResponse(user),
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}

// RefreshToken exchanges a valid session refresh token for a new access token
// POST /api/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		respondError(c, http.StatusBadRequest, CodeValidationError, "Refresh token is required")
		return
	}

	claims, err := h.tokenManager.VerifyRefreshToken(req.RefreshToken)
	if err != nil {
		respondError(c, http.StatusUnauthorized, CodeUnauthorized, "Invalid refresh token")
		return
	}

	user, err := h.userService.FindByID(claims.UserID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondError(c, http.StatusUnauthorized, CodeUnauthorized, "Invalid refresh token")
			return
		}
		respondError(c, http.StatusInternalServerError, CodeInternalError, "Failed to refresh token")
		return
	}

	accessToken, err := h.tokenManager.IssueAccessToken(user.ID, user.Email)
	if err != nil {
		respondError(c, http.StatusInternalServerError, CodeInternalError, "Failed to refresh token")
		return
	}

	h.logService.LogTokenRefreshed(user.ID)

	respondSuccess(c, http.StatusOK, gin.H{
		"accessToken": accessToken,
	})
}

// Me returns the authenticated user's profile
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, CodeUnauthorized, "User not authenticated")
		return
	}

	user, err := h.userService.FindByID(userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, CodeNotFound, "User not found")
			return
		}
		respondError(c, http.StatusInternalServerError, CodeInternalError, "Failed to load user")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"user": toUserResponse(user)})
}

// Logout acknowledges a sign-out. Session tokens are stateless, so there is
// nothing to revoke server side; clients discard their copies.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if userID, ok := middleware.GetUserIDFromContext(c); ok {
		h.logService.LogInfo(userID, models.LogModuleAuth, "logout", "User logged out", nil)
	}
	respondSuccess(c, http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
