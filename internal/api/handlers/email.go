package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/moshdev2213/MailMate/internal/api/middleware"
	"github.com/moshdev2213/MailMate/internal/config"
	"github.com/moshdev2213/MailMate/internal/database/models"
	"github.com/moshdev2213/MailMate/internal/services"
)

// EmailHandler handles email metadata requests
type EmailHandler struct {
	emailService *services.EmailService
	logService   *services.LogService
	cfg          *config.Config
}

// NewEmailHandler creates a new EmailHandler instance
func NewEmailHandler(emailService *services.EmailService, logService *services.LogService, cfg *config.Config) *EmailHandler {
	return &EmailHandler{
		emailService: emailService,
		logService:   logService,
		cfg:          cfg,
	}
}

// EmailResponse represents one stored email envelope in API responses
type EmailResponse struct {
	ID        uint    `json:"id"`
	GmailUID  string  `json:"gmailUid"`
	From      *string `json:"from"`
	Subject   *string `json:"subject"`
	MessageID *string `json:"messageId"`
	Date      *string `json:"date"`
}

func toEmailResponse(email *models.EmailMetadata) EmailResponse {
	resp := EmailResponse{
		ID:        email.ID,
		GmailUID:  email.GmailUID,
		From:      email.FromAddr,
		Subject:   email.Subject,
		MessageID: email.MessageID,
	}
	if email.Date != nil {
		date := email.Date.UTC().Format("2006-01-02T15:04:05Z07:00")
		resp.Date = &date
	}
	return resp
}

// GetEmails returns a page of the user's synchronized email metadata.
// With refresh=true it first syncs the most recent messages from Gmail.
// GET /api/email?limit=&offset=&refresh=&fetchLimit=
func (h *EmailHandler) GetEmails(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, CodeUnauthorized, "User not authenticated")
		return
	}

	limit, ok := h.parsePageLimit(c)
	if !ok {
		respondError(c, http.StatusBadRequest, CodeValidationError,
			"limit must be an integer between 1 and "+strconv.Itoa(h.cfg.MaxPageLimit))
		return
	}

	offset, ok := parseOffset(c)
	if !ok {
		respondError(c, http.StatusBadRequest, CodeValidationError, "offset must be a non-negative integer")
		return
	}

	if c.Query("refresh") == "true" {
		fetchLimit := h.parseFetchLimit(c)
		if _, err := h.emailService.SyncRecent(c.Request.Context(), userID, fetchLimit); err != nil {
			h.logService.LogError(userID, models.LogModuleEmail, "sync", "Email sync failed", map[string]interface{}{
				"error": err.Error(),
			})
			respondError(c, http.StatusInternalServerError, CodeFetchError, "Failed to fetch emails from Gmail")
			return
		}
	}

	result, err := h.emailService.ListEmails(userID, limit, offset)
	if err != nil {
		h.logService.LogError(userID, models.LogModuleEmail, "list", "Failed to list emails", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(c, http.StatusInternalServerError, CodeInternalError, "Failed to load emails")
		return
	}

	emails := make([]EmailResponse, 0, len(result.Emails))
	for i := range result.Emails {
		emails = append(emails, toEmailResponse(&result.Emails[i]))
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"emails": emails,
		"pagination": gin.H{
			"total":   result.Total,
			"limit":   result.Limit,
			"offset":  result.Offset,
			"hasMore": int64(result.Offset+result.Limit) < result.Total,
		},
	})
}

// parsePageLimit validates the limit query parameter against the configured
// pagination bounds. Absent means the default; out of range is rejected,
// not clamped.
func (h *EmailHandler) parsePageLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return h.cfg.DefaultPageLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > h.cfg.MaxPageLimit {
		return 0, false
	}
	return limit, true
}

func parseOffset(c *gin.Context) (int, bool) {
	raw := c.Query("offset")
	if raw == "" {
		return 0, true
	}
	offset, err := strconv.Atoi(raw)
	if err != nil || offset < 0 {
		return 0, false
	}
	return offset, true
}

// parseFetchLimit bounds the sync window; unlike the pagination limit an out
// of range value is clamped rather than rejected.
func (h *EmailHandler) parseFetchLimit(c *gin.Context) int {
	raw := c.Query("fetchLimit")
	if raw == "" {
		return h.cfg.DefaultFetchLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return h.cfg.DefaultFetchLimit
	}
	if limit > h.cfg.MaxFetchLimit {
		return h.cfg.MaxFetchLimit
	}
	return limit
}
