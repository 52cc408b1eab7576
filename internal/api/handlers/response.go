package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Taxonomy codes returned to clients. Underlying causes stay in the logs.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeTokenExpired    = "TOKEN_EXPIRED"
	CodeAuthError       = "AUTH_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeFetchError      = "FETCH_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)

// respondSuccess writes the shared response envelope with a payload
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success":   true,
		"data":      data,
		"error":     nil,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// respondError writes the shared response envelope with a taxonomy code.
// The message is safe for clients; provider and library errors never
// appear here.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"data":    nil,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
