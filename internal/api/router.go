package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/moshdev2213/MailMate/internal/api/handlers"
	"github.com/moshdev2213/MailMate/internal/api/middleware"
	"github.com/moshdev2213/MailMate/internal/config"
	"github.com/moshdev2213/MailMate/internal/services"
	"gorm.io/gorm"
)

// SetupRouter initializes and returns the Gin router with all routes configured
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, error) {
	router := gin.Default()

	router.Use(cors.New(corsConfig(cfg)))

	key, err := cfg.GetEncryptionKey()
	if err != nil {
		return nil, err
	}
	cipher, err := services.NewSecretCipher(key)
	if err != nil {
		return nil, err
	}

	// Initialize services
	logService := services.NewLogServiceWithLevel(db, cfg.LogLevel)
	tokenService := services.NewTokenService(cfg, cipher)
	userService := services.NewUserService(db, cipher, tokenService)
	emailService := services.NewEmailService(db, userService)

	tokenManager := middleware.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, 0, 0)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(tokenService, userService, tokenManager, logService)
	emailHandler := handlers.NewEmailHandler(emailService, logService, cfg)

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API routes
	api := router.Group("/api")
	{
		// OAuth flow and token refresh carry no session token
		auth := api.Group("/auth")
		{
			auth.GET("/google", authHandler.GoogleAuth)
			auth.GET("/google/callback", authHandler.GoogleCallback)
			auth.POST("/refresh", authHandler.RefreshToken)
		}

		// Protected routes (session access token required)
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(tokenManager))
		{
			protected.GET("/auth/me", authHandler.Me)
			protected.POST("/auth/logout", authHandler.Logout)
			protected.GET("/email", emailHandler.GetEmails)
		}
	}

	return router, nil
}

// corsConfig builds the CORS policy from the configured origin list.
// An empty list falls back to the frontend URL; "*" allows any origin but
// cannot be combined with credentials.
func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	raw := cfg.CORSOrigins
	if strings.TrimSpace(raw) == "" {
		raw = cfg.FrontendURL
	}

	origins := strings.Split(raw, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	if len(origins) == 1 && origins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = origins
	}

	return corsCfg
}
