package handlers

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/moshdev2213/MailMate/internal/api/middleware"
	"github.com/moshdev2213/MailMate/internal/config"
	"github.com/moshdev2213/MailMate/internal/database"
	"github.com/moshdev2213/MailMate/internal/database/models"
	"github.com/moshdev2213/MailMate/internal/services"
	"gorm.io/gorm"
)

type testEnv struct {
	router       *gin.Engine
	db           *gorm.DB
	tokenManager *middleware.TokenManager
	user         *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to initialize test database: %v", err)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	cipher, err := services.NewSecretCipher(key)
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}

	cfg := &config.Config{
		DefaultFetchLimit: config.DefaultFetchLimitValue,
		MaxFetchLimit:     config.DefaultMaxFetchLimit,
		DefaultPageLimit:  config.DefaultPageLimitValue,
		MaxPageLimit:      config.DefaultMaxPageLimit,
	}

	logService := services.NewLogService(db)
	userService := services.NewUserService(db, cipher, nil)
	emailService := services.NewEmailService(db, userService)
	tokenManager := middleware.NewTokenManager("access-secret", "refresh-secret", 0, 0)

	user, err := userService.FindOrCreateUser(services.CreateUserInput{
		GoogleID: "109876543210987654321",
		Email:    "user@gmail.com",
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	emailHandler := NewEmailHandler(emailService, logService, cfg)

	router := gin.New()
	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	protected.GET("/email", emailHandler.GetEmails)

	return &testEnv{
		router:       router,
		db:           db,
		tokenManager: tokenManager,
		user:         user,
	}
}

func (e *testEnv) seedEmails(t *testing.T, n int) {
	t.Helper()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		subject := fmt.Sprintf("Message %d", i)
		date := base.Add(time.Duration(i) * time.Hour)
		record := models.EmailMetadata{
			UserID:   e.user.ID,
			GmailUID: fmt.Sprintf("%d", 2000+i),
			Subject:  &subject,
			Date:     &date,
		}
		if err := e.db.Create(&record).Error; err != nil {
			t.Fatalf("failed to seed email: %v", err)
		}
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Timestamp string `json:"timestamp"`
}

func (e *testEnv) get(t *testing.T, path, token string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to parse response envelope: %v (body %q)", err, rec.Body.String())
	}
	return rec.Code, env
}

func (e *testEnv) accessToken(t *testing.T) string {
	t.Helper()
	token, err := e.tokenManager.IssueAccessToken(e.user.ID, e.user.Email)
	if err != nil {
		t.Fatalf("failed to issue access token: %v", err)
	}
	return token
}

func TestGetEmails_RequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/api/email", "")
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if body.Error == nil || body.Error.Code != "UNAUTHORIZED" {
		t.Errorf("expected UNAUTHORIZED code, got %+v", body.Error)
	}
}

func TestGetEmails_ExpiredTokenIsDistinguishable(t *testing.T) {
	env := newTestEnv(t)

	expired := middleware.NewTokenManager("access-secret", "refresh-secret", -time.Minute, -time.Minute)
	token, err := expired.IssueAccessToken(env.user.ID, env.user.Email)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	status, body := env.get(t, "/api/email", token)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if body.Error == nil || body.Error.Code != "TOKEN_EXPIRED" {
		t.Errorf("expected TOKEN_EXPIRED code, got %+v", body.Error)
	}
}

func TestGetEmails_ValidatesPagination(t *testing.T) {
	env := newTestEnv(t)
	token := env.accessToken(t)

	cases := []struct {
		name  string
		query string
	}{
		{"limit above maximum", "?limit=500"},
		{"limit zero", "?limit=0"},
		{"limit negative", "?limit=-5"},
		{"limit not a number", "?limit=abc"},
		{"offset negative", "?offset=-1"},
		{"offset not a number", "?offset=xyz"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := env.get(t, "/api/email"+tc.query, token)
			if status != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", status)
			}
			if body.Error == nil || body.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("expected VALIDATION_ERROR code, got %+v", body.Error)
			}
		})
	}
}

func TestGetEmails_ReturnsPaginatedPage(t *testing.T) {
	env := newTestEnv(t)
	env.seedEmails(t, 35)
	token := env.accessToken(t)

	status, body := env.get(t, "/api/email?limit=10&offset=0", token)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if !body.Success {
		t.Fatalf("expected success envelope, got %+v", body.Error)
	}

	var data struct {
		Emails     []EmailResponse `json:"emails"`
		Pagination struct {
			Total   int64 `json:"total"`
			Limit   int   `json:"limit"`
			Offset  int   `json:"offset"`
			HasMore bool  `json:"hasMore"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(body.Data, &data); err != nil {
		t.Fatalf("failed to parse data: %v", err)
	}

	if len(data.Emails) != 10 {
		t.Errorf("expected 10 emails, got %d", len(data.Emails))
	}
	if data.Pagination.Total != 35 || data.Pagination.Limit != 10 || data.Pagination.Offset != 0 {
		t.Errorf("unexpected pagination %+v", data.Pagination)
	}
	if !data.Pagination.HasMore {
		t.Error("expected has_more on first page")
	}

	// Newest first: the most recently dated seed leads the page
	if data.Emails[0].Subject == nil || *data.Emails[0].Subject != "Message 34" {
		t.Errorf("expected newest message first, got %+v", data.Emails[0].Subject)
	}

	// Last page reports no further rows
	status, body = env.get(t, "/api/email?limit=10&offset=30", token)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if err := json.Unmarshal(body.Data, &data); err != nil {
		t.Fatalf("failed to parse data: %v", err)
	}
	if len(data.Emails) != 5 {
		t.Errorf("expected 5 emails on last page, got %d", len(data.Emails))
	}
	if data.Pagination.HasMore {
		t.Error("expected has_more false on last page")
	}
}

func TestGetEmails_DefaultsApplied(t *testing.T) {
	env := newTestEnv(t)
	env.seedEmails(t, 25)
	token := env.accessToken(t)

	status, body := env.get(t, "/api/email", token)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	var data struct {
		Emails     []EmailResponse `json:"emails"`
		Pagination struct {
			Limit  int `json:"limit"`
			Offset int `json:"offset"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(body.Data, &data); err != nil {
		t.Fatalf("failed to parse data: %v", err)
	}

	if data.Pagination.Limit != config.DefaultPageLimitValue || data.Pagination.Offset != 0 {
		t.Errorf("expected default pagination, got %+v", data.Pagination)
	}
	if len(data.Emails) != config.DefaultPageLimitValue {
		t.Errorf("expected %d emails, got %d", config.DefaultPageLimitValue, len(data.Emails))
	}
}
