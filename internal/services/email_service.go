package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	id "github.com/emersion/go-imap-id"
	_ "github.com/emersion/go-message/charset"
	"github.com/moshdev2213/MailMate/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrSyncFailed indicates the mailbox session or fetch failed
	ErrSyncFailed = errors.New("failed to fetch emails from Gmail")
	// ErrIMAPConnectionFailed indicates IMAP connection failed
	ErrIMAPConnectionFailed = errors.New("IMAP connection failed")
)

const (
	imapAddr    = "imap.gmail.com:993"
	imapHost    = "imap.gmail.com"
	dialTimeout = 10 * time.Second
	imapTimeout = 5 * time.Minute
	maxFieldLen = 500
	fetchBatch  = 20

	// Upsert chunking bounds transaction size and duration
	upsertChunkSize = 20
	chunkTxTimeout  = 30 * time.Second
)

// EmailService synchronizes Gmail inbox metadata over IMAP and serves the
// paginated email query. An IMAP session is scoped to a single SyncRecent
// call and always logged out on exit.
type EmailService struct {
	db          *gorm.DB
	userService *UserService
	logService  *LogService
}

// NewEmailService creates a new EmailService instance
func NewEmailService(db *gorm.DB, userService *UserService) *EmailService {
	return &EmailService{
		db:          db,
		userService: userService,
		logService:  NewLogService(db),
	}
}

// XOAuth2Client implements the SASL XOAUTH2 mechanism
type XOAuth2Client struct {
	Username    string
	AccessToken string
}

// NewXOAuth2Client creates a new XOAUTH2 SASL client
func NewXOAuth2Client(username, accessToken string) *XOAuth2Client {
	return &XOAuth2Client{
		Username:    username,
		AccessToken: accessToken,
	}
}

// Start begins the XOAUTH2 authentication
func (c *XOAuth2Client) Start() (mech string, ir []byte, err error) {
	// XOAUTH2 initial response format: "user=" + user + "\x01auth=Bearer " + token + "\x01\x01"
	ir = []byte(fmt.Sprintf("user=%s\x01auth=Bearer %s\x01\x01", c.Username, c.AccessToken))
	return "XOAUTH2", ir, nil
}

// Next handles server challenges (XOAUTH2 doesn't have additional challenges)
func (c *XOAuth2Client) Next(challenge []byte) (response []byte, err error) {
	return nil, nil
}

// connectIMAP opens an authenticated IMAP session to Gmail using the access
// token as the XOAUTH2 bearer credential; never a password.
func (s *EmailService) connectIMAP(email, accessToken string) (*client.Client, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}
	tlsConfig := &tls.Config{ServerName: imapHost}

	conn, err := tls.DialWithDialer(dialer, "tcp", imapAddr, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIMAPConnectionFailed, err)
	}

	c, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrIMAPConnectionFailed, err)
	}

	c.Timeout = imapTimeout

	// Identify the client to servers that support the ID extension
	if ok, _ := c.Support("ID"); ok {
		idClient := id.NewClient(c)
		_, _ = idClient.ID(id.ID{
			id.FieldName:    "MailMate",
			id.FieldVersion: "1.0.0",
		})
	}

	saslClient := NewXOAuth2Client(email, accessToken)
	if err := c.Authenticate(saslClient); err != nil {
		c.Logout()
		return nil, fmt.Errorf("%w: XOAUTH2 authentication failed: %v", ErrIMAPConnectionFailed, err)
	}

	return c, nil
}

// SyncRecent fetches envelope metadata for the most recent maxMessages
// messages in the user's inbox and upserts them into local storage.
//
// Any failure before persistence aborts the whole call with ErrSyncFailed
// and discards in-memory progress. Persistence itself is chunked (see
// BulkUpsert), so a failing later chunk leaves earlier chunks committed;
// a retried call safely re-applies them because the upsert is idempotent.
func (s *EmailService) SyncRecent(ctx context.Context, userID uint, maxMessages int) ([]models.EmailMetadata, error) {
	user, err := s.userService.FindByID(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}

	accessToken, err := s.userService.GetAccessToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}

	c, err := s.connectIMAP(user.Email, accessToken)
	if err != nil {
		s.logService.LogError(userID, models.LogModuleSync, "connect", "IMAP connection failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	// The session must be released on every exit path. A logout failure is
	// downgraded to a warning so it cannot mask the sync outcome.
	defer func() {
		if err := c.Logout(); err != nil {
			s.logService.LogWarn(userID, models.LogModuleSync, "logout", "Failed to logout IMAP client", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	mbox, err := c.Select("INBOX", true)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select INBOX: %v", ErrSyncFailed, err)
	}

	s.logService.LogInfo(userID, models.LogModuleSync, "fetch", "INBOX selected", map[string]interface{}{
		"total_messages": mbox.Messages,
		"max_messages":   maxMessages,
	})

	if mbox.Messages == 0 {
		return []models.EmailMetadata{}, nil
	}

	from, to := fetchWindow(mbox.Messages, maxMessages)

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, to)

	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope}
	messages := make(chan *imap.Message, fetchBatch)
	done := make(chan error, 1)

	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	var records []models.EmailMetadata
	skipped := 0

	for msg := range messages {
		// A missing envelope is logged and excluded, not fatal to the batch
		if msg == nil || msg.Envelope == nil {
			skipped++
			continue
		}
		records = append(records, s.normalizeEnvelope(userID, msg.Uid, msg.Envelope))
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("%w: fetch failed: %v", ErrSyncFailed, err)
	}

	if skipped > 0 {
		s.logService.LogWarn(userID, models.LogModuleSync, "fetch", "Messages without envelope skipped", map[string]interface{}{
			"skipped": skipped,
		})
	}

	if err := s.BulkUpsert(ctx, records); err != nil {
		s.logService.LogError(userID, models.LogModuleSync, "save", "Failed to save emails to database", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}

	s.logService.LogInfo(userID, models.LogModuleSync, "sync", "Email sync completed", map[string]interface{}{
		"fetched_count": len(records),
		"skipped_count": skipped,
	})

	return records, nil
}

// fetchWindow bounds the sequence range covering the most recent maxMessages
// messages. Sequence number 1 is the oldest, so the window is the top of the
// range up to the current message count. A maxMessages below 1 is clamped to
// 1 rather than wrapping on conversion.
func fetchWindow(total uint32, maxMessages int) (from, to uint32) {
	if maxMessages < 1 {
		maxMessages = 1
	}
	count := uint32(maxMessages)
	if count > total {
		count = total
	}
	return total - count + 1, total
}

// normalizeEnvelope converts an IMAP envelope into a storable metadata row
func (s *EmailService) normalizeEnvelope(userID uint, uid uint32, env *imap.Envelope) models.EmailMetadata {
	record := models.EmailMetadata{
		UserID:   userID,
		GmailUID: strconv.FormatUint(uint64(uid), 10),
	}

	if from := formatAddressList(env.From); from != "" {
		from = truncate(from, maxFieldLen)
		record.FromAddr = &from
	}
	if env.Subject != "" {
		subject := truncate(sanitizeText(env.Subject), maxFieldLen)
		record.Subject = &subject
	}
	if env.MessageId != "" {
		messageID := sanitizeText(env.MessageId)
		record.MessageID = &messageID
	}
	if !env.Date.IsZero() {
		date := env.Date
		record.Date = &date
	}

	return record
}

// BulkUpsert idempotently applies email metadata keyed by (user_id, gmail_uid).
// Records are partitioned into fixed-size chunks, each applied in its own
// transaction with an extended timeout. Chunks commit sequentially; a failing
// chunk does not roll back earlier ones.
func (s *EmailService) BulkUpsert(ctx context.Context, records []models.EmailMetadata) error {
	for start := 0; start < len(records); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		chunkCtx, cancel := context.WithTimeout(ctx, chunkTxTimeout)
		err := s.db.WithContext(chunkCtx).Transaction(func(tx *gorm.DB) error {
			return tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "user_id"}, {Name: "gmail_uid"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"from_addr", "subject", "message_id", "date", "updated_at",
				}),
			}).Create(&chunk).Error
		})
		cancel()

		if err != nil {
			return fmt.Errorf("failed to save emails to database: %w", err)
		}
	}

	return nil
}

// EmailListResult represents a page of stored email metadata
type EmailListResult struct {
	Emails []models.EmailMetadata
	Total  int64
	Limit  int
	Offset int
}

// ListEmails returns a page of email metadata for a user ordered by date
// descending, plus the total row count for pagination. SQLite places NULL
// dates last under DESC ordering, so undated messages sort to the end.
// Inputs are validated upstream; this method trusts them.
func (s *EmailService) ListEmails(userID uint, limit, offset int) (*EmailListResult, error) {
	var total int64
	if err := s.db.Model(&models.EmailMetadata{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, err
	}

	var emails []models.EmailMetadata
	err := s.db.Where("user_id = ?", userID).
		Order("date DESC").
		Limit(limit).
		Offset(offset).
		Find(&emails).Error
	if err != nil {
		return nil, err
	}

	return &EmailListResult{
		Emails: emails,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// formatAddressList joins sender addresses into one display string
func formatAddressList(addrs []*imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		address := addr.MailboxName + "@" + addr.HostName
		if addr.PersonalName != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", addr.PersonalName, address))
		} else {
			parts = append(parts, "<"+address+">")
		}
	}
	return strings.Join(parts, ", ")
}

// sanitizeText trims whitespace and strips HTML angle brackets
func sanitizeText(s string) string {
	return strings.NewReplacer("<", "", ">", "").Replace(strings.TrimSpace(s))
}

// truncate bounds a string to n characters, never splitting a rune
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
