package models

import (
	"time"
)

// EmailMetadata represents a synchronized message envelope, not its body.
// The (UserID, GmailUID) pair is the idempotency key: re-syncing the same
// message overwrites the mutable fields without creating duplicates.
type EmailMetadata struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	UserID   uint   `gorm:"not null;uniqueIndex:idx_user_gmail_uid" json:"user_id"`
	GmailUID string `gorm:"size:64;not null;uniqueIndex:idx_user_gmail_uid" json:"gmail_uid"`

	// Envelope fields the provider may omit are modeled as optional
	FromAddr  *string    `gorm:"size:500" json:"from"`
	Subject   *string    `gorm:"size:500" json:"subject"`
	MessageID *string    `gorm:"size:998" json:"message_id"`
	Date      *time.Time `gorm:"index" json:"date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
