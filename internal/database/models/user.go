package models

import (
	"time"
)

// User represents a Google identity known to the system.
// One row per distinct Google subject id; never deleted.
type User struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	GoogleID string  `gorm:"uniqueIndex;size:255;not null" json:"google_id"`
	Email    string  `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name     *string `gorm:"size:255" json:"name"`

	// Google refresh token, AES-256-GCM encrypted. Nil when the user never
	// granted offline access or access was revoked. The plaintext token is
	// never persisted.
	RefreshToken *string `gorm:"size:1024" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Emails []EmailMetadata `gorm:"foreignKey:UserID" json:"emails,omitempty"`
}
