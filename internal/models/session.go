package models

import "time"

// Session is server-side authentication state bound to a browser cookie.
// Only a hash of the cookie token is stored.
type Session struct {
	BaseModel

	UserID    string `gorm:"type:uuid;not null;index" json:"user_id"`
	TokenHash string `gorm:"uniqueIndex;not null" json:"-"`

	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`

	ExpiresAt  time.Time `gorm:"index" json:"expires_at"`
	LastUsedAt time.Time `json:"last_used_at"`

	User *User `json:"-"`
}
