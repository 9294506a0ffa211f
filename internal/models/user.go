package models

import "time"

// User is an organizer account. At most one password reset token may be
// outstanding per user; repeated reset requests reuse it rather than rotate.
type User struct {
	BaseModel

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	Name     string `json:"name"`

	IsAdministrator bool `gorm:"default:false" json:"is_administrator"`

	PwResetToken *string `gorm:"uniqueIndex" json:"-"`

	Teams    []Team    `gorm:"many2many:team_members;" json:"teams,omitempty"`
	Sessions []Session `gorm:"foreignKey:UserID" json:"-"`

	LastLoginAt *time.Time `json:"last_login_at"`
}
