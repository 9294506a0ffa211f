package models

import "time"

// TeamInvite grants one-time registration into a team. The row is deleted
// when the invite is accepted or revoked, so a consumed token can never
// resolve again.
type TeamInvite struct {
	BaseModel

	TeamID    string    `gorm:"type:uuid;not null;index" json:"team_id"`
	Email     string    `gorm:"not null;index" json:"email"`
	TokenHash string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`

	Team *Team `gorm:"constraint:OnDelete:CASCADE" json:"team,omitempty"`
}
