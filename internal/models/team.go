package models

// Team is an organizer team. It owns its membership and pending invites
// exclusively.
type Team struct {
	BaseModel

	Name string `gorm:"not null" json:"name"`

	Members []User       `gorm:"many2many:team_members;" json:"members,omitempty"`
	Invites []TeamInvite `gorm:"foreignKey:TeamID" json:"invites,omitempty"`
}
