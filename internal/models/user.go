package models

import "gorm.io/gorm"

// User is the local projection of an externally-owned identity.
// Only what the conversation list and rosters need to render is kept.
type User struct {
	gorm.Model
	DisplayName string `gorm:"size:255;not null"`
	AvatarURL   string `gorm:"size:512"`
}
