package models

import (
	"time"

	"gorm.io/gorm"
)

// Group is a named group conversation.
type Group struct {
	gorm.Model
	Name        string `gorm:"size:255;not null"`
	Description string
	AvatarURL   string `gorm:"size:512"`
	CreatedByID uint   `gorm:"not null;index"`
}

// TableName avoids the GROUPS keyword.
func (Group) TableName() string {
	return "group_chats"
}

// GroupMembership places a user in a group. The creator's membership is
// always an admin one.
type GroupMembership struct {
	ID       uint      `gorm:"primarykey"`
	GroupID  uint      `gorm:"not null;uniqueIndex:idx_group_memberships_group_user"`
	UserID   uint      `gorm:"not null;uniqueIndex:idx_group_memberships_group_user;index"`
	IsAdmin  bool      `gorm:"not null"`
	JoinedAt time.Time `gorm:"not null"`
}
