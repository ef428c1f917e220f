package models

import (
	"time"

	"gorm.io/gorm"
)

// Event is a scheduled activity hosted by one user.
type Event struct {
	gorm.Model
	HostID          uint   `gorm:"not null;index"`
	SportID         *uint  `gorm:"index"`
	Title           string `gorm:"size:255;not null"`
	Description     string
	Location        string    `gorm:"size:255"`
	StartTime       time.Time `gorm:"not null;index"`
	EndTime         *time.Time
	MaxParticipants *int   // nil means unlimited
	IsPublic        bool   `gorm:"not null"`
	IsCancelled     bool   `gorm:"not null"`
	ImageURL        string `gorm:"size:512"`
}

// HasCapacityFor reports whether one more approved participant fits.
func (e Event) HasCapacityFor(approved int64) bool {
	if e.MaxParticipants == nil {
		return true
	}
	return approved < int64(*e.MaxParticipants)
}

// RSVPStatus defines the state of a user's request to attend an event.
type RSVPStatus string

const (
	RSVPPending  RSVPStatus = "pending"
	RSVPApproved RSVPStatus = "approved"
	RSVPRejected RSVPStatus = "rejected"
)

// EventRSVP is a user's request to attend an event. There is at most one
// row per (event, user); withdrawing deletes it.
type EventRSVP struct {
	ID          uint       `gorm:"primarykey"`
	EventID     uint       `gorm:"not null;uniqueIndex:idx_event_rsvps_event_user"`
	UserID      uint       `gorm:"not null;uniqueIndex:idx_event_rsvps_event_user;index"`
	Status      RSVPStatus `gorm:"type:varchar(20);not null;index"`
	RequestedAt time.Time  `gorm:"not null"`
	UpdatedAt   time.Time
}

// TableName pins the table name.
func (EventRSVP) TableName() string {
	return "event_rsvps"
}
