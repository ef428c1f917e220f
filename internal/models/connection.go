package models

import "gorm.io/gorm"

// ConnectionStatus defines the state of a buddy request between two users.
type ConnectionStatus string

const (
	// ConnectionPending means the request was sent and awaits the recipient.
	ConnectionPending ConnectionStatus = "pending"

	// ConnectionAccepted means the recipient accepted and the users are buddies.
	ConnectionAccepted ConnectionStatus = "accepted"

	// ConnectionRejected means the recipient declined. A new request may supersede it.
	ConnectionRejected ConnectionStatus = "rejected"
)

// IsActive reports whether the status blocks a new request for the same pair.
func (s ConnectionStatus) IsActive() bool {
	return s == ConnectionPending || s == ConnectionAccepted
}

// IsDecision reports whether s is a status a recipient may respond with.
func (s ConnectionStatus) IsDecision() bool {
	return s == ConnectionAccepted || s == ConnectionRejected
}

// Connection is a directed buddy request. Removing a connection soft-deletes
// the row through gorm.Model's DeletedAt.
type Connection struct {
	gorm.Model
	InitiatorID uint             `gorm:"not null;index"`
	RecipientID uint             `gorm:"not null;index"`
	Status      ConnectionStatus `gorm:"type:varchar(20);not null"`
	Message     *string          `gorm:"size:1000"`
}

// Involves reports whether userID is either party of the connection.
func (c Connection) Involves(userID uint) bool {
	return c.InitiatorID == userID || c.RecipientID == userID
}

// PeerOf returns the other party of the connection.
func (c Connection) PeerOf(userID uint) uint {
	if c.InitiatorID == userID {
		return c.RecipientID
	}
	return c.InitiatorID
}
