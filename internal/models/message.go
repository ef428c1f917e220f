package models

import "time"

// ChannelKind is the addressing kind of a message.
type ChannelKind string

const (
	ChannelDirect ChannelKind = "direct"
	ChannelEvent  ChannelKind = "event"
	ChannelGroup  ChannelKind = "group"
)

// Rank orders kinds for deterministic tie-breaks: direct, event, group.
func (k ChannelKind) Rank() int {
	switch k {
	case ChannelDirect:
		return 0
	case ChannelEvent:
		return 1
	case ChannelGroup:
		return 2
	}
	return 3
}

// Valid reports whether k is a known kind.
func (k ChannelKind) Valid() bool {
	return k.Rank() < 3
}

// Message is an immutable unit of communication. Exactly one of ReceiverID,
// EventID and GroupID is set. IsRead only has meaning for direct messages.
type Message struct {
	ID         uint      `gorm:"primarykey"`
	SenderID   uint      `gorm:"not null;index"`
	ReceiverID *uint     `gorm:"index"`
	EventID    *uint     `gorm:"index"`
	GroupID    *uint     `gorm:"index"`
	Content    string    `gorm:"type:text;not null"`
	IsRead     bool      `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

// Kind returns the channel kind the message is addressed to.
func (m Message) Kind() ChannelKind {
	switch {
	case m.ReceiverID != nil:
		return ChannelDirect
	case m.EventID != nil:
		return ChannelEvent
	default:
		return ChannelGroup
	}
}

// TargetID returns the receiver, event or group id.
func (m Message) TargetID() uint {
	switch {
	case m.ReceiverID != nil:
		return *m.ReceiverID
	case m.EventID != nil:
		return *m.EventID
	case m.GroupID != nil:
		return *m.GroupID
	}
	return 0
}
