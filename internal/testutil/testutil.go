// Package testutil builds in-memory databases and fixtures for package tests.
package testutil

import (
	"testing"
	"time"

	"fitbuddy/backend/internal/database"
	"fitbuddy/backend/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory SQLite database private to the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open("sqlite", "file::memory:", logger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts an identity projection.
func CreateUser(t testing.TB, db *gorm.DB, name string) models.User {
	t.Helper()

	user := models.User{DisplayName: name, AvatarURL: "https://cdn.test/" + name + ".png"}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// EventOption customizes CreateEvent.
type EventOption func(*models.Event)

// Private makes the event require host approval.
func Private() EventOption {
	return func(e *models.Event) { e.IsPublic = false }
}

// Capacity caps approved participants.
func Capacity(n int) EventOption {
	return func(e *models.Event) { e.MaxParticipants = &n }
}

// Cancelled marks the event cancelled.
func Cancelled() EventOption {
	return func(e *models.Event) { e.IsCancelled = true }
}

// CreateEvent inserts a public, uncapped event hosted by hostID.
func CreateEvent(t testing.TB, db *gorm.DB, hostID uint, title string, opts ...EventOption) models.Event {
	t.Helper()

	event := models.Event{
		HostID:    hostID,
		Title:     title,
		Location:  "Central Park",
		StartTime: time.Now().UTC().Add(48 * time.Hour),
		IsPublic:  true,
	}
	for _, opt := range opts {
		opt(&event)
	}
	require.NoError(t, db.Create(&event).Error)
	return event
}

// CreateRSVP inserts an RSVP row directly, bypassing capacity checks.
func CreateRSVP(t testing.TB, db *gorm.DB, eventID, userID uint, status models.RSVPStatus) models.EventRSVP {
	t.Helper()

	rsvp := models.EventRSVP{EventID: eventID, UserID: userID, Status: status, RequestedAt: time.Now().UTC()}
	require.NoError(t, db.Create(&rsvp).Error)
	return rsvp
}

// CreateGroup inserts a group with creatorID as admin plus the given members.
func CreateGroup(t testing.TB, db *gorm.DB, creatorID uint, name string, memberIDs ...uint) models.Group {
	t.Helper()

	group := models.Group{Name: name, CreatedByID: creatorID}
	require.NoError(t, db.Create(&group).Error)

	now := time.Now().UTC()
	memberships := []models.GroupMembership{{GroupID: group.ID, UserID: creatorID, IsAdmin: true, JoinedAt: now}}
	for _, id := range memberIDs {
		memberships = append(memberships, models.GroupMembership{GroupID: group.ID, UserID: id, JoinedAt: now})
	}
	require.NoError(t, db.Create(&memberships).Error)
	return group
}

// CreateMessage inserts a message with an explicit timestamp.
func CreateMessage(t testing.TB, db *gorm.DB, msg models.Message) models.Message {
	t.Helper()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	require.NoError(t, db.Create(&msg).Error)
	return msg
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
