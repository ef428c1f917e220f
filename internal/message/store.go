// Package message is the append-only store behind the three channel kinds:
// direct, event and group.
package message

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"fitbuddy/backend/internal/apperror"
	"fitbuddy/backend/internal/identity"
	"fitbuddy/backend/internal/models"

	"gorm.io/gorm"
)

// Target addresses one channel. For direct channels ID is the other user.
type Target struct {
	Kind models.ChannelKind
	ID   uint
}

// Direct, Event and Group build targets.
func Direct(userID uint) Target { return Target{Kind: models.ChannelDirect, ID: userID} }
func Event(eventID uint) Target { return Target{Kind: models.ChannelEvent, ID: eventID} }
func Group(groupID uint) Target { return Target{Kind: models.ChannelGroup, ID: groupID} }

// GroupAccess answers group membership questions.
type GroupAccess interface {
	IsMember(ctx context.Context, groupID, userID uint) (bool, error)
}

// EventAccess answers who may use an event channel.
type EventAccess interface {
	CanPost(ctx context.Context, eventID, userID uint) (bool, error)
}

// Store appends and reads messages.
type Store struct {
	db     *gorm.DB
	groups GroupAccess
	events EventAccess
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a Store.
func NewStore(db *gorm.DB, groups GroupAccess, events EventAccess) *Store {
	return &Store{
		db:     db,
		groups: groups,
		events: events,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Send appends a message to the target channel. Content is stored as
// given; only whitespace-only content is rejected.
func (s *Store) Send(ctx context.Context, senderID uint, target Target, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperror.ErrEmptyContent
	}
	if err := s.authorize(ctx, senderID, target); err != nil {
		return nil, err
	}

	msg := models.Message{SenderID: senderID, Content: content, CreatedAt: s.now()}
	id := target.ID
	switch target.Kind {
	case models.ChannelDirect:
		msg.ReceiverID = &id
	case models.ChannelEvent:
		msg.EventID = &id
	case models.ChannelGroup:
		msg.GroupID = &id
	}

	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, apperror.Internal(err)
	}

	s.logger.Info("Message sent", "messageId", msg.ID, "senderId", senderID, "kind", target.Kind, "targetId", target.ID)
	return &msg, nil
}

// ListForChannel returns the channel's messages oldest first. Direct
// channels are the pair {viewer, target.ID}.
func (s *Store) ListForChannel(ctx context.Context, viewerID uint, target Target) ([]models.Message, error) {
	if err := s.authorize(ctx, viewerID, target); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx)
	switch target.Kind {
	case models.ChannelDirect:
		query = query.Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			viewerID, target.ID, target.ID, viewerID)
	case models.ChannelEvent:
		query = query.Where("event_id = ?", target.ID)
	case models.ChannelGroup:
		query = query.Where("group_id = ?", target.ID)
	}

	messages := []models.Message{}
	if err := query.Order("created_at ASC").Order("id ASC").Find(&messages).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	return messages, nil
}

// MarkRead marks a direct message read. Only its receiver may do so and a
// message already read is left alone.
func (s *Store) MarkRead(ctx context.Context, messageID, readerID uint) error {
	var msg models.Message
	err := s.db.WithContext(ctx).First(&msg, messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.ErrMessageNotFound
	}
	if err != nil {
		return apperror.Internal(err)
	}
	if msg.ReceiverID == nil || *msg.ReceiverID != readerID {
		return apperror.ErrNotReceiver
	}
	if msg.IsRead {
		return nil
	}

	if err := s.db.WithContext(ctx).Model(&msg).Update("is_read", true).Error; err != nil {
		return apperror.Internal(err)
	}
	return nil
}

// MarkConversationRead marks every unread message from peerID to readerID
// and returns how many changed.
func (s *Store) MarkConversationRead(ctx context.Context, readerID, peerID uint) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", peerID, readerID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, apperror.Internal(result.Error)
	}

	if result.RowsAffected > 0 {
		s.logger.Info("Conversation marked read", "readerId", readerID, "peerId", peerID, "count", result.RowsAffected)
	}
	return result.RowsAffected, nil
}

// authorize checks that userID may use the channel.
func (s *Store) authorize(ctx context.Context, userID uint, target Target) error {
	switch target.Kind {
	case models.ChannelDirect:
		if target.ID == userID {
			return apperror.ErrSelfMessage
		}
		return identity.RequireAll(ctx, s.db, []uint{target.ID})

	case models.ChannelEvent:
		ok, err := s.events.CanPost(ctx, target.ID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.ErrNotEventAttendee
		}
		return nil

	case models.ChannelGroup:
		ok, err := s.groups.IsMember(ctx, target.ID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.ErrNotGroupMember
		}
		return nil
	}
	return apperror.ErrInvalidTargetKind
}
