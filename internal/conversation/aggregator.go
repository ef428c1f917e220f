// Package conversation builds the unified inbox: one entry per direct, event
// and group channel a user takes part in, ranked by latest activity.
package conversation

import (
	"context"
	"sort"

	"fitbuddy/backend/internal/apperror"
	"fitbuddy/backend/internal/identity"
	"fitbuddy/backend/internal/models"

	"gorm.io/gorm"
)

// Conversation is the inbox projection of one channel.
type Conversation struct {
	Kind        models.ChannelKind
	TargetID    uint
	Name        string
	AvatarURL   string
	LastMessage *models.Message
	UnreadCount int64
	// MemberCount is set for group channels only.
	MemberCount *int64
}

// Inbox is the ranked conversation list with its unread badge.
type Inbox struct {
	Conversations []Conversation
	TotalUnread   int64
}

// Aggregator is read-only and takes no locks. Each call recomputes the inbox
// from the stored connections, rosters and messages.
type Aggregator struct {
	db    *gorm.DB
	users *identity.Directory
}

// NewAggregator creates an Aggregator.
func NewAggregator(db *gorm.DB, users *identity.Directory) *Aggregator {
	return &Aggregator{db: db, users: users}
}

// Aggregate returns the inbox of userID.
func (a *Aggregator) Aggregate(ctx context.Context, userID uint) (*Inbox, error) {
	db := a.db.WithContext(ctx)

	direct, err := a.directChannels(ctx, db, userID)
	if err != nil {
		return nil, apperror.Normalize(err)
	}
	events, err := eventChannels(db, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	groups, err := groupChannels(db, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	inbox := &Inbox{Conversations: make([]Conversation, 0, len(direct)+len(events)+len(groups))}
	inbox.Conversations = append(inbox.Conversations, direct...)
	inbox.Conversations = append(inbox.Conversations, events...)
	inbox.Conversations = append(inbox.Conversations, groups...)
	for _, c := range inbox.Conversations {
		inbox.TotalUnread += c.UnreadCount
	}

	Sort(inbox.Conversations)
	return inbox, nil
}

// UnreadTotal returns the unread badge without building the list.
func (a *Aggregator) UnreadTotal(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, apperror.Internal(err)
	}
	return count, nil
}

// Sort orders conversations by latest message, newest first. Channels
// without messages go last; ties break by kind then target id.
func Sort(conversations []Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := conversations[i], conversations[j]
		switch {
		case a.LastMessage != nil && b.LastMessage == nil:
			return true
		case a.LastMessage == nil && b.LastMessage != nil:
			return false
		case a.LastMessage != nil && !a.LastMessage.CreatedAt.Equal(b.LastMessage.CreatedAt):
			return a.LastMessage.CreatedAt.After(b.LastMessage.CreatedAt)
		case a.Kind != b.Kind:
			return a.Kind.Rank() < b.Kind.Rank()
		}
		return a.TargetID < b.TargetID
	})
}

// directChannels covers accepted buddies plus anyone u exchanged a message
// with, connected or not.
func (a *Aggregator) directChannels(ctx context.Context, db *gorm.DB, userID uint) ([]Conversation, error) {
	var latestIDs []uint
	err := db.Raw(`
		SELECT id FROM (
			SELECT id, ROW_NUMBER() OVER (
				PARTITION BY CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END
				ORDER BY created_at DESC, id DESC
			) AS rn
			FROM messages
			WHERE receiver_id IS NOT NULL AND (sender_id = ? OR receiver_id = ?)
		) ranked WHERE rn = 1`, userID, userID, userID).
		Scan(&latestIDs).Error
	if err != nil {
		return nil, err
	}
	latest, err := messagesByID(db, latestIDs)
	if err != nil {
		return nil, err
	}

	var buddies []models.Connection
	err = db.Where("(initiator_id = ? OR recipient_id = ?) AND status = ?", userID, userID, models.ConnectionAccepted).
		Find(&buddies).Error
	if err != nil {
		return nil, err
	}

	var unreadRows []struct {
		SenderID uint
		Count    int64
	}
	err = db.Model(&models.Message{}).
		Select("sender_id, COUNT(*) AS count").
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Group("sender_id").
		Scan(&unreadRows).Error
	if err != nil {
		return nil, err
	}
	unread := make(map[uint]int64, len(unreadRows))
	for _, r := range unreadRows {
		unread[r.SenderID] = r.Count
	}

	byPeer := make(map[uint]*models.Message, len(latest)+len(buddies))
	for i := range latest {
		msg := &latest[i]
		peer := msg.SenderID
		if peer == userID {
			peer = *msg.ReceiverID
		}
		byPeer[peer] = msg
	}
	for _, c := range buddies {
		peer := c.PeerOf(userID)
		if _, ok := byPeer[peer]; !ok {
			byPeer[peer] = nil
		}
	}

	peers := make([]uint, 0, len(byPeer))
	for peer := range byPeer {
		peers = append(peers, peer)
	}
	users, err := a.users.Lookup(ctx, peers)
	if err != nil {
		return nil, err
	}

	conversations := make([]Conversation, 0, len(peers))
	for _, peer := range peers {
		user := users[peer]
		conversations = append(conversations, Conversation{
			Kind:        models.ChannelDirect,
			TargetID:    peer,
			Name:        user.DisplayName,
			AvatarURL:   user.AvatarURL,
			LastMessage: byPeer[peer],
			UnreadCount: unread[peer],
		})
	}
	return conversations, nil
}

// eventChannels covers events u hosts or attends that have at least one
// message. Broadcast channels carry no read state.
func eventChannels(db *gorm.DB, userID uint) ([]Conversation, error) {
	var eventIDs []uint
	err := db.Raw(`
		SELECT id FROM events WHERE host_id = ? AND deleted_at IS NULL
		UNION
		SELECT event_id FROM event_rsvps WHERE user_id = ? AND status = ?`,
		userID, userID, models.RSVPApproved).
		Scan(&eventIDs).Error
	if err != nil || len(eventIDs) == 0 {
		return nil, err
	}

	latest, err := latestPer(db, "event_id", eventIDs)
	if err != nil || len(latest) == 0 {
		return nil, err
	}

	ids := make([]uint, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	var events []models.Event
	if err := db.Where("id IN ?", ids).Find(&events).Error; err != nil {
		return nil, err
	}

	conversations := make([]Conversation, 0, len(events))
	for _, e := range events {
		conversations = append(conversations, Conversation{
			Kind:        models.ChannelEvent,
			TargetID:    e.ID,
			Name:        e.Title,
			AvatarURL:   e.ImageURL,
			LastMessage: latest[e.ID],
		})
	}
	return conversations, nil
}

// groupChannels covers every group u belongs to, with or without messages.
func groupChannels(db *gorm.DB, userID uint) ([]Conversation, error) {
	var groupIDs []uint
	err := db.Model(&models.GroupMembership{}).Where("user_id = ?", userID).Pluck("group_id", &groupIDs).Error
	if err != nil || len(groupIDs) == 0 {
		return nil, err
	}

	var groups []models.Group
	if err := db.Where("id IN ?", groupIDs).Find(&groups).Error; err != nil {
		return nil, err
	}

	var countRows []struct {
		GroupID uint
		Count   int64
	}
	err = db.Model(&models.GroupMembership{}).
		Select("group_id, COUNT(*) AS count").
		Where("group_id IN ?", groupIDs).
		Group("group_id").
		Scan(&countRows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uint]int64, len(countRows))
	for _, r := range countRows {
		counts[r.GroupID] = r.Count
	}

	latest, err := latestPer(db, "group_id", groupIDs)
	if err != nil {
		return nil, err
	}

	conversations := make([]Conversation, 0, len(groups))
	for _, g := range groups {
		members := counts[g.ID]
		conversations = append(conversations, Conversation{
			Kind:        models.ChannelGroup,
			TargetID:    g.ID,
			Name:        g.Name,
			AvatarURL:   g.AvatarURL,
			LastMessage: latest[g.ID],
			MemberCount: &members,
		})
	}
	return conversations, nil
}

// latestPer returns the newest message per value of column among ids.
// column is one of the fixed target columns, never user input.
func latestPer(db *gorm.DB, column string, ids []uint) (map[uint]*models.Message, error) {
	var latestIDs []uint
	err := db.Raw(`
		SELECT id FROM (
			SELECT id, ROW_NUMBER() OVER (
				PARTITION BY `+column+`
				ORDER BY created_at DESC, id DESC
			) AS rn
			FROM messages
			WHERE `+column+` IN ?
		) ranked WHERE rn = 1`, ids).
		Scan(&latestIDs).Error
	if err != nil {
		return nil, err
	}
	rows, err := messagesByID(db, latestIDs)
	if err != nil {
		return nil, err
	}

	latest := make(map[uint]*models.Message, len(rows))
	for i := range rows {
		msg := &rows[i]
		if column == "event_id" {
			latest[*msg.EventID] = msg
		} else {
			latest[*msg.GroupID] = msg
		}
	}
	return latest, nil
}

func messagesByID(db *gorm.DB, ids []uint) ([]models.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var messages []models.Message
	err := db.Where("id IN ?", ids).Find(&messages).Error
	return messages, err
}
