package handler

import (
	"net/http"

	"fitbuddy/backend/internal/conversation"
	"fitbuddy/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// ConversationResponse is one inbox entry.
type ConversationResponse struct {
	Kind        models.ChannelKind   `json:"kind" example:"group"`
	TargetID    uint                 `json:"target_id"`
	Name        string               `json:"name"`
	AvatarURL   string               `json:"avatar_url"`
	LastMessage *ChatMessageResponse `json:"last_message"`
	UnreadCount int64                `json:"unread_count"`
	MemberCount *int64               `json:"member_count,omitempty"`
}

// InboxResponse is the caller's inbox. Clients refresh it every
// PollIntervalSeconds.
type InboxResponse struct {
	Conversations       []ConversationResponse `json:"conversations"`
	TotalUnread         int64                  `json:"total_unread"`
	PollIntervalSeconds int                    `json:"poll_interval_seconds" example:"10"`
}

// UnreadResponse is the unread badge.
type UnreadResponse struct {
	TotalUnread int64 `json:"total_unread"`
}

// MarkedResponse reports how many messages changed.
type MarkedResponse struct {
	Marked int64 `json:"marked"`
}

// endregion

// GetConversations godoc
// @Summary      Get my inbox
// @Description  Lists every direct, event and group channel of the caller, most recent activity first.
// @Tags         conversations
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} InboxResponse
// @Failure      401 {object} ErrorResponse
// @Router       /conversations [get]
func (h *Handler) GetConversations(c *gin.Context) {
	ctx := c.Request.Context()
	inbox, err := h.Conversations.Aggregate(ctx, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	var senders []uint
	for _, conv := range inbox.Conversations {
		if conv.LastMessage != nil {
			senders = append(senders, conv.LastMessage.SenderID)
		}
	}
	users, err := h.Users.Lookup(ctx, senders)
	if err != nil {
		respondError(c, err)
		return
	}

	response := InboxResponse{
		Conversations:       make([]ConversationResponse, 0, len(inbox.Conversations)),
		TotalUnread:         inbox.TotalUnread,
		PollIntervalSeconds: int(h.PollInterval.Seconds()),
	}
	for _, conv := range inbox.Conversations {
		response.Conversations = append(response.Conversations, newConversationResponse(conv, users))
	}
	c.JSON(http.StatusOK, response)
}

// GetUnreadCount godoc
// @Summary      Get unread count
// @Description  Returns the number of unread direct messages addressed to the caller.
// @Tags         conversations
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} UnreadResponse
// @Router       /conversations/unread [get]
func (h *Handler) GetUnreadCount(c *gin.Context) {
	total, err := h.Conversations.UnreadTotal(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, UnreadResponse{TotalUnread: total})
}

// MarkConversationRead godoc
// @Summary      Mark a direct conversation read
// @Description  Marks every unread message from the other user to the caller as read.
// @Tags         conversations
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Other user's ID"
// @Success      200 {object} MarkedResponse
// @Router       /conversations/direct/{id}/read [post]
func (h *Handler) MarkConversationRead(c *gin.Context) {
	peerID, ok := pathID(c, "id")
	if !ok {
		return
	}

	marked, err := h.Messages.MarkConversationRead(c.Request.Context(), currentUser(c), peerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MarkedResponse{Marked: marked})
}

func newConversationResponse(conv conversation.Conversation, users map[uint]models.User) ConversationResponse {
	response := ConversationResponse{
		Kind:        conv.Kind,
		TargetID:    conv.TargetID,
		Name:        conv.Name,
		AvatarURL:   conv.AvatarURL,
		UnreadCount: conv.UnreadCount,
		MemberCount: conv.MemberCount,
	}
	if conv.LastMessage != nil {
		last := newChatMessageResponse(*conv.LastMessage, users)
		response.LastMessage = &last
	}
	return response
}
