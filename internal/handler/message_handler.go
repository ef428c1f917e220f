package handler

import (
	"net/http"
	"time"

	"fitbuddy/backend/internal/message"
	"fitbuddy/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// SendMessageInput addresses a message to one channel.
type SendMessageInput struct {
	Kind     models.ChannelKind `json:"kind" binding:"required,oneof=direct event group" example:"direct"`
	TargetID uint               `json:"target_id" binding:"required" example:"2"`
	Content  string             `json:"content" binding:"required" example:"See you at 7?"`
}

// ChatMessageResponse is one stored message.
type ChatMessageResponse struct {
	ID         uint               `json:"id"`
	Sender     UserResponse       `json:"sender"`
	Kind       models.ChannelKind `json:"kind" example:"direct"`
	ReceiverID *uint              `json:"receiver_id,omitempty"`
	EventID    *uint              `json:"event_id,omitempty"`
	GroupID    *uint              `json:"group_id,omitempty"`
	Content    string             `json:"content"`
	IsRead     bool               `json:"is_read"`
	CreatedAt  time.Time          `json:"created_at"`
}

func newChatMessageResponse(msg models.Message, users map[uint]models.User) ChatMessageResponse {
	return ChatMessageResponse{
		ID:         msg.ID,
		Sender:     newUserResponse(msg.SenderID, users),
		Kind:       msg.Kind(),
		ReceiverID: msg.ReceiverID,
		EventID:    msg.EventID,
		GroupID:    msg.GroupID,
		Content:    msg.Content,
		IsRead:     msg.IsRead,
		CreatedAt:  msg.CreatedAt,
	}
}

// endregion

// SendMessage godoc
// @Summary      Send a message
// @Description  Sends a direct, event or group message. Event messages need an approved RSVP or hosting; group messages need membership.
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body SendMessageInput true "Message"
// @Success      201  {object}  ChatMessageResponse
// @Failure      400  {object}  ErrorResponse "Empty content or message to self"
// @Failure      403  {object}  ErrorResponse "Not allowed to post in this channel"
// @Failure      404  {object}  ErrorResponse "Target not found"
// @Router       /messages [post]
func (h *Handler) SendMessage(c *gin.Context) {
	userID := currentUser(c)

	var input SendMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	msg, err := h.Messages.Send(ctx, userID, message.Target{Kind: input.Kind, ID: input.TargetID}, input.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	users, err := h.Users.Lookup(ctx, []uint{userID})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newChatMessageResponse(*msg, users))
}

// ListMessages godoc
// @Summary      List channel messages
// @Description  Lists the messages of a channel, oldest first. For direct channels the id is the other user.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        kind path string true "Channel kind" Enums(direct, event, group)
// @Param        id   path int    true "User, event or group ID"
// @Success      200 {array} ChatMessageResponse
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse "Not allowed to read this channel"
// @Router       /messages/{kind}/{id} [get]
func (h *Handler) ListMessages(c *gin.Context) {
	userID := currentUser(c)
	kind := models.ChannelKind(c.Param("kind"))
	if !kind.Valid() {
		badRequest(c, "Invalid channel kind")
		return
	}
	targetID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	messages, err := h.Messages.ListForChannel(ctx, userID, message.Target{Kind: kind, ID: targetID})
	if err != nil {
		respondError(c, err)
		return
	}

	ids := make([]uint, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.SenderID)
	}
	users, err := h.Users.Lookup(ctx, ids)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]ChatMessageResponse, 0, len(messages))
	for _, m := range messages {
		response = append(response, newChatMessageResponse(m, users))
	}
	c.JSON(http.StatusOK, response)
}

// MarkRead godoc
// @Summary      Mark a direct message read
// @Description  Only the receiver can mark a message read. Marking twice succeeds.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Message ID"
// @Success      200 {object} MessageResponse
// @Failure      403 {object} ErrorResponse "Only the receiver can mark this message read"
// @Failure      404 {object} ErrorResponse "Message not found"
// @Router       /messages/{id}/read [post]
func (h *Handler) MarkRead(c *gin.Context) {
	messageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.Messages.MarkRead(c.Request.Context(), messageID, currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Message marked as read"})
}
