package handler

import (
	"net/http"
	"time"

	"fitbuddy/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// ConnectionInput opens a buddy request.
type ConnectionInput struct {
	RecipientID uint    `json:"recipient_id" binding:"required" example:"2"`
	Message     *string `json:"message" example:"Want to train together?"`
}

// RespondInput answers a buddy request.
type RespondInput struct {
	Status models.ConnectionStatus `json:"status" binding:"required,oneof=accepted rejected" example:"accepted"`
}

// ConnectionResponse is a buddy connection as seen by one of its parties.
type ConnectionResponse struct {
	ID        uint                    `json:"id"`
	Initiator UserResponse            `json:"initiator"`
	Recipient UserResponse            `json:"recipient"`
	Peer      UserResponse            `json:"peer"`
	Status    models.ConnectionStatus `json:"status" example:"pending"`
	Message   *string                 `json:"message,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

func newConnectionResponse(conn models.Connection, viewerID uint, users map[uint]models.User) ConnectionResponse {
	return ConnectionResponse{
		ID:        conn.ID,
		Initiator: newUserResponse(conn.InitiatorID, users),
		Recipient: newUserResponse(conn.RecipientID, users),
		Peer:      newUserResponse(conn.PeerOf(viewerID), users),
		Status:    conn.Status,
		Message:   conn.Message,
		CreatedAt: conn.CreatedAt,
		UpdatedAt: conn.UpdatedAt,
	}
}

// endregion

// CreateConnection godoc
// @Summary      Send a buddy request
// @Description  Creates a pending connection from the caller to the recipient.
// @Tags         connections
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body ConnectionInput true "Request"
// @Success      201  {object}  ConnectionResponse
// @Failure      400  {object}  ErrorResponse "Cannot connect with yourself"
// @Failure      404  {object}  ErrorResponse "User not found"
// @Failure      409  {object}  ErrorResponse "An active connection already exists"
// @Router       /connections [post]
func (h *Handler) CreateConnection(c *gin.Context) {
	userID := currentUser(c)

	var input ConnectionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	conn, err := h.Connections.Request(c.Request.Context(), userID, input.RecipientID, input.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondConnection(c, http.StatusCreated, *conn, userID)
}

// ListConnections godoc
// @Summary      List my connections
// @Description  Lists every connection the caller is a party to, newest first.
// @Tags         connections
// @Produce      json
// @Security     BearerAuth
// @Param        status query string false "Filter by status (pending, accepted, rejected)"
// @Success      200 {array} ConnectionResponse
// @Failure      400 {object} ErrorResponse
// @Router       /connections [get]
func (h *Handler) ListConnections(c *gin.Context) {
	userID := currentUser(c)

	var status *models.ConnectionStatus
	if raw := c.Query("status"); raw != "" {
		s := models.ConnectionStatus(raw)
		if !s.IsActive() && s != models.ConnectionRejected {
			badRequest(c, "Invalid status filter")
			return
		}
		status = &s
	}

	ctx := c.Request.Context()
	conns, err := h.Connections.ListForUser(ctx, userID, status)
	if err != nil {
		respondError(c, err)
		return
	}

	ids := make([]uint, 0, len(conns)*2)
	for _, conn := range conns {
		ids = append(ids, conn.InitiatorID, conn.RecipientID)
	}
	users, err := h.Users.Lookup(ctx, ids)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]ConnectionResponse, 0, len(conns))
	for _, conn := range conns {
		response = append(response, newConnectionResponse(conn, userID, users))
	}
	c.JSON(http.StatusOK, response)
}

// GetConnection godoc
// @Summary      Get a connection
// @Tags         connections
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Connection ID"
// @Success      200 {object} ConnectionResponse
// @Failure      403 {object} ErrorResponse "Not a party to this connection"
// @Failure      404 {object} ErrorResponse "Connection not found"
// @Router       /connections/{id} [get]
func (h *Handler) GetConnection(c *gin.Context) {
	userID := currentUser(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	conn, err := h.Connections.Get(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondConnection(c, http.StatusOK, *conn, userID)
}

// RespondConnection godoc
// @Summary      Accept or reject a buddy request
// @Description  Only the recipient of a pending request can respond.
// @Tags         connections
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int          true "Connection ID"
// @Param        input body RespondInput true "Decision"
// @Success      200 {object} ConnectionResponse
// @Failure      403 {object} ErrorResponse "Only the recipient can respond"
// @Failure      404 {object} ErrorResponse "Connection not found"
// @Failure      409 {object} ErrorResponse "Connection is no longer pending"
// @Router       /connections/{id}/respond [post]
func (h *Handler) RespondConnection(c *gin.Context) {
	userID := currentUser(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input RespondInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	conn, err := h.Connections.Respond(c.Request.Context(), id, userID, input.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondConnection(c, http.StatusOK, *conn, userID)
}

// DeleteConnection godoc
// @Summary      Remove a connection
// @Description  Either party can remove a connection in any status. Removing twice succeeds.
// @Tags         connections
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Connection ID"
// @Success      204
// @Failure      403 {object} ErrorResponse "Not a party to this connection"
// @Router       /connections/{id} [delete]
func (h *Handler) DeleteConnection(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.Connections.Remove(c.Request.Context(), id, currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) respondConnection(c *gin.Context, status int, conn models.Connection, viewerID uint) {
	users, err := h.Users.Lookup(c.Request.Context(), []uint{conn.InitiatorID, conn.RecipientID})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, newConnectionResponse(conn, viewerID, users))
}
