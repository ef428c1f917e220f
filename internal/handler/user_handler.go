package handler

import (
	"net/http"

	"fitbuddy/backend/internal/identity"
	"fitbuddy/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// ProfileInput is the identity projection pushed by the client after sign-in.
type ProfileInput struct {
	DisplayName string `json:"display_name" binding:"required" example:"Rae"`
	AvatarURL   string `json:"avatar_url" example:"https://cdn.example.com/rae.png"`
}

// PublicUserResponse defines the structure for a user's public profile.
type PublicUserResponse struct {
	UserResponse
	BuddyCount int64 `json:"buddy_count"`
	// Connection is the active or latest connection between viewer and user.
	Connection *ConnectionSummary `json:"connection,omitempty"`
}

// ConnectionSummary is the viewer's relationship to another user.
type ConnectionSummary struct {
	ID          uint                    `json:"id"`
	Status      models.ConnectionStatus `json:"status" example:"pending"`
	InitiatedBy uint                    `json:"initiated_by"`
}

// PrivateUserResponse defines the structure for the authenticated user's own profile.
type PrivateUserResponse struct {
	UserResponse
	BuddyCount  int64 `json:"buddy_count"`
	UnreadCount int64 `json:"unread_count"`
}

// endregion

// GetMe godoc
// @Summary      Get current user's info
// @Description  Retrieves the profile projection of the authenticated user.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  PrivateUserResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /users/me [get]
func (h *Handler) GetMe(c *gin.Context) {
	userID := currentUser(c)
	ctx := c.Request.Context()

	user, err := h.Users.Get(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	buddies, err := h.Connections.BuddyCount(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	unread, err := h.Conversations.UnreadTotal(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, PrivateUserResponse{
		UserResponse: newUserResponse(user.ID, map[uint]models.User{user.ID: *user}),
		BuddyCount:   buddies,
		UnreadCount:  unread,
	})
}

// UpdateMe godoc
// @Summary      Upsert current user's profile
// @Description  Stores the display name and avatar the identity provider reported for the caller.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body ProfileInput true "Profile"
// @Success      200  {object}  UserResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /users/me [put]
func (h *Handler) UpdateMe(c *gin.Context) {
	var input ProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.Users.Upsert(c.Request.Context(), currentUser(c), identity.Profile{
		DisplayName: input.DisplayName,
		AvatarURL:   input.AvatarURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user.ID, map[uint]models.User{user.ID: *user}))
}

// GetUserByID godoc
// @Summary      Get user by ID
// @Description  Retrieves the public profile of a user, including the viewer's connection to them.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  PublicUserResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /users/{id} [get]
func (h *Handler) GetUserByID(c *gin.Context) {
	viewerID := currentUser(c)
	targetID, ok := pathID(c, "id")
	if !ok {
		return
	}

	// If target is the same as viewer, answer like /me
	if viewerID == targetID {
		h.GetMe(c)
		return
	}

	ctx := c.Request.Context()
	user, err := h.Users.Get(ctx, targetID)
	if err != nil {
		respondError(c, err)
		return
	}
	buddies, err := h.Connections.BuddyCount(ctx, targetID)
	if err != nil {
		respondError(c, err)
		return
	}
	active, err := h.Connections.ActiveBetween(ctx, viewerID, targetID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := PublicUserResponse{
		UserResponse: newUserResponse(user.ID, map[uint]models.User{user.ID: *user}),
		BuddyCount:   buddies,
	}
	if active != nil {
		response.Connection = &ConnectionSummary{ID: active.ID, Status: active.Status, InitiatedBy: active.InitiatorID}
	}
	c.JSON(http.StatusOK, response)
}
