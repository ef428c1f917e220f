package handler

import (
	"net/http"
	"time"

	"fitbuddy/backend/internal/models"
	"fitbuddy/backend/internal/roster"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// CreateGroupInput creates a group with its initial members.
type CreateGroupInput struct {
	Name        string `json:"name" binding:"required" example:"Tuesday climbers"`
	Description string `json:"description"`
	AvatarURL   string `json:"avatar_url"`
	MemberIDs   []uint `json:"member_ids" binding:"required,min=1"`
}

// UpdateGroupInput changes the fields that are present.
type UpdateGroupInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	AvatarURL   *string `json:"avatar_url"`
}

// AddMembersInput adds users to a group.
type AddMembersInput struct {
	UserIDs []uint `json:"user_ids" binding:"required,min=1"`
}

// GroupResponse is a group summary.
type GroupResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	AvatarURL   string    `json:"avatar_url"`
	CreatedBy   uint      `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func newGroupResponse(group models.Group) GroupResponse {
	return GroupResponse{
		ID:          group.ID,
		Name:        group.Name,
		Description: group.Description,
		AvatarURL:   group.AvatarURL,
		CreatedBy:   group.CreatedByID,
		CreatedAt:   group.CreatedAt,
	}
}

// GroupMemberResponse is one member of a group.
type GroupMemberResponse struct {
	User     UserResponse `json:"user"`
	IsAdmin  bool         `json:"is_admin"`
	JoinedAt time.Time    `json:"joined_at"`
}

// GroupDetailResponse is a group with its members.
type GroupDetailResponse struct {
	GroupResponse
	MemberCount int64                 `json:"member_count"`
	IsAdmin     bool                  `json:"is_admin"`
	Members     []GroupMemberResponse `json:"members"`
}

// endregion

// CreateGroup godoc
// @Summary      Create a group
// @Description  Creates a group with the caller as admin and adds the listed members.
// @Tags         groups
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body CreateGroupInput true "Group Info"
// @Success      201  {object}  GroupDetailResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "User not found"
// @Router       /groups [post]
func (h *Handler) CreateGroup(c *gin.Context) {
	userID := currentUser(c)

	var input CreateGroupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	group, members, err := h.Groups.CreateGroup(c.Request.Context(), userID, roster.GroupInput{
		Name:        input.Name,
		Description: input.Description,
		AvatarURL:   input.AvatarURL,
		MemberIDs:   input.MemberIDs,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	detail := roster.GroupDetail{Group: *group, MemberCount: int64(len(members)), IsAdmin: true}
	h.respondGroupDetail(c, http.StatusCreated, detail, members)
}

// ListGroups godoc
// @Summary      List my groups
// @Description  Lists the groups the caller belongs to, most recently joined first.
// @Tags         groups
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} GroupResponse
// @Router       /groups [get]
func (h *Handler) ListGroups(c *gin.Context) {
	groups, err := h.Groups.ListGroups(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]GroupResponse, 0, len(groups))
	for _, g := range groups {
		response = append(response, newGroupResponse(g))
	}
	c.JSON(http.StatusOK, response)
}

// GetGroup godoc
// @Summary      Get a group
// @Description  Gets a group with its members. Only members can see it.
// @Tags         groups
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Group ID"
// @Success      200 {object} GroupDetailResponse
// @Failure      403 {object} ErrorResponse "Not a member of this group"
// @Failure      404 {object} ErrorResponse "Group not found"
// @Router       /groups/{id} [get]
func (h *Handler) GetGroup(c *gin.Context) {
	userID := currentUser(c)
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	detail, err := h.Groups.GetGroup(ctx, groupID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	members, err := h.Groups.Members(ctx, groupID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondGroupDetail(c, http.StatusOK, *detail, members)
}

// UpdateGroup godoc
// @Summary      Update a group (Admin only)
// @Tags         groups
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int              true "Group ID"
// @Param        input body UpdateGroupInput true "Changed fields"
// @Success      200 {object} GroupResponse
// @Failure      403 {object} ErrorResponse "Only group admins can do this"
// @Failure      404 {object} ErrorResponse "Group not found"
// @Router       /groups/{id} [put]
func (h *Handler) UpdateGroup(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input UpdateGroupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	group, err := h.Groups.UpdateGroup(c.Request.Context(), groupID, currentUser(c), roster.GroupUpdate{
		Name:        input.Name,
		Description: input.Description,
		AvatarURL:   input.AvatarURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newGroupResponse(*group))
}

// AddGroupMembers godoc
// @Summary      Add members (Admin only)
// @Description  Adds users to the group. Users who are already members are skipped.
// @Tags         groups
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int             true "Group ID"
// @Param        input body AddMembersInput true "Users to add"
// @Success      200 {object} MessageResponse
// @Failure      403 {object} ErrorResponse "Only group admins can do this"
// @Failure      404 {object} ErrorResponse "Group or user not found"
// @Router       /groups/{id}/members [post]
func (h *Handler) AddGroupMembers(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input AddMembersInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.Groups.AddMembers(c.Request.Context(), groupID, currentUser(c), input.UserIDs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Members added"})
}

// RemoveGroupMember godoc
// @Summary      Remove a member (Admin only)
// @Description  Removes a member from the group. The group creator cannot be removed.
// @Tags         groups
// @Security     BearerAuth
// @Param        id     path int true "Group ID"
// @Param        userID path int true "User ID of the member"
// @Success      204
// @Failure      403 {object} ErrorResponse "Only group admins can do this"
// @Failure      409 {object} ErrorResponse "The group creator cannot be removed"
// @Router       /groups/{id}/members/{userID} [delete]
func (h *Handler) RemoveGroupMember(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	memberID, ok := pathID(c, "userID")
	if !ok {
		return
	}

	if err := h.Groups.RemoveMember(c.Request.Context(), groupID, currentUser(c), memberID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LeaveGroup godoc
// @Summary      Leave a group
// @Description  Removes the caller from the group. If the last admin leaves, the longest-standing member becomes admin.
// @Tags         groups
// @Security     BearerAuth
// @Param        id path int true "Group ID"
// @Success      204
// @Failure      403 {object} ErrorResponse "Not a member of this group"
// @Router       /groups/{id}/leave [post]
func (h *Handler) LeaveGroup(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.Groups.Leave(c.Request.Context(), groupID, currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) respondGroupDetail(c *gin.Context, status int, detail roster.GroupDetail, members []models.GroupMembership) {
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	users, err := h.Users.Lookup(c.Request.Context(), ids)
	if err != nil {
		respondError(c, err)
		return
	}

	response := GroupDetailResponse{
		GroupResponse: newGroupResponse(detail.Group),
		MemberCount:   detail.MemberCount,
		IsAdmin:       detail.IsAdmin,
		Members:       make([]GroupMemberResponse, 0, len(members)),
	}
	for _, m := range members {
		response.Members = append(response.Members, GroupMemberResponse{
			User:     newUserResponse(m.UserID, users),
			IsAdmin:  m.IsAdmin,
			JoinedAt: m.JoinedAt,
		})
	}
	c.JSON(status, response)
}
