package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"fitbuddy/backend/internal/auth"
	"fitbuddy/backend/internal/models"
	"fitbuddy/backend/internal/pagination"
	"fitbuddy/backend/internal/roster"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// EventInput is the host-editable part of an event.
type EventInput struct {
	Title           string     `json:"title" binding:"required" example:"Sunday long run"`
	Description     string     `json:"description"`
	Location        string     `json:"location" example:"Riverside park"`
	SportID         *uint      `json:"sport_id"`
	StartTime       time.Time  `json:"start_time" binding:"required"`
	EndTime         *time.Time `json:"end_time"`
	MaxParticipants *int       `json:"max_participants" binding:"omitempty,min=1" example:"10"`
	IsPublic        bool       `json:"is_public"`
	ImageURL        string     `json:"image_url"`
}

func (in EventInput) toRoster() roster.EventInput {
	return roster.EventInput{
		Title:           in.Title,
		Description:     in.Description,
		Location:        in.Location,
		SportID:         in.SportID,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		MaxParticipants: in.MaxParticipants,
		IsPublic:        in.IsPublic,
		ImageURL:        in.ImageURL,
	}
}

// EventResponse is an event with its host and seat usage.
type EventResponse struct {
	ID              uint         `json:"id"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Location        string       `json:"location"`
	SportID         *uint        `json:"sport_id,omitempty"`
	StartTime       time.Time    `json:"start_time"`
	EndTime         *time.Time   `json:"end_time,omitempty"`
	MaxParticipants *int         `json:"max_participants,omitempty"`
	IsPublic        bool         `json:"is_public"`
	IsCancelled     bool         `json:"is_cancelled"`
	ImageURL        string       `json:"image_url"`
	Host            UserResponse `json:"host"`
	ApprovedCount   int64        `json:"approved_count"`
}

func newEventResponse(event models.Event, approved int64, users map[uint]models.User) EventResponse {
	return EventResponse{
		ID:              event.ID,
		Title:           event.Title,
		Description:     event.Description,
		Location:        event.Location,
		SportID:         event.SportID,
		StartTime:       event.StartTime,
		EndTime:         event.EndTime,
		MaxParticipants: event.MaxParticipants,
		IsPublic:        event.IsPublic,
		IsCancelled:     event.IsCancelled,
		ImageURL:        event.ImageURL,
		Host:            newUserResponse(event.HostID, users),
		ApprovedCount:   approved,
	}
}

// EventDetailResponse adds the viewer's standing to an event.
type EventDetailResponse struct {
	EventResponse
	PendingCount int64              `json:"pending_count"`
	MyStatus     *models.RSVPStatus `json:"my_status,omitempty"`
	IsHost       bool               `json:"is_host"`
	CanChat      bool               `json:"can_chat"`
}

// RSVPResponse is one attendance request.
type RSVPResponse struct {
	EventID     uint              `json:"event_id"`
	User        UserResponse      `json:"user"`
	Status      models.RSVPStatus `json:"status" example:"pending"`
	RequestedAt time.Time         `json:"requested_at"`
}

func newRSVPResponses(rsvps []models.EventRSVP, users map[uint]models.User) []RSVPResponse {
	response := make([]RSVPResponse, 0, len(rsvps))
	for _, r := range rsvps {
		response = append(response, RSVPResponse{
			EventID:     r.EventID,
			User:        newUserResponse(r.UserID, users),
			Status:      r.Status,
			RequestedAt: r.RequestedAt,
		})
	}
	return response
}

// HostRSVPsResponse is the host's roster panel.
type HostRSVPsResponse struct {
	Approved []RSVPResponse `json:"approved"`
	Pending  []RSVPResponse `json:"pending"`
	Rejected []RSVPResponse `json:"rejected"`
}

// PaginatedEventResponse defines the structure for a paginated list of events.
type PaginatedEventResponse struct {
	Data []EventResponse `json:"data"`
	Meta pagination.Meta `json:"meta"`
}

// endregion

// CreateEvent godoc
// @Summary      Create an event
// @Description  Creates an event hosted by the caller. Public events approve RSVPs automatically.
// @Tags         events
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body EventInput true "Event Info"
// @Success      201  {object}  EventResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Sport not found"
// @Router       /events [post]
func (h *Handler) CreateEvent(c *gin.Context) {
	userID := currentUser(c)

	input, ok := bindEventInput(c)
	if !ok {
		return
	}

	event, err := h.Events.Create(c.Request.Context(), userID, input.toRoster())
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondEvent(c, http.StatusCreated, *event, 0)
}

// ListEvents godoc
// @Summary      List upcoming events
// @Description  Gets a paginated list of upcoming events, soonest first.
// @Tags         events
// @Produce      json
// @Param        q         query string false "Search title or location"
// @Param        sport_ids query string false "Comma-separated sport IDs"
// @Param        mine      query bool   false "Only events hosted by the caller"
// @Param        page      query int    false "Page number" default(1)
// @Param        limit     query int    false "Items per page" default(10)
// @Success      200 {object} PaginatedEventResponse
// @Failure      400 {object} ErrorResponse
// @Router       /events [get]
func (h *Handler) ListEvents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(pagination.DefaultLimit)))

	filter := roster.EventFilter{Search: c.Query("q")}
	for _, s := range splitCommaSeparated(c.Query("sport_ids")) {
		id, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			badRequest(c, "Invalid sport_ids")
			return
		}
		filter.SportIDs = append(filter.SportIDs, uint(id))
	}
	if mine, _ := strconv.ParseBool(c.Query("mine")); mine {
		userID, ok := auth.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication required for mine=true"})
			return
		}
		filter.HostID = &userID
		filter.IncludePast = true
	}

	ctx := c.Request.Context()
	result, err := h.Events.List(ctx, filter, pagination.Params{Page: page, Limit: limit})
	if err != nil {
		respondError(c, err)
		return
	}

	eventIDs := make([]uint, 0, len(result.Data))
	hostIDs := make([]uint, 0, len(result.Data))
	for _, e := range result.Data {
		eventIDs = append(eventIDs, e.ID)
		hostIDs = append(hostIDs, e.HostID)
	}
	counts, err := h.Events.ApprovedCounts(ctx, eventIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	users, err := h.Users.Lookup(ctx, hostIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]EventResponse, 0, len(result.Data))
	for _, e := range result.Data {
		response = append(response, newEventResponse(e, counts[e.ID], users))
	}
	c.JSON(http.StatusOK, pagination.New(response, result.Meta.TotalItems, result.Meta.CurrentPage, result.Meta.PageSize))
}

// GetEvent godoc
// @Summary      Get an event
// @Description  Gets event details with roster counts and, when authenticated, the caller's RSVP status.
// @Tags         events
// @Produce      json
// @Param        id path int true "Event ID"
// @Success      200 {object} EventDetailResponse
// @Failure      404 {object} ErrorResponse "Event not found"
// @Router       /events/{id} [get]
func (h *Handler) GetEvent(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	summary, err := h.Events.Get(ctx, eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	users, err := h.Users.Lookup(ctx, []uint{summary.Event.HostID})
	if err != nil {
		respondError(c, err)
		return
	}

	response := EventDetailResponse{
		EventResponse: newEventResponse(summary.Event, summary.ApprovedCount, users),
		PendingCount:  summary.PendingCount,
	}
	if viewerID, ok := auth.UserID(c); ok {
		response.IsHost = summary.Event.HostID == viewerID
		if response.MyStatus, err = h.RSVPs.StatusFor(ctx, eventID, viewerID); err != nil {
			respondError(c, err)
			return
		}
		response.CanChat = response.IsHost || (response.MyStatus != nil && *response.MyStatus == models.RSVPApproved)
	}
	c.JSON(http.StatusOK, response)
}

// UpdateEvent godoc
// @Summary      Update an event (Host only)
// @Description  Replaces the event details. Capacity cannot drop below the approved count.
// @Tags         events
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int        true "Event ID"
// @Param        input body EventInput true "New Event Info"
// @Success      200 {object} EventResponse
// @Failure      403 {object} ErrorResponse "Only the event host can do this"
// @Failure      404 {object} ErrorResponse "Event not found"
// @Failure      409 {object} ErrorResponse "Capacity below approved count or event cancelled"
// @Router       /events/{id} [put]
func (h *Handler) UpdateEvent(c *gin.Context) {
	userID := currentUser(c)
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}
	input, ok := bindEventInput(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	event, err := h.Events.Update(ctx, eventID, userID, input.toRoster())
	if err != nil {
		respondError(c, err)
		return
	}
	counts, err := h.Events.ApprovedCounts(ctx, []uint{eventID})
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondEvent(c, http.StatusOK, *event, counts[eventID])
}

// CancelEvent godoc
// @Summary      Cancel an event (Host only)
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Event ID"
// @Success      200 {object} EventResponse
// @Failure      403 {object} ErrorResponse "Only the event host can do this"
// @Failure      404 {object} ErrorResponse "Event not found"
// @Router       /events/{id}/cancel [post]
func (h *Handler) CancelEvent(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	event, err := h.Events.Cancel(ctx, eventID, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	counts, err := h.Events.ApprovedCounts(ctx, []uint{eventID})
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondEvent(c, http.StatusOK, *event, counts[eventID])
}

// RSVPEvent godoc
// @Summary      RSVP to an event
// @Description  Public events approve immediately while seats remain; private events wait for the host.
// @Tags         rsvps
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Event ID"
// @Success      201 {object} RSVPResponse
// @Failure      404 {object} ErrorResponse "Event not found"
// @Failure      409 {object} ErrorResponse "Already requested, event full or cancelled"
// @Router       /events/{id}/rsvp [post]
func (h *Handler) RSVPEvent(c *gin.Context) {
	userID := currentUser(c)
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}

	rsvp, err := h.RSVPs.RSVP(c.Request.Context(), eventID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondRSVP(c, http.StatusCreated, *rsvp)
}

// WithdrawRSVP godoc
// @Summary      Withdraw an RSVP
// @Description  Deletes the caller's pending or approved RSVP. Withdrawing twice succeeds.
// @Tags         rsvps
// @Security     BearerAuth
// @Param        id path int true "Event ID"
// @Success      204
// @Failure      409 {object} ErrorResponse "RSVP was rejected"
// @Router       /events/{id}/rsvp [delete]
func (h *Handler) WithdrawRSVP(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.RSVPs.Withdraw(c.Request.Context(), eventID, currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListRSVPs godoc
// @Summary      List RSVPs (Host only)
// @Description  Lists every RSVP of the event grouped by status.
// @Tags         rsvps
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Event ID"
// @Success      200 {object} HostRSVPsResponse
// @Failure      403 {object} ErrorResponse "Only the event host can do this"
// @Failure      404 {object} ErrorResponse "Event not found"
// @Router       /events/{id}/rsvps [get]
func (h *Handler) ListRSVPs(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	view, err := h.RSVPs.ListForHost(ctx, eventID, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	var ids []uint
	for _, group := range [][]models.EventRSVP{view.Approved, view.Pending, view.Rejected} {
		for _, r := range group {
			ids = append(ids, r.UserID)
		}
	}
	users, err := h.Users.Lookup(ctx, ids)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, HostRSVPsResponse{
		Approved: newRSVPResponses(view.Approved, users),
		Pending:  newRSVPResponses(view.Pending, users),
		Rejected: newRSVPResponses(view.Rejected, users),
	})
}

// ListParticipants godoc
// @Summary      List participants
// @Description  Lists the approved participants of an event.
// @Tags         rsvps
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Event ID"
// @Success      200 {array} RSVPResponse
// @Failure      404 {object} ErrorResponse "Event not found"
// @Router       /events/{id}/participants [get]
func (h *Handler) ListParticipants(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	rsvps, err := h.RSVPs.Participants(ctx, eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	ids := make([]uint, 0, len(rsvps))
	for _, r := range rsvps {
		ids = append(ids, r.UserID)
	}
	users, err := h.Users.Lookup(ctx, ids)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRSVPResponses(rsvps, users))
}

// ApproveRSVP godoc
// @Summary      Approve an RSVP (Host only)
// @Tags         rsvps
// @Produce      json
// @Security     BearerAuth
// @Param        id     path int true "Event ID"
// @Param        userID path int true "User ID of the requester"
// @Success      200 {object} RSVPResponse
// @Failure      403 {object} ErrorResponse "Only the event host can do this"
// @Failure      404 {object} ErrorResponse "RSVP not found"
// @Failure      409 {object} ErrorResponse "Event is full or RSVP not pending"
// @Router       /events/{id}/rsvps/{userID}/approve [post]
func (h *Handler) ApproveRSVP(c *gin.Context) {
	h.decideRSVP(c, h.RSVPs.Approve)
}

// RejectRSVP godoc
// @Summary      Reject an RSVP (Host only)
// @Tags         rsvps
// @Produce      json
// @Security     BearerAuth
// @Param        id     path int true "Event ID"
// @Param        userID path int true "User ID of the requester"
// @Success      200 {object} RSVPResponse
// @Failure      403 {object} ErrorResponse "Only the event host can do this"
// @Failure      404 {object} ErrorResponse "RSVP not found"
// @Failure      409 {object} ErrorResponse "RSVP is not pending"
// @Router       /events/{id}/rsvps/{userID}/reject [post]
func (h *Handler) RejectRSVP(c *gin.Context) {
	h.decideRSVP(c, h.RSVPs.Reject)
}

// RemoveParticipant godoc
// @Summary      Remove a participant (Host only)
// @Description  Drops an approved participant and frees the seat.
// @Tags         rsvps
// @Security     BearerAuth
// @Param        id     path int true "Event ID"
// @Param        userID path int true "User ID of the participant"
// @Success      204
// @Failure      403 {object} ErrorResponse "Only the event host can do this"
// @Failure      409 {object} ErrorResponse "User is not an approved participant"
// @Router       /events/{id}/participants/{userID} [delete]
func (h *Handler) RemoveParticipant(c *gin.Context) {
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userID")
	if !ok {
		return
	}

	if err := h.RSVPs.RemoveParticipant(c.Request.Context(), eventID, currentUser(c), userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type rsvpDecision func(ctx context.Context, eventID, hostID, userID uint) (*models.EventRSVP, error)

func (h *Handler) decideRSVP(c *gin.Context, decide rsvpDecision) {
	eventID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userID")
	if !ok {
		return
	}

	rsvp, err := decide(c.Request.Context(), eventID, currentUser(c), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondRSVP(c, http.StatusOK, *rsvp)
}

func bindEventInput(c *gin.Context) (EventInput, bool) {
	var input EventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return input, false
	}
	if input.EndTime != nil && !input.EndTime.After(input.StartTime) {
		badRequest(c, "end_time must be after start_time")
		return input, false
	}
	return input, true
}

func (h *Handler) respondEvent(c *gin.Context, status int, event models.Event, approved int64) {
	users, err := h.Users.Lookup(c.Request.Context(), []uint{event.HostID})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, newEventResponse(event, approved, users))
}

func (h *Handler) respondRSVP(c *gin.Context, status int, rsvp models.EventRSVP) {
	users, err := h.Users.Lookup(c.Request.Context(), []uint{rsvp.UserID})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, newRSVPResponses([]models.EventRSVP{rsvp}, users)[0])
}
