package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fitbuddy/backend/internal/apperror"
	"fitbuddy/backend/internal/connection"
	"fitbuddy/backend/internal/conversation"
	"fitbuddy/backend/internal/identity"
	"fitbuddy/backend/internal/lock"
	"fitbuddy/backend/internal/message"
	"fitbuddy/backend/internal/models"
	"fitbuddy/backend/internal/roster"
	"fitbuddy/backend/internal/testutil"
	"fitbuddy/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "handler-test-secret"

type testServer struct {
	db     *gorm.DB
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	locker := lock.NewLocal(5 * time.Second)
	users := identity.NewDirectory(db)
	rsvps := roster.NewRSVPs(db, locker)
	groups := roster.NewGroups(db, locker)

	h := &Handler{
		DB:            db,
		Users:         users,
		Connections:   connection.NewLedger(db, locker),
		Events:        roster.NewEvents(db, locker),
		RSVPs:         rsvps,
		Groups:        groups,
		Messages:      message.NewStore(db, groups, rsvps),
		Conversations: conversation.NewAggregator(db, users),
		PollInterval:  30 * time.Second,
	}
	return &testServer{db: db, router: NewRouter(h, testSecret)}
}

func (s *testServer) token(t *testing.T, userID uint) string {
	t.Helper()
	token, err := jwt.GenerateToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, "/api/v1"+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func requireCode(t *testing.T, w *httptest.ResponseRecorder, status int, code apperror.Code) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	assert.Equal(t, string(code), decode[ErrorResponse](t, w).Code)
}

func TestPing(t *testing.T) {
	s := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, "/ping", nil)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestGetSports(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.db.Create(&[]models.Sport{{Name: "Running"}, {Name: "Climbing"}, {Name: "Rowing"}}).Error)

	w := s.do(t, http.MethodGet, "/sports", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sports := decode[[]SportResponse](t, w)
	require.Len(t, sports, 3)
	assert.Equal(t, "Climbing", sports[0].Name)

	w = s.do(t, http.MethodGet, "/sports?q=ro", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sports = decode[[]SportResponse](t, w)
	require.Len(t, sports, 1)
	assert.Equal(t, "Rowing", sports[0].Name)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/users/me", "/connections", "/groups", "/conversations"} {
		w := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestUserProfile(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, 42)

	w := s.do(t, http.MethodPut, "/users/me", token, ProfileInput{DisplayName: "Rae", AvatarURL: "https://cdn.test/rae.png"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, UserResponse{ID: 42, DisplayName: "Rae", AvatarURL: "https://cdn.test/rae.png"}, decode[UserResponse](t, w))

	w = s.do(t, http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[PrivateUserResponse](t, w)
	assert.Equal(t, "Rae", me.DisplayName)
	assert.Zero(t, me.BuddyCount)
	assert.Zero(t, me.UnreadCount)

	w = s.do(t, http.MethodPut, "/users/me", token, map[string]string{"avatar_url": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/users/999", token, nil)
	requireCode(t, w, http.StatusNotFound, apperror.CodeNotFound)
}

func TestConnectionFlow(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateUser(t, s.db, "alice")
	bob := testutil.CreateUser(t, s.db, "bob")
	aliceToken, bobToken := s.token(t, alice.ID), s.token(t, bob.ID)

	w := s.do(t, http.MethodPost, "/connections", aliceToken, ConnectionInput{RecipientID: bob.ID, Message: testutil.Ptr("Run on Sunday?")})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	conn := decode[ConnectionResponse](t, w)
	assert.Equal(t, models.ConnectionPending, conn.Status)
	assert.Equal(t, bob.ID, conn.Peer.ID)
	assert.Equal(t, "bob", conn.Peer.DisplayName)

	w = s.do(t, http.MethodPost, "/connections", bobToken, ConnectionInput{RecipientID: alice.ID})
	requireCode(t, w, http.StatusConflict, apperror.CodeDuplicateConnection)

	w = s.do(t, http.MethodPost, "/connections", aliceToken, ConnectionInput{RecipientID: alice.ID})
	requireCode(t, w, http.StatusBadRequest, apperror.CodeSelfConnection)

	path := fmt.Sprintf("/connections/%d/respond", conn.ID)
	w = s.do(t, http.MethodPost, path, aliceToken, RespondInput{Status: models.ConnectionAccepted})
	requireCode(t, w, http.StatusForbidden, apperror.CodeNotAuthorized)

	w = s.do(t, http.MethodPost, path, bobToken, RespondInput{Status: "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, path, bobToken, RespondInput{Status: models.ConnectionAccepted})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.ConnectionAccepted, decode[ConnectionResponse](t, w).Status)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/users/%d", bob.ID), aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[PublicUserResponse](t, w)
	assert.EqualValues(t, 1, profile.BuddyCount)
	require.NotNil(t, profile.Connection)
	assert.Equal(t, models.ConnectionAccepted, profile.Connection.Status)
	assert.Equal(t, alice.ID, profile.Connection.InitiatedBy)

	w = s.do(t, http.MethodGet, "/connections?status=accepted", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]ConnectionResponse](t, w), 1)

	w = s.do(t, http.MethodGet, "/connections?status=bogus", bobToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, fmt.Sprintf("/connections/%d", conn.ID), bobToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodDelete, fmt.Sprintf("/connections/%d", conn.ID), bobToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestEventRSVPFlow(t *testing.T) {
	s := newTestServer(t)
	host := testutil.CreateUser(t, s.db, "host")
	u1 := testutil.CreateUser(t, s.db, "u1")
	u2 := testutil.CreateUser(t, s.db, "u2")
	hostToken, u1Token, u2Token := s.token(t, host.ID), s.token(t, u1.ID), s.token(t, u2.ID)

	w := s.do(t, http.MethodPost, "/events", hostToken, EventInput{
		Title:           "Track intervals",
		Location:        "Stadium",
		StartTime:       time.Now().UTC().Add(24 * time.Hour),
		MaxParticipants: testutil.Ptr(1),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	event := decode[EventResponse](t, w)
	assert.False(t, event.IsPublic)
	assert.Equal(t, "host", event.Host.DisplayName)

	base := fmt.Sprintf("/events/%d", event.ID)
	for _, token := range []string{u1Token, u2Token} {
		w = s.do(t, http.MethodPost, base+"/rsvp", token, nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, models.RSVPPending, decode[RSVPResponse](t, w).Status)
	}

	w = s.do(t, http.MethodPost, base+"/rsvp", u1Token, nil)
	requireCode(t, w, http.StatusConflict, apperror.CodeAlreadyRequested)

	w = s.do(t, http.MethodPost, fmt.Sprintf("%s/rsvps/%d/approve", base, u1.ID), u2Token, nil)
	requireCode(t, w, http.StatusForbidden, apperror.CodeNotAuthorized)

	w = s.do(t, http.MethodPost, fmt.Sprintf("%s/rsvps/%d/approve", base, u1.ID), hostToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.RSVPApproved, decode[RSVPResponse](t, w).Status)

	w = s.do(t, http.MethodPost, fmt.Sprintf("%s/rsvps/%d/approve", base, u2.ID), hostToken, nil)
	requireCode(t, w, http.StatusConflict, apperror.CodeEventFull)

	w = s.do(t, http.MethodGet, base+"/rsvps", hostToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[HostRSVPsResponse](t, w)
	assert.Len(t, view.Approved, 1)
	assert.Len(t, view.Pending, 1)
	assert.Empty(t, view.Rejected)

	w = s.do(t, http.MethodGet, base, u1Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[EventDetailResponse](t, w)
	assert.EqualValues(t, 1, detail.ApprovedCount)
	assert.EqualValues(t, 1, detail.PendingCount)
	require.NotNil(t, detail.MyStatus)
	assert.Equal(t, models.RSVPApproved, *detail.MyStatus)
	assert.True(t, detail.CanChat)

	w = s.do(t, http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail = decode[EventDetailResponse](t, w)
	assert.Nil(t, detail.MyStatus)
	assert.False(t, detail.CanChat)

	w = s.do(t, http.MethodDelete, fmt.Sprintf("%s/participants/%d", base, u1.ID), hostToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodPost, fmt.Sprintf("%s/rsvps/%d/approve", base, u2.ID), hostToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, base+"/participants", u1Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	participants := decode[[]RSVPResponse](t, w)
	require.Len(t, participants, 1)
	assert.Equal(t, u2.ID, participants[0].User.ID)
}

func TestEventValidationAndListing(t *testing.T) {
	s := newTestServer(t)
	host := testutil.CreateUser(t, s.db, "host")
	token := s.token(t, host.ID)
	start := time.Now().UTC().Add(time.Hour)

	w := s.do(t, http.MethodPost, "/events", token, EventInput{Title: "No end", StartTime: start, EndTime: testutil.Ptr(start.Add(-time.Minute))})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/events", token, map[string]any{"title": "Zero cap", "start_time": start, "max_participants": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for i := 0; i < 3; i++ {
		w = s.do(t, http.MethodPost, "/events", token, EventInput{Title: fmt.Sprintf("Ride %d", i), StartTime: start.Add(time.Duration(i) * time.Hour), IsPublic: true})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/events?limit=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[PaginatedEventResponse](t, w)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "Ride 0", page.Data[0].Title)
	assert.EqualValues(t, 3, page.Meta.TotalItems)
	assert.Equal(t, 2, page.Meta.TotalPages)

	w = s.do(t, http.MethodGet, "/events?sport_ids=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/events?mine=true", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/events/999", "", nil)
	requireCode(t, w, http.StatusNotFound, apperror.CodeNotFound)
}

func TestGroupFlow(t *testing.T) {
	s := newTestServer(t)
	owner := testutil.CreateUser(t, s.db, "owner")
	member := testutil.CreateUser(t, s.db, "member")
	outsider := testutil.CreateUser(t, s.db, "outsider")
	ownerToken, memberToken, outsiderToken := s.token(t, owner.ID), s.token(t, member.ID), s.token(t, outsider.ID)

	w := s.do(t, http.MethodPost, "/groups", ownerToken, CreateGroupInput{Name: "Climbers", MemberIDs: []uint{member.ID}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	group := decode[GroupDetailResponse](t, w)
	assert.EqualValues(t, 2, group.MemberCount)
	assert.True(t, group.IsAdmin)
	require.Len(t, group.Members, 2)
	assert.Equal(t, owner.ID, group.Members[0].User.ID)

	base := fmt.Sprintf("/groups/%d", group.ID)
	w = s.do(t, http.MethodGet, base, outsiderToken, nil)
	requireCode(t, w, http.StatusForbidden, apperror.CodeNotAMember)

	w = s.do(t, http.MethodPost, base+"/members", memberToken, AddMembersInput{UserIDs: []uint{outsider.ID}})
	requireCode(t, w, http.StatusForbidden, apperror.CodeNotAuthorized)

	w = s.do(t, http.MethodPost, base+"/members", ownerToken, AddMembersInput{UserIDs: []uint{outsider.ID, member.ID}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodDelete, fmt.Sprintf("%s/members/%d", base, owner.ID), ownerToken, nil)
	requireCode(t, w, http.StatusConflict, apperror.CodeProtectedMember)

	w = s.do(t, http.MethodPut, base, ownerToken, UpdateGroupInput{Name: testutil.Ptr("Boulderers")})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Boulderers", decode[GroupResponse](t, w).Name)

	w = s.do(t, http.MethodPost, base+"/leave", outsiderToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/groups", memberToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	groups := decode[[]GroupResponse](t, w)
	require.Len(t, groups, 1)
	assert.Equal(t, "Boulderers", groups[0].Name)
}

func TestMessagingAndInbox(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateUser(t, s.db, "alice")
	bob := testutil.CreateUser(t, s.db, "bob")
	carol := testutil.CreateUser(t, s.db, "carol")
	aliceToken, bobToken, carolToken := s.token(t, alice.ID), s.token(t, bob.ID), s.token(t, carol.ID)

	group := testutil.CreateGroup(t, s.db, alice.ID, "Crew", bob.ID)
	event := testutil.CreateEvent(t, s.db, alice.ID, "Swim", testutil.Private())

	w := s.do(t, http.MethodPost, "/messages", carolToken, SendMessageInput{Kind: models.ChannelEvent, TargetID: event.ID, Content: "hi"})
	requireCode(t, w, http.StatusForbidden, apperror.CodeNoPermission)

	w = s.do(t, http.MethodPost, "/messages", carolToken, SendMessageInput{Kind: models.ChannelGroup, TargetID: group.ID, Content: "hi"})
	requireCode(t, w, http.StatusForbidden, apperror.CodeNotAMember)

	w = s.do(t, http.MethodPost, "/messages", aliceToken, SendMessageInput{Kind: models.ChannelDirect, TargetID: bob.ID, Content: "   "})
	requireCode(t, w, http.StatusBadRequest, apperror.CodeEmptyContent)

	w = s.do(t, http.MethodPost, "/messages", aliceToken, SendMessageInput{Kind: "broadcast", TargetID: bob.ID, Content: "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/messages", bobToken, SendMessageInput{Kind: models.ChannelGroup, TargetID: group.ID, Content: "Crag at 9"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var direct ChatMessageResponse
	for _, content := range []string{"hey", "you there?"} {
		w = s.do(t, http.MethodPost, "/messages", aliceToken, SendMessageInput{Kind: models.ChannelDirect, TargetID: bob.ID, Content: content})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		direct = decode[ChatMessageResponse](t, w)
	}
	assert.Equal(t, models.ChannelDirect, direct.Kind)
	assert.Equal(t, "alice", direct.Sender.DisplayName)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/messages/direct/%d", alice.ID), bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[[]ChatMessageResponse](t, w)
	require.Len(t, history, 2)
	assert.Equal(t, "hey", history[0].Content)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/messages/chat/%d", alice.ID), bobToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/conversations", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	inbox := decode[InboxResponse](t, w)
	assert.EqualValues(t, 2, inbox.TotalUnread)
	assert.Equal(t, 30, inbox.PollIntervalSeconds)
	require.Len(t, inbox.Conversations, 2)
	assert.Equal(t, models.ChannelDirect, inbox.Conversations[0].Kind)
	assert.Equal(t, "alice", inbox.Conversations[0].Name)
	require.NotNil(t, inbox.Conversations[0].LastMessage)
	assert.Equal(t, "you there?", inbox.Conversations[0].LastMessage.Content)
	assert.Equal(t, models.ChannelGroup, inbox.Conversations[1].Kind)
	require.NotNil(t, inbox.Conversations[1].MemberCount)
	assert.EqualValues(t, 2, *inbox.Conversations[1].MemberCount)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/messages/%d/read", direct.ID), aliceToken, nil)
	requireCode(t, w, http.StatusForbidden, apperror.CodeNotAuthorized)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/messages/%d/read", direct.ID), bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/conversations/unread", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[UnreadResponse](t, w).TotalUnread)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/conversations/direct/%d/read", alice.ID), bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[MarkedResponse](t, w).Marked)

	w = s.do(t, http.MethodGet, "/users/me", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[PrivateUserResponse](t, w).UnreadCount)
}

func TestRespondErrorBusyLock(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/events/1/rsvp", nil)

	respondError(c, apperror.ErrLockFailed.Wrap(context.DeadlineExceeded))

	requireCode(t, w, http.StatusServiceUnavailable, apperror.CodeBusy)
	assert.Equal(t, "Resource is busy, try again", decode[ErrorResponse](t, w).Error)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code     apperror.Code
		expected int
	}{
		{apperror.CodeNotAuthorized, http.StatusForbidden},
		{apperror.CodeNoPermission, http.StatusForbidden},
		{apperror.CodeNotAMember, http.StatusForbidden},
		{apperror.CodeNotFound, http.StatusNotFound},
		{apperror.CodeDuplicateConnection, http.StatusConflict},
		{apperror.CodeAlreadyRequested, http.StatusConflict},
		{apperror.CodeEventFull, http.StatusConflict},
		{apperror.CodeInvalidState, http.StatusConflict},
		{apperror.CodeProtectedMember, http.StatusConflict},
		{apperror.CodeEmptyContent, http.StatusBadRequest},
		{apperror.CodeSelfConnection, http.StatusBadRequest},
		{apperror.CodeBusy, http.StatusServiceUnavailable},
		{apperror.CodeInternal, http.StatusInternalServerError},
		{apperror.Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, statusFor(tt.code))
		})
	}
}
