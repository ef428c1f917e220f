package roster

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"fitbuddy/backend/internal/apperror"
	"fitbuddy/backend/internal/models"
	"fitbuddy/backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approvedCount(t *testing.T, f fixture, eventID uint) int64 {
	t.Helper()
	count, err := countByStatus(f.db, eventID, models.RSVPApproved)
	require.NoError(t, err)
	return count
}

func TestRSVP_PrivateEventCapacityScenario(t *testing.T) {
	f := setup(t)
	host := testutil.CreateUser(t, f.db, "host")
	x := testutil.CreateUser(t, f.db, "x")
	y := testutil.CreateUser(t, f.db, "y")
	ctx := context.Background()

	event := testutil.CreateEvent(t, f.db, host.ID, "Tennis doubles", testutil.Private(), testutil.Capacity(1))

	rx, err := f.rsvps.RSVP(ctx, event.ID, x.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RSVPPending, rx.Status)

	approved, err := f.rsvps.Approve(ctx, event.ID, host.ID, x.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RSVPApproved, approved.Status)
	assert.Equal(t, int64(1), approvedCount(t, f, event.ID))

	ry, err := f.rsvps.RSVP(ctx, event.ID, y.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RSVPPending, ry.Status, "private events never auto-approve")

	_, err = f.rsvps.Approve(ctx, event.ID, host.ID, y.ID)
	assert.True(t, apperror.Is(err, apperror.ErrEventFull))
	assert.Equal(t, int64(1), approvedCount(t, f, event.ID))
}

func TestRSVP_PublicEvent(t *testing.T) {
	f := setup(t)
	host := testutil.CreateUser(t, f.db, "host")
	x := testutil.CreateUser(t, f.db, "x")
	y := testutil.CreateUser(t, f.db, "y")
	ctx := context.Background()

	event := testutil.CreateEvent(t, f.db, host.ID, "Beach volley", testutil.Capacity(1))

	rx, err := f.rsvps.RSVP(ctx, event.ID, x.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RSVPApproved, rx.Status)

	_, err = f.rsvps.RSVP(ctx, event.ID, x.ID)
	assert.True(t, apperror.Is(err, apperror.ErrAlreadyRequested))

	_, err = f.rsvps.RSVP(ctx, event.ID, y.ID)
	assert.True(t, apperror.Is(err, apperror.ErrEventFull))

	// Withdrawing frees the seat.
	require.NoError(t, f.rsvps.Withdraw(ctx, event.ID, x.ID))
	ry, err := f.rsvps.RSVP(ctx, event.ID, y.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RSVPApproved, ry.Status)
}

func TestRSVP_Rejections(t *testing.T) {
	f := setup(t)
	host := testutil.CreateUser(t, f.db, "host")
	x := testutil.CreateUser(t, f.db, "x")
	ctx := context.Background()

	event := testutil.CreateEvent(t, f.db, host.ID, "Trail ride", testutil.Private())
	cancelled := testutil.CreateEvent(t, f.db, host.ID, "Rained out", testutil.Cancelled())

	_, err := f.rsvps.RSVP(ctx, event.ID, host.ID)
	assert.Equal(t, apperror.CodeAlreadyRequested, apperror.CodeOf(err))

	_, err = f.rsvps.RSVP(ctx, cancelled.ID, x.ID)
	assert.True(t, apperror.Is(err, apperror.ErrEventCancelled))

	_, err = f.rsvps.RSVP(ctx, 999, x.ID)
	assert.True(t, apperror.Is(err, apperror.ErrEventNotFound))

	first, err := f.rsvps.RSVP(ctx, event.ID, x.ID)
	require.NoError(t, err)
	rejected, err := f.rsvps.Reject(ctx, event.ID, host.ID, x.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RSVPRejected, rejected.Status)

	assert.True(t, apperror.Is(f.rsvps.Withdraw(ctx, event.ID, x.ID), apperror.ErrRSVPRejected))

	// A rejected request can be made again and reuses the row.
	again, err := f.rsvps.RSVP(ctx, event.ID, x.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, models.RSVPPending, again.Status)
}

func TestRSVP_Decide(t *testing.T) {
	f := setup(t)
	host := testutil.CreateUser(t, f.db, "host")
	x := testutil.CreateUser(t, f.db, "x")
	ctx := context.Background()

	event := testutil.CreateEvent(t, f.db, host.ID, "Padel", testutil.Private())
	_, err := f.rsvps.RSVP(ctx, event.ID, x.ID)
	require.NoError(t, err)

	_, err = f.rsvps.Approve(ctx, event.ID, x.ID, x.ID)
	assert.True(t, apperror.Is(err, apperror.ErrNotHost))
	_, err = f.rsvps.Reject(ctx, event.ID, x.ID, x.ID)
	assert.Equal(t, apperror.CodeNotAuthorized, apperror.CodeOf(err))

	_, err = f.rsvps.Approve(ctx, event.ID, host.ID, 999)
	assert.True(t, apperror.Is(err, apperror.ErrRSVPNotFound))

	_, err = f.rsvps.Approve(ctx, event.ID, host.ID, x.ID)
	require.NoError(t, err)

	_, err = f.rsvps.Approve(ctx, event.ID, host.ID, x.ID)
	assert.Equal(t, apperror.CodeInvalidState, apperror.CodeOf(err))
	_, err = f.rsvps.Reject(ctx, event.ID, host.ID, x.ID)
	assert.Equal(t, apperror.CodeInvalidState, apperror.CodeOf(err))
}

func TestRSVP_WithdrawIsIdempotent(t *testing.T) {
	f := setup(t)
	host := testutil.CreateUser(t, f.db, "host")
	x := testutil.CreateUser(t, f.db, "x")
	ctx := context.Background()

	event := testutil.CreateEvent(t, f.db, host.ID, "Bouldering", testutil.Capacity(3))
	_, err := f.rsvps.RSVP(ctx, event.ID, x.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), approvedCount(t, f, event.ID))

	require.NoError(t, f.rsvps.Withdraw(ctx, event.ID, x.ID))
	require.NoError(t, f.rsvps.Withdraw(ctx, event.ID, x.ID))
	assert.Zero(t, approvedCount(t, f, event.ID))

	status, err := f.rsvps.StatusFor(ctx, event.ID, x.ID)
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestRSVP_RemoveParticipant(t *testing.T) {
	f := setup(t)
	host := testutil.CreateUser(t, f.db, "host")
	x := testutil.CreateUser(t, f.db, "x")
	y := testutil.CreateUser(t, f.db, "y")
	ctx := context.Background()

	event := testutil.CreateEvent(t, f.db, host.ID, "Rowing", testutil.Private())
	testutil.CreateRSVP(t, f.db, event.ID, x.ID, models.RSVPApproved)
	testutil.CreateRSVP(t, f.db, event.ID, y.ID, models.RSVPPending)

	assert.True(t, apperror.Is(f.rsvps.RemoveParticipant(ctx, event.ID, x.ID, x.ID), apperror.ErrNotHost))
	assert.True(t, apperror.Is(f.rsvps.RemoveParticipant(ctx, event.ID, host.ID, y.ID), apperror.ErrRSVPNotApproved))

	require.NoError(t, f.rsvps.RemoveParticipant(ctx, event.ID, host.ID, x.ID))
	require.NoError(t, f.rsvps.RemoveParticipant(ctx, event.ID, host.ID, x.ID))

	canPost, err := f.rsvps.CanPost(ctx, event.ID, x.ID)
	require.NoError(t, err)
	assert.False(t, canPost)
}

func TestRSVP_ListForHostAndParticipants(t *testing.T) {
	f := setup(t)
	host := testutil.CreateUser(t, f.db, "host")
	ctx := context.Background()

	event := testutil.CreateEvent(t, f.db, host.ID, "Football", testutil.Private())
	var ids []uint
	for i, status := range []models.RSVPStatus{models.RSVPApproved, models.RSVPPending, models.RSVPRejected, models.RSVPApproved} {
		u := testutil.CreateUser(t, f.db, fmt.Sprintf("player%d", i))
		testutil.CreateRSVP(t, f.db, event.ID, u.ID, status)
		ids = append(ids, u.ID)
	}

	_, err := f.rsvps.ListForHost(ctx, event.ID, ids[0])
	assert.True(t, apperror.Is(err, apperror.ErrNotHost))

	view, err := f.rsvps.ListForHost(ctx, event.ID, host.ID)
	require.NoError(t, err)
	assert.Len(t, view.Approved, 2)
	assert.Len(t, view.Pending, 1)
	assert.Len(t, view.Rejected, 1)
	assert.Equal(t, ids[1], view.Pending[0].UserID)

	participants, err := f.rsvps.Participants(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, ids[0], participants[0].UserID)
	assert.Equal(t, ids[3], participants[1].UserID)

	status, err := f.rsvps.StatusFor(ctx, event.ID, ids[2])
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, models.RSVPRejected, *status)
}

func TestRSVP_CanPost(t *testing.T) {
	f := setup(t)
	host := testutil.CreateUser(t, f.db, "host")
	x := testutil.CreateUser(t, f.db, "x")
	y := testutil.CreateUser(t, f.db, "y")
	z := testutil.CreateUser(t, f.db, "z")
	ctx := context.Background()

	event := testutil.CreateEvent(t, f.db, host.ID, "Hike", testutil.Private())
	testutil.CreateRSVP(t, f.db, event.ID, x.ID, models.RSVPApproved)
	testutil.CreateRSVP(t, f.db, event.ID, y.ID, models.RSVPPending)

	tests := []struct {
		name     string
		userID   uint
		expected bool
	}{
		{"host", host.ID, true},
		{"approved participant", x.ID, true},
		{"pending participant", y.ID, false},
		{"stranger", z.ID, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := f.rsvps.CanPost(ctx, event.ID, tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}

	_, err := f.rsvps.CanPost(ctx, 999, host.ID)
	assert.True(t, apperror.Is(err, apperror.ErrEventNotFound))
}

func TestRSVP_LastSeatRace(t *testing.T) {
	f := setup(t)
	host := testutil.CreateUser(t, f.db, "host")
	ctx := context.Background()

	event := testutil.CreateEvent(t, f.db, host.ID, "Final seat", testutil.Capacity(1))
	var users []models.User
	for i := 0; i < 8; i++ {
		users = append(users, testutil.CreateUser(t, f.db, fmt.Sprintf("racer%d", i)))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		full      int
	)
	for _, u := range users {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			_, err := f.rsvps.RSVP(ctx, event.ID, userID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperror.Is(err, apperror.ErrEventFull):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(u.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, len(users)-1, full)
	assert.Equal(t, int64(1), approvedCount(t, f, event.ID))
}

func TestRSVP_ConcurrentApprovals(t *testing.T) {
	f := setup(t)
	host := testutil.CreateUser(t, f.db, "host")
	ctx := context.Background()

	event := testutil.CreateEvent(t, f.db, host.ID, "Two seats", testutil.Private(), testutil.Capacity(2))
	var pending []uint
	for i := 0; i < 6; i++ {
		u := testutil.CreateUser(t, f.db, fmt.Sprintf("waiting%d", i))
		testutil.CreateRSVP(t, f.db, event.ID, u.ID, models.RSVPPending)
		pending = append(pending, u.ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(pending))
	for i, userID := range pending {
		wg.Add(1)
		go func(i int, userID uint) {
			defer wg.Done()
			_, errs[i] = f.rsvps.Approve(ctx, event.ID, host.ID, userID)
		}(i, userID)
	}
	wg.Wait()

	var ok, full int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperror.Is(err, apperror.ErrEventFull):
			full++
		}
	}
	assert.Equal(t, 2, ok)
	assert.Equal(t, 4, full)
	assert.Equal(t, int64(2), approvedCount(t, f, event.ID))
}
