// Package lock provides per-entity mutual exclusion for check-then-act
// sequences such as event capacity checks and duplicate connection checks.
package lock

import (
	"context"
	"fmt"
)

// Locker acquires an exclusive hold on key. The returned unlock func must be
// called exactly once. Lock gives up with apperror.ErrLockFailed when ctx is
// done or the implementation's wait budget runs out.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// EventKey scopes RSVP capacity checks to one event.
func EventKey(eventID uint) string {
	return fmt.Sprintf("event:%d", eventID)
}

// GroupKey scopes membership changes to one group.
func GroupKey(groupID uint) string {
	return fmt.Sprintf("group:%d", groupID)
}

// PairKey scopes connection requests to an unordered pair of users.
func PairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("connection:%d:%d", a, b)
}
