package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			err:      New(CodeEventFull, "Event is full"),
			expected: "[EVENT_FULL] Event is full",
		},
		{
			name:     "with wrapped error",
			err:      New(CodeInternal, "db").Wrap(errors.New("connection refused")),
			expected: "[INTERNAL] db: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_WrapKeepsCode(t *testing.T) {
	cause := errors.New("boom")
	err := ErrEventFull.Wrap(cause)

	assert.Equal(t, CodeEventFull, err.Code)
	assert.Equal(t, ErrEventFull.Message, err.Message)
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   *AppError
		expected bool
	}{
		{"same error", ErrProtectedMember, ErrProtectedMember, true},
		{"same code different sentinel", ErrCapacityTooLow, ErrEventFull, true},
		{"wrapped by fmt", fmt.Errorf("approve: %w", ErrEventFull), ErrEventFull, true},
		{"different code", ErrNotHost, ErrEventFull, false},
		{"plain error", errors.New("x"), ErrEventFull, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Is(tt.err, tt.target))
		})
	}
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotAMember, CodeOf(ErrNotGroupMember))
	assert.Equal(t, CodeBusy, CodeOf(ErrLockFailed.Wrap(errors.New("wait exhausted"))))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.True(t, HasCode(Internal(errors.New("x")), CodeInternal))
	assert.Equal(t, "Internal server error", MessageOf(errors.New("plain")))
	assert.Equal(t, ErrEmptyContent.Message, MessageOf(ErrEmptyContent))
}

func TestNormalize(t *testing.T) {
	assert.NoError(t, Normalize(nil))
	assert.Same(t, ErrEventFull, Normalize(ErrEventFull))

	err := Normalize(errors.New("disk full"))
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.EqualError(t, errors.Unwrap(err), "disk full")
}
