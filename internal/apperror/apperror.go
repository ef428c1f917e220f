package apperror

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code returned to API clients.
type Code string

const (
	CodeNotAuthorized       Code = "NOT_AUTHORIZED"
	CodeInvalidState        Code = "INVALID_STATE"
	CodeDuplicateConnection Code = "DUPLICATE_CONNECTION"
	CodeAlreadyRequested    Code = "ALREADY_REQUESTED"
	CodeEventFull           Code = "EVENT_FULL"
	CodeSelfConnection      Code = "SELF_CONNECTION"
	CodeNotAMember          Code = "NOT_A_MEMBER"
	CodeNoPermission        Code = "NO_PERMISSION"
	CodeEmptyContent        Code = "EMPTY_CONTENT"
	CodeProtectedMember     Code = "PROTECTED_MEMBER"
	CodeNotFound            Code = "NOT_FOUND"
	CodeBusy                Code = "RESOURCE_BUSY"
	CodeInternal            Code = "INTERNAL"
)

// AppError is a typed failure of a core operation.
type AppError struct {
	Code    Code   // machine-readable code
	Message string // user-facing message
	Err     error  // underlying cause, optional
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap supports errors.Unwrap.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap returns a copy of e carrying err as its cause.
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{Code: e.Code, Message: e.Message, Err: err}
}

// Is reports whether err is an AppError with the same code as target.
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of err, or CodeInternal if err is not an AppError.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal server error"
}

// Internal wraps a storage or infrastructure failure.
func Internal(err error) *AppError {
	return ErrInternal.Wrap(err)
}

// Normalize passes AppErrors through and wraps anything else as internal.
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	return Internal(err)
}

// Connection ledger
var (
	ErrSelfConnection      = New(CodeSelfConnection, "Cannot connect with yourself")
	ErrDuplicateConnection = New(CodeDuplicateConnection, "An active connection already exists between these users")
	ErrConnectionNotFound  = New(CodeNotFound, "Connection not found")
	ErrNotRecipient        = New(CodeNotAuthorized, "Only the recipient can respond to this request")
	ErrNotParty            = New(CodeNotAuthorized, "Not a party to this connection")
	ErrNotPending          = New(CodeInvalidState, "Connection is no longer pending")
	ErrInvalidDecision     = New(CodeInvalidState, "Decision must be accepted or rejected")
)

// Roster, groups and messaging
var (
	ErrEventNotFound     = New(CodeNotFound, "Event not found")
	ErrEventCancelled    = New(CodeInvalidState, "Event is cancelled")
	ErrEventFull         = New(CodeEventFull, "Event is full")
	ErrCapacityTooLow    = New(CodeEventFull, "Capacity is below the approved participant count")
	ErrNotHost           = New(CodeNotAuthorized, "Only the event host can do this")
	ErrAlreadyRequested  = New(CodeAlreadyRequested, "Already requested to join this event")
	ErrHostIsAttending   = New(CodeAlreadyRequested, "The host already attends this event")
	ErrRSVPNotFound      = New(CodeNotFound, "RSVP not found")
	ErrRSVPNotPending    = New(CodeInvalidState, "RSVP is not pending")
	ErrRSVPRejected      = New(CodeInvalidState, "RSVP was rejected")
	ErrRSVPNotApproved   = New(CodeInvalidState, "User is not an approved participant")
	ErrEmptyEventTitle   = New(CodeEmptyContent, "Event title is required")
	ErrInvalidCapacity   = New(CodeInvalidState, "max_participants must be positive")
	ErrSportNotFound     = New(CodeNotFound, "Sport not found")
	ErrGroupNotFound     = New(CodeNotFound, "Group not found")
	ErrNotGroupAdmin     = New(CodeNotAuthorized, "Only group admins can do this")
	ErrProtectedMember   = New(CodeProtectedMember, "The group creator cannot be removed")
	ErrNotGroupMember    = New(CodeNotAMember, "Not a member of this group")
	ErrEmptyGroupName    = New(CodeEmptyContent, "Group name is required")
	ErrNoMembers         = New(CodeEmptyContent, "At least one member is required")
	ErrUserNotFound      = New(CodeNotFound, "User not found")
	ErrEmptyDisplayName  = New(CodeEmptyContent, "Display name is required")
	ErrNotEventAttendee  = New(CodeNoPermission, "Only the host and approved participants can do this")
	ErrMessageNotFound   = New(CodeNotFound, "Message not found")
	ErrEmptyContent      = New(CodeEmptyContent, "Message content is empty")
	ErrSelfMessage       = New(CodeSelfConnection, "Cannot message yourself")
	ErrNotReceiver       = New(CodeNotAuthorized, "Only the receiver can mark this message read")
	ErrInvalidTargetKind = New(CodeInvalidState, "Unknown channel kind")
)

// System
var (
	ErrInternal   = New(CodeInternal, "Internal server error")
	ErrLockFailed = New(CodeBusy, "Resource is busy, try again")
)
