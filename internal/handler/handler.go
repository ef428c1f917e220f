package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fitbuddy/backend/internal/apperror"
	"fitbuddy/backend/internal/auth"
	"fitbuddy/backend/internal/connection"
	"fitbuddy/backend/internal/conversation"
	"fitbuddy/backend/internal/identity"
	"fitbuddy/backend/internal/message"
	"fitbuddy/backend/internal/models"
	"fitbuddy/backend/internal/roster"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler holds the services behind the HTTP API.
type Handler struct {
	DB            *gorm.DB
	Users         *identity.Directory
	Connections   *connection.Ledger
	Events        *roster.Events
	RSVPs         *roster.RSVPs
	Groups        *roster.Groups
	Messages      *message.Store
	Conversations *conversation.Aggregator
	PollInterval  time.Duration
}

// region --- Shared DTOs ---

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error" example:"An error message"`
	Code  string `json:"code,omitempty" example:"EVENT_FULL"`
}

// UserResponse is the public projection of a user.
type UserResponse struct {
	ID          uint   `json:"id" example:"1"`
	DisplayName string `json:"display_name" example:"Rae"`
	AvatarURL   string `json:"avatar_url" example:"https://cdn.example.com/rae.png"`
}

func newUserResponse(id uint, users map[uint]models.User) UserResponse {
	user := users[id]
	return UserResponse{ID: id, DisplayName: user.DisplayName, AvatarURL: user.AvatarURL}
}

// MessageResponse is a status-only acknowledgement.
type MessageResponse struct {
	Message string `json:"message" example:"ok"`
}

// endregion

// region --- Helpers ---

var statusByCode = map[apperror.Code]int{
	apperror.CodeNotAuthorized:       http.StatusForbidden,
	apperror.CodeNoPermission:        http.StatusForbidden,
	apperror.CodeNotAMember:          http.StatusForbidden,
	apperror.CodeNotFound:            http.StatusNotFound,
	apperror.CodeDuplicateConnection: http.StatusConflict,
	apperror.CodeAlreadyRequested:    http.StatusConflict,
	apperror.CodeEventFull:           http.StatusConflict,
	apperror.CodeInvalidState:        http.StatusConflict,
	apperror.CodeProtectedMember:     http.StatusConflict,
	apperror.CodeEmptyContent:        http.StatusBadRequest,
	apperror.CodeSelfConnection:      http.StatusBadRequest,
	apperror.CodeBusy:                http.StatusServiceUnavailable,
	apperror.CodeInternal:            http.StatusInternalServerError,
}

// statusFor maps an error code to its HTTP status.
func statusFor(code apperror.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes err as an ErrorResponse. Internal errors are logged and
// their cause is not exposed.
func respondError(c *gin.Context, err error) {
	code := apperror.CodeOf(err)
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, ErrorResponse{Error: apperror.MessageOf(err), Code: string(code)})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

// currentUser returns the authenticated caller. Routes using it sit behind
// AuthMiddleware.
func currentUser(c *gin.Context) uint {
	userID, _ := auth.UserID(c)
	return userID
}

// pathID parses a positive id path parameter, answering 400 on failure.
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// Helper to split comma-separated strings
func splitCommaSeparated(s string) []string {
	var result []string
	parts := strings.Split(s, ",")
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// endregion
