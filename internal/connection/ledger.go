// Package connection implements the buddy connection ledger: pairwise
// requests, responses and removals between users.
package connection

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"fitbuddy/backend/internal/apperror"
	"fitbuddy/backend/internal/identity"
	"fitbuddy/backend/internal/lock"
	"fitbuddy/backend/internal/models"

	"gorm.io/gorm"
)

var activeStatuses = []models.ConnectionStatus{models.ConnectionPending, models.ConnectionAccepted}

// Ledger stores buddy connections and enforces their state machine.
type Ledger struct {
	db     *gorm.DB
	locker lock.Locker
	logger *slog.Logger
}

// NewLedger creates a Ledger.
func NewLedger(db *gorm.DB, locker lock.Locker) *Ledger {
	return &Ledger{
		db:     db,
		locker: locker,
		logger: slog.Default(),
	}
}

// Request creates a pending connection from initiator to recipient.
// At most one pending or accepted connection may exist per unordered pair.
func (l *Ledger) Request(ctx context.Context, initiatorID, recipientID uint, message *string) (*models.Connection, error) {
	if initiatorID == recipientID {
		return nil, apperror.ErrSelfConnection
	}
	if err := identity.RequireAll(ctx, l.db, []uint{recipientID}); err != nil {
		return nil, err
	}

	unlock, err := l.locker.Lock(ctx, lock.PairKey(initiatorID, recipientID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	conn := models.Connection{
		InitiatorID: initiatorID,
		RecipientID: recipientID,
		Status:      models.ConnectionPending,
		Message:     normalizeMessage(message),
	}

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := activeBetween(tx, initiatorID, recipientID)
		if err != nil {
			return err
		}
		if active != nil {
			return apperror.ErrDuplicateConnection
		}
		return tx.Create(&conn).Error
	})
	if err != nil {
		return nil, apperror.Normalize(err)
	}

	l.logger.Info("Connection requested", "connectionId", conn.ID, "initiatorId", initiatorID, "recipientId", recipientID)
	return &conn, nil
}

// Respond moves a pending connection to accepted or rejected. Only the
// recipient may respond.
func (l *Ledger) Respond(ctx context.Context, connectionID, responderID uint, decision models.ConnectionStatus) (*models.Connection, error) {
	conn, err := l.find(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if !canRespond(conn, responderID) {
		return nil, apperror.ErrNotRecipient
	}
	if !decision.IsDecision() {
		return nil, apperror.ErrInvalidDecision
	}
	if conn.Status != models.ConnectionPending {
		return nil, apperror.ErrNotPending
	}

	// The status guard makes a concurrent second response lose cleanly.
	result := l.db.WithContext(ctx).Model(&models.Connection{}).
		Where("id = ? AND status = ?", connectionID, models.ConnectionPending).
		Update("status", decision)
	if result.Error != nil {
		return nil, apperror.Internal(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperror.ErrNotPending
	}

	conn.Status = decision
	l.logger.Info("Connection responded", "connectionId", connectionID, "status", decision)
	return conn, nil
}

// Remove deletes a connection in any status. Either party may remove it and
// removing an absent connection is a no-op.
func (l *Ledger) Remove(ctx context.Context, connectionID, actorID uint) error {
	conn, err := l.find(ctx, connectionID)
	if apperror.Is(err, apperror.ErrConnectionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !conn.Involves(actorID) {
		return apperror.ErrNotParty
	}

	if err := l.db.WithContext(ctx).Delete(&models.Connection{}, connectionID).Error; err != nil {
		return apperror.Internal(err)
	}

	l.logger.Info("Connection removed", "connectionId", connectionID, "actorId", actorID)
	return nil
}

// ListForUser returns every connection the user is a party to, newest first.
// A nil status returns all statuses.
func (l *Ledger) ListForUser(ctx context.Context, userID uint, status *models.ConnectionStatus) ([]models.Connection, error) {
	query := l.db.WithContext(ctx).
		Where("initiator_id = ? OR recipient_id = ?", userID, userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	conns := []models.Connection{}
	if err := query.Order("created_at DESC").Order("id DESC").Find(&conns).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	return conns, nil
}

// Get returns a single connection visible to one of its parties.
func (l *Ledger) Get(ctx context.Context, connectionID, viewerID uint) (*models.Connection, error) {
	conn, err := l.find(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if !conn.Involves(viewerID) {
		return nil, apperror.ErrNotParty
	}
	return conn, nil
}

// ActiveBetween returns the pending or accepted connection between two users,
// or nil when there is none.
func (l *Ledger) ActiveBetween(ctx context.Context, a, b uint) (*models.Connection, error) {
	conn, err := activeBetween(l.db.WithContext(ctx), a, b)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return conn, nil
}

// BuddyCount returns the number of accepted connections of a user.
func (l *Ledger) BuddyCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&models.Connection{}).
		Where("(initiator_id = ? OR recipient_id = ?) AND status = ?", userID, userID, models.ConnectionAccepted).
		Count(&count).Error
	if err != nil {
		return 0, apperror.Internal(err)
	}
	return count, nil
}

func (l *Ledger) find(ctx context.Context, connectionID uint) (*models.Connection, error) {
	var conn models.Connection
	err := l.db.WithContext(ctx).First(&conn, connectionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrConnectionNotFound
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &conn, nil
}

// activeBetween looks in both directions.
func activeBetween(db *gorm.DB, a, b uint) (*models.Connection, error) {
	var conn models.Connection
	err := db.
		Where("((initiator_id = ? AND recipient_id = ?) OR (initiator_id = ? AND recipient_id = ?)) AND status IN ?", a, b, b, a, activeStatuses).
		First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// canRespond is the authorization predicate for Respond.
func canRespond(conn *models.Connection, responderID uint) bool {
	return conn.RecipientID == responderID
}

func normalizeMessage(message *string) *string {
	if message == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*message)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
