package roster

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"fitbuddy/backend/internal/apperror"
	"fitbuddy/backend/internal/lock"
	"fitbuddy/backend/internal/models"

	"gorm.io/gorm"
)

// HostView is the host's view of an event roster, split by status.
type HostView struct {
	Approved []models.EventRSVP `json:"approved"`
	Pending  []models.EventRSVP `json:"pending"`
	Rejected []models.EventRSVP `json:"rejected"`
}

// RSVPs runs the attendance state machine of events. Every mutation holds
// the event lock for the whole check-then-act so capacity is never exceeded.
type RSVPs struct {
	db     *gorm.DB
	locker lock.Locker
	logger *slog.Logger
	now    func() time.Time
}

// NewRSVPs creates an RSVPs service.
func NewRSVPs(db *gorm.DB, locker lock.Locker) *RSVPs {
	return &RSVPs{
		db:     db,
		locker: locker,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RSVP requests a seat. Public events approve immediately when a seat is
// free; private events queue the request for the host.
func (s *RSVPs) RSVP(ctx context.Context, eventID, userID uint) (*models.EventRSVP, error) {
	var rsvp *models.EventRSVP
	err := s.withEvent(ctx, eventID, func(tx *gorm.DB, event *models.Event) error {
		if event.IsCancelled {
			return apperror.ErrEventCancelled
		}
		if isHost(event, userID) {
			return apperror.ErrHostIsAttending
		}

		existing, err := findRSVP(tx, eventID, userID)
		if err != nil {
			return err
		}
		if existing != nil && existing.Status != models.RSVPRejected {
			return apperror.ErrAlreadyRequested
		}

		status := models.RSVPPending
		if event.IsPublic {
			if err := requireSeat(tx, event); err != nil {
				return err
			}
			status = models.RSVPApproved
		}

		now := s.now()
		if existing != nil {
			existing.Status = status
			existing.RequestedAt = now
			rsvp = existing
			return tx.Save(existing).Error
		}
		rsvp = &models.EventRSVP{EventID: eventID, UserID: userID, Status: status, RequestedAt: now}
		return tx.Create(rsvp).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("RSVP created", "eventId", eventID, "userId", userID, "status", rsvp.Status)
	return rsvp, nil
}

// Approve admits a pending request. Host only.
func (s *RSVPs) Approve(ctx context.Context, eventID, hostID, userID uint) (*models.EventRSVP, error) {
	rsvp, err := s.decide(ctx, eventID, hostID, userID, models.RSVPApproved)
	if err != nil {
		return nil, err
	}
	s.logger.Info("RSVP approved", "eventId", eventID, "userId", userID)
	return rsvp, nil
}

// Reject declines a pending request. Host only.
func (s *RSVPs) Reject(ctx context.Context, eventID, hostID, userID uint) (*models.EventRSVP, error) {
	rsvp, err := s.decide(ctx, eventID, hostID, userID, models.RSVPRejected)
	if err != nil {
		return nil, err
	}
	s.logger.Info("RSVP rejected", "eventId", eventID, "userId", userID)
	return rsvp, nil
}

// Withdraw deletes the caller's pending or approved RSVP. Withdrawing twice
// is a no-op; a rejected RSVP cannot be withdrawn.
func (s *RSVPs) Withdraw(ctx context.Context, eventID, userID uint) error {
	unlock, err := s.locker.Lock(ctx, lock.EventKey(eventID))
	if err != nil {
		return err
	}
	defer unlock()

	var removed bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rsvp, err := findRSVP(tx, eventID, userID)
		if err != nil || rsvp == nil {
			return err
		}
		if rsvp.Status == models.RSVPRejected {
			return apperror.ErrRSVPRejected
		}
		removed = true
		return tx.Delete(rsvp).Error
	})
	if err != nil {
		return apperror.Normalize(err)
	}

	if removed {
		s.logger.Info("RSVP withdrawn", "eventId", eventID, "userId", userID)
	}
	return nil
}

// RemoveParticipant lets the host drop an approved participant, freeing the
// seat. Removing someone who is not on the roster is a no-op.
func (s *RSVPs) RemoveParticipant(ctx context.Context, eventID, hostID, userID uint) error {
	var removed bool
	err := s.withEvent(ctx, eventID, func(tx *gorm.DB, event *models.Event) error {
		if !isHost(event, hostID) {
			return apperror.ErrNotHost
		}
		rsvp, err := findRSVP(tx, eventID, userID)
		if err != nil || rsvp == nil {
			return err
		}
		if rsvp.Status != models.RSVPApproved {
			return apperror.ErrRSVPNotApproved
		}
		removed = true
		return tx.Delete(rsvp).Error
	})
	if err != nil {
		return err
	}

	if removed {
		s.logger.Info("Participant removed", "eventId", eventID, "userId", userID, "hostId", hostID)
	}
	return nil
}

// ListForHost returns every RSVP of an event grouped by status, oldest
// request first. Host only.
func (s *RSVPs) ListForHost(ctx context.Context, eventID, hostID uint) (*HostView, error) {
	db := s.db.WithContext(ctx)
	event, err := findEvent(db, eventID)
	if err != nil {
		return nil, err
	}
	if !isHost(event, hostID) {
		return nil, apperror.ErrNotHost
	}

	var rsvps []models.EventRSVP
	if err := db.Where("event_id = ?", eventID).Order("requested_at ASC").Order("id ASC").Find(&rsvps).Error; err != nil {
		return nil, apperror.Internal(err)
	}

	view := &HostView{
		Approved: []models.EventRSVP{},
		Pending:  []models.EventRSVP{},
		Rejected: []models.EventRSVP{},
	}
	for _, r := range rsvps {
		switch r.Status {
		case models.RSVPApproved:
			view.Approved = append(view.Approved, r)
		case models.RSVPPending:
			view.Pending = append(view.Pending, r)
		case models.RSVPRejected:
			view.Rejected = append(view.Rejected, r)
		}
	}
	return view, nil
}

// Participants returns the approved RSVPs of an event.
func (s *RSVPs) Participants(ctx context.Context, eventID uint) ([]models.EventRSVP, error) {
	db := s.db.WithContext(ctx)
	if _, err := findEvent(db, eventID); err != nil {
		return nil, err
	}

	rsvps := []models.EventRSVP{}
	err := db.Where("event_id = ? AND status = ?", eventID, models.RSVPApproved).
		Order("requested_at ASC").Order("id ASC").
		Find(&rsvps).Error
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return rsvps, nil
}

// StatusFor returns the viewer's RSVP status, or nil when they never asked.
func (s *RSVPs) StatusFor(ctx context.Context, eventID, userID uint) (*models.RSVPStatus, error) {
	rsvp, err := findRSVP(s.db.WithContext(ctx), eventID, userID)
	if err != nil {
		return nil, apperror.Normalize(err)
	}
	if rsvp == nil {
		return nil, nil
	}
	return &rsvp.Status, nil
}

// CanPost reports whether userID may take part in the event channel: the
// host and approved participants can.
func (s *RSVPs) CanPost(ctx context.Context, eventID, userID uint) (bool, error) {
	db := s.db.WithContext(ctx)
	event, err := findEvent(db, eventID)
	if err != nil {
		return false, err
	}
	if isHost(event, userID) {
		return true, nil
	}

	var count int64
	err = db.Model(&models.EventRSVP{}).
		Where("event_id = ? AND user_id = ? AND status = ?", eventID, userID, models.RSVPApproved).
		Count(&count).Error
	if err != nil {
		return false, apperror.Internal(err)
	}
	return count > 0, nil
}

// decide moves a pending RSVP to approved or rejected.
func (s *RSVPs) decide(ctx context.Context, eventID, hostID, userID uint, decision models.RSVPStatus) (*models.EventRSVP, error) {
	var rsvp *models.EventRSVP
	err := s.withEvent(ctx, eventID, func(tx *gorm.DB, event *models.Event) error {
		if !isHost(event, hostID) {
			return apperror.ErrNotHost
		}

		var err error
		rsvp, err = findRSVP(tx, eventID, userID)
		if err != nil {
			return err
		}
		if rsvp == nil {
			return apperror.ErrRSVPNotFound
		}
		if rsvp.Status != models.RSVPPending {
			return apperror.ErrRSVPNotPending
		}
		if decision == models.RSVPApproved {
			if event.IsCancelled {
				return apperror.ErrEventCancelled
			}
			if err := requireSeat(tx, event); err != nil {
				return err
			}
		}

		rsvp.Status = decision
		return tx.Save(rsvp).Error
	})
	if err != nil {
		return nil, err
	}
	return rsvp, nil
}

// withEvent runs fn on the loaded event under the event lock and inside one
// transaction. fn must only use tx.
func (s *RSVPs) withEvent(ctx context.Context, eventID uint, fn func(tx *gorm.DB, event *models.Event) error) error {
	unlock, err := s.locker.Lock(ctx, lock.EventKey(eventID))
	if err != nil {
		return err
	}
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := findEvent(tx, eventID)
		if err != nil {
			return err
		}
		return fn(tx, event)
	})
	return apperror.Normalize(err)
}

// requireSeat fails with ErrEventFull when one more approval would exceed
// the cap.
func requireSeat(tx *gorm.DB, event *models.Event) error {
	if event.MaxParticipants == nil {
		return nil
	}
	approved, err := countByStatus(tx, event.ID, models.RSVPApproved)
	if err != nil {
		return err
	}
	if !event.HasCapacityFor(approved) {
		return apperror.ErrEventFull
	}
	return nil
}

func findRSVP(db *gorm.DB, eventID, userID uint) (*models.EventRSVP, error) {
	var rsvp models.EventRSVP
	err := db.Where("event_id = ? AND user_id = ?", eventID, userID).First(&rsvp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &rsvp, nil
}
