// Package roster owns who takes part in what: event records with their RSVP
// approval flow, and group conversations with their memberships.
package roster

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"fitbuddy/backend/internal/apperror"
	"fitbuddy/backend/internal/lock"
	"fitbuddy/backend/internal/models"
	"fitbuddy/backend/internal/pagination"

	"gorm.io/gorm"
)

// EventInput carries the host-editable fields of an event.
type EventInput struct {
	Title           string
	Description     string
	Location        string
	SportID         *uint
	StartTime       time.Time
	EndTime         *time.Time
	MaxParticipants *int
	IsPublic        bool
	ImageURL        string
}

// EventFilter narrows List.
type EventFilter struct {
	SportIDs []uint
	HostID   *uint
	// IncludePast lists events whose start time has passed.
	IncludePast bool
	// IncludeCancelled lists cancelled events too.
	IncludeCancelled bool
	// Search matches title or location, case-insensitively.
	Search string
}

// EventSummary is an event with its roster counts.
type EventSummary struct {
	Event         models.Event
	ApprovedCount int64
	PendingCount  int64
}

// Events manages event records. Roster changes go through RSVPs.
type Events struct {
	db     *gorm.DB
	locker lock.Locker
	logger *slog.Logger
	now    func() time.Time
}

// NewEvents creates an Events service.
func NewEvents(db *gorm.DB, locker lock.Locker) *Events {
	return &Events{
		db:     db,
		locker: locker,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new event hosted by hostID.
func (s *Events) Create(ctx context.Context, hostID uint, input EventInput) (*models.Event, error) {
	if err := s.validate(ctx, s.db, input); err != nil {
		return nil, err
	}

	event := models.Event{HostID: hostID}
	applyInput(&event, input)

	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, apperror.Internal(err)
	}

	s.logger.Info("Event created", "eventId", event.ID, "hostId", hostID, "public", event.IsPublic)
	return &event, nil
}

// Update replaces the editable fields of an event. Only the host may update,
// and the capacity cannot drop below the current approved count.
func (s *Events) Update(ctx context.Context, eventID, hostID uint, input EventInput) (*models.Event, error) {
	unlock, err := s.locker.Lock(ctx, lock.EventKey(eventID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var event *models.Event
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err = findEvent(tx, eventID)
		if err != nil {
			return err
		}
		if !isHost(event, hostID) {
			return apperror.ErrNotHost
		}
		if event.IsCancelled {
			return apperror.ErrEventCancelled
		}
		if err := s.validate(ctx, tx, input); err != nil {
			return err
		}
		if input.MaxParticipants != nil {
			approved, err := countByStatus(tx, eventID, models.RSVPApproved)
			if err != nil {
				return err
			}
			if int64(*input.MaxParticipants) < approved {
				return apperror.ErrCapacityTooLow
			}
		}

		applyInput(event, input)
		return tx.Save(event).Error
	})
	if err != nil {
		return nil, apperror.Normalize(err)
	}

	s.logger.Info("Event updated", "eventId", eventID)
	return event, nil
}

// Cancel marks an event cancelled. Cancelling twice is a no-op.
func (s *Events) Cancel(ctx context.Context, eventID, hostID uint) (*models.Event, error) {
	unlock, err := s.locker.Lock(ctx, lock.EventKey(eventID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	event, err := findEvent(s.db.WithContext(ctx), eventID)
	if err != nil {
		return nil, err
	}
	if !isHost(event, hostID) {
		return nil, apperror.ErrNotHost
	}
	if event.IsCancelled {
		return event, nil
	}

	if err := s.db.WithContext(ctx).Model(event).Update("is_cancelled", true).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	event.IsCancelled = true

	s.logger.Info("Event cancelled", "eventId", eventID)
	return event, nil
}

// Get returns an event with its roster counts.
func (s *Events) Get(ctx context.Context, eventID uint) (*EventSummary, error) {
	db := s.db.WithContext(ctx)
	event, err := findEvent(db, eventID)
	if err != nil {
		return nil, err
	}

	summary := &EventSummary{Event: *event}
	if summary.ApprovedCount, err = countByStatus(db, eventID, models.RSVPApproved); err != nil {
		return nil, apperror.Internal(err)
	}
	if summary.PendingCount, err = countByStatus(db, eventID, models.RSVPPending); err != nil {
		return nil, apperror.Internal(err)
	}
	return summary, nil
}

// List pages through events soonest first. Private events are listed too;
// is_public only governs approval.
func (s *Events) List(ctx context.Context, filter EventFilter, params pagination.Params) (*pagination.Response[models.Event], error) {
	query := s.db.WithContext(ctx).Model(&models.Event{})
	if !filter.IncludePast {
		query = query.Where("start_time >= ?", s.now())
	}
	if !filter.IncludeCancelled {
		query = query.Where("is_cancelled = ?", false)
	}
	if len(filter.SportIDs) > 0 {
		query = query.Where("sport_id IN ?", filter.SportIDs)
	}
	if filter.HostID != nil {
		query = query.Where("host_id = ?", *filter.HostID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(location) LIKE ?", like, like)
	}

	page, err := pagination.Paginate[models.Event](query.Order("start_time ASC").Order("id ASC"), params)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return page, nil
}

// ApprovedCounts returns approved participant counts for the given events.
func (s *Events) ApprovedCounts(ctx context.Context, eventIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(eventIDs))
	if len(eventIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		EventID uint
		Count   int64
	}
	err := s.db.WithContext(ctx).Model(&models.EventRSVP{}).
		Select("event_id, COUNT(*) AS count").
		Where("event_id IN ? AND status = ?", eventIDs, models.RSVPApproved).
		Group("event_id").
		Scan(&rows).Error
	if err != nil {
		return nil, apperror.Internal(err)
	}
	for _, r := range rows {
		counts[r.EventID] = r.Count
	}
	return counts, nil
}

func (s *Events) validate(ctx context.Context, db *gorm.DB, input EventInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return apperror.ErrEmptyEventTitle
	}
	if input.MaxParticipants != nil && *input.MaxParticipants <= 0 {
		return apperror.ErrInvalidCapacity
	}
	if input.SportID != nil {
		var count int64
		if err := db.WithContext(ctx).Model(&models.Sport{}).Where("id = ?", *input.SportID).Count(&count).Error; err != nil {
			return apperror.Internal(err)
		}
		if count == 0 {
			return apperror.ErrSportNotFound
		}
	}
	return nil
}

func applyInput(event *models.Event, input EventInput) {
	event.Title = strings.TrimSpace(input.Title)
	event.Description = input.Description
	event.Location = input.Location
	event.SportID = input.SportID
	event.StartTime = input.StartTime.UTC()
	event.EndTime = input.EndTime
	event.MaxParticipants = input.MaxParticipants
	event.IsPublic = input.IsPublic
	event.ImageURL = input.ImageURL
}

func findEvent(db *gorm.DB, eventID uint) (*models.Event, error) {
	var event models.Event
	err := db.First(&event, eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrEventNotFound
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &event, nil
}

func countByStatus(db *gorm.DB, eventID uint, status models.RSVPStatus) (int64, error) {
	var count int64
	err := db.Model(&models.EventRSVP{}).
		Where("event_id = ? AND status = ?", eventID, status).
		Count(&count).Error
	return count, err
}

// isHost is the authorization predicate for host-only roster operations.
func isHost(event *models.Event, userID uint) bool {
	return event.HostID == userID
}
