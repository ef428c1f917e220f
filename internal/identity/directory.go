// Package identity keeps the local projection of externally-owned users:
// the display name and avatar every roster and conversation renders.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"fitbuddy/backend/internal/apperror"
	"fitbuddy/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Profile is the caller-supplied projection of a user.
type Profile struct {
	DisplayName string
	AvatarURL   string
}

// Directory reads and upserts user projections.
type Directory struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewDirectory creates a Directory.
func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db, logger: slog.Default()}
}

// Upsert stores the profile for userID, creating the row on first sight.
func (d *Directory) Upsert(ctx context.Context, userID uint, profile Profile) (*models.User, error) {
	name := strings.TrimSpace(profile.DisplayName)
	if name == "" {
		return nil, apperror.ErrEmptyDisplayName
	}

	user := models.User{DisplayName: name, AvatarURL: strings.TrimSpace(profile.AvatarURL)}
	user.ID = userID

	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "avatar_url", "updated_at"}),
	}).Create(&user).Error
	if err != nil {
		return nil, apperror.Internal(err)
	}

	d.logger.Info("User profile upserted", "userId", userID)
	return d.Get(ctx, userID)
}

// Get returns one user projection.
func (d *Directory) Get(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := d.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrUserNotFound
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &user, nil
}

// Lookup returns the known users among ids keyed by id. Unknown ids are
// simply absent from the map.
func (d *Directory) Lookup(ctx context.Context, ids []uint) (map[uint]models.User, error) {
	users := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	var rows []models.User
	if err := d.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	for _, u := range rows {
		users[u.ID] = u
	}
	return users, nil
}

// RequireAll fails with ErrUserNotFound unless every id has a projection.
func RequireAll(ctx context.Context, db *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return apperror.Internal(err)
	}
	if count != int64(len(ids)) {
		return apperror.ErrUserNotFound
	}
	return nil
}
