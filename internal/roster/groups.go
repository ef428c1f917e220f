package roster

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"fitbuddy/backend/internal/apperror"
	"fitbuddy/backend/internal/identity"
	"fitbuddy/backend/internal/lock"
	"fitbuddy/backend/internal/models"

	"gorm.io/gorm"
)

// GroupInput creates a group.
type GroupInput struct {
	Name        string
	Description string
	AvatarURL   string
	MemberIDs   []uint
}

// GroupUpdate changes the fields that are set.
type GroupUpdate struct {
	Name        *string
	Description *string
	AvatarURL   *string
}

// GroupDetail is a group as seen by one of its members.
type GroupDetail struct {
	Group       models.Group
	MemberCount int64
	IsAdmin     bool
}

// Groups manages group conversations and their memberships. The admin set
// is the authorization root; the creator's membership is protected.
type Groups struct {
	db     *gorm.DB
	locker lock.Locker
	logger *slog.Logger
	now    func() time.Time
}

// NewGroups creates a Groups service.
func NewGroups(db *gorm.DB, locker lock.Locker) *Groups {
	return &Groups{
		db:     db,
		locker: locker,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateGroup creates a group with the creator as its first admin.
func (s *Groups) CreateGroup(ctx context.Context, creatorID uint, input GroupInput) (*models.Group, []models.GroupMembership, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, nil, apperror.ErrEmptyGroupName
	}
	memberIDs := dedupe(input.MemberIDs, creatorID)
	if len(memberIDs) == 0 {
		return nil, nil, apperror.ErrNoMembers
	}
	if err := identity.RequireAll(ctx, s.db, memberIDs); err != nil {
		return nil, nil, err
	}

	group := models.Group{
		Name:        name,
		Description: input.Description,
		AvatarURL:   input.AvatarURL,
		CreatedByID: creatorID,
	}
	var memberships []models.GroupMembership

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		now := s.now()
		memberships = append(memberships, models.GroupMembership{GroupID: group.ID, UserID: creatorID, IsAdmin: true, JoinedAt: now})
		for _, id := range memberIDs {
			memberships = append(memberships, models.GroupMembership{GroupID: group.ID, UserID: id, JoinedAt: now})
		}
		return tx.Create(&memberships).Error
	})
	if err != nil {
		return nil, nil, apperror.Internal(err)
	}

	s.logger.Info("Group created", "groupId", group.ID, "creatorId", creatorID, "members", len(memberships))
	return &group, memberships, nil
}

// AddMembers adds users to a group. Admins only; existing members are skipped.
func (s *Groups) AddMembers(ctx context.Context, groupID, actorID uint, memberIDs []uint) error {
	memberIDs = dedupe(memberIDs, 0)
	if len(memberIDs) == 0 {
		return apperror.ErrNoMembers
	}

	var added int
	err := s.withGroup(ctx, groupID, func(tx *gorm.DB, group *models.Group) error {
		if err := requireAdmin(tx, groupID, actorID); err != nil {
			return err
		}
		if err := identity.RequireAll(ctx, tx, memberIDs); err != nil {
			return err
		}

		var existing []uint
		if err := tx.Model(&models.GroupMembership{}).
			Where("group_id = ? AND user_id IN ?", groupID, memberIDs).
			Pluck("user_id", &existing).Error; err != nil {
			return err
		}
		skip := make(map[uint]bool, len(existing))
		for _, id := range existing {
			skip[id] = true
		}

		now := s.now()
		var fresh []models.GroupMembership
		for _, id := range memberIDs {
			if !skip[id] {
				fresh = append(fresh, models.GroupMembership{
					GroupID:  groupID,
					UserID:   id,
					IsAdmin:  id == group.CreatedByID,
					JoinedAt: now,
				})
			}
		}
		added = len(fresh)
		if added == 0 {
			return nil
		}
		return tx.Create(&fresh).Error
	})
	if err != nil {
		return err
	}

	s.logger.Info("Group members added", "groupId", groupID, "actorId", actorID, "added", added)
	return nil
}

// RemoveMember removes memberID from the group. Admins only; the creator is
// protected. Removing a non-member is a no-op. An admin removing themselves
// hands the group over like Leave does.
func (s *Groups) RemoveMember(ctx context.Context, groupID, actorID, memberID uint) error {
	var promoted uint
	err := s.withGroup(ctx, groupID, func(tx *gorm.DB, group *models.Group) error {
		if err := requireAdmin(tx, groupID, actorID); err != nil {
			return err
		}
		if memberID == group.CreatedByID {
			return apperror.ErrProtectedMember
		}
		membership, err := findMembership(tx, groupID, memberID)
		if err != nil || membership == nil {
			return err
		}
		promoted, err = removeMembership(tx, membership)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("Group member removed", "groupId", groupID, "actorId", actorID, "memberId", memberID)
	if promoted != 0 {
		s.logger.Info("Group admin promoted", "groupId", groupID, "userId", promoted)
	}
	return nil
}

// Leave removes the caller's own membership. When the last admin leaves a
// group that still has members, the longest-standing member is promoted.
func (s *Groups) Leave(ctx context.Context, groupID, userID uint) error {
	var promoted uint
	err := s.withGroup(ctx, groupID, func(tx *gorm.DB, group *models.Group) error {
		membership, err := findMembership(tx, groupID, userID)
		if err != nil {
			return err
		}
		if membership == nil {
			return apperror.ErrNotGroupMember
		}
		promoted, err = removeMembership(tx, membership)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("Group left", "groupId", groupID, "userId", userID)
	if promoted != 0 {
		s.logger.Info("Group admin promoted", "groupId", groupID, "userId", promoted)
	}
	return nil
}

// UpdateGroup edits group details. Admins only.
func (s *Groups) UpdateGroup(ctx context.Context, groupID, actorID uint, update GroupUpdate) (*models.Group, error) {
	var updated *models.Group
	err := s.withGroup(ctx, groupID, func(tx *gorm.DB, group *models.Group) error {
		if err := requireAdmin(tx, groupID, actorID); err != nil {
			return err
		}
		if update.Name != nil {
			name := strings.TrimSpace(*update.Name)
			if name == "" {
				return apperror.ErrEmptyGroupName
			}
			group.Name = name
		}
		if update.Description != nil {
			group.Description = *update.Description
		}
		if update.AvatarURL != nil {
			group.AvatarURL = *update.AvatarURL
		}
		updated = group
		return tx.Save(group).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Group updated", "groupId", groupID, "actorId", actorID)
	return updated, nil
}

// GetGroup returns a group to one of its members. A dissolved group, one
// with no members left, is reported as not found.
func (s *Groups) GetGroup(ctx context.Context, groupID, viewerID uint) (*GroupDetail, error) {
	db := s.db.WithContext(ctx)
	group, err := findGroup(db, groupID)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := db.Model(&models.GroupMembership{}).Where("group_id = ?", groupID).Count(&count).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	if count == 0 {
		return nil, apperror.ErrGroupNotFound
	}

	membership, err := findMembership(db, groupID, viewerID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, apperror.ErrNotGroupMember
	}

	return &GroupDetail{Group: *group, MemberCount: count, IsAdmin: isAdmin(membership)}, nil
}

// ListGroups returns the groups userID belongs to, most recently joined first.
func (s *Groups) ListGroups(ctx context.Context, userID uint) ([]models.Group, error) {
	groups := []models.Group{}
	err := s.db.WithContext(ctx).
		Joins("JOIN group_memberships ON group_memberships.group_id = group_chats.id").
		Where("group_memberships.user_id = ?", userID).
		Order("group_memberships.joined_at DESC").Order("group_chats.id DESC").
		Find(&groups).Error
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return groups, nil
}

// Members lists the memberships of a group, admins first. Members only.
func (s *Groups) Members(ctx context.Context, groupID, viewerID uint) ([]models.GroupMembership, error) {
	ok, err := s.IsMember(ctx, groupID, viewerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.ErrNotGroupMember
	}

	members := []models.GroupMembership{}
	err = s.db.WithContext(ctx).Where("group_id = ?", groupID).
		Order("is_admin DESC").Order("joined_at ASC").Order("id ASC").
		Find(&members).Error
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return members, nil
}

// IsMember reports whether userID currently belongs to the group.
func (s *Groups) IsMember(ctx context.Context, groupID, userID uint) (bool, error) {
	db := s.db.WithContext(ctx)
	if _, err := findGroup(db, groupID); err != nil {
		return false, err
	}
	membership, err := findMembership(db, groupID, userID)
	if err != nil {
		return false, err
	}
	return membership != nil, nil
}

// withGroup runs fn on the loaded group under the group lock and inside one
// transaction. fn must only use tx.
func (s *Groups) withGroup(ctx context.Context, groupID uint, fn func(tx *gorm.DB, group *models.Group) error) error {
	unlock, err := s.locker.Lock(ctx, lock.GroupKey(groupID))
	if err != nil {
		return err
	}
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := findGroup(tx, groupID)
		if err != nil {
			return err
		}
		return fn(tx, group)
	})
	return apperror.Normalize(err)
}

func findGroup(db *gorm.DB, groupID uint) (*models.Group, error) {
	var group models.Group
	err := db.First(&group, groupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrGroupNotFound
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &group, nil
}

func findMembership(db *gorm.DB, groupID, userID uint) (*models.GroupMembership, error) {
	var membership models.GroupMembership
	err := db.Where("group_id = ? AND user_id = ?", groupID, userID).First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &membership, nil
}

func requireAdmin(tx *gorm.DB, groupID, actorID uint) error {
	membership, err := findMembership(tx, groupID, actorID)
	if err != nil {
		return err
	}
	if !isAdmin(membership) {
		return apperror.ErrNotGroupAdmin
	}
	return nil
}

// removeMembership deletes membership. If that leaves a non-empty group
// without admins, the earliest-joined member is promoted and returned.
func removeMembership(tx *gorm.DB, membership *models.GroupMembership) (uint, error) {
	if err := tx.Delete(membership).Error; err != nil {
		return 0, err
	}
	if !membership.IsAdmin {
		return 0, nil
	}

	var admins int64
	if err := tx.Model(&models.GroupMembership{}).
		Where("group_id = ? AND is_admin = ?", membership.GroupID, true).
		Count(&admins).Error; err != nil {
		return 0, err
	}
	if admins > 0 {
		return 0, nil
	}

	var next models.GroupMembership
	err := tx.Where("group_id = ?", membership.GroupID).Order("joined_at ASC").Order("id ASC").First(&next).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return next.UserID, tx.Model(&next).Update("is_admin", true).Error
}

// isAdmin is the authorization predicate for admin-only group operations.
func isAdmin(membership *models.GroupMembership) bool {
	return membership != nil && membership.IsAdmin
}

// dedupe drops duplicates, zero ids and exclude while keeping order.
func dedupe(ids []uint, exclude uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || id == exclude || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
