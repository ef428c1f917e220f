// Command seed fills a development database with fake users, events, groups
// and messages, then prints a bearer token per user.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"fitbuddy/backend/internal/apperror"
	"fitbuddy/backend/internal/config"
	"fitbuddy/backend/internal/connection"
	"fitbuddy/backend/internal/database"
	"fitbuddy/backend/internal/identity"
	"fitbuddy/backend/internal/lock"
	"fitbuddy/backend/internal/message"
	"fitbuddy/backend/internal/models"
	"fitbuddy/backend/internal/roster"
	"fitbuddy/backend/pkg/jwt"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var sports = []models.Sport{
	{Name: "Running", Icon: "🏃"},
	{Name: "Cycling", Icon: "🚴"},
	{Name: "Swimming", Icon: "🏊"},
	{Name: "Climbing", Icon: "🧗"},
	{Name: "Yoga", Icon: "🧘"},
	{Name: "Football", Icon: "⚽"},
	{Name: "Tennis", Icon: "🎾"},
	{Name: "Basketball", Icon: "🏀"},
}

type seeder struct {
	db          *gorm.DB
	users       *identity.Directory
	connections *connection.Ledger
	events      *roster.Events
	rsvps       *roster.RSVPs
	groups      *roster.Groups
	messages    *message.Store
}

func main() {
	userCount := flag.Int("users", 12, "number of users to create")
	eventCount := flag.Int("events", 8, "number of events to create")
	groupCount := flag.Int("groups", 3, "number of groups to create")
	seed := flag.Int64("seed", 0, "random seed (0 picks one)")
	flag.Parse()

	config.LoadConfig()
	cfg := config.AppConfig
	gofakeit.Seed(*seed)

	database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	db := database.DB
	locker := lock.NewLocal(cfg.LockWait)

	rsvps := roster.NewRSVPs(db, locker)
	groups := roster.NewGroups(db, locker)
	s := &seeder{
		db:          db,
		users:       identity.NewDirectory(db),
		connections: connection.NewLedger(db, locker),
		events:      roster.NewEvents(db, locker),
		rsvps:       rsvps,
		groups:      groups,
		messages:    message.NewStore(db, groups, rsvps),
	}

	ctx := context.Background()
	if err := s.run(ctx, *userCount, *eventCount, *groupCount); err != nil {
		slog.Error("Seeding failed", "error", err)
		os.Exit(1)
	}
}

func (s *seeder) run(ctx context.Context, userCount, eventCount, groupCount int) error {
	if userCount < 2 {
		return errors.New("need at least 2 users")
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&sports).Error; err != nil {
		return fmt.Errorf("seed sports: %w", err)
	}
	var sportIDs []uint
	if err := s.db.WithContext(ctx).Model(&models.Sport{}).Pluck("id", &sportIDs).Error; err != nil {
		return fmt.Errorf("load sports: %w", err)
	}

	userIDs, err := s.seedUsers(ctx, userCount)
	if err != nil {
		return err
	}
	if err := s.seedConnections(ctx, userIDs); err != nil {
		return err
	}
	if err := s.seedEvents(ctx, userIDs, sportIDs, eventCount); err != nil {
		return err
	}
	if err := s.seedGroups(ctx, userIDs, groupCount); err != nil {
		return err
	}

	secret := config.AppConfig.JWTSecret
	if secret == "" {
		slog.Warn("JWT_SECRET not set, skipping tokens")
		return nil
	}
	fmt.Println("Development tokens:")
	for _, id := range userIDs {
		token, err := jwt.GenerateToken(secret, id, jwt.DefaultTTL)
		if err != nil {
			return err
		}
		fmt.Printf("  user %d: %s\n", id, token)
	}
	return nil
}

func (s *seeder) seedUsers(ctx context.Context, n int) ([]uint, error) {
	var maxID uint
	if err := s.db.WithContext(ctx).Unscoped().Model(&models.User{}).Select("COALESCE(MAX(id), 0)").Scan(&maxID).Error; err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	ids := make([]uint, 0, n)
	for i := 1; i <= n; i++ {
		id := maxID + uint(i)
		name := gofakeit.FirstName()
		_, err := s.users.Upsert(ctx, id, identity.Profile{
			DisplayName: name,
			AvatarURL:   fmt.Sprintf("https://i.pravatar.cc/150?u=%d", id),
		})
		if err != nil {
			return nil, fmt.Errorf("seed user %d: %w", id, err)
		}
		ids = append(ids, id)
	}
	slog.Info("Seeded users", "count", len(ids))
	return ids, nil
}

func (s *seeder) seedConnections(ctx context.Context, userIDs []uint) error {
	created := 0
	for i, a := range userIDs {
		for _, b := range userIDs[i+1:] {
			if !gofakeit.Bool() {
				continue
			}
			conn, err := s.connections.Request(ctx, a, b, nil)
			if err != nil {
				return fmt.Errorf("seed connection %d-%d: %w", a, b, err)
			}
			created++

			switch gofakeit.Number(0, 3) {
			case 0:
				// left pending
			case 1:
				_, err = s.connections.Respond(ctx, conn.ID, b, models.ConnectionRejected)
			default:
				_, err = s.connections.Respond(ctx, conn.ID, b, models.ConnectionAccepted)
				if err == nil {
					err = s.chat(ctx, a, message.Direct(b))
				}
			}
			if err != nil {
				return fmt.Errorf("seed connection %d: %w", conn.ID, err)
			}
		}
	}
	slog.Info("Seeded connections", "count", created)
	return nil
}

func (s *seeder) seedEvents(ctx context.Context, userIDs, sportIDs []uint, n int) error {
	for i := 0; i < n; i++ {
		hostID := userIDs[gofakeit.Number(0, len(userIDs)-1)]
		start := gofakeit.DateRange(time.Now().Add(time.Hour), time.Now().AddDate(0, 1, 0)).UTC()
		end := start.Add(time.Duration(gofakeit.Number(1, 3)) * time.Hour)

		input := roster.EventInput{
			Title:       gofakeit.HipsterSentence(3),
			Description: gofakeit.Sentence(12),
			Location:    gofakeit.City(),
			StartTime:   start,
			EndTime:     &end,
			IsPublic:    gofakeit.Bool(),
		}
		if len(sportIDs) > 0 {
			sportID := sportIDs[gofakeit.Number(0, len(sportIDs)-1)]
			input.SportID = &sportID
		}
		if gofakeit.Bool() {
			capacity := gofakeit.Number(2, 6)
			input.MaxParticipants = &capacity
		}

		event, err := s.events.Create(ctx, hostID, input)
		if err != nil {
			return fmt.Errorf("seed event: %w", err)
		}

		for _, userID := range userIDs {
			if userID == hostID || gofakeit.Number(0, 2) != 0 {
				continue
			}
			rsvp, err := s.rsvps.RSVP(ctx, event.ID, userID)
			if apperror.Is(err, apperror.ErrEventFull) {
				continue
			}
			if err != nil {
				return fmt.Errorf("seed rsvp: %w", err)
			}
			if rsvp.Status == models.RSVPPending && gofakeit.Bool() {
				_, err = s.rsvps.Approve(ctx, event.ID, hostID, userID)
				if err != nil && !apperror.Is(err, apperror.ErrEventFull) {
					return fmt.Errorf("seed approval: %w", err)
				}
			}
		}

		if err := s.chat(ctx, hostID, message.Event(event.ID)); err != nil {
			return err
		}
	}
	slog.Info("Seeded events", "count", n)
	return nil
}

func (s *seeder) seedGroups(ctx context.Context, userIDs []uint, n int) error {
	for i := 0; i < n; i++ {
		creatorID := userIDs[gofakeit.Number(0, len(userIDs)-1)]
		var members []uint
		for _, id := range userIDs {
			if id != creatorID && gofakeit.Bool() {
				members = append(members, id)
			}
		}
		if len(members) == 0 {
			members = append(members, userIDs[0])
			if creatorID == userIDs[0] {
				members[0] = userIDs[1]
			}
		}

		group, memberships, err := s.groups.CreateGroup(ctx, creatorID, roster.GroupInput{
			Name:        gofakeit.HipsterWord() + " crew",
			Description: gofakeit.Sentence(8),
			MemberIDs:   members,
		})
		if err != nil {
			return fmt.Errorf("seed group: %w", err)
		}
		for _, m := range memberships {
			if gofakeit.Bool() {
				if err := s.chat(ctx, m.UserID, message.Group(group.ID)); err != nil {
					return err
				}
			}
		}
	}
	slog.Info("Seeded groups", "count", n)
	return nil
}

func (s *seeder) chat(ctx context.Context, senderID uint, target message.Target) error {
	for i := gofakeit.Number(1, 3); i > 0; i-- {
		if _, err := s.messages.Send(ctx, senderID, target, gofakeit.Sentence(gofakeit.Number(3, 10))); err != nil {
			return fmt.Errorf("seed message: %w", err)
		}
	}
	return nil
}
