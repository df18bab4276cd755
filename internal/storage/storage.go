// Package storage keeps finished matches in Postgres.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zxckotee/pvp-arena/internal/arena"
	"github.com/zxckotee/pvp-arena/pkg/types"
)

const uniqueViolation = "23505"

type MatchRecord struct {
	RoomID         string `gorm:"primaryKey;size:64"`
	PlayersPerTeam int
	WinnerTeam     int
	Ticks          int64
	StartedAt      time.Time
	EndedAt        time.Time `gorm:"index"`
	CreatedAt      time.Time
	Participants   []ParticipantRecord `gorm:"foreignKey:RoomID;references:RoomID;constraint:OnDelete:CASCADE"`
}

type ParticipantRecord struct {
	ID            uint   `gorm:"primaryKey"`
	RoomID        string `gorm:"size:64;uniqueIndex:idx_room_user"`
	UserID        string `gorm:"size:64;uniqueIndex:idx_room_user;index"`
	ParticipantID string `gorm:"size:64"`
	Username      string
	Team          int
	Level         int
	DamageDealt   int
	HealingDone   int
	Actions       int
	Survived      bool
	Forfeited     bool
	Result        string `gorm:"size:16"`
	Experience    int
	Currency      int
	RatingChange  int
}

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func Open(dsn string, log *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return New(db, log), nil
}

func New(db *gorm.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log.Named("storage")}
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&MatchRecord{}, &ParticipantRecord{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// RecordMatch stores a finished match. Recording the same room twice is not an error.
func (s *Store) RecordMatch(ctx context.Context, sum arena.Summary) error {
	rec := fromSummary(sum)
	err := s.db.WithContext(ctx).Create(&rec).Error
	if isUniqueViolation(err) {
		s.log.Debug("match already recorded", zap.String("room", sum.RoomID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record match %s: %w", sum.RoomID, err)
	}
	return nil
}

// RecentMatches lists the latest matches userID played in, newest first.
func (s *Store) RecentMatches(ctx context.Context, userID string, limit int) ([]types.MatchHistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []struct {
		ParticipantRecord
		WinnerTeam int
		EndedAt    time.Time
	}
	err := s.db.WithContext(ctx).
		Table("participant_records AS p").
		Select("p.*, m.winner_team, m.ended_at").
		Joins("JOIN match_records AS m ON m.room_id = p.room_id").
		Where("p.user_id = ?", userID).
		Order("m.ended_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load matches for %s: %w", userID, err)
	}

	out := make([]types.MatchHistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.MatchHistoryEntry{
			RoomID:       r.RoomID,
			Team:         r.Team,
			WinnerTeam:   r.WinnerTeam,
			Result:       r.Result,
			RatingChange: r.RatingChange,
			DamageDealt:  r.DamageDealt,
			HealingDone:  r.HealingDone,
			Forfeited:    r.Forfeited,
			EndedAt:      r.EndedAt,
		})
	}
	return out, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func fromSummary(sum arena.Summary) MatchRecord {
	rec := MatchRecord{
		RoomID:         sum.RoomID,
		PlayersPerTeam: sum.Mode.PlayersPerTeam,
		WinnerTeam:     sum.WinnerTeam,
		Ticks:          int64(sum.Ticks),
		StartedAt:      sum.StartedAt,
		EndedAt:        sum.EndedAt,
	}
	for _, p := range sum.Participants {
		rec.Participants = append(rec.Participants, ParticipantRecord{
			RoomID:        sum.RoomID,
			UserID:        p.UserID,
			ParticipantID: p.ParticipantID,
			Username:      p.Username,
			Team:          p.Team,
			Level:         p.Level,
			DamageDealt:   p.DamageDealt,
			HealingDone:   p.HealingDone,
			Actions:       p.Actions,
			Survived:      p.Survived,
			Forfeited:     p.Forfeited,
			Result:        p.Reward.Result,
			Experience:    p.Reward.Experience,
			Currency:      p.Reward.Currency,
			RatingChange:  p.Reward.RatingChange,
		})
	}
	return rec
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
