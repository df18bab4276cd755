// Package rating keeps the player leaderboard in Redis.
package rating

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zxckotee/pvp-arena/internal/arena"
	"github.com/zxckotee/pvp-arena/pkg/types"
)

const (
	ratingKey       = "arena:rating"
	statsKeyPrefix  = "arena:stats:"
	recordedPrefix  = "arena:recorded:"
	recordedTTL     = 7 * 24 * time.Hour
	fieldWins       = "wins"
	fieldLosses     = "losses"
	fieldForfeits   = "forfeits"
	defaultTopLimit = 10
)

type Options struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

type Board struct {
	rdb *redis.Client
	log *zap.Logger
}

// Connect dials Redis and checks the connection.
func Connect(ctx context.Context, opts Options, log *zap.Logger) (*Board, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return New(rdb, log), nil
}

func New(rdb *redis.Client, log *zap.Logger) *Board {
	if log == nil {
		log = zap.NewNop()
	}
	return &Board{rdb: rdb, log: log.Named("rating")}
}

func (b *Board) Close() error { return b.rdb.Close() }

// RecordMatch applies every participant's rating change once per room.
func (b *Board) RecordMatch(ctx context.Context, sum arena.Summary) error {
	fresh, err := b.rdb.SetNX(ctx, recordedPrefix+sum.RoomID, 1, recordedTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to mark match %s: %w", sum.RoomID, err)
	}
	if !fresh {
		b.log.Debug("match already rated", zap.String("room", sum.RoomID))
		return nil
	}

	pipe := b.rdb.TxPipeline()
	for _, p := range sum.Participants {
		pipe.ZIncrBy(ctx, ratingKey, float64(p.Reward.RatingChange), p.UserID)
		field := fieldLosses
		if p.Reward.Result == "win" {
			field = fieldWins
		}
		pipe.HIncrBy(ctx, statsKeyPrefix+p.UserID, field, 1)
		if p.Forfeited {
			pipe.HIncrBy(ctx, statsKeyPrefix+p.UserID, fieldForfeits, 1)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record ratings for %s: %w", sum.RoomID, err)
	}
	return nil
}

// Top returns the n best rated players, highest first.
func (b *Board) Top(ctx context.Context, n int) ([]types.LeaderboardEntry, error) {
	if n <= 0 {
		n = defaultTopLimit
	}
	players, err := b.rdb.ZRevRangeWithScores(ctx, ratingKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get top players: %w", err)
	}

	pipe := b.rdb.Pipeline()
	stats := make([]*redis.MapStringStringCmd, len(players))
	for i, z := range players {
		stats[i] = pipe.HGetAll(ctx, statsKeyPrefix+member(z))
	}
	if len(players) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to get player stats: %w", err)
		}
	}

	out := make([]types.LeaderboardEntry, 0, len(players))
	for i, z := range players {
		e := types.LeaderboardEntry{Rank: int64(i + 1), UserID: member(z), Rating: int(z.Score)}
		e.Wins, e.Losses = winsLosses(stats[i].Val())
		out = append(out, e)
	}
	return out, nil
}

// Rating returns userID's entry. Unrated players come back with rank 0.
func (b *Board) Rating(ctx context.Context, userID string) (types.LeaderboardEntry, error) {
	e := types.LeaderboardEntry{UserID: userID}
	score, err := b.rdb.ZScore(ctx, ratingKey, userID).Result()
	if errors.Is(err, redis.Nil) {
		return e, nil
	}
	if err != nil {
		return e, fmt.Errorf("failed to get rating for %s: %w", userID, err)
	}
	rank, err := b.rdb.ZRevRank(ctx, ratingKey, userID).Result()
	if err != nil {
		return e, fmt.Errorf("failed to get rank for %s: %w", userID, err)
	}
	stats, err := b.rdb.HGetAll(ctx, statsKeyPrefix+userID).Result()
	if err != nil {
		return e, fmt.Errorf("failed to get stats for %s: %w", userID, err)
	}
	e.Rating, e.Rank = int(score), rank+1
	e.Wins, e.Losses = winsLosses(stats)
	return e, nil
}

func member(z redis.Z) string {
	switch m := z.Member.(type) {
	case string:
		return m
	default:
		return fmt.Sprint(m)
	}
}

func winsLosses(stats map[string]string) (int, int) {
	w, _ := strconv.Atoi(stats[fieldWins])
	l, _ := strconv.Atoi(stats[fieldLosses])
	return w, l
}
