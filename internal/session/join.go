package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/zxckotee/pvp-arena/pkg/types"
)

var errNotSeated = errors.New("participant not visible at requested slot yet")

type JoinOutcome struct {
	Result types.JoinResult
	// Confirmed is false when the details never showed the new slot and the
	// last snapshot was accepted anyway.
	Confirmed bool
	Attempts  int
}

// Join takes (team, position) in roomID, or moves there if the user already
// sits in the room, and starts following the match.
func (s *Session) Join(ctx context.Context, roomID string, team, position int) (JoinOutcome, error) {
	jctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	res, err := s.svc.JoinRoom(jctx, roomID, team, position)
	cancel()
	if err != nil {
		return JoinOutcome{}, fmt.Errorf("failed to join room %s: %w", roomID, err)
	}
	if !res.Success {
		return JoinOutcome{Result: res}, fmt.Errorf("%w: room %s team %d position %d", ErrJoinRefused, roomID, team, position)
	}

	details, confirmed, attempts := s.reconcile(ctx, roomID, team, position)
	if !confirmed {
		s.log.Warn("join not visible after retries, using last snapshot",
			zap.String("room", roomID), zap.Int("team", team), zap.Int("position", position), zap.Int("attempts", attempts))
	}
	if details.Room.ID == "" {
		details.Room.ID = roomID
	}
	if err := s.enter(ctx, roomID, details); err != nil {
		return JoinOutcome{}, err
	}
	return JoinOutcome{Result: res, Confirmed: confirmed, Attempts: attempts}, nil
}

// reconcile re-reads the room until the user shows up at (team, position).
// The first read is immediate; JoinRetries more follow with growing delays.
func (s *Session) reconcile(ctx context.Context, roomID string, team, position int) (types.RoomDetails, bool, int) {
	b := joinBackOff(s.cfg)

	var (
		last     types.RoomDetails
		attempts int
	)
	seated, err := backoff.Retry(ctx, func() (bool, error) {
		attempts++
		rctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()

		d, err := s.svc.GetRoomDetails(rctx, roomID)
		if err != nil {
			s.log.Debug("room details fetch failed", zap.String("room", roomID), zap.Int("attempt", attempts), zap.Error(err))
			return false, err
		}
		last = d
		if !seatedAt(d, s.cfg.UserID, team, position) {
			return false, errNotSeated
		}
		return true, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(s.cfg.JoinRetries+1)))

	return last, err == nil && seated, attempts
}

// joinBackOff waits JoinBackoff, then grows each gap by JoinBackoffFactor
// with no jitter.
func joinBackOff(c Config) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.JoinBackoff
	b.Multiplier = c.JoinBackoffFactor
	b.RandomizationFactor = 0
	b.MaxInterval = time.Minute
	b.Reset()
	return b
}

func seatedAt(d types.RoomDetails, userID string, team, position int) bool {
	for _, p := range d.Participants {
		if p.UserID == userID {
			return p.Team == team && p.Position == position
		}
	}
	return false
}
