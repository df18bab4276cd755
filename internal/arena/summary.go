package arena

import (
	"cmp"
	"slices"
	"time"

	"github.com/zxckotee/pvp-arena/internal/engine"
	"github.com/zxckotee/pvp-arena/pkg/types"
)

const (
	WinExperience      = 50
	WinLevelExperience = 10
	WinCurrency        = 25
	WinRating          = 15
	LoseExperience     = 10
	LoseRating         = -10
	ForfeitRating      = -20
)

// RewardFor prices p's result. A winner of 0 is a loss for everyone.
func RewardFor(p engine.Participant, winner int, forfeited bool) types.Reward {
	switch {
	case forfeited:
		return types.Reward{Result: "lose", RatingChange: ForfeitRating}
	case winner != 0 && p.Team == winner:
		return types.Reward{
			Result:       "win",
			Experience:   WinExperience + WinLevelExperience*p.Level,
			Currency:     WinCurrency,
			RatingChange: WinRating,
		}
	default:
		return types.Reward{Result: "lose", Experience: LoseExperience, RatingChange: LoseRating}
	}
}

type ParticipantSummary struct {
	ParticipantID string
	UserID        string
	Username      string
	Team          int
	Level         int
	DamageDealt   int
	HealingDone   int
	Actions       int
	Survived      bool
	Forfeited     bool
	Reward        types.Reward
}

// Summary is the record of a finished match handed to recorders.
type Summary struct {
	RoomID       string
	Mode         engine.Mode
	WinnerTeam   int
	Ticks        uint64
	StartedAt    time.Time
	EndedAt      time.Time
	Participants []ParticipantSummary
}

func Summarize(s State) Summary {
	sum := Summary{
		RoomID:     s.Room.ID,
		Mode:       s.Room.Mode,
		WinnerTeam: s.Room.WinnerTeam,
		Ticks:      s.Room.Tick,
		StartedAt:  s.StartedAt,
		EndedAt:    s.EndedAt,
	}
	for _, p := range s.Room.Participants {
		st := s.Stats[p.ID]
		sum.Participants = append(sum.Participants, ParticipantSummary{
			ParticipantID: p.ID,
			UserID:        p.UserID,
			Username:      p.Username,
			Team:          p.Team,
			Level:         p.Level,
			DamageDealt:   st.DamageDealt,
			HealingDone:   st.HealingDone,
			Actions:       st.Actions,
			Survived:      p.Alive(),
			Forfeited:     s.Forfeits[p.UserID],
			Reward:        s.Rewards[p.UserID],
		})
	}
	slices.SortFunc(sum.Participants, func(a, b ParticipantSummary) int {
		if c := cmp.Compare(a.Team, b.Team); c != 0 {
			return c
		}
		return cmp.Compare(b.DamageDealt, a.DamageDealt)
	})
	return sum
}
