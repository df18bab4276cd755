package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zxckotee/pvp-arena/internal/arena"
	"github.com/zxckotee/pvp-arena/internal/auth"
	"github.com/zxckotee/pvp-arena/internal/engine"
	"github.com/zxckotee/pvp-arena/internal/hub"
	"github.com/zxckotee/pvp-arena/internal/lobby"
	"github.com/zxckotee/pvp-arena/pkg/types"
)

var errRoomNotFound = errors.New("room not found")

type Leaderboard interface {
	Top(ctx context.Context, n int) ([]types.LeaderboardEntry, error)
	Rating(ctx context.Context, userID string) (types.LeaderboardEntry, error)
}

type History interface {
	RecentMatches(ctx context.Context, userID string, limit int) ([]types.MatchHistoryEntry, error)
}

type Techniques interface {
	Ready() bool
	Wire() (types.TechniqueCatalog, error)
}

// Deps is everything the routes need. Leaderboard and History are optional.
type Deps struct {
	Hub         *hub.Hub
	Issuer      *auth.Issuer
	Techniques  Techniques
	Leaderboard Leaderboard
	History     History
	Log         *zap.Logger
	// DevTokens exposes POST /auth/token, which signs any identity it is given.
	DevTokens bool
}

func CreateRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CreateRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
		lb, err := h.Create(r.Context(), engine.ModeFromWire(req.Mode))
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, types.CreateRoomResponse{ID: lb.ID()})
	}
}

func ListRooms(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lbs, err := h.List(r.Context())
		if err != nil {
			fail(w, log, err)
			return
		}
		out := make([]types.RoomSummary, 0, len(lbs))
		for _, lb := range lbs {
			v, err := lb.View(r.Context())
			if errors.Is(err, lobby.ErrClosed) {
				continue
			}
			if err != nil {
				fail(w, log, err)
				return
			}
			out = append(out, v.State.Summary())
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func GetRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := view(w, r, h, log)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, v.State.Details())
	}
}

func GetRoomState(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cursor int64
		if raw := r.URL.Query().Get("lastActionId"); raw != "" {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid lastActionId", raw)
				return
			}
			cursor = n
		}
		v, ok := view(w, r, h, log)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, v.State.Snapshot(cursor))
	}
}

func JoinRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.JoinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
		res, ok := do(w, r, h, log, arena.Command{Type: arena.CmdJoin, Team: req.Team, Position: req.Position})
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, joinResult(res.Events))
	}
}

func LeaveRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := do(w, r, h, log, arena.Command{Type: arena.CmdLeave}); !ok {
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func PerformAction(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
		in := engine.Intent{Type: engine.ActionType(req.Type), TargetID: req.TargetID, TechniqueID: req.TechniqueID}
		res, ok := do(w, r, h, log, arena.Command{Type: arena.CmdAction, Intent: in})
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, actionResult(res.Events))
	}
}

func DismissRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := do(w, r, h, log, arena.Command{Type: arena.CmdDismiss}); !ok {
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func GetTechniques(t Techniques, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cat, err := t.Wire()
		if err != nil {
			log.Error("technique catalog unavailable", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "technique catalog unavailable", "")
			return
		}
		writeJSON(w, http.StatusOK, cat)
	}
}

func GetLeaderboard(lb Leaderboard, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if lb == nil {
			writeError(w, http.StatusNotImplemented, "leaderboard disabled", "")
			return
		}
		n, ok := limit(w, r, 10)
		if !ok {
			return
		}
		out, err := lb.Top(r.Context(), n)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func GetRating(lb Leaderboard, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if lb == nil {
			writeError(w, http.StatusNotImplemented, "leaderboard disabled", "")
			return
		}
		e, err := lb.Rating(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func GetMatchHistory(hist History, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hist == nil {
			writeError(w, http.StatusNotImplemented, "match history disabled", "")
			return
		}
		n, ok := limit(w, r, 20)
		if !ok {
			return
		}
		out, err := hist.RecentMatches(r.Context(), chi.URLParam(r, "userID"), n)
		if err != nil {
			fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type tokenRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Level    int    `json:"level"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func IssueToken(iss *auth.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			writeError(w, http.StatusBadRequest, "userId is required", "")
			return
		}
		if req.Level < 1 {
			req.Level = 1
		}
		tok, err := iss.Issue(req.UserID, req.Username, req.Level)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to issue token", "")
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{Token: tok, ExpiresAt: time.Now().Add(iss.Duration())})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Readyz reports 503 until the technique catalog has loaded.
func Readyz(t Techniques) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !t.Ready() {
			writeError(w, http.StatusServiceUnavailable, "technique catalog not loaded", "")
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func lookup(w http.ResponseWriter, r *http.Request, h *hub.Hub, log *zap.Logger) (*lobby.Lobby, bool) {
	lb, err := h.Get(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		fail(w, log, err)
		return nil, false
	}
	if lb == nil {
		fail(w, log, errRoomNotFound)
		return nil, false
	}
	return lb, true
}

func view(w http.ResponseWriter, r *http.Request, h *hub.Hub, log *zap.Logger) (lobby.View, bool) {
	lb, ok := lookup(w, r, h, log)
	if !ok {
		return lobby.View{}, false
	}
	v, err := lb.View(r.Context())
	if err != nil {
		fail(w, log, err)
		return lobby.View{}, false
	}
	return v, true
}

// do runs cmd as the calling user.
func do(w http.ResponseWriter, r *http.Request, h *hub.Hub, log *zap.Logger, cmd arena.Command) (lobby.Result, bool) {
	c, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return lobby.Result{}, false
	}
	lb, ok := lookup(w, r, h, log)
	if !ok {
		return lobby.Result{}, false
	}
	cmd.Player = arena.Player{UserID: c.UserID, Username: c.Username, Level: c.Level}
	res, err := lb.Do(r.Context(), cmd)
	if err != nil {
		fail(w, log, err)
		return lobby.Result{}, false
	}
	return res, true
}

func joinResult(evs []arena.Event) types.JoinResult {
	res := types.JoinResult{Success: true}
	for _, e := range evs {
		switch e.Type {
		case arena.EvtMoved:
			res.PositionChanged = true
			team, pos := e.PreviousTeam, e.PreviousPosition
			res.PreviousTeam, res.PreviousPosition = &team, &pos
		case arena.EvtStarted:
			res.RoomStarted = true
		}
	}
	return res
}

func actionResult(evs []arena.Event) types.ActionResult {
	res := types.ActionResult{Success: true}
	for _, e := range evs {
		if e.Type != arena.EvtActionResolved || e.Action == nil {
			continue
		}
		if d := e.Action.Damage; d > 0 {
			res.Damage = &d
		}
		if h := e.Action.Healing; h > 0 {
			res.Healing = &h
		}
	}
	return res
}

func limit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 100 {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 100", raw)
		return 0, false
	}
	return n, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errRoomNotFound), errors.Is(err, lobby.ErrClosed):
		return http.StatusNotFound
	case errors.Is(err, hub.ErrInvalidMode), errors.Is(err, arena.ErrUnsupportedCommand):
		return http.StatusBadRequest
	case errors.Is(err, arena.ErrSlotTaken), errors.Is(err, arena.ErrRoomClosed),
		errors.Is(err, arena.ErrNotInRoom), errors.Is(err, arena.ErrMatchNotRunning),
		errors.Is(err, engine.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, engine.ErrRejected), errors.Is(err, arena.ErrInvalidSlot),
		errors.Is(err, arena.ErrLevelOutOfRange), errors.Is(err, arena.ErrActorDefeated),
		errors.Is(err, arena.ErrUnknownTarget), errors.Is(err, arena.ErrTargetDefeated),
		errors.Is(err, arena.ErrInvalidTarget):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, hub.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(w http.ResponseWriter, log *zap.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Int("status", status), zap.Error(err))
		writeError(w, status, http.StatusText(status), "")
		return
	}
	writeError(w, status, err.Error(), "")
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
