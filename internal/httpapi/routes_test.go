package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxckotee/pvp-arena/internal/arena"
	"github.com/zxckotee/pvp-arena/internal/auth"
	"github.com/zxckotee/pvp-arena/internal/catalog"
	"github.com/zxckotee/pvp-arena/internal/engine"
	"github.com/zxckotee/pvp-arena/internal/hub"
	"github.com/zxckotee/pvp-arena/internal/lobby"
	"github.com/zxckotee/pvp-arena/internal/roomapi"
	"github.com/zxckotee/pvp-arena/pkg/types"
)

type fakeBoard struct{ entries []types.LeaderboardEntry }

func (f fakeBoard) Top(_ context.Context, n int) ([]types.LeaderboardEntry, error) {
	return f.entries[:min(n, len(f.entries))], nil
}

func (f fakeBoard) Rating(_ context.Context, userID string) (types.LeaderboardEntry, error) {
	for _, e := range f.entries {
		if e.UserID == userID {
			return e, nil
		}
	}
	return types.LeaderboardEntry{UserID: userID}, nil
}

type testEnv struct {
	srv *httptest.Server
	iss *auth.Issuer
}

func newEnv(t *testing.T, d Deps) *testEnv {
	t.Helper()
	cat := catalog.New(catalog.Static(catalog.Defaults()), nil)
	require.NoError(t, cat.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	d.Hub = hub.NewHub(ctx, arena.New(cat, nil), hub.WithLobbyOptions(lobby.WithTickInterval(0)))
	d.Issuer = auth.NewIssuer("test-secret", "arena", time.Hour)
	d.Techniques = cat

	srv := httptest.NewServer(SetupRoutes(d))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, iss: d.Issuer}
}

func (e *testEnv) client(t *testing.T, userID string) *roomapi.Client {
	t.Helper()
	tok, err := e.iss.Issue(userID, "player-"+userID, 1)
	require.NoError(t, err)
	c, err := roomapi.New(e.srv.URL, roomapi.WithToken(tok))
	require.NoError(t, err)
	return c
}

func participantOf(t *testing.T, d types.RoomDetails, userID string) string {
	t.Helper()
	for _, p := range d.Participants {
		if p.UserID == userID {
			return p.ParticipantID
		}
	}
	t.Fatalf("user %s not seated", userID)
	return ""
}

func TestMatchFlow(t *testing.T) {
	env := newEnv(t, Deps{})
	ctx := context.Background()
	alice, bob := env.client(t, "u1"), env.client(t, "u2")

	id, err := alice.CreateRoom(ctx, types.Mode{PlayersPerTeam: 1})
	require.NoError(t, err)

	jr, err := alice.JoinRoom(ctx, id, 1, 1)
	require.NoError(t, err)
	assert.True(t, jr.Success)
	assert.False(t, jr.RoomStarted)

	jr, err = bob.JoinRoom(ctx, id, 1, 1)
	require.NoError(t, err)
	assert.False(t, jr.Success, "seat taken")

	jr, err = bob.JoinRoom(ctx, id, 2, 1)
	require.NoError(t, err)
	assert.True(t, jr.Success)
	assert.True(t, jr.RoomStarted)

	d, err := alice.GetRoomDetails(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "in_progress", d.Room.Status)
	require.Len(t, d.Teams["2"], 1)
	target := participantOf(t, d, "u2")

	ar, err := alice.PerformAction(ctx, id, types.ActionRequest{Type: "attack", TargetID: target})
	require.NoError(t, err)
	require.True(t, ar.Success, ar.Error)
	require.NotNil(t, ar.Damage)
	assert.Equal(t, arena.BaseAttackDamage, *ar.Damage)

	ar, err = alice.PerformAction(ctx, id, types.ActionRequest{Type: "attack", TargetID: target})
	require.NoError(t, err)
	assert.False(t, ar.Success, "global cooldown")
	assert.NotEmpty(t, ar.Error)

	st, err := bob.GetRoomState(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, st.Actions, 1)
	st, err = bob.GetRoomState(ctx, id, st.Actions[0].ID)
	require.NoError(t, err)
	assert.Empty(t, st.Actions)

	require.NoError(t, bob.LeaveRoom(ctx, id))
	st, err = alice.GetRoomState(ctx, id, 0)
	require.NoError(t, err)
	assert.Equal(t, "dismissed", st.Room.Status)
	require.NotNil(t, st.Room.WinnerTeam)
	assert.Equal(t, 1, *st.Room.WinnerTeam)

	var rewards map[string]types.Reward
	require.NoError(t, json.Unmarshal(st.Rewards, &rewards))
	assert.Equal(t, "win", rewards["u1"].Result)
	assert.Equal(t, arena.ForfeitRating, rewards["u2"].RatingChange)

	require.NoError(t, alice.DismissRoom(ctx, id), "dismiss is idempotent")

	rooms, err := alice.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "dismissed", rooms[0].Status)
}

func TestErrors(t *testing.T) {
	env := newEnv(t, Deps{})
	ctx := context.Background()
	c := env.client(t, "u1")

	_, err := c.GetRoomDetails(ctx, "nope")
	var apiErr *roomapi.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	_, err = c.CreateRoom(ctx, types.Mode{PlayersPerTeam: 0})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	id, err := c.CreateRoom(ctx, types.Mode{PlayersPerTeam: 1})
	require.NoError(t, err)
	err = c.DismissRoom(ctx, id)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status, "waiting rooms cannot be dismissed")

	ar, err := c.PerformAction(ctx, id, types.ActionRequest{Type: "attack", TargetID: "x"})
	require.NoError(t, err)
	assert.False(t, ar.Success)
	assert.Contains(t, ar.Error, arena.ErrMatchNotRunning.Error())
}

func TestRoutes_Status(t *testing.T) {
	board := fakeBoard{entries: []types.LeaderboardEntry{{Rank: 1, UserID: "u1", Rating: 30}, {Rank: 2, UserID: "u2"}}}
	env := newEnv(t, Deps{Leaderboard: board, DevTokens: true})

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"health", http.MethodGet, "/healthz", "", http.StatusOK},
		{"techniques are public", http.MethodGet, "/techniques", "", http.StatusOK},
		{"rooms need a token", http.MethodGet, "/rooms", "", http.StatusUnauthorized},
		{"leaderboard", http.MethodGet, "/leaderboard?limit=1", "", http.StatusOK},
		{"bad limit", http.MethodGet, "/leaderboard?limit=0", "", http.StatusBadRequest},
		{"rating", http.MethodGet, "/users/u1/rating", "", http.StatusOK},
		{"ready", http.MethodGet, "/readyz", "", http.StatusOK},
		{"history disabled", http.MethodGet, "/users/u1/matches", "", http.StatusNotImplemented},
		{"dev token", http.MethodPost, "/auth/token", `{"userId":"u9","level":3}`, http.StatusOK},
		{"dev token needs user", http.MethodPost, "/auth/token", `{}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, env.srv.URL+tc.path, strings.NewReader(tc.body))
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestGetRating(t *testing.T) {
	board := fakeBoard{entries: []types.LeaderboardEntry{{Rank: 1, UserID: "u1", Rating: 30, Wins: 2}}}
	env := newEnv(t, Deps{Leaderboard: board})

	resp, err := http.Get(env.srv.URL + "/users/u1/rating")
	require.NoError(t, err)
	defer resp.Body.Close()
	var got types.LeaderboardEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, board.entries[0], got)

	off := newEnv(t, Deps{})
	resp2, err := http.Get(off.srv.URL + "/users/u1/rating")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp2.StatusCode)
}

func TestReadyz_WaitsForCatalog(t *testing.T) {
	cat := catalog.New(catalog.Static(catalog.Defaults()), nil)
	h := Readyz(cat)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, cat.Init(context.Background()))
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBadCursor(t *testing.T) {
	env := newEnv(t, Deps{})
	tok, err := env.iss.Issue("u1", "a", 1)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/rooms/any/state?lastActionId=-1", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{arena.ErrSlotTaken, http.StatusConflict},
		{engine.ErrStunned, http.StatusUnprocessableEntity},
		{engine.ErrGlobalCooldown, http.StatusUnprocessableEntity},
		{arena.ErrLevelOutOfRange, http.StatusUnprocessableEntity},
		{lobby.ErrClosed, http.StatusNotFound},
		{hub.ErrInvalidMode, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
