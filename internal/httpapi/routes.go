package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zxckotee/pvp-arena/internal/ws"
)

func SetupRoutes(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")
	h := d.Hub

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/readyz", Readyz(d.Techniques))
	r.Get("/techniques", GetTechniques(d.Techniques, log))
	r.Get("/leaderboard", GetLeaderboard(d.Leaderboard, log))
	r.Get("/users/{userID}/rating", GetRating(d.Leaderboard, log))
	r.Get("/users/{userID}/matches", GetMatchHistory(d.History, log))
	r.Get("/watch/{roomID}", ws.Spectate(h, log))
	if d.DevTokens {
		r.Post("/auth/token", IssueToken(d.Issuer))
	}

	// Player routes
	r.Group(func(r chi.Router) {
		r.Use(d.Issuer.RequireAuth)
		r.Post("/rooms", CreateRoom(h, log))
		r.Get("/rooms", ListRooms(h, log))
		r.Route("/rooms/{roomID}", func(r chi.Router) {
			r.Get("/", GetRoom(h, log))
			r.Get("/state", GetRoomState(h, log))
			r.Post("/join", JoinRoom(h, log))
			r.Post("/leave", LeaveRoom(h, log))
			r.Post("/actions", PerformAction(h, log))
			r.Post("/dismiss", DismissRoom(h, log))
		})
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
