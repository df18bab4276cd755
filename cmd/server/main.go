package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zxckotee/pvp-arena/internal/arena"
	"github.com/zxckotee/pvp-arena/internal/auth"
	"github.com/zxckotee/pvp-arena/internal/catalog"
	"github.com/zxckotee/pvp-arena/internal/config"
	"github.com/zxckotee/pvp-arena/internal/httpapi"
	"github.com/zxckotee/pvp-arena/internal/hub"
	"github.com/zxckotee/pvp-arena/internal/lobby"
	"github.com/zxckotee/pvp-arena/internal/logging"
	"github.com/zxckotee/pvp-arena/internal/rating"
	"github.com/zxckotee/pvp-arena/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var loader catalog.Loader = catalog.Static(catalog.Defaults())
	if cfg.Server.TechniquesFile != "" {
		loader = catalog.FileLoader{Path: cfg.Server.TechniquesFile}
	}
	cat := catalog.New(loader, log)
	if err := cat.Init(ctx); err != nil {
		return err
	}
	defer cat.Dispose()

	deps := httpapi.Deps{
		Issuer:     auth.NewIssuer(cfg.Server.JWTSecret, cfg.Server.JWTIssuer, cfg.Server.TokenDuration),
		Techniques: cat,
		Log:        log,
		DevTokens:  cfg.Server.DevTokens,
	}
	var recorders []lobby.Recorder

	if dsn := cfg.Server.PostgresDSN; dsn != "" {
		store, err := storage.Open(dsn, log)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		recorders = append(recorders, store)
		deps.History = store
	} else {
		log.Info("match history disabled, no postgres dsn")
	}

	if addr := cfg.Server.RedisAddr; addr != "" {
		board, err := rating.Connect(ctx, rating.Options{Addr: addr, Password: cfg.Server.RedisPassword, DB: cfg.Server.RedisDB}, log)
		if err != nil {
			return err
		}
		defer board.Close()
		recorders = append(recorders, board)
		deps.Leaderboard = board
	} else {
		log.Info("leaderboard disabled, no redis addr")
	}

	h := hub.NewHub(ctx, arena.New(cat, log.Named("arena")),
		hub.WithLogger(log),
		hub.WithLobbyOptions(
			lobby.WithTickInterval(cfg.Server.TickInterval),
			lobby.WithRetention(cfg.Server.Retention),
			lobby.WithRecorders(recorders...),
		))
	deps.Hub = h

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.SetupRoutes(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(sctx)
		stop()
		<-h.Done()
		log.Info("server stopped")
		return err
	})
	return g.Wait()
}
