// Command client runs one player's session against a room service and serves
// it to a local UI over a websocket.
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

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zxckotee/pvp-arena/internal/catalog"
	"github.com/zxckotee/pvp-arena/internal/config"
	"github.com/zxckotee/pvp-arena/internal/logging"
	"github.com/zxckotee/pvp-arena/internal/roomapi"
	"github.com/zxckotee/pvp-arena/internal/session"
	"github.com/zxckotee/pvp-arena/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	room := flag.String("room", "", "room to follow on start")
	browse := flag.Bool("browse", false, "start on the room list")
	flag.Parse()

	if err := run(*configPath, *room, *browse); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, room string, browse bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateClient(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, err := roomapi.New(cfg.Client.ServiceURL,
		roomapi.WithToken(cfg.Client.Token),
		roomapi.WithLogger(log),
		roomapi.WithHTTPClient(&http.Client{Timeout: 2 * cfg.Client.RequestTimeout}))
	if err != nil {
		return err
	}

	cat := catalog.New(api, log)
	ictx, cancel := context.WithTimeout(ctx, 5*cfg.Client.RequestTimeout)
	err = cat.Init(ictx)
	cancel()
	if err != nil {
		return err
	}
	defer cat.Dispose()

	sess := session.New(ctx, api, cat, cfg.Client.Session(), session.WithLogger(log))
	defer sess.Close()

	switch {
	case room != "":
		if err := sess.Enter(ctx, room); err != nil {
			return err
		}
	case browse:
		if err := sess.Browse(ctx); err != nil {
			return err
		}
	}

	r := chi.NewRouter()
	r.Get("/ws", ws.Handler(sess, log.Named("bridge")))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{Addr: cfg.Client.BridgeAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("bridge listening", zap.String("addr", srv.Addr), zap.String("service", cfg.Client.ServiceURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-sess.Done():
		}
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
