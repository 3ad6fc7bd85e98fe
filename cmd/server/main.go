package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/uno-backend/internal/config"
	"github.com/DoyleJ11/uno-backend/internal/httpapi"
	"github.com/DoyleJ11/uno-backend/internal/notify"
	"github.com/DoyleJ11/uno-backend/internal/persist"
	"github.com/DoyleJ11/uno-backend/internal/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, repo.Close()) }()

	sink, nc, err := openSink(cfg, log)
	if err != nil {
		return err
	}
	if nc != nil {
		defer func() { err = multierr.Append(err, nc.Drain()) }()
	}

	dispatcher := notify.NewDispatcher(log, cfg.NotifyBuffer, cfg.NotifyRetries, sink)
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	go dispatcher.Run(dispatchCtx)
	defer func() {
		stopDispatch()
		<-dispatcher.Done()
	}()

	// Build the store *with* the repository and dispatcher injected
	store := session.New(context.Background(), repo, dispatcher, log, session.Options{
		Timeout:  cfg.RequestTimeout,
		LobbyTTL: cfg.LobbyTTL,
	})
	defer store.Shutdown()

	if _, err = store.Restore(ctx); err != nil {
		return fmt.Errorf("restore games: %w", err)
	}

	if cfg.LobbyTTL > 0 {
		sched, serr := store.StartReaper(ctx, cfg.ReapInterval)
		if serr != nil {
			return serr
		}
		defer func() { err = multierr.Append(err, sched.Shutdown()) }()
		log.Info("lobby reaper started", zap.Duration("ttl", cfg.LobbyTTL), zap.Duration("interval", cfg.ReapInterval))
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.SetupRoutes(store, log, httpapi.Options{
			RequestTimeout: cfg.RequestTimeout,
			OriginPatterns: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

func openRepository(cfg config.Config, log *zap.Logger) (persist.Repository, error) {
	if cfg.DatabaseURL == "" {
		log.Info("no DATABASE_URL, games are kept in memory")
		return persist.NewMemory(), nil
	}
	repo, err := persist.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	log.Info("using postgres persistence")
	return repo, nil
}

func openSink(cfg config.Config, log *zap.Logger) (notify.Sink, *nats.Conn, error) {
	if cfg.NATSURL == "" {
		return notify.NewLogSink(log), nil, nil
	}
	nc, err := notify.ConnectNATS(cfg.NATSURL, log)
	if err != nil {
		return nil, nil, err
	}
	return notify.NewNATSSink(nc, cfg.NATSSubjectPrefix), nc, nil
}
