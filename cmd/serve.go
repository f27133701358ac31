package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/desertthunder/audiograb/internal/server"
	"github.com/desertthunder/audiograb/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve runs a scheduler behind the HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	host := r.config.Server.Host
	if cmd.IsSet("host") {
		host = cmd.String("host")
	}
	port := r.config.Server.Port
	if cmd.IsSet("port") {
		port = cmd.Int("port")
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	var history tasks.HistoryStore
	var lister server.HistoryLister
	if !cmd.Bool("no-history") {
		repo, closeDB, err := r.openHistory()
		if err != nil {
			return err
		}
		defer closeDB()
		history, lister = repo, repo
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	updates := make(chan tasks.ProgressUpdate, 256)
	sched := r.newScheduler(tasks.ConfigFrom(r.config), history, updates, r.logger)

	broadcaster := server.NewBroadcaster(64)
	go broadcaster.Run(ctx, updates)

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger))
	server.NewAPI(sched, lister, r.logger).Register(router)
	router.Handler(server.NewEventsHandler(broadcaster))

	srv := server.New(addr, router)
	srv.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	r.logger.Info("server listening", "addr", "http://"+addr)

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		r.logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.config.Shutdown.Grace())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("http shutdown incomplete", "err", err)
	}
	if err := sched.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("scheduler shutdown incomplete", "err", err)
	}
	return serveErr
}
