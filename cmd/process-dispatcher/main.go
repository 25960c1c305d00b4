// Command process-dispatcher schedules one process per active source per
// Europe/Berlin day and hands unfinished processes to supervisors over
// HTTP. It runs until the first SIGTERM, SIGINT or SIGQUIT, then drains
// its tasks and exits cleanly.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/mvplabs/process-dispatcher/internal/config"
	"github.com/mvplabs/process-dispatcher/internal/dispatch"
	"github.com/mvplabs/process-dispatcher/internal/httpserver"
	"github.com/mvplabs/process-dispatcher/internal/logging"
	"github.com/mvplabs/process-dispatcher/internal/repository"
	"github.com/mvplabs/process-dispatcher/internal/shutdown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "process-dispatcher: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	if err := logging.Init(cfg.LogLevel); err != nil {
		return err
	}
	log := logging.Logger()
	log.Info("starting process dispatcher", "http_port", cfg.HTTPPort, "log_level", cfg.LogLevel)

	if cfg.InstanceLockFile != "" {
		lock := flock.New(cfg.InstanceLockFile)
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("instance lock %s: %w", cfg.InstanceLockFile, err)
		}
		if !locked {
			return fmt.Errorf("instance lock %s: held by another dispatcher", cfg.InstanceLockFile)
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				log.Warn("releasing instance lock failed", "path", cfg.InstanceLockFile, "error", err)
			}
		}()
		log.Info("instance lock acquired", "path", cfg.InstanceLockFile)
	}

	scope := shutdown.NewScope()
	shutdown.Install(scope)

	ctx := context.Background()
	repo, err := repository.New(ctx, repository.Config{
		MVPDatabaseURL: cfg.MVPDatabaseURL,
		PDDatabaseURL:  cfg.PDDatabaseURL,
		MaxConnections: cfg.MaxDBConnections,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Warn("closing database pools failed", "error", err)
		}
	}()
	log.Info("database pools connected")

	dispatcher := dispatch.NewWithRepository(repo, scope)
	server := httpserver.New(dispatcher, scope, cfg.HTTPPort)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return dispatcher.RunLockJanitor(gctx) })
	g.Go(func() error { return server.Run(gctx) })

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("process dispatcher stopped")
	return nil
}
