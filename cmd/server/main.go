// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

// Command server runs the Adaptix HTTP API: assessment intake, response
// scoring, and adaptive quiz generation over a BadgerDB store.
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

	badger "github.com/dgraph-io/badger/v4"

	"github.com/adaptix-learn/adaptix/internal/api"
	"github.com/adaptix-learn/adaptix/internal/config"
	"github.com/adaptix-learn/adaptix/internal/engine"
	"github.com/adaptix-learn/adaptix/internal/events"
	"github.com/adaptix-learn/adaptix/internal/logging"
	"github.com/adaptix-learn/adaptix/internal/repository"
)

func main() {
	if err := run(); err != nil {
		log := logging.Logger()
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(cfg.Logging)
	log := logging.Logger()
	log.Info().
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Bool("in_memory", cfg.Database.InMemory).
		Msg("starting adaptix server")

	var store repository.Repository
	if cfg.Database.InMemory {
		store = repository.NewMemory()
	} else {
		opts := badger.DefaultOptions(cfg.Database.Path).
			WithLogger(nil)
		db, err := badger.Open(opts)
		if err != nil {
			return fmt.Errorf("open badger at %s: %w", cfg.Database.Path, err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("badger close")
			}
		}()
		store = repository.NewBadger(db)
	}
	store = repository.NewResilient(store, cfg.Resilience, logging.Component("repository"))

	bus := events.NewBus(logging.Component("events"))
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := bus.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("event bus stopped")
		}
	}()

	eng, err := engine.New(cfg.Engine, store, engine.SystemClock{}, bus, logging.Component("engine"))
	if err != nil {
		return err
	}

	router := api.NewRouter(api.RouterConfig{
		RequestsPerMinute:  cfg.Server.RequestsPerMinute,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		RequestTimeout:     cfg.Server.WriteTimeout,
	}, eng, store, logging.Component("api"))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
