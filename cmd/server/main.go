package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"

	"chathub/internal/server"
	"chathub/internal/state"
	"chathub/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and manages the server lifecycle so that
// every defer (database close, hub drain) executes before the process exits.
func run() error {
	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}
	log := server.NewLogger(cfg.LogLevel)

	db, err := badger.Open(badger.DefaultOptions(cfg.BadgerPath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("opening message store: %w", err)
	}
	defer func() {
		log.Info("closing message store")
		_ = db.Close()
	}()

	messages := store.NewMessageStore(db, log)
	roster := state.NewRoster()
	hub := server.NewHub(roster, messages, cfg, log)
	go hub.Run()

	mux := server.SetupRoutes(hub, messages, cfg)
	httpServer := server.CreateServer(cfg.Addr(), mux)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErrs := make(chan error, 1)
	go func() {
		if err := server.StartServer(httpServer, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrs <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErrs:
		return fmt.Errorf("http server failed: %w", err)
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, log); err != nil {
		return err
	}
	return hub.Shutdown(cfg.ShutdownTimeout)
}
