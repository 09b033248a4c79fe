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

	"github.com/common-nighthawk/go-figure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jrsteele09/go-embedded-app/platform"
	"github.com/jrsteele09/go-embedded-app/realtime"
	"github.com/jrsteele09/go-embedded-app/revocation"
	"github.com/jrsteele09/go-embedded-app/server"
	"github.com/jrsteele09/go-embedded-app/session"
)

const (
	shutdownTimeout       = 5 * time.Second
	memoryCleanupInterval = time.Minute
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := loadConfig()
	if err != nil {
		return err
	}
	displayAppname(c.GetAppName())

	store, err := revocation.New(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore(store)
	if mem, ok := store.(*revocation.MemoryStore); ok {
		go mem.RunCleanup(ctx, memoryCleanupInterval)
	}

	codec, err := session.NewCodec(c)
	if err != nil {
		return err
	}

	metrics := server.NewMetrics(prometheus.NewRegistry())
	hub := realtime.NewHub(0)
	defer hub.Close()
	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()
	go metrics.ObserveRealtime(events)
	manager := realtime.NewManager(ctx, realtime.ManagerConfigFrom(c), hub, store,
		realtime.WithRevokeHook(func(_ string, kind realtime.Kind) {
			metrics.Revoked("realtime:" + kind.String())
		}))
	defer manager.Close()

	handler, err := server.New(c, server.Deps{
		Platform: platform.NewClient(c),
		Codec:    codec,
		Store:    store,
		Realtime: manager,
		Metrics:  metrics,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listenAndServe(srv)
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(srv)
	})
	err = g.Wait()
	log.Info().Msg("Server stopped")
	return err
}

func listenAndServe(srv *http.Server) error {
	log.Info().Str("addr", srv.Addr).Msg("Server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func closeStore(store revocation.Store) {
	if err := store.Close(); err != nil {
		log.Warn().Err(err).Msg("closing revocation store")
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
