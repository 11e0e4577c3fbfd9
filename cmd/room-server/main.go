package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"card-parlor/internal/config"
	"card-parlor/internal/heartbeat"
	"card-parlor/internal/liveroom"
	"card-parlor/internal/logging"
	"card-parlor/internal/reconcile"
	"card-parlor/internal/registry"
	"card-parlor/internal/store"
	httptransport "card-parlor/internal/transport/http"
	"card-parlor/internal/ws"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	st, err := store.New(cfg.Server.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer st.Close()
	if err := st.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}
	if err := st.EnsureSchema(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("ensure schema failed")
	}

	rooms := liveroom.NewStore()
	reg := registry.New(rooms, st, nil)
	wsServer := ws.NewServer(st, rooms, reg)
	reg.SetGateway(wsServer)

	monitor := heartbeat.NewMonitor(
		cfg.Sync.HeartbeatInterval(),
		cfg.Sync.ConnectionTimeout(),
		wsServer,
		reg.RecordRoundTrip,
		reg.MarkDisconnected,
	)
	reg.SetMonitor(monitor)
	wsServer.SetResponder(monitor)

	engine := reconcile.NewEngine(rooms, st, wsServer, cfg.Sync.OrphanGraceSweeps)
	scheduler := reconcile.NewScheduler(cfg.Sync, engine, rooms, reg, reconcile.NewStats(), wsServer)
	scheduler.SetHeartbeat(monitor)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)

	router := httptransport.NewRouter(st, cfg.Server, scheduler, rooms, wsServer.HandleWS)
	httptransport.LogRoutes(router)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")

		scheduler.Shutdown()
		wsServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}
