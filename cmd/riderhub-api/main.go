// README: Entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"riderhub/internal/config"
	"riderhub/internal/events"
	"riderhub/internal/fleet"
	httptransport "riderhub/internal/http"
	"riderhub/internal/infra"
	"riderhub/internal/log"
	"riderhub/internal/maps"
	"riderhub/internal/modules/delivery"
	"riderhub/internal/modules/dispatch"
	"riderhub/internal/modules/rider"
	"riderhub/internal/push"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log.Configure(log.Config{Level: cfg.Log.Level})
	logger := log.Base()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.JWT.Secret == "" {
		logger.Fatal().Msg("RIDERHUB_JWT_SECRET is required")
	}
	if cfg.Firebase.ProjectID == "" {
		logger.Fatal().Msg("RIDERHUB_FIREBASE_PROJECT_ID is required")
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("database init")
	}

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	messagingClient, err := infra.NewMessagingClient(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("firebase init")
	}

	var fleetAdapter fleet.Adapter
	if cfg.Fleet.Enabled {
		fleetAdapter = fleet.NewClient(cfg.Fleet.BaseURL, cfg.Fleet.APIKey, cfg.Fleet.Timeout, logger)
	}

	var routes dispatch.DistanceEstimator
	if cfg.Maps.APIKey != "" {
		routeSvc, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("maps init")
		}
		routes = routeSvc
	}

	riderStore := rider.NewStore(dbPool)
	publisher := events.NewRedisPublisher(redisClient)
	riderSvc := rider.NewService(riderStore, publisher, logger)

	deliveryStore := delivery.NewStore(dbPool)
	ledger := delivery.NewService(deliveryStore)

	pusher := push.NewSender(messagingClient, riderStore, logger)

	dispatchSvc := dispatch.NewService(dispatch.Deps{
		Riders:      riderSvc,
		Ledger:      ledger,
		Fleet:       fleetAdapter,
		Push:        pusher,
		Routes:      routes,
		SyncEnabled: cfg.Fleet.Enabled,
		Log:         logger,
	})

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Dispatch:  dispatchSvc,
		JWTSecret: cfg.JWT.Secret,
		Log:       logger,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	logger.Info().Str("addr", cfg.HTTP.Addr).Msg("riderhub api listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server")
	}
}
