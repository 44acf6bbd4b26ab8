package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ecrtools/matchmaking-core/internal/config"
	"github.com/ecrtools/matchmaking-core/internal/dispatch"
	"github.com/ecrtools/matchmaking-core/internal/formation"
	"github.com/ecrtools/matchmaking-core/internal/handler"
	"github.com/ecrtools/matchmaking-core/internal/logger"
	"github.com/ecrtools/matchmaking-core/internal/matchconfig"
	"github.com/ecrtools/matchmaking-core/internal/metrics"
	"github.com/ecrtools/matchmaking-core/internal/middleware"
	"github.com/ecrtools/matchmaking-core/internal/missioncatalog"
	"github.com/ecrtools/matchmaking-core/internal/queue"
	"github.com/ecrtools/matchmaking-core/internal/region"
	"github.com/ecrtools/matchmaking-core/internal/registry"
)

func main() {
	logger.Init()
	cfg := config.Load()
	log.Info().Str("port", cfg.Port).Msg("Config loaded")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisHost + ":" + cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}

	mapper, err := region.Load(cfg.RegionGroupsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.RegionGroupsPath).Msg("Failed to load region groups")
	}

	matchCfg, err := matchconfig.Load(cfg.MatchmakingConfigPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.MatchmakingConfigPath).Msg("Failed to load matchmaking config")
	}

	catalog := missioncatalog.New(cfg.MissionDataURL)
	if err := catalog.Refresh(context.Background()); err != nil {
		log.Error().Err(err).Msg("Initial mission catalog refresh failed (starting empty, non-fatal)")
	} else {
		log.Info().Int("missions", catalog.Size()).Msg("Mission catalog loaded")
	}

	queueStore := queue.New(redisClient)
	serverRegistry := registry.New(redisClient, mapper)
	dispatcher := dispatch.New(log.Logger)
	sequencer := formation.New(queueStore, serverRegistry, mapper, catalog, matchCfg, dispatcher, log.Logger)

	mmHandler := handler.NewMatchmakingHandler(sequencer, serverRegistry, mapper, catalog)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", mmHandler.Health)
	mux.HandleFunc("POST /reenter_matchmaking_queue", mmHandler.ReenterMatchmakingQueue)
	mux.HandleFunc("POST /leave_matchmaking_queue", mmHandler.LeaveMatchmakingQueue)
	mux.HandleFunc("POST /register_or_update_game_server", mmHandler.RegisterOrUpdateGameServer)
	mux.HandleFunc("POST /unregister_game_server", mmHandler.UnregisterGameServer)
	mux.HandleFunc("POST /register_game_server_stats", mmHandler.RegisterGameServerStats)
	mux.HandleFunc("POST /update_mission_data", mmHandler.UpdateMissionData)

	if cfg.MetricsEnabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}
	if cfg.DebugRegionDistances {
		mux.HandleFunc("GET /debug/region_distances", mmHandler.DebugRegionDistances)
	}

	mws := []func(http.Handler) http.Handler{middleware.Recover, middleware.Logger, middleware.CORS("*"), middleware.JSON}
	if cfg.MetricsEnabled {
		mws = append(mws, metrics.Middleware)
	}
	root := middleware.Chain(mux, mws...)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}
