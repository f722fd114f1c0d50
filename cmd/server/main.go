package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gate-snake/internal/api"
	"gate-snake/internal/config"
	"gate-snake/internal/frame"
	"gate-snake/internal/game"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// .env in the working directory first, then the parent (repo root when
	// started from cmd/server).
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("../.env")
	}

	appConfig := config.Load()
	if lvl, err := zerolog.ParseLevel(appConfig.Log.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := appConfig.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	gameCfg := appConfig.Game
	serverCfg := appConfig.Server

	engine, err := game.NewEngine(gameCfg.EngineConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create engine")
	}
	engine.OnTick = api.ObserveTick
	log.Info().
		Int("width", gameCfg.Width).
		Int("height", gameCfg.Height).
		Dur("tick", gameCfg.TickRate).
		Bool("gatesInWalls", gameCfg.GatesInWalls).
		Str("session", engine.SessionID()).
		Msg("engine ready")

	if path := appConfig.Log.EventLogPath; path != "" {
		if err := engine.StartEventLog(path); err != nil {
			log.Warn().Err(err).Msg("event log disabled")
		} else {
			log.Info().Str("path", path).Msg("event log started")
		}
	}

	if !serverCfg.DisableDebugServer {
		debugCfg := api.DefaultObservabilityConfig()
		debugCfg.ListenAddr = serverCfg.DebugAddr
		debugCfg.BasicAuthUser = os.Getenv("DEBUG_USER")
		debugCfg.BasicAuthPass = os.Getenv("DEBUG_PASS")
		if err := api.StartDebugServer(debugCfg); err != nil {
			log.Warn().Err(err).Msg("debug server disabled")
		}
	}

	stopStats := make(chan struct{})
	go reportEventLogStats(engine, stopStats)

	server := api.NewServer(engine, api.ServerOptions{
		Renderer:    frame.New(appConfig.Render),
		CORSOrigins: serverCfg.AllowedOrigins,
		RateLimit: &api.RateLimitConfig{
			RequestsPerSecond: serverCfg.RateLimitRPS,
			Burst:             serverCfg.RateLimitBurst,
			CleanupInterval:   api.DefaultRateLimitConfig.CleanupInterval,
		},
	})

	engine.Start()

	addr := ":" + strconv.Itoa(serverCfg.Port)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("server exited")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	close(stopStats)
	engine.Stop()
	engine.StopEventLog()
	log.Info().Msg("stopped")
}

// reportEventLogStats mirrors the event log counters into Prometheus.
func reportEventLogStats(engine *game.Engine, stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			stats := engine.GetEventLogStats()
			total, _ := stats["total"].(uint64)
			dropped, _ := stats["dropped"].(uint64)
			api.UpdateEventLogStats(total, dropped)
		}
	}
}
