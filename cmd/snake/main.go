// Command snake plays the game in the terminal. With -spectate it also
// serves the read-only API so others can watch.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"gate-snake/internal/api"
	"gate-snake/internal/config"
	"gate-snake/internal/frame"
	"gate-snake/internal/game"
	"gate-snake/internal/terminal"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	logDir      = "logs"
	logFileName = "snake.log"
	maxLogSize  = 10 * 1024 * 1024
)

// setupLogging sends logs to logs/snake.log when debug is set and drops
// them otherwise; the terminal owns stdout and stderr. A log file larger
// than maxLogSize is renamed with a timestamp first.
func setupLogging(debug bool) *os.File {
	if !debug {
		log.Logger = zerolog.Nop()
		return nil
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		log.Logger = zerolog.Nop()
		return nil
	}

	path := filepath.Join(logDir, logFileName)
	if info, err := os.Stat(path); err == nil && info.Size() > maxLogSize {
		rotated := filepath.Join(logDir, "snake-"+time.Now().Format("20060102-150405")+".log")
		_ = os.Rename(path, rotated)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Logger = zerolog.Nop()
		return nil
	}

	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return f
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	debugFlag := flag.Bool("debug", false, "write logs to "+filepath.Join(logDir, logFileName))
	spectate := flag.String("spectate", "", "serve the read-only API on this address, e.g. :3000")
	seed := flag.Int64("seed", cfg.Game.Seed, "random seed, 0 for time-based")
	gatesInWalls := flag.Bool("gates-in-walls", cfg.Game.GatesInWalls, "place gates on wall cells")
	tick := flag.Duration("tick", cfg.Game.TickRate, "time the snake waits for input")
	flag.Parse()

	cfg.Game.Seed = *seed
	cfg.Game.GatesInWalls = *gatesInWalls
	cfg.Game.TickRate = *tick

	if logFile := setupLogging(*debugFlag); logFile != nil {
		defer logFile.Close()
	}
	if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	engine, err := game.NewEngine(cfg.Game.EngineConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if path := cfg.Log.EventLogPath; path != "" {
		if err := engine.StartEventLog(path); err != nil {
			log.Warn().Err(err).Msg("event log disabled")
		}
		defer engine.StopEventLog()
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create screen: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize terminal: %v\n", err)
		os.Exit(1)
	}

	// Restore the terminal before printing a crash.
	defer func() {
		if r := recover(); r != nil {
			screen.Fini()
			fmt.Fprintf(os.Stderr, "snake crashed: %v\n%s\n", r, debug.Stack())
			os.Exit(1)
		}
	}()

	if *spectate != "" {
		server := api.NewServer(engine, api.ServerOptions{
			Renderer:    frame.New(cfg.Render),
			CORSOrigins: cfg.Server.AllowedOrigins,
			ReadOnly:    true,
		})
		go func() {
			if err := server.Start(*spectate); err != nil {
				log.Error().Err(err).Msg("spectator server")
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			server.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine.Start()
	log.Info().Str("session", engine.SessionID()).Msg("game started")

	last := terminal.NewApp(screen, engine).Run(ctx)

	engine.Stop()
	screen.Fini()

	if last != nil {
		if banner := last.Banner(); banner != "" {
			fmt.Println(banner)
		}
		fmt.Printf("Length %d (max %d), +%d -%d G%d in %ds\n",
			last.Length, last.Counters.MaxLength,
			last.Counters.GrowthItems, last.Counters.PoisonItems, last.Counters.GateUses,
			last.ElapsedSeconds)
	}
}
