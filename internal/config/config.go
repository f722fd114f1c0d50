// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for game, server and logging settings.
//
// Values come from the Default* constructors and are overridden by
// environment variables in the *FromEnv functions.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gate-snake/internal/game"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// =============================================================================
// GAME CONFIGURATION
// =============================================================================

// GameConfig holds the stage constants and the tick loop timing.
type GameConfig struct {
	Width        int           // Grid width in cells, border included
	Height       int           // Grid height in cells, border included
	TickRate     time.Duration // Input wait before a tick fires on its own
	ItemDuration time.Duration // Lifetime of the growth and poison items
	GateDuration time.Duration // Lifetime of the gate pair
	GatesInWalls bool          // Place gates on wall cells instead of the floor
	Seed         int64         // 0 means time-based
}

// DefaultGame returns the stage constants of the original game.
func DefaultGame() GameConfig {
	return GameConfig{
		Width:        50,
		Height:       21,
		TickRate:     500 * time.Millisecond,
		ItemDuration: 15 * time.Second,
		GateDuration: 15 * time.Second,
	}
}

// GameFromEnv returns game configuration with environment variable overrides.
func GameFromEnv() GameConfig {
	cfg := DefaultGame()

	if w := getEnvInt("GRID_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvInt("GRID_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}
	if ms := getEnvInt("TICK_RATE_MS", 0); ms > 0 {
		cfg.TickRate = time.Duration(ms) * time.Millisecond
	}
	if ms := getEnvInt("ITEM_DURATION_MS", 0); ms > 0 {
		cfg.ItemDuration = time.Duration(ms) * time.Millisecond
	}
	if ms := getEnvInt("GATE_DURATION_MS", 0); ms > 0 {
		cfg.GateDuration = time.Duration(ms) * time.Millisecond
	}
	cfg.GatesInWalls = getEnvBool("GATES_IN_WALLS", cfg.GatesInWalls)
	if v := os.Getenv("GAME_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Seed = seed
		}
	}

	return cfg
}

// Settings converts the config into world settings.
func (g GameConfig) Settings() game.Settings {
	s := game.DefaultSettings()
	s.Width = g.Width
	s.Height = g.Height
	s.ItemDuration = g.ItemDuration
	s.GateDuration = g.GateDuration
	s.GatesInWalls = g.GatesInWalls
	return s
}

// EngineConfig converts the config into an engine config.
func (g GameConfig) EngineConfig() game.EngineConfig {
	return game.EngineConfig{
		Settings: g.Settings(),
		TickRate: g.TickRate,
		Seed:     g.Seed,
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               int
	DebugAddr          string  // Loopback address for pprof and /metrics
	DisableDebugServer bool
	RateLimitRPS       float64 // Per-IP request rate
	RateLimitBurst     int
	AllowedOrigins     []string
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:           3000,
		DebugAddr:      "127.0.0.1:6060",
		RateLimitRPS:   20,
		RateLimitBurst: 40,
		AllowedOrigins: []string{"*"},
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if addr := os.Getenv("DEBUG_ADDR"); addr != "" {
		cfg.DebugAddr = addr
	}
	cfg.DisableDebugServer = getEnvBool("DISABLE_DEBUG_SERVER", cfg.DisableDebugServer)
	if rps := getEnvFloat("RATE_LIMIT_RPS", 0); rps > 0 {
		cfg.RateLimitRPS = rps
	}
	if burst := getEnvInt("RATE_LIMIT_BURST", 0); burst > 0 {
		cfg.RateLimitBurst = burst
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}

	return cfg
}

// =============================================================================
// LOGGING CONFIGURATION
// =============================================================================

// LogConfig holds diagnostic output settings.
type LogConfig struct {
	Level        string // zerolog level name
	EventLogPath string // NDJSON event log, empty disables the file
}

// DefaultLog returns the default logging configuration.
func DefaultLog() LogConfig {
	return LogConfig{Level: "info"}
}

// LogFromEnv returns logging configuration with environment variable overrides.
func LogFromEnv() LogConfig {
	cfg := DefaultLog()

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Level = strings.ToLower(lvl)
	}
	cfg.EventLogPath = os.Getenv("EVENT_LOG_PATH")

	return cfg
}

// =============================================================================
// RENDER CONFIGURATION
// =============================================================================

// RenderConfig holds the raster frame settings.
type RenderConfig struct {
	CellSize        int // Pixels per grid cell
	ScoreboardWidth int // Pixels reserved to the right of the board
}

// DefaultRender returns the default raster settings.
func DefaultRender() RenderConfig {
	return RenderConfig{
		CellSize:        16,
		ScoreboardWidth: 220,
	}
}

// RenderFromEnv returns render configuration with environment variable overrides.
func RenderFromEnv() RenderConfig {
	cfg := DefaultRender()

	if px := getEnvInt("FRAME_CELL_SIZE", 0); px > 0 {
		cfg.CellSize = px
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Game   GameConfig
	Server ServerConfig
	Log    LogConfig
	Render RenderConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Game:   GameFromEnv(),
		Server: ServerFromEnv(),
		Log:    LogFromEnv(),
		Render: RenderFromEnv(),
	}
}

// Validate checks the values that would otherwise fail deep inside the engine.
func (c AppConfig) Validate() error {
	var errs []error

	if c.Game.Width < game.MinWidth || c.Game.Height < game.MinHeight {
		errs = append(errs, fmt.Errorf("grid %dx%d is smaller than %dx%d",
			c.Game.Width, c.Game.Height, game.MinWidth, game.MinHeight))
	}
	if c.Game.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("tick rate must be positive, got %s", c.Game.TickRate))
	}
	if c.Game.ItemDuration <= 0 || c.Game.GateDuration <= 0 {
		errs = append(errs, errors.New("item and gate durations must be positive"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Server.Port))
	}
	if c.Render.CellSize <= 0 {
		errs = append(errs, fmt.Errorf("frame cell size must be positive, got %d", c.Render.CellSize))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
