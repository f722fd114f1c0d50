package terminal

import (
	"context"
	"time"

	"gate-snake/internal/game"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog/log"
)

// BannerDuration is how long the end-of-game message stays up.
const BannerDuration = 2 * time.Second

// Engine is the part of game.Engine the terminal client drives.
type Engine interface {
	Subscribe() (<-chan *game.Snapshot, func())
	SubmitDirection(game.Direction) bool
	GetSnapshot() *game.Snapshot
	Done() <-chan struct{}
}

// App runs one session in a terminal.
type App struct {
	screen   tcell.Screen
	renderer *Renderer
	engine   Engine

	BannerDuration time.Duration
}

// NewApp creates an app on an initialized screen.
func NewApp(screen tcell.Screen, engine Engine) *App {
	return &App{
		screen:         screen,
		renderer:       NewRenderer(screen),
		engine:         engine,
		BannerDuration: BannerDuration,
	}
}

// Run draws every snapshot and forwards moves until the player quits, ctx
// ends or the session is over. It returns the last snapshot drawn.
func (a *App) Run(ctx context.Context) *game.Snapshot {
	updates, cancel := a.engine.Subscribe()
	defer cancel()

	stop := make(chan struct{})
	defer close(stop)
	events := a.pollEvents(stop)
	done := a.engine.Done()

	var last *game.Snapshot
	for {
		select {
		case <-ctx.Done():
			return last

		case snap := <-updates:
			last = snap
			a.renderer.Draw(snap)

		case <-done:
			last = a.engine.GetSnapshot()
			a.renderer.Draw(last)
			log.Info().
				Str("reason", last.Outcome.Reason.String()).
				Str("cause", last.Outcome.Cause.String()).
				Int("length", last.Length).
				Msg("session over")
			a.linger(ctx, events)
			return last

		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				action, dir := MapKey(ev)
				switch action {
				case ActionQuit:
					return last
				case ActionMove:
					if !a.engine.SubmitDirection(dir) {
						log.Debug().Str("dir", dir.String()).Msg("input dropped")
					}
				}
			case *tcell.EventResize:
				a.screen.Sync()
				if last != nil {
					a.renderer.Draw(last)
				}
			}
		}
	}
}

// linger keeps the final frame up for BannerDuration or until a quit key.
func (a *App) linger(ctx context.Context, events <-chan tcell.Event) {
	timer := time.NewTimer(a.BannerDuration)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case ev := <-events:
			if key, ok := ev.(*tcell.EventKey); ok {
				if action, _ := MapKey(key); action == ActionQuit {
					return
				}
			}
		}
	}
}

// pollEvents forwards screen events until the screen is finalized or
// stop is closed.
func (a *App) pollEvents(stop <-chan struct{}) <-chan tcell.Event {
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-stop:
				return
			}
		}
	}()
	return events
}
