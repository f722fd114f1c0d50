package game

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTickRate = 500 * time.Millisecond
	inputBuffer     = 4
)

// ErrEngineStopped is returned by Restart after Stop.
var ErrEngineStopped = errors.New("engine stopped")

// EngineConfig configures an Engine.
type EngineConfig struct {
	Settings Settings
	TickRate time.Duration // Input wait before a tick fires on its own
	Seed     int64         // 0 picks a time-based seed
	Clock    Clock         // nil uses the system clock
}

// Engine runs the tick loop around a World. It waits for one direction or
// the tick timeout, advances the world, then publishes a snapshot. The
// world is only touched by the loop goroutine once Start has been called.
type Engine struct {
	cfg EngineConfig

	mu        sync.Mutex
	world     *World
	sessionID string
	seed      int64
	seeds     *rand.Rand // derives per-session seeds
	done      chan struct{}
	over      bool
	announced bool

	input     chan Direction
	restartCh chan chan error

	snapshots snapshotSource
	subsMu    sync.Mutex
	subs      map[chan *Snapshot]struct{}

	eventLog *EventLog

	running  bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// OnTick is called from the loop after every tick with the published
	// snapshot and the time Advance took. Set it before Start.
	OnTick func(snap *Snapshot, took time.Duration)
}

// NewEngine validates the config and builds the first session.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	e := &Engine{
		cfg:       cfg,
		seeds:     rand.New(rand.NewSource(cfg.Seed)),
		input:     make(chan Direction, inputBuffer),
		restartCh: make(chan chan error),
		subs:      make(map[chan *Snapshot]struct{}),
		eventLog:  NewEventLog(),
		stopChan:  make(chan struct{}),
	}
	if err := e.newSession(cfg.Seed); err != nil {
		return nil, err
	}
	return e, nil
}

// newSession replaces the world. Callers hold e.mu or own the loop.
func (e *Engine) newSession(seed int64) error {
	world, err := NewWorld(e.cfg.Settings, rand.New(rand.NewSource(seed)), e.cfg.Clock)
	if err != nil {
		return fmt.Errorf("new session: %w", err)
	}
	// Placement occurrences from construction are covered by session_start.
	world.DrainOccurrences()

	// A restart ends a live session too.
	if e.done != nil && !e.over {
		close(e.done)
	}

	e.world = world
	e.seed = seed
	e.sessionID = uuid.NewString()
	e.done = make(chan struct{})
	e.over = false
	e.announced = false
	e.publish()
	return nil
}

// Start begins the tick loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.announceSession()
	e.mu.Unlock()

	e.wg.Add(1)
	go e.loop()

	log.Info().Dur("tick", e.cfg.TickRate).Str("session", e.SessionID()).Msg("game engine started")
}

// Stop stops the tick loop. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
		e.wg.Wait()

		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		log.Info().Msg("game engine stopped")
	})
}

func (e *Engine) loop() {
	defer e.wg.Done()

	timer := time.NewTimer(e.cfg.TickRate)
	defer timer.Stop()

	for {
		select {
		case <-e.stopChan:
			return

		case reply := <-e.restartCh:
			e.mu.Lock()
			err := e.newSession(e.seeds.Int63())
			if err == nil {
				e.announceSession()
			}
			e.mu.Unlock()
			reply <- err
			resetTimer(timer, e.cfg.TickRate)

		case dir := <-e.input:
			e.step(dir)
			resetTimer(timer, e.cfg.TickRate)

		case <-timer.C:
			e.step(DirNone)
			timer.Reset(e.cfg.TickRate)
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// step advances the world once. A finished session ignores input until
// Restart.
func (e *Engine) step(dir Direction) {
	e.mu.Lock()
	if e.over {
		e.mu.Unlock()
		return
	}

	start := time.Now()
	outcome, err := e.world.Advance(dir)
	took := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("session", e.sessionID).Msg("tick failed")
	}

	e.emitOccurrences(outcome)
	snap := e.publish()
	e.eventLog.EmitSimple(EventTypeTick, snap.Counters.Ticks, e.sessionID, TickPayload{
		Direction: snap.Direction,
		Head:      snap.Head(),
		Length:    snap.Length,
	})

	if outcome.Over() {
		e.over = true
		close(e.done)
		log.Info().
			Str("session", e.sessionID).
			Str("reason", outcome.Reason.String()).
			Str("cause", outcome.Cause.String()).
			Int("length", snap.Length).
			Uint64("ticks", snap.Counters.Ticks).
			Msg("game over")
	}
	onTick := e.OnTick
	e.mu.Unlock()

	if onTick != nil {
		onTick(snap, took)
	}
}

func (e *Engine) emitOccurrences(outcome Outcome) {
	ticks := e.world.Counters().Ticks
	for _, oc := range e.world.DrainOccurrences() {
		var payload interface{}
		switch oc.Type {
		case EventTypeGrowth, EventTypePoison:
			payload = CellPayload{Cell: oc.At, Length: e.world.Length()}
		case EventTypeGameOver:
			payload = GameOverPayload{Outcome: outcome, Counters: e.world.Counters(), Length: e.world.Length()}
		default:
			payload = PairPayload{From: oc.At, To: oc.To}
		}
		e.eventLog.EmitSimple(oc.Type, ticks, e.sessionID, payload)
	}
}

func (e *Engine) announceSession() {
	if e.announced {
		return
	}
	s := e.world.Settings()
	e.announced = e.eventLog.EmitSimple(EventTypeSessionStart, 0, e.sessionID, SessionStartPayload{
		Seed:         e.seed,
		Width:        s.Width,
		Height:       s.Height,
		GatesInWalls: s.GatesInWalls,
	})
}

// publish stores a new snapshot and fans it out to subscribers.
func (e *Engine) publish() *Snapshot {
	snap := e.world.Snapshot()
	snap.SessionID = e.sessionID
	published := e.snapshots.publish(snap)

	e.subsMu.Lock()
	for ch := range e.subs {
		select {
		case ch <- published:
		default:
			// Drop the stale snapshot so the reader always sees the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- published:
			default:
			}
		}
	}
	e.subsMu.Unlock()
	return published
}

// SubmitDirection queues a direction for the next tick. It never blocks and
// returns false when the input buffer is full.
func (e *Engine) SubmitDirection(d Direction) bool {
	select {
	case e.input <- d:
		return true
	default:
		return false
	}
}

// Restart starts a new session with a fresh world and session id.
func (e *Engine) Restart() error {
	e.mu.Lock()
	if !e.running {
		defer e.mu.Unlock()
		return e.newSession(e.seeds.Int63())
	}
	e.mu.Unlock()

	reply := make(chan error, 1)
	select {
	case e.restartCh <- reply:
	case <-e.stopChan:
		return ErrEngineStopped
	}
	return <-reply
}

// GetSnapshot returns the latest published snapshot. Never nil.
func (e *Engine) GetSnapshot() *Snapshot {
	return e.snapshots.load()
}

// Subscribe returns a channel that always holds the newest snapshot and a
// function that unsubscribes.
func (e *Engine) Subscribe() (<-chan *Snapshot, func()) {
	ch := make(chan *Snapshot, 1)
	ch <- e.snapshots.load()

	e.subsMu.Lock()
	e.subs[ch] = struct{}{}
	e.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subsMu.Lock()
			delete(e.subs, ch)
			e.subsMu.Unlock()
		})
	}
}

// Done is closed when the current session ends.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Over reports whether the current session has ended.
func (e *Engine) Over() bool {
	return e.GetSnapshot().Outcome.Over()
}

// SessionID returns the current session id.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// Settings returns the world settings every session is built with.
func (e *Engine) Settings() Settings {
	return e.cfg.Settings
}

// StartEventLog initializes the event logging system
func (e *Engine) StartEventLog(filePath string) error {
	if err := e.eventLog.Start(filePath); err != nil {
		return err
	}
	e.mu.Lock()
	e.announceSession()
	e.mu.Unlock()
	return nil
}

// StopEventLog flushes and closes the event log
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// GetEventLogStats returns event log statistics for monitoring
func (e *Engine) GetEventLogStats() map[string]interface{} {
	return e.eventLog.GetStats()
}
