package game

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func newTestEngine(t *testing.T, tick time.Duration) *Engine {
	t.Helper()
	engine, err := NewEngine(EngineConfig{
		Settings: DefaultSettings(),
		TickRate: tick,
		Seed:     1,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(engine.Stop)
	return engine
}

// waitForSnapshot reads from a subscription until pred matches or time runs out.
func waitForSnapshot(t *testing.T, ch <-chan *Snapshot, pred func(*Snapshot) bool) *Snapshot {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			if pred(snap) {
				return snap
			}
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
			return nil
		}
	}
}

func TestNewEngine(t *testing.T) {
	t.Run("rejects invalid grid", func(t *testing.T) {
		s := DefaultSettings()
		s.Width = 10
		_, err := NewEngine(EngineConfig{Settings: s})
		if !errors.Is(err, ErrInvalidGrid) {
			t.Fatalf("expected ErrInvalidGrid, got %v", err)
		}
	})

	t.Run("publishes initial snapshot", func(t *testing.T) {
		engine := newTestEngine(t, time.Hour)
		snap := engine.GetSnapshot()
		if snap == nil {
			t.Fatal("GetSnapshot returned nil before Start")
		}
		if snap.SessionID == "" || snap.SessionID != engine.SessionID() {
			t.Errorf("session id = %q, engine = %q", snap.SessionID, engine.SessionID())
		}
		if snap.Length != InitialLength || snap.Counters.Ticks != 0 {
			t.Errorf("unexpected initial snapshot %+v", snap)
		}
	})
}

func TestEngineStartStop(t *testing.T) {
	engine := newTestEngine(t, 10*time.Millisecond)

	engine.Start()
	engine.Start()
	time.Sleep(30 * time.Millisecond)

	engine.Stop()
	// Should not panic on double stop
	engine.Stop()
}

func TestEngineInputTriggersTick(t *testing.T) {
	engine := newTestEngine(t, time.Hour)
	updates, cancel := engine.Subscribe()
	defer cancel()

	engine.Start()
	if !engine.SubmitDirection(DirLeft) {
		t.Fatal("SubmitDirection rejected input")
	}

	snap := waitForSnapshot(t, updates, func(s *Snapshot) bool { return s.Counters.Ticks == 1 })
	if snap.Direction != DirLeft {
		t.Errorf("direction = %v, want left", snap.Direction)
	}
}

func TestEngineTimeoutTicks(t *testing.T) {
	engine := newTestEngine(t, 5*time.Millisecond)
	updates, cancel := engine.Subscribe()
	defer cancel()

	var hooked atomic.Int64
	engine.OnTick = func(*Snapshot, time.Duration) { hooked.Add(1) }
	engine.Start()

	// Turn into free space first so the snake survives a few ticks.
	engine.SubmitDirection(DirLeft)
	waitForSnapshot(t, updates, func(s *Snapshot) bool { return s.Counters.Ticks >= 2 || s.Outcome.Over() })
	if hooked.Load() == 0 {
		t.Error("OnTick was never called")
	}
}

func TestEngineGameOverAndRestart(t *testing.T) {
	engine := newTestEngine(t, time.Hour)
	engine.Start()
	first := engine.SessionID()
	done := engine.Done()

	// Reversing into the neck ends the session.
	engine.SubmitDirection(DirDown)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Done was not closed on game over")
	}

	snap := engine.GetSnapshot()
	want := Outcome{Status: StatusGameOver, Reason: ReasonCollision, Cause: CauseSelf}
	if snap.Outcome != want {
		t.Fatalf("outcome = %+v, want %+v", snap.Outcome, want)
	}
	if !engine.Over() {
		t.Error("Over() = false after game over")
	}

	if err := engine.Restart(); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if engine.SessionID() == first {
		t.Error("Restart kept the old session id")
	}
	if engine.Over() {
		t.Error("new session starts over")
	}
	select {
	case <-engine.Done():
		t.Error("new session Done is already closed")
	default:
	}
	if next := engine.GetSnapshot(); next.Sequence <= snap.Sequence {
		t.Errorf("sequence went from %d to %d", snap.Sequence, next.Sequence)
	}
}

func TestEngineRestartClosesLiveSession(t *testing.T) {
	engine := newTestEngine(t, time.Hour)
	engine.Start()
	done := engine.Done()

	if err := engine.Restart(); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Done of the replaced session was never closed")
	}
	select {
	case <-engine.Done():
		t.Error("new session Done is already closed")
	default:
	}

	// Restart with the loop stopped replaces the session inline.
	engine.Stop()
	if err := engine.Restart(); err != nil {
		t.Fatalf("Restart after Stop: %v", err)
	}
}

func TestEngineRestartBeforeStart(t *testing.T) {
	engine := newTestEngine(t, time.Hour)
	first := engine.SessionID()
	if err := engine.Restart(); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if engine.SessionID() == first {
		t.Error("Restart kept the old session id")
	}
}

func TestEngineRestartAfterStop(t *testing.T) {
	engine := newTestEngine(t, time.Hour)
	engine.Start()
	engine.Stop()
	if err := engine.Restart(); err != nil {
		t.Fatalf("Restart after Stop: %v", err)
	}
}

func TestEngineSubmitDirectionDoesNotBlock(t *testing.T) {
	engine := newTestEngine(t, time.Hour)

	accepted := 0
	for i := 0; i < inputBuffer*2; i++ {
		if engine.SubmitDirection(DirUp) {
			accepted++
		}
	}
	if accepted != inputBuffer {
		t.Errorf("accepted %d inputs, want %d", accepted, inputBuffer)
	}
}

func TestEngineSubscribeKeepsNewest(t *testing.T) {
	engine := newTestEngine(t, time.Hour)
	updates, cancel := engine.Subscribe()

	engine.mu.Lock()
	for i := 0; i < 3; i++ {
		engine.publish()
	}
	engine.mu.Unlock()

	snap := <-updates
	if snap.Sequence != engine.GetSnapshot().Sequence {
		t.Errorf("got sequence %d, newest is %d", snap.Sequence, engine.GetSnapshot().Sequence)
	}

	cancel()
	cancel()
	engine.subsMu.Lock()
	n := len(engine.subs)
	engine.subsMu.Unlock()
	if n != 0 {
		t.Errorf("%d subscribers left after cancel", n)
	}
}

func TestEngineEventLog(t *testing.T) {
	engine := newTestEngine(t, time.Hour)
	var buf bytes.Buffer
	if err := engine.eventLog.StartWriter(&buf); err != nil {
		t.Fatalf("StartWriter: %v", err)
	}
	engine.Start()

	engine.SubmitDirection(DirDown)
	select {
	case <-engine.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
	engine.Stop()
	engine.StopEventLog()

	types := map[string]int{}
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var ev struct {
			Type      string `json:"type"`
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad line %q: %v", scanner.Text(), err)
		}
		types[ev.Type]++
	}
	for _, want := range []string{"session_start", "tick", "game_over"} {
		if types[want] == 0 {
			t.Errorf("no %s event in %v", want, types)
		}
	}
}
