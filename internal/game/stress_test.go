package game

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// STRESS TEST SUITE
// Run with: go test -v -run=TestStress -timeout=60s ./internal/game/...
// =============================================================================

// checkInvariants verifies the world state that must hold after every tick.
func checkInvariants(t *testing.T, w *World) {
	t.Helper()

	body := w.Snake()
	if len(body) < MinLength && !w.Outcome().Over() {
		t.Fatalf("length %d below minimum", len(body))
	}

	seen := make(map[Cell]bool, len(body))
	for _, c := range body {
		if seen[c] {
			t.Fatalf("snake overlaps itself at %v", c)
		}
		seen[c] = true
	}

	growth, poison := w.Items()
	if growth == poison {
		t.Fatalf("items share cell %v", growth)
	}
	if seen[growth] || seen[poison] {
		t.Fatalf("item under snake: growth %v poison %v", growth, poison)
	}

	gates := w.Gates()
	if gates[0].Cell == gates[1].Cell {
		t.Fatalf("gates share cell %v", gates[0].Cell)
	}
	for _, g := range gates {
		if w.immune.Has(g.Cell) {
			t.Fatalf("gate on immune cell %v", g.Cell)
		}
	}

	if w.Outcome().Over() {
		return
	}
	head := body[0]
	if w.walls.Has(head) && !w.isGate(head) {
		t.Fatalf("head inside wall at %v", head)
	}
}

// TestStress_RandomSessions plays many sessions with random input and
// checks the world after every tick.
func TestStress_RandomSessions(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	dirs := []Direction{DirNone, DirUp, DirDown, DirLeft, DirRight}
	reasons := make(map[Reason]int)
	var ticks int

	for seed := int64(1); seed <= 300; seed++ {
		w, clock := newTestWorld(t, seed, func(s *Settings) {
			s.GatesInWalls = seed%2 == 0
		})
		input := rand.New(rand.NewSource(seed * 7919))

		for i := 0; i < 2000 && !w.Outcome().Over(); i++ {
			// Mostly keep going, sometimes turn.
			dir := DirNone
			if input.Intn(4) == 0 {
				dir = dirs[input.Intn(len(dirs))]
			}
			clock.Advance(time.Duration(input.Intn(1500)) * time.Millisecond)
			w.Advance(dir)
			checkInvariants(t, w)
			ticks++
		}
		reasons[w.Outcome().Reason]++
	}

	t.Logf("Random Sessions:")
	t.Logf("  Ticks: %d", ticks)
	t.Logf("  Outcomes: %v", reasons)

	if reasons[ReasonFault] > 0 {
		t.Errorf("%d sessions ended in a placement fault", reasons[ReasonFault])
	}
}

// TestStress_ConcurrentClients drives a fast engine from many goroutines:
// direction senders, subscribers, snapshot readers and restarts.
func TestStress_ConcurrentClients(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	engine, err := NewEngine(EngineConfig{
		Settings: DefaultSettings(),
		TickRate: time.Millisecond,
		Seed:     99,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	engine.Start()
	defer engine.Stop()

	var (
		wg         sync.WaitGroup
		submitted  atomic.Int64
		dropped    atomic.Int64
		received   atomic.Int64
		restarts   atomic.Int64
		outOfOrder atomic.Int64
	)
	stopChan := make(chan struct{})
	testDuration := time.Second

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			dirs := []Direction{DirUp, DirLeft, DirDown, DirRight}
			for n := 0; ; n++ {
				select {
				case <-stopChan:
					return
				default:
				}
				if engine.SubmitDirection(dirs[(n+id)%len(dirs)]) {
					submitted.Add(1)
				} else {
					dropped.Add(1)
				}
				time.Sleep(200 * time.Microsecond)
			}
		}(i)
	}

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			updates, cancel := engine.Subscribe()
			defer cancel()

			var last uint64
			for {
				select {
				case <-stopChan:
					return
				case snap := <-updates:
					if snap.Sequence < last {
						outOfOrder.Add(1)
					}
					last = snap.Sequence
					received.Add(1)
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stopChan:
				return
			case <-engine.Done():
				if err := engine.Restart(); err != nil {
					t.Errorf("Restart: %v", err)
					return
				}
				restarts.Add(1)
			case <-time.After(10 * time.Millisecond):
				_ = engine.GetSnapshot().Head()
			}
		}
	}()

	time.Sleep(testDuration)
	close(stopChan)
	wg.Wait()

	t.Logf("Concurrent Clients:")
	t.Logf("  Directions submitted: %d (dropped %d)", submitted.Load(), dropped.Load())
	t.Logf("  Snapshots received: %d", received.Load())
	t.Logf("  Restarts: %d", restarts.Load())

	if outOfOrder.Load() > 0 {
		t.Errorf("%d snapshots arrived out of order", outOfOrder.Load())
	}
	if received.Load() == 0 {
		t.Error("subscribers received nothing")
	}
	if submitted.Load() == 0 {
		t.Error("no direction was accepted")
	}
}

// TestLatency_InputToSnapshot measures the time from a submitted direction
// to the snapshot that reflects it.
func TestLatency_InputToSnapshot(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping latency test in short mode")
	}

	engine, err := NewEngine(EngineConfig{
		Settings: DefaultSettings(),
		TickRate: time.Hour,
		Seed:     5,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	engine.Start()
	defer engine.Stop()

	updates, cancel := engine.Subscribe()
	defer cancel()
	<-updates

	var worst time.Duration
	for i := 0; i < 20 && !engine.Over(); i++ {
		start := time.Now()
		engine.SubmitDirection(DirNone)

		select {
		case <-updates:
		case <-time.After(time.Second):
			t.Fatalf("input %d produced no snapshot", i)
		}
		if took := time.Since(start); took > worst {
			worst = took
		}
	}

	t.Logf("Worst input latency: %v", worst)
	if worst > 100*time.Millisecond {
		t.Errorf("input latency %v exceeds 100ms", worst)
	}
}
