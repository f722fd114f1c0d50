package game

import (
	"errors"
	"testing"
	"time"
)

func assertSnake(t *testing.T, w *World, want ...Cell) {
	t.Helper()
	got := w.Snake()
	if len(got) != len(want) {
		t.Fatalf("snake = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("snake = %v, want %v", got, want)
		}
	}
}

func TestAdvanceStraightUp(t *testing.T) {
	w, _ := newTestWorld(t, 1, nil)
	clearAhead(w)

	out, err := w.Advance(DirUp)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if out != Continue {
		t.Fatalf("outcome = %+v, want Continue", out)
	}
	assertSnake(t, w, Cell{36, 9}, Cell{36, 10}, Cell{36, 11})
	if w.Counters().Ticks != 1 {
		t.Errorf("ticks = %d, want 1", w.Counters().Ticks)
	}
}

func TestAdvanceDirection(t *testing.T) {
	// Away from the cross so every turn lands on floor.
	tests := []struct {
		name    string
		request Direction
		want    Cell
		wantDir Direction
	}{
		{"no change keeps heading", DirNone, Cell{40, 9}, DirUp},
		{"same direction is idempotent", DirUp, Cell{40, 9}, DirUp},
		{"turn left", DirLeft, Cell{39, 10}, DirLeft},
		{"turn right", DirRight, Cell{41, 10}, DirRight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := newTestWorld(t, 1, nil)
			clearAhead(w)
			w.snake = NewBody(Cell{40, 10}, Cell{40, 11}, Cell{40, 12})

			out, _ := w.Advance(tt.request)
			if out.Over() {
				t.Fatalf("unexpected game over: %+v", out)
			}
			if w.snake.Head() != tt.want {
				t.Errorf("head = %v, want %v", w.snake.Head(), tt.want)
			}
			if w.Direction() != tt.wantDir {
				t.Errorf("direction = %v, want %v", w.Direction(), tt.wantDir)
			}
		})
	}
}

func TestAdvanceReversalHitsNeck(t *testing.T) {
	w, _ := newTestWorld(t, 1, nil)
	clearAhead(w)

	out, err := w.Advance(DirDown)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	want := gameOver(ReasonCollision, CauseSelf)
	if out != want {
		t.Fatalf("outcome = %+v, want %+v", out, want)
	}
	assertSnake(t, w, Cell{36, 10}, Cell{36, 11}, Cell{36, 12})
}

func TestAdvanceTurnIntoCrossArm(t *testing.T) {
	w, _ := newTestWorld(t, 1, nil)
	clearAhead(w)

	// (35,10) is the tip of the horizontal arm, next to the start snake.
	if w.TileAt(Cell{35, 10}) != TileWall {
		t.Fatalf("tile (35,10) = %v, want wall", w.TileAt(Cell{35, 10}))
	}
	out, _ := w.Advance(DirLeft)
	want := gameOver(ReasonCollision, CauseWall)
	if out != want {
		t.Fatalf("outcome = %+v, want %+v", out, want)
	}
	assertSnake(t, w, Cell{36, 10}, Cell{36, 11}, Cell{36, 12})
}

func TestAdvanceWallCollision(t *testing.T) {
	w, _ := newTestWorld(t, 1, nil)
	clearAhead(w)
	w.snake = NewBody(Cell{36, 1}, Cell{36, 2}, Cell{36, 3})

	out, _ := w.Advance(DirUp)
	want := gameOver(ReasonCollision, CauseWall)
	if out != want {
		t.Fatalf("outcome = %+v, want %+v", out, want)
	}

	// Terminal state is sticky and nothing moves afterwards.
	again, err := w.Advance(DirLeft)
	if err != nil || again != want {
		t.Fatalf("second Advance = %+v, %v; want %+v", again, err, want)
	}
	assertSnake(t, w, Cell{36, 1}, Cell{36, 2}, Cell{36, 3})
	if w.Counters().Ticks != 1 {
		t.Errorf("ticks = %d, want 1", w.Counters().Ticks)
	}
}

func TestAdvanceGrowth(t *testing.T) {
	w, _ := newTestWorld(t, 1, nil)
	clearAhead(w)
	w.growthItem = Cell{36, 9}

	out, err := w.Advance(DirUp)
	if err != nil || out.Over() {
		t.Fatalf("Advance = %+v, %v", out, err)
	}
	assertSnake(t, w, Cell{36, 9}, Cell{36, 10}, Cell{36, 11}, Cell{36, 12})

	c := w.Counters()
	if c.GrowthItems != 1 || c.PoisonItems != 0 {
		t.Errorf("counters = %+v", c)
	}
	if c.MaxLength != 4 {
		t.Errorf("max length = %d, want 4", c.MaxLength)
	}
	growth, poison := w.Items()
	if w.snake.Contains(growth) || w.snake.Contains(poison) {
		t.Error("respawned item landed on the snake")
	}

	var sawGrowth, sawRespawn bool
	for _, oc := range w.DrainOccurrences() {
		switch oc.Type {
		case EventTypeGrowth:
			sawGrowth = true
		case EventTypeItemsRespawn:
			sawRespawn = true
		}
	}
	if !sawGrowth || !sawRespawn {
		t.Errorf("occurrences: growth=%v respawn=%v", sawGrowth, sawRespawn)
	}
}

func TestAdvancePoison(t *testing.T) {
	t.Run("shrinks above minimum", func(t *testing.T) {
		w, _ := newTestWorld(t, 1, nil)
		clearAhead(w)
		w.snake = NewBody(Cell{36, 10}, Cell{36, 11}, Cell{36, 12}, Cell{36, 13})
		w.poisonItem = Cell{36, 9}

		out, err := w.Advance(DirUp)
		if err != nil || out.Over() {
			t.Fatalf("Advance = %+v, %v", out, err)
		}
		assertSnake(t, w, Cell{36, 9}, Cell{36, 10}, Cell{36, 11})
		if w.Counters().PoisonItems != 1 {
			t.Errorf("poison items = %d, want 1", w.Counters().PoisonItems)
		}
	})

	t.Run("starves at minimum", func(t *testing.T) {
		w, _ := newTestWorld(t, 1, nil)
		clearAhead(w)
		w.poisonItem = Cell{36, 9}

		out, err := w.Advance(DirUp)
		if err != nil {
			t.Fatalf("Advance: %v", err)
		}
		want := gameOver(ReasonCollision, CauseStarvation)
		if out != want {
			t.Fatalf("outcome = %+v, want %+v", out, want)
		}
		if w.Length() != 3 {
			t.Errorf("length = %d, want 3", w.Length())
		}
		if w.Counters().PoisonItems != 1 {
			t.Errorf("poison items = %d, want 1", w.Counters().PoisonItems)
		}
	})
}

func TestAdvanceFloorGate(t *testing.T) {
	w, _ := newTestWorld(t, 1, nil)
	clearAhead(w)
	w.gates[0] = Gate{Cell: Cell{36, 9}}
	w.gates[1] = Gate{Cell: Cell{10, 4}}

	out, err := w.Advance(DirUp)
	if err != nil || out.Over() {
		t.Fatalf("Advance = %+v, %v", out, err)
	}
	assertSnake(t, w, Cell{10, 4}, Cell{36, 10}, Cell{36, 11})
	if w.Counters().GateUses != 1 {
		t.Errorf("gate uses = %d, want 1", w.Counters().GateUses)
	}
	if w.Direction() != DirUp {
		t.Errorf("direction = %v, want up", w.Direction())
	}

	w.Advance(DirNone)
	if w.snake.Head() != (Cell{10, 3}) {
		t.Errorf("head after exit = %v, want (10,3)", w.snake.Head())
	}
}

func TestAdvanceGateSymmetry(t *testing.T) {
	tests := []struct {
		name     string
		entry    Gate
		exit     Gate
		start    []Cell
		move     Direction
		wantHead Cell
		wantDir  Direction
	}{
		{
			name:     "wall gate on border to wall gate on cross",
			entry:    Gate{Cell: Cell{49, 5}, OverWall: true},
			exit:     Gate{Cell: Cell{25, 7}, OverWall: true},
			start:    []Cell{{48, 5}, {47, 5}, {46, 5}},
			move:     DirRight,
			wantHead: Cell{25, 7},
			wantDir:  DirLeft,
		},
		{
			name:     "exit on border faces inward",
			entry:    Gate{Cell: Cell{36, 9}},
			exit:     Gate{Cell: Cell{0, 5}, OverWall: true},
			start:    []Cell{{36, 10}, {36, 11}, {36, 12}},
			move:     DirUp,
			wantHead: Cell{0, 5},
			wantDir:  DirRight,
		},
		{
			name:     "exit on top border faces down",
			entry:    Gate{Cell: Cell{36, 9}},
			exit:     Gate{Cell: Cell{10, 0}, OverWall: true},
			start:    []Cell{{36, 10}, {36, 11}, {36, 12}},
			move:     DirUp,
			wantHead: Cell{10, 0},
			wantDir:  DirDown,
		},
		{
			name:     "wall-backed entry uses pair orientation",
			entry:    Gate{Cell: Cell{36, 0}, OverWall: true},
			exit:     Gate{Cell: Cell{30, 12}},
			start:    []Cell{{36, 1}, {36, 2}, {36, 3}},
			move:     DirUp,
			wantHead: Cell{30, 12},
			wantDir:  DirDown,
		},
		{
			name:     "blocked exit rotates clockwise",
			entry:    Gate{Cell: Cell{36, 9}},
			exit:     Gate{Cell: Cell{25, 12}, OverWall: true},
			start:    []Cell{{36, 10}, {36, 11}, {36, 12}},
			move:     DirUp,
			wantHead: Cell{25, 12},
			wantDir:  DirRight,
		},
	}

	for _, tt := range tests {
		for _, swap := range []bool{false, true} {
			name := tt.name
			if swap {
				name += " (reversed pair order)"
			}
			t.Run(name, func(t *testing.T) {
				w, _ := newTestWorld(t, 1, nil)
				clearAhead(w)
				w.snake = NewBody(tt.start...)
				w.gates = [2]Gate{tt.entry, tt.exit}
				if swap {
					w.gates = [2]Gate{tt.exit, tt.entry}
				}

				out, err := w.Advance(tt.move)
				if err != nil || out.Over() {
					t.Fatalf("Advance = %+v, %v", out, err)
				}
				if w.snake.Head() != tt.wantHead {
					t.Errorf("head = %v, want %v", w.snake.Head(), tt.wantHead)
				}
				if w.Direction() != tt.wantDir {
					t.Errorf("direction = %v, want %v", w.Direction(), tt.wantDir)
				}
				if w.Counters().GateUses != 1 {
					t.Errorf("gate uses = %d, want 1", w.Counters().GateUses)
				}

				out, _ = w.Advance(DirNone)
				if out.Over() {
					t.Errorf("snake did not leave the exit gate: %+v", out)
				}
			})
		}
	}
}

func TestAdvanceMissionComplete(t *testing.T) {
	t.Run("already satisfied on entry", func(t *testing.T) {
		w, _ := newTestWorld(t, 1, nil)
		clearAhead(w)
		cells := make([]Cell, 0, 10)
		for y := 10; y < 20; y++ {
			cells = append(cells, Cell{36, y})
		}
		w.snake = NewBody(cells...)
		w.counters = Counters{GrowthItems: 5, PoisonItems: 2, GateUses: 1, MaxLength: 10}

		out, err := w.Advance(DirDown)
		if err != nil {
			t.Fatalf("Advance: %v", err)
		}
		want := gameOver(ReasonMissionComplete, CauseNone)
		if out != want {
			t.Fatalf("outcome = %+v, want %+v", out, want)
		}
		if w.snake.Head() != (Cell{36, 10}) {
			t.Errorf("snake moved to %v", w.snake.Head())
		}
	})

	t.Run("reached during tick", func(t *testing.T) {
		w, _ := newTestWorld(t, 1, nil)
		clearAhead(w)
		cells := make([]Cell, 0, 9)
		for y := 10; y < 19; y++ {
			cells = append(cells, Cell{36, y})
		}
		w.snake = NewBody(cells...)
		w.counters = Counters{GrowthItems: 4, PoisonItems: 2, GateUses: 1, MaxLength: 9}
		w.growthItem = Cell{36, 9}

		out, err := w.Advance(DirUp)
		if err != nil {
			t.Fatalf("Advance: %v", err)
		}
		if out != gameOver(ReasonMissionComplete, CauseNone) {
			t.Fatalf("outcome = %+v, want mission complete", out)
		}
		if w.Length() != 10 {
			t.Errorf("length = %d, want 10", w.Length())
		}
	})
}

func TestAdvanceExpiry(t *testing.T) {
	w, clock := newTestWorld(t, 3, nil)
	clearAhead(w)
	w.itemSpawn = clock.Now()
	w.gateSpawn = clock.Now()

	clock.Advance(15 * time.Second)
	w.Advance(DirNone)
	for _, oc := range w.DrainOccurrences() {
		if oc.Type == EventTypeItemsRespawn || oc.Type == EventTypeGatesRelocated {
			t.Fatalf("%v fired at exactly the duration", oc.Type)
		}
	}

	clock.Advance(time.Second)
	w.Advance(DirNone)
	var items, gates bool
	for _, oc := range w.DrainOccurrences() {
		items = items || oc.Type == EventTypeItemsRespawn
		gates = gates || oc.Type == EventTypeGatesRelocated
	}
	if !items || !gates {
		t.Fatalf("expiry: items=%v gates=%v", items, gates)
	}
	if !w.itemSpawn.Equal(clock.Now()) || !w.gateSpawn.Equal(clock.Now()) {
		t.Error("spawn timestamps were not reset")
	}
}

func TestGateExpiryWaitsForSnakeOnWallGate(t *testing.T) {
	w, clock := newTestWorld(t, 3, nil)
	clearAhead(w)
	w.snake = NewBody(Cell{1, 5}, Cell{0, 5}, Cell{1, 6})
	w.gates[1] = Gate{Cell: Cell{0, 5}, OverWall: true}
	w.gateSpawn = clock.Now()

	clock.Advance(20 * time.Second)
	if err := w.expire(); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if w.gates[1].Cell != (Cell{0, 5}) {
		t.Error("gate under the snake was relocated")
	}
}

func TestAdvancePlacementExhausted(t *testing.T) {
	w, _ := newTestWorld(t, 1, nil)
	w.gatesPlaced = false

	head, food := Cell{36, 10}, Cell{36, 9}
	cells := []Cell{head}
	for y := 1; y < 20; y++ {
		for x := 1; x < 49; x++ {
			c := Cell{x, y}
			if c == head || c == food || w.walls.Has(c) {
				continue
			}
			cells = append(cells, c)
		}
	}
	w.snake = NewBody(cells...)
	w.growthItem = food
	w.poisonItem = Cell{0, 0}

	out, err := w.Advance(DirUp)
	if !errors.Is(err, ErrPlacementExhausted) {
		t.Fatalf("expected ErrPlacementExhausted, got %v", err)
	}
	if out != gameOver(ReasonFault, CauseNone) {
		t.Fatalf("outcome = %+v, want fault", out)
	}
}
