package game

import "fmt"

// randomInterior samples a cell uniformly from [1,W-2]x[1,H-2].
func (w *World) randomInterior() Cell {
	return Cell{
		X: w.rng.Intn(w.settings.Width-2) + 1,
		Y: w.rng.Intn(w.settings.Height-2) + 1,
	}
}

// generateItems places both items on free floor cells and resets the item timer.
func (w *World) generateItems() error {
	free := func(c Cell) bool {
		return !w.snake.Contains(c) && !w.IsCollision(c) && !w.isGate(c)
	}
	for attempt := 0; attempt < MaxPlacementAttempts; attempt++ {
		growth, poison := w.randomInterior(), w.randomInterior()
		if growth == poison || !free(growth) || !free(poison) {
			continue
		}
		w.growthItem, w.poisonItem = growth, poison
		w.itemSpawn = w.clock.Now()
		w.record(EventTypeItemsRespawn, growth, poison)
		return nil
	}
	return fmt.Errorf("items: %w after %d attempts", ErrPlacementExhausted, MaxPlacementAttempts)
}

// generateGates relocates the gate pair and resets the gate timer. The wall
// set is left untouched; a gate over a wall only shadows it.
func (w *World) generateGates() error {
	sample := w.randomInterior
	valid := w.validFloorGate
	if w.settings.GatesInWalls {
		sample = func() Cell { return w.gateSlots[w.rng.Intn(len(w.gateSlots))] }
		valid = func(c Cell) bool { return !w.immune.Has(c) && !w.snake.Contains(c) }
	}

	for attempt := 0; attempt < MaxPlacementAttempts; attempt++ {
		a, b := sample(), sample()
		if a == b || !valid(a) || !valid(b) {
			continue
		}
		w.gates[0] = Gate{Cell: a, OverWall: w.walls.Has(a)}
		w.gates[1] = Gate{Cell: b, OverWall: w.walls.Has(b)}
		w.gatesPlaced = true
		w.gateSpawn = w.clock.Now()
		w.record(EventTypeGatesRelocated, a, b)
		return nil
	}
	return fmt.Errorf("gates: %w after %d attempts", ErrPlacementExhausted, MaxPlacementAttempts)
}

func (w *World) validFloorGate(c Cell) bool {
	if w.walls.Has(c) || w.immune.Has(c) || w.snake.Contains(c) {
		return false
	}
	return c != w.growthItem && c != w.poisonItem
}

// snakeOnWallGate reports whether any segment occupies a wall-backed gate.
// Relocating that gate would leave the body inside a wall.
func (w *World) snakeOnWallGate() bool {
	for _, g := range w.gates {
		if g.OverWall && w.snake.Contains(g.Cell) {
			return true
		}
	}
	return false
}

// expire regenerates items and gates whose lifetime has elapsed.
func (w *World) expire() error {
	now := w.clock.Now()
	if now.Sub(w.itemSpawn) > w.settings.ItemDuration {
		if err := w.generateItems(); err != nil {
			return err
		}
	}
	if now.Sub(w.gateSpawn) > w.settings.GateDuration && !w.snakeOnWallGate() {
		if err := w.generateGates(); err != nil {
			return err
		}
	}
	return nil
}
