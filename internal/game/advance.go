package game

// Advance runs one tick. dir replaces the heading unless it is DirNone or
// equal to it; reversals are not rejected. Terminal states are returned as
// outcomes. A non-nil error is always paired with GameOver(Fault).
func (w *World) Advance(dir Direction) (Outcome, error) {
	if w.outcome.Over() {
		return w.outcome, nil
	}
	if w.missionComplete() {
		return w.finish(gameOver(ReasonMissionComplete, CauseNone)), nil
	}

	if dir != DirNone && dir != w.direction {
		w.direction = dir
	}
	w.counters.Ticks++

	next := w.snake.Head().Add(w.direction)
	if i, ok := w.gateAt(next); ok {
		next = w.traverseGate(i)
	}

	if w.IsCollision(next) {
		return w.finish(gameOver(ReasonCollision, w.collisionCause(next))), nil
	}

	var grew, shrank bool
	switch next {
	case w.growthItem:
		w.counters.GrowthItems++
		w.record(EventTypeGrowth, next, next)
		grew = true
	case w.poisonItem:
		w.counters.PoisonItems++
		w.record(EventTypePoison, next, next)
		if w.snake.Len() <= MinLength {
			return w.finish(gameOver(ReasonCollision, CauseStarvation)), nil
		}
		shrank = true
	}

	w.snake.PushHead(next)
	if !grew {
		w.snake.PopTail()
	}
	if shrank {
		w.snake.PopTail()
	}
	if n := w.snake.Len(); n > w.counters.MaxLength {
		w.counters.MaxLength = n
	}

	if grew || shrank {
		if err := w.generateItems(); err != nil {
			return w.finish(gameOver(ReasonFault, CauseNone)), err
		}
	}
	if err := w.expire(); err != nil {
		return w.finish(gameOver(ReasonFault, CauseNone)), err
	}

	if w.missionComplete() {
		return w.finish(gameOver(ReasonMissionComplete, CauseNone)), nil
	}
	return Continue, nil
}

func (w *World) missionComplete() bool {
	return w.settings.Mission.Complete(w.snake.Len(), w.counters)
}

func (w *World) finish(o Outcome) Outcome {
	w.outcome = o
	w.record(EventTypeGameOver, w.snake.Head(), w.snake.Head())
	return o
}

// traverseGate moves through gate i and returns the exit cell.
func (w *World) traverseGate(i int) Cell {
	entry, exit := w.gates[i], w.gates[1-i]
	w.counters.GateUses++
	w.direction = w.exitDirection(entry, exit)
	w.record(EventTypeGate, entry.Cell, exit.Cell)
	return exit.Cell
}

func (w *World) exitDirection(entry, exit Gate) Direction {
	d := w.direction
	if away, ok := w.awayFromBorder(exit.Cell); ok {
		d = away
	} else if entry.OverWall {
		d = pairDirection(entry.Cell, exit.Cell)
	}
	if exit.OverWall {
		d = w.firstOpenDirection(exit.Cell, d)
	}
	return d
}

func (w *World) awayFromBorder(c Cell) (Direction, bool) {
	switch {
	case c.Y == 0:
		return DirDown, true
	case c.Y == w.settings.Height-1:
		return DirUp, true
	case c.X == 0:
		return DirRight, true
	case c.X == w.settings.Width-1:
		return DirLeft, true
	}
	return DirNone, false
}

// pairDirection points from entry towards exit along the dominant axis of
// the pair.
func pairDirection(entry, exit Cell) Direction {
	dx, dy := exit.X-entry.X, exit.Y-entry.Y
	if abs(dy) >= abs(dx) {
		if dy > 0 {
			return DirDown
		}
		return DirUp
	}
	if dx > 0 {
		return DirRight
	}
	return DirLeft
}

// firstOpenDirection rotates d clockwise until the neighbour of c is not
// blocked. It returns d unchanged if every side is blocked.
func (w *World) firstOpenDirection(c Cell, d Direction) Direction {
	cand := d
	for i := 0; i < 4; i++ {
		if !w.blocked(c.Add(cand)) {
			return cand
		}
		cand = cand.Clockwise()
	}
	return d
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
