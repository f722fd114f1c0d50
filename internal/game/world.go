package game

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/zyedidia/generic/mapset"
)

const (
	MinWidth             = 26 // border + cross arm + start column
	MinHeight            = 14
	InitialLength        = 3
	MinLength            = 3
	MaxPlacementAttempts = 10000

	crossArmX = 10
	crossArmY = 5
	startOffX = 11
)

// Settings parameterize a World. They are fixed for the life of a session.
type Settings struct {
	Width        int
	Height       int
	ItemDuration time.Duration
	GateDuration time.Duration

	// GatesInWalls places gates on non-immune wall cells instead of floor cells.
	GatesInWalls bool

	Mission Mission
}

// DefaultSettings returns the stage constants: a 50x21 field and 15 second
// item and gate lifetimes.
func DefaultSettings() Settings {
	return Settings{
		Width:        50,
		Height:       21,
		ItemDuration: 15 * time.Second,
		GateDuration: 15 * time.Second,
		Mission:      DefaultMission,
	}
}

// Gate is one end of the gate pair. OverWall marks a gate that opens a wall cell.
type Gate struct {
	Cell     Cell `json:"cell"`
	OverWall bool `json:"overWall"`
}

// Tile is the resolved content of a static grid cell.
type Tile uint8

const (
	TileFloor Tile = iota
	TileWall
	TileImmune
	TileGate
	TileGateInWall
)

// Occurrence is something notable that happened inside the world during a
// tick. The engine drains them into the event log.
type Occurrence struct {
	Type EventType
	At   Cell
	To   Cell
}

// World is the grid state machine: walls, snake, items, gates and counters.
// It is not safe for concurrent use; one control loop owns it.
type World struct {
	settings Settings
	rng      *rand.Rand
	clock    Clock

	walls      mapset.Set[Cell]
	immune     mapset.Set[Cell]
	wallList   []Cell
	immuneList []Cell
	gateSlots  []Cell // candidate cells in GatesInWalls mode

	snake     *Body
	direction Direction

	growthItem Cell
	poisonItem Cell
	itemSpawn  time.Time

	gates       [2]Gate
	gatesPlaced bool
	gateSpawn   time.Time

	counters  Counters
	outcome   Outcome
	startedAt time.Time

	occurrences []Occurrence
}

// NewWorld builds the fixed layout, places the start snake and spawns the
// first items and gates.
func NewWorld(s Settings, rng *rand.Rand, clock Clock) (*World, error) {
	if s.Width < MinWidth || s.Height < MinHeight {
		return nil, fmt.Errorf("%w: %dx%d, minimum %dx%d", ErrInvalidGrid, s.Width, s.Height, MinWidth, MinHeight)
	}
	if s.Mission == (Mission{}) {
		s.Mission = DefaultMission
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if clock == nil {
		clock = SystemClock{}
	}

	w := &World{
		settings: s,
		rng:      rng,
		clock:    clock,
		walls:    mapset.New[Cell](),
		immune:   mapset.New[Cell](),
	}
	w.buildLayout()

	startX := s.Width/2 + startOffX
	startY := s.Height / 2
	w.snake = NewBody(
		Cell{X: startX, Y: startY},
		Cell{X: startX, Y: startY + 1},
		Cell{X: startX, Y: startY + 2},
	)
	w.direction = DirUp
	w.counters.MaxLength = w.snake.Len()
	w.startedAt = clock.Now()

	if err := w.generateItems(); err != nil {
		return nil, err
	}
	if err := w.generateGates(); err != nil {
		return nil, err
	}
	return w, nil
}

// buildLayout creates the border, the interior cross and the immune cells.
// Immune cells are walls as well.
func (w *World) buildLayout() {
	width, height := w.settings.Width, w.settings.Height
	cx, cy := width/2, height/2

	addWall := func(c Cell) {
		if w.walls.Has(c) {
			return
		}
		w.walls.Put(c)
		w.wallList = append(w.wallList, c)
	}

	for x := 0; x < width; x++ {
		addWall(Cell{X: x, Y: 0})
		addWall(Cell{X: x, Y: height - 1})
	}
	for y := 1; y < height-1; y++ {
		addWall(Cell{X: 0, Y: y})
		addWall(Cell{X: width - 1, Y: y})
	}
	addWall(Cell{X: cx, Y: cy})
	for i := 1; i <= crossArmY; i++ {
		addWall(Cell{X: cx, Y: cy + i})
		addWall(Cell{X: cx, Y: cy - i})
	}
	for i := 1; i <= crossArmX; i++ {
		addWall(Cell{X: cx + i, Y: cy})
		addWall(Cell{X: cx - i, Y: cy})
	}

	w.immuneList = []Cell{
		{X: 0, Y: 0},
		{X: width - 1, Y: 0},
		{X: 0, Y: height - 1},
		{X: width - 1, Y: height - 1},
		{X: cx, Y: cy},
	}
	for _, c := range w.immuneList {
		w.immune.Put(c)
	}

	for _, c := range w.wallList {
		if !w.immune.Has(c) {
			w.gateSlots = append(w.gateSlots, c)
		}
	}
}

// IsCollision reports whether moving the head onto p ends the game.
// Gate cells are always passable.
func (w *World) IsCollision(p Cell) bool {
	if w.isGate(p) {
		return false
	}
	if w.outOfBounds(p) {
		return true
	}
	if w.snake.Contains(p) {
		return true
	}
	return w.walls.Has(p)
}

func (w *World) collisionCause(p Cell) Cause {
	switch {
	case w.snake.Contains(p):
		return CauseSelf
	case w.walls.Has(p):
		return CauseWall
	default:
		return CauseBounds
	}
}

// outOfBounds is true outside the open interior [1,W-2]x[1,H-2].
func (w *World) outOfBounds(p Cell) bool {
	return p.X <= 0 || p.X >= w.settings.Width-1 || p.Y <= 0 || p.Y >= w.settings.Height-1
}

// blocked is a wall or out-of-bounds test that ignores the snake.
func (w *World) blocked(p Cell) bool {
	if w.isGate(p) {
		return false
	}
	return w.outOfBounds(p) || w.walls.Has(p)
}

func (w *World) isGate(p Cell) bool {
	_, ok := w.gateAt(p)
	return ok
}

func (w *World) gateAt(p Cell) (int, bool) {
	if !w.gatesPlaced {
		return 0, false
	}
	for i, g := range w.gates {
		if g.Cell == p {
			return i, true
		}
	}
	return 0, false
}

// TileAt resolves the static content of c. Snake and items are not tiles.
func (w *World) TileAt(c Cell) Tile {
	if i, ok := w.gateAt(c); ok {
		if w.gates[i].OverWall {
			return TileGateInWall
		}
		return TileGate
	}
	if w.immune.Has(c) {
		return TileImmune
	}
	if w.walls.Has(c) {
		return TileWall
	}
	return TileFloor
}

func (w *World) record(t EventType, at, to Cell) {
	w.occurrences = append(w.occurrences, Occurrence{Type: t, At: at, To: to})
}

// DrainOccurrences returns and clears everything recorded since the last drain.
func (w *World) DrainOccurrences() []Occurrence {
	out := w.occurrences
	w.occurrences = nil
	return out
}

// Settings returns the construction settings.
func (w *World) Settings() Settings { return w.settings }

// Direction returns the current heading.
func (w *World) Direction() Direction { return w.direction }

// Counters returns the cumulative counters.
func (w *World) Counters() Counters { return w.counters }

// Outcome returns the terminal outcome, or Continue while running.
func (w *World) Outcome() Outcome { return w.outcome }

// Snake returns a head-first copy of the body.
func (w *World) Snake() []Cell { return w.snake.Cells() }

// Length returns the body length.
func (w *World) Length() int { return w.snake.Len() }

// Items returns the growth and poison item cells.
func (w *World) Items() (growth, poison Cell) { return w.growthItem, w.poisonItem }

// Gates returns the gate pair.
func (w *World) Gates() [2]Gate { return w.gates }

// MissionProgress returns the scoreboard breakdown.
func (w *World) MissionProgress() []Goal {
	return w.settings.Mission.Progress(w.snake.Len(), w.counters)
}
