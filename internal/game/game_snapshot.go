package game

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Snapshot is an immutable copy of the world for rendering and the API.
// Slices are owned by the snapshot and never shared with the world.
type Snapshot struct {
	SessionID string    `json:"sessionId"`
	Sequence  uint64    `json:"sequence"` // Monotonic across sessions of one engine
	Timestamp time.Time `json:"timestamp"`

	Width  int `json:"width"`
	Height int `json:"height"`

	Snake     []Cell    `json:"snake"` // Head first
	Direction Direction `json:"direction"`
	Walls     []Cell    `json:"walls"`
	Immune    []Cell    `json:"immune"`
	Growth    Cell      `json:"growth"`
	Poison    Cell      `json:"poison"`
	Gates     [2]Gate   `json:"gates"`

	Length   int      `json:"length"`
	Counters Counters `json:"counters"`
	Mission  []Goal   `json:"mission"`

	ElapsedSeconds int64   `json:"elapsedSeconds"`
	Outcome        Outcome `json:"outcome"`
}

// Head returns the head cell, or the zero cell for an empty snapshot.
func (s *Snapshot) Head() Cell {
	if len(s.Snake) == 0 {
		return Cell{}
	}
	return s.Snake[0]
}

// Snapshot copies the current world state.
func (w *World) Snapshot() Snapshot {
	walls := make([]Cell, len(w.wallList))
	copy(walls, w.wallList)
	immune := make([]Cell, len(w.immuneList))
	copy(immune, w.immuneList)

	now := w.clock.Now()
	return Snapshot{
		Timestamp:      now,
		Width:          w.settings.Width,
		Height:         w.settings.Height,
		Snake:          w.snake.Cells(),
		Direction:      w.direction,
		Walls:          walls,
		Immune:         immune,
		Growth:         w.growthItem,
		Poison:         w.poisonItem,
		Gates:          w.gates,
		Length:         w.snake.Len(),
		Counters:       w.counters,
		Mission:        w.MissionProgress(),
		ElapsedSeconds: int64(now.Sub(w.startedAt) / time.Second),
		Outcome:        w.outcome,
	}
}

// snapshotSource publishes the latest snapshot to concurrent readers
// without locking the tick loop.
type snapshotSource struct {
	latest   atomic.Pointer[Snapshot]
	sequence atomic.Uint64
}

func (s *snapshotSource) publish(snap Snapshot) *Snapshot {
	snap.Sequence = s.sequence.Add(1)
	s.latest.Store(&snap)
	return &snap
}

func (s *snapshotSource) load() *Snapshot {
	return s.latest.Load()
}

// ScoreboardLines returns the side panel text shared by the terminal and
// raster renderers.
func (s *Snapshot) ScoreboardLines() []string {
	lines := []string{
		fmt.Sprintf("Time: %dsec", s.ElapsedSeconds),
		"Score Board",
		fmt.Sprintf("B: %d / %d", s.Length, s.Counters.MaxLength),
		fmt.Sprintf("+: %d", s.Counters.GrowthItems),
		fmt.Sprintf("-: %d", s.Counters.PoisonItems),
		fmt.Sprintf("G: %d", s.Counters.GateUses),
		"",
		"Mission",
	}
	for _, g := range s.Mission {
		mark := ' '
		if g.Done {
			mark = 'v'
		}
		lines = append(lines, fmt.Sprintf("%s: %d (%c)", g.Symbol, g.Target, mark))
	}
	return lines
}

// Banner is the centered message for a finished session, or "" while
// the session runs.
func (s *Snapshot) Banner() string {
	switch {
	case !s.Outcome.Over():
		return ""
	case s.Outcome.Reason == ReasonMissionComplete:
		return "Mission Complete!"
	default:
		return "Game Over"
	}
}
