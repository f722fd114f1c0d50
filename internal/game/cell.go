package game

import (
	"fmt"
	"strings"
)

// Cell is an integer coordinate on the grid. (0,0) is the top-left corner.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns the cell offset by one unit in direction d.
func (c Cell) Add(d Direction) Cell {
	dx, dy := d.Offset()
	return Cell{X: c.X + dx, Y: c.Y + dy}
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Direction is the snake heading. The zero value DirNone means "no change"
// when passed to Advance.
type Direction uint8

const (
	DirNone Direction = iota
	DirUp
	DirDown
	DirLeft
	DirRight
)

// Offset returns the unit step for the direction.
func (d Direction) Offset() (dx, dy int) {
	switch d {
	case DirUp:
		return 0, -1
	case DirDown:
		return 0, 1
	case DirLeft:
		return -1, 0
	case DirRight:
		return 1, 0
	default:
		return 0, 0
	}
}

// Clockwise returns the direction rotated a quarter turn to the right.
func (d Direction) Clockwise() Direction {
	switch d {
	case DirUp:
		return DirRight
	case DirRight:
		return DirDown
	case DirDown:
		return DirLeft
	case DirLeft:
		return DirUp
	default:
		return DirNone
	}
}

// String returns human-readable direction
func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	default:
		return "none"
	}
}

// MarshalText encodes the direction as its lowercase name.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText, case-insensitive.
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDirection converts "up", "down", "left", "right" (or "none"/"") to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "u":
		return DirUp, nil
	case "down", "d":
		return DirDown, nil
	case "left", "l":
		return DirLeft, nil
	case "right", "r":
		return DirRight, nil
	case "", "none":
		return DirNone, nil
	default:
		return DirNone, fmt.Errorf("%w: %q", ErrUnknownDirection, s)
	}
}
