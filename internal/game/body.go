package game

import "github.com/gammazero/deque"

// Body is the snake, head first. Moving pushes a new head and drops the
// tail, both O(1).
type Body struct {
	cells *deque.Deque[Cell]
}

// NewBody creates a body from cells ordered head first.
func NewBody(cells ...Cell) *Body {
	b := &Body{cells: deque.New[Cell](len(cells) + 16)}
	for _, c := range cells {
		b.cells.PushBack(c)
	}
	return b
}

// Len returns the number of segments.
func (b *Body) Len() int {
	return b.cells.Len()
}

// Head returns the first segment.
func (b *Body) Head() Cell {
	return b.cells.Front()
}

// Tail returns the last segment.
func (b *Body) Tail() Cell {
	return b.cells.Back()
}

// At returns segment i (0 is the head).
func (b *Body) At(i int) Cell {
	return b.cells.At(i)
}

// PushHead prepends a new head.
func (b *Body) PushHead(c Cell) {
	b.cells.PushFront(c)
}

// PopTail removes and returns the last segment.
func (b *Body) PopTail() Cell {
	return b.cells.PopBack()
}

// Contains reports whether any segment occupies c.
func (b *Body) Contains(c Cell) bool {
	for i := 0; i < b.cells.Len(); i++ {
		if b.cells.At(i) == c {
			return true
		}
	}
	return false
}

// Cells returns a head-first copy of the segments.
func (b *Body) Cells() []Cell {
	out := make([]Cell, b.cells.Len())
	for i := range out {
		out[i] = b.cells.At(i)
	}
	return out
}
