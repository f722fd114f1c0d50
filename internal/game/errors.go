package game

import "errors"

var (
	// ErrInvalidGrid is returned when the grid is too small for the fixed layout.
	ErrInvalidGrid = errors.New("invalid grid dimensions")

	// ErrPlacementExhausted is returned when random placement could not find
	// a free cell within MaxPlacementAttempts samples.
	ErrPlacementExhausted = errors.New("placement attempts exhausted")

	// ErrUnknownDirection is returned by ParseDirection.
	ErrUnknownDirection = errors.New("unknown direction")
)
