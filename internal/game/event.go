package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick              // Tick boundary with heading and length
	EventTypeGrowth
	EventTypePoison
	EventTypeGate
	EventTypeItemsRespawn
	EventTypeGatesRelocated
	EventTypeGameOver
	EventTypeSessionStart
)

// EventVersion for backwards compatibility of the log format
const EventVersion uint8 = 1

// Event is the core event structure for the event log
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`  // Monotonic sequence
	TickNum   uint64          `json:"tickNum"`   // Game tick this occurred in
	SessionID string          `json:"sessionId"`
	Payload   json.RawMessage `json:"payload"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeGrowth:
		return "growth"
	case EventTypePoison:
		return "poison"
	case EventTypeGate:
		return "gate"
	case EventTypeItemsRespawn:
		return "items_respawn"
	case EventTypeGatesRelocated:
		return "gates_relocated"
	case EventTypeGameOver:
		return "game_over"
	case EventTypeSessionStart:
		return "session_start"
	default:
		return "unknown"
	}
}

// MarshalText writes the name instead of the number in NDJSON output.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Typed payloads for different event types

// TickPayload describes the state after a tick
type TickPayload struct {
	Direction Direction `json:"direction"`
	Head      Cell      `json:"head"`
	Length    int       `json:"length"`
}

// CellPayload is used by growth and poison events
type CellPayload struct {
	Cell   Cell `json:"cell"`
	Length int  `json:"length"`
}

// PairPayload is used by gate traversal and relocation events
type PairPayload struct {
	From Cell `json:"from"`
	To   Cell `json:"to"`
}

// GameOverPayload contains the terminal outcome
type GameOverPayload struct {
	Outcome  Outcome  `json:"outcome"`
	Counters Counters `json:"counters"`
	Length   int      `json:"length"`
}

// SessionStartPayload records what a session was started with
type SessionStartPayload struct {
	Seed         int64 `json:"seed"`
	Width        int   `json:"width"`
	Height       int   `json:"height"`
	GatesInWalls bool  `json:"gatesInWalls"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, sessionID string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		SessionID: sessionID,
		Payload:   EncodePayload(payload),
	}
}
