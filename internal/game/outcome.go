package game

// Status says whether the session continues after a tick.
type Status uint8

const (
	StatusContinue Status = iota
	StatusGameOver
)

// Reason is why a session ended.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonCollision
	ReasonMissionComplete
	ReasonFault // internal failure such as placement exhaustion
)

// Cause details a collision. Starvation is a poison hit at minimum length.
type Cause uint8

const (
	CauseNone Cause = iota
	CauseWall
	CauseSelf
	CauseBounds
	CauseStarvation
)

// Outcome is the result of one Advance call.
type Outcome struct {
	Status Status `json:"status"`
	Reason Reason `json:"reason"`
	Cause  Cause  `json:"cause"`
}

// Continue is the outcome of a tick that did not end the session.
var Continue = Outcome{Status: StatusContinue}

// Over reports whether the session has ended.
func (o Outcome) Over() bool {
	return o.Status == StatusGameOver
}

func gameOver(reason Reason, cause Cause) Outcome {
	return Outcome{Status: StatusGameOver, Reason: reason, Cause: cause}
}

func (s Status) String() string {
	if s == StatusGameOver {
		return "game_over"
	}
	return "continue"
}

func (r Reason) String() string {
	switch r {
	case ReasonCollision:
		return "collision"
	case ReasonMissionComplete:
		return "mission_complete"
	case ReasonFault:
		return "fault"
	default:
		return "none"
	}
}

func (c Cause) String() string {
	switch c {
	case CauseWall:
		return "wall"
	case CauseSelf:
		return "self"
	case CauseBounds:
		return "bounds"
	case CauseStarvation:
		return "starvation"
	default:
		return "none"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
func (r Reason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }
func (c Cause) MarshalText() ([]byte, error)  { return []byte(c.String()), nil }

// UnmarshalText accepts the names produced by MarshalText so snapshots
// can be decoded by API clients. Unknown names decode to the zero value.
func (s *Status) UnmarshalText(text []byte) error {
	*s = StatusContinue
	if string(text) == "game_over" {
		*s = StatusGameOver
	}
	return nil
}

func (r *Reason) UnmarshalText(text []byte) error {
	for _, v := range []Reason{ReasonCollision, ReasonMissionComplete, ReasonFault} {
		if v.String() == string(text) {
			*r = v
			return nil
		}
	}
	*r = ReasonNone
	return nil
}

func (c *Cause) UnmarshalText(text []byte) error {
	for _, v := range []Cause{CauseWall, CauseSelf, CauseBounds, CauseStarvation} {
		if v.String() == string(text) {
			*c = v
			return nil
		}
	}
	*c = CauseNone
	return nil
}
