package game

// Mission holds the thresholds that end the game in victory when all are met.
type Mission struct {
	Length int `json:"length"`
	Growth int `json:"growth"`
	Poison int `json:"poison"`
	Gates  int `json:"gates"`
}

// DefaultMission is the fixed stage mission.
var DefaultMission = Mission{
	Length: 10,
	Growth: 5,
	Poison: 2,
	Gates:  1,
}

// Counters are the cumulative totals the mission is evaluated against.
// Item and gate totals never decrease.
type Counters struct {
	GrowthItems int    `json:"growthItems"`
	PoisonItems int    `json:"poisonItems"`
	GateUses    int    `json:"gateUses"`
	MaxLength   int    `json:"maxLength"`
	Ticks       uint64 `json:"ticks"`
}

// Goal is one mission line as shown on the scoreboard.
type Goal struct {
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	Target  int    `json:"target"`
	Current int    `json:"current"`
	Done    bool   `json:"done"`
}

// Complete reports whether every threshold is met.
func (m Mission) Complete(length int, c Counters) bool {
	return length >= m.Length &&
		c.GrowthItems >= m.Growth &&
		c.PoisonItems >= m.Poison &&
		c.GateUses >= m.Gates
}

// Progress returns the per-goal breakdown in scoreboard order.
func (m Mission) Progress(length int, c Counters) []Goal {
	return []Goal{
		{Name: "length", Symbol: "B", Target: m.Length, Current: length, Done: length >= m.Length},
		{Name: "growth", Symbol: "+", Target: m.Growth, Current: c.GrowthItems, Done: c.GrowthItems >= m.Growth},
		{Name: "poison", Symbol: "-", Target: m.Poison, Current: c.PoisonItems, Done: c.PoisonItems >= m.Poison},
		{Name: "gates", Symbol: "G", Target: m.Gates, Current: c.GateUses, Done: c.GateUses >= m.Gates},
	}
}
