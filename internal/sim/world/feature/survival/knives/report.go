package knives

// Registry transition outcomes, one per Report list.
const (
	OutcomeTracked  = "TRACKED"
	OutcomeLanded   = "LANDED"
	OutcomeExpired  = "EXPIRED"
	OutcomeDeparted = "DEPARTED"
)

// Transition is a single entity's registry change within a Report.
type Transition struct {
	Tick    uint64   `json:"tick"`
	Entity  EntityID `json:"entity"`
	Outcome string   `json:"outcome"`
	Landing *Landing `json:"landing,omitempty"`
}

// Transitions flattens the report in a stable order: tracked, landed,
// expired, departed, each in registry order.
func (r Report) Transitions() []Transition {
	n := len(r.Tracked) + len(r.Landed) + len(r.Expired) + len(r.Departed)
	if n == 0 {
		return nil
	}
	out := make([]Transition, 0, n)
	for _, id := range r.Tracked {
		out = append(out, Transition{Tick: r.Tick, Entity: id, Outcome: OutcomeTracked})
	}
	for i := range r.Landed {
		l := r.Landed[i]
		out = append(out, Transition{Tick: r.Tick, Entity: l.Entity, Outcome: OutcomeLanded, Landing: &l})
	}
	for _, id := range r.Expired {
		out = append(out, Transition{Tick: r.Tick, Entity: id, Outcome: OutcomeExpired})
	}
	for _, id := range r.Departed {
		out = append(out, Transition{Tick: r.Tick, Entity: id, Outcome: OutcomeDeparted})
	}
	return out
}
