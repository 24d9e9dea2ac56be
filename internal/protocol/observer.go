package protocol

// SUBSCRIBE (observer -> server). An empty PlayerID subscribes to every player.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerID        string `json:"player_id,omitempty"`
}

// TICK (server -> observer): fall tracking transitions and world events of one tick.
type TickMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	Tracked         []string     `json:"tracked,omitempty"`
	Landed          []LandingObs `json:"landed,omitempty"`
	Expired         []string     `json:"expired,omitempty"`
	Departed        []string     `json:"departed,omitempty"`
	Events          []EventObs   `json:"events,omitempty"`
}

type LandingObs struct {
	PlayerID      string  `json:"player_id"`
	FallDamage    float64 `json:"fall_damage"`
	Extra         float64 `json:"extra"`
	IgniteSeconds int     `json:"ignite_seconds,omitempty"`
	Message       string  `json:"message,omitempty"`
}

type EventObs struct {
	PlayerID string  `json:"player_id"`
	Kind     string  `json:"kind"`
	Cause    string  `json:"cause,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
	HP       float64 `json:"hp"`
	Text     string  `json:"text,omitempty"`
}

// Empty reports whether the message carries nothing worth sending.
func (m TickMsg) Empty() bool {
	return len(m.Tracked) == 0 && len(m.Landed) == 0 && len(m.Expired) == 0 && len(m.Departed) == 0 && len(m.Events) == 0
}
