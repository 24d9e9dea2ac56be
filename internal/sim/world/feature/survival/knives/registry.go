package knives

// FallRecord tracks one entity between "started falling" and "landed".
type FallRecord struct {
	healthBeforeFall float64
	standingTimeout  int
}

func (r *FallRecord) HealthBeforeFall() float64 { return r.healthBeforeFall }

// StandingTimeout is the number of undamaged standing ticks left before tracking ends.
func (r *FallRecord) StandingTimeout() int { return r.standingTimeout }

// stand consumes one undamaged standing tick and returns what is left.
func (r *FallRecord) stand() int {
	if r.standingTimeout > 0 {
		r.standingTimeout--
	}
	return r.standingTimeout
}

// Registry is the fall watch-list. It is owned by a single Rule and must only
// be touched from the world tick.
type Registry struct {
	fallThreshold float64
	standingTicks int
	records       map[EntityID]*FallRecord
	order         []EntityID
}

func NewRegistry(fallThreshold float64, standingTimeoutTicks int) *Registry {
	if standingTimeoutTicks <= 0 {
		standingTimeoutTicks = 1
	}
	return &Registry{
		fallThreshold: fallThreshold,
		standingTicks: standingTimeoutTicks,
		records:       map[EntityID]*FallRecord{},
	}
}

// Consider starts tracking id when it is falling far enough towards reachable
// ground without gliding. It reports whether a new record was inserted.
func (r *Registry) Consider(id EntityID, fallDistance float64, groundWithinLookahead, gliding bool, health float64) bool {
	if _, ok := r.records[id]; ok {
		return false
	}
	if gliding || !groundWithinLookahead || fallDistance <= r.fallThreshold {
		return false
	}
	r.records[id] = &FallRecord{
		healthBeforeFall: health,
		standingTimeout:  r.standingTicks,
	}
	r.order = append(r.order, id)
	return true
}

// Snapshot returns the tracked ids in insertion order. The slice is a copy and
// stays valid while the registry is modified.
func (r *Registry) Snapshot() []EntityID {
	out := make([]EntityID, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Get(id EntityID) (*FallRecord, bool) {
	rec, ok := r.records[id]
	return rec, ok
}

func (r *Registry) Remove(id EntityID) {
	if _, ok := r.records[id]; !ok {
		return
	}
	delete(r.records, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Registry) Len() int { return len(r.records) }

func (r *Registry) Clear() {
	r.records = map[EntityID]*FallRecord{}
	r.order = nil
}
