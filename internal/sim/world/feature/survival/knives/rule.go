package knives

import (
	"fmt"
	"log"
	"math"
)

type Config struct {
	// Entities must have fallen strictly more than this many blocks to be tracked.
	FallThreshold float64
	// How many blocks below the feet are searched for ground.
	GroundLookahead int
	// Undamaged standing ticks before tracking is dropped.
	StandingTimeoutTicks int

	ReferenceAttack   float64
	BurnTicksPerLevel float64
	TicksPerSecond    int

	// LegacyOneRemovalPerTick stops the landing scan after the first removal,
	// so at most one tracked entity is resolved per tick.
	LegacyOneRemovalPerTick bool
}

func DefaultConfig() Config {
	return Config{
		FallThreshold:        3,
		GroundLookahead:      10,
		StandingTimeoutTicks: 20,
		ReferenceAttack:      7,
		BurnTicksPerLevel:    80,
		TicksPerSecond:       20,
	}
}

func (c Config) Validate() error {
	switch {
	case c.FallThreshold < 0:
		return fmt.Errorf("fall threshold must be >= 0")
	case c.GroundLookahead < 0:
		return fmt.Errorf("ground lookahead must be >= 0")
	case c.StandingTimeoutTicks <= 0:
		return fmt.Errorf("standing timeout must be > 0")
	case c.ReferenceAttack < 0:
		return fmt.Errorf("reference attack must be >= 0")
	case c.BurnTicksPerLevel < 0:
		return fmt.Errorf("burn ticks per level must be >= 0")
	case c.TicksPerSecond <= 0:
		return fmt.Errorf("ticks per second must be > 0")
	}
	return nil
}

type Landing struct {
	Entity        EntityID `json:"entity"`
	FallDamage    float64  `json:"fall_damage"`
	Extra         float64  `json:"extra"`
	BurnTicks     float64  `json:"burn_ticks,omitempty"`
	IgniteSeconds int      `json:"ignite_seconds,omitempty"`
	Message       string   `json:"message,omitempty"`
}

// Amplified reports whether the landing caused any extra damage.
func (l Landing) Amplified() bool { return l.Extra > 0 }

// Report lists every registry transition of one tick.
type Report struct {
	Tick     uint64     `json:"tick"`
	Tracked  []EntityID `json:"tracked,omitempty"`
	Landed   []Landing  `json:"landed,omitempty"`
	Expired  []EntityID `json:"expired,omitempty"`
	Departed []EntityID `json:"departed,omitempty"`
}

func (r Report) Empty() bool {
	return len(r.Tracked) == 0 && len(r.Landed) == 0 && len(r.Expired) == 0 && len(r.Departed) == 0
}

// Rule punishes players that land from a fall while holding a sword.
// Tick must be called once per world tick, never concurrently.
type Rule struct {
	host Host
	cfg  Config
	reg  *Registry
	amp  Amplifier
	log  *log.Logger
}

func NewRule(host Host, cfg Config, logger *log.Logger) (*Rule, error) {
	if host == nil {
		return nil, fmt.Errorf("knives: nil host")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("knives: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Rule{
		host: host,
		cfg:  cfg,
		reg:  NewRegistry(cfg.FallThreshold, cfg.StandingTimeoutTicks),
		amp: Amplifier{
			ReferenceAttack:   cfg.ReferenceAttack,
			BurnTicksPerLevel: cfg.BurnTicksPerLevel,
		},
		log: logger,
	}, nil
}

func (r *Rule) Registry() *Registry { return r.reg }

// Shutdown drops all tracking state.
func (r *Rule) Shutdown() { r.reg.Clear() }

func (r *Rule) Tick(nowTick uint64) Report {
	rep := Report{Tick: nowTick}

	live := r.host.LiveEntities()
	liveSet := make(map[EntityID]struct{}, len(live))
	for _, id := range live {
		liveSet[id] = struct{}{}

		fallDistance := r.host.FallDistance(id)
		gliding := r.host.IsGliding(id)
		if gliding || fallDistance <= r.cfg.FallThreshold {
			continue
		}
		if _, tracked := r.reg.Get(id); tracked {
			continue
		}
		ground := r.groundWithin(r.host.EntityPos(id))
		if r.reg.Consider(id, fallDistance, ground, gliding, r.host.Health(id)) {
			rep.Tracked = append(rep.Tracked, id)
		}
	}

	var removals []EntityID
	for _, id := range r.reg.Snapshot() {
		if !r.resolve(nowTick, id, liveSet, &rep) {
			continue
		}
		removals = append(removals, id)
		if r.cfg.LegacyOneRemovalPerTick {
			break
		}
	}
	for _, id := range removals {
		r.reg.Remove(id)
	}
	return rep
}

// groundWithin reports whether a non-air block exists at pos or within the
// lookahead distance below it.
func (r *Rule) groundWithin(pos Vec3i) bool {
	for i := 0; i < r.cfg.GroundLookahead; i++ {
		if !r.host.BlockAt(pos).Air {
			return true
		}
		pos = pos.Down()
	}
	return !r.host.BlockAt(pos).Air
}

// resolve advances one tracked entity and reports whether its record is done.
func (r *Rule) resolve(nowTick uint64, id EntityID, live map[EntityID]struct{}, rep *Report) bool {
	if _, ok := live[id]; !ok {
		rep.Departed = append(rep.Departed, id)
		return true
	}
	if r.host.BlockAt(r.host.EntityPos(id).Down()).Air {
		return false
	}
	rec, ok := r.reg.Get(id)
	if !ok {
		return false
	}

	health := r.host.Health(id)
	if health < rec.HealthBeforeFall() {
		rep.Landed = append(rep.Landed, r.land(nowTick, id, rec.HealthBeforeFall()-health))
		return true
	}
	if rec.stand() > 0 {
		return false
	}
	rep.Expired = append(rep.Expired, id)
	return true
}

func (r *Rule) land(nowTick uint64, id EntityID, fallDamage float64) Landing {
	var total ExtraDamage
	for _, item := range []*Item{r.host.MainHand(id), r.host.OffHand(id)} {
		d, errs := r.amp.Amplify(item, fallDamage)
		for _, err := range errs {
			r.log.Printf("warn: tick=%d entity=%s item=%s: %v", nowTick, id, item.ID, err)
		}
		total = total.add(d)
	}

	l := Landing{
		Entity:     id,
		FallDamage: fallDamage,
		Extra:      total.Extra,
		BurnTicks:  total.BurnTicks,
	}
	if total.Extra <= 0 {
		return l
	}

	r.host.ApplyDamage(id, fallDamage+total.Extra)
	msg := fmt.Sprintf("Don't run with knives! You took %d HP extra damage", int(math.Round(total.Extra)))
	if total.BurnTicks > 0 {
		l.IgniteSeconds = int(math.Round(total.BurnTicks / float64(r.cfg.TicksPerSecond)))
	}
	if l.IgniteSeconds > 0 {
		r.host.SetOnFire(id, l.IgniteSeconds)
		msg += " (burning hot!)"
	}
	msg += "."
	r.host.SendStatus(id, msg)
	l.Message = msg
	return l
}
