package world

import "voxelknives.ai/internal/sim/world/feature/survival/knives"

// Host exposes the world to start-of-tick rules. It shares the world's
// single-goroutine contract: only call it from inside a tick.
func (w *World) Host() knives.Host { return worldHost{w: w} }

type worldHost struct {
	w *World
}

func (h worldHost) LiveEntities() []knives.EntityID {
	ids := h.w.sortedPlayerIDs()
	out := make([]knives.EntityID, 0, len(ids))
	for _, id := range ids {
		out = append(out, knives.EntityID(id))
	}
	return out
}

func (h worldHost) BlockAt(pos knives.Vec3i) knives.BlockState {
	return knives.BlockState{Air: h.w.isAir(pos)}
}

func (h worldHost) player(id knives.EntityID) *Player { return h.w.players[string(id)] }

func (h worldHost) EntityPos(id knives.EntityID) knives.Vec3i {
	if p := h.player(id); p != nil {
		return p.Pos
	}
	return knives.Vec3i{}
}

func (h worldHost) FallDistance(id knives.EntityID) float64 {
	if p := h.player(id); p != nil {
		return p.FallDistance
	}
	return 0
}

func (h worldHost) IsGliding(id knives.EntityID) bool {
	if p := h.player(id); p != nil {
		return p.Gliding
	}
	return false
}

func (h worldHost) Health(id knives.EntityID) float64 {
	if p := h.player(id); p != nil {
		return p.HP
	}
	return 0
}

func (h worldHost) MainHand(id knives.EntityID) *knives.Item {
	if p := h.player(id); p != nil {
		return h.item(p.MainHand)
	}
	return nil
}

func (h worldHost) OffHand(id knives.EntityID) *knives.Item {
	if p := h.player(id); p != nil {
		return h.item(p.OffHand)
	}
	return nil
}

func (h worldHost) item(s *ItemStack) *knives.Item {
	if s == nil || s.Item == "" {
		return nil
	}
	def, ok := h.w.catalogs.Items.Defs[s.Item]
	if !ok {
		return nil
	}
	return &knives.Item{
		ID:          def.ID,
		AttackPower: def.AttackPower,
		SwordClass:  def.SwordClass(),
		Meta:        s.Meta,
	}
}

func (h worldHost) ApplyDamage(id knives.EntityID, amount float64) {
	if p := h.player(id); p != nil {
		h.w.damage(p, amount, "FALL")
	}
}

func (h worldHost) SetOnFire(id knives.EntityID, seconds int) {
	p := h.player(id)
	if p == nil || seconds <= 0 {
		return
	}
	ticks := seconds * h.w.cfg.TickRateHz
	p.ignite(ticks)
	h.w.emit(Event{PlayerID: p.ID, Kind: EventIgnite, Amount: float64(ticks), HP: p.HP})
}

func (h worldHost) SendStatus(id knives.EntityID, text string) {
	if p := h.player(id); p != nil {
		h.w.sendStatus(h.w.tick.Load(), p, text)
	}
}
