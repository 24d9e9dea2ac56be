package world

import (
	"encoding/json"
	"math"
)

type ItemStack struct {
	Item string          `json:"item"`
	Meta json.RawMessage `json:"meta,omitempty"`
}

type Player struct {
	ID   string
	Name string

	Pos          Vec3i
	FallDistance float64
	Gliding      bool

	HP        float64
	FireTicks int

	// Damage taken while HurtCooldown > 0 only applies the part exceeding LastDamage.
	HurtCooldown int
	LastDamage   float64

	MainHand *ItemStack
	OffHand  *ItemStack

	spawn Vec3i
	// Status delivery; nil for players without a connection (tests, replay).
	out chan []byte
}

// PlayerState is a read-only copy of a player, safe to hand out of the world loop.
type PlayerState struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Pos          [3]int     `json:"pos"`
	FallDistance float64    `json:"fall_distance"`
	Gliding      bool       `json:"gliding,omitempty"`
	HP           float64    `json:"hp"`
	FireTicks    int        `json:"fire_ticks,omitempty"`
	MainHand     *ItemStack `json:"main_hand,omitempty"`
	OffHand      *ItemStack `json:"off_hand,omitempty"`
}

func (p *Player) state() PlayerState {
	return PlayerState{
		ID:           p.ID,
		Name:         p.Name,
		Pos:          [3]int{p.Pos.X, p.Pos.Y, p.Pos.Z},
		FallDistance: p.FallDistance,
		Gliding:      p.Gliding,
		HP:           p.HP,
		FireTicks:    p.FireTicks,
		MainHand:     p.MainHand,
		OffHand:      p.OffHand,
	}
}

// hurt applies amount and returns the health actually lost.
func (p *Player) hurt(amount float64, cooldownTicks int) float64 {
	if amount <= 0 || p.HP <= 0 {
		return 0
	}
	applied := amount
	if p.HurtCooldown > 0 {
		if amount <= p.LastDamage {
			return 0
		}
		applied = amount - p.LastDamage
	} else {
		p.HurtCooldown = cooldownTicks
	}
	p.LastDamage = amount
	applied = math.Min(applied, p.HP)
	p.HP -= applied
	return applied
}

func (p *Player) ignite(ticks int) {
	if ticks > p.FireTicks {
		p.FireTicks = ticks
	}
}
