package world

type WorldConfig struct {
	ID         string
	TickRateHz int
	Height     int
	GroundY    int
	BoundaryR  int

	// Player vitals. Zero values take the defaults in applyDefaults.
	MaxHP                float64
	HurtCooldownTicks    int
	FireDamageEveryTicks int
	// Falls up to this many blocks deal no damage.
	SafeFallDistance float64
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.Height <= 0 {
		c.Height = 128
	}
	if c.GroundY < 0 || c.GroundY >= c.Height {
		c.GroundY = 0
	}
	if c.BoundaryR <= 0 {
		c.BoundaryR = 256
	}
	if c.MaxHP <= 0 {
		c.MaxHP = 20
	}
	if c.HurtCooldownTicks <= 0 {
		c.HurtCooldownTicks = 10
	}
	if c.FireDamageEveryTicks <= 0 {
		c.FireDamageEveryTicks = 20
	}
	if c.SafeFallDistance <= 0 {
		c.SafeFallDistance = 3
	}
}
