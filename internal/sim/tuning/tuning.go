package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"voxelknives.ai/internal/sim/world/feature/survival/knives"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int `yaml:"tick_rate_hz"`
	Height     int `yaml:"height"`
	GroundY    int `yaml:"ground_y"`
	BoundaryR  int `yaml:"boundary_r"`

	MaxHP                float64 `yaml:"max_hp"`
	HurtCooldownTicks    int     `yaml:"hurt_cooldown_ticks"`
	FireDamageEveryTicks int     `yaml:"fire_damage_every_ticks"`
	SafeFallDistance     float64 `yaml:"safe_fall_distance"`

	Knives Knives `yaml:"knives"`
}

type Knives struct {
	FallThreshold           float64 `yaml:"fall_threshold"`
	GroundLookahead         int     `yaml:"ground_lookahead"`
	StandingTimeoutTicks    int     `yaml:"standing_timeout_ticks"`
	ReferenceWeapon         string  `yaml:"reference_weapon"`
	BurnTicksPerLevel       float64 `yaml:"burn_ticks_per_level"`
	BurnTicksPerSecond      int     `yaml:"burn_ticks_per_second"`
	LegacyOneRemovalPerTick bool    `yaml:"legacy_one_removal_per_tick"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:      "1.0",
		TickRateHz:           20,
		Height:               128,
		GroundY:              0,
		BoundaryR:            256,
		MaxHP:                20,
		HurtCooldownTicks:    10,
		FireDamageEveryTicks: 20,
		SafeFallDistance:     3,
		Knives: Knives{
			FallThreshold:        3,
			GroundLookahead:      10,
			StandingTimeoutTicks: 20,
			ReferenceWeapon:      "DIAMOND_SWORD",
			BurnTicksPerLevel:    80,
			BurnTicksPerSecond:   20,
		},
	}
}

// Load reads tuning.yaml on top of Defaults, so omitted keys keep their default.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be > 0")
	}
	if t.Height <= 0 || t.GroundY < 0 || t.GroundY >= t.Height {
		return fmt.Errorf("ground_y must be within [0,height)")
	}
	if t.BoundaryR <= 0 {
		return fmt.Errorf("boundary_r must be > 0")
	}
	if t.MaxHP <= 0 {
		return fmt.Errorf("max_hp must be > 0")
	}
	// The world treats zero as "use the default", so zero is rejected here
	// rather than silently replaced.
	if t.HurtCooldownTicks <= 0 {
		return fmt.Errorf("hurt_cooldown_ticks must be > 0")
	}
	if t.FireDamageEveryTicks <= 0 {
		return fmt.Errorf("fire_damage_every_ticks must be > 0")
	}
	if t.SafeFallDistance <= 0 {
		return fmt.Errorf("safe_fall_distance must be > 0")
	}
	if t.Knives.ReferenceWeapon == "" {
		return fmt.Errorf("knives.reference_weapon is required")
	}
	// Reference attack comes from the item catalog; any valid value works here.
	return t.KnivesConfig(0).Validate()
}

// KnivesConfig maps the knives block to the rule config. referenceAttack is
// the catalog attack power of Knives.ReferenceWeapon.
func (t Tuning) KnivesConfig(referenceAttack float64) knives.Config {
	return knives.Config{
		FallThreshold:           t.Knives.FallThreshold,
		GroundLookahead:         t.Knives.GroundLookahead,
		StandingTimeoutTicks:    t.Knives.StandingTimeoutTicks,
		ReferenceAttack:         referenceAttack,
		BurnTicksPerLevel:       t.Knives.BurnTicksPerLevel,
		TicksPerSecond:          t.Knives.BurnTicksPerSecond,
		LegacyOneRemovalPerTick: t.Knives.LegacyOneRemovalPerTick,
	}
}
