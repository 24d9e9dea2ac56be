// Package bootstrap assembles a world and its start-of-tick rules from tuning
// and catalogs. The server and the replay tool share it so replays step the
// exact same rule set that produced the log.
package bootstrap

import (
	"fmt"
	"log"

	"voxelknives.ai/internal/sim/catalogs"
	"voxelknives.ai/internal/sim/tuning"
	"voxelknives.ai/internal/sim/world"
	"voxelknives.ai/internal/sim/world/feature/survival/knives"
)

func WorldConfig(worldID string, tune tuning.Tuning) world.WorldConfig {
	return world.WorldConfig{
		ID:                   worldID,
		TickRateHz:           tune.TickRateHz,
		Height:               tune.Height,
		GroundY:              tune.GroundY,
		BoundaryR:            tune.BoundaryR,
		MaxHP:                tune.MaxHP,
		HurtCooldownTicks:    tune.HurtCooldownTicks,
		FireDamageEveryTicks: tune.FireDamageEveryTicks,
		SafeFallDistance:     tune.SafeFallDistance,
	}
}

// KnivesConfig resolves the reference weapon against the item catalog.
func KnivesConfig(tune tuning.Tuning, cats *catalogs.Catalogs) (knives.Config, error) {
	ref, err := cats.AttackPower(tune.Knives.ReferenceWeapon)
	if err != nil {
		return knives.Config{}, fmt.Errorf("knives.reference_weapon: %w", err)
	}
	return tune.KnivesConfig(ref), nil
}

// NewWorld builds a world with the knives rule registered. A nil ruleLog
// shares worldLog.
func NewWorld(worldID string, tune tuning.Tuning, cats *catalogs.Catalogs, worldLog, ruleLog *log.Logger) (*world.World, *knives.Rule, error) {
	kcfg, err := KnivesConfig(tune, cats)
	if err != nil {
		return nil, nil, err
	}
	w, err := world.New(WorldConfig(worldID, tune), cats)
	if err != nil {
		return nil, nil, err
	}
	w.SetLogger(worldLog)
	if ruleLog == nil {
		ruleLog = worldLog
	}
	rule, err := knives.NewRule(w.Host(), kcfg, ruleLog)
	if err != nil {
		return nil, nil, err
	}
	w.AddRule(rule)
	return w, rule, nil
}
