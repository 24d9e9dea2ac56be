package knives

// WeaponProfile is what a held item contributes to a landing.
type WeaponProfile struct {
	Multiplier float64
	Sharpness  int
	FireAspect int
}

type ExtraDamage struct {
	Extra     float64
	BurnTicks float64
}

func (d ExtraDamage) add(o ExtraDamage) ExtraDamage {
	return ExtraDamage{Extra: d.Extra + o.Extra, BurnTicks: d.BurnTicks + o.BurnTicks}
}

// Amplifier turns fall damage plus a held weapon into extra damage.
// It has no side effects; metadata problems are returned, not logged.
type Amplifier struct {
	// ReferenceAttack is the attack power that maps to a multiplier of 1.
	ReferenceAttack   float64
	BurnTicksPerLevel float64
}

// Profile derives the weapon profile of item. Items that are not sword-class
// (including no item) yield the zero profile.
func (a Amplifier) Profile(item *Item) (WeaponProfile, []error) {
	if item == nil || !item.SwordClass {
		return WeaponProfile{}, nil
	}
	p := WeaponProfile{
		Multiplier: (item.AttackPower + 1) / (a.ReferenceAttack + 1),
	}
	enchants, errs := DecodeEnchantments(item.Meta)
	for _, e := range enchants {
		switch e.ID {
		case EnchantSharpness:
			p.Sharpness += e.Level
		case EnchantFireAspect:
			p.FireAspect += e.Level
		}
	}
	return p, errs
}

func (a Amplifier) Amplify(item *Item, fallDamage float64) (ExtraDamage, []error) {
	if item == nil || !item.SwordClass {
		return ExtraDamage{}, nil
	}
	p, errs := a.Profile(item)
	extra := fallDamage*p.Multiplier + SharpnessBonus(p.Sharpness)
	if extra < 0 {
		extra = 0
	}
	return ExtraDamage{
		Extra:     extra,
		BurnTicks: float64(p.FireAspect) * a.BurnTicksPerLevel,
	}, errs
}

func SharpnessBonus(level int) float64 {
	if level <= 0 {
		return 0
	}
	return 0.5*float64(level-1) + 1
}
