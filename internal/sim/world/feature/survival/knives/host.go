package knives

import "encoding/json"

type EntityID string

type Vec3i struct {
	X int
	Y int
	Z int
}

// Down is the position one block below v.
func (v Vec3i) Down() Vec3i { return Vec3i{X: v.X, Y: v.Y - 1, Z: v.Z} }

type BlockState struct {
	Air bool
}

// Item is the host's view of a held item stack.
// Meta carries the raw item-stack metadata; enchantments live under "Enchantments".
type Item struct {
	ID          string
	AttackPower float64
	SwordClass  bool
	Meta        json.RawMessage
}

// Host is everything the rule needs from the world it runs in.
// All queries are total: absence is reported as air or a nil item, never as an error.
type Host interface {
	LiveEntities() []EntityID
	BlockAt(pos Vec3i) BlockState

	EntityPos(id EntityID) Vec3i
	FallDistance(id EntityID) float64
	IsGliding(id EntityID) bool
	Health(id EntityID) float64

	MainHand(id EntityID) *Item
	OffHand(id EntityID) *Item

	ApplyDamage(id EntityID, amount float64)
	SetOnFire(id EntityID, seconds int)
	SendStatus(id EntityID, text string)
}
