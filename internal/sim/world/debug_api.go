package world

import (
	"encoding/json"

	"voxelknives.ai/internal/protocol"
)

// ---- Debug/Test Helpers ----
//
// These let tests in sibling packages set deterministic preconditions without
// reaching into world internals. They are NOT safe to call concurrently with Run().

func (w *World) DebugSetPlayerPos(playerID string, pos Vec3i) bool {
	p := w.players[playerID]
	if p == nil {
		return false
	}
	p.Pos = pos
	p.FallDistance = 0
	return true
}

func (w *World) DebugSetPlayerHP(playerID string, hp float64) bool {
	p := w.players[playerID]
	if p == nil {
		return false
	}
	p.HP = hp
	return true
}

// DebugEquip places an item in a hand without catalog validation; an empty
// item id clears the hand.
func (w *World) DebugEquip(playerID, hand, item string, meta json.RawMessage) bool {
	p := w.players[playerID]
	if p == nil {
		return false
	}
	var stack *ItemStack
	if item != "" {
		stack = &ItemStack{Item: item, Meta: meta}
	}
	if hand == protocol.HandOff {
		p.OffHand = stack
	} else {
		p.MainHand = stack
	}
	return true
}

func (w *World) DebugSetBlock(pos Vec3i, block string) {
	w.terrain.set(pos, block)
}

func (w *World) DebugBlockAt(pos Vec3i) string {
	return w.terrain.blockAt(pos)
}
