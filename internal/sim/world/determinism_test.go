package world

import (
	"testing"

	"voxelknives.ai/internal/protocol"
)

func TestDeterminism_FixedActionsSameDigest(t *testing.T) {
	w1, _, _ := newTestWorld(t)
	w2, _, _ := newTestWorld(t)

	a1 := join(t, w1, "bot")
	a2 := join(t, w2, "bot")
	if a1 != a2 {
		t.Fatalf("player id mismatch: %s vs %s", a1, a2)
	}

	script := func(tick int, id string) []ActionEnvelope {
		switch tick {
		case 0:
			return act(id,
				protocol.CommandReq{Type: protocol.CmdEquip, Item: "STONE_SWORD"},
				protocol.CommandReq{Type: protocol.CmdTeleport, Pos: [3]int{3, 14, 3}},
			)
		case 20:
			return act(id, protocol.CommandReq{Type: protocol.CmdSetBlock, Pos: [3]int{3, 0, 3}, Block: "PLANK"})
		case 25:
			return act(id,
				protocol.CommandReq{Type: protocol.CmdGlide, Gliding: true},
				protocol.CommandReq{Type: protocol.CmdTeleport, Pos: [3]int{3, 20, 3}},
			)
		}
		return nil
	}

	for i := 0; i < 60; i++ {
		t1, d1 := w1.StepOnce(nil, nil, script(i, a1))
		t2, d2 := w2.StepOnce(nil, nil, script(i, a2))
		if t1 != t2 || d1 != d2 {
			t.Fatalf("diverged at step %d: tick %d/%d digest %s/%s", i, t1, t2, d1, d2)
		}
	}
}

func TestDeterminism_DifferentActionsDiverge(t *testing.T) {
	w1, _, _ := newTestWorld(t)
	w2, _, _ := newTestWorld(t)
	a1 := join(t, w1, "bot")
	a2 := join(t, w2, "bot")

	_, d1 := w1.StepOnce(nil, nil, act(a1, protocol.CommandReq{Type: protocol.CmdEquip, Item: "IRON_SWORD"}))
	_, d2 := w2.StepOnce(nil, nil, act(a2, protocol.CommandReq{Type: protocol.CmdEquip, Item: "WOODEN_SWORD"}))
	if d1 == d2 {
		t.Fatalf("expected digests to differ")
	}
}
