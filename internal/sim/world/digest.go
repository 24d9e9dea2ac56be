package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// stateDigest hashes everything that influences future ticks. Two worlds fed
// the same joins, leaves and actions must produce identical digests.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	h.Write([]byte(w.cfg.ID))
	digestWriteU64(h, &tmp, nowTick)
	digestWriteU64(h, &tmp, w.nextPlayerNum.Load())

	w.digestTerrain(h, &tmp)
	w.digestPlayers(h, &tmp)

	return hex.EncodeToString(h.Sum(nil))
}

func (w *World) digestTerrain(h hashWriter, tmp *[8]byte) {
	keys := make([]Vec3i, 0, len(w.terrain.overrides))
	for k := range w.terrain.overrides {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	digestWriteU64(h, tmp, uint64(len(keys)))
	for _, k := range keys {
		digestWriteVec(h, tmp, k)
		h.Write([]byte(w.terrain.overrides[k]))
		h.Write([]byte{0})
	}
}

func (w *World) digestPlayers(h hashWriter, tmp *[8]byte) {
	ids := w.sortedPlayerIDs()
	digestWriteU64(h, tmp, uint64(len(ids)))
	for _, id := range ids {
		p := w.players[id]
		h.Write([]byte(p.ID))
		h.Write([]byte{0})
		digestWriteVec(h, tmp, p.Pos)
		digestWriteVec(h, tmp, p.spawn)
		digestWriteF64(h, tmp, p.FallDistance)
		h.Write([]byte{boolByte(p.Gliding)})
		digestWriteF64(h, tmp, p.HP)
		digestWriteI64(h, tmp, int64(p.FireTicks))
		digestWriteI64(h, tmp, int64(p.HurtCooldown))
		digestWriteF64(h, tmp, p.LastDamage)
		digestWriteStack(h, p.MainHand)
		digestWriteStack(h, p.OffHand)
	}
}

func digestWriteStack(h hashWriter, s *ItemStack) {
	if s == nil {
		h.Write([]byte{0})
		return
	}
	h.Write([]byte{1})
	h.Write([]byte(s.Item))
	h.Write([]byte{0})
	h.Write(s.Meta)
	h.Write([]byte{0})
}

func digestWriteVec(h hashWriter, tmp *[8]byte, v Vec3i) {
	digestWriteI64(h, tmp, int64(v.X))
	digestWriteI64(h, tmp, int64(v.Y))
	digestWriteI64(h, tmp, int64(v.Z))
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
