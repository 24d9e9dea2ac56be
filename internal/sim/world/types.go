package world

import "voxelknives.ai/internal/sim/world/feature/survival/knives"

type Vec3i = knives.Vec3i

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
