package world

import "voxelknives.ai/internal/sim/catalogs"

const (
	blockAir     = "AIR"
	blockBedrock = "BEDROCK"
	blockGround  = "GRASS"
	blockFill    = "STONE"
)

// terrain is a flat world: fill below GroundY, a surface layer at GroundY,
// air above, plus explicit overrides placed with SET_BLOCK.
type terrain struct {
	groundY   int
	height    int
	boundary  int
	overrides map[Vec3i]string
}

func newTerrain(cfg WorldConfig) *terrain {
	return &terrain{
		groundY:   cfg.GroundY,
		height:    cfg.Height,
		boundary:  cfg.BoundaryR,
		overrides: map[Vec3i]string{},
	}
}

func (t *terrain) blockAt(pos Vec3i) string {
	if pos.Y < 0 {
		return blockBedrock
	}
	if pos.Y >= t.height {
		return blockAir
	}
	if b, ok := t.overrides[pos]; ok {
		return b
	}
	switch {
	case pos.Y < t.groundY:
		return blockFill
	case pos.Y == t.groundY:
		return blockGround
	default:
		return blockAir
	}
}

func (t *terrain) set(pos Vec3i, block string) {
	t.overrides[pos] = block
}

func (t *terrain) inBounds(pos Vec3i) bool {
	if pos.Y < 0 || pos.Y >= t.height {
		return false
	}
	return pos.X >= -t.boundary && pos.X <= t.boundary && pos.Z >= -t.boundary && pos.Z <= t.boundary
}

// surfaceY is the y of the first non-air block scanning down from the top.
func (t *terrain) surfaceY(x, z int) int {
	for y := t.height - 1; y >= 0; y-- {
		if t.blockAt(Vec3i{X: x, Y: y, Z: z}) != blockAir {
			return y
		}
	}
	return -1
}

func (w *World) isAir(pos Vec3i) bool {
	return w.terrain.blockAt(pos) == blockAir
}

// blockDef falls back to a plain solid block for ids missing from the catalog.
func (w *World) blockDef(pos Vec3i) catalogs.BlockDef {
	id := w.terrain.blockAt(pos)
	if d, ok := w.catalogs.Blocks.Defs[id]; ok {
		return d
	}
	return catalogs.BlockDef{ID: id, Solid: id != blockAir}
}
