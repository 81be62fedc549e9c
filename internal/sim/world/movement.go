package world

import (
	"math"

	"worldbox.ai/internal/sim/species"
	"worldbox.ai/internal/sim/terrain"
	"worldbox.ai/internal/sim/world/logic/mathx"
)

type mobility struct {
	flying  bool
	aquatic bool
}

func mobilityOf(k species.Kind) mobility {
	t := species.TraitsOf(k)
	return mobility{flying: t.Flying, aquatic: t.Aquatic}
}

// passable reports whether a mover may stand on tile (tx, ty). Out of
// bounds and void tiles are never passable.
func (w *World) passable(tx, ty int, m mobility) bool {
	if !w.grid.Valid(tx, ty) {
		return false
	}
	t, _ := w.grid.TypeAt(tx, ty)
	if m.aquatic {
		return t == terrain.Water
	}
	if m.flying {
		return true
	}
	return t != terrain.Mountain && t != terrain.Water
}

// step moves (x, y) one step along dir. A rejected move leaves the position
// untouched and draws a new heading from the simulation stream.
func (w *World) step(x, y, dir *float64, speed float64, m mobility) bool {
	nx := *x + math.Cos(*dir)*speed
	ny := *y + math.Sin(*dir)*speed
	tx, ty := terrain.TileOf(nx, ny)
	if !w.passable(tx, ty, m) {
		*dir = w.rng.Float(0, 2*math.Pi)
		return false
	}
	*x = mathx.Clamp(nx, 0, float64(w.grid.W-1))
	*y = mathx.Clamp(ny, 0, float64(w.grid.H-1))
	return true
}

func (w *World) moveCreature(c *Creature) {
	w.step(&c.X, &c.Y, &c.Direction, c.Speed, mobilityOf(c.Kind))
}

// applyTerrain runs the per-tick tile effects for the creature's current
// tile, then the biome hook.
func (w *World) applyTerrain(c *Creature) {
	tx, ty := terrain.TileOf(c.X, c.Y)
	t, ok := w.grid.TypeAt(tx, ty)
	if !ok {
		return
	}
	tr := species.TraitsOf(c.Kind)
	switch t {
	case terrain.Water:
		if !tr.Aquatic {
			c.Energy -= w.cfg.WaterDrain
		}
	case terrain.Lava:
		c.Health -= w.cfg.LavaDamage
	case terrain.Grass, terrain.Forest:
		if tr.Grazes {
			c.Energy += w.cfg.GrazeEnergy
		}
	}

	if b, ok := w.biomes.BiomeAt(w.grid, tx, ty); ok {
		e := w.biomes.Effects(b, c.Kind)
		c.Energy += e.Energy
		c.Health += e.Health
	}
}

func normAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
