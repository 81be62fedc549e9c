package world

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"worldbox.ai/internal/sim/species"
	"worldbox.ai/internal/sim/terrain"
	"worldbox.ai/internal/sim/world/logic/mathx"
)

type Hazard string

const (
	Meteor     Hazard = "meteor"
	Plague     Hazard = "plague"
	Lightning  Hazard = "lightning"
	Volcano    Hazard = "volcano"
	Tsunami    Hazard = "tsunami"
	Blizzard   Hazard = "blizzard"
	Earthquake Hazard = "earthquake"
	Wildfire   Hazard = "wildfire"
)

// Hazards lists every hazard in a stable order.
func Hazards() []Hazard {
	return []Hazard{Meteor, Plague, Lightning, Volcano, Tsunami, Blizzard, Earthquake, Wildfire}
}

func ParseHazard(s string) (Hazard, error) {
	for _, h := range Hazards() {
		if string(h) == s {
			return h, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownHazard, s)
}

// HazardResult summarises one hazard application.
type HazardResult struct {
	Hazard    Hazard `json:"hazard"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Radius    int    `json:"radius"`
	Tiles     int    `json:"tiles"`
	Killed    int    `json:"killed"`
	Damaged   int    `json:"damaged"`
	Buildings int    `json:"buildings_destroyed"`
}

// HazardRecord is the audit entry written for every applied hazard.
type HazardRecord struct {
	Tick uint64 `json:"tick"`
	HazardResult
}

type metric uint8

const (
	euclid metric = iota
	chebyshev
)

const (
	volcanoTemp  = 200
	blizzardTemp = 10

	volcanoDamage    = 80
	plagueDamage     = 50
	tsunamiDamage    = 30
	blizzardDamage   = 15
	earthquakeDamage = 20
	wildfireDamage   = 40
)

// MaxHazardRadius is the largest radius ApplyHazard accepts; any area that
// size already covers the whole grid from every origin.
func (w *World) MaxHazardRadius() int {
	return max(w.grid.W, w.grid.H)
}

// ApplyHazard runs hazard h centred on tile (x, y). radius <= 0 uses the
// configured default. Origins outside the grid and radii above
// MaxHazardRadius are rejected; areas that overhang the edge are clipped.
func (w *World) ApplyHazard(h Hazard, x, y, radius int) (HazardResult, error) {
	if !w.grid.InBounds(x, y) {
		return HazardResult{}, fmt.Errorf("%w: (%d, %d)", ErrOutOfBounds, x, y)
	}
	limit := w.MaxHazardRadius()
	if radius > limit {
		return HazardResult{}, fmt.Errorf("%w: radius %d above %d", ErrOutOfRange, radius, limit)
	}
	if radius <= 0 {
		radius = min(w.cfg.HazardRadius, limit)
	}
	res := HazardResult{Hazard: h, X: x, Y: y, Radius: radius}
	fx, fy, fr := float64(x), float64(y), float64(radius)

	switch h {
	case Meteor:
		w.area(x, y, radius, euclid, func(tx, ty int) {
			if w.setTile(tx, ty, terrain.Lava) {
				res.Tiles++
			}
			w.emit(float64(tx), float64(ty), ParticleFire, 30)
		})
		res.Killed = w.removeWithin(fx, fy, fr)

	case Lightning:
		half := radius / 2
		w.area(x, y, half, chebyshev, func(tx, ty int) {
			if w.setTile(tx, ty, terrain.Dirt) {
				res.Tiles++
			}
			w.emit(float64(tx), float64(ty), ParticleSpark, 20)
		})
		res.Killed = w.removeWithin(fx, fy, fr/2)

	case Volcano:
		w.area(x, y, radius, euclid, func(tx, ty int) {
			if w.setTile(tx, ty, terrain.Lava) {
				w.grid.SetTemperature(tx, ty, volcanoTemp)
				res.Tiles++
			}
			w.emit(float64(tx), float64(ty), ParticleEmber, 40)
		})
		res.Damaged, res.Killed = w.damageWithin(fx, fy, fr, volcanoDamage, nil)

	case Plague:
		res.Damaged, res.Killed = w.damageWithin(fx, fy, fr, plagueDamage, func(c *Creature) {
			w.emit(c.X, c.Y, ParticlePlague, 20)
		})

	case Tsunami:
		w.area(x, y, radius, euclid, func(tx, ty int) {
			t, _ := w.grid.TypeAt(tx, ty)
			if (t == terrain.Sand || t == terrain.Dirt) && w.setTile(tx, ty, terrain.Water) {
				res.Tiles++
			}
			w.emit(float64(tx), float64(ty), ParticleWave, 25)
		})
		res.Damaged, res.Killed = w.damageWithin(fx, fy, fr, tsunamiDamage, nil, func(c *Creature) bool {
			return !species.TraitsOf(c.Kind).Aquatic
		})

	case Blizzard:
		w.area(x, y, radius, euclid, func(tx, ty int) {
			w.grid.SetTemperature(tx, ty, blizzardTemp)
			t, _ := w.grid.TypeAt(tx, ty)
			if t == terrain.Grass && w.setTile(tx, ty, terrain.Snow) {
				res.Tiles++
			}
			w.emit(float64(tx), float64(ty), ParticleSnow, 30)
		})
		res.Damaged, res.Killed = w.damageWithin(fx, fy, fr, blizzardDamage, nil)

	case Earthquake:
		// One draw per eligible tile, row-major.
		rubble := [...]terrain.TileType{terrain.Dirt, terrain.Stone, terrain.Sand}
		w.area(x, y, radius, chebyshev, func(tx, ty int) {
			t, _ := w.grid.TypeAt(tx, ty)
			switch t {
			case terrain.Dirt, terrain.Stone, terrain.Sand, terrain.Grass, terrain.Road:
				nt := rubble[w.rng.Int(0, len(rubble)-1)]
				if nt != t && w.setTile(tx, ty, nt) {
					res.Tiles++
				}
				w.emit(float64(tx), float64(ty), ParticleDust, 20)
			}
		})
		res.Damaged, res.Killed = w.damageWithin(fx, fy, fr, earthquakeDamage, nil)

	case Wildfire:
		w.area(x, y, radius, euclid, func(tx, ty int) {
			t, _ := w.grid.TypeAt(tx, ty)
			if t != terrain.Forest && t != terrain.Grass {
				return
			}
			if w.setTile(tx, ty, terrain.Dirt) {
				res.Tiles++
			}
			w.emit(float64(tx), float64(ty), ParticleFire, 30)
		})
		res.Damaged, res.Killed = w.damageWithin(fx, fy, fr, wildfireDamage, nil)

	default:
		return HazardResult{}, fmt.Errorf("%w: %q", ErrUnknownHazard, string(h))
	}

	res.Buildings = w.pruneBuildings()
	w.deaths += res.Killed

	w.log.WithFields(logrus.Fields{
		"hazard": h, "x": x, "y": y, "radius": radius,
		"tiles": res.Tiles, "killed": res.Killed, "damaged": res.Damaged,
	}).Info("hazard applied")
	if w.hazardLogger != nil {
		if err := w.hazardLogger.WriteHazard(HazardRecord{Tick: w.tick, HazardResult: res}); err != nil {
			w.log.WithError(err).Warn("hazard log write failed")
		}
	}
	return res, nil
}

// area visits every in-bounds tile of the box around (x, y) in row-major
// order, filtered by the radius test for m. The box is clipped to the grid
// first; r must not exceed MaxHazardRadius.
func (w *World) area(x, y, r int, m metric, fn func(tx, ty int)) {
	x0, x1 := max(0, x-r), min(w.grid.W-1, x+r)
	y0, y1 := max(0, y-r), min(w.grid.H-1, y+r)
	for ty := y0; ty <= y1; ty++ {
		for tx := x0; tx <= x1; tx++ {
			dx, dy := tx-x, ty-y
			if m == euclid && dx*dx+dy*dy > r*r {
				continue
			}
			fn(tx, ty)
		}
	}
}

// setTile writes terrain on valid tiles only; void stays water.
func (w *World) setTile(x, y int, t terrain.TileType) bool {
	if !w.grid.Valid(x, y) {
		return false
	}
	if cur, _ := w.grid.TypeAt(x, y); cur == t {
		return false
	}
	return w.grid.SetType(x, y, t)
}

// removeWithin kills every creature within r of (x, y) regardless of
// health. Victims are collected first and removed in one sweep.
func (w *World) removeWithin(x, y, r float64) int {
	for i := range w.creatures.list {
		c := &w.creatures.list[i]
		if mathx.Dist(c.X, c.Y, x, y) <= r {
			c.Health = 0
		}
	}
	return w.creatures.sweep()
}

// damageWithin subtracts dmg from every creature within r of (x, y) that
// passes all filters, calls hit for each, then removes the dead.
func (w *World) damageWithin(x, y, r, dmg float64, hit func(*Creature), filters ...func(*Creature) bool) (damaged, killed int) {
next:
	for i := range w.creatures.list {
		c := &w.creatures.list[i]
		if mathx.Dist(c.X, c.Y, x, y) > r {
			continue
		}
		for _, f := range filters {
			if !f(c) {
				continue next
			}
		}
		c.Health -= dmg
		damaged++
		if hit != nil {
			hit(c)
		}
	}
	return damaged, w.creatures.sweep()
}
