// Package biome is the default biome collaborator. It classifies tiles from
// their terrain and climate and returns the per-tick vitals modifiers that
// apply to a creature standing there.
package biome

import (
	"worldbox.ai/internal/sim/species"
	"worldbox.ai/internal/sim/terrain"
)

type Biome string

const (
	Temperate Biome = "temperate"
	Desert    Biome = "desert"
	Tundra    Biome = "tundra"
	Swamp     Biome = "swamp"
	Volcanic  Biome = "volcanic"
)

// Effect is added to a creature's vitals once per tick.
type Effect struct {
	Energy float64
	Health float64
}

// Classifier implements the biome contract with fixed climate thresholds.
type Classifier struct{}

// BiomeAt reports the biome of the tile at (x, y); false when out of bounds.
func (Classifier) BiomeAt(g *terrain.Grid, x, y int) (Biome, bool) {
	t, ok := g.At(x, y)
	if !ok {
		return "", false
	}
	switch {
	case t.Type == terrain.Lava || t.Temperature >= 150:
		return Volcanic, true
	case t.Type == terrain.Snow || t.Temperature < 35:
		return Tundra, true
	case t.Temperature > 85 && t.Humidity < 30:
		return Desert, true
	case t.Humidity > 80 && (t.Type == terrain.Grass || t.Type == terrain.Dirt || t.Type == terrain.Forest):
		return Swamp, true
	}
	return Temperate, true
}

// Effects returns the modifiers of b for a creature of kind k.
func (Classifier) Effects(b Biome, k species.Kind) Effect {
	tr := species.TraitsOf(k)
	switch b {
	case Desert:
		if tr.Aquatic {
			return Effect{Energy: -0.1}
		}
		return Effect{Energy: -0.05}
	case Tundra:
		if tr.Flying {
			return Effect{}
		}
		return Effect{Energy: -0.05}
	case Swamp:
		if tr.Grazes {
			return Effect{Energy: 0.02}
		}
		return Effect{Health: -0.02}
	case Volcanic:
		if tr.Flying {
			return Effect{}
		}
		return Effect{Health: -0.5}
	}
	return Effect{}
}
