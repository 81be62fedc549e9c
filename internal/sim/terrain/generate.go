package terrain

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"worldbox.ai/internal/sim/rng"
	"worldbox.ai/internal/sim/world/logic/mathx"
)

const (
	noiseOctaves = 4
	noiseScale   = 4.0
	climateScale = 1.0 / 24
)

// Noise is a multi-octave value noise over the lattice hash, normalised to
// [0, 1). Each octave halves the amplitude and doubles the frequency.
func Noise(seed int64, x, y float64) float64 {
	total, norm := 0.0, 0.0
	amp, freq := 1.0, 1.0
	for o := 0; o < noiseOctaves; o++ {
		total += amp * valueNoise(seed+int64(o)*7919, x*freq, y*freq)
		norm += amp
		amp *= 0.5
		freq *= 2
	}
	v := total / norm
	if v >= 1 {
		v = math.Nextafter(1, 0)
	}
	return v
}

func valueNoise(seed int64, x, y float64) float64 {
	fx, fy := math.Floor(x), math.Floor(y)
	x0, y0 := int(fx), int(fy)
	tx := mathx.Smoothstep(x - fx)
	ty := mathx.Smoothstep(y - fy)

	v00 := mathx.Unit(mathx.Hash2(seed, x0, y0))
	v10 := mathx.Unit(mathx.Hash2(seed, x0+1, y0))
	v01 := mathx.Unit(mathx.Hash2(seed, x0, y0+1))
	v11 := mathx.Unit(mathx.Hash2(seed, x0+1, y0+1))

	top := mathx.Lerp(v00, v10, tx)
	bottom := mathx.Lerp(v01, v11, tx)
	return mathx.Lerp(top, bottom, ty)
}

// Band maps a noise value to a terrain type.
func Band(n float64) TileType {
	switch {
	case n > 0.7:
		return Mountain
	case n > 0.6:
		return Forest
	case n > 0.5:
		return Stone
	case n > 0.4:
		return Dirt
	case n > 0.2:
		return Sand
	default:
		return Water
	}
}

// Generate builds the terrain for (seed, size, shape) and carves roads with
// draws from r. Terrain and climate draw nothing from r; roads are the only
// consumer here, so callers seeding entities afterwards see a fixed stream.
func Generate(seed int64, size Size, shape Shape, r *rng.LCG) *Grid {
	g := NewGrid(size, shape)

	temp := opensimplex.NewNormalized(seed + 1)
	hum := opensimplex.NewNormalized(seed + 2)

	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			n := Noise(seed, float64(x)/float64(g.W)*noiseScale, float64(y)/float64(g.H)*noiseScale)
			t := &g.tiles[g.Index(x, y)]
			t.Height = uint8(n * 256)
			if t.valid {
				t.Type = Band(n)
			} else {
				t.Type = Water
			}

			cx, cy := float64(x)*climateScale, float64(y)*climateScale
			t.Temperature = 40 + 60*temp.Eval2(cx, cy) - 20*n
			t.Humidity = 100 * hum.Eval2(cx, cy)
		}
	}

	carveRoads(g, r, size.RoadCount())
	return g
}

// carveRoads draws, per road, sx, sy, ex, ey in that order, then one draw per
// step where both axes still differ.
func carveRoads(g *Grid, r *rng.LCG, count int) {
	for i := 0; i < count; i++ {
		x, y := r.Int(0, g.W-1), r.Int(0, g.H-1)
		ex, ey := r.Int(0, g.W-1), r.Int(0, g.H-1)
		for {
			paveRoad(g, x, y)
			if x == ex && y == ey {
				break
			}
			stepX := x != ex
			if x != ex && y != ey {
				stepX = r.Next() < 0.5
			}
			if stepX {
				x += sign(ex - x)
			} else {
				y += sign(ey - y)
			}
		}
	}
}

func paveRoad(g *Grid, x, y int) {
	t, ok := g.At(x, y)
	if !ok || !t.valid || t.Type == Water || t.Type == Mountain {
		return
	}
	g.SetType(x, y, Road)
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
