package terrain

import (
	"fmt"
	"math"
)

// Size selects the grid dimensions.
type Size string

const (
	Small  Size = "small"
	Medium Size = "medium"
	Large  Size = "large"
)

// Dims returns the grid width and height for s. Unknown sizes fall back to medium.
func (s Size) Dims() (w, h int) {
	switch s {
	case Small:
		return 64, 40
	case Large:
		return 192, 120
	default:
		return 128, 80
	}
}

// RoadCount is the number of roads carved during generation.
func (s Size) RoadCount() int {
	switch s {
	case Small:
		return 2
	case Large:
		return 5
	default:
		return 3
	}
}

func ParseSize(s string) (Size, error) {
	switch Size(s) {
	case Small, Medium, Large:
		return Size(s), nil
	}
	return "", fmt.Errorf("unknown world size %q", s)
}

// Shape is the playable-land mask of the world.
type Shape string

const (
	Rectangular Shape = "rectangular"
	Circular    Shape = "circular"
	Island      Shape = "island"
	Archipelago Shape = "archipelago"
)

func ParseShape(s string) (Shape, error) {
	switch Shape(s) {
	case Rectangular, Circular, Island, Archipelago:
		return Shape(s), nil
	}
	return "", fmt.Errorf("unknown world shape %q", s)
}

// ValidAt reports whether (x, y) is playable land for the shape on a w×h grid.
// It depends only on its arguments and is recomputed after every load.
func ValidAt(shape Shape, w, h, x, y int) bool {
	cx, cy := float64(w)/2, float64(h)/2
	d := math.Hypot(float64(x)-cx, float64(y)-cy)
	switch shape {
	case Circular:
		return d < 0.9*math.Min(cx, cy)
	case Island:
		return d < 0.7*math.Min(cx, cy)
	case Archipelago:
		return math.Mod(d, 30) < 15
	default:
		return true
	}
}

// Grid is a fixed-size row-major tile array.
type Grid struct {
	W, H int

	size  Size
	shape Shape
	tiles []Tile
}

// NewGrid allocates a blank grid: valid tiles are grass, void tiles water.
func NewGrid(size Size, shape Shape) *Grid {
	w, h := size.Dims()
	g := &Grid{W: w, H: h, size: size, shape: shape, tiles: make([]Tile, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			t := &g.tiles[g.Index(x, y)]
			t.valid = ValidAt(shape, w, h, x, y)
			t.Temperature = DefaultTemperature
			t.Humidity = DefaultHumidity
			if t.valid {
				t.Type = Grass
			} else {
				t.Type = Water
			}
		}
	}
	return g
}

func (g *Grid) Size() Size   { return g.size }
func (g *Grid) Shape() Shape { return g.shape }
func (g *Grid) Len() int     { return len(g.tiles) }

// Index returns the linear slice index for coordinates (x, y).
func (g *Grid) Index(x, y int) int { return y*g.W + x }

func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.W && y >= 0 && y < g.H
}

// At returns a copy of the tile at (x, y).
func (g *Grid) At(x, y int) (Tile, bool) {
	if !g.InBounds(x, y) {
		return Tile{}, false
	}
	return g.tiles[g.Index(x, y)], true
}

// TypeAt returns the tile type, or false when out of bounds.
func (g *Grid) TypeAt(x, y int) (TileType, bool) {
	if !g.InBounds(x, y) {
		return 0, false
	}
	return g.tiles[g.Index(x, y)].Type, true
}

// Valid is false for out-of-bounds and void tiles.
func (g *Grid) Valid(x, y int) bool {
	return g.InBounds(x, y) && g.tiles[g.Index(x, y)].valid
}

// SetType overwrites the terrain at (x, y). Void tiles only accept water.
func (g *Grid) SetType(x, y int, t TileType) bool {
	if !g.InBounds(x, y) || !t.Known() {
		return false
	}
	tile := &g.tiles[g.Index(x, y)]
	if !tile.valid && t != Water {
		return false
	}
	tile.Type = t
	return true
}

func (g *Grid) SetTemperature(x, y int, temp float64) bool {
	if !g.InBounds(x, y) {
		return false
	}
	g.tiles[g.Index(x, y)].Temperature = temp
	return true
}

// Types returns a copy of every tile type in row-major order.
func (g *Grid) Types() []TileType {
	out := make([]TileType, len(g.tiles))
	for i, t := range g.tiles {
		out[i] = t.Type
	}
	return out
}

// Heights returns a copy of every tile height in row-major order.
func (g *Grid) Heights() []uint8 {
	out := make([]uint8, len(g.tiles))
	for i, t := range g.tiles {
		out[i] = t.Height
	}
	return out
}

// Flags returns the packed forest/mountain flags in row-major order.
func (g *Grid) Flags() []uint8 {
	out := make([]uint8, len(g.tiles))
	for i, t := range g.tiles {
		out[i] = t.Flags()
	}
	return out
}

// Restore rebuilds a grid from persisted layers. Validity is recomputed from
// the shape, climate is reset to defaults, and the persisted flags must agree
// with the types.
func Restore(size Size, shape Shape, types []TileType, heights, flags []uint8) (*Grid, error) {
	g := NewGrid(size, shape)
	n := len(g.tiles)
	if len(types) != n || len(heights) != n || len(flags) != n {
		return nil, fmt.Errorf("grid layers: want %d cells, got types=%d heights=%d flags=%d", n, len(types), len(heights), len(flags))
	}
	for i := range g.tiles {
		t := &g.tiles[i]
		if !types[i].Known() {
			return nil, fmt.Errorf("cell %d: unknown tile type %d", i, types[i])
		}
		if !t.valid && types[i] != Water {
			return nil, fmt.Errorf("cell %d: void tile stored as %s", i, types[i])
		}
		t.Type = types[i]
		t.Height = heights[i]
		if t.Flags() != flags[i] {
			return nil, fmt.Errorf("cell %d: flags %02x disagree with %s", i, flags[i], t.Type)
		}
	}
	return g, nil
}

// TileOf converts a continuous position to tile coordinates.
func TileOf(x, y float64) (int, int) {
	return int(math.Floor(x)), int(math.Floor(y))
}
