package terrain

import "fmt"

// TileType is the terrain of a single grid cell. Values are persisted, so
// new types are appended only.
type TileType uint8

const (
	Grass TileType = iota
	Dirt
	Stone
	Sand
	Water
	Lava
	Forest
	Mountain
	Road
	Snow

	numTileTypes
)

var tileNames = [numTileTypes]string{
	Grass:    "grass",
	Dirt:     "dirt",
	Stone:    "stone",
	Sand:     "sand",
	Water:    "water",
	Lava:     "lava",
	Forest:   "forest",
	Mountain: "mountain",
	Road:     "road",
	Snow:     "snow",
}

func (t TileType) String() string {
	if t < numTileTypes {
		return tileNames[t]
	}
	return fmt.Sprintf("tile(%d)", uint8(t))
}

// Known reports whether t is a defined tile type.
func (t TileType) Known() bool { return t < numTileTypes }

func ParseTileType(s string) (TileType, error) {
	for i, n := range tileNames {
		if n == s {
			return TileType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tile type %q", s)
}

// Default climate values. Snapshots do not carry climate; loaded tiles use these.
const (
	DefaultTemperature = 70.0
	DefaultHumidity    = 50.0
)

// Tile is one cell of the grid. Forest and mountain flags are derived from
// Type, and validity is fixed at grid construction.
type Tile struct {
	Type        TileType
	Height      uint8
	Temperature float64
	Humidity    float64

	valid bool
}

func (t Tile) HasForest() bool  { return t.Type == Forest }
func (t Tile) IsMountain() bool { return t.Type == Mountain }
func (t Tile) Valid() bool      { return t.valid }

// Flags packs the derived forest/mountain flags the way snapshots store them.
func (t Tile) Flags() uint8 {
	var f uint8
	if t.HasForest() {
		f |= FlagForest
	}
	if t.IsMountain() {
		f |= FlagMountain
	}
	return f
}

const (
	FlagForest   uint8 = 1 << 0
	FlagMountain uint8 = 1 << 1
)
