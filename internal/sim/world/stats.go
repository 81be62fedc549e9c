package world

import (
	"sort"

	"worldbox.ai/internal/sim/species"
)

// Stats is a point-in-time overview for status displays.
type Stats struct {
	ID         string         `json:"id"`
	Seed       int64          `json:"seed"`
	Size       string         `json:"size"`
	Shape      string         `json:"shape"`
	Tick       uint64         `json:"tick"`
	Year       int            `json:"year"`
	Paused     bool           `json:"paused"`
	Speed      float64        `json:"speed"`
	Creatures  int            `json:"creatures"`
	Population map[string]int `json:"population"`
	Particles  int            `json:"particles"`
	Buildings  int            `json:"buildings"`
	Vehicles   int            `json:"vehicles"`
	Weapons    int            `json:"weapons"`
	Kingdoms   []KingdomStats `json:"kingdoms"`
	Terrain    map[string]int `json:"terrain"`
}

type KingdomStats struct {
	ID       uint32  `json:"id"`
	Name     string  `json:"name"`
	Race     string  `json:"race"`
	CenterX  float64 `json:"center_x"`
	CenterY  float64 `json:"center_y"`
	Citizens int     `json:"citizens"`
}

func (w *World) Stats() Stats {
	pop := map[string]int{}
	for _, k := range species.Kinds() {
		pop[k.String()] = 0
	}
	for i := range w.creatures.list {
		pop[w.creatures.list[i].Kind.String()]++
	}

	tiles := map[string]int{}
	for _, t := range w.grid.Types() {
		tiles[t.String()]++
	}

	ks := w.civ.Kingdoms()
	sort.Slice(ks, func(i, j int) bool { return ks[i].ID < ks[j].ID })
	kstats := make([]KingdomStats, 0, len(ks))
	for _, k := range ks {
		kstats = append(kstats, KingdomStats{
			ID:       uint32(k.ID),
			Name:     k.Name,
			Race:     k.Race,
			CenterX:  k.CenterX,
			CenterY:  k.CenterY,
			Citizens: k.CitizenCount,
		})
	}

	return Stats{
		ID:         w.cfg.ID,
		Seed:       w.cfg.Seed,
		Size:       string(w.cfg.Size),
		Shape:      string(w.cfg.Shape),
		Tick:       w.tick,
		Year:       w.year,
		Paused:     w.run.paused,
		Speed:      w.run.speed,
		Creatures:  w.creatures.len(),
		Population: pop,
		Particles:  len(w.particles),
		Buildings:  len(w.buildings),
		Vehicles:   len(w.vehicles),
		Weapons:    len(w.weapons),
		Kingdoms:   kstats,
		Terrain:    tiles,
	}
}

// TileInfo describes a single tile for inspection tools.
type TileInfo struct {
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Type        string  `json:"type"`
	Height      uint8   `json:"height"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Valid       bool    `json:"valid"`
	Biome       string  `json:"biome,omitempty"`
}

func (w *World) Inspect(x, y int) (TileInfo, bool) {
	t, ok := w.grid.At(x, y)
	if !ok {
		return TileInfo{}, false
	}
	info := TileInfo{
		X:           x,
		Y:           y,
		Type:        t.Type.String(),
		Height:      t.Height,
		Temperature: t.Temperature,
		Humidity:    t.Humidity,
		Valid:       t.Valid(),
	}
	if b, ok := w.biomes.BiomeAt(w.grid, x, y); ok {
		info.Biome = string(b)
	}
	return info, true
}
