package world

import (
	"errors"
	"math"
	"testing"

	"worldbox.ai/internal/sim/species"
	"worldbox.ai/internal/sim/terrain"
)

type recordingHazardLog struct {
	records []HazardRecord
}

func (r *recordingHazardLog) WriteHazard(rec HazardRecord) error {
	r.records = append(r.records, rec)
	return nil
}

func countTiles(g *terrain.Grid, t terrain.TileType) int {
	n := 0
	for _, tt := range g.Types() {
		if tt == t {
			n++
		}
	}
	return n
}

func TestApplyHazard_UnknownAndOutOfBounds(t *testing.T) {
	w := blankWorld(t)
	if _, err := w.ApplyHazard("flood", 5, 5, 3); !errors.Is(err, ErrUnknownHazard) {
		t.Fatalf("unknown hazard: %v", err)
	}
	if _, err := ParseHazard("flood"); !errors.Is(err, ErrUnknownHazard) {
		t.Fatalf("ParseHazard: %v", err)
	}
	if _, err := w.ApplyHazard(Meteor, -1, 5, 3); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("out of bounds origin: %v", err)
	}
	if _, err := w.ApplyHazard(Meteor, 5, w.Grid().H, 3); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("out of bounds origin: %v", err)
	}
	for _, h := range Hazards() {
		if got, err := ParseHazard(string(h)); err != nil || got != h {
			t.Fatalf("ParseHazard(%s) = %s, %v", h, got, err)
		}
	}
}

func TestApplyHazard_MeteorAtCornerStaysInBounds(t *testing.T) {
	w := blankWorld(t)
	n := w.Grid().Len()
	inside := w.addCreature(species.Sheep, 2, 2, 0)
	outside := w.addCreature(species.Sheep, 10, 10, 0)

	res, err := w.ApplyHazard(Meteor, 0, 0, 5)
	if err != nil {
		t.Fatalf("meteor: %v", err)
	}
	// Quarter disc of radius 5 clipped to the grid.
	if res.Tiles != 26 || countTiles(w.Grid(), terrain.Lava) != 26 {
		t.Fatalf("meteor tiles: result=%d lava=%d", res.Tiles, countTiles(w.Grid(), terrain.Lava))
	}
	if w.Grid().Len() != n {
		t.Fatalf("grid resized")
	}
	if res.Killed != 1 {
		t.Fatalf("killed %d", res.Killed)
	}
	if _, ok := w.Creature(inside); ok {
		t.Fatalf("creature inside the crater survived")
	}
	if _, ok := w.Creature(outside); !ok {
		t.Fatalf("creature outside the crater removed")
	}

	g := w.Grid()
	if _, err := w.ApplyHazard(Meteor, g.W-1, g.H-1, 5); err != nil {
		t.Fatalf("meteor at far corner: %v", err)
	}
	if countTiles(g, terrain.Lava) != 52 {
		t.Fatalf("lava tiles after second meteor: %d", countTiles(g, terrain.Lava))
	}
}

func TestApplyHazard_LeavesVoidAlone(t *testing.T) {
	w := newTestWorld(t, WorldConfig{Seed: 1, Size: terrain.Small, Shape: terrain.Circular})
	w.Clear()
	g := w.Grid()
	for _, h := range Hazards() {
		if _, err := w.ApplyHazard(h, 0, 0, 12); err != nil {
			t.Fatalf("%s: %v", h, err)
		}
	}
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			if g.Valid(x, y) != terrain.ValidAt(terrain.Circular, g.W, g.H, x, y) {
				t.Fatalf("validity changed at (%d,%d)", x, y)
			}
			if tt, _ := g.TypeAt(x, y); !g.Valid(x, y) && tt != terrain.Water {
				t.Fatalf("void tile (%d,%d) became %s", x, y, tt)
			}
		}
	}
}

func TestApplyHazard_LightningIsSquare(t *testing.T) {
	w := blankWorld(t)
	near := w.addCreature(species.Sheep, 22.5, 20, 0)
	far := w.addCreature(species.Sheep, 20, 23.5, 0)

	res, err := w.ApplyHazard(Lightning, 20, 20, 6)
	if err != nil {
		t.Fatalf("lightning: %v", err)
	}
	if res.Tiles != 49 {
		t.Fatalf("lightning tiles %d, want 7x7", res.Tiles)
	}
	g := w.Grid()
	for _, p := range [][2]int{{17, 17}, {23, 23}, {23, 17}, {17, 23}} {
		if tt, _ := g.TypeAt(p[0], p[1]); tt != terrain.Dirt {
			t.Fatalf("corner (%d,%d) is %s", p[0], p[1], tt)
		}
	}
	if tt, _ := g.TypeAt(24, 20); tt != terrain.Grass {
		t.Fatalf("(24,20) outside the strike is %s", tt)
	}
	if _, ok := w.Creature(near); ok {
		t.Fatalf("creature within half radius survived")
	}
	if _, ok := w.Creature(far); !ok {
		t.Fatalf("creature beyond half radius removed")
	}
}

func TestApplyHazard_PlagueOnlyKillsTheWeak(t *testing.T) {
	w := blankWorld(t)
	strong := w.addCreature(species.Sheep, 20, 20, 0)
	weak := w.addCreature(species.Sheep, 21, 20, 0)
	away := w.addCreature(species.Sheep, 40, 20, 0)
	mustCreature(t, w, weak).Health = 40

	res, err := w.ApplyHazard(Plague, 20, 20, 5)
	if err != nil {
		t.Fatalf("plague: %v", err)
	}
	if res.Damaged != 2 || res.Killed != 1 || res.Tiles != 0 {
		t.Fatalf("plague result %+v", res)
	}
	if c, ok := w.Creature(strong); !ok || c.Health != 50 {
		t.Fatalf("strong creature: %+v ok=%v", c, ok)
	}
	if _, ok := w.Creature(weak); ok {
		t.Fatalf("weak creature survived")
	}
	if c, _ := w.Creature(away); c.Health != newbornHealth {
		t.Fatalf("distant creature damaged: %.1f", c.Health)
	}
	if w.ParticleCount() != 2 {
		t.Fatalf("plague particles %d", w.ParticleCount())
	}
}

func TestApplyHazard_TsunamiSparesSwimmers(t *testing.T) {
	w := blankWorld(t)
	if n, err := w.Paint(20, 20, terrain.Sand, 1); err != nil || n != 9 {
		t.Fatalf("paint: %d %v", n, err)
	}
	fish := w.addCreature(species.Fish, 20.5, 20.5, 0)
	sheep := w.addCreature(species.Sheep, 22, 20, 0)

	res, err := w.ApplyHazard(Tsunami, 20, 20, 10)
	if err != nil {
		t.Fatalf("tsunami: %v", err)
	}
	if res.Tiles != 9 || countTiles(w.Grid(), terrain.Water) != 9 {
		t.Fatalf("tsunami flooded %d tiles", res.Tiles)
	}
	if c, _ := w.Creature(fish); c.Health != newbornHealth {
		t.Fatalf("fish damaged: %.1f", c.Health)
	}
	if c, _ := w.Creature(sheep); c.Health != newbornHealth-tsunamiDamage {
		t.Fatalf("sheep health %.1f", c.Health)
	}
}

func TestApplyHazard_VolcanoHeatsAndBurns(t *testing.T) {
	w := blankWorld(t)
	w.addCreature(species.Sheep, 20, 20, 0)
	survivor := w.addCreature(species.Bear, 21, 20, 0)
	w.creatures.list[0].Health = 70

	res, err := w.ApplyHazard(Volcano, 20, 20, 3)
	if err != nil {
		t.Fatalf("volcano: %v", err)
	}
	if res.Killed != 1 || res.Damaged != 2 {
		t.Fatalf("volcano result %+v", res)
	}
	if c, ok := w.Creature(survivor); !ok || c.Health != newbornHealth-volcanoDamage {
		t.Fatalf("survivor %+v ok=%v", c, ok)
	}
	info, _ := w.Inspect(20, 20)
	if info.Type != "lava" || info.Temperature != volcanoTemp || info.Biome != "volcanic" {
		t.Fatalf("crater tile %+v", info)
	}
}

func TestApplyHazard_BlizzardFreezesGrass(t *testing.T) {
	w := blankWorld(t)
	res, err := w.ApplyHazard(Blizzard, 30, 20, 2)
	if err != nil {
		t.Fatalf("blizzard: %v", err)
	}
	if res.Tiles != 13 || countTiles(w.Grid(), terrain.Snow) != 13 {
		t.Fatalf("blizzard tiles %d", res.Tiles)
	}
	if info, _ := w.Inspect(30, 20); info.Temperature != blizzardTemp {
		t.Fatalf("temperature %.1f", info.Temperature)
	}
}

func TestApplyHazard_EarthquakeIsReproducible(t *testing.T) {
	a, b := blankWorld(t), blankWorld(t)
	ra, err := a.ApplyHazard(Earthquake, 30, 20, 6)
	if err != nil {
		t.Fatalf("earthquake: %v", err)
	}
	rb, _ := b.ApplyHazard(Earthquake, 30, 20, 6)
	if ra != rb {
		t.Fatalf("results differ: %+v vs %+v", ra, rb)
	}
	if ra.Tiles == 0 {
		t.Fatalf("earthquake changed nothing")
	}
	if a.StateDigest() != b.StateDigest() {
		t.Fatalf("digests differ after identical earthquakes")
	}
}

func TestApplyHazard_WildfireDestroysBuildings(t *testing.T) {
	hl := &recordingHazardLog{}
	w := newTestWorld(t, WorldConfig{Seed: 1, Size: terrain.Small})
	w.hazardLogger = hl
	w.Clear()
	if err := w.PlaceBuilding(BuildingHouse, 20, 20); err != nil {
		t.Fatalf("place: %v", err)
	}
	if err := w.PlaceBuilding(BuildingFarm, 50, 30); err != nil {
		t.Fatalf("place: %v", err)
	}

	res, err := w.ApplyHazard(Wildfire, 20, 20, 3)
	if err != nil {
		t.Fatalf("wildfire: %v", err)
	}
	if res.Buildings != 1 || len(w.Buildings()) != 1 {
		t.Fatalf("buildings destroyed %d, left %d", res.Buildings, len(w.Buildings()))
	}
	if len(hl.records) != 1 || hl.records[0].Hazard != Wildfire || hl.records[0].Buildings != 1 {
		t.Fatalf("hazard log %+v", hl.records)
	}
}

func TestApplyHazard_DefaultRadius(t *testing.T) {
	w := blankWorld(t)
	res, err := w.ApplyHazard(Plague, 10, 10, 0)
	if err != nil {
		t.Fatalf("plague: %v", err)
	}
	if res.Radius != w.Config().HazardRadius {
		t.Fatalf("radius %d", res.Radius)
	}
}

func TestApplyHazard_RadiusLimit(t *testing.T) {
	w := blankWorld(t)
	limit := w.MaxHazardRadius()
	if g := w.Grid(); limit != max(g.W, g.H) {
		t.Fatalf("limit %d", limit)
	}
	before := w.StateDigest()
	for _, r := range []int{limit + 1, 40000, math.MaxInt} {
		if _, err := w.ApplyHazard(Meteor, 5, 5, r); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("radius %d: %v", r, err)
		}
	}
	if w.StateDigest() != before {
		t.Fatalf("rejected hazard changed the world")
	}

	// The largest radius from the centre covers the whole grid.
	g := w.Grid()
	res, err := w.ApplyHazard(Meteor, g.W/2, g.H/2, limit)
	if err != nil {
		t.Fatalf("meteor at limit: %v", err)
	}
	if res.Tiles != g.Len() || countTiles(g, terrain.Lava) != g.Len() {
		t.Fatalf("tiles %d of %d", res.Tiles, g.Len())
	}
}
