package world

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"worldbox.ai/internal/sim/rng"
	"worldbox.ai/internal/sim/species"
	"worldbox.ai/internal/sim/terrain"
	"worldbox.ai/internal/sim/world/logic/mathx"
)

const (
	spawnJitter   = 5.0
	newbornEnergy = 100.0
	newbornHealth = 100.0
	pickupRange   = 1.0
)

// placement is a terrain constraint for an initial seeding group anchor.
type placement uint8

const (
	onLand placement = iota
	inWater
	notWater
)

func (w *World) placementOK(p placement, x, y int) bool {
	if !w.grid.Valid(x, y) {
		return false
	}
	t, _ := w.grid.TypeAt(x, y)
	switch p {
	case inWater:
		return t == terrain.Water
	case notWater:
		return t != terrain.Water
	default:
		return t != terrain.Water && t != terrain.Mountain
	}
}

type seedGroup struct {
	kind    species.Kind
	groups  int
	members int
	where   placement
}

// seedGroups is the fixed initial population, in draw order.
var seedGroups = []seedGroup{
	{kind: species.Human, groups: 3, members: 2, where: onLand},
	{kind: species.Elf, groups: 3, members: 2, where: onLand},
	{kind: species.Dwarf, groups: 3, members: 2, where: onLand},
	{kind: species.Orc, groups: 3, members: 2, where: onLand},
	{kind: species.Wolf, groups: 2, members: 3, where: onLand},
	{kind: species.Deer, groups: 3, members: 3, where: onLand},
	{kind: species.Bear, groups: 1, members: 1, where: onLand},
	{kind: species.Rabbit, groups: 2, members: 3, where: onLand},
	{kind: species.Sheep, groups: 2, members: 3, where: onLand},
	{kind: species.Fish, groups: 3, members: 4, where: inWater},
	{kind: species.Shark, groups: 1, members: 1, where: inWater},
	{kind: species.Eagle, groups: 2, members: 1, where: notWater},
}

var vehicleGroups = []struct {
	kind  VehicleKind
	count int
	where placement
}{
	{VehicleBoat, 2, inWater},
	{VehicleCart, 2, onLand},
}

var weaponGroups = []struct {
	kind  WeaponKind
	count int
}{
	{WeaponSword, 2},
	{WeaponBow, 2},
	{WeaponAxe, 1},
}

// seedEntities places the initial population from the generation stream.
// Every group draws up to PlacementRetries anchors; an exhausted budget
// skips the group.
func (w *World) seedEntities() (placed, skipped int) {
	scale := w.cfg.groupScale()
	try := func(p placement, what string, fn func(x, y int)) {
		x, y, ok := w.findPlacement(w.gen, p)
		if !ok {
			skipped++
			w.log.WithField("group", what).Debug("no placement found, group skipped")
			return
		}
		placed++
		fn(x, y)
	}

	for _, g := range seedGroups {
		for i := 0; i < g.groups*scale; i++ {
			try(g.where, g.kind.String(), func(x, y int) {
				w.spawnGroup(w.gen, g.kind, float64(x), float64(y), g.members)
			})
		}
	}
	for _, g := range vehicleGroups {
		for i := 0; i < g.count*scale; i++ {
			try(g.where, g.kind.String(), func(x, y int) {
				w.addVehicle(g.kind, float64(x)+0.5, float64(y)+0.5, w.gen.Float(0, 2*math.Pi))
			})
		}
	}
	for _, g := range weaponGroups {
		for i := 0; i < g.count*scale; i++ {
			try(onLand, g.kind.String(), func(x, y int) {
				w.addWeapon(g.kind, float64(x)+0.5, float64(y)+0.5)
			})
		}
	}
	return placed, skipped
}

func (w *World) findPlacement(r *rng.LCG, p placement) (int, int, bool) {
	for i := 0; i < w.cfg.PlacementRetries; i++ {
		x, y := r.Int(0, w.grid.W-1), r.Int(0, w.grid.H-1)
		if w.placementOK(p, x, y) {
			return x, y, true
		}
	}
	return 0, 0, false
}

// spawnGroup places count creatures around (x, y), each offset by up to
// ±2.5 tiles. Per member the draws are dx, dy, heading. Members landing on
// a tile they cannot stand on are dropped.
func (w *World) spawnGroup(r *rng.LCG, k species.Kind, x, y float64, count int) []CreatureID {
	m := mobilityOf(k)
	var ids []CreatureID
	for i := 0; i < count; i++ {
		dx := (r.Next() - 0.5) * spawnJitter
		dy := (r.Next() - 0.5) * spawnJitter
		dir := r.Float(0, 2*math.Pi)
		px := math.Floor(mathx.Clamp(x+dx, 0, float64(w.grid.W-1)))
		py := math.Floor(mathx.Clamp(y+dy, 0, float64(w.grid.H-1)))
		if !w.passable(int(px), int(py), m) {
			continue
		}
		ids = append(ids, w.addCreature(k, px, py, dir))
	}
	return ids
}

func (w *World) addCreature(k species.Kind, x, y, dir float64) CreatureID {
	c := w.newCreature(k, x, y, dir)
	w.creatures.add(c)
	return c.ID
}

// newCreature allocates the next ID; the caller decides when it joins the
// registry.
func (w *World) newCreature(k species.Kind, x, y, dir float64) Creature {
	id := CreatureID(w.nextCreatureID)
	w.nextCreatureID++
	return Creature{
		ID:        id,
		Kind:      k,
		X:         x,
		Y:         y,
		Energy:    newbornEnergy,
		Health:    newbornHealth,
		Speed:     species.TraitsOf(k).BaseSpeed,
		Direction: normAngle(dir),
	}
}

func (w *World) addVehicle(k VehicleKind, x, y, dir float64) uint64 {
	id := w.nextVehicleID
	w.nextVehicleID++
	speed := 0.3
	if k == VehicleBoat {
		speed = 0.4
	}
	w.vehicles = append(w.vehicles, Vehicle{ID: id, Kind: k, X: x, Y: y, Direction: normAngle(dir), Speed: speed})
	return id
}

func (w *World) addWeapon(k WeaponKind, x, y float64) uint64 {
	id := w.nextWeaponID
	w.nextWeaponID++
	w.weapons = append(w.weapons, Weapon{ID: id, Kind: k, X: x, Y: y})
	return id
}

func (w *World) checkBounds(x, y float64) error {
	tx, ty := terrain.TileOf(x, y)
	if !w.grid.InBounds(tx, ty) {
		return fmt.Errorf("%w: (%.2f, %.2f)", ErrOutOfBounds, x, y)
	}
	return nil
}

// MaxSpawnCount bounds a single SpawnCreature call.
const MaxSpawnCount = 50

// SpawnCreature places a group of count creatures around (x, y). Offsets and
// headings come from the simulation stream. It returns the handles of the
// creatures actually placed, which may be fewer than count. count <= 0 means
// one; above MaxSpawnCount it is rejected.
func (w *World) SpawnCreature(k species.Kind, x, y float64, count int) ([]CreatureID, error) {
	if !k.Known() {
		return nil, fmt.Errorf("%w: creature %d", ErrUnknownKind, k)
	}
	if err := w.checkBounds(x, y); err != nil {
		return nil, err
	}
	if count > MaxSpawnCount {
		return nil, fmt.Errorf("%w: count %d above %d", ErrOutOfRange, count, MaxSpawnCount)
	}
	if count <= 0 {
		count = 1
	}
	ids := w.spawnGroup(w.rng, k, x, y, count)
	w.log.WithFields(logrus.Fields{"kind": k, "x": x, "y": y, "requested": count, "placed": len(ids)}).Debug("spawn")
	return ids, nil
}

func (w *World) SpawnVehicle(k VehicleKind, x, y float64) (uint64, error) {
	if k >= numVehicleKinds {
		return 0, fmt.Errorf("%w: vehicle %d", ErrUnknownKind, k)
	}
	if err := w.checkBounds(x, y); err != nil {
		return 0, err
	}
	tx, ty := terrain.TileOf(x, y)
	if !w.passable(tx, ty, (&Vehicle{Kind: k}).mobility()) {
		return 0, fmt.Errorf("%w: %s cannot stand on (%d, %d)", ErrBadTerrain, k, tx, ty)
	}
	return w.addVehicle(k, x, y, w.rng.Float(0, 2*math.Pi)), nil
}

func (w *World) DropWeapon(k WeaponKind, x, y float64) (uint64, error) {
	if k == WeaponNone || k >= numWeaponKinds {
		return 0, fmt.Errorf("%w: weapon %d", ErrUnknownKind, k)
	}
	if err := w.checkBounds(x, y); err != nil {
		return 0, err
	}
	return w.addWeapon(k, x, y), nil
}

func buildable(t terrain.TileType) bool {
	return t == terrain.Grass || t == terrain.Sand
}

// PlaceBuilding puts a building on tile (x, y). The tile must be valid grass
// or sand and free.
func (w *World) PlaceBuilding(k BuildingKind, x, y int) error {
	if k >= numBuildingKinds {
		return fmt.Errorf("%w: building %d", ErrUnknownKind, k)
	}
	if !w.grid.InBounds(x, y) {
		return fmt.Errorf("%w: (%d, %d)", ErrOutOfBounds, x, y)
	}
	t, _ := w.grid.TypeAt(x, y)
	if !w.grid.Valid(x, y) || !buildable(t) {
		return fmt.Errorf("%w: cannot build on %s", ErrBadTerrain, t)
	}
	return w.insertBuilding(Building{X: x, Y: y, Kind: k})
}

// insertBuilding keeps buildings ordered by tile index.
func (w *World) insertBuilding(b Building) error {
	key := w.grid.Index(b.X, b.Y)
	i := sort.Search(len(w.buildings), func(i int) bool {
		return w.grid.Index(w.buildings[i].X, w.buildings[i].Y) >= key
	})
	if i < len(w.buildings) && w.buildings[i].X == b.X && w.buildings[i].Y == b.Y {
		return fmt.Errorf("%w: building at (%d, %d)", ErrTileOccupied, b.X, b.Y)
	}
	w.buildings = append(w.buildings, Building{})
	copy(w.buildings[i+1:], w.buildings[i:])
	w.buildings[i] = b
	return nil
}

// pruneBuildings destroys buildings whose tile is no longer buildable.
func (w *World) pruneBuildings() int {
	kept := w.buildings[:0]
	for _, b := range w.buildings {
		if t, ok := w.grid.TypeAt(b.X, b.Y); ok && buildable(t) {
			kept = append(kept, b)
		}
	}
	n := len(w.buildings) - len(kept)
	w.buildings = kept
	return n
}

// pickupWeapon arms an unarmed civilized creature with the first weapon
// lying within reach.
func (w *World) pickupWeapon(c *Creature) {
	if c.Weapon != WeaponNone || !w.isCivilized(c.Kind) {
		return
	}
	for i, wp := range w.weapons {
		if mathx.Dist(c.X, c.Y, wp.X, wp.Y) <= pickupRange {
			c.Weapon = wp.Kind
			w.weapons = append(w.weapons[:i], w.weapons[i+1:]...)
			return
		}
	}
}

func (w *World) emit(x, y float64, k ParticleKind, life int) {
	w.particles = append(w.particles, Particle{X: x, Y: y, Kind: k, Life: life})
}
