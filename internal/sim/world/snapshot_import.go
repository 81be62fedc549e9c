package world

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"worldbox.ai/internal/persistence/snapshot"
	"worldbox.ai/internal/sim/civ"
	"worldbox.ai/internal/sim/encoding"
	"worldbox.ai/internal/sim/species"
	"worldbox.ai/internal/sim/terrain"
)

// restoredState is a fully validated snapshot, ready to be swapped in.
type restoredState struct {
	seed  int64
	size  terrain.Size
	shape terrain.Shape
	tick  uint64
	year  int
	rng   uint64

	nextCreature, nextVehicle, nextWeapon uint64

	grid      *terrain.Grid
	creatures creatureStore
	buildings []Building
	vehicles  []Vehicle
	weapons   []Weapon
	kingdoms  []civ.Kingdom
}

// ImportSnapshot replaces the world with the snapshot contents. The snapshot
// is validated completely first; on any error the world is left untouched
// and the error wraps ErrCorruptSnapshot. Tile validity is recomputed from
// the shape and climate is reset to defaults.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	st, err := decodeSnapshot(s)
	if err != nil {
		w.log.WithError(err).Warn("snapshot rejected")
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	w.cfg.Seed, w.cfg.Size, w.cfg.Shape = st.seed, st.size, st.shape
	w.grid = st.grid
	w.creatures = st.creatures
	w.buildings = st.buildings
	w.vehicles = st.vehicles
	w.weapons = st.weapons
	w.particles = nil
	w.nextCreatureID = st.nextCreature
	w.nextVehicleID = st.nextVehicle
	w.nextWeaponID = st.nextWeapon
	w.tick = st.tick
	w.year = st.year
	w.births, w.deaths = 0, 0
	w.gen.SetSeed(st.seed)
	w.rng.Restore(st.rng)
	w.civ.Restore(st.year, st.kingdoms)

	w.log.WithFields(logrus.Fields{
		"tick":      st.tick,
		"year":      st.year,
		"creatures": st.creatures.len(),
		"kingdoms":  len(st.kingdoms),
	}).Info("snapshot imported")
	return nil
}

func decodeSnapshot(s snapshot.SnapshotV1) (*restoredState, error) {
	if s.Header.Version != snapshot.Version {
		return nil, fmt.Errorf("unsupported version %d", s.Header.Version)
	}
	size, err := terrain.ParseSize(s.Size)
	if err != nil {
		return nil, err
	}
	shape, err := terrain.ParseShape(s.Shape)
	if err != nil {
		return nil, err
	}
	if w, h := size.Dims(); w != s.Width || h != s.Height {
		return nil, fmt.Errorf("dimensions %dx%d do not match size %s", s.Width, s.Height, size)
	}
	if s.Year < 0 {
		return nil, fmt.Errorf("negative year %d", s.Year)
	}
	if s.NextCreatureID == 0 || s.NextVehicleID == 0 || s.NextWeaponID == 0 {
		return nil, fmt.Errorf("id counters must start at 1")
	}

	n := s.Width * s.Height
	rawTypes, err := encoding.DecodeRLE(s.Grid.Types, n)
	if err != nil {
		return nil, fmt.Errorf("grid types: %w", err)
	}
	heights, err := encoding.DecodeRLE(s.Grid.Heights, n)
	if err != nil {
		return nil, fmt.Errorf("grid heights: %w", err)
	}
	flags, err := encoding.DecodeRLE(s.Grid.Flags, n)
	if err != nil {
		return nil, fmt.Errorf("grid flags: %w", err)
	}
	types := make([]terrain.TileType, len(rawTypes))
	for i, t := range rawTypes {
		types[i] = terrain.TileType(t)
	}
	grid, err := terrain.Restore(size, shape, types, heights, flags)
	if err != nil {
		return nil, err
	}

	st := &restoredState{
		seed:         s.Seed,
		size:         size,
		shape:        shape,
		tick:         s.Header.Tick,
		year:         s.Year,
		rng:          s.RNGState,
		nextCreature: s.NextCreatureID,
		nextVehicle:  s.NextVehicleID,
		nextWeapon:   s.NextWeaponID,
		grid:         grid,
		creatures:    newCreatureStore(),
	}

	known := map[civ.KingdomID]bool{}
	for _, k := range s.Kingdoms {
		id := civ.KingdomID(k.ID)
		if id == 0 || known[id] {
			return nil, fmt.Errorf("kingdom %d: duplicate or zero id", k.ID)
		}
		if !finite(k.CenterX, k.CenterY) {
			return nil, fmt.Errorf("kingdom %d: non-finite centre", k.ID)
		}
		known[id] = true
		st.kingdoms = append(st.kingdoms, civ.Kingdom{
			ID:           id,
			Name:         k.Name,
			Race:         k.Race,
			CenterX:      k.CenterX,
			CenterY:      k.CenterY,
			CitizenCount: k.CitizenCount,
			FoundedYear:  k.FoundedYear,
		})
	}
	kingdomOK := func(id uint32) bool { return id == 0 || known[civ.KingdomID(id)] }
	inGrid := func(x, y float64) bool {
		if !finite(x, y) {
			return false
		}
		tx, ty := terrain.TileOf(x, y)
		return grid.InBounds(tx, ty)
	}

	var prev uint64
	for _, c := range s.Creatures {
		switch {
		case c.ID == 0 || c.ID <= prev || c.ID >= s.NextCreatureID:
			return nil, fmt.Errorf("creature %d: id out of order or beyond counter", c.ID)
		case !species.Kind(c.Kind).Known():
			return nil, fmt.Errorf("creature %d: unknown kind %d", c.ID, c.Kind)
		case !inGrid(c.X, c.Y):
			return nil, fmt.Errorf("creature %d: position (%v, %v) off grid", c.ID, c.X, c.Y)
		case !finite(c.Energy, c.Health, c.Speed, c.Direction):
			return nil, fmt.Errorf("creature %d: non-finite energy, health, speed or direction", c.ID)
		case !(c.Health > 0):
			return nil, fmt.Errorf("creature %d: dead creature persisted", c.ID)
		case WeaponKind(c.Weapon) >= numWeaponKinds:
			return nil, fmt.Errorf("creature %d: unknown weapon %d", c.ID, c.Weapon)
		case !kingdomOK(c.Kingdom):
			return nil, fmt.Errorf("creature %d: unknown kingdom %d", c.ID, c.Kingdom)
		case int(c.AI.Mode) >= len(modeNames):
			return nil, fmt.Errorf("creature %d: unknown ai mode %d", c.ID, c.AI.Mode)
		}
		prev = c.ID
		st.creatures.add(Creature{
			ID:        CreatureID(c.ID),
			Kind:      species.Kind(c.Kind),
			X:         c.X,
			Y:         c.Y,
			Age:       c.Age,
			Energy:    c.Energy,
			Health:    c.Health,
			Speed:     c.Speed,
			Direction: c.Direction,
			Weapon:    WeaponKind(c.Weapon),
			Kingdom:   civ.KingdomID(c.Kingdom),
			AI: AIState{
				Ready:       c.AI.Ready,
				Mode:        AIMode(c.AI.Mode),
				Target:      CreatureID(c.AI.Target),
				FleeTimer:   c.AI.FleeTimer,
				WanderTimer: c.AI.WanderTimer,
			},
		})
	}

	prevTile := -1
	for _, b := range s.Buildings {
		if !grid.InBounds(b.X, b.Y) {
			return nil, fmt.Errorf("building (%d, %d): off grid", b.X, b.Y)
		}
		idx := grid.Index(b.X, b.Y)
		t, _ := grid.TypeAt(b.X, b.Y)
		switch {
		case idx <= prevTile:
			return nil, fmt.Errorf("building (%d, %d): duplicate or out of order", b.X, b.Y)
		case BuildingKind(b.Kind) >= numBuildingKinds:
			return nil, fmt.Errorf("building (%d, %d): unknown kind %d", b.X, b.Y, b.Kind)
		case !buildable(t):
			return nil, fmt.Errorf("building (%d, %d): stands on %s", b.X, b.Y, t)
		case !kingdomOK(b.Kingdom):
			return nil, fmt.Errorf("building (%d, %d): unknown kingdom %d", b.X, b.Y, b.Kingdom)
		}
		prevTile = idx
		st.buildings = append(st.buildings, Building{X: b.X, Y: b.Y, Kind: BuildingKind(b.Kind), Kingdom: civ.KingdomID(b.Kingdom)})
	}

	seen := map[uint64]bool{}
	for _, v := range s.Vehicles {
		switch {
		case v.ID == 0 || v.ID >= s.NextVehicleID || seen[v.ID]:
			return nil, fmt.Errorf("vehicle %d: bad id", v.ID)
		case VehicleKind(v.Kind) >= numVehicleKinds:
			return nil, fmt.Errorf("vehicle %d: unknown kind %d", v.ID, v.Kind)
		case !inGrid(v.X, v.Y):
			return nil, fmt.Errorf("vehicle %d: off grid", v.ID)
		case !finite(v.Direction, v.Speed):
			return nil, fmt.Errorf("vehicle %d: non-finite direction or speed", v.ID)
		}
		seen[v.ID] = true
		st.vehicles = append(st.vehicles, Vehicle{ID: v.ID, Kind: VehicleKind(v.Kind), X: v.X, Y: v.Y, Direction: v.Direction, Speed: v.Speed})
	}

	seen = map[uint64]bool{}
	for _, wp := range s.Weapons {
		switch {
		case wp.ID == 0 || wp.ID >= s.NextWeaponID || seen[wp.ID]:
			return nil, fmt.Errorf("weapon %d: bad id", wp.ID)
		case WeaponKind(wp.Kind) == WeaponNone || WeaponKind(wp.Kind) >= numWeaponKinds:
			return nil, fmt.Errorf("weapon %d: unknown kind %d", wp.ID, wp.Kind)
		case !inGrid(wp.X, wp.Y):
			return nil, fmt.Errorf("weapon %d: off grid", wp.ID)
		}
		seen[wp.ID] = true
		st.weapons = append(st.weapons, Weapon{ID: wp.ID, Kind: WeaponKind(wp.Kind), X: wp.X, Y: wp.Y})
	}
	return st, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
