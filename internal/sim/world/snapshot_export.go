package world

import (
	"worldbox.ai/internal/persistence/snapshot"
	"worldbox.ai/internal/sim/encoding"
)

// ExportSnapshot captures the persistent state. It must be called from the
// goroutine that owns the world.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	types := w.grid.Types()
	rawTypes := make([]uint8, len(types))
	for i, t := range types {
		rawTypes[i] = uint8(t)
	}

	creatures := make([]snapshot.CreatureV1, 0, w.creatures.len())
	for i := range w.creatures.list {
		c := &w.creatures.list[i]
		creatures = append(creatures, snapshot.CreatureV1{
			ID:        uint64(c.ID),
			Kind:      uint8(c.Kind),
			X:         c.X,
			Y:         c.Y,
			Age:       c.Age,
			Energy:    c.Energy,
			Health:    c.Health,
			Speed:     c.Speed,
			Direction: c.Direction,
			Weapon:    uint8(c.Weapon),
			Kingdom:   uint32(c.Kingdom),
			AI: snapshot.AIStateV1{
				Ready:       c.AI.Ready,
				Mode:        uint8(c.AI.Mode),
				Target:      uint64(c.AI.Target),
				FleeTimer:   c.AI.FleeTimer,
				WanderTimer: c.AI.WanderTimer,
			},
		})
	}

	buildings := make([]snapshot.BuildingV1, 0, len(w.buildings))
	for _, b := range w.buildings {
		buildings = append(buildings, snapshot.BuildingV1{X: b.X, Y: b.Y, Kind: uint8(b.Kind), Kingdom: uint32(b.Kingdom)})
	}
	vehicles := make([]snapshot.VehicleV1, 0, len(w.vehicles))
	for _, v := range w.vehicles {
		vehicles = append(vehicles, snapshot.VehicleV1{ID: v.ID, Kind: uint8(v.Kind), X: v.X, Y: v.Y, Direction: v.Direction, Speed: v.Speed})
	}
	weapons := make([]snapshot.WeaponV1, 0, len(w.weapons))
	for _, wp := range w.weapons {
		weapons = append(weapons, snapshot.WeaponV1{ID: wp.ID, Kind: uint8(wp.Kind), X: wp.X, Y: wp.Y})
	}
	ks := w.civ.Kingdoms()
	kingdoms := make([]snapshot.KingdomV1, 0, len(ks))
	for _, k := range ks {
		kingdoms = append(kingdoms, snapshot.KingdomV1{
			ID:           uint32(k.ID),
			Name:         k.Name,
			Race:         k.Race,
			CenterX:      k.CenterX,
			CenterY:      k.CenterY,
			CitizenCount: k.CitizenCount,
			FoundedYear:  k.FoundedYear,
		})
	}

	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    w.tick,
			Year:    w.year,
			Seed:    w.cfg.Seed,
			Size:    string(w.cfg.Size),
			Shape:   string(w.cfg.Shape),
		},
		Seed:           w.cfg.Seed,
		Size:           string(w.cfg.Size),
		Shape:          string(w.cfg.Shape),
		Width:          w.grid.W,
		Height:         w.grid.H,
		Year:           w.year,
		RNGState:       w.rng.State(),
		NextCreatureID: w.nextCreatureID,
		NextVehicleID:  w.nextVehicleID,
		NextWeaponID:   w.nextWeaponID,
		Grid: snapshot.GridV1{
			Types:   encoding.EncodeRLE(rawTypes),
			Heights: encoding.EncodeRLE(w.grid.Heights()),
			Flags:   encoding.EncodeRLE(w.grid.Flags()),
		},
		Creatures: creatures,
		Buildings: buildings,
		Vehicles:  vehicles,
		Weapons:   weapons,
		Kingdoms:  kingdoms,
	}
}
