package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
)

// StateDigest hashes everything that survives a save/load cycle. Climate
// layers and particles are excluded because they are not persisted.
func (w *World) StateDigest() string { return w.stateDigest() }

func (w *World) stateDigest() string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, w.tick)
	digestWriteI64(h, &tmp, int64(w.year))
	digestWriteI64(h, &tmp, w.cfg.Seed)
	h.Write([]byte(w.cfg.Size))
	h.Write([]byte(w.cfg.Shape))
	digestWriteU64(h, &tmp, w.rng.State())
	digestWriteU64(h, &tmp, w.nextCreatureID)
	digestWriteU64(h, &tmp, w.nextVehicleID)
	digestWriteU64(h, &tmp, w.nextWeaponID)

	for _, t := range w.grid.Types() {
		h.Write([]byte{byte(t)})
	}
	h.Write(w.grid.Heights())

	for i := range w.creatures.list {
		c := &w.creatures.list[i]
		digestWriteU64(h, &tmp, uint64(c.ID))
		h.Write([]byte{byte(c.Kind), byte(c.Weapon), byte(c.AI.Mode), boolByte(c.AI.Ready)})
		digestWriteF64(h, &tmp, c.X)
		digestWriteF64(h, &tmp, c.Y)
		digestWriteI64(h, &tmp, int64(c.Age))
		digestWriteF64(h, &tmp, c.Energy)
		digestWriteF64(h, &tmp, c.Health)
		digestWriteF64(h, &tmp, c.Speed)
		digestWriteF64(h, &tmp, c.Direction)
		digestWriteU64(h, &tmp, uint64(c.Kingdom))
		digestWriteU64(h, &tmp, uint64(c.AI.Target))
		digestWriteI64(h, &tmp, int64(c.AI.FleeTimer))
		digestWriteI64(h, &tmp, int64(c.AI.WanderTimer))
	}
	for _, b := range w.buildings {
		digestWriteI64(h, &tmp, int64(b.X))
		digestWriteI64(h, &tmp, int64(b.Y))
		h.Write([]byte{byte(b.Kind)})
		digestWriteU64(h, &tmp, uint64(b.Kingdom))
	}
	for _, v := range w.vehicles {
		digestWriteU64(h, &tmp, v.ID)
		h.Write([]byte{byte(v.Kind)})
		digestWriteF64(h, &tmp, v.X)
		digestWriteF64(h, &tmp, v.Y)
		digestWriteF64(h, &tmp, v.Direction)
		digestWriteF64(h, &tmp, v.Speed)
	}
	for _, wp := range w.weapons {
		digestWriteU64(h, &tmp, wp.ID)
		h.Write([]byte{byte(wp.Kind)})
		digestWriteF64(h, &tmp, wp.X)
		digestWriteF64(h, &tmp, wp.Y)
	}
	for _, k := range w.civ.Kingdoms() {
		digestWriteU64(h, &tmp, uint64(k.ID))
		h.Write([]byte(k.Race))
		digestWriteF64(h, &tmp, k.CenterX)
		digestWriteF64(h, &tmp, k.CenterY)
		digestWriteI64(h, &tmp, int64(k.CitizenCount))
	}

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hash.Hash, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteF64(h hash.Hash, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
