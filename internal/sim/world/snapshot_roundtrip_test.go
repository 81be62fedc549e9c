package world

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"worldbox.ai/internal/persistence/snapshot"
	"worldbox.ai/internal/sim/terrain"
)

// busyWorld has history: kingdoms, buildings, hazards and a moved RNG.
func busyWorld(t *testing.T, shape terrain.Shape) *World {
	t.Helper()
	w := newTestWorld(t, WorldConfig{Seed: 42, Size: terrain.Small, Shape: shape, TicksPerYear: 20})
	for i := 0; i < 90; i++ {
		w.Step()
	}
	if _, err := w.ApplyHazard(Earthquake, 30, 20, 4); err != nil {
		t.Fatalf("earthquake: %v", err)
	}
	return w
}

func TestSnapshot_RoundTrip(t *testing.T) {
	for _, shape := range []terrain.Shape{terrain.Rectangular, terrain.Island} {
		src := busyWorld(t, shape)
		snap := src.ExportSnapshot()

		path := filepath.Join(t.TempDir(), "world.snap.zst")
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			t.Fatalf("write: %v", err)
		}
		loaded, err := snapshot.ReadSnapshot(path)
		if err != nil {
			t.Fatalf("read: %v", err)
		}

		dst := newTestWorld(t, WorldConfig{Seed: 1, Size: terrain.Large})
		if err := dst.ImportSnapshot(loaded); err != nil {
			t.Fatalf("import: %v", err)
		}
		if dst.StateDigest() != src.StateDigest() {
			t.Fatalf("%s: digest differs after round trip", shape)
		}
		if dst.Config().Size != terrain.Small || dst.Config().Shape != shape {
			t.Fatalf("config not restored: %+v", dst.Config())
		}
		g := dst.Grid()
		for y := 0; y < g.H; y++ {
			for x := 0; x < g.W; x++ {
				if g.Valid(x, y) != terrain.ValidAt(shape, g.W, g.H, x, y) {
					t.Fatalf("%s: validity at (%d,%d) not recomputed", shape, x, y)
				}
			}
		}
		if len(dst.Civ().Kingdoms()) != len(src.Civ().Kingdoms()) {
			t.Fatalf("kingdoms %d vs %d", len(dst.Civ().Kingdoms()), len(src.Civ().Kingdoms()))
		}
		if dst.ParticleCount() != 0 {
			t.Fatalf("particles restored")
		}
	}
}

func TestSnapshot_ContinuationIsDeterministic(t *testing.T) {
	snap := busyWorld(t, terrain.Island).ExportSnapshot()

	a := newTestWorld(t, WorldConfig{Seed: 1, Size: terrain.Small})
	b := newTestWorld(t, WorldConfig{Seed: 99, Size: terrain.Medium, Shape: terrain.Circular})
	if err := a.ImportSnapshot(snap); err != nil {
		t.Fatalf("import a: %v", err)
	}
	if err := b.ImportSnapshot(snap); err != nil {
		t.Fatalf("import b: %v", err)
	}
	for i := 0; i < 120; i++ {
		a.Step()
		b.Step()
	}
	if a.StateDigest() != b.StateDigest() {
		t.Fatalf("worlds loaded from the same snapshot diverged")
	}

	// New creatures continue the persisted ID sequence.
	ids, _ := a.SpawnCreature(0, 30, 20, 1)
	if len(ids) == 1 && uint64(ids[0]) < snap.NextCreatureID {
		t.Fatalf("creature id %d reused below counter %d", ids[0], snap.NextCreatureID)
	}
}

func TestSnapshot_CorruptLeavesWorldUntouched(t *testing.T) {
	good := busyWorld(t, terrain.Rectangular).ExportSnapshot()
	if len(good.Creatures) < 2 {
		t.Fatalf("need at least two creatures, have %d", len(good.Creatures))
	}

	cases := map[string]func(s *snapshot.SnapshotV1){
		"version":       func(s *snapshot.SnapshotV1) { s.Header.Version = 99 },
		"size":          func(s *snapshot.SnapshotV1) { s.Size = "huge" },
		"dims":          func(s *snapshot.SnapshotV1) { s.Width = 10 },
		"grid":          func(s *snapshot.SnapshotV1) { s.Grid.Types = "%%%" },
		"flags":         func(s *snapshot.SnapshotV1) { s.Grid.Flags = s.Grid.Heights },
		"creature id":   func(s *snapshot.SnapshotV1) { s.Creatures[1].ID = s.Creatures[0].ID },
		"creature kind": func(s *snapshot.SnapshotV1) { s.Creatures[0].Kind = 250 },
		"dead creature": func(s *snapshot.SnapshotV1) { s.Creatures[0].Health = 0 },
		"off grid":      func(s *snapshot.SnapshotV1) { s.Creatures[0].X = 1e6 },
		"kingdom":       func(s *snapshot.SnapshotV1) { s.Creatures[0].Kingdom = 9999 },
		"counter":       func(s *snapshot.SnapshotV1) { s.NextCreatureID = 0 },
		"nan speed":     func(s *snapshot.SnapshotV1) { s.Creatures[0].Speed = math.NaN() },
		"inf energy":    func(s *snapshot.SnapshotV1) { s.Creatures[0].Energy = math.Inf(1) },
		"nan direction": func(s *snapshot.SnapshotV1) { s.Creatures[0].Direction = math.NaN() },
		"inf health":    func(s *snapshot.SnapshotV1) { s.Creatures[0].Health = math.Inf(1) },
		"building":      func(s *snapshot.SnapshotV1) { s.Buildings = append(s.Buildings, snapshot.BuildingV1{X: -1, Y: 0}) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			w := newTestWorld(t, WorldConfig{Seed: 5, Size: terrain.Small})
			before := w.StateDigest()

			bad := good
			bad.Creatures = append([]snapshot.CreatureV1(nil), good.Creatures...)
			bad.Buildings = append([]snapshot.BuildingV1(nil), good.Buildings...)
			mutate(&bad)

			err := w.ImportSnapshot(bad)
			if !errors.Is(err, ErrCorruptSnapshot) {
				t.Fatalf("expected ErrCorruptSnapshot, got %v", err)
			}
			if w.StateDigest() != before {
				t.Fatalf("failed import modified the world")
			}
		})
	}
}
