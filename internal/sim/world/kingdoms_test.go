package world

import (
	"testing"

	"worldbox.ai/internal/sim/species"
)

func addRing(w *World, k species.Kind, x, y float64, n int) []CreatureID {
	var ids []CreatureID
	for i := 0; i < n; i++ {
		ids = append(ids, w.addCreature(k, x+float64(i%3), y+float64(i/3), 0))
	}
	return ids
}

func TestFormKingdoms_NeedsMinimumSize(t *testing.T) {
	w := blankWorld(t)
	addRing(w, species.Human, 10, 10, 4)

	if n := w.formKingdoms(); n != 0 {
		t.Fatalf("four humans founded %d kingdoms", n)
	}

	addRing(w, species.Human, 11, 11, 1)
	if n := w.formKingdoms(); n != 1 {
		t.Fatalf("five humans founded %d kingdoms", n)
	}
	ks := w.Civ().Kingdoms()
	if len(ks) != 1 || ks[0].Race != "human" || ks[0].CitizenCount != 5 {
		t.Fatalf("kingdoms %+v", ks)
	}
	for _, c := range w.Creatures() {
		if c.Kingdom != ks[0].ID {
			t.Fatalf("creature %d not a citizen", c.ID)
		}
	}
	bs := w.Buildings()
	if len(bs) != 1 || bs[0].Kind != BuildingHouse || bs[0].Kingdom != ks[0].ID {
		t.Fatalf("settlement %+v", bs)
	}
}

func TestFormKingdoms_WildAndUncivilizedKindsNeverSettle(t *testing.T) {
	w := blankWorld(t)
	addRing(w, species.Wolf, 10, 10, 6)
	addRing(w, species.Undead, 30, 20, 6)
	if n := w.formKingdoms(); n != 0 {
		t.Fatalf("founded %d kingdoms", n)
	}
}

func TestFormKingdoms_Spacing(t *testing.T) {
	w := blankWorld(t)
	addRing(w, species.Elf, 10, 10, 5)
	if n := w.formKingdoms(); n != 1 {
		t.Fatalf("first elf kingdom: %d", n)
	}
	// Too close to the first elf kingdom.
	addRing(w, species.Elf, 20, 20, 5)
	if n := w.formKingdoms(); n != 0 {
		t.Fatalf("crowded elf kingdom founded: %d", n)
	}
	// Another race may settle right next door.
	addRing(w, species.Dwarf, 14, 14, 5)
	if n := w.formKingdoms(); n != 1 {
		t.Fatalf("dwarf kingdom: %d", n)
	}
	// Far enough away.
	addRing(w, species.Elf, 58, 35, 5)
	if n := w.formKingdoms(); n != 1 {
		t.Fatalf("distant elf kingdom: %d", n)
	}
	if got := len(w.Civ().Kingdoms()); got != 3 {
		t.Fatalf("kingdoms %d", got)
	}
}

func TestFormKingdoms_OnYearBoundary(t *testing.T) {
	w := blankWorld(t)
	w.cfg.TicksPerYear = 2
	addRing(w, species.Orc, 30, 20, 6)

	if sum := w.Step(); sum.Founded != 0 || sum.Kingdoms != 0 {
		t.Fatalf("kingdom founded mid-year: %+v", sum)
	}
	sum := w.Step()
	if sum.Year != 1 || sum.Founded != 1 || sum.Kingdoms != 1 {
		t.Fatalf("year boundary summary %+v", sum)
	}
	if ks := w.Civ().Kingdoms(); ks[0].CitizenCount != 6 || ks[0].FoundedYear != 1 {
		t.Fatalf("kingdom %+v", ks[0])
	}

	// A kingdom founded at a later boundary carries that year.
	addRing(w, species.Human, 10, 10, 6)
	for w.year < 2 {
		w.Step()
	}
	ks := w.Civ().Kingdoms()
	if len(ks) != 2 || ks[1].Race != "human" || ks[1].FoundedYear != 2 {
		t.Fatalf("kingdoms %+v", ks)
	}
}
