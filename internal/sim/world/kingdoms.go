package world

import (
	"sort"

	"github.com/sirupsen/logrus"

	"worldbox.ai/internal/sim/civ"
	"worldbox.ai/internal/sim/terrain"
	"worldbox.ai/internal/sim/world/logic/mathx"
)

// formKingdoms clusters unaffiliated creatures of each civilized race and
// founds a kingdom for every large enough cluster that does not overlap an
// existing kingdom of the same race. Races are visited in name order and
// candidates in creature ID order, so clustering is reproducible.
func (w *World) formKingdoms() int {
	founded := 0
	for _, race := range w.civ.Races() {
		if !race.Civilized {
			continue
		}
		var free []*Creature
		for i := range w.creatures.list {
			c := &w.creatures.list[i]
			if c.Kind == race.Kind && c.Kingdom == 0 && c.Alive() {
				free = append(free, c)
			}
		}
		sort.Slice(free, func(i, j int) bool { return free[i].ID < free[j].ID })

		for _, cluster := range w.cluster(free) {
			if len(cluster) < w.cfg.KingdomMinSize {
				continue
			}
			cx, cy := centroid(cluster)
			if w.kingdomNear(race.Name, cx, cy) {
				continue
			}
			id := w.civ.CreateKingdom(cx, cy, race.Name)
			for _, c := range cluster {
				c.Kingdom = id
				w.civ.AssignCreature(uint64(c.ID), id)
			}
			w.foundSettlement(id, cx, cy)
			founded++
			w.log.WithFields(logrus.Fields{"kingdom": id, "race": race.Name, "members": len(cluster), "year": w.year}).Info("kingdom formed")
		}
	}
	return founded
}

// cluster groups creatures greedily: each unassigned creature in order seeds
// a cluster and pulls in every later unassigned creature within the
// cluster radius of the seed.
func (w *World) cluster(cs []*Creature) [][]*Creature {
	assigned := make([]bool, len(cs))
	var out [][]*Creature
	for i, seed := range cs {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		group := []*Creature{seed}
		for j := i + 1; j < len(cs); j++ {
			if assigned[j] {
				continue
			}
			if mathx.Dist(seed.X, seed.Y, cs[j].X, cs[j].Y) <= w.cfg.ClusterRadius {
				assigned[j] = true
				group = append(group, cs[j])
			}
		}
		out = append(out, group)
	}
	return out
}

func centroid(cs []*Creature) (float64, float64) {
	var sx, sy float64
	for _, c := range cs {
		sx += c.X
		sy += c.Y
	}
	n := float64(len(cs))
	return sx / n, sy / n
}

func (w *World) kingdomNear(race string, x, y float64) bool {
	for _, k := range w.civ.Kingdoms() {
		if k.Race == race && mathx.Dist(k.CenterX, k.CenterY, x, y) <= w.cfg.KingdomSpacing {
			return true
		}
	}
	return false
}

// foundSettlement puts a house at the kingdom centre when the tile allows.
func (w *World) foundSettlement(id civ.KingdomID, x, y float64) {
	tx, ty := terrain.TileOf(x, y)
	t, ok := w.grid.TypeAt(tx, ty)
	if !ok || !w.grid.Valid(tx, ty) || !buildable(t) {
		return
	}
	_ = w.insertBuilding(Building{X: tx, Y: ty, Kind: BuildingHouse, Kingdom: id})
}

// census counts living citizens per kingdom.
func (w *World) census() map[civ.KingdomID]int {
	out := map[civ.KingdomID]int{}
	for i := range w.creatures.list {
		c := &w.creatures.list[i]
		if c.Kingdom != 0 && c.Alive() {
			out[c.Kingdom]++
		}
	}
	return out
}
