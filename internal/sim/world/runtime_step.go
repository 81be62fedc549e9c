package world

import (
	"math"

	"worldbox.ai/internal/sim/civ"
)

const vehicleTurnChance = 0.02

// TickSummary describes one completed tick. Births and deaths count
// everything since the previous summary, hazards included.
type TickSummary struct {
	Tick       uint64         `json:"tick"`
	Year       int            `json:"year"`
	Creatures  int            `json:"creatures"`
	Births     int            `json:"births"`
	Deaths     int            `json:"deaths"`
	Particles  int            `json:"particles"`
	Buildings  int            `json:"buildings"`
	Vehicles   int            `json:"vehicles"`
	Weapons    int            `json:"weapons"`
	Kingdoms   int            `json:"kingdoms"`
	Founded    int            `json:"kingdoms_founded,omitempty"`
	Population map[string]int `json:"population"`
	Digest     string         `json:"digest,omitempty"`
}

// Step advances the world by one tick: creatures in registry order, then the
// deferred births and removals, vehicles, particles and, on year
// boundaries, kingdom formation and the civilization census.
func (w *World) Step() TickSummary {
	nowTick := w.tick

	var born []Creature
	n := w.creatures.len()
	for i := 0; i < n; i++ {
		c := &w.creatures.list[i]
		if !c.Alive() {
			// killed earlier in this pass
			continue
		}
		w.updateCreature(c, &born)
	}
	for _, c := range born {
		w.creatures.add(c)
	}
	w.births += len(born)
	w.deaths += w.creatures.sweep()

	w.stepVehicles()
	w.stepParticles()

	w.tick++
	founded := 0
	if w.tick%uint64(w.cfg.TicksPerYear) == 0 {
		w.year++
		// The ledger advances to the new year before any kingdom is founded
		// in it.
		w.civ.Update(w.year, w.census())
		w.dropDissolved()
		founded = w.formKingdoms()
	}

	sum := w.summary(nowTick)
	sum.Founded = founded
	w.births, w.deaths = 0, 0

	if w.tickLogger != nil {
		sum.Digest = w.stateDigest()
		if err := w.tickLogger.WriteTick(sum); err != nil {
			w.log.WithError(err).Warn("tick log write failed")
		}
	}

	if w.snapshotSink != nil && w.cfg.SnapshotEveryTicks > 0 && w.tick%uint64(w.cfg.SnapshotEveryTicks) == 0 {
		snap := w.ExportSnapshot()
		select {
		case w.snapshotSink <- snap:
		default:
			// Drop snapshot if sink is backed up.
		}
	}
	return sum
}

func (w *World) updateCreature(c *Creature, born *[]Creature) {
	c.Age++
	c.Energy -= w.cfg.UpkeepEnergy

	w.think(c)
	w.moveCreature(c)
	w.applyTerrain(c)

	if c.Energy <= 0 || c.Age > w.cfg.MaxAge {
		c.Health = 0
	}
	if !c.Alive() {
		return
	}
	w.pickupWeapon(c)

	if c.Energy > w.cfg.ReproduceEnergy && w.rng.Chance(w.cfg.ReproduceChance) {
		c.Energy -= w.cfg.ReproduceCost
		*born = append(*born, w.newCreature(c.Kind, c.X, c.Y, w.rng.Float(0, 2*math.Pi)))
	}
}

func (w *World) stepVehicles() {
	for i := range w.vehicles {
		v := &w.vehicles[i]
		if w.rng.Chance(vehicleTurnChance) {
			v.Direction = w.rng.Float(0, 2*math.Pi)
		}
		w.step(&v.X, &v.Y, &v.Direction, v.Speed, v.mobility())
		v.Direction = normAngle(v.Direction)
	}
}

func (w *World) stepParticles() {
	kept := w.particles[:0]
	for _, p := range w.particles {
		p.Life--
		if p.Life > 0 {
			kept = append(kept, p)
		}
	}
	w.particles = kept
}

// dropDissolved clears memberships of kingdoms the civilization collaborator
// no longer knows.
func (w *World) dropDissolved() {
	live := map[civ.KingdomID]bool{}
	for _, k := range w.civ.Kingdoms() {
		live[k.ID] = true
	}
	for i := range w.creatures.list {
		c := &w.creatures.list[i]
		if c.Kingdom != 0 && !live[c.Kingdom] {
			c.Kingdom = 0
		}
	}
	for i := range w.buildings {
		if b := &w.buildings[i]; b.Kingdom != 0 && !live[b.Kingdom] {
			b.Kingdom = 0
		}
	}
}

func (w *World) summary(tick uint64) TickSummary {
	pop := map[string]int{}
	for i := range w.creatures.list {
		pop[w.creatures.list[i].Kind.String()]++
	}
	return TickSummary{
		Tick:       tick,
		Year:       w.year,
		Creatures:  w.creatures.len(),
		Births:     w.births,
		Deaths:     w.deaths,
		Particles:  len(w.particles),
		Buildings:  len(w.buildings),
		Vehicles:   len(w.vehicles),
		Weapons:    len(w.weapons),
		Kingdoms:   len(w.civ.Kingdoms()),
		Population: pop,
	}
}
