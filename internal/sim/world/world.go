package world

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"worldbox.ai/internal/persistence/snapshot"
	"worldbox.ai/internal/sim/biome"
	"worldbox.ai/internal/sim/civ"
	"worldbox.ai/internal/sim/rng"
	"worldbox.ai/internal/sim/species"
	"worldbox.ai/internal/sim/terrain"
	"worldbox.ai/pkg/logger"
)

// Civilization owns races and kingdoms. The world only creates kingdoms,
// assigns creatures to them and hands over a yearly census.
type Civilization interface {
	Races() []civ.Race
	Kingdoms() []civ.Kingdom
	Kingdom(id civ.KingdomID) (civ.Kingdom, bool)
	CreateKingdom(x, y float64, race string) civ.KingdomID
	AssignCreature(creatureID uint64, id civ.KingdomID)
	Update(year int, census map[civ.KingdomID]int)
	Restore(year int, ks []civ.Kingdom)
	Reset()
}

// Biomes classifies tiles and returns per-tick creature modifiers.
type Biomes interface {
	BiomeAt(g *terrain.Grid, x, y int) (biome.Biome, bool)
	Effects(b biome.Biome, k species.Kind) biome.Effect
}

type TickLogger interface {
	WriteTick(entry TickSummary) error
}

type HazardLogger interface {
	WriteHazard(entry HazardRecord) error
}

// Deps are the collaborators of a World. Nil fields get the defaults.
type Deps struct {
	Civ          Civilization
	Biomes       Biomes
	TickLogger   TickLogger
	HazardLogger HazardLogger

	// SnapshotSink receives a snapshot every SnapshotEveryTicks ticks.
	SnapshotSink chan<- snapshot.SnapshotV1
}

// World is the whole simulation state. It is not safe for concurrent use;
// once Run is started every access goes through Do.
type World struct {
	cfg WorldConfig
	log *logrus.Entry

	civ          Civilization
	biomes       Biomes
	tickLogger   TickLogger
	hazardLogger HazardLogger
	snapshotSink chan<- snapshot.SnapshotV1

	grid *terrain.Grid
	gen  *rng.LCG
	rng  *rng.LCG

	creatures creatureStore
	particles []Particle
	buildings []Building
	vehicles  []Vehicle
	weapons   []Weapon

	nextCreatureID uint64
	nextVehicleID  uint64
	nextWeaponID   uint64

	tick uint64
	year int

	// race name per civilized kind, from the civilization collaborator
	civilized map[species.Kind]string

	births int
	deaths int

	run runState
}

// New builds a world and generates it from cfg.Seed, cfg.Size and cfg.Shape.
func New(cfg WorldConfig, deps Deps) (*World, error) {
	cfg.applyDefaults()
	if _, err := terrain.ParseSize(string(cfg.Size)); err != nil {
		return nil, err
	}
	if _, err := terrain.ParseShape(string(cfg.Shape)); err != nil {
		return nil, err
	}
	if deps.Civ == nil {
		deps.Civ = civ.NewLedger()
	}
	if deps.Biomes == nil {
		deps.Biomes = biome.Classifier{}
	}
	w := &World{
		cfg:          cfg,
		log:          logger.Component("world").WithField("world", cfg.ID),
		civ:          deps.Civ,
		biomes:       deps.Biomes,
		tickLogger:   deps.TickLogger,
		hazardLogger: deps.HazardLogger,
		snapshotSink: deps.SnapshotSink,
		gen:          rng.New(cfg.Seed),
		rng:          rng.New(simSeed(cfg.Seed)),
		creatures:    newCreatureStore(),
	}
	w.run.init(cfg.Speed)
	w.refreshRaces()
	if err := w.Generate(cfg.Seed, cfg.Size, cfg.Shape); err != nil {
		return nil, err
	}
	return w, nil
}

// simSeed derives the simulation stream seed so it never shares a prefix
// with the generation stream.
func simSeed(seed int64) int64 { return seed ^ 0x5DEECE66D }

func (w *World) ID() string { return w.cfg.ID }
func (w *World) Config() WorldConfig { return w.cfg }
func (w *World) Seed() int64 { return w.cfg.Seed }
func (w *World) CurrentTick() uint64 { return w.tick }
func (w *World) Year() int { return w.year }
func (w *World) Grid() *terrain.Grid { return w.grid }
func (w *World) CreatureCount() int { return w.creatures.len() }
func (w *World) Civ() Civilization { return w.civ }
func (w *World) TickRateHz() int { return w.cfg.TickRateHz }
func (w *World) ParticleCount() int { return len(w.particles) }
func (w *World) Buildings() []Building { return append([]Building(nil), w.buildings...) }
func (w *World) Vehicles() []Vehicle { return append([]Vehicle(nil), w.vehicles...) }
func (w *World) Weapons() []Weapon { return append([]Weapon(nil), w.weapons...) }

// Creatures returns a copy of the registry in iteration order.
func (w *World) Creatures() []Creature {
	return append([]Creature(nil), w.creatures.list...)
}

// Creature looks up a live creature by handle.
func (w *World) Creature(id CreatureID) (Creature, bool) {
	c, ok := w.creatures.get(id)
	if !ok {
		return Creature{}, false
	}
	return *c, true
}

func (w *World) Particles() []Particle { return append([]Particle(nil), w.particles...) }

// Generate discards the current world and builds a new one. Terrain, roads
// and initial entities are a pure function of (seed, size, shape).
func (w *World) Generate(seed int64, size terrain.Size, shape terrain.Shape) error {
	if _, err := terrain.ParseSize(string(size)); err != nil {
		return err
	}
	if _, err := terrain.ParseShape(string(shape)); err != nil {
		return err
	}
	w.cfg.Seed, w.cfg.Size, w.cfg.Shape = seed, size, shape
	w.resetEntities()
	w.civ.Reset()
	w.gen.SetSeed(seed)
	w.rng.SetSeed(simSeed(seed))

	w.grid = terrain.Generate(seed, size, shape, w.gen)
	placed, skipped := w.seedEntities()

	w.log.WithFields(logrus.Fields{
		"seed":      seed,
		"size":      size,
		"shape":     shape,
		"creatures": w.creatures.len(),
		"groups":    placed,
		"skipped":   skipped,
	}).Info("world generated")
	return nil
}

// Clear keeps size and shape but resets the world to blank grass with no
// entities, kingdoms or history.
func (w *World) Clear() {
	w.resetEntities()
	w.civ.Reset()
	w.gen.SetSeed(w.cfg.Seed)
	w.rng.SetSeed(simSeed(w.cfg.Seed))
	w.grid = terrain.NewGrid(w.cfg.Size, w.cfg.Shape)
	w.log.Info("world cleared")
}

func (w *World) resetEntities() {
	w.creatures.reset()
	w.particles = nil
	w.buildings = nil
	w.vehicles = nil
	w.weapons = nil
	w.nextCreatureID = 1
	w.nextVehicleID = 1
	w.nextWeaponID = 1
	w.tick = 0
	w.year = 0
	w.births, w.deaths = 0, 0
}

func (w *World) refreshRaces() {
	w.civilized = map[species.Kind]string{}
	for _, r := range w.civ.Races() {
		if r.Civilized {
			w.civilized[r.Kind] = r.Name
		}
	}
}

func (w *World) isCivilized(k species.Kind) bool {
	_, ok := w.civilized[k]
	return ok
}

func (w *World) String() string {
	return fmt.Sprintf("world(%s seed=%d %s/%s tick=%d)", w.cfg.ID, w.cfg.Seed, w.cfg.Size, w.cfg.Shape, w.tick)
}
