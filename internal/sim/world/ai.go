package world

import (
	"math"

	"worldbox.ai/internal/sim/species"
	"worldbox.ai/internal/sim/world/logic/mathx"
)

const (
	fleeRadius   = 8.0
	fleeTicks    = 60
	fleeBoost    = 1.5
	fleeSpeedCap = 0.8
	fleeJitter   = 0.25

	huntSatiety    = 100.0
	huntRadius     = 15.0
	strikeRange    = 1.0
	strikeDamage   = 10.0
	weaponBonus    = 15.0
	huntEnergyGain = 30.0
	combatLife     = 15

	packRadius       = 10.0
	packMaxNeighbors = 4
	packSpread       = 3.0
	packSearchChance = 0.05

	wanderMinTicks = 30
	wanderMaxTicks = 89
	wanderTurn     = math.Pi / 4
)

// think runs the priority rules for one creature. The first rule that acts
// ends the update. Draws from the simulation stream happen only inside the
// rule that uses them.
func (w *World) think(c *Creature) {
	if !c.AI.Ready {
		c.AI = AIState{Ready: true, Mode: ModeIdle}
	}
	b := species.BehaviorOf(c.Kind)
	if c.AI.FleeTimer > 0 {
		c.AI.FleeTimer--
	}

	switch {
	case w.flee(c, b):
	case w.hunt(c, b):
	case w.cohere(c, b):
	case w.returnHome(c, b):
	default:
		w.wander(c)
	}
	c.Direction = normAngle(c.Direction)
}

func (w *World) flee(c *Creature, b species.Behavior) bool {
	if len(b.Fears) > 0 {
		threat, ok := w.nearest(c, fleeRadius, func(o *Creature) bool { return species.Fears(c.Kind, o.Kind) })
		if ok {
			c.Direction = math.Atan2(c.Y-threat.Y, c.X-threat.X)
			c.AI.FleeTimer = fleeTicks
			c.Speed = math.Min(c.Speed*fleeBoost, fleeSpeedCap)
			c.AI.Mode = ModeFlee
			c.AI.Target = 0
			return true
		}
	}
	if c.AI.FleeTimer > 0 {
		c.Direction += w.rng.Float(-fleeJitter, fleeJitter)
		c.AI.Mode = ModeFlee
		return true
	}
	return false
}

func (w *World) hunt(c *Creature, b species.Behavior) bool {
	if len(b.Hunts) == 0 || c.Energy >= huntSatiety {
		return false
	}
	prey, ok := w.trackedPrey(c)
	if !ok {
		prey, ok = w.nearest(c, huntRadius, func(o *Creature) bool { return species.Hunts(c.Kind, o.Kind) })
	}
	if !ok {
		c.AI.Target = 0
		return false
	}

	c.AI.Mode = ModeHunt
	c.AI.Target = prey.ID
	c.Direction = math.Atan2(prey.Y-c.Y, prey.X-c.X)
	if mathx.Dist(c.X, c.Y, prey.X, prey.Y) <= strikeRange {
		dmg := strikeDamage
		if c.Weapon != WeaponNone {
			dmg += weaponBonus
		}
		prey.Health -= dmg
		c.Energy += huntEnergyGain
		w.emit(prey.X, prey.Y, ParticleCombat, combatLife)
	}
	return true
}

// trackedPrey resolves the previous target. The handle may point at a
// creature removed since the last tick.
func (w *World) trackedPrey(c *Creature) (*Creature, bool) {
	prey, ok := w.creatures.get(c.AI.Target)
	if !ok || !species.Hunts(c.Kind, prey.Kind) {
		return nil, false
	}
	if mathx.Dist(c.X, c.Y, prey.X, prey.Y) > huntRadius {
		return nil, false
	}
	return prey, true
}

func (w *World) cohere(c *Creature, b species.Behavior) bool {
	if !b.Pack {
		return false
	}
	var sx, sy float64
	n := 0
	for i := range w.creatures.list {
		o := &w.creatures.list[i]
		if o.ID == c.ID || o.Kind != c.Kind || !o.Alive() {
			continue
		}
		if mathx.Dist(c.X, c.Y, o.X, o.Y) <= packRadius {
			sx += o.X
			sy += o.Y
			n++
		}
	}
	if n == 0 {
		if w.rng.Chance(packSearchChance) {
			c.Direction = w.rng.Float(0, 2*math.Pi)
			c.AI.Mode = ModeSeekPack
			return true
		}
		return false
	}
	if n > packMaxNeighbors {
		return false
	}
	cx, cy := sx/float64(n), sy/float64(n)
	if mathx.Dist(c.X, c.Y, cx, cy) <= packSpread {
		return false
	}
	c.Direction = math.Atan2(cy-c.Y, cx-c.X)
	c.AI.Mode = ModePack
	return true
}

func (w *World) returnHome(c *Creature, b species.Behavior) bool {
	if c.Kingdom == 0 {
		return false
	}
	k, ok := w.civ.Kingdom(c.Kingdom)
	if !ok {
		// dissolved
		c.Kingdom = 0
		return false
	}
	if mathx.Dist(c.X, c.Y, k.CenterX, k.CenterY) <= b.Territory {
		return false
	}
	c.Direction = math.Atan2(k.CenterY-c.Y, k.CenterX-c.X)
	c.AI.Mode = ModeReturn
	return true
}

func (w *World) wander(c *Creature) {
	c.AI.WanderTimer--
	if c.AI.WanderTimer <= 0 {
		c.Direction += w.rng.Float(-wanderTurn, wanderTurn)
		c.AI.WanderTimer = w.rng.Int(wanderMinTicks, wanderMaxTicks)
	}
	c.Speed = species.TraitsOf(c.Kind).BaseSpeed
	c.AI.Mode = ModeWander
	c.AI.Target = 0
}

// nearest finds the closest live creature within radius matching pred.
// Ties go to the earlier creature in iteration order.
func (w *World) nearest(c *Creature, radius float64, pred func(*Creature) bool) (*Creature, bool) {
	var best *Creature
	bestD := 0.0
	for i := range w.creatures.list {
		o := &w.creatures.list[i]
		if o.ID == c.ID || !o.Alive() || !pred(o) {
			continue
		}
		d := mathx.Dist(c.X, c.Y, o.X, o.Y)
		if d > radius {
			continue
		}
		if best == nil || d < bestD {
			best, bestD = o, d
		}
	}
	return best, best != nil
}
